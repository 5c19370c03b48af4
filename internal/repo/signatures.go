package repo

import (
	"context"

	"github.com/ikhode/erp-modular-sub001/internal/domain"
	"github.com/ikhode/erp-modular-sub001/internal/events"
)

// InsertIfAbsent stores sig unless (document, role) already signed. The
// primary key decides races between concurrent captures.
func (r Repo) InsertIfAbsent(ctx context.Context, sig domain.Signature) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `INSERT INTO signatures(tenant_id,document_id,role,id,content_type,image,image_ref,captured_by,captured_at)
VALUES (?,?,?,?,?,?,?,?,?) ON CONFLICT(tenant_id,document_id,role) DO NOTHING`,
		sig.TenantID, sig.DocumentID, sig.Role, sig.ID, sig.ContentType, imageColumn(sig), nullable(sig.ImageRef), actorOrSystem(sig.CapturedBy), sig.CapturedAt)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}
	if err := r.events().Append(ctx, tx, events.SignatureCaptured, sig.TenantID, "document", sig.DocumentID, sig.CapturedBy, events.EventPayload{
		"role": sig.Role, "signature_id": sig.ID, "content_type": sig.ContentType,
	}); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// imageColumn keeps archived images out of the database.
func imageColumn(sig domain.Signature) any {
	if sig.ImageRef != "" {
		return nil
	}
	return sig.ImageData
}

func (r Repo) Signatures(ctx context.Context, tenantID, documentID string) (map[string]domain.Signature, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,tenant_id,document_id,role,content_type,image,COALESCE(image_ref,''),captured_by,captured_at
FROM signatures WHERE tenant_id=? AND document_id=?`, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]domain.Signature{}
	for rows.Next() {
		var s domain.Signature
		if err := rows.Scan(&s.ID, &s.TenantID, &s.DocumentID, &s.Role, &s.ContentType, &s.ImageData, &s.ImageRef, &s.CapturedBy, &s.CapturedAt); err != nil {
			return nil, err
		}
		res[s.Role] = s
	}
	return res, rows.Err()
}
