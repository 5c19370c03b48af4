package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ikhode/erp-modular-sub001/internal/domain"
	"github.com/ikhode/erp-modular-sub001/internal/events"
	"github.com/ikhode/erp-modular-sub001/internal/lifecycle"
)

const documentColumns = `tenant_id,id,folio,kind,state,product_id,COALESCE(location_id,''),COALESCE(from_location_id,''),
COALESCE(to_location_id,''),quantity,unit_price,COALESCE(delivery_type,''),COALESCE(purchase_type,''),COALESCE(payment_method,''),
COALESCE(counterparty_id,''),side_effects_applied,created_by,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var d domain.Document
	var applied int
	err := row.Scan(&d.TenantID, &d.ID, &d.Folio, &d.Kind, &d.State, &d.ProductID, &d.LocationID, &d.FromLocationID,
		&d.ToLocationID, &d.Quantity, &d.UnitPrice, &d.DeliveryType, &d.PurchaseType, &d.PaymentMethod,
		&d.CounterpartyID, &applied, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	d.SideEffectsApplied = applied != 0
	return d, err
}

func (r Repo) Load(ctx context.Context, tenantID, id string) (domain.Document, error) {
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE tenant_id=? AND id=?`, tenantID, id))
	if errors.Is(err, ErrNotFound) {
		return doc, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return doc, err
}

// Insert stores a new document and its creation record, registering its
// tenant on first use.
func (r Repo) Insert(ctx context.Context, doc domain.Document, created domain.Transition) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := r.ensureTenantTx(ctx, tx, doc.TenantID, ""); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO documents(tenant_id,id,folio,kind,state,product_id,location_id,from_location_id,to_location_id,
quantity,unit_price,delivery_type,purchase_type,payment_method,counterparty_id,side_effects_applied,created_by,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		doc.TenantID, doc.ID, doc.Folio, string(doc.Kind), string(doc.State), doc.ProductID, nullable(doc.LocationID), nullable(doc.FromLocationID),
		nullable(doc.ToLocationID), doc.Quantity.String(), doc.UnitPrice.String(), nullable(doc.DeliveryType), nullable(doc.PurchaseType),
		nullable(doc.PaymentMethod), nullable(doc.CounterpartyID), boolInt(doc.SideEffectsApplied), doc.CreatedBy, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: document %s already exists", lifecycle.ErrInvalidDocument, doc.ID)
		}
		return err
	}
	if err := appendAuditTx(ctx, tx, created); err != nil {
		return err
	}
	if err := r.events().Append(ctx, tx, events.DocumentCreated, doc.TenantID, "document", doc.ID, doc.CreatedBy, events.EventPayload{
		"folio": doc.Folio, "kind": doc.Kind, "state": doc.State,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// CompareAndSwap applies s only if the row still matches its expected state
// and flag. The update, audit record, outbox row and events commit together.
func (r Repo) CompareAndSwap(ctx context.Context, s lifecycle.Swap) (domain.Document, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Document{}, err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `UPDATE documents SET state=?, side_effects_applied=?, updated_at=?
WHERE tenant_id=? AND id=? AND state=? AND side_effects_applied=?`,
		string(s.NewState), boolInt(s.SideEffectsApplied), s.UpdatedAt, s.TenantID, s.DocumentID, string(s.ExpectedState), boolInt(s.ExpectedApplied))
	if err != nil {
		return domain.Document{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE tenant_id=? AND id=?`, s.TenantID, s.DocumentID).Scan(&exists)
		if err == sql.ErrNoRows {
			return domain.Document{}, fmt.Errorf("%w: %s", ErrNotFound, s.DocumentID)
		}
		if err != nil {
			return domain.Document{}, err
		}
		return domain.Document{}, fmt.Errorf("%w: %s changed underneath", lifecycle.ErrConcurrentModification, s.DocumentID)
	}
	if err := appendAuditTx(ctx, tx, s.Audit); err != nil {
		return domain.Document{}, err
	}
	if s.Instruction != nil {
		if err := r.enqueueInstructionTx(ctx, tx, *s.Instruction); err != nil {
			return domain.Document{}, fmt.Errorf("enqueue instruction: %w", err)
		}
	}
	if err := r.events().Append(ctx, tx, events.DocumentTransitioned, s.TenantID, "document", s.DocumentID, s.Audit.ActorID, events.EventPayload{
		"from": s.ExpectedState, "to": s.NewState, "side_effects_applied": s.SideEffectsApplied,
	}); err != nil {
		return domain.Document{}, err
	}
	doc, err := scanDocument(tx.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE tenant_id=? AND id=?`, s.TenantID, s.DocumentID))
	if err != nil {
		return domain.Document{}, err
	}
	return doc, tx.Commit()
}

func appendAuditTx(ctx context.Context, tx *sql.Tx, rec domain.Transition) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO transitions(id,seq,tenant_id,document_id,from_state,to_state,actor_id,ts)
VALUES (?,(SELECT COALESCE(MAX(seq),0)+1 FROM transitions WHERE tenant_id=? AND document_id=?),?,?,?,?,?,?)`,
		rec.ID, rec.TenantID, rec.DocumentID, rec.TenantID, rec.DocumentID, nullable(string(rec.FromState)), string(rec.ToState), actorOrSystem(rec.ActorID), rec.TS)
	return err
}

func actorOrSystem(actorID string) string {
	if actorID == "" {
		return "system"
	}
	return actorID
}

func (r Repo) AppendAudit(ctx context.Context, rec domain.Transition) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := appendAuditTx(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit()
}

func (r Repo) Transitions(ctx context.Context, tenantID, documentID string) ([]domain.Transition, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,tenant_id,document_id,COALESCE(from_state,''),to_state,actor_id,ts
FROM transitions WHERE tenant_id=? AND document_id=? ORDER BY seq`, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Transition
	for rows.Next() {
		var t domain.Transition
		if err := rows.Scan(&t.ID, &t.TenantID, &t.DocumentID, &t.FromState, &t.ToState, &t.ActorID, &t.TS); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// List pages documents oldest first by (created_at, id).
func (r Repo) List(ctx context.Context, f lifecycle.DocumentFilter) ([]domain.Document, error) {
	clauses := []string{"tenant_id=?"}
	args := []any{f.TenantID}
	if f.Kind != "" {
		clauses = append(clauses, "kind=?")
		args = append(args, string(f.Kind))
	}
	if f.State != "" {
		clauses = append(clauses, "state=?")
		args = append(args, string(f.State))
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at > ? OR (created_at = ? AND id > ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	query := `SELECT ` + documentColumns + ` FROM documents WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}
