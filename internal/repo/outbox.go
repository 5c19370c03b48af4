package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ikhode/erp-modular-sub001/internal/domain"
	"github.com/ikhode/erp-modular-sub001/internal/events"
)

const (
	OutboxPending   = "pending"
	OutboxDelivered = "delivered"
)

// EnqueueInstruction persists an emitted instruction for the relay. The
// instruction id is unique, so re-enqueueing is a no-op.
func (r Repo) EnqueueInstruction(ctx context.Context, in domain.Instruction) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := r.enqueueInstructionTx(ctx, tx, in); err != nil {
		return err
	}
	return tx.Commit()
}

func (r Repo) enqueueInstructionTx(ctx context.Context, tx *sql.Tx, in domain.Instruction) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal instruction: %w", err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO instructions(id,tenant_id,document_id,payload_json,status,created_at)
VALUES (?,?,?,?,?,?) ON CONFLICT(id) DO NOTHING`, in.ID, in.TenantID, in.DocumentID, string(payload), OutboxPending, r.now())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	return r.events().Append(ctx, tx, events.InstructionEmitted, in.TenantID, "instruction", in.ID, "lifecycle", events.EventPayload{
		"document_id": in.DocumentID, "folio": in.Folio, "kind": in.Kind,
	})
}

type OutboxFilter struct {
	TenantID string
	Status   string
	AfterSeq int64
	Limit    int

	// Unapplied keeps only instructions not yet booked on the stock ledger.
	Unapplied bool
}

// ListInstructions returns outbox entries in emission order. An empty
// TenantID spans all tenants, which only the relay uses.
func (r Repo) ListInstructions(ctx context.Context, f OutboxFilter) ([]domain.OutboxEntry, error) {
	query := `SELECT seq,payload_json,status,COALESCE(delivered_at,'') FROM instructions WHERE seq>?`
	args := []any{f.AfterSeq}
	if f.TenantID != "" {
		query += ` AND tenant_id=?`
		args = append(args, f.TenantID)
	}
	if f.Status != "" {
		query += ` AND status=?`
		args = append(args, f.Status)
	}
	if f.Unapplied {
		query += ` AND id NOT IN (SELECT instruction_id FROM applied_instructions)`
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY seq LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.OutboxEntry
	for rows.Next() {
		var e domain.OutboxEntry
		var payload string
		if err := rows.Scan(&e.Seq, &payload, &e.Status, &e.DeliveredAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &e.Instruction); err != nil {
			return nil, fmt.Errorf("decode instruction %d: %w", e.Seq, err)
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) GetInstruction(ctx context.Context, tenantID, id string) (domain.OutboxEntry, error) {
	var e domain.OutboxEntry
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT seq,payload_json,status,COALESCE(delivered_at,'') FROM instructions WHERE tenant_id=? AND id=?`,
		tenantID, id).Scan(&e.Seq, &payload, &e.Status, &e.DeliveredAt)
	if err == sql.ErrNoRows {
		return e, fmt.Errorf("%w: instruction %s", ErrNotFound, id)
	}
	if err != nil {
		return e, err
	}
	return e, json.Unmarshal([]byte(payload), &e.Instruction)
}

// MarkDelivered flags an instruction as relayed.
func (r Repo) MarkDelivered(ctx context.Context, in domain.Instruction) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `UPDATE instructions SET status=?, delivered_at=?, last_error=NULL WHERE id=? AND status=?`,
		OutboxDelivered, r.now(), in.ID, OutboxPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	if err := r.events().Append(ctx, tx, events.InstructionDelivered, in.TenantID, "instruction", in.ID, "relay", nil); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordFailure counts a failed relay attempt; the entry stays pending.
func (r Repo) RecordFailure(ctx context.Context, id string, cause error) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE instructions SET attempts=attempts+1, last_error=? WHERE id=?`, cause.Error(), id)
	return err
}
