package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ikhode/erp-modular-sub001/internal/domain"
	"github.com/ikhode/erp-modular-sub001/internal/events"
)

// Available returns the on-hand quantity, zero for unknown pairs.
func (r Repo) Available(ctx context.Context, tenantID, productID, locationID string) (decimal.Decimal, error) {
	return availableTx(ctx, r.DB, tenantID, productID, locationID)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func availableTx(ctx context.Context, q queryer, tenantID, productID, locationID string) (decimal.Decimal, error) {
	var qty decimal.Decimal
	err := q.QueryRowContext(ctx, `SELECT quantity FROM stock_levels WHERE tenant_id=? AND product_id=? AND location_id=?`,
		tenantID, productID, locationID).Scan(&qty)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	return qty, err
}

func putStockTx(ctx context.Context, tx *sql.Tx, tenantID, productID, locationID string, qty decimal.Decimal, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO stock_levels(tenant_id,product_id,location_id,quantity,updated_at) VALUES (?,?,?,?,?)
ON CONFLICT(tenant_id,product_id,location_id) DO UPDATE SET quantity=excluded.quantity, updated_at=excluded.updated_at`,
		tenantID, productID, locationID, qty.String(), now)
	return err
}

// SetStock overwrites a stock level, e.g. after a physical count.
func (r Repo) SetStock(ctx context.Context, tenantID, productID, locationID string, qty decimal.Decimal, actorID string) (domain.StockLevel, error) {
	if strings.TrimSpace(productID) == "" || strings.TrimSpace(locationID) == "" {
		return domain.StockLevel{}, fmt.Errorf("product_id and location_id are required")
	}
	if qty.IsNegative() {
		return domain.StockLevel{}, fmt.Errorf("quantity must not be negative")
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.StockLevel{}, err
	}
	defer tx.Rollback()
	if _, err := r.ensureTenantTx(ctx, tx, tenantID, ""); err != nil {
		return domain.StockLevel{}, err
	}
	prev, err := availableTx(ctx, tx, tenantID, productID, locationID)
	if err != nil {
		return domain.StockLevel{}, err
	}
	now := r.now()
	if err := putStockTx(ctx, tx, tenantID, productID, locationID, qty, now); err != nil {
		return domain.StockLevel{}, err
	}
	if err := r.events().Append(ctx, tx, events.StockAdjusted, tenantID, "stock", productID+"@"+locationID, actorID, events.EventPayload{
		"from": prev.String(), "to": qty.String(),
	}); err != nil {
		return domain.StockLevel{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.StockLevel{}, err
	}
	return domain.StockLevel{TenantID: tenantID, ProductID: productID, LocationID: locationID, Quantity: qty, UpdatedAt: now}, nil
}

// ListStock returns stock levels of a tenant, optionally for one product.
func (r Repo) ListStock(ctx context.Context, tenantID, productID string) ([]domain.StockLevel, error) {
	query := `SELECT tenant_id,product_id,location_id,quantity,updated_at FROM stock_levels WHERE tenant_id=?`
	args := []any{tenantID}
	if productID != "" {
		query += ` AND product_id=?`
		args = append(args, productID)
	}
	rows, err := r.DB.QueryContext(ctx, query+` ORDER BY product_id, location_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StockLevel
	for rows.Next() {
		var s domain.StockLevel
		if err := rows.Scan(&s.TenantID, &s.ProductID, &s.LocationID, &s.Quantity, &s.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// ApplyInstruction books the inventory deltas and cash-flow entry of in as a
// single transaction. Replays of the same instruction id are no-ops and
// report false.
func (r Repo) ApplyInstruction(ctx context.Context, in domain.Instruction) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	now := r.now()
	res, err := tx.ExecContext(ctx, `INSERT INTO applied_instructions(instruction_id,tenant_id,applied_at) VALUES (?,?,?)
ON CONFLICT(instruction_id) DO NOTHING`, in.ID, in.TenantID, now)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}
	for _, d := range in.Inventory {
		current, err := availableTx(ctx, tx, in.TenantID, d.ProductID, d.LocationID)
		if err != nil {
			return false, err
		}
		var next decimal.Decimal
		switch d.Op {
		case domain.OpDecrease:
			next = current.Sub(d.Quantity)
		case domain.OpIncrease:
			next = current.Add(d.Quantity)
		default:
			return false, fmt.Errorf("instruction %s: unknown inventory op %q", in.ID, d.Op)
		}
		if err := putStockTx(ctx, tx, in.TenantID, d.ProductID, d.LocationID, next, now); err != nil {
			return false, err
		}
	}
	if cf := in.CashFlow; cf != nil {
		_, err := tx.ExecContext(ctx, `INSERT INTO cash_flow(id,tenant_id,instruction_id,document_id,direction,amount,concept,created_at)
VALUES (?,?,?,?,?,?,?,?)`, uuid.NewString(), in.TenantID, in.ID, in.DocumentID, cf.Direction, cf.Amount.String(), cf.Concept, now)
		if err != nil {
			return false, err
		}
	}
	if err := r.events().Append(ctx, tx, events.InstructionApplied, in.TenantID, "instruction", in.ID, "relay", events.EventPayload{
		"document_id": in.DocumentID, "folio": in.Folio, "deltas": len(in.Inventory),
	}); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (r Repo) ListCashFlow(ctx context.Context, tenantID string, limit int) ([]domain.CashMovement, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,tenant_id,instruction_id,document_id,direction,amount,concept,created_at
FROM cash_flow WHERE tenant_id=? ORDER BY created_at DESC, id DESC LIMIT ?`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CashMovement
	for rows.Next() {
		var m domain.CashMovement
		if err := rows.Scan(&m.ID, &m.TenantID, &m.InstructionID, &m.DocumentID, &m.Direction, &m.Amount, &m.Concept, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
