package repo

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ikhode/erp-modular-sub001/internal/domain"
	"github.com/ikhode/erp-modular-sub001/internal/lifecycle"
)

func newMockRepo(t *testing.T) (Repo, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return Repo{DB: conn}, mock
}

func TestCompareAndSwapRollsBackOnLostRace(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE documents SET state=?`)).
		WithArgs(domain.StateCompleted, 1, sqlmock.AnyArg(), "t1", "d1", domain.StatePending, 0).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM documents`)).
		WithArgs("t1", "d1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectRollback()

	_, err := r.CompareAndSwap(context.Background(), lifecycle.Swap{
		TenantID: "t1", DocumentID: "d1", ExpectedState: domain.StatePending, NewState: domain.StateCompleted, SideEffectsApplied: true,
	})
	assert.ErrorIs(t, err, lifecycle.ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompareAndSwapAuditFailureRollsBack(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE documents SET state=?`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO transitions`)).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := r.CompareAndSwap(context.Background(), lifecycle.Swap{
		TenantID: "t1", DocumentID: "d1", ExpectedState: domain.StatePending, NewState: domain.StateCancelled,
		Audit: domain.Transition{ID: "a1", TenantID: "t1", DocumentID: "d1"},
	})
	assert.EqualError(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompareAndSwapOutboxFailureRollsBack(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE documents SET state=?`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO transitions`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO instructions`)).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := r.CompareAndSwap(context.Background(), lifecycle.Swap{
		TenantID: "t1", DocumentID: "d1", ExpectedState: domain.StatePending, NewState: domain.StateCompleted, SideEffectsApplied: true,
		Audit:       domain.Transition{ID: "a1", TenantID: "t1", DocumentID: "d1"},
		Instruction: &domain.Instruction{ID: "i1", TenantID: "t1", DocumentID: "d1"},
	})
	assert.EqualError(t, err, "enqueue instruction: disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAuditFailureRollsBack(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT OR IGNORE INTO tenants`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO documents`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO transitions`)).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := r.Insert(context.Background(), domain.Document{ID: "d1", TenantID: "t1", Kind: domain.KindSale, State: domain.StatePending},
		domain.Transition{ID: "a1", TenantID: "t1", DocumentID: "d1", ToState: domain.StatePending})
	assert.EqualError(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertIfAbsentConflictSkipsEvent(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO signatures`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ok, err := r.InsertIfAbsent(context.Background(), domain.Signature{ID: "s1", TenantID: "t1", DocumentID: "d1", Role: "cliente"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyInstructionReplayIsNoop(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO applied_instructions`)).
		WithArgs("i1", "t1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	applied, err := r.ApplyInstruction(context.Background(), domain.Instruction{ID: "i1", TenantID: "t1",
		Inventory: []domain.InventoryDelta{{Op: domain.OpDecrease, ProductID: "p", LocationID: "l"}}})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNextFolioWrapsErrors(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO folio_counters`)).WillReturnError(errors.New("locked"))
	_, err := r.Next(context.Background(), "t1", "VTA")
	assert.ErrorContains(t, err, "next folio VTA: locked")
}
