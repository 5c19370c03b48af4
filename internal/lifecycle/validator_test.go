package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ikhode/erp-modular-sub001/internal/domain"
)

func TestIsLegalMatchesAdjacency(t *testing.T) {
	legal := []struct {
		kind     domain.Kind
		from, to domain.State
	}{
		{domain.KindSale, domain.StatePending, domain.StatePreparing},
		{domain.KindSale, domain.StatePreparing, domain.StateInTransit},
		{domain.KindSale, domain.StateInTransit, domain.StateDelivered},
		{domain.KindPurchase, domain.StateDispatched, domain.StateLoading},
		{domain.KindPurchase, domain.StateLoading, domain.StateReturning},
		{domain.KindPurchase, domain.StateReturning, domain.StateCompleted},
		{domain.KindTransfer, domain.StatePending, domain.StateCompleted},
		{domain.KindTransfer, domain.StatePending, domain.StateCancelled},
	}
	edges := map[[3]string]bool{}
	for _, tc := range legal {
		assert.True(t, IsLegal(tc.kind, tc.from, tc.to), "%s %s->%s", tc.kind, tc.from, tc.to)
		edges[[3]string{string(tc.kind), string(tc.from), string(tc.to)}] = true
	}
	// every other pair among the kind's own states is illegal, including self loops
	for _, kind := range domain.Kinds {
		for _, from := range States(kind) {
			for _, to := range States(kind) {
				if edges[[3]string{string(kind), string(from), string(to)}] {
					continue
				}
				assert.False(t, IsLegal(kind, from, to), "%s %s->%s", kind, from, to)
			}
		}
	}
}

func TestIsLegalRejectsForeignStates(t *testing.T) {
	assert.False(t, IsLegal(domain.KindSale, domain.StatePending, domain.StateCompleted))
	assert.False(t, IsLegal(domain.KindPurchase, domain.StatePending, domain.StateLoading))
	assert.False(t, IsLegal(domain.KindTransfer, domain.StatePending, domain.StateDelivered))
	assert.False(t, IsLegal("refund", domain.StatePending, domain.StateCompleted))
}

func TestValidateTransitionError(t *testing.T) {
	err := ValidateTransition(domain.KindSale, domain.StatePending, domain.StateDelivered)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIllegalTransition))
	var ite *IllegalTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, domain.StatePending, ite.From)
	assert.Equal(t, domain.StateDelivered, ite.To)
	assert.NoError(t, ValidateTransition(domain.KindSale, domain.StatePending, domain.StatePreparing))
}

func TestTerminalAndEffectStates(t *testing.T) {
	assert.True(t, IsTerminal(domain.KindSale, domain.StateDelivered))
	assert.True(t, IsTerminal(domain.KindPurchase, domain.StateCompleted))
	assert.True(t, IsTerminal(domain.KindTransfer, domain.StateCompleted))
	assert.True(t, IsTerminal(domain.KindTransfer, domain.StateCancelled))
	assert.False(t, IsTerminal(domain.KindSale, domain.StateInTransit))
	assert.False(t, IsTerminal(domain.KindSale, "bogus"))

	assert.Equal(t, domain.StatePending, Initial(domain.KindSale))
	assert.Equal(t, domain.StateDispatched, Initial(domain.KindPurchase))
	assert.Equal(t, domain.StatePending, Initial(domain.KindTransfer))
	assert.Equal(t, domain.StateDelivered, EffectState(domain.KindSale))
	assert.Equal(t, domain.StateCompleted, EffectState(domain.KindPurchase))
	assert.Equal(t, domain.StateCompleted, EffectState(domain.KindTransfer))
}

func TestNextStates(t *testing.T) {
	assert.Equal(t, []domain.State{domain.StateCompleted, domain.StateCancelled}, NextStates(domain.KindTransfer, domain.StatePending))
	assert.Equal(t, []domain.State{domain.StateLoading}, NextStates(domain.KindPurchase, domain.StateDispatched))
	assert.Empty(t, NextStates(domain.KindSale, domain.StateDelivered))
}

func TestFormatFolio(t *testing.T) {
	assert.Equal(t, "VTA-000042", FormatFolio("VTA", 42, 0))
	assert.Equal(t, "CMP-0007", FormatFolio("CMP", 7, 4))
	assert.Equal(t, "TRF-1234567", FormatFolio("TRF", 1234567, 6))
}
