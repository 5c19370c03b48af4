package lifecycle

import "github.com/ikhode/erp-modular-sub001/internal/domain"

type chain struct {
	initial domain.State
	effect  domain.State
	order   []domain.State
	edges   map[domain.State]map[domain.State]struct{}
}

// adjacency is the single transition table shared by sales, purchases and
// transfers. A state with no outgoing edges is terminal.
var adjacency = map[domain.Kind]chain{
	domain.KindSale: {
		initial: domain.StatePending,
		effect:  domain.StateDelivered,
		order:   []domain.State{domain.StatePending, domain.StatePreparing, domain.StateInTransit, domain.StateDelivered},
		edges: map[domain.State]map[domain.State]struct{}{
			domain.StatePending:   {domain.StatePreparing: {}},
			domain.StatePreparing: {domain.StateInTransit: {}},
			domain.StateInTransit: {domain.StateDelivered: {}},
			domain.StateDelivered: {},
		},
	},
	domain.KindPurchase: {
		initial: domain.StateDispatched,
		effect:  domain.StateCompleted,
		order:   []domain.State{domain.StateDispatched, domain.StateLoading, domain.StateReturning, domain.StateCompleted},
		edges: map[domain.State]map[domain.State]struct{}{
			domain.StateDispatched: {domain.StateLoading: {}},
			domain.StateLoading:    {domain.StateReturning: {}},
			domain.StateReturning:  {domain.StateCompleted: {}},
			domain.StateCompleted:  {},
		},
	},
	domain.KindTransfer: {
		initial: domain.StatePending,
		effect:  domain.StateCompleted,
		order:   []domain.State{domain.StatePending, domain.StateCompleted, domain.StateCancelled},
		edges: map[domain.State]map[domain.State]struct{}{
			domain.StatePending:   {domain.StateCompleted: {}, domain.StateCancelled: {}},
			domain.StateCompleted: {},
			domain.StateCancelled: {},
		},
	},
}

// IsLegal reports whether (kind, from, to) is an edge of the table.
func IsLegal(kind domain.Kind, from, to domain.State) bool {
	c, ok := adjacency[kind]
	if !ok {
		return false
	}
	next, ok := c.edges[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// ValidateTransition is IsLegal returning an *IllegalTransitionError.
func ValidateTransition(kind domain.Kind, from, to domain.State) error {
	if !IsLegal(kind, from, to) {
		return &IllegalTransitionError{Kind: kind, From: from, To: to}
	}
	return nil
}

// IsTerminal reports whether state has no outgoing edges for kind. Unknown
// states are not terminal; they fail as illegal instead.
func IsTerminal(kind domain.Kind, state domain.State) bool {
	c, ok := adjacency[kind]
	if !ok {
		return false
	}
	next, ok := c.edges[state]
	return ok && len(next) == 0
}

func Initial(kind domain.Kind) domain.State {
	return adjacency[kind].initial
}

// EffectState is the terminal state whose entry emits the side-effect instruction.
func EffectState(kind domain.Kind) domain.State {
	return adjacency[kind].effect
}

// States lists the states of kind in chain order.
func States(kind domain.Kind) []domain.State {
	c := adjacency[kind]
	out := make([]domain.State, len(c.order))
	copy(out, c.order)
	return out
}

// NextStates lists the legal targets from state, in chain order.
func NextStates(kind domain.Kind, state domain.State) []domain.State {
	c, ok := adjacency[kind]
	if !ok {
		return nil
	}
	var out []domain.State
	for _, s := range c.order {
		if _, ok := c.edges[state][s]; ok {
			out = append(out, s)
		}
	}
	return out
}
