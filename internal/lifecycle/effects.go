package lifecycle

import (
	"fmt"

	"github.com/ikhode/erp-modular-sub001/internal/domain"
)

// instructionFor computes the side effect of doc entering its effect state.
// Cash flow is only recorded for documents settled in cash.
func instructionFor(doc domain.Document, id, ts string) domain.Instruction {
	in := domain.Instruction{
		ID:         id,
		TenantID:   doc.TenantID,
		DocumentID: doc.ID,
		Folio:      doc.Folio,
		Kind:       doc.Kind,
		CreatedAt:  ts,
	}
	switch doc.Kind {
	case domain.KindSale:
		in.Inventory = []domain.InventoryDelta{{
			Op: domain.OpDecrease, ProductID: doc.ProductID, LocationID: doc.LocationID, Quantity: doc.Quantity,
		}}
		if doc.PaymentMethod == domain.PaymentCash {
			in.CashFlow = &domain.CashFlowEntry{
				Direction: domain.CashIn,
				Amount:    doc.Total(),
				Concept:   fmt.Sprintf("sale %s", doc.Folio),
			}
		}
	case domain.KindPurchase:
		in.Inventory = []domain.InventoryDelta{{
			Op: domain.OpIncrease, ProductID: doc.ProductID, LocationID: doc.LocationID, Quantity: doc.Quantity,
		}}
		if doc.PaymentMethod == domain.PaymentCash {
			in.CashFlow = &domain.CashFlowEntry{
				Direction: domain.CashOut,
				Amount:    doc.Total(),
				Concept:   fmt.Sprintf("purchase %s", doc.Folio),
			}
		}
	case domain.KindTransfer:
		in.Inventory = []domain.InventoryDelta{
			{Op: domain.OpDecrease, ProductID: doc.ProductID, LocationID: doc.FromLocationID, Quantity: doc.Quantity},
			{Op: domain.OpIncrease, ProductID: doc.ProductID, LocationID: doc.ToLocationID, Quantity: doc.Quantity},
		}
	}
	return in
}

// decreases sums requested quantities per (product, location) so a single
// instruction touching one location twice is checked against the total.
func decreases(in domain.Instruction) []domain.InventoryDelta {
	var out []domain.InventoryDelta
	idx := map[string]int{}
	for _, d := range in.Inventory {
		if d.Op != domain.OpDecrease {
			continue
		}
		key := d.ProductID + "\x00" + d.LocationID
		if i, ok := idx[key]; ok {
			out[i].Quantity = out[i].Quantity.Add(d.Quantity)
			continue
		}
		idx[key] = len(out)
		out = append(out, d)
	}
	return out
}
