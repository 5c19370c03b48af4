package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"

	"github.com/ikhode/erp-modular-sub001/internal/auth"
	"github.com/ikhode/erp-modular-sub001/internal/domain"
	"github.com/ikhode/erp-modular-sub001/internal/lifecycle"
	"github.com/ikhode/erp-modular-sub001/internal/repo"
)

func parseQuantity(field, raw string, required bool) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			return decimal.Zero, newAPIError(http.StatusBadRequest, "bad_request", field+" is required", nil)
		}
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, newAPIError(http.StatusBadRequest, "bad_request", field+" must be a decimal", map[string]any{"value": raw})
	}
	return v, nil
}

func formatSeq(n int64) string { return strconv.FormatInt(n, 10) }

type documentPath struct {
	ID string `path:"id"`
}

func (s *service) registerDocuments(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-document",
		Method:        http.MethodPost,
		Path:          "/documents",
		Summary:       "Create a document in its initial state",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateDocumentRequest `json:"body"`
	}) (*struct {
		Body DocumentResponse `json:"body"`
	}, error) {
		principal, tenant, err := s.requirePermission(ctx, auth.PermDocumentCreate)
		if err != nil {
			return nil, handleError(err)
		}
		b := input.Body
		qty, err := parseQuantity("quantity", b.Quantity, true)
		if err != nil {
			return nil, err
		}
		price, err := parseQuantity("unit_price", b.UnitPrice, false)
		if err != nil {
			return nil, err
		}
		doc, err := s.cfg.Engine.CreateDocument(ctx, tenant, lifecycle.CreateOptions{
			ID:             b.ID,
			Kind:           domain.Kind(b.Kind),
			ProductID:      b.ProductID,
			LocationID:     b.LocationID,
			FromLocationID: b.FromLocationID,
			ToLocationID:   b.ToLocationID,
			Quantity:       qty,
			UnitPrice:      price,
			DeliveryType:   b.DeliveryType,
			PurchaseType:   b.PurchaseType,
			PaymentMethod:  b.PaymentMethod,
			CounterpartyID: b.CounterpartyID,
			ActorID:        principal.ActorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DocumentResponse `json:"body"`
		}{Body: documentResponse(doc)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-documents",
		Method:      http.MethodGet,
		Path:        "/documents",
		Summary:     "List documents oldest first",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Kind   string `query:"kind" enum:"sale,purchase,transfer"`
		State  string `query:"state"`
		Limit  int    `query:"limit"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedDocuments `json:"body"`
	}, error) {
		_, tenant, err := s.requirePermission(ctx, auth.PermDocumentRead)
		if err != nil {
			return nil, handleError(err)
		}
		createdAt, id, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		limit := normalizeLimit(input.Limit)
		docs, err := s.cfg.Engine.ListDocuments(ctx, lifecycle.DocumentFilter{
			TenantID:        tenant,
			Kind:            domain.Kind(input.Kind),
			State:           domain.State(input.State),
			Limit:           limit + 1,
			CursorCreatedAt: createdAt,
			CursorID:        id,
		})
		if err != nil {
			return nil, handleError(err)
		}
		next := ""
		if len(docs) > limit {
			last := docs[limit-1]
			next = composeCursor(last.CreatedAt, last.ID)
			docs = docs[:limit]
		}
		items := make([]DocumentResponse, 0, len(docs))
		for _, d := range docs {
			items = append(items, documentResponse(d))
		}
		return &struct {
			Body paginatedDocuments `json:"body"`
		}{Body: paginatedDocuments{Items: items, NextCursor: next}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-document",
		Method:      http.MethodGet,
		Path:        "/documents/{id}",
		Summary:     "Get a document with its signed roles",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *documentPath) (*struct {
		Body DocumentResponse `json:"body"`
	}, error) {
		_, tenant, err := s.requirePermission(ctx, auth.PermDocumentRead)
		if err != nil {
			return nil, handleError(err)
		}
		doc, err := s.cfg.Engine.GetDocument(ctx, tenant, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DocumentResponse `json:"body"`
		}{Body: documentResponse(doc)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "request-transition",
		Method:      http.MethodPost,
		Path:        "/documents/{id}/transitions",
		Summary:     "Move a document to a target state",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body TransitionRequest `json:"body"`
	}) (*struct {
		Body DocumentResponse `json:"body"`
	}, error) {
		principal, tenant, err := s.requirePermission(ctx, auth.PermDocumentTransition)
		if err != nil {
			return nil, handleError(err)
		}
		target := strings.TrimSpace(input.Body.Target)
		if target == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "target is required", nil)
		}
		doc, err := s.cfg.Engine.RequestTransition(ctx, tenant, input.ID, domain.State(target), lifecycle.TransitionOptions{
			ActorID: principal.ActorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DocumentResponse `json:"body"`
		}{Body: documentResponse(doc)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-transitions",
		Method:      http.MethodGet,
		Path:        "/documents/{id}/transitions",
		Summary:     "Audit trail of a document",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *documentPath) (*struct {
		Body []domain.Transition `json:"body"`
	}, error) {
		_, tenant, err := s.requirePermission(ctx, auth.PermDocumentRead)
		if err != nil {
			return nil, handleError(err)
		}
		history, err := s.cfg.Engine.History(ctx, tenant, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Transition `json:"body"`
		}{Body: nonNilSlice(history)}, nil
	})
}

func (s *service) registerSignatures(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "capture-signature",
		Method:        http.MethodPost,
		Path:          "/documents/{id}/signatures",
		Summary:       "Capture the signature of a role",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body CaptureSignatureRequest `json:"body"`
	}) (*struct {
		Body SignatureResponse `json:"body"`
	}, error) {
		principal, tenant, err := s.requirePermission(ctx, auth.PermSignatureCapture)
		if err != nil {
			return nil, handleError(err)
		}
		image, err := lifecycle.DecodeImage(input.Body.Image)
		if err != nil {
			return nil, handleError(err)
		}
		sig, err := s.cfg.Engine.CaptureSignature(ctx, tenant, input.ID, strings.TrimSpace(input.Body.Role), image, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SignatureResponse `json:"body"`
		}{Body: signatureResponse(sig)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-signatures",
		Method:      http.MethodGet,
		Path:        "/documents/{id}/signatures",
		Summary:     "Signatures captured on a document",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *documentPath) (*struct {
		Body []SignatureResponse `json:"body"`
	}, error) {
		_, tenant, err := s.requirePermission(ctx, auth.PermDocumentRead)
		if err != nil {
			return nil, handleError(err)
		}
		doc, err := s.cfg.Engine.GetDocument(ctx, tenant, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		items := make([]SignatureResponse, 0, len(doc.Signatures))
		for _, role := range documentResponse(doc).SignedBy {
			item := signatureResponse(doc.Signatures[role])
			if item.ImageRef != "" && s.cfg.Links != nil {
				link, err := s.cfg.Links.DownloadURL(ctx, item.ImageRef)
				if err != nil {
					s.cfg.Auth.logger().Printf("signatures: link %s: %v", item.ImageRef, err)
				}
				item.DownloadURL = link
			}
			items = append(items, item)
		}
		return &struct {
			Body []SignatureResponse `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "signature-status",
		Method:      http.MethodGet,
		Path:        "/documents/{id}/signature-status",
		Summary:     "Roles required, present and missing for a target state",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		Target string `query:"target"`
	}) (*struct {
		Body lifecycle.SignatureStatus `json:"body"`
	}, error) {
		_, tenant, err := s.requirePermission(ctx, auth.PermDocumentRead)
		if err != nil {
			return nil, handleError(err)
		}
		st, err := s.cfg.Engine.SignatureStatus(ctx, tenant, input.ID, domain.State(strings.TrimSpace(input.Target)))
		if err != nil {
			return nil, handleError(err)
		}
		st.Required = nonNilSlice(st.Required)
		st.Present = nonNilSlice(st.Present)
		st.Missing = nonNilSlice(st.Missing)
		return &struct {
			Body lifecycle.SignatureStatus `json:"body"`
		}{Body: st}, nil
	})
}

func (s *service) registerStock(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-stock",
		Method:      http.MethodGet,
		Path:        "/stock",
		Summary:     "Stock levels by location",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ProductID string `query:"product_id"`
	}) (*struct {
		Body []StockResponse `json:"body"`
	}, error) {
		_, tenant, err := s.requirePermission(ctx, auth.PermStockRead)
		if err != nil {
			return nil, handleError(err)
		}
		levels, err := s.cfg.Repo.ListStock(ctx, tenant, input.ProductID)
		if err != nil {
			return nil, handleError(err)
		}
		items := make([]StockResponse, 0, len(levels))
		for _, l := range levels {
			items = append(items, stockResponse(l))
		}
		return &struct {
			Body []StockResponse `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-stock",
		Method:      http.MethodPut,
		Path:        "/stock",
		Summary:     "Set the on-hand quantity of a product at a location",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body SetStockRequest `json:"body"`
	}) (*struct {
		Body StockResponse `json:"body"`
	}, error) {
		principal, tenant, err := s.requirePermission(ctx, auth.PermStockWrite)
		if err != nil {
			return nil, handleError(err)
		}
		b := input.Body
		if strings.TrimSpace(b.ProductID) == "" || strings.TrimSpace(b.LocationID) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "product_id and location_id are required", nil)
		}
		qty, err := parseQuantity("quantity", b.Quantity, true)
		if err != nil {
			return nil, err
		}
		level, err := s.cfg.Repo.SetStock(ctx, tenant, b.ProductID, b.LocationID, qty, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StockResponse `json:"body"`
		}{Body: stockResponse(level)}, nil
	})
}

func (s *service) registerInstructions(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-instructions",
		Method:      http.MethodGet,
		Path:        "/instructions",
		Summary:     "Emitted side-effect instructions in emission order",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"pending,delivered"`
		After  int64  `query:"after"`
		Limit  int    `query:"limit"`
	}) (*struct {
		Body paginatedInstructions `json:"body"`
	}, error) {
		_, tenant, err := s.requirePermission(ctx, auth.PermInstructionsRead)
		if err != nil {
			return nil, handleError(err)
		}
		limit := normalizeLimit(input.Limit)
		entries, err := s.cfg.Repo.ListInstructions(ctx, repo.OutboxFilter{
			TenantID: tenant,
			Status:   input.Status,
			AfterSeq: input.After,
			Limit:    limit + 1,
		})
		if err != nil {
			return nil, handleError(err)
		}
		next := ""
		if len(entries) > limit {
			entries = entries[:limit]
			next = formatSeq(entries[limit-1].Seq)
		}
		items := make([]InstructionResponse, 0, len(entries))
		for _, e := range entries {
			items = append(items, instructionResponse(e))
		}
		return &struct {
			Body paginatedInstructions `json:"body"`
		}{Body: paginatedInstructions{Items: items, NextCursor: next}}, nil
	})
}

func (s *service) registerEvents(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Tenant event log, newest first",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Before     int64  `query:"before"`
		Limit      int    `query:"limit"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		_, tenant, err := s.requirePermission(ctx, auth.PermEventsRead)
		if err != nil {
			return nil, handleError(err)
		}
		limit := normalizeLimit(input.Limit)
		events, err := s.cfg.Repo.LatestEvents(ctx, repo.EventFilter{
			TenantID:   tenant,
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Before:     input.Before,
			Limit:      limit + 1,
		})
		if err != nil {
			return nil, handleError(err)
		}
		next := ""
		if len(events) > limit {
			events = events[:limit]
			next = formatSeq(events[limit-1].ID)
		}
		items := make([]EventResponse, 0, len(events))
		for _, e := range events {
			items = append(items, eventResponse(e))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: paginatedEvents{Items: items, NextCursor: next}}, nil
	})
}
