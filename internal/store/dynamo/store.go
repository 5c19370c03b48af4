package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/ikhode/erp-modular-sub001/internal/domain"
	"github.com/ikhode/erp-modular-sub001/internal/lifecycle"
)

// API is the subset of the DynamoDB client the store calls.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Tables names the tables the store uses. Documents are keyed by
// (tenant_id, id); signatures and transitions by (pk, sk) with
// pk = tenant#document; counters by pk = tenant#prefix. Outbox items share
// one partition and sort by created_at#id.
type Tables struct {
	Documents   string
	Signatures  string
	Transitions string
	Counters    string
	Outbox      string
}

// Store keeps documents, signatures, audit and folio counters in DynamoDB.
// Guarded transitions use a single TransactWriteItems call so the document
// update and its audit record commit together.
type Store struct {
	Client     API
	Tables     Tables
	FolioWidth int
}

var (
	_ lifecycle.Store         = (*Store)(nil)
	_ lifecycle.PendingOutbox = (*Store)(nil)
)

func New(client API, tables Tables) *Store {
	return &Store{Client: client, Tables: tables}
}

type documentItem struct {
	TenantID           string `dynamodbav:"tenant_id"`
	ID                 string `dynamodbav:"id"`
	Folio              string `dynamodbav:"folio"`
	Kind               string `dynamodbav:"kind"`
	State              string `dynamodbav:"state"`
	ProductID          string `dynamodbav:"product_id"`
	LocationID         string `dynamodbav:"location_id,omitempty"`
	FromLocationID     string `dynamodbav:"from_location_id,omitempty"`
	ToLocationID       string `dynamodbav:"to_location_id,omitempty"`
	Quantity           string `dynamodbav:"quantity"`
	UnitPrice          string `dynamodbav:"unit_price"`
	DeliveryType       string `dynamodbav:"delivery_type,omitempty"`
	PurchaseType       string `dynamodbav:"purchase_type,omitempty"`
	PaymentMethod      string `dynamodbav:"payment_method,omitempty"`
	CounterpartyID     string `dynamodbav:"counterparty_id,omitempty"`
	SideEffectsApplied bool   `dynamodbav:"side_effects_applied"`
	AuditSeq           int64  `dynamodbav:"audit_seq"`
	CreatedBy          string `dynamodbav:"created_by"`
	CreatedAt          string `dynamodbav:"created_at"`
	UpdatedAt          string `dynamodbav:"updated_at"`
}

func toDocumentItem(d domain.Document) documentItem {
	return documentItem{
		TenantID: d.TenantID, ID: d.ID, Folio: d.Folio, Kind: string(d.Kind), State: string(d.State),
		ProductID: d.ProductID, LocationID: d.LocationID, FromLocationID: d.FromLocationID, ToLocationID: d.ToLocationID,
		Quantity: d.Quantity.String(), UnitPrice: d.UnitPrice.String(),
		DeliveryType: d.DeliveryType, PurchaseType: d.PurchaseType, PaymentMethod: d.PaymentMethod,
		CounterpartyID: d.CounterpartyID, SideEffectsApplied: d.SideEffectsApplied,
		CreatedBy: d.CreatedBy, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

func (it documentItem) toDomain() (domain.Document, error) {
	qty, err := decimal.NewFromString(it.Quantity)
	if err != nil {
		return domain.Document{}, fmt.Errorf("document %s quantity: %w", it.ID, err)
	}
	price, err := decimal.NewFromString(it.UnitPrice)
	if err != nil {
		return domain.Document{}, fmt.Errorf("document %s unit_price: %w", it.ID, err)
	}
	return domain.Document{
		ID: it.ID, TenantID: it.TenantID, Folio: it.Folio, Kind: domain.Kind(it.Kind), State: domain.State(it.State),
		ProductID: it.ProductID, LocationID: it.LocationID, FromLocationID: it.FromLocationID, ToLocationID: it.ToLocationID,
		Quantity: qty, UnitPrice: price,
		DeliveryType: it.DeliveryType, PurchaseType: it.PurchaseType, PaymentMethod: it.PaymentMethod,
		CounterpartyID: it.CounterpartyID, SideEffectsApplied: it.SideEffectsApplied,
		CreatedBy: it.CreatedBy, CreatedAt: it.CreatedAt, UpdatedAt: it.UpdatedAt,
	}, nil
}

type signatureItem struct {
	PK          string `dynamodbav:"pk"`
	SK          string `dynamodbav:"sk"`
	ID          string `dynamodbav:"id"`
	TenantID    string `dynamodbav:"tenant_id"`
	DocumentID  string `dynamodbav:"document_id"`
	Image       []byte `dynamodbav:"image,omitempty"`
	ContentType string `dynamodbav:"content_type"`
	ImageRef    string `dynamodbav:"image_ref,omitempty"`
	CapturedBy  string `dynamodbav:"captured_by"`
	CapturedAt  string `dynamodbav:"captured_at"`
}

type transitionItem struct {
	PK         string `dynamodbav:"pk"`
	SK         string `dynamodbav:"sk"`
	ID         string `dynamodbav:"id"`
	TenantID   string `dynamodbav:"tenant_id"`
	DocumentID string `dynamodbav:"document_id"`
	FromState  string `dynamodbav:"from_state,omitempty"`
	ToState    string `dynamodbav:"to_state"`
	ActorID    string `dynamodbav:"actor_id"`
	TS         string `dynamodbav:"ts"`
}

func docPK(tenantID, documentID string) string { return tenantID + "#" + documentID }

func seqKey(n int64) string { return fmt.Sprintf("%010d", n) }

func toTransitionItem(rec domain.Transition, seq int64) transitionItem {
	actor := rec.ActorID
	if actor == "" {
		actor = "system"
	}
	return transitionItem{
		PK: docPK(rec.TenantID, rec.DocumentID), SK: seqKey(seq), ID: rec.ID, TenantID: rec.TenantID,
		DocumentID: rec.DocumentID, FromState: string(rec.FromState), ToState: string(rec.ToState), ActorID: actor, TS: rec.TS,
	}
}

func (s *Store) documentKey(tenantID, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"tenant_id": &types.AttributeValueMemberS{Value: tenantID},
		"id":        &types.AttributeValueMemberS{Value: id},
	}
}

func (s *Store) loadItem(ctx context.Context, tenantID, id string) (documentItem, error) {
	out, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.Tables.Documents),
		Key:            s.documentKey(tenantID, id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return documentItem{}, fmt.Errorf("get document %s: %w", id, err)
	}
	if len(out.Item) == 0 {
		return documentItem{}, fmt.Errorf("%w: %s", lifecycle.ErrNotFound, id)
	}
	var it documentItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return documentItem{}, err
	}
	return it, nil
}

func (s *Store) Load(ctx context.Context, tenantID, id string) (domain.Document, error) {
	it, err := s.loadItem(ctx, tenantID, id)
	if err != nil {
		return domain.Document{}, err
	}
	return it.toDomain()
}

// Insert writes the document at audit slot 1 together with its creation
// record.
func (s *Store) Insert(ctx context.Context, doc domain.Document, created domain.Transition) error {
	it := toDocumentItem(doc)
	it.AuditSeq = 1
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return err
	}
	audit, err := attributevalue.MarshalMap(toTransitionItem(created, 1))
	if err != nil {
		return err
	}
	_, err = s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                aws.String(s.Tables.Documents),
				Item:                     av,
				ConditionExpression:      aws.String("attribute_not_exists(#id)"),
				ExpressionAttributeNames: map[string]string{"#id": "id"},
			}},
			{Put: &types.Put{
				TableName: aws.String(s.Tables.Transitions),
				Item:      audit,
			}},
		},
	})
	if err != nil {
		if conditionFailed(err) {
			return fmt.Errorf("%w: document %s already exists", lifecycle.ErrInvalidDocument, doc.ID)
		}
		return fmt.Errorf("insert document %s: %w", doc.ID, err)
	}
	return nil
}

// CompareAndSwap reads the current audit sequence, then writes the guarded
// update, the next audit record and the outbox item (when the swap carries an
// instruction) in one transaction. The sequence is part of the guard, so two
// racing swaps cannot both claim the same audit slot.
func (s *Store) CompareAndSwap(ctx context.Context, sw lifecycle.Swap) (domain.Document, error) {
	cur, err := s.loadItem(ctx, sw.TenantID, sw.DocumentID)
	if err != nil {
		return domain.Document{}, err
	}
	if cur.State != string(sw.ExpectedState) || cur.SideEffectsApplied != sw.ExpectedApplied {
		return domain.Document{}, fmt.Errorf("%w: %s changed underneath", lifecycle.ErrConcurrentModification, sw.DocumentID)
	}
	next := cur.AuditSeq + 1

	cond := expression.Name("state").Equal(expression.Value(string(sw.ExpectedState))).
		And(expression.Name("side_effects_applied").Equal(expression.Value(sw.ExpectedApplied))).
		And(expression.Name("audit_seq").Equal(expression.Value(cur.AuditSeq)))
	update := expression.Set(expression.Name("state"), expression.Value(string(sw.NewState))).
		Set(expression.Name("side_effects_applied"), expression.Value(sw.SideEffectsApplied)).
		Set(expression.Name("updated_at"), expression.Value(sw.UpdatedAt)).
		Set(expression.Name("audit_seq"), expression.Value(next))
	expr, err := expression.NewBuilder().WithCondition(cond).WithUpdate(update).Build()
	if err != nil {
		return domain.Document{}, err
	}
	audit, err := attributevalue.MarshalMap(toTransitionItem(sw.Audit, next))
	if err != nil {
		return domain.Document{}, err
	}

	items := []types.TransactWriteItem{
		{Update: &types.Update{
			TableName:                 aws.String(s.Tables.Documents),
			Key:                       s.documentKey(sw.TenantID, sw.DocumentID),
			ConditionExpression:       expr.Condition(),
			UpdateExpression:          expr.Update(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}},
		{Put: &types.Put{
			TableName:                aws.String(s.Tables.Transitions),
			Item:                     audit,
			ConditionExpression:      aws.String("attribute_not_exists(#sk)"),
			ExpressionAttributeNames: map[string]string{"#sk": "sk"},
		}},
	}
	if sw.Instruction != nil {
		item, err := toOutboxItem(*sw.Instruction)
		if err != nil {
			return domain.Document{}, err
		}
		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			return domain.Document{}, err
		}
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName: aws.String(s.Tables.Outbox),
			Item:      av,
		}})
	}

	_, err = s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		if conditionFailed(err) {
			return domain.Document{}, fmt.Errorf("%w: %s changed underneath", lifecycle.ErrConcurrentModification, sw.DocumentID)
		}
		return domain.Document{}, fmt.Errorf("swap document %s: %w", sw.DocumentID, err)
	}

	cur.State = string(sw.NewState)
	cur.SideEffectsApplied = sw.SideEffectsApplied
	cur.UpdatedAt = sw.UpdatedAt
	cur.AuditSeq = next
	return cur.toDomain()
}

func conditionFailed(err error) bool {
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, r := range tce.CancellationReasons {
			if aws.ToString(r.Code) == "ConditionalCheckFailed" || aws.ToString(r.Code) == "TransactionConflict" {
				return true
			}
		}
		return false
	}
	var cfe *types.ConditionalCheckFailedException
	return errors.As(err, &cfe)
}

// AppendAudit reserves the next audit slot on the document and writes the
// record there.
func (s *Store) AppendAudit(ctx context.Context, rec domain.Transition) error {
	update := expression.Add(expression.Name("audit_seq"), expression.Value(1))
	cond := expression.AttributeExists(expression.Name("id"))
	expr, err := expression.NewBuilder().WithCondition(cond).WithUpdate(update).Build()
	if err != nil {
		return err
	}
	out, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.Tables.Documents),
		Key:                       s.documentKey(rec.TenantID, rec.DocumentID),
		ConditionExpression:       expr.Condition(),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return fmt.Errorf("%w: %s", lifecycle.ErrNotFound, rec.DocumentID)
		}
		return err
	}
	var seq struct {
		AuditSeq int64 `dynamodbav:"audit_seq"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &seq); err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(toTransitionItem(rec, seq.AuditSeq))
	if err != nil {
		return err
	}
	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.Tables.Transitions),
		Item:      av,
	})
	return err
}

func (s *Store) query(ctx context.Context, table string, key expression.KeyConditionBuilder, filter *expression.ConditionBuilder) ([]map[string]types.AttributeValue, error) {
	b := expression.NewBuilder().WithKeyCondition(key)
	if filter != nil {
		b = b.WithFilter(*filter)
	}
	expr, err := b.Build()
	if err != nil {
		return nil, err
	}
	p := dynamodb.NewQueryPaginator(s.Client, &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})
	var items []map[string]types.AttributeValue
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", table, err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

func (s *Store) Transitions(ctx context.Context, tenantID, documentID string) ([]domain.Transition, error) {
	items, err := s.query(ctx, s.Tables.Transitions,
		expression.Key("pk").Equal(expression.Value(docPK(tenantID, documentID))), nil)
	if err != nil {
		return nil, err
	}
	var recs []transitionItem
	if err := attributevalue.UnmarshalListOfMaps(items, &recs); err != nil {
		return nil, err
	}
	res := make([]domain.Transition, 0, len(recs))
	for _, r := range recs {
		res = append(res, domain.Transition{
			ID: r.ID, TenantID: r.TenantID, DocumentID: r.DocumentID,
			FromState: domain.State(r.FromState), ToState: domain.State(r.ToState), ActorID: r.ActorID, TS: r.TS,
		})
	}
	return res, nil
}

// List queries the tenant partition and orders by (created_at, id) in memory.
func (s *Store) List(ctx context.Context, f lifecycle.DocumentFilter) ([]domain.Document, error) {
	var filter *expression.ConditionBuilder
	addFilter := func(c expression.ConditionBuilder) {
		if filter == nil {
			filter = &c
			return
		}
		combined := filter.And(c)
		filter = &combined
	}
	if f.Kind != "" {
		addFilter(expression.Name("kind").Equal(expression.Value(string(f.Kind))))
	}
	if f.State != "" {
		addFilter(expression.Name("state").Equal(expression.Value(string(f.State))))
	}
	items, err := s.query(ctx, s.Tables.Documents, expression.Key("tenant_id").Equal(expression.Value(f.TenantID)), filter)
	if err != nil {
		return nil, err
	}
	var recs []documentItem
	if err := attributevalue.UnmarshalListOfMaps(items, &recs); err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt != recs[j].CreatedAt {
			return recs[i].CreatedAt < recs[j].CreatedAt
		}
		return recs[i].ID < recs[j].ID
	})
	var res []domain.Document
	for _, r := range recs {
		if f.CursorCreatedAt != "" && f.CursorID != "" {
			if r.CreatedAt < f.CursorCreatedAt || (r.CreatedAt == f.CursorCreatedAt && r.ID <= f.CursorID) {
				continue
			}
		}
		d, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		res = append(res, d)
		if f.Limit > 0 && len(res) == f.Limit {
			break
		}
	}
	return res, nil
}

func (s *Store) InsertIfAbsent(ctx context.Context, sig domain.Signature) (bool, error) {
	it := signatureItem{
		PK: docPK(sig.TenantID, sig.DocumentID), SK: sig.Role, ID: sig.ID, TenantID: sig.TenantID, DocumentID: sig.DocumentID,
		ContentType: sig.ContentType, ImageRef: sig.ImageRef, CapturedBy: sig.CapturedBy, CapturedAt: sig.CapturedAt,
	}
	if sig.ImageRef == "" {
		it.Image = sig.ImageData
	}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return false, err
	}
	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.Tables.Signatures),
		Item:                     av,
		ConditionExpression:      aws.String("attribute_not_exists(#sk)"),
		ExpressionAttributeNames: map[string]string{"#sk": "sk"},
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return false, nil
		}
		return false, fmt.Errorf("put signature %s/%s: %w", sig.DocumentID, sig.Role, err)
	}
	return true, nil
}

func (s *Store) Signatures(ctx context.Context, tenantID, documentID string) (map[string]domain.Signature, error) {
	items, err := s.query(ctx, s.Tables.Signatures,
		expression.Key("pk").Equal(expression.Value(docPK(tenantID, documentID))), nil)
	if err != nil {
		return nil, err
	}
	var recs []signatureItem
	if err := attributevalue.UnmarshalListOfMaps(items, &recs); err != nil {
		return nil, err
	}
	res := make(map[string]domain.Signature, len(recs))
	for _, r := range recs {
		res[r.SK] = domain.Signature{
			ID: r.ID, TenantID: r.TenantID, DocumentID: r.DocumentID, Role: r.SK, ImageData: r.Image,
			ContentType: r.ContentType, ImageRef: r.ImageRef, CapturedBy: r.CapturedBy, CapturedAt: r.CapturedAt,
		}
	}
	return res, nil
}

// Next increments the (tenant, prefix) counter atomically.
func (s *Store) Next(ctx context.Context, tenantID, prefix string) (string, error) {
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Add(expression.Name("value"), expression.Value(1))).
		Build()
	if err != nil {
		return "", err
	}
	out, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.Tables.Counters),
		Key:                       map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: tenantID + "#" + prefix}},
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return "", fmt.Errorf("next folio %s: %w", prefix, err)
	}
	var counter struct {
		Value int64 `dynamodbav:"value"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &counter); err != nil {
		return "", err
	}
	return lifecycle.FormatFolio(prefix, counter.Value, s.FolioWidth), nil
}

const outboxPartition = "pending"

// outboxItem holds a committed instruction until it reaches the relay
// outbox. The instruction is stored as JSON so decimals keep their text form.
type outboxItem struct {
	PK       string `dynamodbav:"pk"`
	SK       string `dynamodbav:"sk"`
	ID       string `dynamodbav:"id"`
	TenantID string `dynamodbav:"tenant_id"`
	Payload  string `dynamodbav:"payload"`
}

func outboxSK(in domain.Instruction) string { return in.CreatedAt + "#" + in.ID }

func toOutboxItem(in domain.Instruction) (outboxItem, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return outboxItem{}, fmt.Errorf("marshal instruction: %w", err)
	}
	return outboxItem{PK: outboxPartition, SK: outboxSK(in), ID: in.ID, TenantID: in.TenantID, Payload: string(payload)}, nil
}

// PendingInstructions reads up to limit outbox items in commit order.
func (s *Store) PendingInstructions(ctx context.Context, limit int) ([]domain.Instruction, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("pk").Equal(expression.Value(outboxPartition))).
		Build()
	if err != nil {
		return nil, err
	}
	in := &dynamodb.QueryInput{
		TableName:                 aws.String(s.Tables.Outbox),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}
	out, err := s.Client.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.Tables.Outbox, err)
	}
	var items []outboxItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, err
	}
	res := make([]domain.Instruction, 0, len(items))
	for _, it := range items {
		var ins domain.Instruction
		if err := json.Unmarshal([]byte(it.Payload), &ins); err != nil {
			return nil, fmt.Errorf("decode instruction %s: %w", it.ID, err)
		}
		res = append(res, ins)
	}
	return res, nil
}

// MarkForwarded drops the outbox item of in.
func (s *Store) MarkForwarded(ctx context.Context, in domain.Instruction) error {
	_, err := s.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.Tables.Outbox),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: outboxPartition},
			"sk": &types.AttributeValueMemberS{Value: outboxSK(in)},
		},
	})
	if err != nil {
		return fmt.Errorf("forward instruction %s: %w", in.ID, err)
	}
	return nil
}
