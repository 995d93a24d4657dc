package document

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/nimburion/docprobe/pkg/observability/tracing"
	dynamostore "github.com/nimburion/docprobe/pkg/store/dynamodb"
)

// DynamoAdapter implements Adapter over one DynamoDB table keyed by a string "_id".
// Queries, sorting and text search are evaluated client-side over a full scan, so it
// suits test-sized tables only.
type DynamoAdapter struct {
	store *dynamostore.Adapter
	table string
	newID func() string

	mu        sync.RWMutex
	textIndex []string
}

// NewDynamoAdapter binds a connected store adapter to table. Call EnsureTable on the
// store first when the table may not exist.
func NewDynamoAdapter(store *dynamostore.Adapter, table string) (*DynamoAdapter, error) {
	if store == nil {
		return nil, fmt.Errorf("dynamodb adapter is required")
	}
	if table == "" {
		return nil, fmt.Errorf("table name is required")
	}
	return &DynamoAdapter{
		store: store,
		table: table,
		newID: func() string { return uuid.NewString() },
	}, nil
}

func (a *DynamoAdapter) span(ctx context.Context, op tracing.SpanOperation) (context.Context, func(error)) {
	ctx, span := tracing.StartDatabaseSpan(ctx, op,
		tracing.WithDBSystem("dynamodb"),
		tracing.WithDBTable(a.table),
	)
	return ctx, func(err error) {
		tracing.RecordError(span, err)
		span.End()
	}
}

func (a *DynamoAdapter) searchFields() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.textIndex
}

func (a *DynamoAdapter) scan(ctx context.Context) ([]Document, error) {
	items, err := a.store.ScanAll(ctx, &dynamodb.ScanInput{
		TableName:      aws.String(a.table),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", a.table, err)
	}
	docs := make([]Document, 0, len(items))
	for _, item := range items {
		doc, err := fromItem(item)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	// Scan order is unspecified; keep results stable across calls.
	SortDocuments(docs, []SortKey{{Field: IDField}})
	return docs, nil
}

func (a *DynamoAdapter) Count(ctx context.Context, params Params) (n int64, err error) {
	ctx, end := a.span(ctx, tracing.SpanOperationDBQuery)
	defer func() { end(err) }()

	docs, err := a.scan(ctx)
	if err != nil {
		return 0, err
	}
	params.Limit, params.Offset = 0, 0
	hits, err := Apply(docs, params, a.searchFields())
	if err != nil {
		return 0, err
	}
	return int64(len(hits)), nil
}

func (a *DynamoAdapter) Find(ctx context.Context, params Params) (docs []Document, err error) {
	ctx, end := a.span(ctx, tracing.SpanOperationDBQuery)
	defer func() { end(err) }()

	all, err := a.scan(ctx)
	if err != nil {
		return nil, err
	}
	return Apply(all, params, a.searchFields())
}

func (a *DynamoAdapter) FindByID(ctx context.Context, id string) (doc Document, err error) {
	ctx, end := a.span(ctx, tracing.SpanOperationDBQuery)
	defer func() { end(err) }()

	return a.get(ctx, id)
}

func (a *DynamoAdapter) get(ctx context.Context, id string) (Document, error) {
	out, err := a.store.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(a.table),
		Key:            itemKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", id, err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("find %s: %w", id, ErrNotFound)
	}
	return fromItem(out.Item)
}

// FindByIDs returns the documents that exist, in the order of ids.
func (a *DynamoAdapter) FindByIDs(ctx context.Context, ids []string) (docs []Document, err error) {
	ctx, end := a.span(ctx, tracing.SpanOperationDBQuery)
	defer func() { end(err) }()

	docs = make([]Document, 0, len(ids))
	for _, id := range ids {
		doc, err := a.get(ctx, id)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (a *DynamoAdapter) Insert(ctx context.Context, doc Document) (saved Document, err error) {
	ctx, end := a.span(ctx, tracing.SpanOperationDBInsert)
	defer func() { end(err) }()

	saved = a.withID(doc)
	item, err := toItem(saved)
	if err != nil {
		return nil, err
	}
	_, err = a.store.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(a.table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": IDField},
	})
	if dynamostore.IsConditionFailed(err) {
		return nil, fmt.Errorf("duplicate document id %s", saved.ID())
	}
	if err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}
	return saved, nil
}

// InsertMany writes docs with BatchWriteItem. DynamoDB batches are not transactional:
// on error some documents may already be stored.
func (a *DynamoAdapter) InsertMany(ctx context.Context, docs []Document) (saved []Document, err error) {
	ctx, end := a.span(ctx, tracing.SpanOperationDBInsert)
	defer func() { end(err) }()

	saved = make([]Document, 0, len(docs))
	requests := make([]types.WriteRequest, 0, len(docs))
	for i, doc := range docs {
		stored := a.withID(doc)
		item, err := toItem(stored)
		if err != nil {
			return nil, fmt.Errorf("insert document %d: %w", i, err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
		saved = append(saved, stored)
	}
	if err := a.store.BatchWrite(ctx, a.table, requests); err != nil {
		return nil, err
	}
	return saved, nil
}

func (a *DynamoAdapter) UpdateByID(ctx context.Context, id string, update Update) (doc Document, err error) {
	ctx, end := a.span(ctx, tracing.SpanOperationDBUpdate)
	defer func() { end(err) }()

	current, err := a.get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}
	next := ApplyUpdate(current, update)
	if err := a.replace(ctx, next); err != nil {
		return nil, fmt.Errorf("update %s: %w", id, err)
	}
	return next, nil
}

// UpdateMany returns the number of documents matching filter.
func (a *DynamoAdapter) UpdateMany(ctx context.Context, filter Filter, update Update) (n int64, err error) {
	ctx, end := a.span(ctx, tracing.SpanOperationDBUpdate)
	defer func() { end(err) }()

	docs, err := a.scan(ctx)
	if err != nil {
		return 0, err
	}
	for _, doc := range docs {
		ok, err := Match(doc, filter)
		if err != nil {
			return n, err
		}
		if !ok {
			continue
		}
		if err := a.replace(ctx, ApplyUpdate(doc, update)); err != nil {
			return n, fmt.Errorf("update %s: %w", doc.ID(), err)
		}
		n++
	}
	return n, nil
}

func (a *DynamoAdapter) replace(ctx context.Context, doc Document) error {
	item, err := toItem(doc)
	if err != nil {
		return err
	}
	_, err = a.store.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(a.table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": IDField},
	})
	if dynamostore.IsConditionFailed(err) {
		return ErrNotFound
	}
	return err
}

func (a *DynamoAdapter) RemoveByID(ctx context.Context, id string) (doc Document, err error) {
	ctx, end := a.span(ctx, tracing.SpanOperationDBDelete)
	defer func() { end(err) }()

	out, err := a.store.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(a.table),
		Key:          itemKey(id),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return nil, fmt.Errorf("remove %s: %w", id, err)
	}
	if len(out.Attributes) == 0 {
		return nil, fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	return fromItem(out.Attributes)
}

func (a *DynamoAdapter) RemoveMany(ctx context.Context, filter Filter) (n int64, err error) {
	ctx, end := a.span(ctx, tracing.SpanOperationDBDelete)
	defer func() { end(err) }()

	docs, err := a.scan(ctx)
	if err != nil {
		return 0, err
	}
	var requests []types.WriteRequest
	for _, doc := range docs {
		ok, err := Match(doc, filter)
		if err != nil {
			return 0, err
		}
		if ok {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: itemKey(doc.ID())},
			})
		}
	}
	if err := a.store.BatchWrite(ctx, a.table, requests); err != nil {
		return 0, err
	}
	return int64(len(requests)), nil
}

func (a *DynamoAdapter) Clear(ctx context.Context) (int64, error) {
	return a.RemoveMany(ctx, nil)
}

// CreateTextIndex records the fields searched when Params.SearchFields is empty.
// DynamoDB has no text index; search runs client-side.
func (a *DynamoAdapter) CreateTextIndex(ctx context.Context, fields ...string) error {
	if len(fields) == 0 {
		return fmt.Errorf("text index requires at least one field")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.textIndex = slices.Clone(fields)
	return nil
}

func (a *DynamoAdapter) HealthCheck(ctx context.Context) error {
	return a.store.HealthCheck(ctx)
}

func (a *DynamoAdapter) Close() error {
	return a.store.Close()
}

func (a *DynamoAdapter) withID(doc Document) Document {
	out := doc.Clone()
	if out == nil {
		out = Document{}
	}
	if out.ID() == "" {
		out[IDField] = a.newID()
	} else {
		out[IDField] = out.ID()
	}
	return out
}

func itemKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		IDField: &types.AttributeValueMemberS{Value: id},
	}
}

func toItem(doc Document) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(map[string]any(doc))
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return item, nil
}

// fromItem decodes an item; numbers come back as float64.
func fromItem(item map[string]types.AttributeValue) (Document, error) {
	var m map[string]any
	if err := attributevalue.UnmarshalMap(item, &m); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return Document(m), nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
