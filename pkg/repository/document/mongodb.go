package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimburion/docprobe/pkg/observability/tracing"
	mongostore "github.com/nimburion/docprobe/pkg/store/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoAdapter implements Adapter for one MongoDB collection on top of store/mongodb.
// Text search uses the collection's text index; Params.SearchFields is ignored.
type MongoAdapter struct {
	store      *mongostore.Adapter
	collection string
}

// NewMongoAdapter binds a connected store adapter to a collection.
func NewMongoAdapter(store *mongostore.Adapter, collection string) (*MongoAdapter, error) {
	if store == nil {
		return nil, fmt.Errorf("mongodb adapter is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	return &MongoAdapter{store: store, collection: collection}, nil
}

func (a *MongoAdapter) span(ctx context.Context, op tracing.SpanOperation) (context.Context, func(error)) {
	ctx, span := tracing.StartDatabaseSpan(ctx, op,
		tracing.WithDBSystem("mongodb"),
		tracing.WithDBName(a.store.DatabaseName()),
		tracing.WithDBTable(a.collection),
	)
	return ctx, func(err error) {
		tracing.RecordError(span, err)
		span.End()
	}
}

func (a *MongoAdapter) Count(ctx context.Context, params Params) (n int64, err error) {
	ctx, end := a.span(ctx, tracing.SpanOperationDBQuery)
	defer func() { end(err) }()

	return a.store.CountDocuments(ctx, a.collection, mongoFilter(params.Query, params.Search))
}

func (a *MongoAdapter) Find(ctx context.Context, params Params) (docs []Document, err error) {
	ctx, end := a.span(ctx, tracing.SpanOperationDBQuery)
	defer func() { end(err) }()

	opts := options.Find()
	if params.Search != "" {
		opts.SetProjection(bson.M{ScoreField: bson.M{"$meta": "textScore"}})
	}
	if sort := mongoSort(params); len(sort) > 0 {
		opts.SetSort(sort)
	}
	if params.Offset > 0 {
		opts.SetSkip(int64(params.Offset))
	}
	if params.Limit > 0 {
		opts.SetLimit(int64(params.Limit))
	}

	raw, err := a.store.FindAll(ctx, a.collection, mongoFilter(params.Query, params.Search), opts)
	if err != nil {
		return nil, err
	}
	docs = make([]Document, 0, len(raw))
	for _, m := range raw {
		docs = append(docs, fromBSON(m))
	}
	return docs, nil
}

func (a *MongoAdapter) FindByID(ctx context.Context, id string) (doc Document, err error) {
	ctx, end := a.span(ctx, tracing.SpanOperationDBQuery)
	defer func() { end(err) }()

	out := bson.M{}
	if err := a.store.FindOne(ctx, a.collection, bson.M{IDField: mongoID(id)}, &out); err != nil {
		return nil, notFound("find", id, err)
	}
	return fromBSON(out), nil
}

func (a *MongoAdapter) FindByIDs(ctx context.Context, ids []string) (docs []Document, err error) {
	ctx, end := a.span(ctx, tracing.SpanOperationDBQuery)
	defer func() { end(err) }()

	values := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		values = append(values, mongoID(id))
	}
	raw, err := a.store.FindAll(ctx, a.collection, bson.M{IDField: bson.M{"$in": values}})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Document, len(raw))
	for _, m := range raw {
		doc := fromBSON(m)
		byID[doc.ID()] = doc
	}
	docs = make([]Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (a *MongoAdapter) Insert(ctx context.Context, doc Document) (saved Document, err error) {
	ctx, end := a.span(ctx, tracing.SpanOperationDBInsert)
	defer func() { end(err) }()

	payload := toBSON(doc)
	res, err := a.store.InsertOne(ctx, a.collection, payload)
	if err != nil {
		return nil, err
	}
	saved = fromBSON(payload)
	saved[IDField] = normalizeBSON(res.InsertedID)
	return saved, nil
}

func (a *MongoAdapter) InsertMany(ctx context.Context, docs []Document) (saved []Document, err error) {
	ctx, end := a.span(ctx, tracing.SpanOperationDBInsert)
	defer func() { end(err) }()

	if len(docs) == 0 {
		return []Document{}, nil
	}
	payloads := make([]bson.M, 0, len(docs))
	values := make([]interface{}, 0, len(docs))
	for _, doc := range docs {
		payload := toBSON(doc)
		payloads = append(payloads, payload)
		values = append(values, payload)
	}
	res, err := a.store.InsertMany(ctx, a.collection, values)
	if err != nil {
		return nil, err
	}
	saved = make([]Document, 0, len(payloads))
	for i, payload := range payloads {
		doc := fromBSON(payload)
		if i < len(res.InsertedIDs) {
			doc[IDField] = normalizeBSON(res.InsertedIDs[i])
		}
		saved = append(saved, doc)
	}
	return saved, nil
}

func (a *MongoAdapter) UpdateByID(ctx context.Context, id string, update Update) (doc Document, err error) {
	if update.IsZero() {
		return a.FindByID(ctx, id)
	}
	ctx, end := a.span(ctx, tracing.SpanOperationDBUpdate)
	defer func() { end(err) }()

	out := bson.M{}
	if err := a.store.FindOneAndUpdate(ctx, a.collection, bson.M{IDField: mongoID(id)}, mongoUpdate(update), &out); err != nil {
		return nil, notFound("update", id, err)
	}
	return fromBSON(out), nil
}

// UpdateMany returns the number of matched documents.
func (a *MongoAdapter) UpdateMany(ctx context.Context, filter Filter, update Update) (n int64, err error) {
	if update.IsZero() {
		return a.Count(ctx, Params{Query: filter})
	}
	ctx, end := a.span(ctx, tracing.SpanOperationDBUpdate)
	defer func() { end(err) }()

	res, err := a.store.UpdateMany(ctx, a.collection, mongoFilter(filter, ""), mongoUpdate(update))
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (a *MongoAdapter) RemoveByID(ctx context.Context, id string) (doc Document, err error) {
	ctx, end := a.span(ctx, tracing.SpanOperationDBDelete)
	defer func() { end(err) }()

	out := bson.M{}
	if err := a.store.FindOneAndDelete(ctx, a.collection, bson.M{IDField: mongoID(id)}, &out); err != nil {
		return nil, notFound("remove", id, err)
	}
	return fromBSON(out), nil
}

func (a *MongoAdapter) RemoveMany(ctx context.Context, filter Filter) (n int64, err error) {
	ctx, end := a.span(ctx, tracing.SpanOperationDBDelete)
	defer func() { end(err) }()

	res, err := a.store.DeleteMany(ctx, a.collection, mongoFilter(filter, ""))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (a *MongoAdapter) Clear(ctx context.Context) (int64, error) {
	return a.RemoveMany(ctx, nil)
}

func (a *MongoAdapter) CreateTextIndex(ctx context.Context, fields ...string) error {
	if _, err := a.store.CreateTextIndex(ctx, a.collection, fields); err != nil {
		return fmt.Errorf("create text index on %s: %w", a.collection, err)
	}
	return nil
}

func (a *MongoAdapter) HealthCheck(ctx context.Context) error {
	return a.store.HealthCheck(ctx)
}

func (a *MongoAdapter) Close() error {
	return a.store.Close()
}

func notFound(op, id string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %s: %w", op, id, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, id, err)
}

// mongoID maps a string ID back to an ObjectID when it is one.
func mongoID(id string) interface{} {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func mongoIDValue(v interface{}) interface{} {
	switch id := v.(type) {
	case string:
		return mongoID(id)
	case []string:
		out := make([]interface{}, 0, len(id))
		for _, s := range id {
			out = append(out, mongoID(s))
		}
		return out
	case []interface{}:
		out := make([]interface{}, 0, len(id))
		for _, item := range id {
			out = append(out, mongoIDValue(item))
		}
		return out
	}
	if ops, ok := operatorMap(v); ok {
		out := bson.M{}
		for op, operand := range ops {
			out[op] = mongoIDValue(operand)
		}
		return out
	}
	return v
}

func mongoFilter(filter Filter, search string) bson.M {
	out := bson.M{}
	for field, cond := range filter {
		if field == IDField {
			out[field] = mongoIDValue(cond)
			continue
		}
		out[field] = cond
	}
	if search != "" {
		out["$text"] = bson.M{"$search": search}
	}
	return out
}

func mongoSort(params Params) bson.D {
	keys := ParseSort(params.Sort)
	if len(keys) == 0 {
		if params.Search != "" {
			return bson.D{{Key: ScoreField, Value: bson.M{"$meta": "textScore"}}}
		}
		return nil
	}
	sort := make(bson.D, 0, len(keys))
	for _, key := range keys {
		dir := 1
		if key.Descending {
			dir = -1
		}
		sort = append(sort, bson.E{Key: key.Field, Value: dir})
	}
	return sort
}

func mongoUpdate(update Update) bson.M {
	out := bson.M{}
	if len(update.Set) > 0 {
		set := bson.M{}
		for field, value := range update.Set {
			if field == IDField {
				continue
			}
			set[field] = value
		}
		out["$set"] = set
	}
	if len(update.Unset) > 0 {
		unset := bson.M{}
		for _, field := range update.Unset {
			unset[field] = ""
		}
		out["$unset"] = unset
	}
	return out
}

func toBSON(doc Document) bson.M {
	out := bson.M{}
	for k, v := range doc {
		out[k] = v
	}
	if id := doc.ID(); id != "" {
		out[IDField] = mongoID(id)
	} else {
		delete(out, IDField)
	}
	return out
}

func fromBSON(m bson.M) Document {
	doc := make(Document, len(m))
	for k, v := range m {
		doc[k] = normalizeBSON(v)
	}
	return doc
}

// normalizeBSON turns driver types into plain Go values: ObjectIDs become hex strings and
// DateTimes become UTC times.
func normalizeBSON(v interface{}) interface{} {
	switch val := v.(type) {
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC()
	case bson.M:
		return map[string]any(fromBSON(val))
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = normalizeBSON(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, 0, len(val))
		for _, item := range val {
			out = append(out, normalizeBSON(item))
		}
		return out
	default:
		return v
	}
}
