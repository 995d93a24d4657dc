// Package document defines the CRUD contract docprobe drives against a document store,
// and ships the backends implementing it.
package document

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
)

const (
	// IDField holds the document identifier. It is always surfaced as a string.
	IDField = "_id"
	// ScoreField carries the relevance score of a text search hit.
	ScoreField = "_score"
)

// ErrNotFound is returned when a document addressed by ID does not exist.
var ErrNotFound = errors.New("document not found")

// Document is a schemaless record.
type Document map[string]any

// ID returns the document identifier, or "" when it has none.
func (d Document) ID() string {
	v, ok := d[IDField]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Clone returns a shallow copy of d.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return maps.Clone(d)
}

// Filter represents field-based filtering criteria. Values are either literals (equality)
// or operator maps such as {"$gt": 2}.
type Filter map[string]any

// Update describes a partial update. Set assigns fields, Unset removes them.
type Update struct {
	Set   Document
	Unset []string
}

// IsZero reports whether the update changes nothing.
func (u Update) IsZero() bool {
	return len(u.Set) == 0 && len(u.Unset) == 0
}

// Params parameterises Find and Count.
type Params struct {
	Query Filter
	// Search runs a full-text search over SearchFields, or over the text-indexed fields
	// when SearchFields is empty.
	Search       string
	SearchFields []string
	// Sort lists field names; a leading "-" sorts descending.
	Sort   []string
	Limit  int
	Offset int
}

// SortKey is one parsed Params.Sort element.
type SortKey struct {
	Field      string
	Descending bool
}

// ParseSort turns ["votes", "-title"] into sort keys, skipping blanks.
func ParseSort(fields []string) []SortKey {
	keys := make([]SortKey, 0, len(fields))
	for _, raw := range fields {
		field := strings.TrimSpace(raw)
		desc := false
		if strings.HasPrefix(field, "-") {
			desc = true
			field = strings.TrimSpace(field[1:])
		} else if strings.HasPrefix(field, "+") {
			field = strings.TrimSpace(field[1:])
		}
		if field == "" {
			continue
		}
		keys = append(keys, SortKey{Field: field, Descending: desc})
	}
	return keys
}

// Reader provides read operations.
type Reader interface {
	Count(ctx context.Context, params Params) (int64, error)
	Find(ctx context.Context, params Params) ([]Document, error)
	FindByID(ctx context.Context, id string) (Document, error)
	FindByIDs(ctx context.Context, ids []string) ([]Document, error)
}

// Writer provides write operations. Insert returns the stored document including its ID.
type Writer interface {
	Insert(ctx context.Context, doc Document) (Document, error)
	InsertMany(ctx context.Context, docs []Document) ([]Document, error)
	UpdateByID(ctx context.Context, id string, update Update) (Document, error)
	UpdateMany(ctx context.Context, filter Filter, update Update) (int64, error)
	RemoveByID(ctx context.Context, id string) (Document, error)
	RemoveMany(ctx context.Context, filter Filter) (int64, error)
	Clear(ctx context.Context) (int64, error)
}

// Adapter is the full document-store surface for one collection.
type Adapter interface {
	Reader
	Writer
	CreateTextIndex(ctx context.Context, fields ...string) error
	HealthCheck(ctx context.Context) error
	Close() error
}
