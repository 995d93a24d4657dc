// Package suite registers the CRUD checklist that exercises a document adapter end to end.
//
// The checks share state: later checks address documents by the identifiers earlier
// inserts captured into IDs, so they must run in registration order.
package suite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimburion/docprobe/pkg/checker"
	"github.com/nimburion/docprobe/pkg/repository/document"
)

// ErrChecksFailed is returned by Verify when at least one assertion failed.
var ErrChecksFailed = errors.New("checks failed")

const (
	basicAssertions    = 11
	extendedAssertions = 16
)

// IDs holds the identifiers captured by the insert checks.
type IDs struct {
	First  string
	Second string
	Third  string
}

// Options tunes the checklist.
type Options struct {
	// Extended appends the query, search, update and bulk-removal checks.
	Extended bool
	// Now stamps createdAt and updatedAt. Defaults to time.Now.
	Now func() time.Time
}

// ExpectedAssertions is the number of assertions Register records for opts.
func ExpectedAssertions(opts Options) int {
	if opts.Extended {
		return basicAssertions + extendedAssertions
	}
	return basicAssertions
}

// AfterConnected returns a host hook that empties the collection and creates the text
// index used by the search check.
func AfterConnected(fields []string) func(ctx context.Context, adapter document.Adapter) error {
	return func(ctx context.Context, adapter document.Adapter) error {
		if _, err := adapter.Clear(ctx); err != nil {
			return fmt.Errorf("clear collection: %w", err)
		}
		if len(fields) == 0 {
			return nil
		}
		if err := adapter.CreateTextIndex(ctx, fields...); err != nil {
			return fmt.Errorf("create text index: %w", err)
		}
		return nil
	}
}

// Verify turns a finished report into ErrChecksFailed when any assertion failed.
func Verify(report checker.Report) error {
	if report.OK() {
		return nil
	}
	return fmt.Errorf("%w: %d of %d assertion(s)", ErrChecksFailed, report.Failed, report.Total())
}

type checklist struct {
	c       *checker.Checker
	adapter func() document.Adapter
	ids     *IDs
	now     func() time.Time
}

// Register adds the checklist to c. adapter is resolved when each check runs, so the
// checklist may be registered before the host has connected.
func Register(c *checker.Checker, adapter func() document.Adapter, ids *IDs, opts Options) {
	l := &checklist{c: c, adapter: adapter, ids: ids, now: opts.Now}
	if l.now == nil {
		l.now = time.Now
	}
	l.basic()
	if opts.Extended {
		l.extended()
	}
}

func (l *checklist) count(expected int64, query document.Filter) {
	name := "COUNT"
	if query != nil {
		name = "COUNT by query ($gt)"
	}
	checker.Register(l.c, name, func(ctx context.Context) (int64, error) {
		return l.adapter().Count(ctx, document.Params{Query: query})
	}, func(n int64) checker.Outcome {
		return checker.Single(n == expected)
	})
}

func (l *checklist) insertFirst(name string) {
	createdAt := l.now().UnixMilli()
	checker.Register(l.c, name, func(ctx context.Context) (document.Document, error) {
		return l.adapter().Insert(ctx, document.Document{
			"title":     "Hello",
			"content":   "Post content",
			"votes":     3,
			"status":    true,
			"createdAt": createdAt,
		})
	}, func(doc document.Document) checker.Outcome {
		l.ids.First = doc.ID()
		return checker.Single(l.ids.First != "" &&
			textIs(doc, "title", "Hello") &&
			textIs(doc, "content", "Post content") &&
			intIs(doc, "votes", 3) &&
			boolIs(doc, "status", true) &&
			intIs(doc, "createdAt", createdAt))
	})
}

func (l *checklist) basic() {
	l.count(0, nil)
	l.insertFirst("INSERT")

	checker.Register(l.c, "FIND", func(ctx context.Context) ([]document.Document, error) {
		return l.adapter().Find(ctx, document.Params{})
	}, func(docs []document.Document) checker.Outcome {
		return checker.Single(len(docs) == 1 && docs[0].ID() == l.ids.First)
	})

	checker.Register(l.c, "GET BY ID", func(ctx context.Context) (document.Document, error) {
		return l.adapter().FindByID(ctx, l.ids.First)
	}, func(doc document.Document) checker.Outcome {
		return checker.Single(doc.ID() == l.ids.First)
	})

	l.count(1, nil)

	checker.Register(l.c, "INSERT MANY", func(ctx context.Context) ([]document.Document, error) {
		return l.adapter().InsertMany(ctx, []document.Document{
			{"title": "Second", "content": "Second post content", "votes": 8, "status": true, "createdAt": l.now().UnixMilli()},
			{"title": "Last", "content": "Last document", "votes": 1, "status": false, "createdAt": l.now().UnixMilli()},
		})
	}, func(docs []document.Document) checker.Outcome {
		if len(docs) != 2 {
			return checker.Multi(false, false, false)
		}
		l.ids.Second = docs[0].ID()
		l.ids.Third = docs[1].ID()
		return checker.Multi(
			true,
			l.ids.Second != "" && textIs(docs[0], "title", "Second") && intIs(docs[0], "votes", 8),
			l.ids.Third != "" && textIs(docs[1], "title", "Last") && intIs(docs[1], "votes", 1) && boolIs(docs[1], "status", false),
		)
	})

	l.count(3, nil)

	checker.Register(l.c, "REMOVE BY ID", func(ctx context.Context) (document.Document, error) {
		return l.adapter().RemoveByID(ctx, l.ids.First)
	}, func(doc document.Document) checker.Outcome {
		return checker.Single(doc.ID() == l.ids.First)
	})

	l.count(2, nil)
}

func (l *checklist) extended() {
	// Restores the first post so the sort and bulk checks see three documents.
	l.insertFirst("INSERT again")

	checker.Register(l.c, "FIND by query", func(ctx context.Context) ([]document.Document, error) {
		return l.adapter().Find(ctx, document.Params{Query: document.Filter{"title": "Last"}})
	}, func(docs []document.Document) checker.Outcome {
		return checker.Single(len(docs) == 1 && docs[0].ID() == l.ids.Third)
	})

	checker.Register(l.c, "FIND by limit, sort, offset", func(ctx context.Context) ([]document.Document, error) {
		return l.adapter().Find(ctx, document.Params{Limit: 1, Offset: 1, Sort: []string{"votes", "-title"}})
	}, func(docs []document.Document) checker.Outcome {
		return checker.Single(len(docs) == 1 && docs[0].ID() == l.ids.First)
	})

	popular := document.Filter{"votes": map[string]any{"$gt": 2}}
	checker.Register(l.c, "FIND by query ($gt)", func(ctx context.Context) ([]document.Document, error) {
		return l.adapter().Find(ctx, document.Params{Query: popular})
	}, func(docs []document.Document) checker.Outcome {
		return checker.Single(len(docs) == 2)
	})

	l.count(2, popular)

	checker.Register(l.c, "FIND by text search", func(ctx context.Context) ([]document.Document, error) {
		return l.adapter().Find(ctx, document.Params{Search: "content"})
	}, func(docs []document.Document) checker.Outcome {
		return checker.Multi(
			len(docs) == 2,
			len(docs) > 0 && partialHit(docs[0], "Hello"),
			len(docs) > 1 && partialHit(docs[1], "Second"),
		)
	})

	checker.Register(l.c, "GET BY IDS", func(ctx context.Context) ([]document.Document, error) {
		return l.adapter().FindByIDs(ctx, []string{l.ids.Third, l.ids.First})
	}, func(docs []document.Document) checker.Outcome {
		return checker.Single(len(docs) == 2)
	})

	checker.Register(l.c, "UPDATE", func(ctx context.Context) (document.Document, error) {
		return l.adapter().UpdateByID(ctx, l.ids.Third, document.Update{Set: document.Document{
			"title":     "Last 2",
			"updatedAt": l.now().UTC(),
			"status":    true,
		}})
	}, func(doc document.Document) checker.Outcome {
		return checker.Single(doc.ID() == l.ids.Third &&
			textIs(doc, "title", "Last 2") &&
			textIs(doc, "content", "Last document") &&
			intIs(doc, "votes", 1) &&
			boolIs(doc, "status", true) &&
			doc.Has("updatedAt"))
	})

	unpopular := document.Filter{"votes": map[string]any{"$lt": 5}}
	checker.Register(l.c, "UPDATE BY QUERY", func(ctx context.Context) (int64, error) {
		return l.adapter().UpdateMany(ctx, unpopular, document.Update{Set: document.Document{"status": false}})
	}, func(n int64) checker.Outcome {
		return checker.Single(n == 2)
	})

	checker.Register(l.c, "REMOVE BY QUERY", func(ctx context.Context) (int64, error) {
		return l.adapter().RemoveMany(ctx, unpopular)
	}, func(n int64) checker.Outcome {
		return checker.Single(n == 2)
	})

	l.count(1, nil)

	checker.Register(l.c, "REMOVE BY ID", func(ctx context.Context) (document.Document, error) {
		return l.adapter().RemoveByID(ctx, l.ids.Second)
	}, func(doc document.Document) checker.Outcome {
		return checker.Single(doc != nil && doc.ID() == l.ids.Second)
	})

	l.count(0, nil)

	checker.Register(l.c, "CLEAR", func(ctx context.Context) (int64, error) {
		return l.adapter().Clear(ctx)
	}, func(n int64) checker.Outcome {
		return checker.Single(n == 0)
	})
}

// partialHit reports a search hit on title whose relevance is below a full match.
func partialHit(doc document.Document, title string) bool {
	score, ok := doc.Float(document.ScoreField)
	return ok && score > 0 && score < 1 && textIs(doc, "title", title)
}

func textIs(doc document.Document, field, want string) bool {
	got, ok := doc.Text(field)
	return ok && got == want
}

func intIs(doc document.Document, field string, want int64) bool {
	got, ok := doc.Int(field)
	return ok && got == want
}

func boolIs(doc document.Document, field string, want bool) bool {
	got, ok := doc.Bool(field)
	return ok && got == want
}
