package document

import (
	"testing"
	"time"
)

func TestMatch(t *testing.T) {
	doc := Document{
		"_id":       "a",
		"title":     "Hello World",
		"votes":     int64(3),
		"published": true,
		"createdAt": time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter", nil, true},
		{"equality", Filter{"title": "Hello World"}, true},
		{"equality across numeric kinds", Filter{"votes": 3}, true},
		{"equality mismatch", Filter{"title": "other"}, false},
		{"missing field", Filter{"author": "x"}, false},
		{"$gt", Filter{"votes": map[string]any{"$gt": 2}}, true},
		{"$gt boundary", Filter{"votes": map[string]any{"$gt": 3}}, false},
		{"$gte", Filter{"votes": map[string]any{"$gte": 3.0}}, true},
		{"$lt", Filter{"votes": map[string]any{"$lt": 3}}, false},
		{"$lte", Filter{"votes": Filter{"$lte": 3}}, true},
		{"range", Filter{"votes": map[string]any{"$gt": 1, "$lt": 5}}, true},
		{"$ne", Filter{"title": map[string]any{"$ne": "x"}}, true},
		{"$ne on missing field", Filter{"author": map[string]any{"$ne": "x"}}, true},
		{"$in", Filter{"votes": map[string]any{"$in": []int{1, 3}}}, true},
		{"$nin", Filter{"votes": map[string]any{"$nin": []any{1, 3}}}, false},
		{"$exists true", Filter{"published": map[string]any{"$exists": true}}, true},
		{"$exists false", Filter{"author": map[string]any{"$exists": false}}, true},
		{"time comparison", Filter{"createdAt": map[string]any{"$lt": time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}}, true},
		{"incomparable types", Filter{"title": map[string]any{"$gt": 1}}, false},
		{"conjunction", Filter{"title": "Hello World", "votes": 4}, false},
		{"literal map is equality", Filter{"meta": map[string]any{"k": 1}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Match(doc, tt.filter)
			if err != nil {
				t.Fatalf("Match() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatch_InvalidOperators(t *testing.T) {
	doc := Document{"votes": 1}
	for _, filter := range []Filter{
		{"votes": map[string]any{"$regex": "x"}},
		{"votes": map[string]any{"$in": 1}},
		{"votes": map[string]any{"$exists": "yes"}},
	} {
		if _, err := Match(doc, filter); err == nil {
			t.Errorf("Match(%v) expected error", filter)
		}
	}
}

func TestParseSort(t *testing.T) {
	keys := ParseSort([]string{"votes", "-title", " +createdAt ", "", "-"})
	want := []SortKey{
		{Field: "votes"},
		{Field: "title", Descending: true},
		{Field: "createdAt"},
	}
	if len(keys) != len(want) {
		t.Fatalf("ParseSort() = %+v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d = %+v, want %+v", i, keys[i], want[i])
		}
	}
}

func TestSortDocuments(t *testing.T) {
	docs := []Document{
		{"_id": "1", "votes": 2, "title": "b"},
		{"_id": "2", "votes": 1, "title": "a"},
		{"_id": "3", "title": "c"},
		{"_id": "4", "votes": 2, "title": "a"},
	}
	SortDocuments(docs, []SortKey{{Field: "votes", Descending: true}, {Field: "title"}})

	got := ""
	for _, d := range docs {
		got += d.ID()
	}
	if got != "4123" {
		t.Fatalf("order = %s, want 4123", got)
	}
}

func TestTextScore(t *testing.T) {
	fields := []string{"title", "body"}
	hello := Document{"title": "Hello", "body": "First post"}
	second := Document{"title": "Second post", "body": "Second post body"}
	none := Document{"title": "Nothing", "body": "here"}

	if s := TextScore(hello, "hello", fields); s <= 0 || s >= 1 {
		t.Fatalf("hello score = %v, want in (0,1)", s)
	}
	if s := TextScore(second, "second", []string{"title"}); s != 0.5 {
		t.Fatalf("second score = %v, want 0.5", s)
	}
	if s := TextScore(none, "hello", fields); s != 0 {
		t.Fatalf("non-matching score = %v", s)
	}
	if s := TextScore(hello, "   ", fields); s != 0 {
		t.Fatalf("blank search score = %v", s)
	}
	if s := TextScore(hello, "HELLO!", []string{"title"}); s != 1 {
		t.Fatalf("case-insensitive score = %v, want 1", s)
	}
}

func TestApply(t *testing.T) {
	docs := []Document{
		{"_id": "1", "title": "Hello", "body": "First post", "votes": 1},
		{"_id": "2", "title": "Second post", "body": "Hello again", "votes": 5},
		{"_id": "3", "title": "Third", "body": "Nothing to see", "votes": 3},
	}

	t.Run("filter sort offset limit", func(t *testing.T) {
		out, err := Apply(docs, Params{
			Query:  Filter{"votes": map[string]any{"$gt": 0}},
			Sort:   []string{"-votes"},
			Offset: 1,
			Limit:  1,
		}, nil)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if len(out) != 1 || out[0].ID() != "3" {
			t.Fatalf("Apply() = %v", out)
		}
	})

	t.Run("offset past end", func(t *testing.T) {
		out, err := Apply(docs, Params{Offset: 10}, nil)
		if err != nil || len(out) != 0 {
			t.Fatalf("Apply() = %v, %v", out, err)
		}
	})

	t.Run("search orders by score", func(t *testing.T) {
		out, err := Apply(docs, Params{Search: "hello"}, []string{"title", "body"})
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if len(out) != 2 || out[0].ID() != "1" || out[1].ID() != "2" {
			t.Fatalf("Apply() = %v", out)
		}
		first, _ := out[0].Float(ScoreField)
		second, _ := out[1].Float(ScoreField)
		if !(first > second) || first >= 1 {
			t.Fatalf("scores = %v, %v", first, second)
		}
		if docs[0].Has(ScoreField) {
			t.Fatal("Apply mutated its input")
		}
	})

	t.Run("search without fields finds nothing", func(t *testing.T) {
		out, _ := Apply(docs, Params{Search: "hello"}, nil)
		if len(out) != 0 {
			t.Fatalf("Apply() = %v", out)
		}
	})
}

func TestApplyUpdate(t *testing.T) {
	doc := Document{"_id": "1", "title": "a", "draft": true}
	next := ApplyUpdate(doc, Update{
		Set:   Document{"title": "b", "_id": "hijack"},
		Unset: []string{"draft", "_id"},
	})
	if next.ID() != "1" || next["title"] != "b" || next.Has("draft") {
		t.Fatalf("ApplyUpdate() = %v", next)
	}
	if doc["title"] != "a" {
		t.Fatal("ApplyUpdate mutated its input")
	}
}

func TestDocumentAccessors(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := Document{
		"_id":   42,
		"n":     float64(7),
		"f":     1.5,
		"s":     "x",
		"b":     true,
		"t":     now,
		"ts":    now.Format(time.RFC3339Nano),
		"empty": nil,
	}

	if doc.ID() != "42" {
		t.Errorf("ID() = %q", doc.ID())
	}
	if n, ok := doc.Int("n"); !ok || n != 7 {
		t.Errorf("Int(n) = %v, %v", n, ok)
	}
	if _, ok := doc.Int("f"); ok {
		t.Error("Int(f) accepted a fractional value")
	}
	if s, ok := doc.Text("s"); !ok || s != "x" {
		t.Errorf("Text(s) = %v, %v", s, ok)
	}
	if b, ok := doc.Bool("b"); !ok || !b {
		t.Errorf("Bool(b) = %v, %v", b, ok)
	}
	if ts, ok := doc.Time("ts"); !ok || !ts.Equal(now) {
		t.Errorf("Time(ts) = %v, %v", ts, ok)
	}
	if tm, ok := doc.Time("t"); !ok || !tm.Equal(now) {
		t.Errorf("Time(t) = %v, %v", tm, ok)
	}
	if doc.Has("empty") || doc.Has("missing") || !doc.Has("s") {
		t.Error("Has() misreports presence")
	}
	if (Document{}).ID() != "" {
		t.Error("empty document has an ID")
	}
}
