package document

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode"
)

// Match reports whether doc satisfies every condition in filter.
func Match(doc Document, filter Filter) (bool, error) {
	for field, cond := range filter {
		value, present := doc[field]
		ops, isOps := operatorMap(cond)
		if !isOps {
			if !present || !valuesEqual(value, cond) {
				return false, nil
			}
			continue
		}
		for op, operand := range ops {
			ok, err := applyOperator(op, value, present, operand)
			if err != nil {
				return false, fmt.Errorf("field %s: %w", field, err)
			}
			if !ok {
				return false, nil
			}
		}
	}
	return true, nil
}

func operatorMap(cond any) (map[string]any, bool) {
	var m map[string]any
	switch c := cond.(type) {
	case map[string]any:
		m = c
	case Filter:
		m = c
	case Document:
		m = c
	default:
		return nil, false
	}
	if len(m) == 0 {
		return nil, false
	}
	for key := range m {
		if !strings.HasPrefix(key, "$") {
			return nil, false
		}
	}
	return m, true
}

func applyOperator(op string, value any, present bool, operand any) (bool, error) {
	switch op {
	case "$eq":
		return present && valuesEqual(value, operand), nil
	case "$ne":
		return !present || !valuesEqual(value, operand), nil
	case "$gt", "$gte", "$lt", "$lte":
		if !present {
			return false, nil
		}
		cmp, ok := compareValues(value, operand)
		if !ok {
			return false, nil
		}
		switch op {
		case "$gt":
			return cmp > 0, nil
		case "$gte":
			return cmp >= 0, nil
		case "$lt":
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	case "$in", "$nin":
		items, ok := toSlice(operand)
		if !ok {
			return false, fmt.Errorf("%s expects an array operand", op)
		}
		found := false
		if present {
			for _, item := range items {
				if valuesEqual(value, item) {
					found = true
					break
				}
			}
		}
		if op == "$in" {
			return found, nil
		}
		return !found, nil
	case "$exists":
		want, ok := operand.(bool)
		if !ok {
			return false, fmt.Errorf("$exists expects a boolean operand")
		}
		return present == want, nil
	default:
		return false, fmt.Errorf("unsupported operator %s", op)
	}
}

func toSlice(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

func valuesEqual(a, b any) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders numbers across kinds, strings, booleans and times.
// The second result is false when a and b are not mutually comparable.
func compareValues(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		return compareOrdered(fa, fb), true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	}
	return 0, false
}

func compareOrdered[T int | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// SortDocuments orders docs in place by keys. Missing fields sort first; values that
// cannot be compared keep their relative order.
func SortDocuments(docs []Document, keys []SortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range keys {
			cmp := compareField(docs[i], docs[j], key.Field)
			if cmp == 0 {
				continue
			}
			if key.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareField(a, b Document, field string) int {
	av, aok := a[field]
	bv, bok := b[field]
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	cmp, _ := compareValues(av, bv)
	return cmp
}

// TextScore scores doc against the search terms over fields: for each field, the share of
// its tokens that match a term, averaged over fields. Zero means no match.
func TextScore(doc Document, search string, fields []string) float64 {
	terms := tokenize(search)
	if len(terms) == 0 || len(fields) == 0 {
		return 0
	}
	wanted := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		wanted[term] = struct{}{}
	}

	var total float64
	for _, field := range fields {
		text, ok := doc[field].(string)
		if !ok {
			continue
		}
		tokens := tokenize(text)
		if len(tokens) == 0 {
			continue
		}
		matched := 0
		for _, token := range tokens {
			if _, ok := wanted[token]; ok {
				matched++
			}
		}
		total += float64(matched) / float64(len(tokens))
	}
	return total / float64(len(fields))
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Apply evaluates params over docs: filter, text search, sort, offset, limit.
// Search hits get ScoreField set and, without an explicit sort, are ordered by score.
// defaultSearchFields is used when params.SearchFields is empty.
func Apply(docs []Document, params Params, defaultSearchFields []string) ([]Document, error) {
	out := make([]Document, 0, len(docs))
	searchFields := params.SearchFields
	if len(searchFields) == 0 {
		searchFields = defaultSearchFields
	}
	search := strings.TrimSpace(params.Search)

	for _, doc := range docs {
		ok, err := Match(doc, params.Query)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if search == "" {
			out = append(out, doc.Clone())
			continue
		}
		score := TextScore(doc, search, searchFields)
		if score <= 0 {
			continue
		}
		hit := doc.Clone()
		hit[ScoreField] = score
		out = append(out, hit)
	}

	keys := ParseSort(params.Sort)
	if len(keys) == 0 && search != "" {
		keys = []SortKey{{Field: ScoreField, Descending: true}}
	}
	SortDocuments(out, keys)

	if params.Offset > 0 {
		if params.Offset >= len(out) {
			return []Document{}, nil
		}
		out = out[params.Offset:]
	}
	if params.Limit > 0 && params.Limit < len(out) {
		out = out[:params.Limit]
	}
	return out, nil
}

// ApplyUpdate returns a copy of doc with update applied. The ID is never changed.
func ApplyUpdate(doc Document, update Update) Document {
	next := doc.Clone()
	for field, value := range update.Set {
		if field == IDField {
			continue
		}
		next[field] = value
	}
	for _, field := range update.Unset {
		if field == IDField {
			continue
		}
		delete(next, field)
	}
	return next
}
