package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/keeldb/keel/internal/document"
	"github.com/keeldb/keel/internal/jsonval"
)

// DefaultLimit applies when a query sets no limit.
const DefaultLimit = 20

// GetOptions controls Get.
type GetOptions struct {
	// Include names relation fields to expand one level.
	Include []string
}

// OrderKey is one sort key. Desc false means ascending.
type OrderKey struct {
	Field string
	Desc  bool
}

// ParseOrder reads the wire orderBy forms: a string ("name" ascending,
// "-name" descending) or a list of {field, direction} objects.
func ParseOrder(v jsonval.Value) ([]OrderKey, error) {
	switch t := v.(type) {
	case nil, jsonval.Null:
		return nil, nil
	case jsonval.String:
		return []OrderKey{parseOrderField(string(t))}, nil
	case *jsonval.Array:
		out := make([]OrderKey, 0, t.Len())
		for _, elem := range t.Elems {
			switch e := elem.(type) {
			case jsonval.String:
				out = append(out, parseOrderField(string(e)))
			case *jsonval.Object:
				key := OrderKey{}
				if f, ok := e.Get("field"); ok {
					key.Field = jsonval.StringForm(f)
				}
				if key.Field == "" {
					return nil, fmt.Errorf("orderBy entry has no field")
				}
				if d, ok := e.Get("direction"); ok {
					key.Desc = strings.EqualFold(jsonval.StringForm(d), "desc")
				}
				out = append(out, key)
			default:
				return nil, fmt.Errorf("orderBy entry is %s, expected string or object", elem.Kind())
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("orderBy is %s, expected string or list", v.Kind())
	}
}

func parseOrderField(s string) OrderKey {
	if strings.HasPrefix(s, "-") {
		return OrderKey{Field: strings.TrimPrefix(s, "-"), Desc: true}
	}
	return OrderKey{Field: s}
}

// ListOptions controls List and Search.
type ListOptions struct {
	// Where filters by per-field exact equality against the flat document.
	Where map[string]jsonval.Value

	// OrderBy sorts by the given keys, comparing values as strings with a
	// stable multi-key sort. Empty keeps collection insertion order.
	OrderBy []OrderKey

	// Limit caps the page size; zero or negative means DefaultLimit.
	Limit int

	// Offset skips that many matches.
	Offset int

	// Select projects the named fields; id, version and timestamps are
	// always kept.
	Select []string
}

// Result is one page of documents.
type Result struct {
	Data    []*document.Document
	Total   int
	Limit   int
	Offset  int
	HasMore bool
}

// Value renders the result in its wire form.
func (r *Result) Value() *jsonval.Object {
	out := jsonval.NewObject()
	data := jsonval.NewArray()
	for _, d := range r.Data {
		data.Append(d.Value())
	}
	out.Set("data", data)
	out.Set("total", jsonval.Int(int64(r.Total)))
	out.Set("limit", jsonval.Int(int64(r.Limit)))
	out.Set("offset", jsonval.Int(int64(r.Offset)))
	out.Set("hasMore", jsonval.Bool(r.HasMore))
	return out
}

// MarshalJSON renders the wire form.
func (r *Result) MarshalJSON() ([]byte, error) {
	return jsonval.Encode(r.Value()), nil
}

// List returns non-deleted documents matching opts.Where, ordered, paginated
// and projected per opts.
func (s *Store) List(ctx context.Context, model string, opts ListOptions) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*document.Document
	if c, ok := s.collections[model]; ok {
		for _, doc := range c.Live() {
			if matchWhere(doc, opts.Where) {
				matched = append(matched, doc)
			}
		}
	}
	return page(matched, opts), nil
}

// Search returns non-deleted documents where any string-valued top-level
// field contains the query, case-insensitively. Ordering, pagination and
// projection follow opts; Where is ignored.
func (s *Store) Search(ctx context.Context, model, query string, opts ListOptions) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(query)
	var matched []*document.Document
	if c, ok := s.collections[model]; ok {
		for _, doc := range c.Live() {
			if matchSearch(doc, needle) {
				matched = append(matched, doc)
			}
		}
	}
	return page(matched, opts), nil
}

// matchWhere compares each condition against the flat wire form, so id and
// meta fields participate alongside user fields.
func matchWhere(doc *document.Document, where map[string]jsonval.Value) bool {
	if len(where) == 0 {
		return true
	}
	flat := doc.Value()
	for field, want := range where {
		got, ok := flat.Get(field)
		if !ok || !jsonval.Equal(got, want) {
			return false
		}
	}
	return true
}

func matchSearch(doc *document.Document, needle string) bool {
	if needle == "" {
		return true
	}
	found := false
	doc.Fields.Range(func(_ string, v jsonval.Value) bool {
		s, ok := v.(jsonval.String)
		if ok && strings.Contains(strings.ToLower(string(s)), needle) {
			found = true
			return false
		}
		return true
	})
	return found
}

// page orders, slices and projects the matched set. Documents in the result
// are clones.
func page(matched []*document.Document, opts ListOptions) *Result {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	if len(opts.OrderBy) > 0 {
		ordered := make([]*document.Document, len(matched))
		copy(ordered, matched)
		sortDocs(ordered, opts.OrderBy)
		matched = ordered
	}

	total := len(matched)
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	data := make([]*document.Document, 0, end-start)
	for _, doc := range matched[start:end] {
		if len(opts.Select) > 0 {
			data = append(data, projectDoc(doc, opts.Select))
		} else {
			data = append(data, doc.Clone())
		}
	}

	return &Result{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(data) < total,
	}
}

// sortDocs sorts by each key in turn, comparing values rendered as strings.
func sortDocs(docs []*document.Document, keys []OrderKey) {
	flats := make(map[*document.Document]*jsonval.Object, len(docs))
	for _, d := range docs {
		flats[d] = d.Value()
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := flats[docs[i]], flats[docs[j]]
		for _, key := range keys {
			av, _ := a.Get(key.Field)
			bv, _ := b.Get(key.Field)
			as, bs := jsonval.StringForm(av), jsonval.StringForm(bv)
			if as == bs {
				continue
			}
			if key.Desc {
				return as > bs
			}
			return as < bs
		}
		return false
	})
}

// projectDoc keeps the selected user fields plus id, version and the
// timestamps. Actor meta survives only when selected explicitly.
func projectDoc(d *document.Document, sel []string) *document.Document {
	keep := make(map[string]bool, len(sel))
	for _, f := range sel {
		keep[f] = true
	}
	out := d.Clone()
	fields := jsonval.NewObject()
	out.Fields.Range(func(k string, v jsonval.Value) bool {
		if keep[k] {
			fields.Set(k, v)
		}
		return true
	})
	out.Fields = fields
	if !keep[document.MetaCreatedBy] {
		out.CreatedBy = ""
	}
	if !keep[document.MetaUpdatedBy] {
		out.UpdatedBy = ""
	}
	return out
}
