package store

import (
	"github.com/keeldb/keel/internal/document"
	"github.com/keeldb/keel/internal/jsonval"
	"github.com/keeldb/keel/internal/schema"
)

// expandLocked resolves the named relation fields on doc, one level deep.
// Fields without a relation declaration are left untouched. doc must be a
// clone; expansion writes into its field set.
func (s *Store) expandLocked(model string, doc *document.Document, include []string) {
	m, ok := s.schema.Model(model)
	if !ok {
		return
	}
	for _, field := range include {
		rel, ok := m.Relation(field)
		if !ok {
			continue
		}
		switch rel.Kind {
		case schema.Forward:
			s.expandForwardLocked(doc, field, rel)
		case schema.Inverse:
			s.expandInverseLocked(model, doc, field, rel)
		}
	}
}

// expandForwardLocked replaces a stored id with the referenced document's
// flat form. Ids whose target is missing or deleted stay as the raw id.
func (s *Store) expandForwardLocked(doc *document.Document, field string, rel *schema.Relation) {
	v, ok := doc.Fields.Get(field)
	if !ok {
		return
	}
	switch t := v.(type) {
	case jsonval.String:
		if ref := s.liveLocked(rel.Target, string(t)); ref != nil {
			doc.Fields.Set(field, ref.Clone().Value())
		}
	case *jsonval.Array:
		out := jsonval.NewArray()
		for _, elem := range t.Elems {
			id, isStr := elem.(jsonval.String)
			if !isStr {
				out.Append(elem.Clone())
				continue
			}
			if ref := s.liveLocked(rel.Target, string(id)); ref != nil {
				out.Append(ref.Clone().Value())
			} else {
				out.Append(id)
			}
		}
		doc.Fields.Set(field, out)
	}
}

// expandInverseLocked collects every non-deleted document in the target
// model holding a forward reference back to doc's id. The result is always
// an array, empty included.
func (s *Store) expandInverseLocked(model string, doc *document.Document, field string, rel *schema.Relation) {
	members := jsonval.NewArray()
	defer doc.Fields.Set(field, members)

	targetModel, ok := s.schema.Model(rel.Target)
	if !ok {
		return
	}
	refFields := targetModel.ForwardRefFields(model)
	if len(refFields) == 0 {
		return
	}
	c, ok := s.collections[rel.Target]
	if !ok {
		return
	}
	for _, candidate := range c.Live() {
		if refersTo(candidate, refFields, doc.ID) {
			members.Append(candidate.Clone().Value())
		}
	}
}

// refersTo reports whether any of the candidate's forward fields holds id,
// directly or inside an id array.
func refersTo(candidate *document.Document, refFields []string, id string) bool {
	for _, rf := range refFields {
		v, ok := candidate.Fields.Get(rf)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case jsonval.String:
			if string(t) == id {
				return true
			}
		case *jsonval.Array:
			for _, elem := range t.Elems {
				if s, isStr := elem.(jsonval.String); isStr && string(s) == id {
					return true
				}
			}
		}
	}
	return false
}
