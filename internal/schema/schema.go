// Package schema holds the parsed model graph consumed from the schema
// registry. Only relation declarations are interpreted here; field types are
// carried through untouched.
package schema

import (
	"fmt"

	"github.com/keeldb/keel/internal/jsonval"
)

// RelKind distinguishes the two relation directions.
type RelKind int

const (
	// Forward relations store the referenced document's id in the field.
	Forward RelKind = iota
	// Inverse relations store nothing; members are found by scanning the
	// target model's forward fields at read time.
	Inverse
)

// Relation is a field's relation declaration.
type Relation struct {
	Kind   RelKind
	Target string
	Many   bool
}

// Field is one declared field of a model.
type Field struct {
	Type     string
	Required bool
	Unique   bool
	Indexed  bool
	Relation *Relation
}

// Model is one declared model with its fields in declaration order.
type Model struct {
	Name   string
	fields map[string]*Field
	order  []string
}

// Field returns the declaration for the named field.
func (m *Model) Field(name string) (*Field, bool) {
	f, ok := m.fields[name]
	return f, ok
}

// FieldNames returns field names in declaration order.
func (m *Model) FieldNames() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Relation returns the relation declared on the named field, if any.
func (m *Model) Relation(field string) (*Relation, bool) {
	f, ok := m.fields[field]
	if !ok || f.Relation == nil {
		return nil, false
	}
	return f.Relation, true
}

// ForwardRefFields returns the names of fields declared as forward relations
// targeting the given model. Used to resolve inverse relations by scanning.
func (m *Model) ForwardRefFields(target string) []string {
	var out []string
	for _, name := range m.order {
		f := m.fields[name]
		if f.Relation != nil && f.Relation.Kind == Forward && f.Relation.Target == target {
			out = append(out, name)
		}
	}
	return out
}

// Warning reports a relation whose target model is not declared. Not fatal;
// the field resolves as a plain value.
type Warning struct {
	Model  string
	Field  string
	Target string
}

func (w Warning) String() string {
	return fmt.Sprintf("model %s field %s: relation target %s not defined", w.Model, w.Field, w.Target)
}

// Schema is a parsed model graph. The raw object is retained so checkpoints
// persist exactly what the registry supplied.
type Schema struct {
	raw    *jsonval.Object
	models map[string]*Model
	names  []string
}

// Empty returns a schema with no models.
func Empty() *Schema {
	return &Schema{raw: jsonval.NewObject(), models: map[string]*Model{}}
}

// Raw returns the object as supplied by the registry.
func (s *Schema) Raw() *jsonval.Object { return s.raw }

// Model returns the named model.
func (s *Schema) Model(name string) (*Model, bool) {
	m, ok := s.models[name]
	return m, ok
}

// Names returns model names in declaration order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Parse builds a Schema from a registry payload. The payload is either
// {"models": {name: modelDef}} or a bare {name: modelDef} map; a modelDef
// either wraps its fields under "fields" or is the field map itself.
// Relations targeting undeclared models are reported as warnings, not errors.
func Parse(obj *jsonval.Object) (*Schema, []Warning, error) {
	if obj == nil {
		return Empty(), nil, nil
	}

	modelsObj := obj
	if v, ok := obj.Get("models"); ok {
		mo, ok := v.(*jsonval.Object)
		if !ok {
			return nil, nil, fmt.Errorf("schema: models is %s, expected object", v.Kind())
		}
		modelsObj = mo
	}

	s := &Schema{raw: obj, models: make(map[string]*Model, modelsObj.Len())}
	var parseErr error
	modelsObj.Range(func(name string, v jsonval.Value) bool {
		mo, ok := v.(*jsonval.Object)
		if !ok {
			parseErr = fmt.Errorf("schema: model %s is %s, expected object", name, v.Kind())
			return false
		}
		m, err := parseModel(name, mo)
		if err != nil {
			parseErr = err
			return false
		}
		s.models[name] = m
		s.names = append(s.names, name)
		return true
	})
	if parseErr != nil {
		return nil, nil, parseErr
	}

	var warnings []Warning
	for _, name := range s.names {
		m := s.models[name]
		for _, fname := range m.order {
			rel := m.fields[fname].Relation
			if rel == nil {
				continue
			}
			if _, ok := s.models[rel.Target]; !ok {
				warnings = append(warnings, Warning{Model: name, Field: fname, Target: rel.Target})
			}
		}
	}
	return s, warnings, nil
}

func parseModel(name string, obj *jsonval.Object) (*Model, error) {
	fieldsObj := obj
	if v, ok := obj.Get("fields"); ok {
		fo, ok := v.(*jsonval.Object)
		if !ok {
			return nil, fmt.Errorf("schema: model %s fields is %s, expected object", name, v.Kind())
		}
		fieldsObj = fo
	}

	m := &Model{Name: name, fields: make(map[string]*Field, fieldsObj.Len())}
	var parseErr error
	fieldsObj.Range(func(fname string, v jsonval.Value) bool {
		f, err := parseField(name, fname, v)
		if err != nil {
			parseErr = err
			return false
		}
		m.fields[fname] = f
		m.order = append(m.order, fname)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return m, nil
}

func parseField(model, name string, v jsonval.Value) (*Field, error) {
	f := &Field{}
	fo, ok := v.(*jsonval.Object)
	if !ok {
		// Shorthand: a bare type string.
		if s, isStr := v.(jsonval.String); isStr {
			f.Type = string(s)
			return f, nil
		}
		return nil, fmt.Errorf("schema: model %s field %s is %s, expected object or string", model, name, v.Kind())
	}

	if t, ok := fo.Get("type"); ok {
		if s, isStr := t.(jsonval.String); isStr {
			f.Type = string(s)
		}
	}
	f.Required = boolAt(fo, "required")
	f.Unique = boolAt(fo, "unique")
	f.Indexed = boolAt(fo, "indexed")

	rv, ok := fo.Get("relation")
	if !ok {
		return f, nil
	}
	ro, ok := rv.(*jsonval.Object)
	if !ok {
		return nil, fmt.Errorf("schema: model %s field %s relation is %s, expected object", model, name, rv.Kind())
	}
	rel := &Relation{Many: boolAt(ro, "many")}
	if tv, ok := ro.Get("target"); ok {
		if s, isStr := tv.(jsonval.String); isStr {
			rel.Target = string(s)
		}
	}
	kind, _ := ro.Get("type")
	switch {
	case jsonval.Equal(kind, jsonval.String("inverse")):
		rel.Kind = Inverse
	default:
		rel.Kind = Forward
	}
	if rel.Target == "" {
		return nil, fmt.Errorf("schema: model %s field %s relation has no target", model, name)
	}
	f.Relation = rel
	return f, nil
}

func boolAt(o *jsonval.Object, key string) bool {
	v, ok := o.Get(key)
	if !ok {
		return false
	}
	b, ok := v.(jsonval.Bool)
	return ok && bool(b)
}
