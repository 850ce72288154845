// Package document defines the stored document shape and the per-model
// collection that holds documents in insertion order.
package document

import (
	"fmt"
	"strings"

	"github.com/keeldb/keel/internal/jsonval"
)

// Meta field names as they appear on the wire. Meta fields live beside user
// fields in the flat JSON form and are reserved: user payloads cannot set
// them directly.
const (
	MetaVersion   = "_version"
	MetaCreatedAt = "_createdAt"
	MetaCreatedBy = "_createdBy"
	MetaUpdatedAt = "_updatedAt"
	MetaUpdatedBy = "_updatedBy"
	MetaDeletedAt = "_deletedAt"
	MetaDeletedBy = "_deletedBy"
)

// Document is one stored record. Fields holds the user payload without id or
// meta fields. Timestamps are Unix milliseconds; DeletedAt zero means live.
type Document struct {
	ID        string
	Fields    *jsonval.Object
	Version   int64
	CreatedAt int64
	CreatedBy string
	UpdatedAt int64
	UpdatedBy string
	DeletedAt int64
	DeletedBy string
}

// New creates a live document with version 1.
func New(id string, fields *jsonval.Object, nowMs int64, userID string) *Document {
	if fields == nil {
		fields = jsonval.NewObject()
	}
	return &Document{
		ID:        id,
		Fields:    fields,
		Version:   1,
		CreatedAt: nowMs,
		CreatedBy: userID,
		UpdatedAt: nowMs,
		UpdatedBy: userID,
	}
}

// Deleted reports whether the document is tombstoned.
func (d *Document) Deleted() bool { return d.DeletedAt != 0 }

// Clone deep-copies the document. Readers always receive clones; stored
// documents are never handed out by reference.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Fields = d.Fields.CloneObject()
	return &out
}

// Value renders the flat wire form: id first, user fields in insertion
// order, then meta fields. Optional meta fields are omitted when unset.
func (d *Document) Value() *jsonval.Object {
	out := jsonval.NewObject()
	out.Set("id", jsonval.String(d.ID))
	d.Fields.Range(func(k string, v jsonval.Value) bool {
		out.Set(k, v)
		return true
	})
	out.Set(MetaVersion, jsonval.Int(d.Version))
	out.Set(MetaCreatedAt, jsonval.Int(d.CreatedAt))
	if d.CreatedBy != "" {
		out.Set(MetaCreatedBy, jsonval.String(d.CreatedBy))
	}
	out.Set(MetaUpdatedAt, jsonval.Int(d.UpdatedAt))
	if d.UpdatedBy != "" {
		out.Set(MetaUpdatedBy, jsonval.String(d.UpdatedBy))
	}
	if d.DeletedAt != 0 {
		out.Set(MetaDeletedAt, jsonval.Int(d.DeletedAt))
	}
	if d.DeletedBy != "" {
		out.Set(MetaDeletedBy, jsonval.String(d.DeletedBy))
	}
	return out
}

// MarshalJSON renders the flat wire form deterministically.
func (d *Document) MarshalJSON() ([]byte, error) {
	return jsonval.Encode(d.Value()), nil
}

// UnmarshalJSON restores a document from its flat wire form.
func (d *Document) UnmarshalJSON(data []byte) error {
	obj, err := jsonval.DecodeObject(data)
	if err != nil {
		return err
	}
	restored, err := FromValue(obj)
	if err != nil {
		return err
	}
	*d = *restored
	return nil
}

// FromValue restores a document from a flat object. Unknown underscore
// fields are dropped; everything else lands in Fields in order.
func FromValue(obj *jsonval.Object) (*Document, error) {
	d := &Document{Fields: jsonval.NewObject()}
	var convErr error
	obj.Range(func(k string, v jsonval.Value) bool {
		switch k {
		case "id":
			s, ok := v.(jsonval.String)
			if !ok {
				convErr = fmt.Errorf("document id is %s, expected string", v.Kind())
				return false
			}
			d.ID = string(s)
		case MetaVersion:
			d.Version = intAt(v)
		case MetaCreatedAt:
			d.CreatedAt = intAt(v)
		case MetaCreatedBy:
			d.CreatedBy = stringAt(v)
		case MetaUpdatedAt:
			d.UpdatedAt = intAt(v)
		case MetaUpdatedBy:
			d.UpdatedBy = stringAt(v)
		case MetaDeletedAt:
			d.DeletedAt = intAt(v)
		case MetaDeletedBy:
			d.DeletedBy = stringAt(v)
		default:
			if strings.HasPrefix(k, "_") {
				return true
			}
			d.Fields.Set(k, v)
		}
		return true
	})
	if convErr != nil {
		return nil, convErr
	}
	if d.ID == "" {
		return nil, fmt.Errorf("document has no id")
	}
	return d, nil
}

func intAt(v jsonval.Value) int64 {
	n, ok := v.(jsonval.Number)
	if !ok {
		return 0
	}
	i, _ := n.Int64()
	return i
}

func stringAt(v jsonval.Value) string {
	s, ok := v.(jsonval.String)
	if !ok {
		return ""
	}
	return string(s)
}

// StripReserved removes id and underscore-prefixed keys from a user payload
// so callers cannot forge meta fields through create or update.
func StripReserved(fields *jsonval.Object) *jsonval.Object {
	if fields == nil {
		return jsonval.NewObject()
	}
	out := jsonval.NewObject()
	fields.Range(func(k string, v jsonval.Value) bool {
		if k == "id" || strings.HasPrefix(k, "_") {
			return true
		}
		out.Set(k, v)
		return true
	})
	return out
}
