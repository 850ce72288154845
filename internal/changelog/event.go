// Package changelog defines change events and the bounded in-memory event
// log that assigns their sequence numbers.
package changelog

import (
	"github.com/keeldb/keel/internal/document"
	"github.com/keeldb/keel/internal/jsonval"
)

// Op is the mutation kind captured by an event.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event is one captured mutation. Before and After are snapshots taken at
// emit time; events are immutable once appended.
type Event struct {
	ID         string
	Sequence   uint64
	Timestamp  int64
	Operation  Op
	Model      string
	DocumentID string
	Before     *document.Document
	After      *document.Document
	UserID     string
	RequestID  string
}

// Value renders the event in its wire form with a fixed field order, so the
// same event always serializes to identical bytes.
func (e *Event) Value() *jsonval.Object {
	out := jsonval.NewObject()
	out.Set("id", jsonval.String(e.ID))
	out.Set("sequence", jsonval.Int(int64(e.Sequence)))
	out.Set("timestamp", jsonval.Int(e.Timestamp))
	out.Set("operation", jsonval.String(string(e.Operation)))
	out.Set("model", jsonval.String(e.Model))
	out.Set("documentId", jsonval.String(e.DocumentID))
	if e.Before != nil {
		out.Set("before", e.Before.Value())
	}
	if e.After != nil {
		out.Set("after", e.After.Value())
	}
	if e.UserID != "" {
		out.Set("userId", jsonval.String(e.UserID))
	}
	if e.RequestID != "" {
		out.Set("requestId", jsonval.String(e.RequestID))
	}
	return out
}

// MarshalJSON renders the deterministic wire form.
func (e *Event) MarshalJSON() ([]byte, error) {
	return jsonval.Encode(e.Value()), nil
}

// UnmarshalJSON restores an event from its wire form. Used by archive reads
// and queue consumers.
func (e *Event) UnmarshalJSON(data []byte) error {
	obj, err := jsonval.DecodeObject(data)
	if err != nil {
		return err
	}
	out := Event{}
	var convErr error
	obj.Range(func(k string, v jsonval.Value) bool {
		switch k {
		case "id":
			out.ID = asString(v)
		case "sequence":
			out.Sequence = uint64(asInt(v))
		case "timestamp":
			out.Timestamp = asInt(v)
		case "operation":
			out.Operation = Op(asString(v))
		case "model":
			out.Model = asString(v)
		case "documentId":
			out.DocumentID = asString(v)
		case "before":
			out.Before, convErr = asDocument(v)
		case "after":
			out.After, convErr = asDocument(v)
		case "userId":
			out.UserID = asString(v)
		case "requestId":
			out.RequestID = asString(v)
		}
		return convErr == nil
	})
	if convErr != nil {
		return convErr
	}
	*e = out
	return nil
}

func asString(v jsonval.Value) string {
	s, _ := v.(jsonval.String)
	return string(s)
}

func asInt(v jsonval.Value) int64 {
	n, ok := v.(jsonval.Number)
	if !ok {
		return 0
	}
	i, _ := n.Int64()
	return i
}

func asDocument(v jsonval.Value) (*document.Document, error) {
	obj, ok := v.(*jsonval.Object)
	if !ok {
		return nil, nil
	}
	return document.FromValue(obj)
}
