package hub

import (
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/keeldb/keel/internal/changelog"
	"github.com/keeldb/keel/internal/jsonval"
)

// eventFilter wraps a compiled CEL program evaluated per event. When
// disabled, Eval always returns true.
type eventFilter struct {
	prog    cel.Program
	enabled bool
}

func newEventFilter(expr string) (eventFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return eventFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("model", cel.StringType),
		cel.Variable("operation", cel.StringType),
		cel.Variable("document_id", cel.StringType),
		cel.Variable("sequence", cel.IntType),
		cel.Variable("user_id", cel.StringType),
		// Expose the full event (including before/after snapshots) for
		// field-level filtering.
		cel.Variable("event", cel.DynType),
	)
	if err != nil {
		return eventFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return eventFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return eventFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return eventFilter{}, err
	}
	return eventFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the compiled expression against an event. eventMap is the
// event's native-map form, shared across subscribers of one broadcast.
func (f eventFilter) Eval(e *changelog.Event, eventMap interface{}) bool {
	if !f.enabled {
		return true
	}
	out, _, err := f.prog.Eval(map[string]interface{}{
		"model":       e.Model,
		"operation":   string(e.Operation),
		"document_id": e.DocumentID,
		"sequence":    int64(e.Sequence),
		"user_id":     e.UserID,
		"event":       eventMap,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// eventAsMap renders an event once for filter evaluation.
func eventAsMap(e *changelog.Event) interface{} {
	return jsonval.ToInterface(e.Value())
}
