package rpc

import (
	"fmt"

	"github.com/keeldb/keel/internal/jsonval"
	"github.com/keeldb/keel/internal/store"
)

func stringAt(o *jsonval.Object, key string) (string, bool) {
	v, ok := o.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(jsonval.String)
	return string(s), ok
}

func stringParam(o *jsonval.Object, key string) (string, error) {
	s, ok := stringAt(o, key)
	if !ok || s == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

// objectParam returns the named object, an empty object when the key is
// absent, and an error when it holds any other kind.
func objectParam(o *jsonval.Object, key string) (*jsonval.Object, error) {
	v, ok := o.Get(key)
	if !ok {
		return jsonval.NewObject(), nil
	}
	obj, ok := v.(*jsonval.Object)
	if !ok {
		return nil, fmt.Errorf("%s must be an object", key)
	}
	return obj, nil
}

func intAt(o *jsonval.Object, key string) int {
	v, ok := o.Get(key)
	if !ok {
		return 0
	}
	n, ok := v.(jsonval.Number)
	if !ok {
		return 0
	}
	if i, ok := n.Int64(); ok {
		return int(i)
	}
	if f, ok := n.Float64(); ok {
		return int(f)
	}
	return 0
}

func stringsAt(v jsonval.Value) ([]string, bool) {
	arr, ok := v.(*jsonval.Array)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, arr.Len())
	for _, el := range arr.Elems {
		s, ok := el.(jsonval.String)
		if !ok {
			return nil, false
		}
		out = append(out, string(s))
	}
	return out, true
}

func getOptions(params *jsonval.Object) (store.GetOptions, error) {
	var opts store.GetOptions
	o, err := objectParam(params, "options")
	if err != nil {
		return opts, err
	}
	if v, ok := o.Get("include"); ok {
		inc, ok := stringsAt(v)
		if !ok {
			return opts, fmt.Errorf("include must be an array of field names")
		}
		opts.Include = inc
	}
	return opts, nil
}

func listOptions(params *jsonval.Object) (store.ListOptions, error) {
	var opts store.ListOptions
	o, err := objectParam(params, "options")
	if err != nil {
		return opts, err
	}
	if v, ok := o.Get("where"); ok {
		w, ok := v.(*jsonval.Object)
		if !ok {
			return opts, fmt.Errorf("where must be an object")
		}
		opts.Where = make(map[string]jsonval.Value, w.Len())
		w.Range(func(k string, fv jsonval.Value) bool {
			opts.Where[k] = fv
			return true
		})
	}
	if v, ok := o.Get("orderBy"); ok {
		keys, err := store.ParseOrder(v)
		if err != nil {
			return opts, err
		}
		opts.OrderBy = keys
	}
	opts.Limit = intAt(o, "limit")
	opts.Offset = intAt(o, "offset")
	if v, ok := o.Get("select"); ok {
		sel, ok := stringsAt(v)
		if !ok {
			return opts, fmt.Errorf("select must be an array of field names")
		}
		opts.Select = sel
	}
	return opts, nil
}
