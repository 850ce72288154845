package jsonval

// Member is one key/value pair of an Object.
type Member struct {
	Key   string
	Value Value
}

// Object is a JSON object whose members keep insertion order. Setting an
// existing key replaces the value in place without moving the member.
type Object struct {
	members []Member
	index   map[string]int
}

// NewObject creates an empty object.
func NewObject() *Object {
	return &Object{index: make(map[string]int)}
}

func (*Object) Kind() Kind { return KindObject }

// Len returns the number of members.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.members)
}

// Get returns the value for key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return nil, false
	}
	i, ok := o.index[key]
	if !ok {
		return nil, false
	}
	return o.members[i].Value, true
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Set inserts or replaces the value for key. New keys append; existing keys
// keep their position.
func (o *Object) Set(key string, v Value) {
	if v == nil {
		v = Null{}
	}
	if i, ok := o.index[key]; ok {
		o.members[i].Value = v
		return
	}
	o.index[key] = len(o.members)
	o.members = append(o.members, Member{Key: key, Value: v})
}

// Delete removes key, preserving the order of the remaining members.
func (o *Object) Delete(key string) {
	i, ok := o.index[key]
	if !ok {
		return
	}
	o.members = append(o.members[:i], o.members[i+1:]...)
	delete(o.index, key)
	for j := i; j < len(o.members); j++ {
		o.index[o.members[j].Key] = j
	}
}

// Keys returns the member keys in order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	keys := make([]string, len(o.members))
	for i, m := range o.members {
		keys[i] = m.Key
	}
	return keys
}

// Range calls fn for each member in order until fn returns false.
func (o *Object) Range(fn func(key string, v Value) bool) {
	if o == nil {
		return
	}
	for _, m := range o.members {
		if !fn(m.Key, m.Value) {
			return
		}
	}
}

// Clone deep-copies the object.
func (o *Object) Clone() Value {
	return o.CloneObject()
}

// CloneObject deep-copies the object with its concrete type.
func (o *Object) CloneObject() *Object {
	if o == nil {
		return nil
	}
	out := &Object{
		members: make([]Member, len(o.members)),
		index:   make(map[string]int, len(o.members)),
	}
	for i, m := range o.members {
		out.members[i] = Member{Key: m.Key, Value: m.Value.Clone()}
		out.index[m.Key] = i
	}
	return out
}

// Merge sets every member of src on o, in src's order. Existing keys are
// replaced in place.
func (o *Object) Merge(src *Object) {
	if src == nil {
		return
	}
	for _, m := range src.members {
		o.Set(m.Key, m.Value)
	}
}

func (o *Object) appendJSON(dst []byte) []byte {
	dst = append(dst, '{')
	if o != nil {
		for i, m := range o.members {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendQuoted(dst, m.Key)
			dst = append(dst, ':')
			if m.Value == nil {
				dst = append(dst, "null"...)
				continue
			}
			dst = m.Value.appendJSON(dst)
		}
	}
	return append(dst, '}')
}
