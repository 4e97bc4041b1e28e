package domain

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Tags is the schemaless key/value bag attached to every Variant and Relation.
// A key that is absent is simply not present in the map; there is no null value.
type Tags map[string]string

// Get returns the value for key and whether it is present.
func (t Tags) Get(key string) (string, bool) {
	v, ok := t[key]
	return v, ok
}

// Has reports whether key is present.
func (t Tags) Has(key string) bool {
	_, ok := t[key]
	return ok
}

// Clone returns an independent copy. The result is never nil.
func (t Tags) Clone() Tags {
	out := make(Tags, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Equal reports key-wise value equality.
func (t Tags) Equal(other Tags) bool {
	if len(t) != len(other) {
		return false
	}
	for k, v := range t {
		ov, ok := other[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// SetAll replaces the whole bag with next.
func (t *Tags) SetAll(next Tags) {
	*t = next.Clone()
}

// Merge overwrites only the keys listed in partial; other keys survive.
func (t *Tags) Merge(partial Tags) {
	if *t == nil {
		*t = make(Tags, len(partial))
	}
	for k, v := range partial {
		(*t)[k] = v
	}
}

// Keys returns the tag names in lexical order.
func (t Tags) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DecodeTags parses a JSON object of string values. Null and non-string values
// are rejected so a decoded bag never carries an absent value under a present key.
func DecodeTags(raw json.RawMessage) (Tags, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, newError(CodeInvalidTags, "The 'tags' field must be a JSON object of string values.")
	}
	var values map[string]any
	if err := json.Unmarshal(trimmed, &values); err != nil {
		return nil, newError(CodeInvalidTags, "The 'tags' field must be a JSON object of string values.")
	}
	out := make(Tags, len(values))
	for k, v := range values {
		switch s := v.(type) {
		case string:
			out[k] = s
		case nil:
			e := newErrorf(CodeInvalidTags, "Tag '%s' has a null value. Omit the tag instead.", k)
			e.Tag = k
			return nil, e
		default:
			e := newErrorf(CodeInvalidTags, "Tag '%s' must have a string value.", k)
			e.Tag = k
			return nil, e
		}
	}
	return out, nil
}
