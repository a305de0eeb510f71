package redfish

import (
	"bytes"
	"encoding/json"
)

// Attributes is a JSON object that keeps keys in insertion order.
// Overwriting an existing key keeps its position.
type Attributes struct {
	keys   []string
	values map[string]any
}

func NewAttributes() *Attributes {
	return &Attributes{values: map[string]any{}}
}

func (a *Attributes) Set(key string, value any) {
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

func (a *Attributes) Get(key string) (any, bool) {
	v, ok := a.values[key]
	return v, ok
}

func (a *Attributes) Delete(key string) {
	if _, ok := a.values[key]; !ok {
		return
	}
	delete(a.values, key)
	for i, k := range a.keys {
		if k == key {
			a.keys = append(a.keys[:i], a.keys[i+1:]...)
			break
		}
	}
}

func (a *Attributes) Clear() {
	a.keys = nil
	a.values = map[string]any{}
}

func (a *Attributes) Len() int { return len(a.keys) }

// Keys returns the keys in insertion order.
func (a *Attributes) Keys() []string {
	return append([]string(nil), a.keys...)
}

// Clone copies the top level. Nested values are shared, so they must be
// replaced rather than mutated once a node is readable.
func (a *Attributes) Clone() *Attributes {
	c := &Attributes{
		keys:   append([]string(nil), a.keys...),
		values: make(map[string]any, len(a.values)),
	}
	for k, v := range a.values {
		c.values[k] = v
	}
	return c
}

func (a *Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range a.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(a.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
