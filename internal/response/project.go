package response

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one allow-listed output field.
type Field struct {
	// Name is the source field name (json tag for structs, key for maps).
	Name string
	// As renames the field on the wire. Empty keeps Name.
	As string
	// Shape projects a nested object (or every element when Many is set).
	Shape *Shape
	Many  bool
}

func (f Field) key() string {
	if f.As != "" {
		return f.As
	}
	return f.Name
}

// Shape is an ordered allow-list of output fields.
type Shape struct {
	Fields []Field
}

func NewShape(fields ...Field) *Shape {
	return &Shape{Fields: fields}
}

// Expose lists plain fields kept under their own names.
func Expose(names ...string) []Field {
	out := make([]Field, len(names))
	for i, n := range names {
		out[i] = Field{Name: n}
	}
	return out
}

// With returns a copy of s extended with more fields.
func (s *Shape) With(fields ...Field) *Shape {
	out := &Shape{Fields: make([]Field, 0, len(s.Fields)+len(fields))}
	out.Fields = append(out.Fields, s.Fields...)
	out.Fields = append(out.Fields, fields...)
	return out
}

// Object keeps the shape's field order when encoded.
type Object []Member

type Member struct {
	Key   string
	Value any
}

func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(m.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(m.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the value stored under key.
func (o Object) Get(key string) (any, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Project maps value through shape. Structs are read through their json tags, maps by key;
// slices are projected element-wise. Fields outside the allow-list are dropped.
// A nil shape returns value unchanged.
func Project(value any, shape *Shape) (any, error) {
	if shape == nil || value == nil {
		return value, nil
	}
	generic, err := toGeneric(value)
	if err != nil {
		return nil, fmt.Errorf("response: project: %w", err)
	}
	return project(generic, shape, false), nil
}

func toGeneric(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func project(v any, shape *Shape, many bool) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = project(item, shape, false)
		}
		return out
	case map[string]any:
		obj := projectObject(t, shape)
		if many {
			return []any{obj}
		}
		return obj
	default:
		return v
	}
}

func projectObject(src map[string]any, shape *Shape) Object {
	out := make(Object, 0, len(shape.Fields))
	for _, f := range shape.Fields {
		v, ok := src[f.Name]
		if !ok {
			continue
		}
		if f.Shape != nil && v != nil {
			v = project(v, f.Shape, f.Many)
		}
		out = append(out, Member{Key: f.key(), Value: v})
	}
	return out
}
