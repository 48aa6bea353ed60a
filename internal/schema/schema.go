package schema

import "sort"

// BigInt is the largest integer a JSON number carries without precision loss (2^53-1).
const BigInt = 9007199254740991

type Type string

const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeNull    Type = "null"
)

// Formats understood by the validation engine.
const (
	FormatUUID        = "uuid"
	FormatDate        = "date"
	FormatDateTime    = "date-time"
	FormatEmail       = "email"
	FormatURI         = "uri"
	FormatInt64       = "int64"
	FormatPhoneNumber = "phone-number"
)

// Transforms applied to string values during validation.
const (
	TransformTrim      = "trim"
	TransformLowerCase = "toLowerCase"
	TransformUpperCase = "toUpperCase"
)

// Limit is a bound that is either a literal Value or a Data reference.
// Data is a relative JSON pointer resolved against the instance at validation time,
// e.g. "1/min" is the sibling property "min".
type Limit struct {
	Value any
	Data  string
}

func Num(v float64) *Limit { return &Limit{Value: v} }

func Str(v string) *Limit { return &Limit{Value: v} }

func Data(pointer string) *Limit { return &Limit{Data: pointer} }

// Schema is the subset of JSON Schema the engine compiles.
// A nil pointer means "not set"; zero values of slices and strings likewise.
type Schema struct {
	ID    string
	Types []Type

	Properties           map[string]*Schema
	Required             []string
	AdditionalProperties *bool

	Items       *Schema
	MinItems    *int
	MaxItems    *int
	UniqueItems bool

	MinLength *int
	MaxLength *int
	Pattern   string
	Format    string

	Enum  []any
	Const any
	// HasConst distinguishes `const: null` from an unset const.
	HasConst bool

	Minimum    *Limit
	Maximum    *Limit
	MultipleOf float64

	FormatMinimum *Limit
	FormatMaximum *Limit

	AnyOf []*Schema
	OneOf []*Schema

	Transform []string

	// ErrorMessage replaces every error produced under this schema with one custom message.
	ErrorMessage string
}

// Fields maps property names to their fragments.
type Fields map[string]*Schema

// Nullable reports whether the schema accepts null.
func (s *Schema) Nullable() bool {
	for _, t := range s.Types {
		if t == TypeNull {
			return true
		}
	}
	return false
}

// PropertyNames returns the property names in a stable order.
func (s *Schema) PropertyNames() []string {
	out := make([]string, 0, len(s.Properties))
	for k := range s.Properties {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Merge combines fragments into one field set. Later fragments win on key collisions.
func Merge(parts ...Fields) Fields {
	out := Fields{}
	for _, p := range parts {
		for k, v := range p {
			out[k] = v
		}
	}
	return out
}

// Object builds a closed object schema: unknown properties are rejected.
func Object(fields Fields, required ...string) *Schema {
	s := OpenObject(fields, required...)
	s.AdditionalProperties = Bool(false)
	return s
}

// OpenObject builds an object schema that tolerates unknown properties.
func OpenObject(fields Fields, required ...string) *Schema {
	props := make(map[string]*Schema, len(fields))
	for k, v := range fields {
		props[k] = v
	}
	return &Schema{
		Types:      []Type{TypeObject},
		Properties: props,
		Required:   append([]string(nil), required...),
	}
}

// Array builds an array schema with the given item schema.
func Array(items *Schema) *Schema {
	return &Schema{Types: []Type{TypeArray}, Items: items}
}

func Bool(v bool) *bool { return &v }

func Int(v int) *int { return &v }
