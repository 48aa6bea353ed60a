package schema

// Builder namespaces schema identities per module: "<module>/<name>".
type Builder struct {
	Module string
}

func NewBuilder(module string) Builder {
	if module == "" {
		module = "common"
	}
	return Builder{Module: module}
}

// Key returns the stable identity used to cache the compiled validator.
func (b Builder) Key(name string) string {
	return b.Module + "/" + name
}

// Named stamps root with the identity for name and returns it.
func (b Builder) Named(name string, root *Schema) *Schema {
	root.ID = b.Key(name)
	return root
}

type StringOptions struct {
	Optional  bool
	MinLength *int
	// MaxLength of 0 means unbounded.
	MaxLength int
	Pattern   string
	Format    string
	Enum      []string
	Const     *string
	// Transform lists extra transforms; trim is always applied first.
	Transform []string
}

// String returns a trimmed string fragment. Required strings default to minLength 1,
// optional ones accept null and the empty string.
func String(key string, opt StringOptions) Fields {
	s := &Schema{
		Types:     []Type{TypeString},
		Pattern:   opt.Pattern,
		Format:    opt.Format,
		Transform: withTrim(opt.Transform),
	}
	switch {
	case opt.Optional:
		s.Types = append(s.Types, TypeNull)
		s.MinLength = Int(0)
	case opt.MinLength != nil:
		s.MinLength = Int(*opt.MinLength)
	default:
		s.MinLength = Int(1)
	}
	if opt.MaxLength > 0 {
		s.MaxLength = Int(opt.MaxLength)
	}
	for _, v := range opt.Enum {
		s.Enum = append(s.Enum, v)
	}
	if opt.Const != nil {
		s.Const = *opt.Const
		s.HasConst = true
	}
	return Fields{key: s}
}

func withTrim(extra []string) []string {
	out := []string{TransformTrim}
	for _, t := range extra {
		if t != TransformTrim {
			out = append(out, t)
		}
	}
	return out
}

type IntegerOptions struct {
	// Min and Max default to -BigInt and BigInt.
	Min      *float64
	Max      *float64
	Optional bool
}

// Integer returns a bounded integer fragment; Optional also accepts null.
func Integer(key string, opt IntegerOptions) Fields {
	min, max := float64(-BigInt), float64(BigInt)
	if opt.Min != nil {
		min = *opt.Min
	}
	if opt.Max != nil {
		max = *opt.Max
	}
	s := &Schema{
		Types:   []Type{TypeInteger},
		Minimum: Num(min),
		Maximum: Num(max),
	}
	if opt.Optional {
		s.Types = append(s.Types, TypeNull)
	}
	return Fields{key: s}
}

type NumberOptions struct {
	Optional bool
	Min      *float64
	Max      *float64
}

// Decimal returns a number fragment constrained to steps of multipleOf (0.001 when zero).
func Decimal(key string, multipleOf float64, opt NumberOptions) Fields {
	if multipleOf <= 0 {
		multipleOf = 0.001
	}
	s := &Schema{Types: []Type{TypeNumber}, MultipleOf: multipleOf}
	if opt.Optional {
		s.Types = append(s.Types, TypeNull)
	}
	if opt.Min != nil {
		s.Minimum = Num(*opt.Min)
	}
	if opt.Max != nil {
		s.Maximum = Num(*opt.Max)
	}
	return Fields{key: s}
}

func Date(key string, optional bool) Fields {
	s := &Schema{Types: []Type{TypeString}, Format: FormatDate}
	if optional {
		s.Types = append(s.Types, TypeNull)
	}
	return Fields{key: s}
}

func DateTime(key string, nullable bool) Fields {
	s := &Schema{Types: []Type{TypeString}, Format: FormatDateTime}
	if nullable {
		s.Types = append(s.Types, TypeNull)
	}
	return Fields{key: s}
}

// Enum restricts a string to values.
func Enum(key string, values ...string) Fields {
	s := &Schema{Types: []Type{TypeString}}
	for _, v := range values {
		s.Enum = append(s.Enum, v)
	}
	return Fields{key: s}
}

// SortBy is an asc/desc direction for a sortable column.
func SortBy(key string) Fields {
	return Enum(key, "asc", "desc")
}

// ID is a required uuid string.
func ID(key string) Fields {
	return String(key, StringOptions{Format: FormatUUID})
}

func Boolean(key string) Fields {
	return Fields{key: {Types: []Type{TypeBoolean}}}
}

// BigIntString keeps 64-bit identifiers as strings.
func BigIntString(key string) Fields {
	return Fields{key: {Types: []Type{TypeString}}}
}

// ArrayOfInteger accepts either one positive integer or a non-empty set of them.
func ArrayOfInteger(key string) Fields {
	item := func() *Schema { return &Schema{Types: []Type{TypeInteger}, Minimum: Num(1)} }
	return Fields{key: {
		AnyOf: []*Schema{
			{Types: []Type{TypeArray}, MinItems: Int(1), UniqueItems: true, Items: item()},
			item(),
		},
	}}
}

// ArrayOfString accepts either one string or a non-empty set of them.
func ArrayOfString(key string) Fields {
	return Fields{key: {
		AnyOf: []*Schema{
			{Types: []Type{TypeArray}, MinItems: Int(1), UniqueItems: true, Items: &Schema{Types: []Type{TypeString}}},
			{Types: []Type{TypeString}},
		},
	}}
}

// DateRange is {min, max} where max may not precede min.
func DateRange(key string) Fields {
	return Fields{key: Object(Fields{
		"min": {Types: []Type{TypeString}, Format: FormatDate},
		"max": {Types: []Type{TypeString}, Format: FormatDate, FormatMinimum: Data("1/min")},
	})}
}

// IntegerRange is {min, max} where max may not be below min.
func IntegerRange(key string) Fields {
	return Fields{key: Object(Fields{
		"min": {Types: []Type{TypeInteger}},
		"max": {Types: []Type{TypeInteger}, Minimum: Data("1/min")},
	})}
}
