package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"call-insights/internal/schema"
)

var ErrInvalidSchema = errors.New("validation: invalid schema")

// pointer is a parsed relative JSON pointer ("1/min").
type pointer struct {
	up     int
	tokens []string
}

type bound struct {
	value any
	ptr   *pointer
}

type property struct {
	name string
	node *node
}

// node is the compiled form of one schema.
type node struct {
	s       *schema.Schema
	props   []property
	known   map[string]struct{}
	items   *node
	anyOf   []*node
	oneOf   []*node
	pattern *regexp.Regexp
	format  FormatFunc

	minimum, maximum             *bound
	formatMinimum, formatMaximum *bound
}

func invalid(path, format string, args ...any) error {
	if path == "" {
		path = "#"
	}
	return fmt.Errorf("%w at %s: %s", ErrInvalidSchema, path, fmt.Sprintf(format, args...))
}

func (e *Engine) compileNode(s *schema.Schema, path string) (*node, error) {
	if s == nil {
		return nil, invalid(path, "nil schema")
	}
	n := &node{s: s}

	for _, t := range s.Types {
		switch t {
		case schema.TypeString, schema.TypeInteger, schema.TypeNumber, schema.TypeBoolean,
			schema.TypeObject, schema.TypeArray, schema.TypeNull:
		default:
			return nil, invalid(path, "unknown type %q", t)
		}
	}
	for _, tr := range s.Transform {
		switch tr {
		case schema.TransformTrim, schema.TransformLowerCase, schema.TransformUpperCase:
		default:
			return nil, invalid(path, "unknown transform %q", tr)
		}
	}
	if s.MinLength != nil && *s.MinLength < 0 {
		return nil, invalid(path, "negative minLength")
	}
	if s.MinItems != nil && *s.MinItems < 0 {
		return nil, invalid(path, "negative minItems")
	}
	if s.MultipleOf < 0 {
		return nil, invalid(path, "negative multipleOf")
	}
	if s.Pattern != "" {
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			return nil, invalid(path, "pattern: %v", err)
		}
		n.pattern = re
	}
	if s.Format != "" {
		f, ok := e.formats[s.Format]
		if !ok {
			return nil, invalid(path, "unknown format %q", s.Format)
		}
		n.format = f
	}

	var err error
	if n.minimum, err = compileBound(s.Minimum, path, true); err != nil {
		return nil, err
	}
	if n.maximum, err = compileBound(s.Maximum, path, true); err != nil {
		return nil, err
	}
	if n.formatMinimum, err = compileBound(s.FormatMinimum, path, false); err != nil {
		return nil, err
	}
	if n.formatMaximum, err = compileBound(s.FormatMaximum, path, false); err != nil {
		return nil, err
	}

	if len(s.Properties) > 0 {
		n.known = make(map[string]struct{}, len(s.Properties))
		for _, name := range s.PropertyNames() {
			child, err := e.compileNode(s.Properties[name], path+"/properties/"+name)
			if err != nil {
				return nil, err
			}
			n.props = append(n.props, property{name: name, node: child})
			n.known[name] = struct{}{}
		}
	}
	if s.Items != nil {
		if n.items, err = e.compileNode(s.Items, path+"/items"); err != nil {
			return nil, err
		}
	}
	for i, sub := range s.AnyOf {
		child, err := e.compileNode(sub, fmt.Sprintf("%s/anyOf/%d", path, i))
		if err != nil {
			return nil, err
		}
		n.anyOf = append(n.anyOf, child)
	}
	for i, sub := range s.OneOf {
		child, err := e.compileNode(sub, fmt.Sprintf("%s/oneOf/%d", path, i))
		if err != nil {
			return nil, err
		}
		n.oneOf = append(n.oneOf, child)
	}
	return n, nil
}

func compileBound(l *schema.Limit, path string, numeric bool) (*bound, error) {
	if l == nil {
		return nil, nil
	}
	if l.Data != "" {
		p, err := parsePointer(l.Data)
		if err != nil {
			return nil, invalid(path, "$data %q: %v", l.Data, err)
		}
		return &bound{ptr: p}, nil
	}
	if numeric {
		f, ok := toFloat(l.Value)
		if !ok {
			return nil, invalid(path, "numeric bound %v", l.Value)
		}
		return &bound{value: f}, nil
	}
	s, ok := l.Value.(string)
	if !ok {
		return nil, invalid(path, "format bound %v", l.Value)
	}
	return &bound{value: s}, nil
}

// parsePointer parses a relative JSON pointer: a non-negative level count followed by
// an optional JSON pointer.
func parsePointer(raw string) (*pointer, error) {
	i := 0
	for i < len(raw) && raw[i] >= '0' && raw[i] <= '9' {
		i++
	}
	if i == 0 {
		return nil, errors.New("missing level")
	}
	up, err := strconv.Atoi(raw[:i])
	if err != nil {
		return nil, err
	}
	rest := raw[i:]
	p := &pointer{up: up}
	if rest == "" {
		return p, nil
	}
	if rest[0] != '/' {
		return nil, errors.New("pointer must start with /")
	}
	for _, tok := range strings.Split(rest[1:], "/") {
		tok = strings.ReplaceAll(tok, "~1", "/")
		tok = strings.ReplaceAll(tok, "~0", "~")
		p.tokens = append(p.tokens, tok)
	}
	return p, nil
}

// resolve evaluates the pointer. lineage holds the ancestors of the current value
// (root first) followed by the current value itself.
func (p *pointer) resolve(lineage []any) (any, bool) {
	idx := len(lineage) - 1 - p.up
	if idx < 0 {
		return nil, false
	}
	cur := lineage[idx]
	for _, tok := range p.tokens {
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[tok]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(tok)
			if err != nil || i < 0 || i >= len(c) {
				return nil, false
			}
			cur = c[i]
		default:
			return nil, false
		}
	}
	return cur, true
}
