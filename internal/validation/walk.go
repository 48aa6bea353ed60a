package validation

import (
	"math"
	"sort"
	"strconv"
	"unicode/utf8"
)

// rawError is one keyword failure before normalization.
type rawError struct {
	keyword string
	path    []string
	// prop is the missing or additional property name, when relevant.
	prop    string
	message string
}

// run collects errors for one Validate call.
type run struct {
	catalog *catalog
	errs    []rawError
}

func (r *run) fork() *run { return &run{catalog: r.catalog} }

func (r *run) add(keyword string, path []string, prop string, params ...string) {
	r.errs = append(r.errs, rawError{
		keyword: keyword,
		path:    append([]string(nil), path...),
		prop:    prop,
		message: r.catalog.message(keyword, params...),
	})
}

func childPath(path []string, seg string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, seg)
}

func withSelf(ancestors []any, self any) []any {
	out := make([]any, len(ancestors), len(ancestors)+1)
	copy(out, ancestors)
	return append(out, self)
}

// walk validates data against n and returns the coerced and transformed value.
func (r *run) walk(n *node, data any, path []string, ancestors []any) any {
	start := len(r.errs)
	data = r.check(n, data, path, ancestors)
	if msg := n.s.ErrorMessage; msg != "" && len(r.errs) > start {
		r.errs = append(r.errs[:start], rawError{
			keyword: kwErrorMessage,
			path:    append([]string(nil), path...),
			message: msg,
		})
	}
	return data
}

func (r *run) check(n *node, data any, path []string, ancestors []any) any {
	s := n.s
	if len(s.Types) > 0 && !matchesAny(data, s.Types) {
		coerced, ok := coerce(data, s.Types)
		if !ok {
			r.add(kwType, path, "", typeNames(s.Types))
			return data
		}
		data = coerced
	}
	if str, ok := data.(string); ok && len(s.Transform) > 0 {
		data = applyTransforms(str, s.Transform)
	}

	if s.HasConst && !equal(data, s.Const) {
		r.add(kwConst, path, "")
	}
	if len(s.Enum) > 0 && !inEnum(data, s.Enum) {
		r.add(kwEnum, path, "")
	}
	if n.format != nil {
		if n.format(data) {
			data = canonical(s.Format, data)
		} else {
			r.add(kwFormat, path, "", s.Format)
		}
	}

	switch v := data.(type) {
	case string:
		r.checkString(n, v, path, ancestors)
	case map[string]any:
		data = r.checkObject(n, v, path, ancestors)
	case []any:
		data = r.checkArray(n, v, path, ancestors)
	case bool, nil:
	default:
		if f, ok := toFloat(v); ok {
			r.checkNumber(n, f, path, withSelf(ancestors, data))
		}
	}

	if len(n.anyOf) > 0 {
		data = r.checkAnyOf(n, data, path, ancestors)
	}
	if len(n.oneOf) > 0 {
		data = r.checkOneOf(n, data, path, ancestors)
	}
	return data
}

func inEnum(data any, values []any) bool {
	for _, v := range values {
		if equal(data, v) {
			return true
		}
	}
	return false
}

func (r *run) checkString(n *node, v string, path []string, ancestors []any) {
	s := n.s
	length := utf8.RuneCountInString(v)
	if s.MinLength != nil && length < *s.MinLength {
		r.add(kwMinLength, path, "", strconv.Itoa(*s.MinLength))
	}
	if s.MaxLength != nil && length > *s.MaxLength {
		r.add(kwMaxLength, path, "", strconv.Itoa(*s.MaxLength))
	}
	if n.pattern != nil && !n.pattern.MatchString(v) {
		r.add(kwPattern, path, "", s.Pattern)
	}

	lineage := withSelf(ancestors, v)
	if limit, ok := stringBound(n.formatMinimum, lineage); ok {
		if cmp, ok := compareFormatted(s.Format, v, limit); ok && cmp < 0 {
			r.add(kwFormatMinimum, path, "", limit)
		}
	}
	if limit, ok := stringBound(n.formatMaximum, lineage); ok {
		if cmp, ok := compareFormatted(s.Format, v, limit); ok && cmp > 0 {
			r.add(kwFormatMaximum, path, "", limit)
		}
	}
}

func stringBound(b *bound, lineage []any) (string, bool) {
	if b == nil {
		return "", false
	}
	if b.ptr == nil {
		s, ok := b.value.(string)
		return s, ok
	}
	v, ok := b.ptr.resolve(lineage)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func numericBound(b *bound, lineage []any) (float64, bool) {
	if b == nil {
		return 0, false
	}
	if b.ptr == nil {
		return toFloat(b.value)
	}
	v, ok := b.ptr.resolve(lineage)
	if !ok {
		return 0, false
	}
	// A referenced sibling may not have been coerced yet.
	if f, ok := toFloat(v); ok {
		return f, true
	}
	if c, ok := coerceTo(v, "number"); ok {
		return toFloat(c)
	}
	return 0, false
}

func (r *run) checkNumber(n *node, f float64, path []string, lineage []any) {
	s := n.s
	if limit, ok := numericBound(n.minimum, lineage); ok && f < limit {
		r.add(kwMinimum, path, "", formatNumber(limit))
	}
	if limit, ok := numericBound(n.maximum, lineage); ok && f > limit {
		r.add(kwMaximum, path, "", formatNumber(limit))
	}
	if s.MultipleOf > 0 {
		q := f / s.MultipleOf
		if math.Abs(q-math.Round(q)) > 1e-9*math.Max(1, math.Abs(q)) {
			r.add(kwMultipleOf, path, "", formatNumber(s.MultipleOf))
		}
	}
}

func (r *run) checkObject(n *node, in map[string]any, path []string, ancestors []any) map[string]any {
	s := n.s
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}

	for _, req := range s.Required {
		if _, ok := in[req]; !ok {
			r.add(kwRequired, path, req, req)
		}
	}

	lineage := withSelf(ancestors, out)
	for _, p := range n.props {
		val, ok := out[p.name]
		if !ok {
			continue
		}
		out[p.name] = r.walk(p.node, val, childPath(path, p.name), lineage)
	}

	if s.AdditionalProperties != nil && !*s.AdditionalProperties {
		extra := make([]string, 0)
		for k := range in {
			if _, known := n.known[k]; !known {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		for _, k := range extra {
			r.add(kwAdditionalProperties, path, k, k)
		}
	}
	return out
}

func (r *run) checkArray(n *node, in []any, path []string, ancestors []any) []any {
	s := n.s
	if s.MinItems != nil && len(in) < *s.MinItems {
		r.add(kwMinItems, path, "", strconv.Itoa(*s.MinItems))
	}
	if s.MaxItems != nil && len(in) > *s.MaxItems {
		r.add(kwMaxItems, path, "", strconv.Itoa(*s.MaxItems))
	}

	out := make([]any, len(in))
	copy(out, in)
	if n.items != nil {
		lineage := withSelf(ancestors, out)
		for i := range out {
			out[i] = r.walk(n.items, out[i], childPath(path, strconv.Itoa(i)), lineage)
		}
	}

	if s.UniqueItems {
	outer:
		for i := 1; i < len(out); i++ {
			for j := 0; j < i; j++ {
				if equal(out[i], out[j]) {
					r.add(kwUniqueItems, path, "", strconv.Itoa(i), strconv.Itoa(j))
					break outer
				}
			}
		}
	}
	return out
}

func (r *run) checkAnyOf(n *node, data any, path []string, ancestors []any) any {
	var branchErrs []rawError
	for _, b := range n.anyOf {
		sub := r.fork()
		out := sub.walk(b, data, path, ancestors)
		if len(sub.errs) == 0 {
			return out
		}
		branchErrs = append(branchErrs, sub.errs...)
	}
	r.errs = append(r.errs, branchErrs...)
	r.add(kwAnyOf, path, "")
	return data
}

func (r *run) checkOneOf(n *node, data any, path []string, ancestors []any) any {
	var (
		branchErrs []rawError
		passed     int
		result     any
	)
	for _, b := range n.oneOf {
		sub := r.fork()
		out := sub.walk(b, data, path, ancestors)
		if len(sub.errs) == 0 {
			passed++
			if passed == 1 {
				result = out
			}
			continue
		}
		branchErrs = append(branchErrs, sub.errs...)
	}
	if passed == 1 {
		return result
	}
	if passed == 0 {
		r.errs = append(r.errs, branchErrs...)
	}
	r.add(kwOneOf, path, "")
	return data
}
