package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"call-insights/internal/apperr"
	"call-insights/internal/schema"
	"call-insights/pkg/logger"

	"golang.org/x/sync/singleflight"
)

// Validator is a compiled schema. It is immutable and safe for concurrent use.
type Validator struct {
	id      string
	root    *node
	catalog *catalog
}

func (v *Validator) ID() string { return v.id }

// Validate checks data, returning the coerced value or the normalized error list.
// A nil error list means data is valid.
func (v *Validator) Validate(data any) (any, []apperr.FieldError) {
	r := &run{catalog: v.catalog}
	out := r.walk(v.root, data, nil, nil)
	if len(r.errs) == 0 {
		return out, nil
	}
	return nil, normalize(r.errs)
}

// Engine compiles schemas and caches validators by schema identity.
type Engine struct {
	formats map[string]FormatFunc
	catalog *catalog

	cache    sync.Map // schema id -> *Validator
	group    singleflight.Group
	compiles atomic.Int64
}

type Option func(*Engine)

// WithFormat registers or overrides a named format.
func WithFormat(name string, fn FormatFunc) Option {
	return func(e *Engine) {
		if name != "" && fn != nil {
			e.formats[name] = fn
		}
	}
}

func New(opts ...Option) (*Engine, error) {
	fv, err := newFieldValidator()
	if err != nil {
		return nil, fmt.Errorf("validation: field validator: %w", err)
	}
	cat, err := newCatalog()
	if err != nil {
		return nil, err
	}
	e := &Engine{formats: defaultFormats(fv), catalog: cat}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Compile compiles s without consulting the cache.
func (e *Engine) Compile(s *schema.Schema) (*Validator, error) {
	root, err := e.compileNode(s, "")
	if err != nil {
		return nil, err
	}
	e.compiles.Add(1)
	return &Validator{id: s.ID, root: root, catalog: e.catalog}, nil
}

// CompileOrGet returns the cached validator for s.ID, compiling it at most once.
// Schemas without an identity are compiled on every call.
func (e *Engine) CompileOrGet(s *schema.Schema) (*Validator, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil schema", ErrInvalidSchema)
	}
	if s.ID == "" {
		return e.Compile(s)
	}
	if v, ok := e.cache.Load(s.ID); ok {
		return v.(*Validator), nil
	}
	v, err, _ := e.group.Do(s.ID, func() (any, error) {
		if v, ok := e.cache.Load(s.ID); ok {
			return v, nil
		}
		compiled, err := e.Compile(s)
		if err != nil {
			return nil, err
		}
		e.cache.Store(s.ID, compiled)
		return compiled, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Validator), nil
}

// MustCompile warms the cache at startup; a malformed schema is a programming error.
func (e *Engine) MustCompile(schemas ...*schema.Schema) {
	for _, s := range schemas {
		if _, err := e.CompileOrGet(s); err != nil {
			panic(err)
		}
	}
}

// Compiles reports how many schemas have been compiled so far.
func (e *Engine) Compiles() int64 { return e.compiles.Load() }

// Validate runs data through the validator for s. Invalid input yields an
// apperr validation error; anything unexpected yields an internal error and is logged.
func (e *Engine) Validate(ctx context.Context, s *schema.Schema, data any) (out any, err error) {
	id := ""
	if s != nil {
		id = s.ID
	}
	defer func() {
		if p := recover(); p != nil {
			logger.From(ctx).Error("validation panicked", "schema", id, "panic", fmt.Sprint(p))
			out, err = nil, apperr.Internal(fmt.Errorf("validation: panic: %v", p))
		}
	}()

	v, err := e.CompileOrGet(s)
	if err != nil {
		logger.From(ctx).Error("validation schema compile failed", "schema", id, "err", err)
		return nil, apperr.Internal(err)
	}
	out, fields := v.Validate(data)
	if fields != nil {
		return nil, apperr.Validation(fields)
	}
	return out, nil
}

// Bind validates data and decodes the coerced result into dst.
func (e *Engine) Bind(ctx context.Context, s *schema.Schema, data any, dst any) error {
	out, err := e.Validate(ctx, s, data)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(out)
	if err == nil {
		err = json.Unmarshal(raw, dst)
	}
	if err != nil {
		logger.From(ctx).Error("validated payload does not fit target", "schema", s.ID, "err", err)
		return apperr.Internal(fmt.Errorf("validation: decode: %w", err))
	}
	return nil
}

// normalize turns raw keyword failures into wire errors keyed by dotted field path.
func normalize(errs []rawError) []apperr.FieldError {
	out := make([]apperr.FieldError, 0, len(errs))
	for _, e := range errs {
		segs := e.path
		if e.prop != "" {
			segs = append(append([]string(nil), segs...), e.prop)
		}
		key := strings.Join(segs, ".")
		if key == "" {
			if len(errs) != 1 || e.keyword != kwErrorMessage {
				continue
			}
			key = "data"
		}
		out = append(out, apperr.FieldError{Code: apperr.CodeValidation, Key: key, Message: e.message})
	}
	return out
}

// IsInvalidSchema reports whether err stems from a malformed schema.
func IsInvalidSchema(err error) bool { return errors.Is(err, ErrInvalidSchema) }
