package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Kind classifies an error for the HTTP boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnavailable
	KindUnauthorized
	KindBadRequest
)

// CodeValidation is the code carried by every schema violation.
const CodeValidation = "ERR_VALIDATION"

// User-facing messages. Raw infrastructure text is never sent to clients.
const (
	MessageNotFound     = "Not Found"
	MessageConflict     = "Conflict"
	MessageUnavailable  = "Сервис недоступен."
	MessageInternal     = "Что-то пошло не так."
	MessageUnauthorized = "Unauthorized"
)

// FieldError is one entry of the errors array in an error envelope.
type FieldError struct {
	Code    string `json:"code"`
	Key     string `json:"key,omitempty"`
	Message string `json:"message"`
}

// Error is the normalized domain error. Services return it, response.Fail serialises it.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.label(), e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.label(), e.Message)
	}
	return e.label()
}

func (e *Error) Unwrap() error { return e.Err }

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	case KindUnauthorized:
		return "unauthorized"
	case KindBadRequest:
		return "bad request"
	default:
		return "internal"
	}
}

func (e *Error) label() string { return e.Kind.String() }

// Status maps the kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Entries returns the wire error list for this error.
func (e *Error) Entries() []FieldError {
	if len(e.Fields) > 0 {
		out := make([]FieldError, len(e.Fields))
		copy(out, e.Fields)
		return out
	}
	if e.Kind == KindValidation {
		// Every violation was path-less and dropped during normalization.
		return []FieldError{}
	}
	code := e.Code
	if code == "" {
		code = http.StatusText(e.Status())
	}
	msg := e.Message
	if msg == "" {
		msg = defaultMessage(e.Kind)
	}
	return []FieldError{{Code: code, Message: msg}}
}

func defaultMessage(k Kind) string {
	switch k {
	case KindNotFound:
		return MessageNotFound
	case KindConflict:
		return MessageConflict
	case KindUnavailable:
		return MessageUnavailable
	case KindUnauthorized:
		return MessageUnauthorized
	default:
		return MessageInternal
	}
}

func Validation(fields []FieldError) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Fields: fields}
}

func NotFound(err error) *Error {
	return &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: MessageNotFound, Err: err}
}

func Conflict(err error) *Error {
	return &Error{Kind: KindConflict, Code: "CONFLICT", Message: MessageConflict, Err: err}
}

func Unavailable(err error) *Error {
	return &Error{Kind: KindUnavailable, Code: "SERVICE_UNAVAILABLE", Message: MessageUnavailable, Err: err}
}

func Unauthorized(err error) *Error {
	return &Error{Kind: KindUnauthorized, Code: "UNAUTHORIZED", Message: MessageUnauthorized, Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL", Message: MessageInternal, Err: err}
}

// BadRequest carries a domain specific code and message, e.g. a failed transcription upload.
func BadRequest(code, message string, err error) *Error {
	return &Error{Kind: KindBadRequest, Code: code, Message: message, Err: err}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == k
}

const pgUniqueViolation = "23505"

// FromStore converts a store error into a domain error.
// Already-normalized errors pass through unchanged.
func FromStore(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NotFound(err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUniqueViolation {
			return Conflict(err)
		}
		return Unavailable(err)
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return Unavailable(err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return Unavailable(err)
	}
	return Internal(err)
}
