package response

import (
	"net/http"
	"reflect"

	"call-insights/internal/apperr"
	"call-insights/internal/pagination"
	"call-insights/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CodeUnknown marks failures that carry no domain classification.
const CodeUnknown = "UNKNOWN"

// Envelope is the shape of every JSON response.
type Envelope struct {
	Success  bool                `json:"success"`
	Response Body                `json:"response"`
	Errors   []apperr.FieldError `json:"errors,omitempty"`
}

type Body struct {
	Data       any              `json:"data"`
	Pagination *pagination.Meta `json:"pagination,omitempty"`
}

// Success wraps data (already projected) in a success envelope.
func Success(data any) Envelope {
	return Envelope{Success: true, Response: Body{Data: data}}
}

// Failure builds the error envelope. Data is always an empty object.
func Failure(entries []apperr.FieldError) Envelope {
	return Envelope{Success: false, Response: Body{Data: struct{}{}}, Errors: entries}
}

// Classify turns any error into an *apperr.Error. Unclassified errors become
// internal errors with the UNKNOWN code.
func Classify(err error) *apperr.Error {
	if ae, ok := apperr.As(err); ok {
		return ae
	}
	ae := apperr.Internal(err)
	ae.Code = CodeUnknown
	return ae
}

// OK projects data through shape and writes it with status.
func OK(c *gin.Context, status int, data any, shape *Shape) {
	out, err := Project(data, shape)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(status, Success(out))
}

// Page writes a projected list with pagination metadata derived from total.
func Page(c *gin.Context, items any, total int, page pagination.Page, shape *Shape) {
	out, err := Project(items, shape)
	if err != nil {
		Fail(c, err)
		return
	}
	if isNil(out) {
		out = []any{}
	}
	meta := pagination.Metadata(page, total)
	env := Success(out)
	env.Response.Pagination = &meta
	c.JSON(http.StatusOK, env)
}

func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Fail is the only place domain errors become wire responses.
func Fail(c *gin.Context, err error) {
	ae := Classify(err)
	status := ae.Status()
	_ = c.Error(err)

	l := logger.FromGin(c)
	switch {
	case status >= http.StatusInternalServerError && ae.Kind != apperr.KindUnavailable:
		l.Error("request failed", "kind", ae.Kind.String(), "code", ae.Code, "err", err)
	case ae.Kind == apperr.KindUnavailable:
		l.Warn("dependency unavailable", "code", ae.Code, "err", err)
	default:
		l.Debug("request rejected", "kind", ae.Kind.String(), "status", status, "code", ae.Code)
	}
	c.AbortWithStatusJSON(status, Failure(ae.Entries()))
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Slice && rv.IsNil()
}
