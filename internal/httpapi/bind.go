package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"call-insights/internal/apperr"
	"call-insights/internal/pagination"
	"call-insights/internal/schema"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CodeMalformedJSON is returned when the request body is not JSON at all.
const CodeMalformedJSON = "MALFORMED_JSON"

// listQuery is the decoded form of every list endpoint's query string.
type listQuery[S any] struct {
	Page  any `json:"page"`
	Limit any `json:"limit"`
	Sort  S   `json:"sort"`
}

func (q listQuery[S]) page() pagination.Page {
	return pagination.Resolve(q.Page, q.Limit)
}

// bindBody validates the JSON body against s and decodes the coerced result into dst.
// Numbers stay json.Number so 64-bit ids survive validation intact.
func (h Handlers) bindBody(c *gin.Context, s *schema.Schema, dst any) error {
	var raw any
	if c.Request.Body != nil {
		dec := json.NewDecoder(c.Request.Body)
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return apperr.BadRequest(CodeMalformedJSON, "Тело запроса не является корректным JSON.", err)
		}
	}
	return h.Validator.Bind(c.Request.Context(), s, raw, dst)
}

// bindQuery validates the query string against s. Bracketed keys (sort[datetime]=asc)
// become nested objects.
func (h Handlers) bindQuery(c *gin.Context, s *schema.Schema, dst any) error {
	return h.Validator.Bind(c.Request.Context(), s, queryData(c), dst)
}

// bindID validates the :id path parameter against s.
func (h Handlers) bindID(c *gin.Context, s *schema.Schema) (uuid.UUID, error) {
	var p struct {
		ID uuid.UUID `json:"id"`
	}
	if err := h.Validator.Bind(c.Request.Context(), s, map[string]any{"id": c.Param("id")}, &p); err != nil {
		return uuid.Nil, err
	}
	return p.ID, nil
}

func queryData(c *gin.Context) map[string]any {
	out := map[string]any{}
	for key, vals := range c.Request.URL.Query() {
		if name, _, nested := strings.Cut(key, "["); nested {
			if _, done := out[name]; done || name == "" {
				continue
			}
			m := map[string]any{}
			for k, v := range c.QueryMap(name) {
				m[k] = v
			}
			out[name] = m
			continue
		}
		if len(vals) == 1 {
			out[key] = vals[0]
			continue
		}
		items := make([]any, len(vals))
		for i, v := range vals {
			items[i] = v
		}
		out[key] = items
	}
	return out
}
