package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"call-insights/internal/apperr"
	"call-insights/internal/pagination"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type relative struct {
	Name   string `json:"name"`
	Secret string `json:"secret"`
}

type client struct {
	ID        string     `json:"id"`
	Phone     string     `json:"phoneNumber"`
	OrgID     int        `json:"orgId"`
	Relatives []relative `json:"relatives"`
	CreatedAt time.Time  `json:"createdAt"`
}

var clientShape = NewShape(
	Field{Name: "id"},
	Field{Name: "phoneNumber", As: "phone"},
	Field{Name: "relatives", Shape: NewShape(Expose("name")...), Many: true},
)

func encode(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

func TestProject_AllowListRenameAndNested(t *testing.T) {
	c := client{ID: "a", Phone: "7999", OrgID: 3, Relatives: []relative{{Name: "Ира", Secret: "x"}}}
	out, err := Project(c, clientShape)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"a","phone":"7999","relatives":[{"name":"Ира"}]}`, encode(t, out))
}

func TestProject_SlicesAndMaps(t *testing.T) {
	in := []map[string]any{
		{"id": "1", "phoneNumber": "1", "unknown": true},
		{"id": "2", "relatives": nil},
	}
	out, err := Project(in, clientShape)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1","phone":"1"},{"id":"2","relatives":null}]`, encode(t, out))
}

func TestProject_NilShapePassesThrough(t *testing.T) {
	in := map[string]int{"a": 1}
	out, err := Project(in, nil)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestProject_SingleObjectIntoManyField(t *testing.T) {
	out, err := Project(map[string]any{"relatives": map[string]any{"name": "a", "secret": "b"}}, clientShape)
	require.NoError(t, err)
	assert.Equal(t, `{"relatives":[{"name":"a"}]}`, encode(t, out))
}

func TestProject_KeepsLargeNumbers(t *testing.T) {
	shape := NewShape(Expose("callId")...)
	out, err := Project(map[string]any{"callId": int64(9007199254740993)}, shape)
	require.NoError(t, err)
	assert.Equal(t, `{"callId":9007199254740993}`, encode(t, out))
}

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestOK_WrapsProjectedData(t *testing.T) {
	c, w := newContext()
	OK(c, http.StatusCreated, client{ID: "a"}, clientShape)

	assert.Equal(t, http.StatusCreated, w.Code)
	want := map[string]any{
		"success":  true,
		"response": map[string]any{"data": map[string]any{"id": "a", "phone": "", "relatives": nil}},
	}
	if diff := cmp.Diff(want, decode(t, w)); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestPage_AttachesMetadata(t *testing.T) {
	c, w := newContext()
	Page(c, []client{{ID: "a"}}, 41, pagination.Resolve("2", "20"), NewShape(Expose("id")...))

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	resp := body["response"].(map[string]any)
	assert.Equal(t, []any{map[string]any{"id": "a"}}, resp["data"])
	assert.Equal(t, map[string]any{
		"page": float64(2), "limit": float64(20), "itemCount": float64(41),
		"pageCount": float64(3), "hasPrevPage": true, "hasNextPage": true,
	}, resp["pagination"])
}

func TestPage_EmptyListIsArray(t *testing.T) {
	c, w := newContext()
	var none []client
	Page(c, none, 0, pagination.Resolve(nil, nil), nil)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}

func TestFail_Envelopes(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		want   []any
	}{
		{
			name:   "validation",
			err:    apperr.Validation([]apperr.FieldError{{Code: apperr.CodeValidation, Key: "name", Message: "m"}}),
			status: http.StatusUnprocessableEntity,
			want:   []any{map[string]any{"code": "ERR_VALIDATION", "key": "name", "message": "m"}},
		},
		{
			name:   "not found",
			err:    apperr.NotFound(errors.New("no rows")),
			status: http.StatusNotFound,
			want:   []any{map[string]any{"code": "NOT_FOUND", "message": apperr.MessageNotFound}},
		},
		{
			name:   "unavailable hides infrastructure text",
			err:    apperr.Unavailable(errors.New("dial tcp 10.0.0.1:5432")),
			status: http.StatusServiceUnavailable,
			want:   []any{map[string]any{"code": "SERVICE_UNAVAILABLE", "message": apperr.MessageUnavailable}},
		},
		{
			name:   "unclassified",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			want:   []any{map[string]any{"code": CodeUnknown, "message": apperr.MessageInternal}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, w := newContext()
			Fail(c, tc.err)

			assert.Equal(t, tc.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, map[string]any{"data": map[string]any{}}, body["response"])
			if diff := cmp.Diff(tc.want, body["errors"]); diff != "" {
				t.Fatalf("errors mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
