package validation

import (
	"context"
	"sync"
	"testing"
	"time"

	"call-insights/internal/apperr"
	"call-insights/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New()
	require.NoError(t, err)
	return e
}

func tokenSchema() *schema.Schema {
	orgs := schema.Array(&schema.Schema{Types: []schema.Type{schema.TypeInteger}, Minimum: schema.Num(1)})
	orgs.MinItems = schema.Int(1)
	orgs.UniqueItems = true
	return schema.NewBuilder("AuthTokenSchema").Named("create", schema.Object(
		schema.Merge(
			schema.String("name", schema.StringOptions{MaxLength: 255}),
			schema.Fields{"orgs": orgs},
		),
		"name", "orgs",
	))
}

func keys(fields []apperr.FieldError) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Key
	}
	return out
}

func TestValidate_EmptyNameYieldsSingleError(t *testing.T) {
	v, err := newEngine(t).CompileOrGet(tokenSchema())
	require.NoError(t, err)

	_, errs := v.Validate(map[string]any{"name": "", "orgs": []any{float64(1)}})
	require.Len(t, errs, 1)
	assert.Equal(t, "name", errs[0].Key)
	assert.Equal(t, apperr.CodeValidation, errs[0].Code)
	assert.Equal(t, "должно иметь не менее 1 символов", errs[0].Message)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	v, err := newEngine(t).CompileOrGet(tokenSchema())
	require.NoError(t, err)

	_, errs := v.Validate(map[string]any{"orgs": []any{}})
	assert.ElementsMatch(t, []string{"name", "orgs"}, keys(errs))
}

func TestValidate_WhitespaceIsTrimmedBeforeLengthCheck(t *testing.T) {
	v, err := newEngine(t).CompileOrGet(tokenSchema())
	require.NoError(t, err)

	_, errs := v.Validate(map[string]any{"name": "   ", "orgs": []any{float64(1)}})
	assert.Equal(t, []string{"name"}, keys(errs))

	out, errs := v.Validate(map[string]any{"name": "  ops  ", "orgs": []any{"2"}})
	require.Nil(t, errs)
	m := out.(map[string]any)
	assert.Equal(t, "ops", m["name"])
	assert.Equal(t, []any{float64(2)}, m["orgs"])
}

func TestValidate_AdditionalAndDuplicateItems(t *testing.T) {
	v, err := newEngine(t).CompileOrGet(tokenSchema())
	require.NoError(t, err)

	_, errs := v.Validate(map[string]any{"name": "x", "orgs": []any{float64(1), "1"}, "extra": true})
	assert.ElementsMatch(t, []string{"orgs", "extra"}, keys(errs))
}

func TestValidate_CoercesQueryStrings(t *testing.T) {
	s := schema.OpenObject(schema.Merge(
		schema.Integer("limit", schema.IntegerOptions{}),
		schema.Boolean("flag"),
		schema.String("note", schema.StringOptions{Optional: true}),
	))
	v, err := newEngine(t).Compile(s)
	require.NoError(t, err)

	out, errs := v.Validate(map[string]any{"limit": "20", "flag": "true", "note": nil})
	require.Nil(t, errs)
	m := out.(map[string]any)
	assert.Equal(t, float64(20), m["limit"])
	assert.Equal(t, true, m["flag"])
	assert.Nil(t, m["note"])

	_, errs = v.Validate(map[string]any{"limit": "2.5"})
	assert.Equal(t, []string{"limit"}, keys(errs))
}

func TestValidate_OptionalIntegerRejectsFractions(t *testing.T) {
	v, err := newEngine(t).Compile(schema.Object(schema.Integer("n", schema.IntegerOptions{Optional: true})))
	require.NoError(t, err)

	_, errs := v.Validate(map[string]any{"n": nil})
	assert.Nil(t, errs)
	_, errs = v.Validate(map[string]any{"n": 1.5})
	assert.Equal(t, []string{"n"}, keys(errs))
}

func TestValidate_ArrayOrScalarDuality(t *testing.T) {
	v, err := newEngine(t).Compile(schema.Object(schema.ArrayOfInteger("ids")))
	require.NoError(t, err)

	out, errs := v.Validate(map[string]any{"ids": "7"})
	require.Nil(t, errs)
	assert.Equal(t, float64(7), out.(map[string]any)["ids"])

	out, errs = v.Validate(map[string]any{"ids": []any{float64(1), float64(2)}})
	require.Nil(t, errs)
	assert.Equal(t, []any{float64(1), float64(2)}, out.(map[string]any)["ids"])

	_, errs = v.Validate(map[string]any{"ids": []any{}})
	require.NotEmpty(t, errs)
	for _, e := range errs {
		assert.Equal(t, "ids", e.Key)
	}
}

func TestValidate_DataReferenceRanges(t *testing.T) {
	v, err := newEngine(t).Compile(schema.Object(schema.Merge(
		schema.DateRange("period"),
		schema.IntegerRange("duration"),
	)))
	require.NoError(t, err)

	_, errs := v.Validate(map[string]any{
		"period":   map[string]any{"min": "2024-05-10", "max": "2024-05-01"},
		"duration": map[string]any{"min": "30", "max": "10"},
	})
	assert.ElementsMatch(t, []string{"period.max", "duration.max"}, keys(errs))

	_, errs = v.Validate(map[string]any{
		"period":   map[string]any{"min": "2024-05-01", "max": "2024-05-10"},
		"duration": map[string]any{"min": float64(10)},
	})
	assert.Nil(t, errs)
}

func TestValidate_OneOfUnlimitedPage(t *testing.T) {
	page := &schema.Schema{OneOf: []*schema.Schema{
		{Types: []schema.Type{schema.TypeInteger}, Format: schema.FormatInt64, Minimum: schema.Num(1), Maximum: schema.Num(schema.BigInt)},
		{Types: []schema.Type{schema.TypeInteger}, Const: float64(-1), HasConst: true},
	}}
	v, err := newEngine(t).Compile(schema.OpenObject(schema.Fields{"page": page}))
	require.NoError(t, err)

	for _, raw := range []any{"-1", "3", float64(1)} {
		_, errs := v.Validate(map[string]any{"page": raw})
		assert.Nil(t, errs, "page %v", raw)
	}
	_, errs := v.Validate(map[string]any{"page": "0"})
	require.NotEmpty(t, errs)
	assert.Equal(t, "page", errs[len(errs)-1].Key)
}

func TestValidate_FormatsAndNestedPaths(t *testing.T) {
	s := schema.Object(schema.Fields{
		"call": schema.Object(schema.Merge(
			schema.ID("id"),
			schema.DateTime("at", false),
			schema.String("phone", schema.StringOptions{Format: schema.FormatPhoneNumber}),
		), "id"),
	})
	v, err := newEngine(t).Compile(s)
	require.NoError(t, err)

	_, errs := v.Validate(map[string]any{"call": map[string]any{
		"id":    "not-a-uuid",
		"at":    "2024-02-30T10:00:00Z",
		"phone": "79990000000",
	}})
	assert.ElementsMatch(t, []string{"call.id", "call.at"}, keys(errs))

	_, errs = v.Validate(map[string]any{"call": map[string]any{
		"id": "8f14e45f-ceea-4e7a-9a5e-3b1f3c7e6a10",
		"at": "2024-02-20T10:00:00.123+03:00",
	}})
	assert.Nil(t, errs)
}

func TestValidate_CustomErrorMessage(t *testing.T) {
	root := schema.Object(schema.String("code", schema.StringOptions{}), "code")
	root.ErrorMessage = "Некорректный запрос."
	v, err := newEngine(t).Compile(root)
	require.NoError(t, err)

	_, errs := v.Validate(map[string]any{})
	require.Len(t, errs, 1)
	assert.Equal(t, "data", errs[0].Key)
	assert.Equal(t, "Некорректный запрос.", errs[0].Message)
}

func TestCompile_RejectsMalformedSchema(t *testing.T) {
	e := newEngine(t)
	_, err := e.Compile(&schema.Schema{Types: []schema.Type{schema.TypeString}, Pattern: "("})
	assert.True(t, IsInvalidSchema(err))

	_, err = e.Compile(&schema.Schema{Format: "no-such-format"})
	assert.True(t, IsInvalidSchema(err))

	_, err = e.Validate(context.Background(), &schema.Schema{ID: "bad/one", Minimum: schema.Data("x")}, 1)
	assert.True(t, apperr.IsKind(err, apperr.KindInternal))
}

func TestEngine_ValidateReturnsValidationKind(t *testing.T) {
	_, err := newEngine(t).Validate(context.Background(), tokenSchema(), map[string]any{})
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, ae.Kind)
	assert.Len(t, ae.Fields, 2)
}

func TestEngine_CompilesOncePerIdentity(t *testing.T) {
	e := newEngine(t)
	var wg sync.WaitGroup
	results := make([]*Validator, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := e.CompileOrGet(tokenSchema())
			if err == nil {
				results[i] = v
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), e.Compiles())
	for _, v := range results {
		require.NotNil(t, v)
		assert.Same(t, results[0], v)
	}
}

func TestEngine_BindDecodesCoercedValue(t *testing.T) {
	var dst struct {
		Name string  `json:"name"`
		Orgs []int64 `json:"orgs"`
	}
	err := newEngine(t).Bind(context.Background(), tokenSchema(), map[string]any{"name": " a ", "orgs": []any{"5"}}, &dst)
	require.NoError(t, err)
	assert.Equal(t, "a", dst.Name)
	assert.Equal(t, []int64{5}, dst.Orgs)
}

func TestEngine_BindNormalizesDateTimes(t *testing.T) {
	s := schema.NewBuilder("DateTimeBind").Named("create", schema.Object(schema.DateTime("at", false), "at"))
	want := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"2024-05-01T10:00:00+03:00",
		"2024-05-01 10:00:00+03:00",
		"2024-05-01t07:00:00z",
	} {
		var dst struct {
			At time.Time `json:"at"`
		}
		err := newEngine(t).Bind(context.Background(), s, map[string]any{"at": in}, &dst)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(dst.At), "%s decoded as %s", in, dst.At)
	}
}

func TestValidate_DropsPathlessErrors(t *testing.T) {
	v, err := newEngine(t).Compile(tokenSchema())
	require.NoError(t, err)

	_, errs := v.Validate([]any{})
	require.NotNil(t, errs)
	assert.Empty(t, errs)
}
