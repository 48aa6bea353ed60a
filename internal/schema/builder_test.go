package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString_RequiredDefaults(t *testing.T) {
	s := String("name", StringOptions{MaxLength: 255})["name"]
	require.NotNil(t, s)
	assert.Equal(t, []Type{TypeString}, s.Types)
	assert.Equal(t, 1, *s.MinLength)
	assert.Equal(t, 255, *s.MaxLength)
	assert.Equal(t, []string{TransformTrim}, s.Transform)
}

func TestString_OptionalIsNullableAndMayBeEmpty(t *testing.T) {
	s := String("manager_name", StringOptions{Optional: true, MinLength: Int(5)})["manager_name"]
	assert.True(t, s.Nullable())
	assert.Equal(t, 0, *s.MinLength)
	assert.Nil(t, s.MaxLength)
}

func TestString_TrimAlwaysFirst(t *testing.T) {
	s := String("k", StringOptions{Transform: []string{TransformLowerCase, TransformTrim}})["k"]
	assert.Equal(t, []string{TransformTrim, TransformLowerCase}, s.Transform)
}

func TestInteger_DefaultBounds(t *testing.T) {
	s := Integer("n", IntegerOptions{})["n"]
	assert.Equal(t, float64(-BigInt), s.Minimum.Value)
	assert.Equal(t, float64(BigInt), s.Maximum.Value)
	assert.False(t, s.Nullable())

	opt := Integer("n", IntegerOptions{Optional: true})["n"]
	assert.Equal(t, []Type{TypeInteger, TypeNull}, opt.Types)
}

func TestArrayOfInteger_IsScalarOrSet(t *testing.T) {
	s := ArrayOfInteger("orgs")["orgs"]
	require.Len(t, s.AnyOf, 2)
	arr, scalar := s.AnyOf[0], s.AnyOf[1]
	assert.Equal(t, []Type{TypeArray}, arr.Types)
	assert.True(t, arr.UniqueItems)
	assert.Equal(t, 1, *arr.MinItems)
	assert.Equal(t, []Type{TypeInteger}, scalar.Types)
}

func TestRanges_UseDataReference(t *testing.T) {
	d := DateRange("period")["period"]
	assert.Equal(t, "1/min", d.Properties["max"].FormatMinimum.Data)
	assert.False(t, *d.AdditionalProperties)

	i := IntegerRange("duration")["duration"]
	assert.Equal(t, "1/min", i.Properties["max"].Minimum.Data)
}

func TestBuilder_KeyAndMerge(t *testing.T) {
	b := NewBuilder("CallSchema")
	assert.Equal(t, "CallSchema/create", b.Key("create"))

	root := b.Named("create", Object(Merge(ID("id"), Boolean("flag")), "id"))
	assert.Equal(t, "CallSchema/create", root.ID)
	assert.Equal(t, []string{"flag", "id"}, root.PropertyNames())
	assert.Equal(t, []string{"id"}, root.Required)

	assert.Equal(t, "common/x", NewBuilder("").Key("x"))
}
