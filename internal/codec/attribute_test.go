package codec

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalValue_Scalars(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		value interface{}
		want  types.AttributeValue
	}{
		{name: "string", value: "pasta", want: &types.AttributeValueMemberS{Value: "pasta"}},
		{name: "bool true", value: true, want: &types.AttributeValueMemberBOOL{Value: true}},
		{name: "bool false", value: false, want: &types.AttributeValueMemberBOOL{Value: false}},
		{name: "int", value: 42, want: &types.AttributeValueMemberN{Value: "42"}},
		{name: "int64", value: int64(-7), want: &types.AttributeValueMemberN{Value: "-7"}},
		{name: "float", value: 4.5, want: &types.AttributeValueMemberN{Value: "4.5"}},
		{name: "whole float keeps decimal point", value: 1.0, want: &types.AttributeValueMemberN{Value: "1.0"}},
		{name: "nil", value: nil, want: &types.AttributeValueMemberNULL{Value: true}},
		{name: "uint via reflection", value: uint16(9), want: &types.AttributeValueMemberN{Value: "9"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, MarshalValue(tt.value))
		})
	}
}

func TestMarshal_OmitsTopLevelNil(t *testing.T) {
	t.Parallel()
	item := Marshal(map[string]interface{}{
		"name":     "soup",
		"calories": nil,
	})

	assert.Contains(t, item, "name")
	assert.NotContains(t, item, "calories")
}

func TestMarshalValue_NestedNilIsExplicitNull(t *testing.T) {
	t.Parallel()
	av := MarshalValue([]interface{}{"a", nil})

	list, ok := av.(*types.AttributeValueMemberL)
	require.True(t, ok)
	require.Len(t, list.Value, 2)
	assert.IsType(t, &types.AttributeValueMemberNULL{}, list.Value[1])
}

func TestMarshalValue_FallbackString(t *testing.T) {
	t.Parallel()
	type opaque struct{ a int }
	av := MarshalValue(opaque{a: 1})

	s, ok := av.(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "{1}", s.Value)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		item map[string]interface{}
	}{
		{
			name: "scalars",
			item: map[string]interface{}{
				"name":    "chicken stock",
				"vegan":   false,
				"serves":  int64(4),
				"rating":  4.5,
				"minutes": int64(90),
			},
		},
		{
			name: "heterogeneous list",
			item: map[string]interface{}{
				"mixed": []interface{}{"a", int64(1), 2.5, true, nil},
			},
		},
		{
			name: "nested maps",
			item: map[string]interface{}{
				"nutrition": map[string]interface{}{
					"calories": 250.0,
					"protein":  12.5,
					"tags":     []interface{}{"low-fat"},
				},
			},
		},
		{
			name: "empty item",
			item: map[string]interface{}{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Unmarshal(Marshal(tt.item))
			assert.Equal(t, tt.item, got)
		})
	}
}

func TestUnmarshalValue_NumberDecoding(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		wire string
		want interface{}
	}{
		{name: "integer", wire: "42", want: int64(42)},
		{name: "negative integer", wire: "-3", want: int64(-3)},
		{name: "float", wire: "4.5", want: 4.5},
		{name: "whole float", wire: "1.0", want: 1.0},
		{name: "exponent decodes as float", wire: "1e3", want: 1000.0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := UnmarshalValue(&types.AttributeValueMemberN{Value: tt.wire})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnmarshalValue_MalformedNumberPanics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() {
		UnmarshalValue(&types.AttributeValueMemberN{Value: "not-a-number"})
	})
}
