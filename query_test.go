package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionHelpers(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		op   Operator
		val  any
	}{
		{"eq", Eq("a", 1), OpEq, 1},
		{"ne", Ne("a", 1), OpNe, 1},
		{"gt", Gt("a", 1), OpGt, 1},
		{"ge", Ge("a", 1), OpGe, 1},
		{"lt", Lt("a", 1), OpLt, 1},
		{"le", Le("a", 1), OpLe, 1},
		{"in", In("a", 1, 2), OpIn, []any{1, 2}},
		{"not in", NotIn("a", 1), OpNotIn, []any{1}},
		{"between", Between("a", 1, 5), OpBetween, [2]any{1, 5}},
		{"prefix", Prefix("a", "x"), OpPrefix, "x"},
		{"suffix", Suffix("a", "x"), OpSuffix, "x"},
		{"contains", Contains("a", "x"), OpContains, "x"},
		{"like", Like("a", "x%"), OpLike, "x%"},
		{"ilike", ILike("a", "x%"), OpILike, "x%"},
		{"regex", Regex("a", "^x"), OpRegex, "^x"},
		{"isnull", IsNull("a"), OpIsNull, nil},
		{"notnull", NotNull("a"), OpNotNull, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, "a", tt.cond.Field)
			assert.Equal(t, tt.op, tt.cond.Op)
			assert.Equal(t, tt.val, tt.cond.Value)
		})
	}
}

func TestAllOf(t *testing.T) {
	a, b := Eq("a", 1), Eq("b", 2)

	assert.Nil(t, AllOf())
	assert.Nil(t, AllOf(nil, nil))
	assert.Equal(t, a, AllOf(nil, a))
	assert.Equal(t, And{Children: []Node{a, b}}, AllOf(a, nil, b))
}

func TestAnyOf(t *testing.T) {
	a, b := Eq("a", 1), Eq("b", 2)

	assert.Nil(t, AnyOf(nil))
	assert.Equal(t, b, AnyOf(b))
	assert.Equal(t, Or{Children: []Node{a, b}}, AnyOf(a, b))
}

func TestNegate(t *testing.T) {
	a := Eq("a", 1)

	assert.Nil(t, Negate(nil))
	assert.Equal(t, Not{Child: a}, Negate(a))

	double := Negate(Negate(a))
	require.NotNil(t, double)
	assert.Equal(t, a, double)
}
