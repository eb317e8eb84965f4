package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeSortsKeysRecursively(t *testing.T) {
	got, err := Canonicalize(map[string]any{
		"b": 2,
		"a": map[string]any{"y": []any{3, 1, 2}, "x": "<tag>&"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"x":"<tag>&","y":[3,1,2]},"b":2}`, got)
}

func TestHashIgnoresKeyOrder(t *testing.T) {
	a := map[string]any{
		"orderId": "o-1",
		"scope":   map[string]any{"purpose": "research", "durationDays": 30},
		"buyerId": "0xabc",
	}
	b := map[string]any{
		"buyerId": "0xabc",
		"scope":   map[string]any{"durationDays": 30, "purpose": "research"},
		"orderId": "o-1",
	}
	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 66)
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, ha)
}

func TestHashStructMatchesEquivalentMap(t *testing.T) {
	type scope struct {
		Purpose      string `json:"purpose"`
		DurationDays int    `json:"durationDays"`
	}
	hs, err := Hash(map[string]any{"scope": scope{Purpose: "p", DurationDays: 1}})
	require.NoError(t, err)
	hm, err := Hash(map[string]any{"scope": map[string]any{"durationDays": 1, "purpose": "p"}})
	require.NoError(t, err)
	assert.Equal(t, hs, hm)
}

func TestHashChangesWithArrayOrder(t *testing.T) {
	h1 := MustHash(map[string]any{"a": []int{1, 2}})
	h2 := MustHash(map[string]any{"a": []int{2, 1}})
	assert.NotEqual(t, h1, h2)
}

func TestHashStringIsNotReencoded(t *testing.T) {
	msg, err := Canonicalize(map[string]any{"k": "v"})
	require.NoError(t, err)
	viaString, err := Hash(msg)
	require.NoError(t, err)
	viaValue, err := Hash(map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, viaValue, viaString)
}

func TestHashToken(t *testing.T) {
	h := HashToken("tok_abc")
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, h)
	assert.Equal(t, h, HashToken("tok_abc"))
	assert.NotEqual(t, h, HashToken("tok_abd"))
}
