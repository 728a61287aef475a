package canon

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_SortsKeysAndOmitsWhitespace(t *testing.T) {
	out, err := Marshal(map[string]any{
		"b": int64(2),
		"a": "x",
		"c": []any{true, false, 1.5},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":2,"c":[true,false,1.5]}`, string(out))
}

func TestMarshal_NoHTMLEscaping(t *testing.T) {
	out, err := Marshal("<a & b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(out))
}

func TestMarshal_EscapesControlCharacters(t *testing.T) {
	out, err := Marshal("q\"\\\n\x01 ")
	require.NoError(t, err)
	assert.Equal(t, "\"q\\\"\\\\\\n\\u0001 \"", string(out))
}

func TestMarshal_NFCNormalizes(t *testing.T) {
	decomposed := "e\u0301"
	out, err := Marshal(decomposed)
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(out))
}

func TestMarshal_Numbers(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{0.0, "0"},
		{1.0, "1"},
		{0.25, "0.25"},
		{-3.5, "-3.5"},
		{100000.0, "100000"},
		{1e21, "1e+21"},
		{1e-7, "1e-7"},
		{int64(-12), "-12"},
		{7, "7"},
	}
	for _, tt := range tests {
		out, err := Marshal(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(out), "input %v", tt.in)
	}
}

func TestMarshal_RejectsNullAndNonFinite(t *testing.T) {
	_, err := Marshal(nil)
	assert.Error(t, err)

	_, err = Marshal(math.NaN())
	assert.Error(t, err)

	_, err = Marshal(map[string]any{"x": math.Inf(1)})
	assert.Error(t, err)

	_, err = Marshal(struct{}{})
	assert.Error(t, err)
}

func TestMarshal_StringSlices(t *testing.T) {
	out, err := Marshal([]string{"haste", "cooldowns"})
	require.NoError(t, err)
	assert.Equal(t, `["haste","cooldowns"]`, string(out))
}

func TestDigest_DeterministicAndDomainSeparated(t *testing.T) {
	v := map[string]any{"a": int64(1), "b": "two"}
	reordered := map[string]any{"b": "two", "a": int64(1)}

	d1, err := Digest(DomainEventLog, v)
	require.NoError(t, err)
	d2, err := Digest(DomainEventLog, reordered)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)

	d3, err := Digest(DomainReport, v)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
}
