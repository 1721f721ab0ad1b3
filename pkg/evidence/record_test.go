package evidence

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_OrderPreserved(t *testing.T) {
	r := NewRecord().
		Set("zeta", IntValue(1)).
		Set("alpha", BoolValue(true)).
		Set("mid", StringValue("x"))

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, r.Names())

	// Overwriting keeps the original position.
	r.Set("zeta", IntValue(2))
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, r.Names())
	v, ok := r.Get("zeta")
	require.True(t, ok)
	assert.Equal(t, int64(2), v.Int)
}

func TestRecord_MarshalRoundTrip(t *testing.T) {
	r := NewRecord().
		Set("count", IntValue(3)).
		Set("ratio", FloatValue(4.5)).
		Set("ok", BoolValue(false)).
		Set("codes", StringsValue([]string{"A", "B"})).
		Set("note", StringValue("sampled"))
	r.Role = "summary"
	r.OriginStage = "pre-render"

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r.Names(), back.Names())
	assert.Equal(t, "summary", back.Role)
	assert.Equal(t, "pre-render", back.OriginStage)

	for _, name := range r.Names() {
		want, _ := r.Get(name)
		got, ok := back.Get(name)
		require.True(t, ok, name)
		assert.True(t, want.Equal(got), "value %q survives the round trip", name)
	}
}

func TestRecord_MarshalDeterministic(t *testing.T) {
	r := NewRecord().Set("b", IntValue(1)).Set("a", IntValue(2))
	first, err := json.Marshal(r)
	require.NoError(t, err)
	second, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.JSONEq(t, `{"values":{"b":1,"a":2}}`, string(first))
}

func TestClaims_AllTrue(t *testing.T) {
	c := &Claims{WCAG20: map[string]bool{
		"keyboard_assessed":       true,
		"keyboard_basis_recorded": true,
	}}
	assert.True(t, c.AllTrue("wcag20", "keyboard_assessed", "keyboard_basis_recorded"))
	assert.False(t, c.AllTrue("wcag20", "keyboard_assessed", "keyboard_scope_declared"))
	assert.False(t, c.AllTrue("section508", "nonweb_assessed"))

	var nilClaims *Claims
	assert.False(t, nilClaims.AllTrue("wcag20", "keyboard_assessed"))
}

func TestValue_Equal(t *testing.T) {
	assert.True(t, StringsValue([]string{"a"}).Equal(StringsValue([]string{"a"})))
	assert.False(t, StringsValue([]string{"a"}).Equal(StringsValue([]string{"b"})))
	assert.False(t, IntValue(1).Equal(FloatValue(1)))
}
