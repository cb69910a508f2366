package advisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall_ExtractsEmbeddedJSON(t *testing.T) {
	stub := NewStub(`Sure, here you go: {"direction":"UP","confidence":72} -- hope that helps!`)
	a := New(stub)

	out := a.Call(context.Background(), "what next")
	require.NotNil(t, out)
	assert.Equal(t, "UP", out["direction"])
	assert.Equal(t, float64(72), out["confidence"])
}

func TestCall_NilOnUnparseableResponse(t *testing.T) {
	stub := NewStub("no json here at all")
	a := New(stub)

	out := a.Call(context.Background(), "what next")
	assert.Nil(t, out)
}

func TestCall_NilOnProviderFailure(t *testing.T) {
	stub := NewStub()
	stub.SetFailing(true)
	a := New(stub)

	out := a.Call(context.Background(), "what next")
	assert.Nil(t, out)
	assert.Equal(t, maxAttempts, stub.Calls())
}

func TestCall_NilAdvisorIsSafe(t *testing.T) {
	var a *Advisor
	assert.Nil(t, a.Call(context.Background(), "anything"))
}

func TestCall_CachesResponse(t *testing.T) {
	stub := NewStub(`{"ok":true}`, `{"ok":false}`)
	a := New(stub)

	first := a.Call(context.Background(), "same prompt")
	second := a.Call(context.Background(), "same prompt")

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, stub.Calls())
}

func TestExtractJSONObject_Balances(t *testing.T) {
	text := `prefix {"a":{"b":1}} suffix`
	out := extractJSONObject(text)
	require.NotNil(t, out)
	inner, ok := out["a"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), inner["b"])
}
