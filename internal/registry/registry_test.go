package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoModule struct{}

func (echoModule) Register(r *Registry) {
	r.RegisterFunction("echo", "first", func(_ context.Context, args []any) (any, error) {
		return String(args, 0)
	})
}

func TestRegistry_Dispatch(t *testing.T) {
	r := New(echoModule{})

	got, err := r.Dispatch(context.Background(), "echo", "first", []any{"hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	_, err = r.Dispatch(context.Background(), "echo", "last", nil)
	assert.EqualError(t, err, "module 'echo' has no function 'last'")

	_, err = r.Dispatch(context.Background(), "nope", "first", nil)
	assert.EqualError(t, err, "unknown module 'nope'")

	_, err = r.Dispatch(context.Background(), "echo", "first", []any{12.0})
	assert.EqualError(t, err, "argument 0: expected string, got float64")

	assert.Equal(t, []string{"echo.first"}, r.Names())
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := New(echoModule{})
	assert.PanicsWithValue(t, "function 'echo.first' already registered", func() {
		echoModule{}.Register(r)
	})
}

func TestArgs(t *testing.T) {
	args := []any{"a", 2.0, 3, 1.5, map[string]any{"k": "v"}}

	n, err := Number(args, 2)
	require.NoError(t, err)
	assert.Equal(t, 3.0, n)

	i, err := Int(args, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, i)

	_, err = Int(args, 3)
	assert.ErrorContains(t, err, "expected integer")

	m, err := Map(args, 4)
	require.NoError(t, err)
	assert.Equal(t, "v", m["k"])

	_, err = String(args, 9)
	assert.EqualError(t, err, "missing argument 9 (got 5)")
}
