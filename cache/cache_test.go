package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetOrComputeMemoizes(t *testing.T) {
	c := New(time.Minute, time.Minute)
	calls := 0
	factory := func() (any, error) {
		calls++
		return 42, nil
	}
	v1, err := c.GetOrCompute("k", time.Minute, factory)
	require.NoError(t, err)
	require.Equal(t, 42, v1)

	v2, err := c.GetOrCompute("k", time.Minute, factory)
	require.NoError(t, err)
	require.Equal(t, 42, v2)
	require.Equal(t, 1, calls)
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	c := New(time.Minute, time.Minute)
	_, err := c.GetOrCompute("k", time.Minute, func() (any, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)
	require.Equal(t, 0, c.ItemCount())
}

func TestInvalidateByPattern(t *testing.T) {
	c := New(time.Minute, time.Minute)
	_, _ = c.GetOrCompute("video:1:tags", time.Minute, func() (any, error) { return "a", nil })
	_, _ = c.GetOrCompute("video:1:scene", time.Minute, func() (any, error) { return "b", nil })
	_, _ = c.GetOrCompute("video:2:tags", time.Minute, func() (any, error) { return "c", nil })

	n := c.InvalidateByPattern("video:1:")
	require.Equal(t, 2, n)
	require.Equal(t, 1, c.ItemCount())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry[int]()
	r.Store("a", 1)
	v, ok := r.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)
	r.Remove("a")
	_, ok = r.Get("a")
	require.False(t, ok)
}
