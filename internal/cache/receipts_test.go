package cache

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nurbekd/poscore/internal/domain"
)

type fakeSource []domain.Order

func (f fakeSource) List() []domain.Order { return f }

func TestGetSet(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)

	_, ok := c.Get("1")
	require.False(t, ok)

	c.Set(domain.Order{ID: "1", CartName: "Table 1"})
	got, ok := c.Get("1")
	require.True(t, ok)
	require.Equal(t, "Table 1", got.CartName)
}

func TestEviction(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		c.Set(domain.Order{ID: strconv.Itoa(i)})
	}

	_, ok := c.Get("1")
	require.False(t, ok, "oldest entry must be evicted")
	_, ok = c.Get("3")
	require.True(t, ok)
}

func TestWarmPrefersNewestOrders(t *testing.T) {
	src := fakeSource{}
	for i := 1; i <= 5; i++ {
		src = append(src, domain.Order{ID: strconv.Itoa(i)})
	}

	c, err := New(2)
	require.NoError(t, err)
	c.Warm(src)

	_, ok := c.Get("5")
	require.True(t, ok)
	_, ok = c.Get("4")
	require.True(t, ok)
	_, ok = c.Get("1")
	require.False(t, ok)
}
