package cart

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nurbekd/poscore/internal/domain"
	"github.com/nurbekd/poscore/internal/storage"
)

type fakeCatalog int

func (f fakeCatalog) Len() int { return int(f) }

func newManager(t *testing.T) *Manager {
	t.Helper()
	return New(fakeCatalog(3), nil, zap.NewNop())
}

var (
	coffee = domain.MenuItem{ID: "a", Name: "Coffee", Price: 2.50}
	cake   = domain.MenuItem{ID: "b", Name: "Cake", Price: 3.10}
)

// requireInvariant checks total == sum(price*quantity) over the lines.
func requireInvariant(t *testing.T, c domain.Cart) {
	t.Helper()
	var sum float64
	for _, ln := range c.Items {
		sum += ln.Price * float64(ln.Quantity)
	}
	require.Equal(t, domain.Round2(sum), c.Total)
}

func TestNewCart(t *testing.T) {
	tests := []struct {
		name string

		cartName string
		catalog  fakeCatalog

		wantErr bool
	}{
		{name: "ok", cartName: "Table 1", catalog: 3},
		{name: "blank name", cartName: "  ", catalog: 3, wantErr: true},
		{name: "empty catalog", cartName: "Table 1", catalog: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.catalog, nil, zap.NewNop())
			c, err := m.NewCart(tt.cartName)

			if tt.wantErr {
				require.Error(t, err)
				require.True(t, domain.IsValidation(err))
				return
			}
			require.NoError(t, err)
			require.NotEmpty(t, c.ID)
			require.Empty(t, c.Items)
			require.Zero(t, c.Total)

			// A fresh cart is immediately visible as saved.
			require.Len(t, m.SavedCarts(), 1)
			require.Equal(t, tt.cartName, m.SavedCarts()[0].Name)
			require.Equal(t, tt.cartName, m.CurrentCart().Name)
		})
	}
}

func TestTotalInvariantAfterEveryMutation(t *testing.T) {
	m := newManager(t)
	_, err := m.NewCart("Table 1")
	require.NoError(t, err)

	steps := []func(){
		func() { m.AddLine(coffee) },
		func() { m.AddLine(coffee) },
		func() { m.AddLine(cake) },
		func() { require.NoError(t, m.SetLineQuantity("b", 4)) },
		func() { m.DecrementLine("a") },
		func() { m.DecrementLine("a") },
		func() { m.DecrementLine("a") }, // absent now, no-op
		func() { m.RemoveLine("b") },
		func() { m.RemoveLine("b") }, // already gone, no-op
	}
	for _, step := range steps {
		step()
		requireInvariant(t, m.CurrentCart())
	}
	require.True(t, m.CurrentCart().Empty())
}

func TestAddLineCopiesPriceAtAddTime(t *testing.T) {
	m := newManager(t)
	_, err := m.NewCart("Table 1")
	require.NoError(t, err)

	item := domain.MenuItem{ID: "x", Name: "Soup", Price: 4.00}
	m.AddLine(item)

	// A later catalog price change must not reach the open line.
	item.Price = 9.99
	m.AddLine(item)

	cur := m.CurrentCart()
	require.Len(t, cur.Items, 1)
	require.Equal(t, 2, cur.Items[0].Quantity)
	require.Equal(t, 4.00, cur.Items[0].Price)
	require.Equal(t, 8.00, cur.Total)
}

func TestDecrementLineRemovesAtQuantityOne(t *testing.T) {
	m := newManager(t)
	_, err := m.NewCart("Table 1")
	require.NoError(t, err)

	m.AddLine(coffee)
	require.Len(t, m.CurrentCart().Items, 1)

	m.DecrementLine("a")
	require.Empty(t, m.CurrentCart().Items)

	// Decrementing the now-absent id must not panic.
	m.DecrementLine("a")
	require.Empty(t, m.CurrentCart().Items)
}

func TestSetLineQuantity(t *testing.T) {
	m := newManager(t)
	_, err := m.NewCart("Table 1")
	require.NoError(t, err)
	m.AddLine(coffee)

	require.NoError(t, m.SetLineQuantity("a", 4))
	require.Equal(t, 10.00, m.CurrentCart().Total)

	err = m.SetLineQuantity("a", 0)
	require.True(t, domain.IsValidation(err))
	require.Equal(t, 4, m.CurrentCart().Items[0].Quantity)

	// Unknown id is a benign no-op.
	require.NoError(t, m.SetLineQuantity("nope", 2))
}

func TestOpenCartHandsOutValueCopy(t *testing.T) {
	m := newManager(t)
	_, err := m.NewCart("Table 1")
	require.NoError(t, err)
	m.AddLine(coffee)
	_, err = m.SaveCurrentCart()
	require.NoError(t, err)

	_, err = m.OpenCart("Table 1")
	require.NoError(t, err)
	m.AddLine(coffee)
	m.AddLine(cake)

	// The saved entry still holds the state of the last explicit save.
	saved := m.SavedCarts()
	require.Len(t, saved, 1)
	require.Len(t, saved[0].Items, 1)
	require.Equal(t, 2.50, saved[0].Total)
	require.Equal(t, 8.10, m.CurrentCart().Total)
}

func TestOpenUnknownCartBehavesAsNewCart(t *testing.T) {
	m := newManager(t)
	c, err := m.OpenCart("Window seat")
	require.NoError(t, err)
	require.Empty(t, c.Items)
	require.Len(t, m.SavedCarts(), 1)

	// And still validates like NewCart.
	_, err = New(fakeCatalog(0), nil, zap.NewNop()).OpenCart("x")
	require.True(t, domain.IsValidation(err))
}

func TestSaveCartReplacesByName(t *testing.T) {
	m := newManager(t)
	_, err := m.NewCart("Table 1")
	require.NoError(t, err)
	m.AddLine(coffee)
	_, err = m.SaveCurrentCart()
	require.NoError(t, err)

	m.AddLine(cake)
	_, err = m.SaveCurrentCart()
	require.NoError(t, err)

	// Second save replaced, not duplicated, the entry.
	saved := m.SavedCarts()
	require.Len(t, saved, 1)
	require.Len(t, saved[0].Items, 2)
	require.Equal(t, 5.60, saved[0].Total)
}

func TestSaveRejectsClearedUnnamedCart(t *testing.T) {
	m := newManager(t)
	_, err := m.NewCart("Table 1")
	require.NoError(t, err)
	m.AddLine(coffee)

	// Settling clears the current cart; a save now has nothing named to
	// shelve and must not create a ""-named entry.
	_, err = m.Settle(5.00, time.Now())
	require.NoError(t, err)

	_, err = m.SaveCurrentCart()
	require.True(t, domain.IsValidation(err))
	require.Empty(t, m.SavedCarts())
}

func TestDeleteSavedCart(t *testing.T) {
	m := newManager(t)
	_, err := m.NewCart("Table 1")
	require.NoError(t, err)
	m.AddLine(coffee)

	m.DeleteSavedCart("Table 1")
	require.Empty(t, m.SavedCarts())
	// Deleting the current cart's entry resets the current cart too.
	require.True(t, m.CurrentCart().Empty())
	require.Empty(t, m.CurrentCart().Name)

	// Unknown name is a no-op.
	m.DeleteSavedCart("nope")
}

func TestDeleteOtherSavedCartKeepsCurrent(t *testing.T) {
	m := newManager(t)
	_, err := m.NewCart("Table 1")
	require.NoError(t, err)
	_, err = m.NewCart("Table 2")
	require.NoError(t, err)
	m.AddLine(coffee)

	m.DeleteSavedCart("Table 1")
	require.Len(t, m.SavedCarts(), 1)
	require.Equal(t, "Table 2", m.CurrentCart().Name)
	require.Len(t, m.CurrentCart().Items, 1)
}

func TestSettle(t *testing.T) {
	m := newManager(t)
	_, err := m.NewCart("Table 1")
	require.NoError(t, err)
	m.AddLine(coffee)
	m.AddLine(coffee)
	require.Equal(t, 5.00, m.CurrentCart().Total)

	at := time.Now()
	order, err := m.Settle(10.00, at)
	require.NoError(t, err)

	require.Equal(t, 5.00, order.Total)
	require.Equal(t, 10.00, order.AmountPaid)
	require.Equal(t, 5.00, order.Change)
	require.Equal(t, "Table 1", order.CartName)
	require.Equal(t, at.UnixMilli(), order.Date)

	// Cart lifetime ends: saved entry gone, current reset.
	require.Empty(t, m.SavedCarts())
	require.True(t, m.CurrentCart().Empty())
}

func TestSettleRejectsInsufficientPayment(t *testing.T) {
	m := newManager(t)
	_, err := m.NewCart("Table 1")
	require.NoError(t, err)
	m.AddLine(coffee)
	m.AddLine(coffee)

	for _, paid := range []float64{4.99, 0, -1, math.NaN(), math.Inf(1)} {
		_, err := m.Settle(paid, time.Now())
		require.True(t, domain.IsValidation(err), "paid=%v", paid)
	}

	// A failed settle leaves both the current cart and the saved carts alone.
	require.Equal(t, 5.00, m.CurrentCart().Total)
	require.Len(t, m.SavedCarts(), 1)
}

func TestSettleUnsavedCartRemovalIsNoop(t *testing.T) {
	m := newManager(t)
	// A current cart whose name has no saved entry (e.g. a walk-in sale
	// restored from an older snapshot) still settles cleanly.
	raw := `{"currentCart":{"id":"c","name":"Walk-in","items":[{"id":"a","name":"Coffee","price":2.5,"quantity":1}],"total":2.5},"savedCarts":[]}`
	require.NoError(t, m.Restore(raw))

	order, err := m.Settle(5.00, time.Now())
	require.NoError(t, err)
	require.Equal(t, 2.50, order.Total)
	require.Empty(t, m.SavedCarts())
	require.True(t, m.CurrentCart().Empty())
}

func TestDiscardCurrentCart(t *testing.T) {
	m := newManager(t)
	_, err := m.NewCart("Table 1")
	require.NoError(t, err)
	m.AddLine(coffee)
	_, err = m.SaveCurrentCart()
	require.NoError(t, err)
	m.AddLine(cake)

	m.DiscardCurrentCart()
	require.True(t, m.CurrentCart().Empty())
	// Discard never touches the saved carts.
	require.Len(t, m.SavedCarts(), 1)
	require.Len(t, m.SavedCarts()[0].Items, 1)
}

func TestPersistWritesBothKeys(t *testing.T) {
	writes := map[string]string{}
	m := New(fakeCatalog(1), func(key, value string) { writes[key] = value }, zap.NewNop())

	_, err := m.NewCart("Table 1")
	require.NoError(t, err)
	m.AddLine(coffee)

	require.Contains(t, writes, storage.KeyCartState)
	require.Contains(t, writes, storage.KeySavedCarts)

	// The combined snapshot round-trips into a fresh manager.
	restored := New(fakeCatalog(1), nil, zap.NewNop())
	require.NoError(t, restored.Restore(writes[storage.KeyCartState]))
	require.Equal(t, m.CurrentCart(), restored.CurrentCart())
	require.Equal(t, m.SavedCarts(), restored.SavedCarts())
}

func TestRestoreRecomputesTotals(t *testing.T) {
	m := newManager(t)
	// A tampered snapshot claims a wrong total; Restore must not trust it.
	raw := `{"currentCart":{"id":"c1","name":"Bar","items":[{"id":"a","name":"Coffee","price":2.5,"quantity":2}],"total":999},"savedCarts":null}`
	require.NoError(t, m.Restore(raw))
	require.Equal(t, 5.00, m.CurrentCart().Total)
	require.NotNil(t, m.SavedCarts())
}
