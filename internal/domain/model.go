package domain

import (
	"math"
	"time"

	"github.com/lucsky/cuid"
)

// MenuItem is a sellable catalog entry. ID is assigned once at creation and
// never changes; Price is a non-negative amount in the base currency unit.
type MenuItem struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Image string  `json:"image,omitempty"`
}

// CartLine is one position of a cart. ID equals the menu item id the line was
// created from; Name and Price are copied at add time, so later catalog edits
// do not reach back into open carts.
type CartLine struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// Cart holds an ordered set of lines, at most one per item id.
// Total is always derived from the lines, never set directly.
type Cart struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Items []CartLine `json:"items"`
	Total float64    `json:"total"`
}

// CartState is the full state of the cart store: the one cart being edited
// plus every saved cart, unique by name.
type CartState struct {
	CurrentCart Cart   `json:"currentCart"`
	SavedCarts  []Cart `json:"savedCarts"`
}

// Order is the immutable result of settling a cart. AmountPaid and Change are
// fixed at creation; Date is epoch milliseconds.
type Order struct {
	ID         string     `json:"id"`
	Date       int64      `json:"date"`
	Total      float64    `json:"total"`
	Items      []CartLine `json:"items"`
	CartName   string     `json:"cartName"`
	AmountPaid float64    `json:"amountPaid"`
	Change     float64    `json:"change"`
}

// NewID returns a collision-resistant id for menu items, carts and orders.
func NewID() string {
	return cuid.New()
}

// NewCart returns an empty cart with a fresh id.
func NewCart(name string) Cart {
	return Cart{
		ID:    NewID(),
		Name:  name,
		Items: []CartLine{},
		Total: 0,
	}
}

// Round2 rounds a money amount to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Recalc recomputes Total from the lines. Every cart mutation goes through
// this; Total is never trusted as independently settable.
func (c *Cart) Recalc() {
	var sum float64
	for _, ln := range c.Items {
		sum += ln.Price * float64(ln.Quantity)
	}
	c.Total = Round2(sum)
}

// Clone returns a deep copy of the cart. Saved carts hand out clones so that
// edits to the current cart never reach a saved entry before an explicit save.
func (c Cart) Clone() Cart {
	out := c
	out.Items = make([]CartLine, len(c.Items))
	copy(out.Items, c.Items)
	return out
}

// Empty reports whether the cart has no lines.
func (c Cart) Empty() bool {
	return len(c.Items) == 0
}

// Clone deep-copies the whole cart state.
func (s CartState) Clone() CartState {
	out := CartState{
		CurrentCart: s.CurrentCart.Clone(),
		SavedCarts:  make([]Cart, len(s.SavedCarts)),
	}
	for i, c := range s.SavedCarts {
		out.SavedCarts[i] = c.Clone()
	}
	return out
}

// Settle builds the order snapshot for a paid cart. The items slice is copied
// so the order stays decoupled from any live cart.
func Settle(c Cart, amountPaid float64, at time.Time) Order {
	items := make([]CartLine, len(c.Items))
	copy(items, c.Items)
	return Order{
		ID:         NewID(),
		Date:       at.UnixMilli(),
		Total:      c.Total,
		Items:      items,
		CartName:   c.Name,
		AmountPaid: Round2(amountPaid),
		Change:     Round2(amountPaid - c.Total),
	}
}
