// Package cart implements the cart store: one current cart being edited plus
// the saved carts, unique by name. All quantity and total arithmetic lives
// here; totals are recomputed after every mutation and never set directly.
package cart

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nurbekd/poscore/internal/domain"
	"github.com/nurbekd/poscore/internal/storage"
)

// Catalog is the slice of the menu catalog the manager needs: a cart cannot
// be opened against an empty catalog.
type Catalog interface {
	Len() int
}

// Manager is not safe for concurrent mutation; the register serializes all
// calls into it.
type Manager struct {
	state   domain.CartState
	catalog Catalog
	sink    func(key, value string)
	logger  *zap.Logger
}

func New(catalog Catalog, sink func(key, value string), logger *zap.Logger) *Manager {
	if sink == nil {
		sink = func(string, string) {}
	}
	return &Manager{
		state: domain.CartState{
			CurrentCart: emptyCart(),
			SavedCarts:  []domain.Cart{},
		},
		catalog: catalog,
		sink:    sink,
		logger:  logger,
	}
}

// The cleared cart keeps the zero id and name of the original UI flow.
func emptyCart() domain.Cart {
	return domain.Cart{Items: []domain.CartLine{}}
}

// NewCart creates an empty named cart, makes it current and registers it in
// the saved carts, so an empty cart is immediately visible as saved.
func (m *Manager) NewCart(name string) (domain.Cart, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Cart{}, domain.Invalid("name", "must not be blank")
	}
	if m.catalog != nil && m.catalog.Len() == 0 {
		return domain.Cart{}, domain.Invalid("catalog", "cannot open a cart with an empty menu")
	}

	c := domain.NewCart(name)
	m.upsertSaved(c)
	m.state.CurrentCart = c.Clone()
	m.persist()

	m.logger.Info("cart created", zap.String("cart", name))
	return c, nil
}

// OpenCart makes the saved cart with that name current, handing the caller a
// value copy: later edits do not touch the saved entry until an explicit
// save. An unknown name behaves as NewCart.
func (m *Manager) OpenCart(name string) (domain.Cart, error) {
	name = strings.TrimSpace(name)
	for _, c := range m.state.SavedCarts {
		if c.Name == name {
			m.state.CurrentCart = c.Clone()
			m.persist()
			m.logger.Info("cart opened", zap.String("cart", name))
			return c.Clone(), nil
		}
	}
	return m.NewCart(name)
}

// AddLine puts one unit of the item into the current cart, copying name and
// price at the moment of add.
func (m *Manager) AddLine(item domain.MenuItem) {
	cur := &m.state.CurrentCart
	for i := range cur.Items {
		if cur.Items[i].ID == item.ID {
			cur.Items[i].Quantity++
			cur.Recalc()
			m.persist()
			return
		}
	}
	cur.Items = append(cur.Items, domain.CartLine{
		ID:       item.ID,
		Name:     item.Name,
		Price:    item.Price,
		Quantity: 1,
	})
	cur.Recalc()
	m.persist()
}

// DecrementLine takes one unit off the line, removing the line when its
// quantity hits zero. Unknown ids are a no-op.
func (m *Manager) DecrementLine(itemID string) {
	cur := &m.state.CurrentCart
	for i := range cur.Items {
		if cur.Items[i].ID != itemID {
			continue
		}
		if cur.Items[i].Quantity > 1 {
			cur.Items[i].Quantity--
		} else {
			cur.Items = append(cur.Items[:i], cur.Items[i+1:]...)
		}
		cur.Recalc()
		m.persist()
		return
	}
}

// SetLineQuantity sets an absolute quantity on an existing line. Zero and
// negative quantities are rejected; removal goes through DecrementLine or
// RemoveLine. An unknown id is a no-op.
func (m *Manager) SetLineQuantity(itemID string, quantity int) error {
	if quantity < 1 {
		return domain.Invalid("quantity", "must be >= 1")
	}
	cur := &m.state.CurrentCart
	for i := range cur.Items {
		if cur.Items[i].ID == itemID {
			cur.Items[i].Quantity = quantity
			cur.Recalc()
			m.persist()
			return nil
		}
	}
	return nil
}

// RemoveLine drops the whole line regardless of quantity.
func (m *Manager) RemoveLine(itemID string) {
	cur := &m.state.CurrentCart
	for i := range cur.Items {
		if cur.Items[i].ID == itemID {
			cur.Items = append(cur.Items[:i], cur.Items[i+1:]...)
			cur.Recalc()
			m.persist()
			return
		}
	}
}

// SaveCurrentCart upserts the current cart into the saved carts by name:
// replace if the name exists, append otherwise. The cleared unnamed cart
// cannot be saved; a nameless entry would be unopenable and undeletable.
func (m *Manager) SaveCurrentCart() (domain.Cart, error) {
	if m.state.CurrentCart.Name == "" {
		return domain.Cart{}, domain.Invalid("cart", "no cart is open")
	}
	snap := m.state.CurrentCart.Clone()
	m.upsertSaved(snap)
	m.persist()
	m.logger.Info("cart saved",
		zap.String("cart", snap.Name),
		zap.Float64("total", snap.Total),
	)
	return snap, nil
}

// DeleteSavedCart removes the named entry; if it is also the current cart the
// current cart is reset. An unknown name is a no-op.
func (m *Manager) DeleteSavedCart(name string) {
	for i, c := range m.state.SavedCarts {
		if c.Name == name {
			m.state.SavedCarts = append(m.state.SavedCarts[:i], m.state.SavedCarts[i+1:]...)
			if m.state.CurrentCart.Name == name {
				m.state.CurrentCart = emptyCart()
			}
			m.persist()
			m.logger.Info("saved cart deleted", zap.String("cart", name))
			return
		}
	}
}

// Settle converts the current cart into an order snapshot, drops its saved
// entry and resets the current cart. The saved-entry removal is by current
// cart name and is a no-op when no such entry exists.
func (m *Manager) Settle(amountPaid float64, at time.Time) (domain.Order, error) {
	if math.IsNaN(amountPaid) || math.IsInf(amountPaid, 0) {
		return domain.Order{}, domain.Invalid("amountPaid", "must be a finite number")
	}
	if amountPaid < m.state.CurrentCart.Total {
		return domain.Order{}, domain.Invalid("amountPaid", "is less than the cart total")
	}

	order := domain.Settle(m.state.CurrentCart, amountPaid, at)

	for i, c := range m.state.SavedCarts {
		if c.Name == m.state.CurrentCart.Name {
			m.state.SavedCarts = append(m.state.SavedCarts[:i], m.state.SavedCarts[i+1:]...)
			break
		}
	}
	m.state.CurrentCart = emptyCart()
	m.persist()

	m.logger.Info("cart settled",
		zap.String("cart", order.CartName),
		zap.String("order_id", order.ID),
		zap.Float64("total", order.Total),
		zap.Float64("change", order.Change),
	)
	return order, nil
}

// DiscardCurrentCart resets the current cart without touching the saved
// carts ("go back without saving").
func (m *Manager) DiscardCurrentCart() {
	m.state.CurrentCart = emptyCart()
	m.persist()
}

// CurrentCart returns a copy of the cart being edited.
func (m *Manager) CurrentCart() domain.Cart {
	return m.state.CurrentCart.Clone()
}

// SavedCarts returns copies of the saved entries, insertion order.
func (m *Manager) SavedCarts() []domain.Cart {
	out := make([]domain.Cart, len(m.state.SavedCarts))
	for i, c := range m.state.SavedCarts {
		out[i] = c.Clone()
	}
	return out
}

// Restore replaces the state with a previously persisted snapshot. Totals
// are recomputed rather than trusted, and nil item slices are normalized, so
// a hand-edited or partially written snapshot cannot poison the invariants.
func (m *Manager) Restore(raw string) error {
	var st domain.CartState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return err
	}
	if st.CurrentCart.Items == nil {
		st.CurrentCart.Items = []domain.CartLine{}
	}
	st.CurrentCart.Recalc()
	if st.SavedCarts == nil {
		st.SavedCarts = []domain.Cart{}
	}
	for i := range st.SavedCarts {
		if st.SavedCarts[i].Items == nil {
			st.SavedCarts[i].Items = []domain.CartLine{}
		}
		st.SavedCarts[i].Recalc()
	}
	m.state = st
	return nil
}

func (m *Manager) upsertSaved(c domain.Cart) {
	for i, saved := range m.state.SavedCarts {
		if saved.Name == c.Name {
			m.state.SavedCarts[i] = c.Clone()
			return
		}
	}
	m.state.SavedCarts = append(m.state.SavedCarts, c.Clone())
}

// persist writes the combined state and, for compatibility with the old
// storage layout, a derived standalone saved-carts view. Only the combined
// key is ever read back.
func (m *Manager) persist() {
	raw, err := json.Marshal(m.state)
	if err != nil {
		m.logger.Error("cart snapshot marshal failed", zap.Error(err))
		return
	}
	m.sink(storage.KeyCartState, string(raw))

	saved, err := json.Marshal(m.state.SavedCarts)
	if err != nil {
		m.logger.Error("saved carts marshal failed", zap.Error(err))
		return
	}
	m.sink(storage.KeySavedCarts, string(saved))
}
