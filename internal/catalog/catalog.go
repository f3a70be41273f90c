// Package catalog owns the list of sellable items. It is the source of truth
// for price lookups; carts copy name and price out of it at add time.
package catalog

import (
	"encoding/json"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/nurbekd/poscore/internal/domain"
	"github.com/nurbekd/poscore/internal/storage"
)

// Catalog is not safe for concurrent mutation; the register serializes all
// calls into it.
type Catalog struct {
	items  []domain.MenuItem
	sink   func(key, value string)
	logger *zap.Logger
}

// New builds a catalog writing snapshots through sink. A nil sink disables
// persistence (used by tests).
func New(sink func(key, value string), logger *zap.Logger) *Catalog {
	if sink == nil {
		sink = func(string, string) {}
	}
	return &Catalog{
		items:  []domain.MenuItem{},
		sink:   sink,
		logger: logger,
	}
}

// AddItem validates, assigns a fresh id and appends the item.
func (c *Catalog) AddItem(name string, price float64, image string) (domain.MenuItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.MenuItem{}, domain.Invalid("name", "must not be blank")
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return domain.MenuItem{}, domain.Invalid("price", "must be a finite number")
	}
	if price < 0 {
		return domain.MenuItem{}, domain.Invalid("price", "must be >= 0")
	}

	item := domain.MenuItem{
		ID:    domain.NewID(),
		Name:  name,
		Price: domain.Round2(price),
		Image: image,
	}
	c.items = append(c.items, item)
	c.persist()

	c.logger.Info("menu item added",
		zap.String("item_id", item.ID),
		zap.String("name", item.Name),
		zap.Float64("price", item.Price),
	)
	return item, nil
}

// RemoveItem deletes the item with the given id. Removing an absent id is a
// no-op and does not persist.
func (c *Catalog) RemoveItem(id string) {
	for i, it := range c.items {
		if it.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			c.persist()
			c.logger.Info("menu item removed", zap.String("item_id", id))
			return
		}
	}
}

// Get returns the item with the given id.
func (c *Catalog) Get(id string) (domain.MenuItem, bool) {
	for _, it := range c.items {
		if it.ID == id {
			return it, true
		}
	}
	return domain.MenuItem{}, false
}

// List returns a snapshot of the catalog in insertion order.
func (c *Catalog) List() []domain.MenuItem {
	out := make([]domain.MenuItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Catalog) Len() int { return len(c.items) }

// Restore replaces the catalog with a previously persisted snapshot.
func (c *Catalog) Restore(raw string) error {
	var items []domain.MenuItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return err
	}
	if items == nil {
		items = []domain.MenuItem{}
	}
	c.items = items
	return nil
}

func (c *Catalog) persist() {
	raw, err := json.Marshal(c.items)
	if err != nil {
		c.logger.Error("menu snapshot marshal failed", zap.Error(err))
		return
	}
	c.sink(storage.KeyMenuItems, string(raw))
}
