// Package cache keeps recently looked-up receipts (settled orders) in an LRU
// so repeated receipt views do not rescan the history log.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nurbekd/poscore/internal/domain"
)

type source interface {
	List() []domain.Order
}

type Receipts struct {
	size int
	lru  *lru.Cache[string, domain.Order]
}

func New(size int) (*Receipts, error) {
	c, err := lru.New[string, domain.Order](size)
	if err != nil {
		return nil, err
	}
	return &Receipts{
		size: size,
		lru:  c,
	}, nil
}

// Warm fills the cache with the newest orders from the history log, newest
// last so they end up most recently used.
func (c *Receipts) Warm(src source) {
	orders := src.List()
	start := 0
	if len(orders) > c.size {
		start = len(orders) - c.size
	}
	for _, o := range orders[start:] {
		c.Set(o)
	}
}

func (c *Receipts) Get(id string) (domain.Order, bool) {
	return c.lru.Get(id)
}

func (c *Receipts) Set(order domain.Order) {
	c.lru.Add(order.ID, order)
}
