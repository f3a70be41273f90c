// Package history keeps the append-only log of settled orders, pruned by a
// sliding retention window evaluated on every write.
package history

import (
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nurbekd/poscore/internal/domain"
	"github.com/nurbekd/poscore/internal/storage"
)

// History is not safe for concurrent mutation; the register serializes all
// calls into it.
type History struct {
	orders    []domain.Order
	retention time.Duration
	now       func() time.Time
	sink      func(key, value string)
	logger    *zap.Logger
}

// New builds a history with the given retention window. A nil now falls back
// to time.Now; tests inject a fixed clock to drive pruning.
func New(retention time.Duration, now func() time.Time, sink func(key, value string), logger *zap.Logger) *History {
	if now == nil {
		now = time.Now
	}
	if sink == nil {
		sink = func(string, string) {}
	}
	return &History{
		orders:    []domain.Order{},
		retention: retention,
		now:       now,
		sink:      sink,
		logger:    logger,
	}
}

// Record appends the order, prunes everything older than the retention
// window and persists the pruned log. Orders are never mutated after this.
func (h *History) Record(order domain.Order) {
	h.orders = append(h.orders, order)
	h.prune()
	h.persist()

	h.logger.Info("order recorded",
		zap.String("order_id", order.ID),
		zap.String("cart", order.CartName),
		zap.Float64("total", order.Total),
	)
}

func (h *History) prune() {
	cutoff := h.now().Add(-h.retention).UnixMilli()
	kept := h.orders[:0]
	for _, o := range h.orders {
		if o.Date >= cutoff {
			kept = append(kept, o)
		}
	}
	if dropped := len(h.orders) - len(kept); dropped > 0 {
		h.logger.Info("order history pruned", zap.Int("dropped", dropped))
	}
	h.orders = kept
}

// List returns the log in insertion order, oldest first.
func (h *History) List() []domain.Order {
	out := make([]domain.Order, len(h.orders))
	copy(out, h.orders)
	return out
}

// Search filters by case-insensitive substring match on the cart name. An
// empty query returns everything.
func (h *History) Search(query string) []domain.Order {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return h.List()
	}
	out := []domain.Order{}
	for _, o := range h.orders {
		if strings.Contains(strings.ToLower(o.CartName), query) {
			out = append(out, o)
		}
	}
	return out
}

// Get returns the order with the given id.
func (h *History) Get(id string) (domain.Order, bool) {
	for _, o := range h.orders {
		if o.ID == id {
			return o, true
		}
	}
	return domain.Order{}, false
}

func (h *History) Len() int { return len(h.orders) }

// Restore replaces the log with a previously persisted snapshot.
func (h *History) Restore(raw string) error {
	var orders []domain.Order
	if err := json.Unmarshal([]byte(raw), &orders); err != nil {
		return err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	h.orders = orders
	return nil
}

func (h *History) persist() {
	raw, err := json.Marshal(h.orders)
	if err != nil {
		h.logger.Error("history snapshot marshal failed", zap.Error(err))
		return
	}
	h.sink(storage.KeyOrders, string(raw))
}
