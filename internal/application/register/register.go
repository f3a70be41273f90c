// Package register is the orchestrator: it wires the menu catalog, the cart
// manager and the order history behind a single mutation lock, gates every
// operation on the startup load, and pumps snapshot writes through the
// persistence gateway.
package register

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nurbekd/poscore/internal/cache"
	"github.com/nurbekd/poscore/internal/cart"
	"github.com/nurbekd/poscore/internal/catalog"
	"github.com/nurbekd/poscore/internal/domain"
	"github.com/nurbekd/poscore/internal/events"
	"github.com/nurbekd/poscore/internal/history"
	"github.com/nurbekd/poscore/internal/observability"
	"github.com/nurbekd/poscore/internal/pkg/pool"
	"github.com/nurbekd/poscore/internal/storage"
)

// Options tune the register; zero values fall back to sensible defaults.
type Options struct {
	Retention time.Duration    // order history window, default 30 days
	CacheCap  int              // receipt cache capacity, default 256
	Now       func() time.Time // injected clock for tests
}

// Register owns the only mutation path into the stores. The total/quantity
// invariants are maintained by unisolated read-modify-write sequences, so mu
// serializes every operation; the stores themselves are not thread-safe.
type Register struct {
	mu     sync.Mutex
	loaded atomic.Bool

	catalog  *catalog.Catalog
	carts    *cart.Manager
	orders   *history.History
	receipts *cache.Receipts

	gateway   storage.Gateway
	pump      *pool.Pool
	publisher events.Publisher
	metrics   observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func New(gw storage.Gateway, pub events.Publisher, metrics observability.Metrics, logger *zap.Logger, opts Options) *Register {
	if opts.Retention <= 0 {
		opts.Retention = 30 * 24 * time.Hour
	}
	if opts.CacheCap <= 0 {
		opts.CacheCap = 256
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if pub == nil {
		pub = events.Noop{}
	}

	r := &Register{
		gateway:   gw,
		publisher: pub,
		metrics:   metrics,
		logger:    logger,
		now:       opts.Now,
		// One worker keeps gateway writes in submit order.
		pump: pool.New(1),
	}
	r.catalog = catalog.New(r.enqueuePersist, logger)
	r.carts = cart.New(r.catalog, r.enqueuePersist, logger)
	r.orders = history.New(opts.Retention, opts.Now, r.enqueuePersist, logger)

	receipts, err := cache.New(opts.CacheCap)
	if err != nil {
		// lru.New only fails on a non-positive size, which is clamped above.
		panic(err)
	}
	r.receipts = receipts
	return r
}

// Load reads every store's last snapshot back through the gateway. It must
// complete before any operation is accepted; operations issued earlier are
// rejected with ErrNotLoaded, never applied against a stale snapshot.
func (r *Register) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	restores := []struct {
		key     string
		restore func(raw string) error
	}{
		{storage.KeyMenuItems, r.catalog.Restore},
		{storage.KeyCartState, r.carts.Restore},
		{storage.KeyOrders, r.orders.Restore},
	}
	for _, st := range restores {
		raw, ok, err := r.gateway.Get(ctx, st.key)
		if err != nil {
			return &domain.PersistenceError{Key: st.key, Op: "get", Err: err}
		}
		if !ok {
			// Missing key: the store keeps its empty initial state.
			continue
		}
		if err := st.restore(raw); err != nil {
			return &domain.PersistenceError{Key: st.key, Op: "get", Err: err}
		}
	}

	r.receipts.Warm(r.orders)
	r.loaded.Store(true)
	r.logger.Info("stores loaded",
		zap.Int("menu_items", r.catalog.Len()),
		zap.Int("saved_carts", len(r.carts.SavedCarts())),
		zap.Int("orders", r.orders.Len()),
	)
	return nil
}

// Ready reports whether the startup load has completed.
func (r *Register) Ready() bool { return r.loaded.Load() }

// Close drains the persist pump so pending writes land before shutdown.
func (r *Register) Close() {
	r.pump.Close()
	r.pump.Wait()
}

// --- menu ---

func (r *Register) Menu() ([]domain.MenuItem, error) {
	if !r.loaded.Load() {
		return nil, domain.ErrNotLoaded
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.catalog.List(), nil
}

func (r *Register) AddMenuItem(name string, price float64, image string) (domain.MenuItem, error) {
	if !r.loaded.Load() {
		return domain.MenuItem{}, domain.ErrNotLoaded
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t0 := r.now()
	item, err := r.catalog.AddItem(name, price, image)
	if err != nil {
		return domain.MenuItem{}, err
	}
	r.metrics.ObserveMutation("menu", "addItem", sinceMs(t0, r.now))
	return item, nil
}

func (r *Register) RemoveMenuItem(id string) error {
	if !r.loaded.Load() {
		return domain.ErrNotLoaded
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t0 := r.now()
	r.catalog.RemoveItem(id)
	r.metrics.ObserveMutation("menu", "removeItem", sinceMs(t0, r.now))
	return nil
}

// --- carts ---

func (r *Register) CurrentCart() (domain.Cart, error) {
	if !r.loaded.Load() {
		return domain.Cart{}, domain.ErrNotLoaded
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.carts.CurrentCart(), nil
}

func (r *Register) SavedCarts() ([]domain.Cart, error) {
	if !r.loaded.Load() {
		return nil, domain.ErrNotLoaded
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.carts.SavedCarts(), nil
}

func (r *Register) NewCart(name string) (domain.Cart, error) {
	if !r.loaded.Load() {
		return domain.Cart{}, domain.ErrNotLoaded
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t0 := r.now()
	c, err := r.carts.NewCart(name)
	if err != nil {
		return domain.Cart{}, err
	}
	r.metrics.ObserveMutation("cart", "newCart", sinceMs(t0, r.now))
	return c, nil
}

func (r *Register) OpenCart(name string) (domain.Cart, error) {
	if !r.loaded.Load() {
		return domain.Cart{}, domain.ErrNotLoaded
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t0 := r.now()
	c, err := r.carts.OpenCart(name)
	if err != nil {
		return domain.Cart{}, err
	}
	r.metrics.ObserveMutation("cart", "openCart", sinceMs(t0, r.now))
	return c, nil
}

// AddLine resolves the item in the catalog and adds one unit of it to the
// current cart. An unknown item id is ErrNotFound: the line cannot be built
// without a price to copy.
func (r *Register) AddLine(itemID string) (domain.Cart, error) {
	if !r.loaded.Load() {
		return domain.Cart{}, domain.ErrNotLoaded
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.catalog.Get(itemID)
	if !ok {
		return domain.Cart{}, domain.ErrNotFound
	}
	t0 := r.now()
	r.carts.AddLine(item)
	r.metrics.ObserveMutation("cart", "addLine", sinceMs(t0, r.now))
	return r.carts.CurrentCart(), nil
}

func (r *Register) DecrementLine(itemID string) (domain.Cart, error) {
	if !r.loaded.Load() {
		return domain.Cart{}, domain.ErrNotLoaded
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t0 := r.now()
	r.carts.DecrementLine(itemID)
	r.metrics.ObserveMutation("cart", "decrementLine", sinceMs(t0, r.now))
	return r.carts.CurrentCart(), nil
}

func (r *Register) SetLineQuantity(itemID string, quantity int) (domain.Cart, error) {
	if !r.loaded.Load() {
		return domain.Cart{}, domain.ErrNotLoaded
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t0 := r.now()
	if err := r.carts.SetLineQuantity(itemID, quantity); err != nil {
		return domain.Cart{}, err
	}
	r.metrics.ObserveMutation("cart", "setLineQuantity", sinceMs(t0, r.now))
	return r.carts.CurrentCart(), nil
}

func (r *Register) RemoveLine(itemID string) (domain.Cart, error) {
	if !r.loaded.Load() {
		return domain.Cart{}, domain.ErrNotLoaded
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t0 := r.now()
	r.carts.RemoveLine(itemID)
	r.metrics.ObserveMutation("cart", "removeLine", sinceMs(t0, r.now))
	return r.carts.CurrentCart(), nil
}

// SaveCart upserts the current cart into the saved carts and then resets the
// current cart: saving hands the cart back to the shelf and returns the
// operator to an empty register.
func (r *Register) SaveCart() (domain.Cart, error) {
	if !r.loaded.Load() {
		return domain.Cart{}, domain.ErrNotLoaded
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t0 := r.now()
	snap, err := r.carts.SaveCurrentCart()
	if err != nil {
		return domain.Cart{}, err
	}
	r.carts.DiscardCurrentCart()
	r.metrics.ObserveMutation("cart", "saveCart", sinceMs(t0, r.now))
	return snap, nil
}

func (r *Register) DeleteSavedCart(name string) error {
	if !r.loaded.Load() {
		return domain.ErrNotLoaded
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t0 := r.now()
	r.carts.DeleteSavedCart(name)
	r.metrics.ObserveMutation("cart", "deleteSavedCart", sinceMs(t0, r.now))
	return nil
}

func (r *Register) Discard() error {
	if !r.loaded.Load() {
		return domain.ErrNotLoaded
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t0 := r.now()
	r.carts.DiscardCurrentCart()
	r.metrics.ObserveMutation("cart", "discard", sinceMs(t0, r.now))
	return nil
}

// Checkout settles the current cart: the order is recorded and the cart
// cleared under one lock acquisition, so the caller observes either both or
// neither. The settlement event is published outside the lock and is purely
// best-effort.
func (r *Register) Checkout(amountPaid float64) (domain.Order, error) {
	if !r.loaded.Load() {
		return domain.Order{}, domain.ErrNotLoaded
	}
	r.mu.Lock()

	t0 := r.now()
	order, err := r.carts.Settle(amountPaid, r.now())
	if err != nil {
		r.mu.Unlock()
		return domain.Order{}, err
	}
	r.orders.Record(order)
	r.receipts.Set(order)
	r.metrics.ObserveMutation("cart", "settle", sinceMs(t0, r.now))
	r.mu.Unlock()

	go r.publisher.OrderSettled(context.Background(), order)
	return order, nil
}

// --- history ---

func (r *Register) Orders(query string) ([]domain.Order, error) {
	if !r.loaded.Load() {
		return nil, domain.ErrNotLoaded
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders.Search(query), nil
}

// Receipt looks a settled order up by id, cache first, then the history log.
func (r *Register) Receipt(id string) (domain.Order, ReceiptStats, error) {
	var st ReceiptStats
	if !r.loaded.Load() {
		return domain.Order{}, st, domain.ErrNotLoaded
	}

	tCache := r.now()
	if order, ok := r.receipts.Get(id); ok {
		st.Source = SourceCache
		st.CacheMs = sinceMs(tCache, r.now)
		r.metrics.IncCacheHit()
		r.metrics.ObserveReceiptLookup(string(st.Source), st.CacheMs)
		return order, st, nil
	}
	r.metrics.IncCacheMiss()
	st.CacheMs = sinceMs(tCache, r.now)

	r.mu.Lock()
	order, ok := r.orders.Get(id)
	r.mu.Unlock()
	if !ok {
		return domain.Order{}, st, domain.ErrNotFound
	}

	st.Source = SourceHistory
	st.HistoryMs = sinceMs(tCache, r.now) - st.CacheMs
	r.receipts.Set(order)
	r.metrics.ObserveReceiptLookup(string(st.Source), st.HistoryMs)
	return order, st, nil
}

// enqueuePersist is the stores' write-through sink. The snapshot string is
// taken under the mutation lock; the actual gateway write happens on the
// pump, fire-and-forget. A failed write is logged and counted, never
// retried, and never rolls back the in-memory mutation.
func (r *Register) enqueuePersist(key, value string) {
	accepted := r.pump.Submit(func() {
		t0 := time.Now()
		err := r.gateway.Set(context.Background(), key, value)
		durMs := float64(time.Since(t0).Microseconds()) / 1000.0
		r.metrics.ObservePersist(key, durMs, err == nil)
		if err != nil {
			perr := &domain.PersistenceError{Key: key, Op: "set", Err: err}
			r.logger.Error("write-through persist failed", zap.Error(perr))
		}
	})
	if !accepted {
		r.metrics.ObservePersist(key, 0, false)
		r.logger.Warn("persist dropped, pump already closed", zap.String("key", key))
	}
}

func sinceMs(t0 time.Time, now func() time.Time) float64 {
	return float64(now().Sub(t0).Microseconds()) / 1000.0
}
