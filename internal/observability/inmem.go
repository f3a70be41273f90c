package observability

import "sync"

// Inmem keeps the last max events in memory. Good enough for the debug
// endpoint and for tests; not a time series store.
type Inmem struct {
	mu     sync.Mutex
	last   []any
	max    int
	totals struct {
		cacheHits, cacheMiss int
		persistFails         int
	}
}

func NewInmem(max int) *Inmem {
	return &Inmem{
		max: max,
	}
}

func (m *Inmem) push(v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = append(m.last, v)
	if len(m.last) > m.max {
		m.last = m.last[1:]
	}
}

func (m *Inmem) ObserveHTTP(method, route string, status int, durMs float64) {
	m.push(struct {
		Kind          string
		Method, Route string
		Status        int
		Dur           float64
	}{"http", method, route, status, durMs})
}

func (m *Inmem) ObserveMutation(store, op string, durMs float64) {
	m.push(struct {
		Kind      string
		Store, Op string
		Dur       float64
	}{"mutation", store, op, durMs})
}

func (m *Inmem) ObservePersist(key string, durMs float64, ok bool) {
	if !ok {
		m.mu.Lock()
		m.totals.persistFails++
		m.mu.Unlock()
	}
	m.push(struct {
		Kind string
		Key  string
		Dur  float64
		OK   bool
	}{"persist", key, durMs, ok})
}

func (m *Inmem) ObserveReceiptLookup(source string, durMs float64) {
	m.push(struct {
		Kind   string
		Source string
		Dur    float64
	}{"receipt_lookup", source, durMs})
}

func (m *Inmem) IncCacheHit() {
	m.mu.Lock()
	m.totals.cacheHits++
	m.mu.Unlock()
}

func (m *Inmem) IncCacheMiss() {
	m.mu.Lock()
	m.totals.cacheMiss++
	m.mu.Unlock()
}

// Totals returns the running counters (hits, misses, persist failures).
func (m *Inmem) Totals() (hits, misses, persistFails int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals.cacheHits, m.totals.cacheMiss, m.totals.persistFails
}

// Last returns a copy of the retained events, oldest first.
func (m *Inmem) Last() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.last))
	copy(out, m.last)
	return out
}
