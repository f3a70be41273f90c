package observability

// Metrics receives timing and counter events from the register, the stores
// and the HTTP layer. Implementations must be safe for concurrent use.
type Metrics interface {
	ObserveHTTP(method, route string, status int, durMs float64)
	ObserveMutation(store, op string, durMs float64)
	ObservePersist(key string, durMs float64, ok bool)
	ObserveReceiptLookup(source string, durMs float64)
	IncCacheHit()
	IncCacheMiss()
}

type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) ObserveHTTP(string, string, int, float64) {}
func (Noop) ObserveMutation(string, string, float64)  {}
func (Noop) ObservePersist(string, float64, bool)     {}
func (Noop) ObserveReceiptLookup(string, float64)     {}
func (Noop) IncCacheHit()                             {}
func (Noop) IncCacheMiss()                            {}
