package register

type ReceiptSource string

const (
	SourceCache   ReceiptSource = "cache"
	SourceHistory ReceiptSource = "history"
)

// ReceiptStats carries lookup timings for the Server-Timing response headers.
type ReceiptStats struct {
	Source    ReceiptSource
	CacheMs   float64
	HistoryMs float64
}
