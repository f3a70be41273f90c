package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/nurbekd/poscore/internal/observability"
)

// timingWriter appends the app;dur entry to Server-Timing at the moment the
// status line goes out. Appending after the handler returns would be too
// late: the header map is already flushed to the client by then.
type timingWriter struct {
	http.ResponseWriter
	start time.Time
	wrote bool
}

func (t *timingWriter) WriteHeader(status int) {
	if !t.wrote {
		t.wrote = true
		dur := float64(time.Since(t.start).Microseconds()) / 1000.0
		observability.AppendServerTiming(t.ResponseWriter, "app", dur, "")
	}
	t.ResponseWriter.WriteHeader(status)
}

func (t *timingWriter) Write(b []byte) (int, error) {
	if !t.wrote {
		t.WriteHeader(http.StatusOK)
	}
	return t.ResponseWriter.Write(b)
}

// ServerTimingApp measures request processing time, writes app;dur=... to
// Server-Timing and reports the request to Metrics.
func ServerTimingApp(m observability.Metrics) func(http.Handler) http.Handler {
	if m == nil {
		m = observability.Noop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			tw := &timingWriter{ResponseWriter: w, start: start}
			ww := middleware.NewWrapResponseWriter(tw, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			dur := float64(time.Since(start).Microseconds()) / 1000.0
			m.ObserveHTTP(r.Method, r.URL.Path, ww.Status(), dur)
		})
	}
}
