package profiling

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Middleware times handlers and keeps per-route request statistics
type Middleware struct {
	enableProfiling bool

	mu     sync.Mutex
	routes map[string]*RouteStats
}

// RouteStats aggregates requests served by one route
type RouteStats struct {
	Name      string        `json:"name"`
	Requests  int           `json:"requests"`
	Errors    int           `json:"errors"`
	TotalTime time.Duration `json:"total_time_ns"`
	MaxTime   time.Duration `json:"max_time_ns"`
}

// NewMiddleware creates a new profiling middleware
func NewMiddleware(enableProfiling bool) *Middleware {
	return &Middleware{
		enableProfiling: enableProfiling,
		routes:          make(map[string]*RouteStats),
	}
}

// ProfiledHandler wraps handler, recording its latency and status under
// name. Timing headers are added only when profiling is enabled.
func (m *Middleware) ProfiledHandler(name string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK, start: startTime, headers: m.enableProfiling}
		if m.enableProfiling {
			w.Header().Set("X-Handler-Name", name)
		}

		handler.ServeHTTP(wrapped, r)

		m.record(name, time.Since(startTime), wrapped.statusCode)
	})
}

func (m *Middleware) record(name string, d time.Duration, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.routes[name]
	if !ok {
		s = &RouteStats{Name: name}
		m.routes[name] = s
	}
	s.Requests++
	if status >= 400 {
		s.Errors++
	}
	s.TotalTime += d
	if d > s.MaxTime {
		s.MaxTime = d
	}
}

// Stats returns a snapshot of route statistics sorted by name.
func (m *Middleware) Stats() []RouteStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]RouteStats, 0, len(m.routes))
	for _, s := range m.routes {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	start       time.Time
	headers     bool
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.statusCode = code
	if rw.headers {
		// headers must be set before the status line goes out
		rw.Header().Set("X-Duration-Ms", strconv.FormatFloat(float64(time.Since(rw.start).Nanoseconds())/1e6, 'f', 3, 64))
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
