package server

import (
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// statusRecorder remembers the status code a handler wrote.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// route registers h under pattern with CORS headers and request metrics.
// Limited routes change pipeline state and go through the rate limiter.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc, limited bool) {
	if limited {
		h = s.limit(h)
	}
	mux.HandleFunc(pattern, s.instrument(pattern, s.cors(h)))
}

// cors answers preflight requests and stamps the allowed origin on the rest.
func (s *Server) cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.corsOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Max-Age", "86400")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

// instrument records count and latency per route pattern, never per raw
// path, so unknown URLs cannot grow the label set.
func (s *Server) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(rec, r)
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// limit rejects control requests beyond the per-client budget with 429.
func (s *Server) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimiter == nil || r.Method == http.MethodOptions {
			next(w, r)
			return
		}
		err := s.rateLimiter.Allow(clientKey(r))
		if err == nil {
			next(w, r)
			return
		}
		var e *RateLimitError
		if errors.As(err, &e) {
			rateLimitHits.WithLabelValues(e.Type).Inc()
			w.Header().Set("X-RateLimit-Type", e.Type)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(e.Limit))
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(e.RetryAfter.Seconds()))))
		}
		s.writeErrorResponse(w, "rate_limit_exceeded", err.Error(), http.StatusTooManyRequests)
	}
}

// clientKey identifies the caller for rate limiting: the first forwarded hop
// when behind a proxy, otherwise the remote IP.
func clientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
