package httpapi

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/noghresod/sync-service-go/internal/metrics"
)

// RateLimit bounds requests per client address with a token bucket per key.
// Limiter state is LRU-bounded so a scan of ephemeral clients cannot grow it
// without bound.
func RateLimit(perSecond, burst int) func(http.Handler) http.Handler {
	limiters, err := lru.New[string, *rate.Limiter](1024)
	if err != nil {
		panic(err)
	}

	limiterFor := func(key string) *rate.Limiter {
		if l, ok := limiters.Get(key); ok {
			return l
		}
		l := rate.NewLimiter(rate.Limit(perSecond), burst)
		limiters.Add(key, l)
		return l
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			if !limiterFor(key).Allow() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Metrics records request counts and latencies labeled by the chi route
// pattern, not the raw path, to keep label cardinality bounded.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := chi.RouteContext(r.Context()).RoutePattern()
		if len(path) > 1 {
			path = strings.TrimSuffix(path, "/")
		}
		if path == "" {
			path = "unmatched"
		}
		metrics.ObserveRequest(r.Method, path, ww.Status(), time.Since(start))
	})
}
