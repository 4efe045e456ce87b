package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/vainnor/active-flights/metrics"
	"github.com/vainnor/active-flights/types"
)

type Collector interface {
	GetStats() types.CollectionStats
}

type Options struct {
	MaxBodyBytes int64

	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64
	RateBurst int
}

// NewRouter creates and configures a new router with all API endpoints.
// feed may be nil, in which case /ws is not served.
func NewRouter(reg Registry, collector Collector, feed http.Handler, logger *zap.Logger, opts Options) http.Handler {
	metrics.Register()

	r := mux.NewRouter()
	// mux skips r.Use middleware for these, so wrap them directly.
	unmatched := func(h http.HandlerFunc) http.Handler {
		return RequestID(AccessLog(logger)(h))
	}
	r.NotFoundHandler = unmatched(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errNotFound)
	})
	r.MethodNotAllowedHandler = unmatched(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errMethod)
	})

	h := &Handlers{Registry: reg, Logger: logger, MaxBodyBytes: opts.MaxBodyBytes}
	if h.MaxBodyBytes <= 0 {
		h.MaxBodyBytes = 1 << 20
	}

	// Flight endpoints
	r.HandleFunc("/fetch", h.Fetch).Methods(http.MethodGet)
	r.HandleFunc("/new", h.New).Methods(http.MethodPost, http.MethodGet)
	r.HandleFunc("/update", h.Update).Methods(http.MethodPut, http.MethodGet)
	r.HandleFunc("/remove", h.Remove).Methods(http.MethodDelete, http.MethodGet)

	r.HandleFunc("/stats", GetCollectorStats(collector)).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	if feed != nil {
		r.Handle("/ws", feed).Methods(http.MethodGet)
	}

	r.Use(RequestID, AccessLog(logger))
	if opts.RateLimit > 0 {
		r.Use(NewRateLimiter(opts.RateLimit, opts.RateBurst).Middleware)
	}

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{requestIDHeader},
	}).Handler(r)
}
