// Package devserver is a development implementation of the review REST API
// backed by the SQLite store. It serves the same routes and JSON shapes the
// client expects from production, including the deliberately slow stats
// endpoint.
package devserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abelbrown/stationreviews/internal/logging"
	"github.com/abelbrown/stationreviews/internal/metrics"
	"github.com/abelbrown/stationreviews/internal/store"
	"github.com/abelbrown/stationreviews/internal/wire"
)

// Options configures a Server.
type Options struct {
	Store          *store.Store
	Secret         []byte
	AccessTTL      time.Duration
	StatsDelay     time.Duration // added before every stats computation
	AllowedOrigins []string      // CORS; defaults to any
	Now            func() time.Time
}

// Server is an http.Handler serving the review API under /api.
type Server struct {
	store      *store.Store
	tokens     *Issuer
	statsDelay time.Duration
	now        func() time.Time
	log        *log.Logger
	router     chi.Router
}

// New builds the router.
func New(opts Options) (*Server, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	tokens, err := NewIssuer(opts.Secret, opts.AccessTTL, opts.Now)
	if err != nil {
		return nil, err
	}
	s := &Server{
		store:      opts.Store,
		tokens:     tokens,
		statsDelay: opts.StatsDelay,
		now:        opts.Now,
		log:        logging.WithPrefix("devserver"),
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/stations/", s.listStations)
		r.Get("/stations/{id}/", s.getStation)
		r.Get("/stations/{id}/stats/", s.stationStats)

		r.Get("/reviews/", s.listReviews)
		r.With(requireUser).Post("/reviews/", s.createReview)
		r.With(requireUser).Delete("/reviews/{id}/", s.deleteReview)

		r.Post("/auth/register/", s.register)
		r.Post("/auth/login/", s.login)
		r.With(requireUser).Get("/auth/whoami/", s.whoami)
	})

	s.router = r
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// instrument records request counts and latency by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		metrics.APIRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.APILatency.WithLabelValues(route).Observe(elapsed.Seconds())
		s.log.Debug("request", "method", r.Method, "route", route, "status", status,
			"dur", elapsed, "request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, wire.ErrorBody{Detail: detail})
}

func writeFieldError(w http.ResponseWriter, field, reason string) {
	writeJSON(w, http.StatusBadRequest, map[string][]string{field: {reason}})
}
