package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/splitgate/internal/gate"
	"github.com/TimurManjosov/splitgate/internal/snapshot"
	"github.com/TimurManjosov/splitgate/internal/telemetry"
)

// Options configure the HTTP surface around a gate.
type Options struct {
	// HomeURL is the main storefront origin the check endpoint sends control
	// visitors back to.
	HomeURL string
	// Upstream, when set, is reverse-proxied behind the gate middleware for
	// every route the API does not serve itself.
	Upstream *url.URL
	// RateLimitPerIP caps check endpoint calls per client IP per minute.
	RateLimitPerIP int
	// Settings is published as the config snapshot.
	Settings snapshot.SettingsView
	Logger   zerolog.Logger
}

type Server struct {
	gate   *gate.Gate
	check  http.HandlerFunc
	opts   Options
	logger zerolog.Logger
}

func NewServer(g *gate.Gate, opts Options) (*Server, error) {
	check, err := g.CheckHandler(opts.HomeURL)
	if err != nil {
		return nil, fmt.Errorf("invalid home URL: %w", err)
	}
	if opts.RateLimitPerIP <= 0 {
		opts.RateLimitPerIP = 100
	}
	s := &Server{gate: g, check: check, opts: opts, logger: opts.Logger}
	s.PublishSnapshot()
	return s, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(telemetry.Middleware)

	// health
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1/gate", func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))

		// public: settings snapshot (ETag)
		r.Get("/config", func(w http.ResponseWriter, req *http.Request) {
			snap := snapshot.Load()
			if inm := req.Header.Get("If-None-Match"); inm != "" && inm == snap.ETag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("ETag", snap.ETag)
			_ = json.NewEncoder(w).Encode(snap)
		})

		r.Get("/decide", s.handleDecide)
	})

	// storefront check, called by the page script
	r.With(httprate.Limit(
		s.opts.RateLimitPerIP,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, req *http.Request) {
			RateLimitedError(w, req, "too many check requests")
		}),
	)).Get("/ab-test/check", s.check)

	if s.opts.Upstream != nil {
		r.Handle("/*", s.gate.Middleware(s.proxy(s.opts.Upstream)))
	} else {
		r.NotFound(func(w http.ResponseWriter, req *http.Request) {
			NotFoundError(w, req, "no upstream storefront configured")
		})
	}

	return r
}

// ---- handlers ----

// DecideResponse is the body of /v1/gate/decide.
type DecideResponse struct {
	Decision gate.Decision `json:"decision"`
	DryRun   bool          `json:"dryRun"`
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	probe, fields := probeFromQuery(r.URL.Query())
	if fields != nil {
		ValidationError(w, r, "invalid probe parameters", fields)
		return
	}

	dec, err := s.gate.DryRun(r.Context(), probe)
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidURL, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, DecideResponse{Decision: dec, DryRun: true})
}

func (s *Server) proxy(upstream *url.URL) http.Handler {
	rp := httputil.NewSingleHostReverseProxy(upstream)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		s.logger.Warn().
			Err(err).
			Str("upstream", upstream.Host).
			Str("path", r.URL.Path).
			Msg("upstream request failed")
		BadGatewayError(w, r, "storefront unavailable")
	}
	return rp
}

// PublishSnapshot swaps in the settings snapshot served by /v1/gate/config.
func (s *Server) PublishSnapshot() {
	snapshot.Update(snapshot.Build(s.opts.Settings))
}
