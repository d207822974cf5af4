package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TimurManjosov/splitgate/internal/allocator"
	"github.com/TimurManjosov/splitgate/internal/api"
	"github.com/TimurManjosov/splitgate/internal/classifier"
	"github.com/TimurManjosov/splitgate/internal/config"
	"github.com/TimurManjosov/splitgate/internal/gate"
	"github.com/TimurManjosov/splitgate/internal/logging"
	"github.com/TimurManjosov/splitgate/internal/request"
	"github.com/TimurManjosov/splitgate/internal/rollout"
	"github.com/TimurManjosov/splitgate/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("info", false)
		bootLogger.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogPretty)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	telemetry.Init()
	telemetry.SplitRatio.Set(float64(cfg.SplitRatio))

	alloc, err := allocator.New(cfg.AllocatorSettings(), rollout.CryptoSource{})
	if err != nil {
		logger.Fatal().Err(err).Msg("allocator")
	}
	g := gate.New(
		classifier.New(classifier.WithPathHints(cfg.PathHints)),
		alloc,
		gate.Options{
			Cookie:           cfg.CookieOptions(),
			Signals:          request.NewCookieSignals(),
			MarkExemptBypass: cfg.MarkExemptBypass,
			Logger:           logger,
		},
	)

	upstream, err := cfg.Upstream()
	if err != nil {
		logger.Fatal().Err(err).Msg("upstream")
	}

	// API server with deps
	srvAPI, err := api.NewServer(g, api.Options{
		HomeURL:        cfg.HomeURL,
		Upstream:       upstream,
		RateLimitPerIP: cfg.RateLimitPerIP,
		Settings:       cfg.SettingsView(),
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api")
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srvAPI.Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.HTTPAddr).
			Int("split_ratio", cfg.SplitRatio).
			Str("variant", cfg.VariantURL).
			Bool("proxy", upstream != nil).
			Msg("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server")
		}
	}()
	go func() {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("metrics server")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctxShut, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShut)
	_ = metricsSrv.Shutdown(ctxShut)
	logger.Info().Msg("stopped")
}
