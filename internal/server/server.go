/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires configuration, storage, cache, event bus, policy,
// and the HTTP API into one runnable process.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/tunabrain/internal/api"
	"github.com/friendsincode/tunabrain/internal/cache"
	"github.com/friendsincode/tunabrain/internal/catalog"
	"github.com/friendsincode/tunabrain/internal/config"
	"github.com/friendsincode/tunabrain/internal/db"
	"github.com/friendsincode/tunabrain/internal/eventbus"
	"github.com/friendsincode/tunabrain/internal/events"
	"github.com/friendsincode/tunabrain/internal/logbuffer"
	"github.com/friendsincode/tunabrain/internal/planner"
	"github.com/friendsincode/tunabrain/internal/policy"
	"github.com/friendsincode/tunabrain/internal/runs"
	"github.com/friendsincode/tunabrain/internal/telemetry"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db        *gorm.DB
	cache     *cache.Cache
	bus       *events.Bus
	publisher events.Publisher
	logBuffer *logbuffer.Buffer
	catalog   *catalog.Service
	runs      *runs.Service
	planner   *planner.Runner
	api       *api.API

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("tunabrain-api"))
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(5 * time.Minute))

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		bus:       events.NewBus(),
		logBuffer: logBuf,
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// Runs with a large iteration budget against a slow policy endpoint
		// can legitimately take minutes; the middleware timeout bounds them.
		ReadTimeout:  0,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.RegisterCallbacks(database); err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	s.cache = cache.Disabled(s.logger)
	if s.cfg.CacheEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		entityCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = entityCache
			s.DeferClose(func() error { return s.cache.Close() })
		}
	}

	s.publisher = s.bus
	if s.cfg.NATSEnabled {
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		natsBus, err := eventbus.NewNATSBus(natsCfg, s.bus, s.logger)
		if err != nil {
			return fmt.Errorf("connect NATS: %w", err)
		}
		s.publisher = natsBus
		s.DeferClose(natsBus.Close)
		s.logger.Info().Str("url", s.cfg.NATSURL).Msg("NATS event bus enabled")
	}

	var pol planner.Policy
	switch s.cfg.PolicyMode {
	case config.PolicyRemote:
		pol = policy.NewRemote(policy.RemoteConfig{
			Endpoint: s.cfg.PolicyEndpoint,
			Token:    s.cfg.PolicyToken,
			Timeout:  s.cfg.PolicyTimeout,
		}, s.logger)
	default:
		pol = policy.NewHeuristic(nil, 0, s.logger)
	}
	s.planner = planner.New(pol, s.logger)
	s.planner.SetBus(s.publisher)

	s.catalog = catalog.NewService(database, s.cache, s.publisher, s.logger)
	s.runs = runs.NewService(database, s.cache, s.logger)
	s.api = api.New(s.catalog, s.runs, s.planner, s.cfg, s.logger)
	s.api.SetLogBuffer(s.logBuffer)

	return nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.UpdateConnectionMetrics(s.db)
			}
		}
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.runCacheInvalidationListener(ctx)
	}()
}

// runCacheInvalidationListener drops cached entries when catalog events
// arrive. Local writes already invalidate directly; this handles events
// relayed from other instances over NATS.
func (s *Server) runCacheInvalidationListener(ctx context.Context) {
	subscribe := s.bus.Subscribe
	if nb, ok := s.publisher.(*eventbus.NATSBus); ok {
		// Subscribing through the NATS bus also relays events published by
		// other instances into the local channels.
		subscribe = nb.Subscribe
	}

	channelUpdated := subscribe(events.EventChannelUpdated)
	channelDeleted := subscribe(events.EventChannelDeleted)
	mediaUpdated := subscribe(events.EventMediaUpdated)

	defer func() {
		s.bus.Unsubscribe(events.EventChannelUpdated, channelUpdated)
		s.bus.Unsubscribe(events.EventChannelDeleted, channelDeleted)
		s.bus.Unsubscribe(events.EventMediaUpdated, mediaUpdated)
	}()

	s.logger.Info().Msg("cache invalidation listener started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("cache invalidation listener stopped")
			return

		case payload := <-channelUpdated:
			_ = s.cache.InvalidateChannelList(ctx)
			if channelID, ok := payload["channel_id"].(string); ok {
				_ = s.cache.InvalidateChannel(ctx, channelID)
			}

		case payload := <-channelDeleted:
			_ = s.cache.InvalidateChannelList(ctx)
			if channelID, ok := payload["channel_id"].(string); ok {
				_ = s.cache.InvalidateChannel(ctx, channelID)
			}

		case payload := <-mediaUpdated:
			if channelID, ok := payload["channel_id"].(string); ok {
				_ = s.cache.InvalidateChannelMedia(ctx, channelID)
			}
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.api.Routes(s.router)
}
