/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the HTTP surface: channel and media management,
// run triggering, and schedule queries.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/tunabrain/internal/auth"
	"github.com/friendsincode/tunabrain/internal/catalog"
	"github.com/friendsincode/tunabrain/internal/config"
	"github.com/friendsincode/tunabrain/internal/logbuffer"
	"github.com/friendsincode/tunabrain/internal/planner"
	"github.com/friendsincode/tunabrain/internal/runs"
)

// API exposes HTTP handlers.
type API struct {
	catalog   *catalog.Service
	runs      *runs.Service
	planner   *planner.Runner
	cfg       *config.Config
	jwtSecret []byte
	logBuffer *logbuffer.Buffer
	logger    zerolog.Logger
}

// New creates the API router wrapper.
func New(catalogSvc *catalog.Service, runsSvc *runs.Service, runner *planner.Runner, cfg *config.Config, logger zerolog.Logger) *API {
	return &API{
		catalog:   catalogSvc,
		runs:      runsSvc,
		planner:   runner,
		cfg:       cfg,
		jwtSecret: []byte(cfg.JWTSigningKey),
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts all endpoints on r.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		// Public read endpoints (no auth required)
		r.Get("/schedule", a.handleScheduleLatest)
		r.Get("/schedule/export", a.handleScheduleExport)

		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(a.jwtSecret))

			pr.Route("/channels", func(r chi.Router) {
				r.Get("/", a.handleChannelsList)
				r.Post("/", a.handleChannelsCreate)
				r.Route("/{channelID}", func(r chi.Router) {
					r.Get("/", a.handleChannelsGet)
					r.Patch("/", a.handleChannelsUpdate)
					r.Delete("/", a.handleChannelsDelete)
					r.Route("/media", func(r chi.Router) {
						r.Get("/", a.handleMediaList)
						r.Post("/", a.handleMediaAdd)
						r.Delete("/{mediaID}", a.handleMediaDelete)
					})
				})
			})

			pr.Route("/runs", func(r chi.Router) {
				r.Get("/", a.handleRunsList)
				r.Post("/", a.handleRunsCreate)
				r.Get("/{runID}", a.handleRunsGet)
			})

			pr.Get("/schedule/gaps", a.handleScheduleGaps)

			pr.Route("/logs", func(r chi.Router) {
				r.Get("/", a.handleLogsList)
				r.Get("/components", a.handleLogsComponents)
				r.Get("/stats", a.handleLogsStats)
			})
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
