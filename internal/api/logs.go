/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/friendsincode/tunabrain/internal/logbuffer"
)

// SetLogBuffer attaches the process log ring buffer for the logs endpoints.
func (a *API) SetLogBuffer(buf *logbuffer.Buffer) {
	a.logBuffer = buf
}

func (a *API) handleLogsList(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "logs_unavailable")
		return
	}

	q := r.URL.Query()
	params := logbuffer.QueryParams{
		Level:      q.Get("level"),
		Component:  q.Get("component"),
		RunID:      q.Get("run_id"),
		Search:     q.Get("search"),
		Descending: q.Get("order") != "asc",
		Limit:      100,
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		params.Limit = limit
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_since")
			return
		}
		params.Since = since
	}

	writeJSON(w, http.StatusOK, a.logBuffer.Query(params))
}

func (a *API) handleLogsComponents(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "logs_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, a.logBuffer.Components())
}

func (a *API) handleLogsStats(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "logs_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, a.logBuffer.Stats())
}
