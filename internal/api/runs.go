/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/tunabrain/internal/catalog"
	"github.com/friendsincode/tunabrain/internal/gaps"
	"github.com/friendsincode/tunabrain/internal/interval"
	"github.com/friendsincode/tunabrain/internal/models"
	"github.com/friendsincode/tunabrain/internal/planner"
	"github.com/friendsincode/tunabrain/internal/runs"
	"github.com/friendsincode/tunabrain/internal/schedule"
)

type prescheduledRequest struct {
	Date     string                     `json:"date"`
	Start    string                     `json:"start"`
	End      string                     `json:"end"`
	MediaRef string                     `json:"media_ref"`
	Strategy schedule.SelectionStrategy `json:"strategy"`
}

type runRequest struct {
	ChannelID        string                `json:"channel_id"`
	Channel          string                `json:"channel"`
	StartDate        string                `json:"start_date"`
	EndDate          string                `json:"end_date"`
	WindowDays       int                   `json:"window_days"`
	Instructions     string                `json:"instructions"`
	PreferredSlots   []string              `json:"preferred_slots"`
	MaxIterations    int                   `json:"max_iterations"`
	QualityThreshold float64               `json:"quality_threshold"`
	Prescheduled     []prescheduledRequest `json:"prescheduled"`
}

type runResponse struct {
	ChannelID string          `json:"channel_id"`
	Result    *planner.Result `json:"result"`
}

func (a *API) handleRunsCreate(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	channel, err := a.resolveChannel(r, req.ChannelID, req.Channel)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "channel_not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("resolve channel failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	planReq, err := a.buildPlanRequest(r, channel, req)
	if err != nil {
		a.logger.Warn().Err(err).Str("channel", channel.Name).Msg("run request rejected")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request", "detail": err.Error()})
		return
	}

	result, err := a.planner.Run(r.Context(), planReq)
	if err != nil {
		a.logger.Warn().Err(err).Str("channel", channel.Name).Msg("run request rejected")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request", "detail": err.Error()})
		return
	}

	if err := a.runs.SaveResult(r.Context(), channel.ID, planReq, result); err != nil {
		a.logger.Error().Err(err).Str("run_id", result.RunID).Msg("persist run failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusCreated, runResponse{ChannelID: channel.ID, Result: result})
}

func (a *API) handleRunsList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, err := a.runs.ListRuns(r.Context(), r.URL.Query().Get("channel_id"), limit)
	if err != nil {
		a.logger.Error().Err(err).Msg("list runs failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleRunsGet(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := a.runs.GetRun(r.Context(), runID)
	if errors.Is(err, runs.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("get run failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (a *API) handleScheduleLatest(w http.ResponseWriter, r *http.Request) {
	channelID := r.URL.Query().Get("channel_id")
	if channelID == "" {
		writeError(w, http.StatusBadRequest, "channel_id_required")
		return
	}

	slots, err := a.runs.LatestSchedule(r.Context(), channelID)
	if errors.Is(err, runs.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("latest schedule failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (a *API) handleScheduleExport(w http.ResponseWriter, r *http.Request) {
	channelID := r.URL.Query().Get("channel_id")
	if channelID == "" {
		writeError(w, http.StatusBadRequest, "channel_id_required")
		return
	}

	channel, err := a.catalog.GetChannel(r.Context(), channelID)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "channel_not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("get channel failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	slots, err := a.runs.LatestSchedule(r.Context(), channelID)
	if errors.Is(err, runs.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("latest schedule failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	export := schedule.ExportICal(channel.Name, slots)
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Data)
}

type gapReport struct {
	ChannelID    string     `json:"channel_id"`
	StartDate    string     `json:"start_date"`
	Days         int        `json:"days"`
	Gaps         []gaps.Gap `json:"gaps"`
	TotalMinutes int        `json:"total_minutes"`
}

// handleScheduleGaps reports the uncovered stretches of the channel's latest
// usable schedule, so operators can see what a new run would have to fill.
func (a *API) handleScheduleGaps(w http.ResponseWriter, r *http.Request) {
	channelID := r.URL.Query().Get("channel_id")
	if channelID == "" {
		writeError(w, http.StatusBadRequest, "channel_id_required")
		return
	}

	channel, err := a.catalog.GetChannel(r.Context(), channelID)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "channel_not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("get channel failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	start := time.Now().UTC().Truncate(24 * time.Hour)
	if raw := r.URL.Query().Get("start"); raw != "" {
		start, err = time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_date")
			return
		}
	}
	days := a.cfg.DefaultWindowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_days")
			return
		}
	}

	store := schedule.NewStore()
	slots, err := a.runs.LatestSchedule(r.Context(), channelID)
	if err != nil && !errors.Is(err, runs.ErrNotFound) {
		a.logger.Error().Err(err).Msg("latest schedule failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	for _, slot := range slots {
		_ = store.Insert(slot.Date, schedule.Slot{
			ID:       slot.ID,
			Window:   interval.Interval{Start: slot.StartsAt, End: slot.EndsAt},
			MediaRef: slot.MediaRef,
			Strategy: schedule.SelectionStrategy(slot.Strategy),
			Locked:   slot.Locked,
		})
	}

	opts := gaps.DefaultOptions()
	opts.DayStart, opts.DayEnd, err = a.dayWindow(channel)
	if err != nil {
		a.logger.Error().Err(err).Msg("day window misconfigured")
		writeError(w, http.StatusInternalServerError, "config_error")
		return
	}

	report := gapReport{
		ChannelID: channelID,
		StartDate: start.Format("2006-01-02"),
		Days:      days,
		Gaps:      gaps.FindRange(store, start, days, opts),
	}
	for _, gap := range report.Gaps {
		report.TotalMinutes += gap.DurationMinutes()
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) resolveChannel(r *http.Request, channelID, name string) (*models.Channel, error) {
	if channelID != "" {
		return a.catalog.GetChannel(r.Context(), channelID)
	}
	if name != "" {
		return a.catalog.GetChannelByName(r.Context(), name)
	}
	return nil, catalog.ErrNotFound
}

// buildPlanRequest merges the request body with channel and process defaults
// into a planner request.
func (a *API) buildPlanRequest(r *http.Request, channel *models.Channel, req runRequest) (planner.Request, error) {
	planReq := planner.Request{
		Channel:          channel.Name,
		Instructions:     req.Instructions,
		WindowDays:       req.WindowDays,
		PreferredSlots:   req.PreferredSlots,
		MaxIterations:    req.MaxIterations,
		QualityThreshold: req.QualityThreshold,
	}
	if planReq.Instructions == "" {
		planReq.Instructions = channel.Instructions
	}
	if planReq.WindowDays <= 0 {
		planReq.WindowDays = a.cfg.DefaultWindowDays
	}
	if planReq.MaxIterations <= 0 {
		planReq.MaxIterations = a.cfg.DefaultBudget
	}

	planReq.StartDate = time.Now().UTC().Truncate(24 * time.Hour)
	if req.StartDate != "" {
		start, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			return planner.Request{}, fmt.Errorf("malformed start date %q", req.StartDate)
		}
		planReq.StartDate = start
	}
	if req.EndDate != "" {
		end, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			return planner.Request{}, fmt.Errorf("malformed end date %q", req.EndDate)
		}
		planReq.EndDate = &end
	}

	var err error
	planReq.DayStart, planReq.DayEnd, err = a.dayWindow(channel)
	if err != nil {
		return planner.Request{}, err
	}

	for _, pre := range req.Prescheduled {
		slot, err := prescheduledFromRequest(pre)
		if err != nil {
			return planner.Request{}, err
		}
		planReq.Prescheduled = append(planReq.Prescheduled, slot)
	}

	refs, err := a.catalog.MediaRefs(r.Context(), channel.ID)
	if err != nil {
		return planner.Request{}, err
	}
	planReq.MediaCount = len(refs)

	return planReq, nil
}

// dayWindow prefers the channel's own broadcast day over the process default.
func (a *API) dayWindow(channel *models.Channel) (time.Duration, time.Duration, error) {
	if channel.DayStartMinutes != 0 || channel.DayEndMinutes != 0 {
		start := time.Duration(channel.DayStartMinutes) * time.Minute
		end := time.Duration(channel.DayEndMinutes) * time.Minute
		if end <= start {
			end += 24 * time.Hour
		}
		return start, end, nil
	}
	return a.cfg.DayWindow()
}

func prescheduledFromRequest(pre prescheduledRequest) (planner.PlannedSlot, error) {
	day, err := time.Parse("2006-01-02", pre.Date)
	if err != nil {
		return planner.PlannedSlot{}, fmt.Errorf("pre-scheduled slot: malformed date %q", pre.Date)
	}
	startOffset, err := gaps.ParseClock(pre.Start)
	if err != nil {
		return planner.PlannedSlot{}, fmt.Errorf("pre-scheduled slot %s: %w", pre.Date, err)
	}
	endOffset, err := gaps.ParseClock(pre.End)
	if err != nil {
		return planner.PlannedSlot{}, fmt.Errorf("pre-scheduled slot %s: %w", pre.Date, err)
	}
	return planner.PlannedSlot{
		Date:     pre.Date,
		Start:    day.UTC().Add(startOffset),
		End:      day.UTC().Add(endOffset),
		MediaRef: pre.MediaRef,
		Strategy: pre.Strategy,
	}, nil
}
