/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/tunabrain/internal/catalog"
	"github.com/friendsincode/tunabrain/internal/models"
)

type channelRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Instructions    string `json:"instructions"`
	DayStartMinutes int    `json:"day_start_minutes"`
	DayEndMinutes   int    `json:"day_end_minutes"`
}

type mediaRequest struct {
	Title           string   `json:"title"`
	MediaRef        string   `json:"media_ref"`
	IMDBID          string   `json:"imdb_id"`
	Description     string   `json:"description"`
	Genres          []string `json:"genres"`
	Tags            []string `json:"tags"`
	DurationMinutes int      `json:"duration_minutes"`
	Rating          string   `json:"rating"`
	CriticalRating  float64  `json:"critical_rating"`
	AudienceRating  float64  `json:"audience_rating"`
}

func (a *API) handleChannelsList(w http.ResponseWriter, r *http.Request) {
	channels, err := a.catalog.ListChannels(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("list channels failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

func (a *API) handleChannelsCreate(w http.ResponseWriter, r *http.Request) {
	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	channel := models.Channel{
		Name:            req.Name,
		Description:     req.Description,
		Instructions:    req.Instructions,
		DayStartMinutes: req.DayStartMinutes,
		DayEndMinutes:   req.DayEndMinutes,
	}
	if err := a.catalog.CreateChannel(r.Context(), &channel); err != nil {
		a.logger.Error().Err(err).Msg("create channel failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusCreated, channel)
}

func (a *API) handleChannelsGet(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	if channelID == "" {
		writeError(w, http.StatusBadRequest, "channel_id_required")
		return
	}

	channel, err := a.catalog.GetChannel(r.Context(), channelID)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("get channel failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, channel)
}

func (a *API) handleChannelsUpdate(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")

	channel, err := a.catalog.GetChannel(r.Context(), channelID)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("get channel failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	// Decode over the current values so omitted fields stay unchanged.
	req := channelRequest{
		Name:            channel.Name,
		Description:     channel.Description,
		Instructions:    channel.Instructions,
		DayStartMinutes: channel.DayStartMinutes,
		DayEndMinutes:   channel.DayEndMinutes,
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	channel.Name = req.Name
	channel.Description = req.Description
	channel.Instructions = req.Instructions
	channel.DayStartMinutes = req.DayStartMinutes
	channel.DayEndMinutes = req.DayEndMinutes

	if err := a.catalog.UpdateChannel(r.Context(), channel); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		a.logger.Error().Err(err).Msg("update channel failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, channel)
}

func (a *API) handleChannelsDelete(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")

	if err := a.catalog.DeleteChannel(r.Context(), channelID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		a.logger.Error().Err(err).Msg("delete channel failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMediaList(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")

	items, err := a.catalog.ListMedia(r.Context(), channelID)
	if err != nil {
		a.logger.Error().Err(err).Msg("list media failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) handleMediaAdd(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")

	var req mediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.MediaRef == "" {
		writeError(w, http.StatusBadRequest, "media_ref_required")
		return
	}

	// Reject media for channels that do not exist.
	if _, err := a.catalog.GetChannel(r.Context(), channelID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		a.logger.Error().Err(err).Msg("get channel failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	item := models.MediaItem{
		ChannelID:       channelID,
		Title:           req.Title,
		MediaRef:        req.MediaRef,
		IMDBID:          req.IMDBID,
		Description:     req.Description,
		Genres:          req.Genres,
		Tags:            req.Tags,
		DurationMinutes: req.DurationMinutes,
		Rating:          req.Rating,
		CriticalRating:  req.CriticalRating,
		AudienceRating:  req.AudienceRating,
	}
	if err := a.catalog.AddMedia(r.Context(), &item); err != nil {
		a.logger.Error().Err(err).Msg("add media failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (a *API) handleMediaDelete(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	mediaID := chi.URLParam(r, "mediaID")

	if err := a.catalog.DeleteMedia(r.Context(), channelID, mediaID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		a.logger.Error().Err(err).Msg("delete media failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
