/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package runs persists scheduling run results and serves them back.
package runs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/tunabrain/internal/cache"
	"github.com/friendsincode/tunabrain/internal/models"
	"github.com/friendsincode/tunabrain/internal/planner"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Service stores run results and answers run queries.
type Service struct {
	db     *gorm.DB
	cache  *cache.Cache
	logger zerolog.Logger
}

// NewService creates a run persistence service.
func NewService(db *gorm.DB, c *cache.Cache, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		cache:  c,
		logger: logger.With().Str("component", "runs").Logger(),
	}
}

// SaveResult persists a finished run with its slots in one transaction.
func (s *Service) SaveResult(ctx context.Context, channelID string, req planner.Request, result *planner.Result) error {
	run := models.ScheduleRun{
		ID:            result.RunID,
		ChannelID:     channelID,
		ChannelName:   req.Channel,
		Status:        string(result.Status),
		Iterations:    result.Iterations,
		Rejections:    result.Rejections,
		Analyses:      result.Analyses,
		WindowDays:    req.WindowDays,
		StartDate:     req.StartDate,
		Instructions:  req.Instructions,
		Overview:      result.Overview,
		FailureReason: result.FailureReason,
	}
	for _, slot := range result.Slots {
		run.Slots = append(run.Slots, models.ScheduleSlot{
			ID:              uuid.NewString(),
			RunID:           run.ID,
			Date:            slot.Date,
			StartsAt:        slot.Start,
			EndsAt:          slot.End,
			MediaRef:        slot.MediaRef,
			Strategy:        string(slot.Strategy),
			CategoryFilters: slot.CategoryFilters,
			Notes:           slot.Notes,
			Locked:          slot.Locked,
		})
	}

	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	_ = s.cache.SetRun(ctx, &cache.CachedRun{
		RunID:      run.ID,
		ChannelID:  channelID,
		Status:     run.Status,
		Iterations: run.Iterations,
		Slots:      len(run.Slots),
		Overview:   run.Overview,
	})

	s.logger.Info().
		Str("run_id", run.ID).
		Str("status", run.Status).
		Int("slots", len(run.Slots)).
		Msg("run persisted")
	return nil
}

// GetRun fetches one run with its slots.
func (s *Service) GetRun(ctx context.Context, runID string) (*models.ScheduleRun, error) {
	var run models.ScheduleRun
	err := s.db.WithContext(ctx).Preload("Slots", func(db *gorm.DB) *gorm.DB {
		return db.Order("starts_at")
	}).First(&run, "id = ?", runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs, optionally filtered by channel.
func (s *Service) ListRuns(ctx context.Context, channelID string, limit int) ([]models.ScheduleRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if channelID != "" {
		query = query.Where("channel_id = ?", channelID)
	}

	var runs []models.ScheduleRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// LatestSchedule returns the slots of the newest run that produced output
// for the channel (status complete or partial).
func (s *Service) LatestSchedule(ctx context.Context, channelID string) ([]models.ScheduleSlot, error) {
	var run models.ScheduleRun
	err := s.db.WithContext(ctx).
		Where("channel_id = ? AND status IN ?", channelID, []string{string(planner.StatusComplete), string(planner.StatusPartial)}).
		Order("created_at DESC").
		Preload("Slots", func(db *gorm.DB) *gorm.DB {
			return db.Order("starts_at")
		}).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest schedule: %w", err)
	}
	return run.Slots, nil
}
