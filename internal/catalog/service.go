/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog manages channels and their media libraries, the read-only
// reference data scheduling runs draw on.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/tunabrain/internal/cache"
	"github.com/friendsincode/tunabrain/internal/events"
	"github.com/friendsincode/tunabrain/internal/models"
)

// ErrNotFound is returned when a channel or media item does not exist.
var ErrNotFound = errors.New("not found")

// Service provides channel and media library access with cache-aside reads.
type Service struct {
	db     *gorm.DB
	cache  *cache.Cache
	bus    events.Publisher
	logger zerolog.Logger
}

// NewService creates a catalog service.
func NewService(db *gorm.DB, c *cache.Cache, bus events.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		cache:  c,
		bus:    bus,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// ListChannels returns all channels, cache first.
func (s *Service) ListChannels(ctx context.Context) ([]models.Channel, error) {
	if cached, ok := s.cache.GetChannelList(ctx); ok {
		return channelsFromCache(cached), nil
	}

	var channels []models.Channel
	if err := s.db.WithContext(ctx).Order("name").Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	_ = s.cache.SetChannelList(ctx, channelsToCache(channels))
	return channels, nil
}

// GetChannel fetches one channel by ID.
func (s *Service) GetChannel(ctx context.Context, id string) (*models.Channel, error) {
	var channel models.Channel
	err := s.db.WithContext(ctx).First(&channel, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return &channel, nil
}

// GetChannelByName fetches one channel by its unique name.
func (s *Service) GetChannelByName(ctx context.Context, name string) (*models.Channel, error) {
	var channel models.Channel
	err := s.db.WithContext(ctx).First(&channel, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get channel by name: %w", err)
	}
	return &channel, nil
}

// CreateChannel stores a new channel.
func (s *Service) CreateChannel(ctx context.Context, channel *models.Channel) error {
	if channel.ID == "" {
		channel.ID = uuid.NewString()
	}
	if channel.Name == "" {
		return fmt.Errorf("channel name is required")
	}

	if err := s.db.WithContext(ctx).Create(channel).Error; err != nil {
		return fmt.Errorf("create channel: %w", err)
	}

	_ = s.cache.InvalidateChannelList(ctx)
	s.publish(events.EventChannelUpdated, events.Payload{"channel_id": channel.ID, "name": channel.Name})
	s.logger.Info().Str("channel_id", channel.ID).Str("name", channel.Name).Msg("channel created")
	return nil
}

// UpdateChannel persists channel changes.
func (s *Service) UpdateChannel(ctx context.Context, channel *models.Channel) error {
	result := s.db.WithContext(ctx).Model(&models.Channel{}).Where("id = ?", channel.ID).Updates(map[string]any{
		"name":              channel.Name,
		"description":       channel.Description,
		"instructions":      channel.Instructions,
		"day_start_minutes": channel.DayStartMinutes,
		"day_end_minutes":   channel.DayEndMinutes,
	})
	if result.Error != nil {
		return fmt.Errorf("update channel: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	_ = s.cache.InvalidateChannel(ctx, channel.ID)
	s.publish(events.EventChannelUpdated, events.Payload{"channel_id": channel.ID, "name": channel.Name})
	return nil
}

// DeleteChannel removes a channel and its media library.
func (s *Service) DeleteChannel(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("channel_id = ?", id).Delete(&models.MediaItem{}).Error; err != nil {
			return fmt.Errorf("delete channel media: %w", err)
		}
		result := tx.Delete(&models.Channel{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("delete channel: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		_ = s.cache.InvalidateChannel(ctx, id)
		s.publish(events.EventChannelDeleted, events.Payload{"channel_id": id})
		s.logger.Info().Str("channel_id", id).Msg("channel deleted")
		return nil
	})
}

// ListMedia returns a channel's media library, cache first.
func (s *Service) ListMedia(ctx context.Context, channelID string) ([]models.MediaItem, error) {
	if cached, ok := s.cache.GetChannelMedia(ctx, channelID); ok {
		return mediaFromCache(cached), nil
	}

	var items []models.MediaItem
	if err := s.db.WithContext(ctx).Where("channel_id = ?", channelID).Order("title").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}

	_ = s.cache.SetChannelMedia(ctx, channelID, mediaToCache(items))
	return items, nil
}

// MediaRefs returns the channel's media references in stable order, the form
// the planner hands to the decision policy.
func (s *Service) MediaRefs(ctx context.Context, channelID string) ([]string, error) {
	items, err := s.ListMedia(ctx, channelID)
	if err != nil {
		return nil, err
	}
	refs := make([]string, 0, len(items))
	for _, item := range items {
		if item.MediaRef != "" {
			refs = append(refs, item.MediaRef)
		}
	}
	return refs, nil
}

// AddMedia stores a media item in a channel's library.
func (s *Service) AddMedia(ctx context.Context, item *models.MediaItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.ChannelID == "" {
		return fmt.Errorf("media item requires a channel")
	}
	if item.MediaRef == "" {
		return fmt.Errorf("media item requires a media reference")
	}

	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("add media: %w", err)
	}

	_ = s.cache.InvalidateChannelMedia(ctx, item.ChannelID)
	s.publish(events.EventMediaUpdated, events.Payload{"channel_id": item.ChannelID, "media_id": item.ID})
	return nil
}

// DeleteMedia removes a media item.
func (s *Service) DeleteMedia(ctx context.Context, channelID, mediaID string) error {
	result := s.db.WithContext(ctx).Where("id = ? AND channel_id = ?", mediaID, channelID).Delete(&models.MediaItem{})
	if result.Error != nil {
		return fmt.Errorf("delete media: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	_ = s.cache.InvalidateChannelMedia(ctx, channelID)
	s.publish(events.EventMediaUpdated, events.Payload{"channel_id": channelID, "media_id": mediaID})
	return nil
}

func (s *Service) publish(eventType events.EventType, payload events.Payload) {
	if s.bus != nil {
		s.bus.Publish(eventType, payload)
	}
}

func channelsToCache(channels []models.Channel) []cache.CachedChannel {
	out := make([]cache.CachedChannel, 0, len(channels))
	for _, ch := range channels {
		out = append(out, cache.CachedChannel{
			ID:              ch.ID,
			Name:            ch.Name,
			Description:     ch.Description,
			Instructions:    ch.Instructions,
			DayStartMinutes: ch.DayStartMinutes,
			DayEndMinutes:   ch.DayEndMinutes,
		})
	}
	return out
}

func channelsFromCache(cached []cache.CachedChannel) []models.Channel {
	out := make([]models.Channel, 0, len(cached))
	for _, ch := range cached {
		out = append(out, models.Channel{
			ID:              ch.ID,
			Name:            ch.Name,
			Description:     ch.Description,
			Instructions:    ch.Instructions,
			DayStartMinutes: ch.DayStartMinutes,
			DayEndMinutes:   ch.DayEndMinutes,
		})
	}
	return out
}

func mediaToCache(items []models.MediaItem) []cache.CachedMediaItem {
	out := make([]cache.CachedMediaItem, 0, len(items))
	for _, item := range items {
		out = append(out, cache.CachedMediaItem{
			ID:              item.ID,
			ChannelID:       item.ChannelID,
			Title:           item.Title,
			MediaRef:        item.MediaRef,
			Genres:          item.Genres,
			Tags:            item.Tags,
			DurationMinutes: item.DurationMinutes,
			Rating:          item.Rating,
		})
	}
	return out
}

func mediaFromCache(cached []cache.CachedMediaItem) []models.MediaItem {
	out := make([]models.MediaItem, 0, len(cached))
	for _, item := range cached {
		out = append(out, models.MediaItem{
			ID:              item.ID,
			ChannelID:       item.ChannelID,
			Title:           item.Title,
			MediaRef:        item.MediaRef,
			Genres:          item.Genres,
			Tags:            item.Tags,
			DurationMinutes: item.DurationMinutes,
			Rating:          item.Rating,
		})
	}
	return out
}
