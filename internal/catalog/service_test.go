/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/friendsincode/tunabrain/internal/cache"
	"github.com/friendsincode/tunabrain/internal/models"
)

func testService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Channel{}, &models.MediaItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewService(db, cache.Disabled(zerolog.Nop()), nil, zerolog.Nop())
}

func TestChannelLifecycle(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	channel := &models.Channel{Name: "Retro TV", Instructions: "sitcoms in the evening"}
	if err := svc.CreateChannel(ctx, channel); err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	if channel.ID == "" {
		t.Fatal("CreateChannel did not assign an ID")
	}

	got, err := svc.GetChannelByName(ctx, "Retro TV")
	if err != nil {
		t.Fatalf("GetChannelByName: %v", err)
	}
	if got.Instructions != "sitcoms in the evening" {
		t.Errorf("Instructions = %q", got.Instructions)
	}

	got.Description = "24/7 reruns"
	if err := svc.UpdateChannel(ctx, got); err != nil {
		t.Fatalf("UpdateChannel: %v", err)
	}

	channels, err := svc.ListChannels(ctx)
	if err != nil {
		t.Fatalf("ListChannels: %v", err)
	}
	if len(channels) != 1 || channels[0].Description != "24/7 reruns" {
		t.Errorf("ListChannels = %+v", channels)
	}

	if err := svc.DeleteChannel(ctx, got.ID); err != nil {
		t.Fatalf("DeleteChannel: %v", err)
	}
	if _, err := svc.GetChannel(ctx, got.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetChannel after delete = %v, want ErrNotFound", err)
	}
}

func TestMediaLibrary(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	channel := &models.Channel{Name: "Retro TV"}
	if err := svc.CreateChannel(ctx, channel); err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}

	items := []*models.MediaItem{
		{ChannelID: channel.ID, Title: "Friends", MediaRef: "series:friends", Genres: []string{"comedy"}},
		{ChannelID: channel.ID, Title: "Heat", MediaRef: "movie:heat", Genres: []string{"crime"}},
	}
	for _, item := range items {
		if err := svc.AddMedia(ctx, item); err != nil {
			t.Fatalf("AddMedia(%s): %v", item.Title, err)
		}
	}

	refs, err := svc.MediaRefs(ctx, channel.ID)
	if err != nil {
		t.Fatalf("MediaRefs: %v", err)
	}
	// Ordered by title: Friends, Heat.
	want := []string{"series:friends", "movie:heat"}
	if len(refs) != len(want) {
		t.Fatalf("MediaRefs = %v, want %v", refs, want)
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Errorf("MediaRefs[%d] = %q, want %q", i, refs[i], want[i])
		}
	}

	if err := svc.DeleteMedia(ctx, channel.ID, items[0].ID); err != nil {
		t.Fatalf("DeleteMedia: %v", err)
	}
	remaining, err := svc.ListMedia(ctx, channel.ID)
	if err != nil {
		t.Fatalf("ListMedia: %v", err)
	}
	if len(remaining) != 1 || remaining[0].MediaRef != "movie:heat" {
		t.Errorf("ListMedia after delete = %+v", remaining)
	}
}

func TestMediaValidation(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	if err := svc.AddMedia(ctx, &models.MediaItem{Title: "orphan", MediaRef: "movie:x"}); err == nil {
		t.Error("AddMedia should reject items without a channel")
	}
	if err := svc.AddMedia(ctx, &models.MediaItem{ChannelID: "c1", Title: "no ref"}); err == nil {
		t.Error("AddMedia should reject items without a media reference")
	}
	if err := svc.DeleteMedia(ctx, "c1", "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteMedia missing item = %v, want ErrNotFound", err)
	}
}
