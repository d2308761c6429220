/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package models defines the persisted entities.
package models

import "time"

// Channel is a programmable TV channel with standing scheduling guidance.
type Channel struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	Name         string `gorm:"uniqueIndex"`
	Description  string `gorm:"type:text"`
	Instructions string `gorm:"type:text"`

	// Broadcast day window as minutes from midnight. Zero values fall back
	// to the 06:00-02:00(+1d) default.
	DayStartMinutes int
	DayEndMinutes   int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MediaItem is a library entry a channel can schedule.
type MediaItem struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	ChannelID       string `gorm:"type:uuid;index"`
	Title           string `gorm:"index"`
	MediaRef        string `gorm:"index"` // e.g. "series:friends", "movie:heat"
	IMDBID          string `gorm:"type:varchar(16)"`
	Description     string `gorm:"type:text"`
	Genres          []string `gorm:"type:jsonb;serializer:json"`
	Tags            []string `gorm:"type:jsonb;serializer:json"`
	DurationMinutes int
	Rating          string `gorm:"type:varchar(16)"`
	CriticalRating  float64
	AudienceRating  float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ScheduleRun records one planning execution and its terminal status.
type ScheduleRun struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	ChannelID     string `gorm:"type:uuid;index"`
	ChannelName   string `gorm:"index"`
	Status        string `gorm:"type:varchar(16);index"`
	Iterations    int
	Rejections    int
	Analyses      int
	WindowDays    int
	StartDate     time.Time
	Instructions  string         `gorm:"type:text"`
	Overview      string         `gorm:"type:text"`
	FailureReason string         `gorm:"type:text"`
	Slots         []ScheduleSlot `gorm:"foreignKey:RunID"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ScheduleSlot is one committed slot of a run's output.
type ScheduleSlot struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	RunID           string `gorm:"type:uuid;index"`
	Date            string `gorm:"type:varchar(10);index"`
	StartsAt        time.Time
	EndsAt          time.Time
	MediaRef        string   `gorm:"index"`
	Strategy        string   `gorm:"type:varchar(16)"`
	CategoryFilters []string `gorm:"type:jsonb;serializer:json"`
	Notes           []string `gorm:"type:jsonb;serializer:json"`
	Locked          bool
	CreatedAt       time.Time
}
