/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package planner drives the bounded gap-filling loop for one schedule run.
// The decision policy is an external capability; the planner only validates
// and applies what the policy proposes, so it stays correct for any policy
// implementation including adversarial ones.
package planner

import (
	"context"
	"time"

	"github.com/friendsincode/tunabrain/internal/gaps"
	"github.com/friendsincode/tunabrain/internal/interval"
	"github.com/friendsincode/tunabrain/internal/schedule"
)

// Status is the run state. A run starts as running and always terminates in
// complete, partial, or failed.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
	StatusFailed   Status = "failed"
)

// ActionType discriminates policy actions.
type ActionType string

const (
	// ActionAnalyze requests gap analysis; informational, no side effects.
	ActionAnalyze ActionType = "analyze"
	// ActionFill requests committing a slot.
	ActionFill ActionType = "fill"
)

// Action is one policy request. Fill must be set when Type is ActionFill.
type Action struct {
	Type ActionType  `json:"type"`
	Fill *FillAction `json:"fill,omitempty"`
}

// FillAction asks the planner to commit media to a specific slot. Times are
// HH:MM within the named date; content after midnight belongs to the next
// date key.
type FillAction struct {
	Date            string                     `json:"date"`
	Start           string                     `json:"start"`
	End             string                     `json:"end"`
	MediaRef        string                     `json:"media_ref"`
	Strategy        schedule.SelectionStrategy `json:"strategy,omitempty"`
	CategoryFilters []string                   `json:"category_filters,omitempty"`
	Notes           []string                   `json:"notes,omitempty"`
}

// RejectionReason classifies soft rejections fed back to the policy.
type RejectionReason string

const (
	RejectOverlap   RejectionReason = "overlap"
	RejectImmutable RejectionReason = "immutable"
)

// Rejection describes a fill action that was refused in the previous
// iteration, including the conflicting interval.
type Rejection struct {
	Action   FillAction        `json:"action"`
	Reason   RejectionReason   `json:"reason"`
	Conflict interval.Interval `json:"conflict"`
}

// Context is the snapshot handed to the decision policy each iteration.
type Context struct {
	Channel      string                     `json:"channel"`
	Instructions string                     `json:"instructions,omitempty"`
	Iteration    int                        `json:"iteration"`
	Budget       int                        `json:"budget"`
	FilledSlots  int                        `json:"filled_slots"`
	MediaCount   int                        `json:"media_count"`
	Gaps         []gaps.Gap                 `json:"gaps"`
	Rejections   []Rejection                `json:"rejections,omitempty"`
	Schedule     map[string][]schedule.Slot `json:"schedule"`
}

// Policy proposes zero or more actions for the current snapshot. Returning
// no actions signals the run is done. An error means the policy itself is
// unavailable and fails the run.
type Policy interface {
	Propose(ctx context.Context, pctx Context) ([]Action, error)
}

// PolicyFunc adapts a plain function to the Policy interface.
type PolicyFunc func(ctx context.Context, pctx Context) ([]Action, error)

// Propose implements Policy.
func (f PolicyFunc) Propose(ctx context.Context, pctx Context) ([]Action, error) {
	return f(ctx, pctx)
}

// PlannedSlot is a slot with its date key, used both for pre-scheduled input
// and flattened output.
type PlannedSlot struct {
	Date            string                     `json:"date"`
	Start           time.Time                  `json:"start_time"`
	End             time.Time                  `json:"end_time"`
	MediaRef        string                     `json:"media_id"`
	Strategy        schedule.SelectionStrategy `json:"media_selection_strategy"`
	CategoryFilters []string                   `json:"category_filters,omitempty"`
	Notes           []string                   `json:"notes,omitempty"`
	Locked          bool                       `json:"locked,omitempty"`
}

// Request describes one scheduling run.
type Request struct {
	Channel          string
	Instructions     string
	StartDate        time.Time
	WindowDays       int
	EndDate          *time.Time // optional override for StartDate+WindowDays
	PreferredSlots   []string   // HH:MM boundary times, in order
	Prescheduled     []PlannedSlot
	MaxIterations    int
	QualityThreshold float64
	MediaCount       int
	DayStart         time.Duration // zero means the 06:00 default
	DayEnd           time.Duration // zero means the 02:00(+1d) default
}

// Result is what every run returns, regardless of terminal status.
type Result struct {
	RunID            string        `json:"run_id"`
	Status           Status        `json:"status"`
	Iterations       int           `json:"iterations"`
	Slots            []PlannedSlot `json:"slots"`
	Rejections       int           `json:"rejections"`
	Analyses         int           `json:"analyses"`
	Overview         string        `json:"overview"`
	FailureReason    string        `json:"failure_reason,omitempty"`
	QualityThreshold float64       `json:"quality_threshold,omitempty"`
}
