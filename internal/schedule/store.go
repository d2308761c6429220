/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule holds the per-day slot store for a single planning run.
// The store is the only enforcement point for the no-overlap invariant and
// is intentionally not safe for concurrent use: each run owns exactly one.
package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/friendsincode/tunabrain/internal/interval"
)

// SelectionStrategy controls how the playout side resolves a media reference.
type SelectionStrategy string

const (
	StrategyRandom     SelectionStrategy = "random"
	StrategySequential SelectionStrategy = "sequential"
	StrategySpecific   SelectionStrategy = "specific"
)

// Valid reports whether the strategy is one of the known values.
func (s SelectionStrategy) Valid() bool {
	switch s {
	case StrategyRandom, StrategySequential, StrategySpecific:
		return true
	}
	return false
}

// Slot is a committed block of programming within one day bucket.
type Slot struct {
	ID              string
	Window          interval.Interval
	MediaRef        string
	Strategy        SelectionStrategy
	CategoryFilters []string
	Notes           []string
	Locked          bool
}

// OverlapError reports a rejected insert together with the conflicting slot,
// so the planner can feed the conflict back to the policy instead of failing
// the run.
type OverlapError struct {
	Conflict interval.Interval
	MediaRef string
	Locked   bool
}

func (e *OverlapError) Error() string {
	kind := "existing"
	if e.Locked {
		kind = "locked"
	}
	return fmt.Sprintf("slot overlaps %s slot %s (%s)", kind, e.Conflict.String(), e.MediaRef)
}

// Store keeps ordered per-day slot buckets plus the set of lock markers
// recorded at run initialization.
type Store struct {
	days   map[string][]Slot
	locked map[string]struct{}
}

// NewStore creates an empty schedule store.
func NewStore() *Store {
	return &Store{
		days:   make(map[string][]Slot),
		locked: make(map[string]struct{}),
	}
}

// Insert adds a slot to the bucket for date, rejecting any slot that overlaps
// an existing one (locked or not). Buckets stay ordered by start time.
func (s *Store) Insert(date string, slot Slot) error {
	if err := slot.Window.Validate(); err != nil {
		return fmt.Errorf("insert %s: %w", date, err)
	}

	bucket := s.days[date]
	for _, existing := range bucket {
		if slot.Window.Overlaps(existing.Window) {
			return &OverlapError{
				Conflict: existing.Window,
				MediaRef: existing.MediaRef,
				Locked:   existing.Locked,
			}
		}
	}

	idx := sort.Search(len(bucket), func(i int) bool {
		return bucket[i].Window.Start.After(slot.Window.Start)
	})
	bucket = append(bucket, Slot{})
	copy(bucket[idx+1:], bucket[idx:])
	bucket[idx] = slot
	s.days[date] = bucket
	return nil
}

// MarkLocked records an immutable marker for the slot starting at start on
// date. Called once per pre-scheduled slot during run initialization.
func (s *Store) MarkLocked(date string, start time.Time) {
	s.locked[lockKey(date, start)] = struct{}{}
}

// IsLocked reports whether a lock marker exists for date and start.
func (s *Store) IsLocked(date string, start time.Time) bool {
	_, ok := s.locked[lockKey(date, start)]
	return ok
}

// Day returns a copy of the bucket for date, ordered by start time.
func (s *Store) Day(date string) []Slot {
	bucket := s.days[date]
	if len(bucket) == 0 {
		return nil
	}
	out := make([]Slot, len(bucket))
	copy(out, bucket)
	return out
}

// Dates returns the bucket keys in ascending order.
func (s *Store) Dates() []string {
	dates := make([]string, 0, len(s.days))
	for date := range s.days {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// Len returns the total number of committed slots.
func (s *Store) Len() int {
	total := 0
	for _, bucket := range s.days {
		total += len(bucket)
	}
	return total
}

// Snapshot returns a read-only copy of every bucket keyed by date.
func (s *Store) Snapshot() map[string][]Slot {
	out := make(map[string][]Slot, len(s.days))
	for date := range s.days {
		out[date] = s.Day(date)
	}
	return out
}

func lockKey(date string, start time.Time) string {
	return date + ":" + start.UTC().Format(time.RFC3339)
}
