/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package gaps computes the free intervals of a broadcast day. Gaps are
// derived on demand from the schedule store and never persisted.
package gaps

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/friendsincode/tunabrain/internal/interval"
	"github.com/friendsincode/tunabrain/internal/schedule"
)

// Default broadcast day: 06:00 to 02:00 the following day (20 hours).
const (
	DefaultDayStart = 6 * time.Hour
	DefaultDayEnd   = 26 * time.Hour
)

// Gap is an unfilled stretch of a day's window, with suggested sub-slots and
// an informational context tag for the decision policy.
type Gap struct {
	Date      string              `json:"date"`
	Window    interval.Interval   `json:"window"`
	Suggested []interval.Interval `json:"suggested_slots"`
	Context   string              `json:"context"`
}

// DurationMinutes returns the gap length in whole minutes.
func (g Gap) DurationMinutes() int {
	return int(g.Window.Duration().Minutes())
}

// Options controls the day window and the preferred slot boundaries.
// DayStart and DayEnd are offsets from the day's midnight; DayEnd may exceed
// 24h for windows that cross midnight.
type Options struct {
	DayStart   time.Duration
	DayEnd     time.Duration
	Boundaries []time.Duration
}

// DefaultOptions returns the standard 20-hour broadcast day with no
// preferred boundaries.
func DefaultOptions() Options {
	return Options{DayStart: DefaultDayStart, DayEnd: DefaultDayEnd}
}

// Validate checks the window shape.
func (o Options) Validate() error {
	if o.DayStart < 0 || o.DayEnd <= o.DayStart {
		return fmt.Errorf("day window start %s must precede end %s", o.DayStart, o.DayEnd)
	}
	if o.DayEnd-o.DayStart > 24*time.Hour {
		return fmt.Errorf("day window %s exceeds 24 hours", o.DayEnd-o.DayStart)
	}
	return nil
}

// ParseClock converts an "HH:MM" time-of-day into an offset from midnight.
// "24:00" is accepted as the exclusive end of day.
func ParseClock(s string) (time.Duration, error) {
	if s == "24:00" {
		return 24 * time.Hour, nil
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute, nil
}

// ParseBoundaries converts preferred slot times, preserving caller order.
func ParseBoundaries(times []string) ([]time.Duration, error) {
	if len(times) == 0 {
		return nil, nil
	}
	out := make([]time.Duration, 0, len(times))
	for _, t := range times {
		d, err := ParseClock(t)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// FindDay walks one day's window left to right and returns every maximal
// uncovered stretch as a Gap. slots must already be ordered by start time
// and overlap-free, which the schedule store guarantees.
func FindDay(day time.Time, slots []schedule.Slot, opts Options) []Gap {
	day = day.UTC().Truncate(24 * time.Hour)
	windowStart := day.Add(opts.DayStart)
	windowEnd := day.Add(opts.DayEnd)

	var found []Gap
	emit := func(start, end time.Time) {
		found = append(found, newGap(day, start, end, opts.Boundaries))
	}

	if len(slots) == 0 {
		emit(windowStart, windowEnd)
		return found
	}

	if slots[0].Window.Start.After(windowStart) {
		emit(windowStart, slots[0].Window.Start)
	}
	for i := 0; i < len(slots)-1; i++ {
		if slots[i+1].Window.Start.After(slots[i].Window.End) {
			emit(slots[i].Window.End, slots[i+1].Window.Start)
		}
	}
	if last := slots[len(slots)-1].Window.End; last.Before(windowEnd) {
		emit(last, windowEnd)
	}

	return found
}

// FindRange concatenates per-day gaps for days consecutive days from start.
func FindRange(store *schedule.Store, start time.Time, days int, opts Options) []Gap {
	start = start.UTC().Truncate(24 * time.Hour)
	var found []Gap
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		found = append(found, FindDay(day, store.Day(day.Format("2006-01-02")), opts)...)
	}
	return found
}

func newGap(day, start, end time.Time, boundaries []time.Duration) Gap {
	gap := Gap{
		Date:    day.Format("2006-01-02"),
		Window:  interval.Interval{Start: start, End: end},
		Context: contextTag(day, start),
	}
	gap.Suggested = subdivide(day, gap.Window, boundaries)
	return gap
}

// subdivide partitions the gap at each preferred boundary that falls strictly
// inside it, in caller order. Boundaries earlier than the gap start roll over
// to the next day so windows crossing midnight keep working.
func subdivide(day time.Time, gap interval.Interval, boundaries []time.Duration) []interval.Interval {
	if len(boundaries) == 0 {
		return []interval.Interval{gap}
	}

	var out []interval.Interval
	cursor := gap.Start
	for _, offset := range boundaries {
		boundary := day.Add(offset)
		if boundary.Before(gap.Start) {
			boundary = boundary.Add(24 * time.Hour)
		}
		if boundary.After(cursor) && boundary.Before(gap.End) {
			out = append(out, interval.Interval{Start: cursor, End: boundary})
			cursor = boundary
		}
	}
	out = append(out, interval.Interval{Start: cursor, End: gap.End})
	return out
}

// contextTag classifies the gap for the policy's benefit only; it carries no
// scheduling semantics.
func contextTag(day, start time.Time) string {
	dayKind := "Weekday"
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		dayKind = "Weekend"
	}

	var timeOfDay string
	switch hour := start.Hour(); {
	case hour < 12:
		timeOfDay = "morning"
	case hour < 17:
		timeOfDay = "afternoon"
	case hour < 22:
		timeOfDay = "evening"
	default:
		timeOfDay = "late night"
	}

	return dayKind + " " + timeOfDay
}
