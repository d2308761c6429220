/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package interval provides half-open time interval arithmetic for the
// scheduling engine.
package interval

import (
	"fmt"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New builds an interval and validates its bounds.
func New(start, end time.Time) (Interval, error) {
	iv := Interval{Start: start, End: end}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// Validate returns an error unless Start is strictly before End.
func (i Interval) Validate() error {
	if !i.Start.Before(i.End) {
		return fmt.Errorf("interval start %s must be before end %s", i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
	}
	return nil
}

// Overlaps reports whether two intervals share any instant. Back-to-back
// intervals (a.End == b.Start) do not overlap, so slots can be packed
// contiguously.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && i.End.After(other.Start)
}

// Contains reports whether inner lies entirely within i.
func (i Interval) Contains(inner Interval) bool {
	return !inner.Start.Before(i.Start) && !inner.End.After(i.End)
}

// Duration returns the interval length.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// String renders the interval for logs and error messages.
func (i Interval) String() string {
	return fmt.Sprintf("%s-%s", i.Start.Format("15:04"), i.End.Format("15:04"))
}
