/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planner

import (
	"fmt"
	"sort"

	"github.com/friendsincode/tunabrain/internal/schedule"
)

// Flatten collapses the store into a single slot list ordered by start time
// across all days. The sort is stable, so repeated calls on an unchanged
// store yield identical output.
func Flatten(store *schedule.Store) []PlannedSlot {
	var out []PlannedSlot
	for _, date := range store.Dates() {
		for _, slot := range store.Day(date) {
			out = append(out, PlannedSlot{
				Date:            date,
				Start:           slot.Window.Start,
				End:             slot.Window.End,
				MediaRef:        slot.MediaRef,
				Strategy:        slot.Strategy,
				CategoryFilters: slot.CategoryFilters,
				Notes:           slot.Notes,
				Locked:          slot.Locked,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

func (r *Runner) assemble(store *schedule.Store, req Request, runID string, status Status, iterations, rejections, analyses int, failure string, days int) *Result {
	slots := Flatten(store)
	return &Result{
		RunID:            runID,
		Status:           status,
		Iterations:       iterations,
		Slots:            slots,
		Rejections:       rejections,
		Analyses:         analyses,
		Overview:         fmt.Sprintf("Scheduled %d time slots across %d days for %s.", len(slots), days, req.Channel),
		FailureReason:    failure,
		QualityThreshold: req.QualityThreshold,
	}
}
