/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package policy provides decision policy implementations for the planner:
// a deterministic heuristic for offline use and a remote HTTP client for an
// external decision service.
package policy

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/tunabrain/internal/planner"
	"github.com/friendsincode/tunabrain/internal/schedule"
)

// Heuristic fills every suggested sub-slot of every reported gap, assigning
// media references round-robin. It proposes nothing once no fillable gap
// remains, which makes runs driven by it terminate with status complete.
type Heuristic struct {
	mu     sync.Mutex
	cursor int

	mediaRefs    []string
	strategy     schedule.SelectionStrategy
	fillsPerCall int
	logger       zerolog.Logger
}

// NewHeuristic builds a heuristic policy cycling through mediaRefs.
// fillsPerCall caps proposals per iteration; zero means no cap.
func NewHeuristic(mediaRefs []string, fillsPerCall int, logger zerolog.Logger) *Heuristic {
	return &Heuristic{
		mediaRefs:    mediaRefs,
		strategy:     schedule.StrategyRandom,
		fillsPerCall: fillsPerCall,
		logger:       logger.With().Str("component", "heuristic_policy").Logger(),
	}
}

// Propose implements planner.Policy.
func (h *Heuristic) Propose(_ context.Context, pctx planner.Context) ([]planner.Action, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var actions []planner.Action
	for _, gap := range pctx.Gaps {
		day, err := time.Parse("2006-01-02", gap.Date)
		if err != nil {
			continue
		}
		midnight := day.UTC().Add(24 * time.Hour)

		for _, sug := range gap.Suggested {
			if h.fillsPerCall > 0 && len(actions) >= h.fillsPerCall {
				return actions, nil
			}
			// Fill times are clock times within the gap's date, so the
			// portion past midnight is left to the next day's window.
			start := sug.Start
			end := sug.End
			if end.After(midnight) {
				end = midnight
			}
			if !end.After(start) {
				continue
			}

			endClock := end.Format("15:04")
			if end.Equal(midnight) {
				endClock = "24:00"
			}
			actions = append(actions, planner.Action{
				Type: planner.ActionFill,
				Fill: &planner.FillAction{
					Date:     gap.Date,
					Start:    start.Format("15:04"),
					End:      endClock,
					MediaRef: h.nextRef(),
					Strategy: h.strategy,
				},
			})
		}
	}

	if len(actions) == 0 {
		h.logger.Debug().Int("iteration", pctx.Iteration).Msg("no fillable gaps left")
		return nil, nil
	}
	return actions, nil
}

func (h *Heuristic) nextRef() string {
	if len(h.mediaRefs) == 0 {
		return "random:any"
	}
	ref := h.mediaRefs[h.cursor%len(h.mediaRefs)]
	h.cursor++
	return ref
}
