/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/tunabrain/internal/events"
	"github.com/friendsincode/tunabrain/internal/gaps"
	"github.com/friendsincode/tunabrain/internal/interval"
	"github.com/friendsincode/tunabrain/internal/schedule"
	"github.com/friendsincode/tunabrain/internal/telemetry"
)

// Iteration budget bounds. Requests outside the range are clamped.
const (
	DefaultBudget = 30
	MaxBudget     = 200
)

// Runner executes scheduling runs against a decision policy. Each run owns
// an isolated store, so independent runs may execute concurrently on
// separate Runner calls.
type Runner struct {
	policy Policy
	bus    events.Publisher
	logger zerolog.Logger
}

// New constructs a planner runner.
func New(policy Policy, logger zerolog.Logger) *Runner {
	return &Runner{
		policy: policy,
		logger: logger.With().Str("component", "planner").Logger(),
	}
}

// SetBus sets the event bus for run lifecycle events.
func (r *Runner) SetBus(bus events.Publisher) {
	r.bus = bus
}

// Run drives the bounded request/act cycle until the policy signals
// completion, the budget runs out, or the run fails. The returned error is
// non-nil only for invalid input detected before the loop starts; every
// started run yields a Result with an explicit terminal status and whatever
// slots were committed.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "planner", "Run")
	defer span.End()

	start := req.StartDate.UTC().Truncate(24 * time.Hour)
	days := req.WindowDays
	if req.EndDate != nil {
		days = int(req.EndDate.UTC().Truncate(24*time.Hour).Sub(start) / (24 * time.Hour))
	}
	if days <= 0 {
		return nil, fmt.Errorf("scheduling window must cover at least one day, got %d", days)
	}

	opts := gaps.DefaultOptions()
	if req.DayStart != 0 || req.DayEnd != 0 {
		opts.DayStart = req.DayStart
		opts.DayEnd = req.DayEnd
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	boundaries, err := gaps.ParseBoundaries(req.PreferredSlots)
	if err != nil {
		return nil, fmt.Errorf("preferred slots: %w", err)
	}
	opts.Boundaries = boundaries

	budget := req.MaxIterations
	if budget <= 0 {
		budget = DefaultBudget
	}
	if budget > MaxBudget {
		budget = MaxBudget
	}

	store := schedule.NewStore()
	for _, pre := range req.Prescheduled {
		slot, err := prescheduledSlot(pre)
		if err != nil {
			return nil, fmt.Errorf("pre-scheduled slot %s: %w", pre.Date, err)
		}
		if err := store.Insert(pre.Date, slot); err != nil {
			return nil, fmt.Errorf("pre-scheduled slot %s: %w", pre.Date, err)
		}
		store.MarkLocked(pre.Date, slot.Window.Start)
	}

	runID := uuid.NewString()
	logger := r.logger.With().Str("run_id", runID).Str("channel", req.Channel).Logger()
	telemetry.AddSpanAttributes(span, map[string]any{
		"run_id":  runID,
		"channel": req.Channel,
		"days":    days,
		"budget":  budget,
	})

	r.publish(events.EventRunStarted, events.Payload{
		"run_id":  runID,
		"channel": req.Channel,
		"days":    days,
	})
	logger.Info().Int("days", days).Int("budget", budget).Int("prescheduled", store.Len()).Msg("scheduling run started")

	status := StatusRunning
	iterations := 0
	failure := ""
	totalRejections := 0
	analyses := 0
	var pending []Rejection

	for status == StatusRunning {
		iterations++
		if iterations > budget {
			iterations = budget
			status = StatusPartial
			logger.Warn().Int("budget", budget).Msg("iteration budget exhausted")
			break
		}

		pctx := Context{
			Channel:      req.Channel,
			Instructions: req.Instructions,
			Iteration:    iterations,
			Budget:       budget,
			FilledSlots:  store.Len(),
			MediaCount:   req.MediaCount,
			Gaps:         gaps.FindRange(store, start, days, opts),
			Rejections:   pending,
			Schedule:     store.Snapshot(),
		}

		policyStart := time.Now()
		actions, err := r.policy.Propose(ctx, pctx)
		telemetry.PolicyRequestDuration.Observe(time.Since(policyStart).Seconds())
		if err != nil {
			status = StatusFailed
			failure = fmt.Sprintf("policy unavailable: %v", err)
			telemetry.RecordError(span, err)
			logger.Error().Err(err).Int("iteration", iterations).Msg("policy invocation failed")
			break
		}

		if len(actions) == 0 {
			status = StatusComplete
			logger.Info().Int("iteration", iterations).Msg("policy signalled completion")
			break
		}

		pending = nil
		for _, action := range actions {
			switch action.Type {
			case ActionAnalyze:
				// Gap analysis is already part of the next snapshot; just count it.
				analyses++

			case ActionFill:
				if action.Fill == nil {
					status = StatusFailed
					failure = "fill action without payload"
					break
				}
				rejection, err := r.applyFill(store, *action.Fill, logger)
				if err != nil {
					status = StatusFailed
					failure = err.Error()
					break
				}
				if rejection != nil {
					pending = append(pending, *rejection)
					totalRejections++
				}

			default:
				status = StatusFailed
				failure = fmt.Sprintf("unknown action type %q", action.Type)
			}

			if status == StatusFailed {
				logger.Error().Str("reason", failure).Msg("malformed policy action, aborting run")
				break
			}
		}
	}

	result := r.assemble(store, req, runID, status, iterations, totalRejections, analyses, failure, days)

	telemetry.PlannerRunsTotal.WithLabelValues(string(status)).Inc()
	telemetry.PlannerIterations.Observe(float64(iterations))
	r.publish(events.EventRunCompleted, events.Payload{
		"run_id":     runID,
		"channel":    req.Channel,
		"status":     string(status),
		"iterations": iterations,
		"slots":      len(result.Slots),
	})
	logger.Info().
		Str("status", string(status)).
		Int("iterations", iterations).
		Int("slots", len(result.Slots)).
		Int("rejections", totalRejections).
		Msg("scheduling run finished")

	return result, nil
}

// applyFill validates and applies one fill action. A structural problem
// (unparseable date or times, end not after start, unknown strategy) fails
// the run; an overlap or locked-interval conflict is a soft rejection fed
// back to the policy.
func (r *Runner) applyFill(store *schedule.Store, fill FillAction, logger zerolog.Logger) (*Rejection, error) {
	day, err := time.Parse("2006-01-02", fill.Date)
	if err != nil {
		return nil, fmt.Errorf("malformed fill date %q", fill.Date)
	}
	startOffset, err := gaps.ParseClock(fill.Start)
	if err != nil {
		return nil, fmt.Errorf("malformed fill start: %v", err)
	}
	endOffset, err := gaps.ParseClock(fill.End)
	if err != nil {
		return nil, fmt.Errorf("malformed fill end: %v", err)
	}
	if endOffset <= startOffset {
		return nil, fmt.Errorf("fill end %s must be after start %s", fill.End, fill.Start)
	}
	if fill.MediaRef == "" {
		return nil, errors.New("fill action without media reference")
	}

	strategy := fill.Strategy
	if strategy == "" {
		strategy = schedule.StrategyRandom
	}
	if !strategy.Valid() {
		return nil, fmt.Errorf("unknown selection strategy %q", fill.Strategy)
	}

	day = day.UTC()
	slot := schedule.Slot{
		ID:              uuid.NewString(),
		Window:          interval.Interval{Start: day.Add(startOffset), End: day.Add(endOffset)},
		MediaRef:        fill.MediaRef,
		Strategy:        strategy,
		CategoryFilters: fill.CategoryFilters,
		Notes:           fill.Notes,
	}

	if err := store.Insert(fill.Date, slot); err != nil {
		var overlap *schedule.OverlapError
		if errors.As(err, &overlap) {
			reason := RejectOverlap
			if overlap.Locked {
				reason = RejectImmutable
			}
			telemetry.PlannerRejectionsTotal.WithLabelValues(string(reason)).Inc()
			r.publish(events.EventFillRejected, events.Payload{
				"date":     fill.Date,
				"start":    fill.Start,
				"end":      fill.End,
				"reason":   string(reason),
				"conflict": overlap.Conflict.String(),
			})
			logger.Debug().
				Str("date", fill.Date).
				Str("slot", fill.Start+"-"+fill.End).
				Str("reason", string(reason)).
				Msg("fill action rejected")
			return &Rejection{Action: fill, Reason: reason, Conflict: overlap.Conflict}, nil
		}
		return nil, fmt.Errorf("malformed fill window: %v", err)
	}

	telemetry.PlannerSlotsCommitted.Inc()
	r.publish(events.EventSlotCommitted, events.Payload{
		"date":      fill.Date,
		"start":     fill.Start,
		"end":       fill.End,
		"media_ref": fill.MediaRef,
	})
	return nil, nil
}

func (r *Runner) publish(eventType events.EventType, payload events.Payload) {
	if r.bus != nil {
		r.bus.Publish(eventType, payload)
	}
}

func prescheduledSlot(pre PlannedSlot) (schedule.Slot, error) {
	slot := schedule.Slot{
		ID:              uuid.NewString(),
		Window:          interval.Interval{Start: pre.Start.UTC(), End: pre.End.UTC()},
		MediaRef:        pre.MediaRef,
		Strategy:        pre.Strategy,
		CategoryFilters: pre.CategoryFilters,
		Notes:           pre.Notes,
		Locked:          true,
	}
	if slot.Strategy == "" {
		slot.Strategy = schedule.StrategySpecific
	}
	if !slot.Strategy.Valid() {
		return schedule.Slot{}, fmt.Errorf("unknown selection strategy %q", pre.Strategy)
	}
	return slot, slot.Window.Validate()
}
