/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/tunabrain/internal/events"
	"github.com/friendsincode/tunabrain/internal/interval"
	"github.com/friendsincode/tunabrain/internal/schedule"
)

func intervalAt(day time.Time, startHour, endHour int) interval.Interval {
	return interval.Interval{
		Start: day.Add(time.Duration(startHour) * time.Hour),
		End:   day.Add(time.Duration(endHour) * time.Hour),
	}
}

var testStart = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

func baseRequest() Request {
	return Request{
		Channel:       "Retro TV",
		StartDate:     testStart,
		WindowDays:    1,
		MaxIterations: 10,
	}
}

// fillFirstHour fills the first hour of the first gap every iteration and
// stops once no gaps remain.
func fillFirstHour() Policy {
	return PolicyFunc(func(_ context.Context, pctx Context) ([]Action, error) {
		if len(pctx.Gaps) == 0 {
			return nil, nil
		}
		g := pctx.Gaps[0]
		end := g.Window.Start.Add(time.Hour)
		if end.After(g.Window.End) {
			end = g.Window.End
		}
		return []Action{{
			Type: ActionFill,
			Fill: &FillAction{
				Date:     g.Date,
				Start:    g.Window.Start.Format("15:04"),
				End:      end.Format("15:04"),
				MediaRef: "series:friends",
			},
		}}, nil
	})
}

func TestRunBudgetExhaustedIsPartial(t *testing.T) {
	// 20-hour day, one fill per iteration, budget 10: gaps remain at the cap.
	runner := New(fillFirstHour(), zerolog.Nop())

	result, err := runner.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Status != StatusPartial {
		t.Errorf("Status = %s, want partial", result.Status)
	}
	if result.Iterations != 10 {
		t.Errorf("Iterations = %d, want 10", result.Iterations)
	}
	if len(result.Slots) != 10 {
		t.Errorf("Slots = %d, want 10", len(result.Slots))
	}
}

func TestRunCompletesWhenGapsExhausted(t *testing.T) {
	req := baseRequest()
	// Short 3-hour day so the filler finishes well inside the budget.
	req.DayStart = 6 * time.Hour
	req.DayEnd = 9 * time.Hour

	runner := New(fillFirstHour(), zerolog.Nop())
	result, err := runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Status != StatusComplete {
		t.Errorf("Status = %s, want complete", result.Status)
	}
	if len(result.Slots) != 3 {
		t.Errorf("Slots = %d, want 3", len(result.Slots))
	}
	// Three fill iterations plus the final empty proposal.
	if result.Iterations != 4 {
		t.Errorf("Iterations = %d, want 4", result.Iterations)
	}
}

func TestRunIdlePolicyCompletesImmediately(t *testing.T) {
	idle := PolicyFunc(func(context.Context, Context) ([]Action, error) {
		return nil, nil
	})
	runner := New(idle, zerolog.Nop())

	result, err := runner.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Status != StatusComplete {
		t.Errorf("Status = %s, want complete", result.Status)
	}
	if result.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", result.Iterations)
	}
	if len(result.Slots) != 0 {
		t.Errorf("Slots = %d, want 0", len(result.Slots))
	}
}

func TestRunAdversarialPolicyCannotTouchLockedSlot(t *testing.T) {
	req := baseRequest()
	req.Prescheduled = []PlannedSlot{{
		Date:     "2026-02-01",
		Start:    testStart.Add(10 * time.Hour),
		End:      testStart.Add(11 * time.Hour),
		MediaRef: "series:news",
		Strategy: schedule.StrategySpecific,
	}}
	req.MaxIterations = 5

	var sawImmutableFeedback bool
	adversary := PolicyFunc(func(_ context.Context, pctx Context) ([]Action, error) {
		for _, rej := range pctx.Rejections {
			if rej.Reason == RejectImmutable {
				sawImmutableFeedback = true
			}
		}
		// Try to overwrite the locked 10:00-11:00 slot every iteration.
		return []Action{{
			Type: ActionFill,
			Fill: &FillAction{
				Date:     "2026-02-01",
				Start:    "10:30",
				End:      "11:30",
				MediaRef: "movie:takeover",
			},
		}}, nil
	})

	runner := New(adversary, zerolog.Nop())
	result, err := runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	// Rejections are soft: the run terminates via the budget, not a failure.
	if result.Status != StatusPartial {
		t.Errorf("Status = %s, want partial", result.Status)
	}
	if result.Rejections != 5 {
		t.Errorf("Rejections = %d, want 5", result.Rejections)
	}
	if !sawImmutableFeedback {
		t.Error("policy never saw immutable rejection feedback")
	}

	if len(result.Slots) != 1 {
		t.Fatalf("Slots = %d, want only the locked slot", len(result.Slots))
	}
	got := result.Slots[0]
	if !got.Locked || got.MediaRef != "series:news" {
		t.Errorf("locked slot altered: %+v", got)
	}
	if !got.Start.Equal(testStart.Add(10*time.Hour)) || !got.End.Equal(testStart.Add(11*time.Hour)) {
		t.Errorf("locked slot interval altered: %v-%v", got.Start, got.End)
	}
}

func TestRunOverlapRejectionFeedback(t *testing.T) {
	var iteration int
	policy := PolicyFunc(func(_ context.Context, pctx Context) ([]Action, error) {
		iteration++
		switch iteration {
		case 1:
			return []Action{{Type: ActionFill, Fill: &FillAction{Date: "2026-02-01", Start: "08:00", End: "10:00", MediaRef: "a"}}}, nil
		case 2:
			// Conflicts with the slot committed in iteration 1.
			return []Action{{Type: ActionFill, Fill: &FillAction{Date: "2026-02-01", Start: "09:00", End: "11:00", MediaRef: "b"}}}, nil
		case 3:
			if len(pctx.Rejections) != 1 {
				t.Errorf("iteration 3 rejections = %d, want 1", len(pctx.Rejections))
			} else {
				rej := pctx.Rejections[0]
				if rej.Reason != RejectOverlap {
					t.Errorf("rejection reason = %s, want overlap", rej.Reason)
				}
				if !rej.Conflict.Start.Equal(testStart.Add(8 * time.Hour)) {
					t.Errorf("rejection conflict start = %v, want 08:00", rej.Conflict.Start)
				}
			}
			return nil, nil
		}
		return nil, nil
	})

	runner := New(policy, zerolog.Nop())
	result, err := runner.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Status != StatusComplete {
		t.Errorf("Status = %s, want complete", result.Status)
	}
	if len(result.Slots) != 1 || result.Slots[0].MediaRef != "a" {
		t.Errorf("Slots = %+v, want single slot a", result.Slots)
	}
}

func TestRunMalformedActionFailsRun(t *testing.T) {
	tests := []struct {
		name string
		fill *FillAction
	}{
		{"end before start", &FillAction{Date: "2026-02-01", Start: "10:00", End: "09:00", MediaRef: "a"}},
		{"bad date", &FillAction{Date: "someday", Start: "08:00", End: "09:00", MediaRef: "a"}},
		{"bad time", &FillAction{Date: "2026-02-01", Start: "25:00", End: "09:00", MediaRef: "a"}},
		{"missing media ref", &FillAction{Date: "2026-02-01", Start: "08:00", End: "09:00"}},
		{"unknown strategy", &FillAction{Date: "2026-02-01", Start: "08:00", End: "09:00", MediaRef: "a", Strategy: "mystery"}},
		{"nil payload", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			policy := PolicyFunc(func(context.Context, Context) ([]Action, error) {
				calls++
				if calls == 1 {
					return []Action{{Type: ActionFill, Fill: &FillAction{Date: "2026-02-01", Start: "06:00", End: "07:00", MediaRef: "good"}}}, nil
				}
				return []Action{{Type: ActionFill, Fill: tt.fill}}, nil
			})

			runner := New(policy, zerolog.Nop())
			result, err := runner.Run(context.Background(), baseRequest())
			if err != nil {
				t.Fatalf("Run() error: %v", err)
			}
			if result.Status != StatusFailed {
				t.Errorf("Status = %s, want failed", result.Status)
			}
			if result.FailureReason == "" {
				t.Error("FailureReason empty on failed run")
			}
			// No further policy calls after the malformed action.
			if calls != 2 {
				t.Errorf("policy calls = %d, want 2", calls)
			}
			// Slots committed before the fault are still returned.
			if len(result.Slots) != 1 || result.Slots[0].MediaRef != "good" {
				t.Errorf("Slots = %+v, want the slot committed before the fault", result.Slots)
			}
		})
	}
}

func TestRunUnknownActionTypeFailsRun(t *testing.T) {
	policy := PolicyFunc(func(context.Context, Context) ([]Action, error) {
		return []Action{{Type: "teleport"}}, nil
	})
	runner := New(policy, zerolog.Nop())
	result, err := runner.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Status != StatusFailed {
		t.Errorf("Status = %s, want failed", result.Status)
	}
}

func TestRunPolicyErrorFailsRun(t *testing.T) {
	policy := PolicyFunc(func(context.Context, Context) ([]Action, error) {
		return nil, errors.New("gateway timeout")
	})
	runner := New(policy, zerolog.Nop())

	result, err := runner.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Status != StatusFailed {
		t.Errorf("Status = %s, want failed", result.Status)
	}
	if result.FailureReason == "" {
		t.Error("FailureReason empty after policy error")
	}
}

func TestRunAnalyzeActionsAreCountedNotApplied(t *testing.T) {
	var calls int
	policy := PolicyFunc(func(context.Context, Context) ([]Action, error) {
		calls++
		if calls == 1 {
			return []Action{{Type: ActionAnalyze}}, nil
		}
		return nil, nil
	})

	runner := New(policy, zerolog.Nop())
	result, err := runner.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Status != StatusComplete {
		t.Errorf("Status = %s, want complete", result.Status)
	}
	if result.Analyses != 1 {
		t.Errorf("Analyses = %d, want 1", result.Analyses)
	}
	if len(result.Slots) != 0 {
		t.Errorf("Slots = %d, want 0", len(result.Slots))
	}
}

func TestRunTerminatesWithinBudgetPlusOne(t *testing.T) {
	var calls int
	// Never stops on its own and always proposes something valid or not.
	policy := PolicyFunc(func(_ context.Context, pctx Context) ([]Action, error) {
		calls++
		return []Action{{Type: ActionAnalyze}}, nil
	})

	req := baseRequest()
	req.MaxIterations = 7
	runner := New(policy, zerolog.Nop())
	result, err := runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Status != StatusPartial {
		t.Errorf("Status = %s, want partial", result.Status)
	}
	if calls > req.MaxIterations+1 {
		t.Errorf("policy calls = %d, want at most budget+1", calls)
	}
}

func TestRunInputValidation(t *testing.T) {
	runner := New(fillFirstHour(), zerolog.Nop())

	t.Run("zero window", func(t *testing.T) {
		req := baseRequest()
		req.WindowDays = 0
		if _, err := runner.Run(context.Background(), req); err == nil {
			t.Error("Run() should reject zero-day window")
		}
	})

	t.Run("end date override", func(t *testing.T) {
		req := baseRequest()
		end := testStart.AddDate(0, 0, 2)
		req.EndDate = &end
		req.WindowDays = 30 // override wins
		result, err := runner.Run(context.Background(), req)
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		if result.Status != StatusPartial && result.Status != StatusComplete {
			t.Errorf("Status = %s", result.Status)
		}
	})

	t.Run("overlapping prescheduled slots", func(t *testing.T) {
		req := baseRequest()
		req.Prescheduled = []PlannedSlot{
			{Date: "2026-02-01", Start: testStart.Add(10 * time.Hour), End: testStart.Add(12 * time.Hour), MediaRef: "a"},
			{Date: "2026-02-01", Start: testStart.Add(11 * time.Hour), End: testStart.Add(13 * time.Hour), MediaRef: "b"},
		}
		if _, err := runner.Run(context.Background(), req); err == nil {
			t.Error("Run() should reject overlapping pre-scheduled slots")
		}
	})

	t.Run("invalid day window", func(t *testing.T) {
		req := baseRequest()
		req.DayStart = 10 * time.Hour
		req.DayEnd = 8 * time.Hour
		if _, err := runner.Run(context.Background(), req); err == nil {
			t.Error("Run() should reject inverted day window")
		}
	})

	t.Run("invalid preferred slot", func(t *testing.T) {
		req := baseRequest()
		req.PreferredSlots = []string{"8am"}
		if _, err := runner.Run(context.Background(), req); err == nil {
			t.Error("Run() should reject unparseable preferred slots")
		}
	})
}

func TestRunPublishesLifecycleEvents(t *testing.T) {
	bus := events.NewBus()
	started := bus.Subscribe(events.EventRunStarted)
	completed := bus.Subscribe(events.EventRunCompleted)

	runner := New(fillFirstHour(), zerolog.Nop())
	runner.SetBus(bus)

	req := baseRequest()
	req.DayStart = 6 * time.Hour
	req.DayEnd = 8 * time.Hour
	if _, err := runner.Run(context.Background(), req); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	select {
	case payload := <-started:
		if payload["channel"] != "Retro TV" {
			t.Errorf("run.started channel = %v", payload["channel"])
		}
	default:
		t.Error("no run.started event published")
	}

	select {
	case payload := <-completed:
		if payload["status"] != string(StatusComplete) {
			t.Errorf("run.completed status = %v", payload["status"])
		}
	default:
		t.Error("no run.completed event published")
	}
}

func TestFlattenIdempotent(t *testing.T) {
	store := schedule.NewStore()
	mustInsert := func(date string, startHour, endHour int, ref string) {
		t.Helper()
		day, _ := time.Parse("2006-01-02", date)
		err := store.Insert(date, schedule.Slot{
			Window:   intervalAt(day, startHour, endHour),
			MediaRef: ref,
			Strategy: schedule.StrategyRandom,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	mustInsert("2026-02-02", 8, 9, "c")
	mustInsert("2026-02-01", 10, 11, "b")
	mustInsert("2026-02-01", 6, 7, "a")

	first := Flatten(store)
	second := Flatten(store)

	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("Flatten() lengths = %d, %d; want 3", len(first), len(second))
	}
	for i := range first {
		if first[i].MediaRef != second[i].MediaRef || !first[i].Start.Equal(second[i].Start) {
			t.Errorf("Flatten() not idempotent at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
	want := []string{"a", "b", "c"}
	for i, ref := range want {
		if first[i].MediaRef != ref {
			t.Errorf("Flatten()[%d] = %q, want %q", i, first[i].MediaRef, ref)
		}
	}
}
