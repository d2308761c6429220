/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package gaps

import (
	"sort"
	"testing"
	"time"

	"github.com/friendsincode/tunabrain/internal/interval"
	"github.com/friendsincode/tunabrain/internal/schedule"
)

// 2026-02-01 is a Sunday.
var sunday = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
var monday = time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

func daySlot(day time.Time, startHour, endHour int, ref string) schedule.Slot {
	return schedule.Slot{
		Window: interval.Interval{
			Start: day.Add(time.Duration(startHour) * time.Hour),
			End:   day.Add(time.Duration(endHour) * time.Hour),
		},
		MediaRef: ref,
		Strategy: schedule.StrategyRandom,
	}
}

func TestFindDayEmptyBucket(t *testing.T) {
	found := FindDay(sunday, nil, DefaultOptions())

	if len(found) != 1 {
		t.Fatalf("FindDay() gaps = %d, want 1", len(found))
	}
	gap := found[0]
	if gap.DurationMinutes() != 1200 {
		t.Errorf("gap duration = %d minutes, want 1200", gap.DurationMinutes())
	}
	if !gap.Window.Start.Equal(sunday.Add(6 * time.Hour)) {
		t.Errorf("gap start = %v, want 06:00", gap.Window.Start)
	}
	if !gap.Window.End.Equal(sunday.Add(26 * time.Hour)) {
		t.Errorf("gap end = %v, want 02:00 next day", gap.Window.End)
	}
	if len(gap.Suggested) != 1 || gap.Suggested[0] != gap.Window {
		t.Errorf("Suggested = %v, want the whole gap", gap.Suggested)
	}
}

func TestFindDayBetweenSlots(t *testing.T) {
	slots := []schedule.Slot{
		daySlot(sunday, 10, 11, "a"),
		daySlot(sunday, 14, 15, "b"),
	}

	found := FindDay(sunday, slots, DefaultOptions())
	if len(found) != 3 {
		t.Fatalf("FindDay() gaps = %d, want 3", len(found))
	}

	wants := []struct {
		start time.Duration
		end   time.Duration
	}{
		{6 * time.Hour, 10 * time.Hour},
		{11 * time.Hour, 14 * time.Hour},
		{15 * time.Hour, 26 * time.Hour},
	}
	for i, want := range wants {
		if !found[i].Window.Start.Equal(sunday.Add(want.start)) || !found[i].Window.End.Equal(sunday.Add(want.end)) {
			t.Errorf("gap[%d] = %v, want [%v, %v)", i, found[i].Window, want.start, want.end)
		}
	}
}

func TestFindDayFullDayHasNoGaps(t *testing.T) {
	slots := []schedule.Slot{
		daySlot(sunday, 6, 14, "a"),
		daySlot(sunday, 14, 26, "b"),
	}
	if found := FindDay(sunday, slots, DefaultOptions()); len(found) != 0 {
		t.Errorf("FindDay() gaps = %d, want 0 for a packed day", len(found))
	}
}

func TestPartitionInvariant(t *testing.T) {
	// Gaps plus slots must exactly reconstruct the day window.
	slots := []schedule.Slot{
		daySlot(sunday, 8, 10, "a"),
		daySlot(sunday, 10, 11, "b"),
		daySlot(sunday, 17, 19, "c"),
	}

	opts := DefaultOptions()
	found := FindDay(sunday, slots, opts)

	var pieces []interval.Interval
	for _, s := range slots {
		pieces = append(pieces, s.Window)
	}
	for _, g := range found {
		pieces = append(pieces, g.Window)
	}
	sort.Slice(pieces, func(i, j int) bool { return pieces[i].Start.Before(pieces[j].Start) })

	cursor := sunday.Add(opts.DayStart)
	for i, p := range pieces {
		if !p.Start.Equal(cursor) {
			t.Fatalf("piece %d starts at %v, want %v (hole or overlap)", i, p.Start, cursor)
		}
		cursor = p.End
	}
	if !cursor.Equal(sunday.Add(opts.DayEnd)) {
		t.Fatalf("partition ends at %v, want window end %v", cursor, sunday.Add(opts.DayEnd))
	}
}

func TestSuggestedBoundaries(t *testing.T) {
	boundaries, err := ParseBoundaries([]string{"08:00", "12:00", "18:00"})
	if err != nil {
		t.Fatal(err)
	}
	opts := DefaultOptions()
	opts.Boundaries = boundaries

	// One slot at 17:00-19:00 leaves gaps 06:00-17:00 and 19:00-02:00.
	slots := []schedule.Slot{daySlot(sunday, 17, 19, "a")}
	found := FindDay(sunday, slots, opts)
	if len(found) != 2 {
		t.Fatalf("FindDay() gaps = %d, want 2", len(found))
	}

	// First gap subdivides at 08:00 and 12:00; 18:00 is outside it.
	first := found[0].Suggested
	wantFirst := []interval.Interval{
		{Start: sunday.Add(6 * time.Hour), End: sunday.Add(8 * time.Hour)},
		{Start: sunday.Add(8 * time.Hour), End: sunday.Add(12 * time.Hour)},
		{Start: sunday.Add(12 * time.Hour), End: sunday.Add(17 * time.Hour)},
	}
	if len(first) != len(wantFirst) {
		t.Fatalf("first gap suggested = %v, want %v", first, wantFirst)
	}
	for i := range wantFirst {
		if first[i] != wantFirst[i] {
			t.Errorf("first gap suggested[%d] = %v, want %v", i, first[i], wantFirst[i])
		}
	}

	// Second gap 19:00-02:00(+1d): all boundaries roll to the next day and
	// land outside, so the gap stays whole.
	second := found[1].Suggested
	if len(second) != 1 || second[0] != found[1].Window {
		t.Errorf("second gap suggested = %v, want the whole gap", second)
	}
}

func TestSuggestedBoundaryAcrossMidnight(t *testing.T) {
	boundaries, err := ParseBoundaries([]string{"01:00"})
	if err != nil {
		t.Fatal(err)
	}
	opts := DefaultOptions()
	opts.Boundaries = boundaries

	// Gap 23:00-02:00(+1d); the 01:00 boundary rolls forward 24h and splits it.
	slots := []schedule.Slot{daySlot(sunday, 6, 23, "a")}
	found := FindDay(sunday, slots, opts)
	if len(found) != 1 {
		t.Fatalf("FindDay() gaps = %d, want 1", len(found))
	}

	want := []interval.Interval{
		{Start: sunday.Add(23 * time.Hour), End: sunday.Add(25 * time.Hour)},
		{Start: sunday.Add(25 * time.Hour), End: sunday.Add(26 * time.Hour)},
	}
	got := found[0].Suggested
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Suggested = %v, want %v", got, want)
	}
}

func TestContextTags(t *testing.T) {
	tests := []struct {
		name      string
		day       time.Time
		startHour int
		want      string
	}{
		{"weekend morning", sunday, 6, "Weekend morning"},
		{"weekday morning", monday, 6, "Weekday morning"},
		{"weekday afternoon", monday, 12, "Weekday afternoon"},
		{"weekday evening", monday, 17, "Weekday evening"},
		{"weekday late night", monday, 22, "Weekday late night"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots := []schedule.Slot{daySlot(tt.day, tt.startHour+1, tt.startHour+2, "a")}
			opts := Options{DayStart: time.Duration(tt.startHour) * time.Hour, DayEnd: time.Duration(tt.startHour+3) * time.Hour}
			found := FindDay(tt.day, slots, opts)
			if len(found) == 0 {
				t.Fatal("no gaps found")
			}
			if found[0].Context != tt.want {
				t.Errorf("Context = %q, want %q", found[0].Context, tt.want)
			}
		})
	}
}

func TestFindRange(t *testing.T) {
	store := schedule.NewStore()
	if err := store.Insert("2026-02-01", daySlot(sunday, 6, 26, "all-day")); err != nil {
		t.Fatal(err)
	}

	found := FindRange(store, sunday, 2, DefaultOptions())
	if len(found) != 1 {
		t.Fatalf("FindRange() gaps = %d, want 1 (day 1 packed, day 2 empty)", len(found))
	}
	if found[0].Date != "2026-02-02" {
		t.Errorf("gap date = %q, want 2026-02-02", found[0].Date)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"08:00", 8 * time.Hour, false},
		{"23:59", 23*time.Hour + 59*time.Minute, false},
		{"0:30", 30 * time.Minute, false},
		{"24:00", 24 * time.Hour, false},
		{"24:30", 0, true},
		{"08:60", 0, true},
		{"nope", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClock(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseClock(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOptionsValidate(t *testing.T) {
	if err := DefaultOptions().Validate(); err != nil {
		t.Errorf("DefaultOptions().Validate() = %v", err)
	}
	if err := (Options{DayStart: 10 * time.Hour, DayEnd: 8 * time.Hour}).Validate(); err == nil {
		t.Error("Validate() inverted window should fail")
	}
	if err := (Options{DayStart: 0, DayEnd: 25 * time.Hour}).Validate(); err == nil {
		t.Error("Validate() window over 24h should fail")
	}
}
