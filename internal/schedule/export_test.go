/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/friendsincode/tunabrain/internal/models"
)

func TestExportICal(t *testing.T) {
	day := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	slots := []models.ScheduleSlot{
		{ID: "s1", Date: "2026-02-01", StartsAt: day.Add(8 * time.Hour), EndsAt: day.Add(9 * time.Hour), MediaRef: "series:friends"},
		{ID: "s2", Date: "2026-02-02", StartsAt: day.Add(32 * time.Hour), EndsAt: day.Add(33 * time.Hour), MediaRef: "movie:heat", Locked: true},
	}

	export := ExportICal("Retro TV", slots)
	body := string(export.Data)

	if export.Filename != "retro-tv-schedule-2026-02-01-to-2026-02-02.ics" {
		t.Errorf("Filename = %q", export.Filename)
	}
	if strings.Count(body, "BEGIN:VEVENT") != 2 {
		t.Errorf("expected 2 events:\n%s", body)
	}
	for _, want := range []string{
		"X-WR-CALNAME:Retro TV Schedule",
		"UID:s1@tunabrain",
		"DTSTART:20260201T080000Z",
		"SUMMARY:movie:heat",
		"STATUS:CONFIRMED",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("export missing %q", want)
		}
	}
}

func TestExportICalEmptySchedule(t *testing.T) {
	export := ExportICal("Retro TV", nil)
	if export.Filename != "retro-tv-schedule.ics" {
		t.Errorf("Filename = %q", export.Filename)
	}
	if strings.Contains(string(export.Data), "BEGIN:VEVENT") {
		t.Error("empty schedule should have no events")
	}
}
