/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/friendsincode/tunabrain/internal/models"
)

// ExportICalResult contains the iCal export data.
type ExportICalResult struct {
	Data        []byte
	Filename    string
	ContentType string
}

// ExportICal renders persisted slots as an iCal calendar. Slots are expected
// in start order, the order the run store hands them out.
func ExportICal(channelName string, slots []models.ScheduleSlot) ExportICalResult {
	var buf bytes.Buffer
	buf.WriteString("BEGIN:VCALENDAR\r\n")
	buf.WriteString("VERSION:2.0\r\n")
	buf.WriteString("PRODID:-//Tunabrain//Schedule Export//EN\r\n")
	buf.WriteString(fmt.Sprintf("X-WR-CALNAME:%s Schedule\r\n", escapeICalText(channelName)))
	buf.WriteString("CALSCALE:GREGORIAN\r\n")
	buf.WriteString("METHOD:PUBLISH\r\n")

	now := time.Now()
	for _, slot := range slots {
		buf.WriteString("BEGIN:VEVENT\r\n")
		buf.WriteString(fmt.Sprintf("UID:%s@tunabrain\r\n", slot.ID))
		buf.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", formatICalTime(now)))
		buf.WriteString(fmt.Sprintf("DTSTART:%s\r\n", formatICalTime(slot.StartsAt)))
		buf.WriteString(fmt.Sprintf("DTEND:%s\r\n", formatICalTime(slot.EndsAt)))
		buf.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICalText(slot.MediaRef)))
		if len(slot.Notes) > 0 {
			buf.WriteString(fmt.Sprintf("DESCRIPTION:%s\r\n", escapeICalText(strings.Join(slot.Notes, "; "))))
		}
		if slot.Locked {
			buf.WriteString("STATUS:CONFIRMED\r\n")
		}
		buf.WriteString("END:VEVENT\r\n")
	}

	buf.WriteString("END:VCALENDAR\r\n")

	filename := slugify(channelName) + "-schedule"
	if len(slots) > 0 {
		filename = fmt.Sprintf("%s-%s-to-%s", filename, slots[0].Date, slots[len(slots)-1].Date)
	}

	return ExportICalResult{
		Data:        buf.Bytes(),
		Filename:    filename + ".ics",
		ContentType: "text/calendar; charset=utf-8",
	}
}

func formatICalTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func escapeICalText(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

func slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
