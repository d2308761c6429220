/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logbuffer

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestBufferWrapsAtCapacity(t *testing.T) {
	buf := New(3)
	for i := 0; i < 5; i++ {
		buf.Add(LogEntry{Message: string(rune('a' + i)), Level: "info"})
	}

	all := buf.GetAll()
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].Message != "c" || all[2].Message != "e" {
		t.Errorf("ring order wrong: %+v", all)
	}
}

func TestQueryFilters(t *testing.T) {
	buf := New(10)
	buf.Add(LogEntry{Level: "info", Component: "planner", Message: "scheduling run started", Fields: map[string]any{"run_id": "r1"}})
	buf.Add(LogEntry{Level: "error", Component: "api", Message: "db exploded"})
	buf.Add(LogEntry{Level: "info", Component: "planner", Message: "scheduling run finished", Fields: map[string]any{"run_id": "r2"}})

	if got := buf.Query(QueryParams{Level: "error"}); len(got) != 1 || got[0].Component != "api" {
		t.Errorf("level filter = %+v", got)
	}
	if got := buf.Query(QueryParams{RunID: "r1"}); len(got) != 1 || got[0].Message != "scheduling run started" {
		t.Errorf("run filter = %+v", got)
	}
	if got := buf.Query(QueryParams{Search: "RUN", Descending: true}); len(got) != 2 || got[0].Message != "scheduling run finished" {
		t.Errorf("search descending = %+v", got)
	}
	if got := buf.Query(QueryParams{Limit: 1}); len(got) != 1 {
		t.Errorf("limit = %+v", got)
	}
}

func TestWriterCapturesZerologOutput(t *testing.T) {
	buf := New(10)
	logger := zerolog.New(NewWriter(buf, nil)).With().Timestamp().Logger()

	logger.Info().Str("component", "planner").Str("run_id", "r1").Msg("scheduling run started")

	entries := buf.GetAll()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Level != "info" || entry.Component != "planner" || entry.Message != "scheduling run started" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Fields["run_id"] != "r1" {
		t.Errorf("run_id field missing: %+v", entry.Fields)
	}
	if time.Since(entry.Timestamp) > time.Minute {
		t.Errorf("timestamp not set: %v", entry.Timestamp)
	}
}

func TestComponentsAndStats(t *testing.T) {
	buf := New(10)
	buf.Add(LogEntry{Level: "info", Component: "planner"})
	buf.Add(LogEntry{Level: "warn", Component: "planner"})
	buf.Add(LogEntry{Level: "info", Component: "catalog"})

	components := buf.Components()
	if len(components) != 2 {
		t.Errorf("components = %v", components)
	}

	stats := buf.Stats()
	if stats.Count != 3 || stats.LevelCount["info"] != 2 || stats.LevelCount["warn"] != 1 {
		t.Errorf("stats = %+v", stats)
	}

	buf.Clear()
	if buf.Stats().Count != 0 {
		t.Error("Clear did not empty the buffer")
	}
}
