/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package policy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/tunabrain/internal/planner"
)

func TestRemotePropose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sekrit" {
			t.Errorf("Authorization = %q", got)
		}
		var pctx planner.Context
		if err := json.NewDecoder(r.Body).Decode(&pctx); err != nil {
			t.Errorf("decode context: %v", err)
		}
		if pctx.Channel != "Retro TV" {
			t.Errorf("channel = %q", pctx.Channel)
		}
		json.NewEncoder(w).Encode(proposeResponse{
			Actions: []planner.Action{{
				Type: planner.ActionFill,
				Fill: &planner.FillAction{Date: "2026-02-01", Start: "08:00", End: "09:00", MediaRef: "a"},
			}},
		})
	}))
	defer srv.Close()

	remote := NewRemote(RemoteConfig{Endpoint: srv.URL, Token: "sekrit"}, zerolog.Nop())
	actions, err := remote.Propose(context.Background(), planner.Context{Channel: "Retro TV"})
	if err != nil {
		t.Fatalf("Propose() error: %v", err)
	}
	if len(actions) != 1 || actions[0].Type != planner.ActionFill {
		t.Fatalf("actions = %+v, want one fill", actions)
	}
	if actions[0].Fill.MediaRef != "a" {
		t.Errorf("MediaRef = %q, want a", actions[0].Fill.MediaRef)
	}
}

func TestRemoteProposeDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(proposeResponse{
			Done: true,
			Actions: []planner.Action{
				{Type: planner.ActionAnalyze},
			},
		})
	}))
	defer srv.Close()

	remote := NewRemote(RemoteConfig{Endpoint: srv.URL}, zerolog.Nop())
	actions, err := remote.Propose(context.Background(), planner.Context{})
	if err != nil {
		t.Fatalf("Propose() error: %v", err)
	}
	// Done wins over any actions carried alongside it.
	if len(actions) != 0 {
		t.Errorf("actions = %d, want 0 when done", len(actions))
	}
}

func TestRemoteProposeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusBadGateway)
	}))
	defer srv.Close()

	remote := NewRemote(RemoteConfig{Endpoint: srv.URL}, zerolog.Nop())
	if _, err := remote.Propose(context.Background(), planner.Context{}); err == nil {
		t.Error("Propose() should surface non-200 responses as errors")
	}
}
