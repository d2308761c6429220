/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/tunabrain/internal/gaps"
	"github.com/friendsincode/tunabrain/internal/logging"
	"github.com/friendsincode/tunabrain/internal/planner"
	"github.com/friendsincode/tunabrain/internal/policy"
	"github.com/friendsincode/tunabrain/internal/schedule"
)

var planCmd = &cobra.Command{
	Use:   "plan <file>",
	Short: "Run a scheduling plan offline",
	Long:  "Execute a scheduling run described by a YAML plan file without a server or database, printing the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlan,
}

var (
	planRemoteEndpoint string
	planRemoteToken    string
	planRemoteTimeout  time.Duration
)

func init() {
	planCmd.Flags().StringVar(&planRemoteEndpoint, "remote", "", "use a remote decision policy at this endpoint instead of the built-in heuristic")
	planCmd.Flags().StringVar(&planRemoteToken, "token", "", "bearer token for the remote policy endpoint")
	planCmd.Flags().DurationVar(&planRemoteTimeout, "timeout", 60*time.Second, "per-request timeout for the remote policy")
}

// planFile is the YAML shape of an offline plan.
type planFile struct {
	Channel        string   `yaml:"channel"`
	Instructions   string   `yaml:"instructions"`
	StartDate      string   `yaml:"start_date"`
	EndDate        string   `yaml:"end_date"`
	WindowDays     int      `yaml:"window_days"`
	DayStart       string   `yaml:"day_start"`
	DayEnd         string   `yaml:"day_end"`
	PreferredSlots []string `yaml:"preferred_slots"`
	MaxIterations  int      `yaml:"max_iterations"`
	MediaRefs      []string `yaml:"media_refs"`
	Prescheduled   []struct {
		Date     string `yaml:"date"`
		Start    string `yaml:"start"`
		End      string `yaml:"end"`
		MediaRef string `yaml:"media_ref"`
		Strategy string `yaml:"strategy"`
	} `yaml:"prescheduled"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	logger = logging.Setup(os.Getenv("TUNABRAIN_ENV"), nil)

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read plan file: %w", err)
	}
	var plan planFile
	if err := yaml.Unmarshal(raw, &plan); err != nil {
		return fmt.Errorf("parse plan file: %w", err)
	}
	if plan.Channel == "" {
		return fmt.Errorf("plan file must name a channel")
	}

	req, err := plan.toRequest()
	if err != nil {
		return err
	}

	var pol planner.Policy
	if planRemoteEndpoint != "" {
		pol = policy.NewRemote(policy.RemoteConfig{
			Endpoint: planRemoteEndpoint,
			Token:    planRemoteToken,
			Timeout:  planRemoteTimeout,
		}, logger)
	} else {
		pol = policy.NewHeuristic(plan.MediaRefs, 0, logger)
	}

	result, err := planner.New(pol, logger).Run(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("run plan: %w", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func (p planFile) toRequest() (planner.Request, error) {
	req := planner.Request{
		Channel:        p.Channel,
		Instructions:   p.Instructions,
		WindowDays:     p.WindowDays,
		PreferredSlots: p.PreferredSlots,
		MaxIterations:  p.MaxIterations,
		MediaCount:     len(p.MediaRefs),
	}

	req.StartDate = time.Now().UTC().Truncate(24 * time.Hour)
	if p.StartDate != "" {
		start, err := time.Parse("2006-01-02", p.StartDate)
		if err != nil {
			return planner.Request{}, fmt.Errorf("malformed start_date %q", p.StartDate)
		}
		req.StartDate = start
	}
	if p.EndDate != "" {
		end, err := time.Parse("2006-01-02", p.EndDate)
		if err != nil {
			return planner.Request{}, fmt.Errorf("malformed end_date %q", p.EndDate)
		}
		req.EndDate = &end
	}
	if req.WindowDays <= 0 && req.EndDate == nil {
		req.WindowDays = 1
	}

	if p.DayStart != "" || p.DayEnd != "" {
		start, err := gaps.ParseClock(p.DayStart)
		if err != nil {
			return planner.Request{}, fmt.Errorf("day_start: %w", err)
		}
		end, err := gaps.ParseClock(p.DayEnd)
		if err != nil {
			return planner.Request{}, fmt.Errorf("day_end: %w", err)
		}
		if end <= start {
			end += 24 * time.Hour
		}
		req.DayStart = start
		req.DayEnd = end
	}

	for _, pre := range p.Prescheduled {
		day, err := time.Parse("2006-01-02", pre.Date)
		if err != nil {
			return planner.Request{}, fmt.Errorf("prescheduled: malformed date %q", pre.Date)
		}
		startOffset, err := gaps.ParseClock(pre.Start)
		if err != nil {
			return planner.Request{}, fmt.Errorf("prescheduled %s: %w", pre.Date, err)
		}
		endOffset, err := gaps.ParseClock(pre.End)
		if err != nil {
			return planner.Request{}, fmt.Errorf("prescheduled %s: %w", pre.Date, err)
		}
		req.Prescheduled = append(req.Prescheduled, planner.PlannedSlot{
			Date:     pre.Date,
			Start:    day.UTC().Add(startOffset),
			End:      day.UTC().Add(endOffset),
			MediaRef: pre.MediaRef,
			Strategy: schedule.SelectionStrategy(pre.Strategy),
		})
	}

	return req, nil
}
