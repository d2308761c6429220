/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/friendsincode/tunabrain/internal/planner"
)

const defaultRemoteTimeout = 60 * time.Second

// RemoteConfig configures the remote decision service client.
type RemoteConfig struct {
	Endpoint string
	Token    string // optional bearer token
	Timeout  time.Duration
}

// Remote invokes an external decision service over HTTP. The planner context
// is POSTed as JSON and the service answers with the actions to apply.
type Remote struct {
	endpoint string
	token    string
	client   *http.Client
	logger   zerolog.Logger
}

type proposeResponse struct {
	Actions []planner.Action `json:"actions"`
	Done    bool             `json:"done"`
}

// NewRemote builds a remote policy client.
func NewRemote(cfg RemoteConfig, logger zerolog.Logger) *Remote {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &Remote{
		endpoint: cfg.Endpoint,
		token:    cfg.Token,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.With().Str("component", "remote_policy").Logger(),
	}
}

// Propose implements planner.Policy.
func (r *Remote) Propose(ctx context.Context, pctx planner.Context) ([]planner.Action, error) {
	body, err := json.Marshal(pctx)
	if err != nil {
		return nil, fmt.Errorf("encode policy context: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build policy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("policy request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("policy service returned %d: %s", resp.StatusCode, snippet)
	}

	var decoded proposeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode policy response: %w", err)
	}

	r.logger.Debug().
		Int("iteration", pctx.Iteration).
		Int("actions", len(decoded.Actions)).
		Bool("done", decoded.Done).
		Msg("policy response received")

	if decoded.Done {
		return nil, nil
	}
	return decoded.Actions, nil
}
