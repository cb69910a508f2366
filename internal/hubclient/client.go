// Package hubclient is the thin, fire-and-forget REST client every agent
// uses to report to the hub: signals, predictions, whale/gas/token
// events, and periodic heartbeats. Every post is best-effort — a hub
// outage must never stall an agent's tick loop — so failures are logged
// and swallowed rather than returned up the call chain except where the
// caller explicitly wants the error (PostSignal et al. still return it
// for callers that want to retry or count failures).
//
// Grounded on the teacher's internal/adapters/jupiter/api.go for the
// http.Client-with-timeout shape, simplified since the hub is a trusted
// first-party service with no retry/circuit-breaker needs of its own —
// a dropped heartbeat is corrected by the next tick, not worth retrying.
package hubclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yeddevall/duckmon-agents-ai/internal/events"
)

// Client posts agent output to the hub over REST.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a hub client targeting baseURL (e.g. http://localhost:8787).
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("hubclient: marshal %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("hubclient: build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hubclient: post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("hubclient: post %s returned http %d", path, resp.StatusCode)
	}
	return nil
}

// PostSignal reports a technical/prediction/market/... agent verdict.
func (c *Client) PostSignal(ctx context.Context, signal events.Signal) error {
	return c.postJSON(ctx, "/api/signal", signal)
}

// PostWhaleAlert reports a large transfer observed by the whale agent.
func (c *Client) PostWhaleAlert(ctx context.Context, alert events.WhaleAlert) error {
	return c.postJSON(ctx, "/api/whale/alert", alert)
}

// PostGasUpdate reports the gas agent's latest reading.
func (c *Client) PostGasUpdate(ctx context.Context, update events.GasUpdate) error {
	return c.postJSON(ctx, "/api/gas/update", update)
}

// PostTokenLaunch reports a newly observed token launch.
func (c *Client) PostTokenLaunch(ctx context.Context, launch events.TokenLaunch) error {
	return c.postJSON(ctx, "/api/token/launch", launch)
}

// PostMevOpportunity reports a detected MEV-relevant condition.
func (c *Client) PostMevOpportunity(ctx context.Context, opp events.MevOpportunity) error {
	return c.postJSON(ctx, "/api/mev/opportunity", opp)
}

// PostHeartbeat reports one liveness beat. Swallows the error (logging
// it instead) since a heartbeat is inherently best-effort: the next one
// is 30 seconds away regardless of whether this one lands.
func (c *Client) PostHeartbeat(ctx context.Context, beat events.Heartbeat) {
	if err := c.postJSON(ctx, "/api/agent/heartbeat", beat); err != nil {
		log.Warn().Err(err).Str("agent", beat.AgentName).Msg("hubclient: heartbeat failed")
	}
}

// HeartbeatHandle lets a caller stop a started heartbeat loop.
type HeartbeatHandle struct {
	cancel context.CancelFunc
}

// Stop cancels the heartbeat loop.
func (h *HeartbeatHandle) Stop() { h.cancel() }

// StartHeartbeat starts a goroutine posting a heartbeat every interval
// until Stop is called. statsFn is called fresh on every beat so stats
// always reflect current state rather than a snapshot taken at start.
func (c *Client) StartHeartbeat(ctx context.Context, agentName string, interval time.Duration, statsFn func() map[string]any) *HeartbeatHandle {
	ctx, cancel := context.WithCancel(ctx)
	startedAt := time.Now()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				var stats map[string]any
				if statsFn != nil {
					stats = statsFn()
				}
				c.PostHeartbeat(ctx, events.Heartbeat{
					AgentName:       agentName,
					Status:          events.AgentRunning,
					UptimeMs:        time.Since(startedAt).Milliseconds(),
					Stats:           stats,
					LastHeartbeatMs: events.NowMs(),
				})
			}
		}
	}()

	return &HeartbeatHandle{cancel: cancel}
}
