// Package agent implements the generic tick-loop runner shared by all
// eight agent variants: register on-chain, prime price history, then
// loop serially — fetch price, analyze, conditionally post on-chain,
// always post to the hub. Every variant supplies only the analysis
// function; everything else (lifecycle, recovery, heartbeating) lives
// here exactly once.
//
// Grounded on the teacher's internal/market/service.go Start/Stop
// goroutine shape, collapsed from a continuous multi-adapter streaming
// service to a single discrete serial tick per agent process.
package agent

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/yeddevall/duckmon-agents-ai/internal/chainclient"
	"github.com/yeddevall/duckmon-agents-ai/internal/events"
	"github.com/yeddevall/duckmon-agents-ai/internal/hubclient"
	"github.com/yeddevall/duckmon-agents-ai/internal/priceservice"
)

// Snapshot is everything a variant's analysis function sees on one tick.
type Snapshot struct {
	TokenAddress  string
	Price         events.PriceSample
	PriceHistory  []float64 // oldest-first
	VolumeHistory []float64 // oldest-first
	Now           time.Time
}

// Result is what a variant's analysis function produces for one tick.
// Variants whose side effects aren't a plain signal post (prediction's
// on-chain PostPrediction/VerifyPrediction, whale's PostWhaleAlert and
// gas's PostGasUpdate to the hub) hold their own *chainclient.Registry or
// *hubclient.Client reference and make those calls directly inside
// Analyze rather than routing them through Result; the Runner only ever
// posts the Signal itself.
type Result struct {
	Signal events.Signal
}

// AnalyzeFunc is the pure per-tick decision function a variant supplies.
type AnalyzeFunc func(ctx context.Context, snap Snapshot) (Result, error)

// OnChainThreshold is the minimum confidence required before a signal is
// posted on-chain. Every signal is still always posted to the hub
// regardless of confidence — the threshold only gates gas spend.
const OnChainThreshold = 60.0

// Config configures one Runner instance.
type Config struct {
	AgentName    string
	Category     events.Category
	TokenAddress string
	Wallet       chainclient.Address
	TickInterval time.Duration

	PriceSvc *priceservice.Service
	Registry *chainclient.Registry
	Hub      *hubclient.Client
	Analyze  AnalyzeFunc
}

// Runner drives one agent variant's tick loop through the
// STARTING -> RUNNING <-> ERROR -> STOPPED lifecycle.
type Runner struct {
	cfg Config

	state     atomic.Value // events.AgentStatus
	tickCount atomic.Int64
	errCount  atomic.Int64
	startedAt time.Time

	logger zerolog.Logger
}

// New creates a Runner. TickInterval defaults to 30s if unset.
func New(cfg Config) *Runner {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 30 * time.Second
	}
	r := &Runner{
		cfg:    cfg,
		logger: log.With().Str("agent", cfg.AgentName).Str("category", string(cfg.Category)).Logger(),
	}
	r.state.Store(events.AgentStarting)
	return r
}

// Status returns the agent's current lifecycle state.
func (r *Runner) Status() events.AgentStatus {
	return r.state.Load().(events.AgentStatus)
}

// Stats returns a snapshot of counters reported in the heartbeat payload.
func (r *Runner) Stats() map[string]any {
	return map[string]any{
		"ticks":  r.tickCount.Load(),
		"errors": r.errCount.Load(),
	}
}

// Run blocks until ctx is cancelled, driving the register -> prime ->
// tick loop. It always returns nil on clean shutdown; tick-level errors
// are recorded in state and logged, never propagated up, since a single
// bad tick must not bring down the process the supervisor is tracking.
func (r *Runner) Run(ctx context.Context) error {
	r.startedAt = time.Now()
	r.logger.Info().Msg("agent starting")

	if r.cfg.Registry != nil {
		if _, err := r.cfg.Registry.RegisterAgent(ctx, r.cfg.AgentName, r.cfg.Wallet); err != nil {
			r.logger.Error().Err(err).Msg("agent registration failed, continuing unregistered")
		}
	}

	if _, err := r.cfg.PriceSvc.GetPrice(ctx, r.cfg.TokenAddress); err != nil {
		r.logger.Warn().Err(err).Msg("initial price prime failed, first tick may run on empty history")
	}

	var heartbeat *hubclient.HeartbeatHandle
	if r.cfg.Hub != nil {
		heartbeat = r.cfg.Hub.StartHeartbeat(ctx, r.cfg.AgentName, 30*time.Second, r.Stats)
		defer heartbeat.Stop()
	}

	r.state.Store(events.AgentRunning)
	r.logger.Info().Msg("agent running")

	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.state.Store(events.AgentStopped)
			r.logger.Info().Msg("agent stopped")
			return nil
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick runs exactly one fetch/analyze/post cycle, recovering from any
// panic raised by the variant's analysis function so a single bad tick
// degrades the agent to ERROR instead of killing the process.
func (r *Runner) tick(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.errCount.Add(1)
			r.state.Store(events.AgentError)
			r.logger.Error().Interface("panic", rec).Msg("agent tick panicked")
		}
	}()

	r.tickCount.Add(1)

	price, err := r.cfg.PriceSvc.GetPrice(ctx, r.cfg.TokenAddress)
	if err != nil {
		r.errCount.Add(1)
		r.state.Store(events.AgentError)
		r.logger.Error().Err(err).Msg("price fetch failed")
		return
	}

	snap := Snapshot{
		TokenAddress:  r.cfg.TokenAddress,
		Price:         price,
		PriceHistory:  r.cfg.PriceSvc.PriceHistory(r.cfg.TokenAddress),
		VolumeHistory: r.cfg.PriceSvc.VolumeHistory(r.cfg.TokenAddress),
		Now:           time.Now(),
	}

	result, err := r.cfg.Analyze(ctx, snap)
	if err != nil {
		r.errCount.Add(1)
		r.state.Store(events.AgentError)
		r.logger.Error().Err(err).Msg("analysis failed")
		return
	}

	r.state.Store(events.AgentRunning)
	signal := result.Signal
	signal.AgentName = r.cfg.AgentName
	signal.Category = r.cfg.Category
	signal.ReceivedAt = events.NowMs()
	if signal.Price == 0 {
		signal.Price = price.Price
	}

	if signal.Confidence >= OnChainThreshold && r.cfg.Registry != nil {
		if _, err := r.cfg.Registry.PostSignal(ctx, r.cfg.AgentName, string(signal.Type), signal.Confidence, decimal.NewFromFloat(signal.Price)); err != nil {
			r.logger.Warn().Err(err).Msg("on-chain signal post failed")
		}
	}

	if r.cfg.Hub != nil {
		if err := r.cfg.Hub.PostSignal(ctx, signal); err != nil {
			r.logger.Warn().Err(err).Msg("hub signal post failed")
		}
	}
}
