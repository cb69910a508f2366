// Package hub implements the fleet's ingestion and fan-out server: a
// REST surface agents post to, a websocket subscription protocol browser
// clients connect to, and a self-driven per-token analysis loop that
// folds the fleet's own signals into a weighted consensus, risk-sized
// levels, and narrative prose.
//
// Grounded on the teacher's internal/market/service.go for the
// cache-then-broadcast shape, internal/audit/trail.go for the
// append-only-then-fan-out idiom (here bounded in memory instead of
// written to Kafka), and easyweb3tools-easy-paas's
// services/polymarket/backend/internal/signal.SignalHub for the
// per-subscriber-channel, drop-if-slow fan-out primitive.
package hub

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yeddevall/duckmon-agents-ai/internal/advisor"
	"github.com/yeddevall/duckmon-agents-ai/internal/chainclient"
	"github.com/yeddevall/duckmon-agents-ai/internal/events"
	"github.com/yeddevall/duckmon-agents-ai/internal/priceservice"
	"github.com/yeddevall/duckmon-agents-ai/internal/ringbuf"
)

// Ring capacities, per spec §3.
const (
	signalsCap   = 100
	alertsCap    = 50
	priceHistCap = 200

	// AgentStaleAfter is how long an agent can go without a heartbeat
	// before GET /api/state reports it as not alive.
	AgentStaleAfter = 120 * time.Second

	// SignalExpiry is the freshness window for consensus contribution.
	SignalExpiry = 20 * time.Minute

	// AnalysisInterval is the default cadence of the self-analysis loop.
	AnalysisInterval = 15 * time.Minute
)

// State is the hub's entire in-memory model: agent signal overwrite map,
// bounded recent-event rings, per-agent bookkeeping, per-token price/
// volume history, and cached consensus analyses. Every mutation goes
// through Hub's methods, which hold mu for the duration of the
// ring-append-plus-map-update so a reader never observes a half-applied
// event.
type State struct {
	mu sync.RWMutex

	agentSignals map[string]events.Signal

	signals          *ringbuf.Generic[events.Signal]
	whaleAlerts      *ringbuf.Generic[events.WhaleAlert]
	tokenLaunches    *ringbuf.Generic[events.TokenLaunch]
	mevOpportunities *ringbuf.Generic[events.MevOpportunity]
	gasUpdates       *ringbuf.Generic[events.GasUpdate]

	agents map[string]events.AgentRecord

	priceHistories  map[string]*ringbuf.Float
	volumeHistories map[string]*ringbuf.Float

	analysisResults map[string]Analysis

	focalToken string
	startedAt  time.Time
}

// NewState creates an empty hub state with every ring sized per spec §3.
func NewState() *State {
	return &State{
		agentSignals:     make(map[string]events.Signal),
		signals:          ringbuf.NewGeneric[events.Signal](signalsCap),
		whaleAlerts:      ringbuf.NewGeneric[events.WhaleAlert](alertsCap),
		tokenLaunches:    ringbuf.NewGeneric[events.TokenLaunch](alertsCap),
		mevOpportunities: ringbuf.NewGeneric[events.MevOpportunity](alertsCap),
		gasUpdates:       ringbuf.NewGeneric[events.GasUpdate](alertsCap),
		agents:           make(map[string]events.AgentRecord),
		priceHistories:   make(map[string]*ringbuf.Float),
		volumeHistories:  make(map[string]*ringbuf.Float),
		analysisResults:  make(map[string]Analysis),
		startedAt:        time.Now(),
	}
}

// RiskLevels is the hub's ATR-derived entry risk sizing for the focal
// token's current consensus verdict.
type RiskLevels struct {
	StopPrice       float64 `json:"stopPrice"`
	Target2R        float64 `json:"target2R"`
	Target3R        float64 `json:"target3R"`
	PositionSizePct float64 `json:"positionSizePct"`
}

// Analysis is the hub's self-computed, consensus-merged verdict for one
// token, broadcast as analysis:result and cached under analysisResults.
type Analysis struct {
	TokenAddress    string           `json:"tokenAddress"`
	Regime          string           `json:"regime"`
	RSI             float64          `json:"rsi"`
	TrendDirection  float64          `json:"trendDirection"`
	TrendStrength   float64          `json:"trendStrength"`
	Support         float64          `json:"support,omitempty"`
	Resistance      float64          `json:"resistance,omitempty"`
	OBV             float64          `json:"obv,omitempty"`
	OwnScore        float64          `json:"ownScore"`
	Consensus       ConsensusResult  `json:"consensus"`
	MergedScore     float64          `json:"mergedScore"`
	Label           events.SignalType `json:"label"`
	Risk            RiskLevels       `json:"risk"`
	Narrative       string           `json:"narrative"`
	Advisor         map[string]any   `json:"advisor,omitempty"`
	ComputedAtMs    int64            `json:"computedAtMs"`
}

// Hub ties State to its outbound dependencies (price data, a chain
// client, an optional advisor enricher) and to the websocket fan-out
// primitive. The self-analysis loop uses the price service and the
// advisor; it makes no chain reads.
type Hub struct {
	state *State

	priceSvc *priceservice.Service
	chain    chainclient.Client
	adv      *advisor.Advisor

	fanout *fanout

	analysisMu      sync.Mutex
	cronRunner      *cron.Cron
	analysisEntryID cron.EntryID
}

// New creates a Hub. chain and adv may be nil — the analysis loop makes
// no chain reads, and advisor enrichment is a best-effort extra on top
// of the required price-service-driven analysis.
func New(priceSvc *priceservice.Service, chain chainclient.Client, adv *advisor.Advisor) *Hub {
	return &Hub{
		state:    NewState(),
		priceSvc: priceSvc,
		chain:    chain,
		adv:      adv,
		fanout:   newFanout(),
	}
}

// FocalToken returns the address the self-analysis loop currently tracks.
func (h *Hub) FocalToken() string {
	h.state.mu.RLock()
	defer h.state.mu.RUnlock()
	return h.state.focalToken
}

// Uptime returns how long the hub has been running.
func (h *Hub) Uptime() time.Duration {
	h.state.mu.RLock()
	defer h.state.mu.RUnlock()
	return time.Since(h.state.startedAt)
}
