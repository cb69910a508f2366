package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/yeddevall/duckmon-agents-ai/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler builds the hub's full HTTP surface: REST ingress, the
// websocket subscription endpoint, and the two read-only diagnostic
// endpoints.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/signal", h.handleSignal)
	mux.HandleFunc("/api/mev/opportunity", h.handleMev)
	mux.HandleFunc("/api/token/launch", h.handleTokenLaunch)
	mux.HandleFunc("/api/gas/update", h.handleGasUpdate)
	mux.HandleFunc("/api/whale/alert", h.handleWhaleAlert)
	mux.HandleFunc("/api/agent/heartbeat", h.handleHeartbeat)
	mux.HandleFunc("/api/state", h.handleState)
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/ws", h.handleWebsocket)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// handleSignal implements POST /api/signal. Ordering per Design Notes:
// overwrite agentSignals first, append to the recent-events ring second,
// broadcast last, so any reader of the broadcast already sees the
// overwritten map.
func (h *Hub) handleSignal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var sig events.Signal
	if err := decodeBody(r, &sig); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if sig.AgentName == "" {
		writeError(w, http.StatusBadRequest, "agentName is required")
		return
	}
	sig.ReceivedAt = events.NowMs()

	h.state.mu.Lock()
	h.state.agentSignals[sig.AgentName] = sig
	h.state.signals.Push(sig)
	h.state.mu.Unlock()

	h.fanout.broadcast("signal", sig)
	log.Info().Str("agent", sig.AgentName).Str("type", string(sig.Type)).Float64("confidence", sig.Confidence).Msg("hub: signal ingested")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Hub) handleMev(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var opp events.MevOpportunity
	if err := decodeBody(r, &opp); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if opp == nil {
		opp = events.MevOpportunity{}
	}
	opp["receivedAt"] = events.NowMs()

	h.state.mu.Lock()
	h.state.mevOpportunities.Push(opp)
	h.state.mu.Unlock()

	h.fanout.broadcast("mev:opportunity", opp)
	log.Info().Msg("hub: mev opportunity ingested")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Hub) handleTokenLaunch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var launch events.TokenLaunch
	if err := decodeBody(r, &launch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if launch == nil {
		launch = events.TokenLaunch{}
	}
	launch["receivedAt"] = events.NowMs()

	h.state.mu.Lock()
	h.state.tokenLaunches.Push(launch)
	h.state.mu.Unlock()

	h.fanout.broadcast("token:launch", launch)
	log.Info().Msg("hub: token launch ingested")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Hub) handleGasUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var update events.GasUpdate
	if err := decodeBody(r, &update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	update.ReceivedAt = events.NowMs()

	h.state.mu.Lock()
	h.state.gasUpdates.Push(update)
	h.state.mu.Unlock()

	h.fanout.broadcast("gas:update", update)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Hub) handleWhaleAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var alert events.WhaleAlert
	if err := decodeBody(r, &alert); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	alert.ReceivedAt = events.NowMs()

	h.state.mu.Lock()
	h.state.whaleAlerts.Push(alert)
	h.state.mu.Unlock()

	h.fanout.broadcast("whale:alert", alert)
	log.Info().Str("tier", string(alert.Tier)).Str("token", alert.TokenAddress).Msg("hub: whale alert ingested")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Hub) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var beat events.Heartbeat
	if err := decodeBody(r, &beat); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if beat.AgentName == "" {
		writeError(w, http.StatusBadRequest, "agentName is required")
		return
	}
	now := events.NowMs()
	if beat.Status == "" {
		beat.Status = events.AgentRunning
	}

	h.state.mu.Lock()
	h.state.agents[beat.AgentName] = events.AgentRecord{
		Status:          beat.Status,
		UptimeMs:        beat.UptimeMs,
		Stats:           beat.Stats,
		LastHeartbeatMs: now,
	}
	h.state.mu.Unlock()

	beat.LastHeartbeatMs = now
	h.fanout.broadcast("agent:heartbeat", beat)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type agentStateView struct {
	Name            string         `json:"name"`
	Status          events.AgentStatus `json:"status"`
	UptimeMs        int64          `json:"uptime"`
	Stats           map[string]any `json:"stats,omitempty"`
	LastHeartbeatMs int64          `json:"lastHeartbeatMs"`
	IsAlive         bool           `json:"isAlive"`
}

func (h *Hub) handleState(w http.ResponseWriter, r *http.Request) {
	h.state.mu.RLock()
	defer h.state.mu.RUnlock()

	now := events.NowMs()
	agentsOut := make([]agentStateView, 0, len(h.state.agents))
	for name, rec := range h.state.agents {
		agentsOut = append(agentsOut, agentStateView{
			Name:            name,
			Status:          rec.Status,
			UptimeMs:        rec.UptimeMs,
			Stats:           rec.Stats,
			LastHeartbeatMs: rec.LastHeartbeatMs,
			IsAlive:         rec.IsAlive(now),
		})
	}

	var confluence ConsensusResult
	if a, ok := h.state.analysisResults[h.state.focalToken]; ok {
		confluence = a.Consensus
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"uptime":        time.Since(h.state.startedAt).Milliseconds(),
		"agents":        agentsOut,
		"confluence":    confluence,
		"totalSignals":  h.state.signals.Len(),
		"totalAlerts":   h.state.whaleAlerts.Len(),
		"totalLaunches": h.state.tokenLaunches.Len(),
		"totalMev":      h.state.mevOpportunities.Len(),
		"recentSignals": h.state.signals.Head(20),
		"recentAlerts":  h.state.whaleAlerts.Head(20),
		"currentToken":  h.state.focalToken,
	})
}

func (h *Hub) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.state.mu.RLock()
	focal := h.state.focalToken
	var confluenceAgents int
	if a, ok := h.state.analysisResults[focal]; ok {
		for _, c := range a.Consensus.Breakdown {
			if c.Fresh {
				confluenceAgents++
			}
		}
	}
	agentCount := len(h.state.agents)
	h.state.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"uptime":           time.Since(h.state.startedAt).Milliseconds(),
		"agents":           agentCount,
		"connections":      h.fanout.Connections(),
		"currentToken":     focal,
		"confluenceAgents": confluenceAgents,
	})
}

// clientFrame is the shape the hub accepts from a subscribed websocket
// client: an event name plus a free-form payload (token:analyze's
// payload may be either {"tokenAddress":"..."} or a bare address
// string).
type clientFrame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

func (h *Hub) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("hub: websocket upgrade failed")
		return
	}

	sub := h.fanout.Subscribe()
	defer h.fanout.Unsubscribe(sub)

	h.sendStateSnapshot(sub)

	done := make(chan struct{})
	go h.writePump(conn, sub, done)
	h.readPump(conn, sub)
	close(done)
	conn.Close()
}

func (h *Hub) writePump(conn *websocket.Conn, sub *subscriber, done <-chan struct{}) {
	for {
		select {
		case fr, ok := <-sub.out:
			if !ok {
				return
			}
			if err := conn.WriteJSON(fr); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Hub) readPump(conn *websocket.Conn, sub *subscriber) {
	for {
		var cf clientFrame
		if err := conn.ReadJSON(&cf); err != nil {
			return
		}
		switch cf.Event {
		case "token:analyze":
			addr, ok := tokenAddressFromPayload(cf.Payload)
			if !ok {
				h.fanout.sendTo(sub, "error", map[string]string{"message": "token:analyze requires a tokenAddress"})
				continue
			}
			h.StartAnalysisLoop(context.Background(), addr)
		default:
			h.fanout.sendTo(sub, "error", map[string]string{"message": "unknown event: " + cf.Event})
		}
	}
}

func tokenAddressFromPayload(payload any) (string, bool) {
	switch v := payload.(type) {
	case string:
		if len(v) >= 10 {
			return v, true
		}
	case map[string]any:
		if addr, ok := v["tokenAddress"].(string); ok && len(addr) >= 10 {
			return addr, true
		}
	}
	return "", false
}

// sendStateSnapshot implements the connect-time "state" event: up to 20
// recent signals, 10 per other category, the focal token, and the
// cached analysis for it if present.
func (h *Hub) sendStateSnapshot(sub *subscriber) {
	h.state.mu.RLock()
	snapshot := map[string]any{
		"signals":          h.state.signals.Head(20),
		"whaleAlerts":      h.state.whaleAlerts.Head(10),
		"tokenLaunches":    h.state.tokenLaunches.Head(10),
		"mevOpportunities": h.state.mevOpportunities.Head(10),
		"gasUpdates":       h.state.gasUpdates.Head(10),
		"focalToken":       h.state.focalToken,
	}
	if a, ok := h.state.analysisResults[h.state.focalToken]; ok {
		snapshot["analysis"] = a
	}
	h.state.mu.RUnlock()

	h.fanout.sendTo(sub, "state", snapshot)
}
