package chainclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Registry wraps a Client with the fleet's four on-chain operations and
// their pre-checks. It is the only thing agents import from this
// package; Client implementations stay interchangeable underneath it.
type Registry struct {
	client  Client
	address Address

	mu         sync.Mutex
	registered map[string]bool // agentName -> already registered this process lifetime
}

// NewRegistry wraps client for calls against the registry contract at address.
func NewRegistry(client Client, address Address) *Registry {
	return &Registry{client: client, address: address, registered: make(map[string]bool)}
}

// RegisterAgent registers an agent name against a wallet address.
// Idempotent: a second call for the same agent name within this
// process's lifetime is a no-op returning a zero TxHash, since the
// registry contract itself rejects duplicate registrations and there is
// no value in paying gas to discover that twice.
func (r *Registry) RegisterAgent(ctx context.Context, agentName string, wallet Address) (TxHash, error) {
	r.mu.Lock()
	if r.registered[agentName] {
		r.mu.Unlock()
		return "", nil
	}
	r.mu.Unlock()

	tx, err := r.client.WriteContract(ctx, r.address, MethodRegisterAgent, agentName, wallet)
	if err != nil {
		return "", fmt.Errorf("chainclient: register agent %s: %w", agentName, err)
	}

	r.mu.Lock()
	r.registered[agentName] = true
	r.mu.Unlock()
	return tx, nil
}

// PostSignal posts a BUY/SELL/HOLD signal on-chain. confidence must be in
// [0,100]; callers that skip this check risk a contract-level revert that
// still costs gas, so it is rejected here before any RPC round-trip.
func (r *Registry) PostSignal(ctx context.Context, agentName, signalType string, confidence float64, priceUsd decimal.Decimal) (TxHash, error) {
	if confidence < 0 || confidence > 100 {
		return "", fmt.Errorf("chainclient: confidence %.2f out of range [0,100]", confidence)
	}
	tx, err := r.client.WriteContract(ctx, r.address, MethodPostSignal, agentName, signalType, uint64(confidence), priceUsd)
	if err != nil {
		return "", fmt.Errorf("chainclient: post signal from %s: %w", agentName, err)
	}
	return tx, nil
}

// PostPrediction posts a directional forecast with a verification
// deadline. targetTime must be in the future; a prediction that already
// matured can never be meaningfully verified.
func (r *Registry) PostPrediction(ctx context.Context, agentName, direction string, confidence float64, referencePrice decimal.Decimal, targetTime time.Time) (TxHash, error) {
	if !targetTime.After(time.Now()) {
		return "", fmt.Errorf("chainclient: prediction target time %s is not in the future", targetTime)
	}
	tx, err := r.client.WriteContract(ctx, r.address, MethodPostPrediction,
		agentName, direction, uint64(confidence), referencePrice, uint64(targetTime.Unix()))
	if err != nil {
		return "", fmt.Errorf("chainclient: post prediction from %s: %w", agentName, err)
	}
	return tx, nil
}

// VerifyPrediction settles a previously posted prediction against the
// realized price once its target time has passed.
func (r *Registry) VerifyPrediction(ctx context.Context, agentName string, predictionID uint64, realizedPrice decimal.Decimal, correct bool) (TxHash, error) {
	correctFlag := uint64(0)
	if correct {
		correctFlag = 1
	}
	tx, err := r.client.WriteContract(ctx, r.address, MethodVerifyPrediction,
		agentName, predictionID, realizedPrice, correctFlag)
	if err != nil {
		return "", fmt.Errorf("chainclient: verify prediction from %s: %w", agentName, err)
	}
	return tx, nil
}
