// Package priceservice is the fleet's single point of contact for token
// price data: a short-TTL cache in front of a primary HTTP aggregator
// with an on-chain fallback, and per-token rolling price/volume history
// every agent primes itself from on startup.
//
// Grounded on the teacher's internal/adapters/jupiter/api.go for the
// retried, circuit-broken HTTP client shape, generalized from a single
// DEX aggregator's quote/swap/price endpoints to a price-only call
// against a dexscreener-shaped aggregator, with the Solana SwapParams
// quote fallback retargeted to an EVM on-chain pool-reserves read.
package priceservice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yeddevall/duckmon-agents-ai/internal/events"
	"github.com/yeddevall/duckmon-agents-ai/internal/ringbuf"
)

// Source fetches a fresh price sample for a token.
type Source interface {
	FetchPrice(ctx context.Context, tokenAddress string) (events.PriceSample, error)
}

const (
	cacheTTL     = 5 * time.Second
	historyCap   = 200
	bondingTargetLiquidityUsd = 100_000.0
)

type cacheEntry struct {
	sample    events.PriceSample
	expiresAt time.Time
}

type history struct {
	prices  *ringbuf.Float
	volumes *ringbuf.Float
}

// inflight is one in-progress coalesced fetch; additional callers for the
// same key wait on done instead of issuing a second request.
type inflight struct {
	done   chan struct{}
	sample events.PriceSample
	err    error
}

// Service is the TTL-cached, request-coalescing, primary+fallback price
// lookup used by every agent variant.
type Service struct {
	primary  Source
	fallback Source

	mu        sync.Mutex
	cache     map[string]cacheEntry
	histories map[string]*history
	pending   map[string]*inflight
}

// New creates a price service backed by the given primary (HTTP
// aggregator) and fallback (on-chain quote) sources.
func New(primary, fallback Source) *Service {
	return &Service{
		primary:   primary,
		fallback:  fallback,
		cache:     make(map[string]cacheEntry),
		histories: make(map[string]*history),
		pending:   make(map[string]*inflight),
	}
}

// normalizeKey lowercases a token address for use as a map key, so two
// differently-cased spellings of the same address share one cache entry,
// one history ring, and one in-flight fetch.
func normalizeKey(tokenAddress string) string {
	return strings.ToLower(tokenAddress)
}

// GetPrice returns the current price for a token, serving from cache when
// fresh, coalescing concurrent callers into a single upstream fetch, and
// falling back to the last cached value (however stale) if both sources
// fail — a stale price is strictly more useful to a tick loop than none.
func (s *Service) GetPrice(ctx context.Context, tokenAddress string) (events.PriceSample, error) {
	key := normalizeKey(tokenAddress)

	s.mu.Lock()
	if entry, ok := s.cache[key]; ok && time.Now().Before(entry.expiresAt) {
		s.mu.Unlock()
		cached := entry.sample
		cached.Source = events.SourceCache
		return cached, nil
	}

	if inf, ok := s.pending[key]; ok {
		s.mu.Unlock()
		<-inf.done
		return inf.sample, inf.err
	}

	inf := &inflight{done: make(chan struct{})}
	s.pending[key] = inf
	s.mu.Unlock()

	sample, err := s.fetch(ctx, tokenAddress)

	s.mu.Lock()
	if err == nil {
		s.cache[key] = cacheEntry{sample: sample, expiresAt: time.Now().Add(cacheTTL)}
		s.recordHistory(key, sample)
	}
	delete(s.pending, key)
	stale, hasStale := s.cache[key]
	s.mu.Unlock()

	if err != nil && hasStale {
		sample = stale.sample
		sample.Source = events.SourceCache
		err = nil
	}
	inf.sample, inf.err = sample, err
	close(inf.done)

	if err != nil {
		return events.PriceSample{}, err
	}
	return sample, nil
}

func (s *Service) fetch(ctx context.Context, tokenAddress string) (events.PriceSample, error) {
	sample, err := s.primary.FetchPrice(ctx, tokenAddress)
	if err == nil {
		sample.Source = events.SourcePrimary
		return sample, nil
	}
	if s.fallback == nil {
		return events.PriceSample{}, fmt.Errorf("priceservice: primary failed, no fallback configured: %w", err)
	}
	sample, fallbackErr := s.fallback.FetchPrice(ctx, tokenAddress)
	if fallbackErr != nil {
		return events.PriceSample{}, fmt.Errorf("priceservice: primary and fallback both failed: %w / %w", err, fallbackErr)
	}
	sample.Source = events.SourceFallback
	return sample, nil
}

func (s *Service) recordHistory(tokenAddress string, sample events.PriceSample) {
	h, ok := s.histories[tokenAddress]
	if !ok {
		h = &history{prices: ringbuf.NewFloat(historyCap), volumes: ringbuf.NewFloat(historyCap)}
		s.histories[tokenAddress] = h
	}
	h.prices.Append(sample.Price)
	h.volumes.Append(sample.Volume24h)
}

// PrimeHistory seeds a token's price/volume history from a cold start,
// used by the agent loop's init phase so the first analysis tick doesn't
// run against an empty ring.
func (s *Service) PrimeHistory(tokenAddress string, prices, volumes []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := &history{prices: ringbuf.NewFloat(historyCap), volumes: ringbuf.NewFloat(historyCap)}
	for _, p := range prices {
		h.prices.Append(p)
	}
	for _, v := range volumes {
		h.volumes.Append(v)
	}
	s.histories[normalizeKey(tokenAddress)] = h
}

// PriceHistory returns the oldest-first price ring for a token.
func (s *Service) PriceHistory(tokenAddress string) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.histories[normalizeKey(tokenAddress)]
	if !ok {
		return nil
	}
	return append([]float64(nil), h.prices.Slice()...)
}

// VolumeHistory returns the oldest-first volume ring for a token.
func (s *Service) VolumeHistory(tokenAddress string) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.histories[normalizeKey(tokenAddress)]
	if !ok {
		return nil
	}
	return append([]float64(nil), h.volumes.Slice()...)
}

// BondingProgress estimates how established a pool is as a [0,1] ratio of
// its current liquidity to a fixed target, used by the liquidity agent to
// flag thinly traded tokens. Fallback: 0 when no sample has been cached.
func (s *Service) BondingProgress(tokenAddress string) float64 {
	s.mu.Lock()
	entry, ok := s.cache[normalizeKey(tokenAddress)]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	progress := entry.sample.LiquidityUsd / bondingTargetLiquidityUsd
	if progress > 1 {
		progress = 1
	}
	if progress < 0 {
		progress = 0
	}
	return progress
}
