package priceservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/yeddevall/duckmon-agents-ai/internal/chainclient"
	"github.com/yeddevall/duckmon-agents-ai/internal/events"
)

const (
	aggregatorURLTemplate = "https://api.dexscreener.com/latest/dex/tokens/%s"
	httpMaxRetries        = 2
	httpRetryBackoff      = 500 * time.Millisecond
)

// HTTPAggregator is the primary price source: a dexscreener-shaped REST
// aggregator returning the best-liquidity trading pair for a token.
// Grounded on the retry/backoff loop in the teacher's jupiter.APIClient,
// simplified to a single GET with no circuit breaker of its own — the
// Service above already treats primary failure as routine and falls
// back, so a second breaker here would only duplicate that decision.
type HTTPAggregator struct {
	httpClient *http.Client
}

// NewHTTPAggregator creates an aggregator-backed price source.
func NewHTTPAggregator() *HTTPAggregator {
	return &HTTPAggregator{httpClient: &http.Client{Timeout: 10 * time.Second}}
}

type aggregatorResponse struct {
	Pairs []struct {
		PriceUsd   string `json:"priceUsd"`
		PriceNative string `json:"priceNative"`
		BaseToken  struct {
			Symbol  string `json:"symbol"`
			Name    string `json:"name"`
			Address string `json:"address"`
		} `json:"baseToken"`
		Volume struct {
			H24 float64 `json:"h24"`
		} `json:"volume"`
		PriceChange struct {
			M5  float64 `json:"m5"`
			H1  float64 `json:"h1"`
			H24 float64 `json:"h24"`
		} `json:"priceChange"`
		Liquidity struct {
			Usd float64 `json:"usd"`
		} `json:"liquidity"`
		FDV float64 `json:"fdv"`
		Txns struct {
			M5  struct{ Buys, Sells int } `json:"m5"`
			H1  struct{ Buys, Sells int } `json:"h1"`
		} `json:"txns"`
	} `json:"pairs"`
}

// FetchPrice fetches the highest-liquidity pair for tokenAddress.
func (a *HTTPAggregator) FetchPrice(ctx context.Context, tokenAddress string) (events.PriceSample, error) {
	url := fmt.Sprintf(aggregatorURLTemplate, tokenAddress)

	var lastErr error
	for attempt := 0; attempt <= httpMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(httpRetryBackoff * time.Duration(1<<uint(attempt-1))):
			case <-ctx.Done():
				return events.PriceSample{}, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return events.PriceSample{}, fmt.Errorf("priceservice: build request: %w", err)
		}

		resp, err := a.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("priceservice: aggregator http error: %w", err)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("priceservice: read aggregator response: %w", err)
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("priceservice: aggregator rate limited")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("priceservice: aggregator http %d", resp.StatusCode)
			continue
		}

		var parsed aggregatorResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return events.PriceSample{}, fmt.Errorf("priceservice: parse aggregator response: %w", err)
		}
		if len(parsed.Pairs) == 0 {
			lastErr = fmt.Errorf("priceservice: no pairs for %s", tokenAddress)
			continue
		}

		bestIdx := 0
		for i, p := range parsed.Pairs {
			if p.Liquidity.Usd > parsed.Pairs[bestIdx].Liquidity.Usd {
				bestIdx = i
			}
		}
		best := parsed.Pairs[bestIdx]
		price, err := decimal.NewFromString(best.PriceUsd)
		if err != nil {
			return events.PriceSample{}, fmt.Errorf("priceservice: parse price: %w", err)
		}
		priceNative, _ := decimal.NewFromString(best.PriceNative)

		return events.PriceSample{
			Price:        price.InexactFloat64(),
			PriceUsd:     price.InexactFloat64(),
			PriceNative:  priceNative.InexactFloat64(),
			TimestampMs:  events.NowMs(),
			Volume24h:    best.Volume.H24,
			PriceChange: events.PriceChange{M5: best.PriceChange.M5, H1: best.PriceChange.H1, H24: best.PriceChange.H24},
			LiquidityUsd: best.Liquidity.Usd,
			MarketCap:    best.FDV,
			Buys24h:      best.Txns.H1.Buys,
			Sells24h:     best.Txns.H1.Sells,
			Buys1h:       best.Txns.M5.Buys,
			Sells1h:      best.Txns.M5.Sells,
			TokenSymbol:  best.BaseToken.Symbol,
			TokenName:    best.BaseToken.Name,
			TokenAddress: best.BaseToken.Address,
		}, nil
	}
	return events.PriceSample{}, fmt.Errorf("priceservice: aggregator failed after %d attempts: %w", httpMaxRetries+1, lastErr)
}

// OnChainSource is the fallback price source: a direct read of a DEX
// pool's reserves, used only when the HTTP aggregator is unavailable.
// Grounded on the teacher's RPCClient.GetPoolInfo, retargeted from
// Solana AMM pool accounts to an EVM pair contract's getReserves-shaped
// read.
type OnChainSource struct {
	client    chainclient.Client
	poolOf    func(tokenAddress string) chainclient.Address
	quoteMint string
}

// NewOnChainSource creates a fallback source that reads price directly
// from the DEX pool contract poolOf resolves a token address to.
func NewOnChainSource(client chainclient.Client, poolOf func(string) chainclient.Address, quoteMint string) *OnChainSource {
	return &OnChainSource{client: client, poolOf: poolOf, quoteMint: quoteMint}
}

// oneNativeUnit is the amountIn quoted against the router: 1 unit of the
// quote token, in its smallest denomination (18 decimals, matching the
// EVM chains this fleet watches).
var oneNativeUnit = decimal.New(1, 18)

// anomalyFloor and anomalyCeiling bound a plausible fallback-derived
// price; outside this band the read is treated as a bad quote (thin
// pool, reentrant state, stale router) rather than real market data.
const (
	anomalyFloor   = 1e-7
	anomalyCeiling = 1e3
)

// FetchPrice quotes 1 unit of the quote token against tokenAddress
// through the pool router and derives price = 1 / amountOut. Payload
// beyond price is left zero-valued; the fallback source exists purely to
// keep the tick loop alive through an aggregator outage, not to match
// the aggregator's full feature set.
func (o *OnChainSource) FetchPrice(ctx context.Context, tokenAddress string) (events.PriceSample, error) {
	pool := o.poolOf(tokenAddress)
	result, err := o.client.ReadContract(ctx, pool, "getAmountsOut", oneNativeUnit.String(), []string{o.quoteMint, tokenAddress})
	if err != nil {
		return events.PriceSample{}, fmt.Errorf("priceservice: onchain quote read: %w", err)
	}
	if len(result) == 0 {
		return events.PriceSample{}, fmt.Errorf("priceservice: onchain quote read returned no data")
	}

	amountOut, err := decodeDecimal(result[len(result)-1])
	if err != nil {
		return events.PriceSample{}, fmt.Errorf("priceservice: decode onchain quote: %w", err)
	}
	if amountOut.IsZero() || amountOut.IsNegative() {
		return events.PriceSample{}, fmt.Errorf("priceservice: onchain quote returned non-positive amountOut")
	}

	price := oneNativeUnit.Div(amountOut).InexactFloat64()
	if price <= anomalyFloor || price > anomalyCeiling {
		return events.PriceSample{}, fmt.Errorf("priceservice: onchain quote price %v outside plausible range, rejected as anomalous", price)
	}

	log.Debug().Str("token", tokenAddress).Str("pool", string(pool)).Float64("price", price).Msg("priceservice: served price from on-chain fallback")

	return events.PriceSample{
		Price:        price,
		PriceUsd:     price,
		TimestampMs:  events.NowMs(),
		Source:       events.SourceFallback,
		TokenAddress: tokenAddress,
	}, nil
}

// decodeDecimal coerces a ReadContract return value into a decimal,
// accepting the shapes a real ABI decoder or the test stub might hand
// back: a decimal string, a float64, or an already-decoded decimal.Decimal.
func decodeDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, nil
	case string:
		return decimal.NewFromString(t)
	case float64:
		return decimal.NewFromFloat(t), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported contract return type %T", v)
	}
}
