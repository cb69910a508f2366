package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/yeddevall/duckmon-agents-ai/internal/agent"
	"github.com/yeddevall/duckmon-agents-ai/internal/agent/variants/gas"
	"github.com/yeddevall/duckmon-agents-ai/internal/agent/variants/liquidity"
	"github.com/yeddevall/duckmon-agents-ai/internal/agent/variants/market"
	"github.com/yeddevall/duckmon-agents-ai/internal/agent/variants/onchain"
	"github.com/yeddevall/duckmon-agents-ai/internal/agent/variants/prediction"
	"github.com/yeddevall/duckmon-agents-ai/internal/agent/variants/sentiment"
	"github.com/yeddevall/duckmon-agents-ai/internal/agent/variants/trading"
	"github.com/yeddevall/duckmon-agents-ai/internal/agent/variants/whale"
	"github.com/yeddevall/duckmon-agents-ai/internal/chainclient"
	"github.com/yeddevall/duckmon-agents-ai/internal/events"
	"github.com/yeddevall/duckmon-agents-ai/internal/hubclient"
	"github.com/yeddevall/duckmon-agents-ai/internal/priceservice"
)

func main() {
	setupLogging()

	variant := strings.ToLower(os.Getenv("AGENT_VARIANT"))
	if variant == "" {
		fmt.Fprintln(os.Stderr, "FATAL: AGENT_VARIANT must be set to one of: trading, prediction, market, whale, liquidity, sentiment, onchain, gas")
		os.Exit(1)
	}

	tokenAddress := os.Getenv("DUCK_TOKEN_ADDRESS")
	registryAddress := os.Getenv("DUCK_SIGNALS_ADDRESS")
	quoteAddress := os.Getenv("WMON_ADDRESS")
	hubURL := os.Getenv("WEBSOCKET_SERVER_URL")
	privateKey := os.Getenv("PRIVATE_KEY")
	rpcURL := os.Getenv("RPC_URL")

	client := newChainClient(rpcURL, privateKey)

	var registry *chainclient.Registry
	if registryAddress != "" && registryAddress != zeroAddress {
		registry = chainclient.NewRegistry(client, chainclient.Address(registryAddress))
	} else {
		log.Warn().Msg("agent: DUCK_SIGNALS_ADDRESS unset or zero-address, registration and on-chain posts are skipped")
	}

	var hub *hubclient.Client
	if hubURL != "" {
		hub = hubclient.New(hubURL)
	}

	aggregator := priceservice.NewHTTPAggregator()
	onChain := priceservice.NewOnChainSource(client, func(string) chainclient.Address {
		return chainclient.Address(tokenAddress)
	}, quoteAddress)
	priceSvc := priceservice.New(aggregator, onChain)

	analyze, wallet, tick := buildVariant(variant, client, registry, hub, priceSvc, tokenAddress)

	runner := agent.New(agent.Config{
		AgentName:    canonicalAgentName(variant),
		Category:     categoryFor(variant),
		TokenAddress: tokenAddress,
		Wallet:       wallet,
		TickInterval: tick,
		PriceSvc:     priceSvc,
		Registry:     registry,
		Hub:          hub,
		Analyze:      analyze,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("agent: shutdown signal received")
		cancel()
	}()

	if err := runner.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("agent: run failed")
	}
	log.Info().Str("variant", variant).Msg("agent: shutdown complete")
}

const zeroAddress = "0x0000000000000000000000000000000000000000"

// canonicalAgentName maps the lowercase AGENT_VARIANT dispatch key to the
// display name the hub expects. This must match internal/hub/consensus.go's
// AgentWeights keys exactly (case included) — the hub keys agentSignals
// and looks up consensus weight by this string, and the two processes
// never share a Go type to enforce the match at compile time.
func canonicalAgentName(variant string) string {
	switch variant {
	case "trading":
		return "Trading"
	case "prediction":
		return "Prediction"
	case "market":
		return "Market"
	case "whale":
		return "Whale"
	case "liquidity":
		return "Liquidity"
	case "sentiment":
		return "Sentiment"
	case "onchain":
		return "On-chain"
	case "gas":
		return "Gas"
	default:
		return variant
	}
}

func newChainClient(rpcURL, privateKey string) chainclient.Client {
	if rpcURL == "" {
		log.Warn().Msg("agent: RPC_URL unset, running against a stub chain client")
		return chainclient.NewStub()
	}
	cfg := chainclient.DefaultConfig()
	cfg.Endpoint = rpcURL
	cfg.PrivateKeyHex = privateKey
	if privateKey == "" {
		log.Warn().Msg("agent: PRIVATE_KEY unset, running read-only (no on-chain writes)")
	}
	return chainclient.NewLive(cfg)
}

func categoryFor(variant string) events.Category {
	switch variant {
	case "trading":
		return events.CategoryTechnical
	case "prediction":
		return events.CategoryPrediction
	case "market":
		return events.CategoryMarket
	case "whale":
		return events.CategoryWhale
	case "liquidity":
		return events.CategoryLiquidity
	case "sentiment":
		return events.CategorySentiment
	case "onchain":
		return events.CategoryOnchain
	case "gas":
		return events.CategoryGas
	default:
		return events.CategoryTechnical
	}
}

// buildVariant wires the chosen variant's Agent (where it needs
// dependencies beyond a plain Snapshot) and returns its AnalyzeFunc, the
// wallet address the Runner registers under, and the variant's tick
// cadence.
func buildVariant(variant string, client chainclient.Client, registry *chainclient.Registry, hub *hubclient.Client, priceSvc *priceservice.Service, tokenAddress string) (agent.AnalyzeFunc, chainclient.Address, time.Duration) {
	wallet := chainclient.Address(os.Getenv("AGENT_WALLET_ADDRESS"))

	switch variant {
	case "trading":
		return trading.Analyze, wallet, 30 * time.Second
	case "prediction":
		a := prediction.New(canonicalAgentName(variant), registry)
		return a.Analyze, wallet, 60 * time.Second
	case "market":
		a := market.New()
		return a.Analyze, wallet, 30 * time.Second
	case "whale":
		totalSupply := decimal.NewFromInt(1_000_000_000)
		a := whale.New(client, chainclient.Address(tokenAddress), totalSupply, hub)
		return a.Analyze, wallet, 15 * time.Second
	case "liquidity":
		a := liquidity.New(priceSvc)
		return a.Analyze, wallet, 20 * time.Second
	case "sentiment":
		a := sentiment.New()
		return a.Analyze, wallet, 20 * time.Second
	case "onchain":
		routers := []chainclient.Address{}
		if r := os.Getenv("DEX_ROUTER_ADDRESSES"); r != "" {
			for _, addr := range strings.Split(r, ",") {
				routers = append(routers, chainclient.Address(strings.TrimSpace(addr)))
			}
		}
		a := onchain.New(client, chainclient.Address(tokenAddress), routers)
		return a.Analyze, wallet, 30 * time.Second
	case "gas":
		a := gas.New(client, hub)
		return a.Analyze, wallet, 10 * time.Second
	default:
		fmt.Fprintf(os.Stderr, "FATAL: unknown AGENT_VARIANT %q\n", variant)
		os.Exit(1)
		return nil, wallet, 30 * time.Second
	}
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	level, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", "agent").Logger()
}
