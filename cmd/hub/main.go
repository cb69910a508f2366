package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yeddevall/duckmon-agents-ai/internal/advisor"
	"github.com/yeddevall/duckmon-agents-ai/internal/chainclient"
	"github.com/yeddevall/duckmon-agents-ai/internal/hub"
	"github.com/yeddevall/duckmon-agents-ai/internal/priceservice"
)

func main() {
	setupLogging()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	rpcURL := os.Getenv("RPC_URL")
	var client chainclient.Client
	if rpcURL != "" {
		cfg := chainclient.DefaultConfig()
		cfg.Endpoint = rpcURL
		client = chainclient.NewLive(cfg)
	} else {
		log.Warn().Msg("hub: RPC_URL unset, using stub chain client")
		client = chainclient.NewStub()
	}

	aggregator := priceservice.NewHTTPAggregator()
	priceSvc := priceservice.New(aggregator, nil)

	adv := buildAdvisor()

	h := hub.New(priceSvc, client, adv)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("hub: shutdown signal received")
		cancel()
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("hub: listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("hub: listen failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("hub: graceful shutdown failed")
	}
	log.Info().Msg("hub: shutdown complete")
}

// buildAdvisor wires the optional LLM enrichment layer. Absence of
// GEMINI_API_KEY/VITE_API_KEY leaves the advisor nil, which every
// caller in internal/hub treats identically to a present-but-failing
// advisor: the narrative just goes unenriched.
func buildAdvisor() *advisor.Advisor {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("VITE_API_KEY")
	}
	if apiKey == "" {
		log.Warn().Msg("hub: no advisor API key set, narrative enrichment disabled")
		return nil
	}
	endpoint := os.Getenv("ADVISOR_ENDPOINT")
	if endpoint == "" {
		endpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"
	}
	return advisor.New(advisor.NewLive(endpoint, apiKey))
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	level, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", "hub").Logger()
}
