package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yeddevall/duckmon-agents-ai/internal/config"
	"github.com/yeddevall/duckmon-agents-ai/internal/supervisor"
)

func main() {
	configPath := flag.String("config", "", "path to roster YAML (defaults to the built-in 8-variant roster)")
	agentBinary := flag.String("agent-binary", "./bin/agent", "path to the generic agent binary, used by the default roster")
	single := flag.String("agent", "", "launch exactly one known agent by path, ignoring its configured delay")
	flag.Parse()

	setupLogging()

	roster, err := loadRoster(*configPath, *agentBinary)
	if err != nil {
		log.Fatal().Err(err).Msg("supervisor: failed to load roster")
	}

	sup := supervisor.New(roster, os.Environ())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("supervisor: shutdown signal received")
		cancel()
	}()

	if *single != "" {
		if err := sup.RunSingle(ctx, *single); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	log.Info().Int("agents", len(roster)).Msg("supervisor: launching fleet")
	if err := sup.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("supervisor: run failed")
	}
	log.Info().Msg("supervisor: shutdown complete")
}

func loadRoster(configPath, agentBinary string) ([]supervisor.Spec, error) {
	var specs []config.AgentSpec
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		specs = cfg.Agents
	} else {
		specs = config.DefaultRoster(agentBinary)
	}

	roster := make([]supervisor.Spec, 0, len(specs))
	for _, s := range specs {
		roster = append(roster, supervisor.Spec{
			Name:    s.Name,
			Path:    s.Path,
			DelayMs: s.DelayMs,
			Env:     s.Env,
		})
	}
	return roster, nil
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	level, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", "supervisor").Logger()
}
