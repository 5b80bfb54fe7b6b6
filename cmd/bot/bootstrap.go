package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"event-contract-bot/internal/engine"
	"event-contract-bot/internal/exchange/exchangeobs"
	"event-contract-bot/internal/exchange/kalshi"
	"event-contract-bot/internal/feed"
	"event-contract-bot/internal/ledger"
	"event-contract-bot/internal/llm"
	"event-contract-bot/internal/logger"
	"event-contract-bot/internal/safety"
	"event-contract-bot/internal/store"
)

// app wires the daemon together: config, ports, streams and the engine.
type app struct {
	cfg     *store.Config
	engine  *engine.Engine
	pm      *engine.PositionManager
	market  *kalshi.Stream
	prices  *feed.Stream
	archive *ledger.Archive
}

func bootstrap(ctx context.Context) (*app, error) {
	_ = godotenv.Load()
	if err := logger.Init(); err != nil {
		return nil, fmt.Errorf("logger init: %w", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := store.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	led := ledger.NewStore(cfg.BrainDir)
	if err := safety.ValidateStartup(ctx, cfg, led); err != nil {
		return nil, fmt.Errorf("startup validation: %w", err)
	}

	client, err := kalshi.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	exch := exchangeobs.Wrap(client)
	auth, err := kalshi.NewAuth(cfg.Exchange.KeyID, cfg.Exchange.PrivateKeyPEM)
	if err != nil {
		return nil, err
	}
	brain, err := llm.New(cfg)
	if err != nil {
		return nil, err
	}

	var archive *ledger.Archive
	if cfg.ArchivePath != "" {
		archive, err = ledger.OpenArchive(cfg.ArchivePath)
		if err != nil {
			// The archive is a mirror; losing it never blocks trading.
			logger.Warn(ctx, "Trade archive unavailable", "path", cfg.ArchivePath, "error", err)
			archive = nil
		}
	}

	symbols := make([]string, 0, len(cfg.Series))
	for _, s := range cfg.Series {
		symbols = append(symbols, s.Symbol)
	}

	priceClient := feed.NewClient(cfg.PriceFeed.BaseURL)

	return &app{
		cfg:     cfg,
		engine:  engine.New(cfg, exch, brain, priceClient, led, archive),
		pm:      engine.NewPositionManager(cfg.Exit.TakeProfitCents, cfg.Exit.StopLossCents),
		market:  kalshi.NewStream(cfg.Exchange.WSURL, auth),
		prices:  feed.NewStream(cfg.PriceFeed.WSURL, symbols),
		archive: archive,
	}, nil
}

func (a *app) close() {
	if a.archive != nil {
		a.archive.Close()
	}
}
