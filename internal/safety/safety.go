package safety

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"event-contract-bot/internal/ledger"
	"event-contract-bot/internal/logger"
	"event-contract-bot/internal/store"
)

// ValidateStartup fails closed: any missing credential, absent brain
// file, or unacknowledged live mode stops the daemon before it touches
// the exchange.
func ValidateStartup(ctx context.Context, cfg *store.Config, led *ledger.Store) error {
	if cfg.Exchange.PrivateKeyPEM == "" {
		return errors.New("KALSHI_PRIVATE_KEY_PATH is empty or file not found")
	}
	if !strings.Contains(cfg.Exchange.PrivateKeyPEM, "BEGIN") {
		return errors.New("key file does not look like a PEM private key")
	}
	if cfg.Exchange.KeyID == "" {
		return errors.New("KALSHI_API_KEY_ID not set")
	}
	if len(cfg.Series) == 0 {
		return errors.New("no series configured")
	}
	if cfg.LLM.Provider == "OPENROUTER" && cfg.LLM.APIKey == "" {
		return errors.New("OPENROUTER_API_KEY not set")
	}

	ledgerPath := filepath.Join(cfg.BrainDir, "ledger.md")
	if _, err := os.Stat(ledgerPath); err != nil {
		return fmt.Errorf("%s not found", ledgerPath)
	}
	if _, err := led.Read(); err != nil {
		return fmt.Errorf("ledger unreadable: %w", err)
	}
	promptPath := filepath.Join(cfg.BrainDir, "prompt.md")
	if _, err := os.Stat(promptPath); err != nil {
		return fmt.Errorf("%s not found", promptPath)
	}

	if !cfg.Paper() && !cfg.ConfirmLive {
		return errors.New("mode is LIVE but confirm_live is not set, acknowledge real money trading explicitly")
	}
	if !cfg.Paper() {
		logger.Warn(ctx, "LIVE TRADING ENABLED, real money at risk")
	}
	return nil
}
