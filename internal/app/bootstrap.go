// Package app wires configuration, logging, storage and the exchange
// client into a runtime for one CLI invocation.
package app

import (
	"log/slog"

	"futures_bot/internal/exchange"
	"futures_bot/internal/infra"
	"futures_bot/internal/storage"
)

// Runtime holds everything a strategy invocation needs.
type Runtime struct {
	Cfg     *infra.Config
	Client  *exchange.Client
	Journal *storage.Journal // nil when journaling is disabled
}

// Bootstrap loads config, installs the process logger and opens the
// journal. journalPath may be empty to run without one; a journal that
// fails to open is logged and skipped rather than fatal, since every
// consumer is nil-safe.
func Bootstrap(configPath, journalPath string) (*Runtime, error) {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(infra.NewLogger(cfg))
	slog.Info("Starting",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.Bool("testnet", cfg.API.Binance.Testnet),
	)

	rt := &Runtime{
		Cfg:    cfg,
		Client: exchange.NewClient(cfg),
	}

	if journalPath != "" {
		journal, err := storage.NewJournal(journalPath)
		if err != nil {
			slog.Warn("Order journal unavailable, continuing without it",
				slog.String("path", journalPath),
				slog.Any("error", err))
		} else {
			rt.Journal = journal
		}
	}
	return rt, nil
}

// Close releases runtime resources.
func (r *Runtime) Close() {
	if r.Journal != nil {
		if err := r.Journal.Close(); err != nil {
			slog.Warn("Failed to close journal", slog.Any("error", err))
		}
	}
}
