package execution

import (
	"log/slog"

	"futures_bot/internal/exchange"
	"futures_bot/internal/infra"
	"futures_bot/internal/storage"

	"github.com/shopspring/decimal"
)

// Mode selects how orders are executed.
type Mode string

const (
	ModeLive Mode = "LIVE"
	ModeDry  Mode = "DRY_RUN"
)

// NewSubmitter returns the Submitter for the requested mode.
// refPrice is only used in dry-run mode.
func NewSubmitter(mode Mode, cfg *infra.Config, gw exchange.Gateway, journal *storage.Journal, refPrice decimal.Decimal) Submitter {
	switch mode {
	case ModeDry:
		slog.Info("Execution mode: DRY RUN (no orders will be placed)")
		return NewDrySubmitter(refPrice)
	default:
		if cfg.API.Binance.Testnet {
			slog.Info("Execution mode: LIVE (testnet)")
		} else {
			slog.Warn("Execution mode: LIVE (MAINNET, real money)")
		}
		return NewLiveSubmitter(gw, journal, cfg.Trading.MaxRetries)
	}
}
