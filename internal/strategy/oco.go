package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"futures_bot/internal/domain"
	"futures_bot/internal/exchange"
	"futures_bot/internal/execution"
	"futures_bot/internal/validate"

	"github.com/shopspring/decimal"
)

// OCOConfig tunes the monitoring loop.
type OCOConfig struct {
	PollInterval time.Duration
	Budget       time.Duration // monitoring budget before giving up
}

// DefaultOCOConfig returns the standard poll cadence.
func DefaultOCOConfig() OCOConfig {
	return OCOConfig{
		PollInterval: 3 * time.Second,
		Budget:       10 * time.Minute,
	}
}

// OCOMonitor places a take-profit and a stop-loss order for an
// existing position and polls until one fills, then cancels the other.
//
// The exchange has no native one-cancels-other linking for futures, so
// the pair is raced client-side. In adverse timing both legs can fill
// before the cancel lands; that window is a residual risk of the
// protocol, not something more code can close.
type OCOMonitor struct {
	sub execution.Submitter
	gw  exchange.Gateway
	cfg OCOConfig
}

// NewOCOMonitor creates an OCO monitor.
func NewOCOMonitor(sub execution.Submitter, gw exchange.Gateway, cfg OCOConfig) *OCOMonitor {
	return &OCOMonitor{sub: sub, gw: gw, cfg: cfg}
}

// Execute validates, places both legs reduce-only, and monitors them
// until one resolves, the budget runs out, or ctx is canceled.
// A timeout is not fatal: the pair is returned with both legs open.
func (m *OCOMonitor) Execute(ctx context.Context, symbol string, posSide domain.PositionSide, qty, takeProfit, stopLoss decimal.Decimal) (*domain.OCOPair, error) {
	mark, err := m.sub.ReferencePrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("could not fetch current price for OCO validation: %w", err)
	}

	if err := validate.OCO(symbol, posSide, qty, takeProfit, stopLoss, mark); err != nil {
		return nil, err
	}

	// Closing a LONG takes SELL orders; closing a SHORT takes BUYs.
	orderSide := domain.SideSell
	if posSide == domain.PositionShort {
		orderSide = domain.SideBuy
	}

	slog.Info("Placing OCO pair",
		slog.String("symbol", symbol),
		slog.String("position_side", string(posSide)),
		slog.String("quantity", qty.String()),
		slog.String("take_profit", takeProfit.String()),
		slog.String("stop_loss", stopLoss.String()),
		slog.String("mark_price", mark.String()),
	)

	tpRec, err := m.sub.Submit(ctx, domain.OrderSpec{
		Symbol:      symbol,
		Side:        orderSide,
		Type:        domain.TypeTakeProfit,
		Quantity:    qty,
		Price:       takeProfit,
		StopPrice:   takeProfit,
		TimeInForce: domain.TifGTC,
		ReduceOnly:  true,
		WorkingType: domain.WorkingContractPrice,
	})
	if err != nil {
		return nil, fmt.Errorf("take-profit leg failed: %w", err)
	}

	slRec, err := m.sub.Submit(ctx, domain.OrderSpec{
		Symbol:      symbol,
		Side:        orderSide,
		Type:        domain.TypeStopLimit,
		Quantity:    qty,
		Price:       stopLoss,
		StopPrice:   stopLoss,
		TimeInForce: domain.TifGTC,
		ReduceOnly:  true,
		WorkingType: domain.WorkingContractPrice,
	})
	if err != nil {
		// Half an OCO is worse than none: unwind the TP leg.
		slog.Error("Stop-loss leg failed, canceling take-profit",
			slog.Int64("tp_order_id", tpRec.OrderID),
			slog.Any("error", err))
		if cancelErr := m.gw.CancelOrder(ctx, symbol, tpRec.OrderID); cancelErr != nil {
			slog.Error("Failed to cancel take-profit after stop-loss failure",
				slog.Int64("tp_order_id", tpRec.OrderID),
				slog.Any("error", cancelErr))
		}
		return nil, fmt.Errorf("failed to place complete OCO pair: %w", err)
	}

	pair := &domain.OCOPair{
		TakeProfit:   tpRec,
		StopLoss:     slRec,
		PositionSide: posSide,
		State:        domain.OCOPlaced,
	}

	slog.Info("OCO pair placed",
		slog.Int64("tp_order_id", tpRec.OrderID),
		slog.Int64("sl_order_id", slRec.OrderID),
	)

	if tpRec.Status == domain.StatusSimulated {
		slog.Info("DRY RUN: skipping OCO monitoring")
		pair.State = domain.OCOResolved
		return pair, nil
	}

	m.monitor(ctx, pair)
	return pair, nil
}

// monitor drives PLACED -> MONITORING -> RESOLVED/FAILED/TIMEOUT.
func (m *OCOMonitor) monitor(ctx context.Context, pair *domain.OCOPair) {
	pair.State = domain.OCOMonitoring
	deadline := time.Now().Add(m.cfg.Budget)
	symbol := pair.TakeProfit.Symbol

	for {
		if tp, err := m.gw.OrderStatus(ctx, symbol, pair.TakeProfit.OrderID); err == nil {
			pair.TakeProfit = tp
		} else {
			slog.Warn("Take-profit status poll failed", slog.Any("error", err))
		}
		if sl, err := m.gw.OrderStatus(ctx, symbol, pair.StopLoss.OrderID); err == nil {
			pair.StopLoss = sl
		} else {
			slog.Warn("Stop-loss status poll failed", slog.Any("error", err))
		}

		// RESOLVED requires the sibling confirmed terminal. A cancel
		// that fails transiently leaves the pair in MONITORING and is
		// re-attempted on the next poll until the budget runs out.
		switch {
		case pair.TakeProfit.FullyFilled():
			slog.Info("Take-profit filled, canceling stop-loss",
				slog.Int64("filled_order_id", pair.TakeProfit.OrderID))
			if m.cancelSibling(ctx, symbol, &pair.StopLoss) {
				pair.State = domain.OCOResolved
				return
			}

		case pair.StopLoss.FullyFilled():
			slog.Info("Stop-loss filled, canceling take-profit",
				slog.Int64("filled_order_id", pair.StopLoss.OrderID))
			if m.cancelSibling(ctx, symbol, &pair.TakeProfit) {
				pair.State = domain.OCOResolved
				return
			}

		case pair.TakeProfit.IsTerminal() && pair.StopLoss.IsTerminal():
			// Both gone without a fill: canceled externally or rejected.
			slog.Warn("Both OCO legs terminal without a fill",
				slog.String("tp_status", string(pair.TakeProfit.Status)),
				slog.String("sl_status", string(pair.StopLoss.Status)))
			pair.State = domain.OCOFailed
			return
		}

		if time.Now().After(deadline) {
			slog.Info("OCO monitoring budget exhausted",
				slog.Int64("tp_order_id", pair.TakeProfit.OrderID),
				slog.String("tp_status", string(pair.TakeProfit.Status)),
				slog.Int64("sl_order_id", pair.StopLoss.OrderID),
				slog.String("sl_status", string(pair.StopLoss.Status)))
			pair.State = domain.OCOTimeout
			return
		}

		select {
		case <-ctx.Done():
			slog.Info("OCO monitoring stopped, both legs remain open")
			pair.State = domain.OCOTimeout
			return
		case <-time.After(m.cfg.PollInterval):
		}
	}
}

// cancelSibling cancels the surviving leg and reports whether the
// sibling is confirmed terminal. A cancel that fails because the
// sibling filled concurrently is the client-side race the protocol
// allows; it is logged as an anomaly, not escalated. A transient
// failure returns false so the caller retries on its next poll.
func (m *OCOMonitor) cancelSibling(ctx context.Context, symbol string, sibling *domain.OrderRecord) bool {
	if sibling.IsTerminal() {
		return true
	}

	err := m.gw.CancelOrder(ctx, symbol, sibling.OrderID)
	if err == nil {
		sibling.Status = domain.StatusCanceled
		slog.Info("Sibling order canceled", slog.Int64("order_id", sibling.OrderID))
		return true
	}

	if exchange.IsUnknownOrder(err) {
		if rec, statusErr := m.gw.OrderStatus(ctx, symbol, sibling.OrderID); statusErr == nil {
			*sibling = rec
		}
		slog.Warn("RACE ANOMALY: sibling resolved before cancel landed",
			slog.Int64("order_id", sibling.OrderID),
			slog.String("status", string(sibling.Status)))
		return true
	}

	slog.Error("Failed to cancel sibling order, will retry on next poll",
		slog.Int64("order_id", sibling.OrderID),
		slog.Any("error", err))
	return false
}
