package execution

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"futures_bot/internal/domain"
	"futures_bot/internal/exchange"
	"futures_bot/internal/infra"
	"futures_bot/internal/precision"
	"futures_bot/internal/storage"
	"futures_bot/internal/validate"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LiveSubmitter submits real orders through the gateway. The pipeline
// per order is: precision adjustment, validation, placement with up to
// maxRetries retries on transient failures (exponential backoff).
// Exchange rejections are surfaced immediately, never retried.
type LiveSubmitter struct {
	gw         exchange.Gateway
	journal    *storage.Journal // nil-safe, optional
	maxRetries int

	mu    sync.Mutex
	rules map[string]domain.PrecisionRules
}

// NewLiveSubmitter creates a submitter over a gateway.
// journal may be nil.
func NewLiveSubmitter(gw exchange.Gateway, journal *storage.Journal, maxRetries int) *LiveSubmitter {
	return &LiveSubmitter{
		gw:         gw,
		journal:    journal,
		maxRetries: maxRetries,
		rules:      make(map[string]domain.PrecisionRules),
	}
}

// Rules fetches and caches the symbol filters.
func (s *LiveSubmitter) Rules(ctx context.Context, symbol string) (domain.PrecisionRules, error) {
	s.mu.Lock()
	cached, ok := s.rules[symbol]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	rules, err := s.gw.SymbolFilters(ctx, symbol)
	if err != nil {
		return domain.PrecisionRules{}, err
	}

	s.mu.Lock()
	s.rules[symbol] = rules
	s.mu.Unlock()
	return rules, nil
}

// ReferencePrice returns the current mark price.
func (s *LiveSubmitter) ReferencePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return s.gw.MarkPrice(ctx, symbol)
}

// Submit runs the full adjust/validate/place pipeline.
func (s *LiveSubmitter) Submit(ctx context.Context, spec domain.OrderSpec) (domain.OrderRecord, error) {
	rules, err := s.Rules(ctx, spec.Symbol)
	if err != nil {
		return domain.OrderRecord{}, err
	}

	adjusted, err := precision.AdjustSpec(spec, rules)
	if err != nil {
		return domain.OrderRecord{}, err
	}

	// Mark price is advisory for price-relation checks; placement can
	// proceed without it and let the exchange be the judge.
	mark, err := s.gw.MarkPrice(ctx, spec.Symbol)
	if err != nil {
		slog.Warn("Could not fetch mark price, skipping price-relation checks",
			slog.String("symbol", spec.Symbol),
			slog.Any("error", err))
		mark = decimal.Zero
	}

	if err := validate.Spec(adjusted, rules, mark); err != nil {
		return domain.OrderRecord{}, err
	}

	if adjusted.ClientOrderID == "" {
		adjusted.ClientOrderID = uuid.NewString()
	}

	slog.Info("Submitting order",
		slog.String("symbol", adjusted.Symbol),
		slog.String("side", string(adjusted.Side)),
		slog.String("type", string(adjusted.Type)),
		slog.String("quantity", adjusted.Quantity.String()),
		slog.String("price", adjusted.Price.String()),
		slog.String("stop_price", adjusted.StopPrice.String()),
		slog.Bool("reduce_only", adjusted.ReduceOnly),
		slog.String("client_order_id", adjusted.ClientOrderID),
	)

	record, err := s.placeWithRetry(ctx, adjusted)
	if err != nil {
		return domain.OrderRecord{}, err
	}

	slog.Info("Order placed",
		slog.Int64("order_id", record.OrderID),
		slog.String("symbol", record.Symbol),
		slog.String("status", string(record.Status)),
		slog.String("executed_qty", record.ExecutedQty.String()),
		slog.String("avg_price", record.AvgPrice.String()),
	)

	if s.journal != nil {
		if err := s.journal.RecordOrder(ctx, record); err != nil {
			slog.Warn("Failed to journal order", slog.Int64("order_id", record.OrderID), slog.Any("error", err))
		}
	}
	return record, nil
}

// placeWithRetry retries transient failures with 1s, 2s, 4s backoff.
func (s *LiveSubmitter) placeWithRetry(ctx context.Context, spec domain.OrderSpec) (domain.OrderRecord, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			delay := infra.CalculateBackoff(attempt - 1)
			slog.Info("Retrying order placement",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return domain.OrderRecord{}, &domain.TransientError{Op: "placeOrder", Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		record, err := s.gw.PlaceOrder(ctx, spec)
		if err == nil {
			return record, nil
		}

		var transient *domain.TransientError
		if !errors.As(err, &transient) {
			return domain.OrderRecord{}, err
		}
		lastErr = err
		slog.Warn("Order placement attempt failed",
			slog.Int("attempt", attempt+1),
			slog.Any("error", err))
	}
	return domain.OrderRecord{}, lastErr
}
