package strategy

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"futures_bot/internal/domain"
	"futures_bot/internal/execution"
	"futures_bot/internal/precision"
	"futures_bot/internal/validate"

	"github.com/shopspring/decimal"
)

const (
	maxSlices = 100
	// Randomized slices deviate at most this much from the even split.
	jitterPct = 20
)

// TWAPConfig tunes a time-sliced execution.
type TWAPConfig struct {
	Randomize bool
	DryRun    bool
}

// TWAPScheduler splits a total quantity into timed market-order
// slices. Already-submitted slices are never rolled back; a rejected
// slice is recorded and the remaining slices continue.
type TWAPScheduler struct {
	sub execution.Submitter
	cfg TWAPConfig
	rng *rand.Rand
}

// NewTWAPScheduler creates a scheduler.
func NewTWAPScheduler(sub execution.Submitter, cfg TWAPConfig) *TWAPScheduler {
	return &TWAPScheduler{
		sub: sub,
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Execute runs the plan: validate, slice, submit each slice, sleep
// between slices. The returned report lists per-slice outcomes; only
// plan-construction failures produce an error.
func (s *TWAPScheduler) Execute(ctx context.Context, symbol string, side domain.Side, totalQty decimal.Decimal, sliceCount int, interval time.Duration) (*domain.TWAPReport, error) {
	if err := validate.Symbol(symbol); err != nil {
		return nil, err
	}
	if side != domain.SideBuy && side != domain.SideSell {
		return nil, domain.NewValidationError("side", "must be BUY or SELL, got %q", side)
	}
	if !totalQty.IsPositive() {
		return nil, domain.NewValidationError("totalQuantity", "must be strictly positive, got %s", totalQty)
	}
	if sliceCount < 1 {
		return nil, domain.NewValidationError("sliceCount", "must be at least 1, got %d", sliceCount)
	}
	if sliceCount > maxSlices {
		return nil, domain.NewValidationError("sliceCount", "must be at most %d, got %d", maxSlices, sliceCount)
	}
	if interval < time.Second {
		return nil, domain.NewValidationError("intervalSeconds", "must be at least 1 second, got %s", interval)
	}

	rules, err := s.sub.Rules(ctx, symbol)
	if err != nil {
		return nil, err
	}

	total := totalQty
	if rules.StepSize.IsPositive() {
		total, err = precision.Adjust("totalQuantity", totalQty, rules.StepSize)
		if err != nil {
			return nil, err
		}
	}

	slices, err := s.computeSlices(total, sliceCount, rules.StepSize)
	if err != nil {
		return nil, err
	}

	report := &domain.TWAPReport{
		Symbol:        symbol,
		Side:          side,
		TotalQuantity: total,
		SliceCount:    sliceCount,
		Interval:      interval,
		Randomized:    s.cfg.Randomize,
		DryRun:        s.cfg.DryRun,
		StartedAt:     time.Now(),
	}
	if start, priceErr := s.sub.ReferencePrice(ctx, symbol); priceErr == nil {
		report.StartPrice = start
	}

	slog.Info("TWAP execution starting",
		slog.String("symbol", symbol),
		slog.String("side", string(side)),
		slog.String("total_quantity", total.String()),
		slog.Int("slices", sliceCount),
		slog.Duration("interval", interval),
		slog.Bool("randomize", s.cfg.Randomize),
		slog.Bool("dry_run", s.cfg.DryRun),
	)

	totalExecuted := decimal.Zero
	totalCost := decimal.Zero

	for i, sliceQty := range slices {
		sliceNum := i + 1
		result := domain.SliceResult{Slice: sliceNum, SubmittedAt: time.Now()}

		rec, err := s.sub.Submit(ctx, domain.OrderSpec{
			Symbol:   symbol,
			Side:     side,
			Type:     domain.TypeMarket,
			Quantity: sliceQty,
		})
		if err != nil {
			slog.Error("TWAP slice failed",
				slog.Int("slice", sliceNum),
				slog.Int("of", sliceCount),
				slog.Any("error", err))
			result.Err = err
		} else {
			result.Record = rec
			totalExecuted = totalExecuted.Add(rec.ExecutedQty)
			totalCost = totalCost.Add(rec.ExecutedQty.Mul(rec.AvgPrice))
			slog.Info("TWAP slice executed",
				slog.Int("slice", sliceNum),
				slog.Int("of", sliceCount),
				slog.String("quantity", sliceQty.String()),
				slog.String("executed_total", totalExecuted.String()))
		}
		report.Slices = append(report.Slices, result)

		if sliceNum < sliceCount {
			select {
			case <-ctx.Done():
				slog.Info("TWAP stopped between slices",
					slog.Int("completed", sliceNum),
					slog.Int("of", sliceCount))
				s.finish(ctx, report, totalExecuted, totalCost)
				return report, nil
			case <-time.After(interval):
			}
		}
	}

	s.finish(ctx, report, totalExecuted, totalCost)
	slog.Info("TWAP execution completed",
		slog.String("total_executed", report.TotalExecuted.String()),
		slog.String("avg_price", report.AvgPrice.String()),
		slog.Int("failed_slices", len(report.Failed())))
	return report, nil
}

func (s *TWAPScheduler) finish(ctx context.Context, report *domain.TWAPReport, executed, cost decimal.Decimal) {
	report.TotalExecuted = executed
	if executed.IsPositive() {
		report.AvgPrice = cost.Div(executed)
	}
	if end, err := s.sub.ReferencePrice(ctx, report.Symbol); err == nil {
		report.EndPrice = end
	}
	report.FinishedAt = time.Now()
}

// computeSlices splits total into sliceCount parts whose sum is
// exactly total. Every slice except the last is a multiple of step;
// the last slice absorbs the remainder so no drift accumulates.
func (s *TWAPScheduler) computeSlices(total decimal.Decimal, sliceCount int, step decimal.Decimal) ([]decimal.Decimal, error) {
	n := decimal.NewFromInt(int64(sliceCount))
	base := total.Div(n)
	if step.IsPositive() {
		base = base.Div(step).Floor().Mul(step)
		if !base.IsPositive() {
			return nil, domain.NewValidationError("sliceCount",
				"slice quantity %s collapses below step size %s; reduce slice count",
				total.Div(n), step)
		}
	}

	slices := make([]decimal.Decimal, 0, sliceCount)
	remaining := total

	for i := 0; i < sliceCount-1; i++ {
		qty := base
		if s.cfg.Randomize {
			// factor in [1-jitter, 1+jitter]
			factor := 1 + (s.rng.Float64()*2-1)*jitterPct/100
			qty = base.Mul(decimal.NewFromFloat(factor))
			if step.IsPositive() {
				qty = qty.Div(step).Floor().Mul(step)
			}
			// Leave at least base room for every remaining slice.
			slicesLeft := decimal.NewFromInt(int64(sliceCount - i - 1))
			maxQty := remaining.Sub(slicesLeft.Mul(minUnit(base, step)))
			if qty.GreaterThan(maxQty) {
				qty = maxQty
			}
			if !qty.IsPositive() {
				qty = minUnit(base, step)
			}
		}
		slices = append(slices, qty)
		remaining = remaining.Sub(qty)
	}
	slices = append(slices, remaining)
	return slices, nil
}

// minUnit is the smallest quantity a slice may shrink to under jitter.
func minUnit(base, step decimal.Decimal) decimal.Decimal {
	if step.IsPositive() {
		return step
	}
	return base.Div(decimal.NewFromInt(5)) // 20% of the even split
}
