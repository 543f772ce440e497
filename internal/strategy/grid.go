package strategy

import (
	"context"
	"fmt"
	"log/slog"

	"futures_bot/internal/domain"
	"futures_bot/internal/exchange"
	"futures_bot/internal/execution"
	"futures_bot/internal/storage"

	"github.com/shopspring/decimal"
)

const (
	minGridLevels = 2
	maxGridLevels = 50
)

// GridConfig tunes grid deployment.
type GridConfig struct {
	// SkipAtMarket skips levels that land exactly on the current
	// price instead of placing an immediately-matching buy.
	SkipAtMarket bool
}

// GridManager lays evenly spaced limit orders inside a price range:
// buys below the current price, sells above. Order ids are registered
// in the journal so a later cancel-all can find them even after a
// process restart.
type GridManager struct {
	sub     execution.Submitter
	gw      exchange.Gateway
	journal *storage.Journal
	cfg     GridConfig
}

// NewGridManager creates a grid manager. journal may be nil; the
// cancel-all sweep then falls back to canceling every open order on
// the symbol.
func NewGridManager(sub execution.Submitter, gw exchange.Gateway, journal *storage.Journal, cfg GridConfig) *GridManager {
	return &GridManager{sub: sub, gw: gw, journal: journal, cfg: cfg}
}

// Deploy validates the range, computes the level ladder and places one
// limit order per level. A rejected level is recorded in the plan and
// deployment continues with the remaining levels.
func (g *GridManager) Deploy(ctx context.Context, symbol string, lower, upper decimal.Decimal, levelCount int, qtyPerLevel decimal.Decimal) (*domain.GridPlan, error) {
	if !lower.IsPositive() {
		return nil, domain.NewValidationError("lowerPrice", "must be strictly positive, got %s", lower)
	}
	if upper.LessThanOrEqual(lower) {
		return nil, domain.NewValidationError("upperPrice",
			"must be above lower price, got upper=%s lower=%s", upper, lower)
	}
	if levelCount < minGridLevels || levelCount > maxGridLevels {
		return nil, domain.NewValidationError("levels",
			"must be between %d and %d, got %d", minGridLevels, maxGridLevels, levelCount)
	}
	if !qtyPerLevel.IsPositive() {
		return nil, domain.NewValidationError("quantityPerLevel", "must be strictly positive, got %s", qtyPerLevel)
	}

	mark, err := g.sub.ReferencePrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("could not fetch current price for grid placement: %w", err)
	}

	rules, err := g.sub.Rules(ctx, symbol)
	if err != nil {
		return nil, err
	}

	plan := &domain.GridPlan{
		Symbol:           symbol,
		LowerPrice:       lower,
		UpperPrice:       upper,
		LevelCount:       levelCount,
		QuantityPerLevel: qtyPerLevel,
		MarkPrice:        mark,
		Levels:           computeLevels(lower, upper, levelCount, rules.TickSize),
		ActiveOrderIDs:   make(map[int64]struct{}),
	}

	slog.Info("Deploying grid",
		slog.String("symbol", symbol),
		slog.String("lower", lower.String()),
		slog.String("upper", upper.String()),
		slog.Int("levels", levelCount),
		slog.String("quantity_per_level", qtyPerLevel.String()),
		slog.String("mark_price", mark.String()),
	)

	for i := range plan.Levels {
		level := &plan.Levels[i]
		if level.Skipped {
			slog.Info("Skipping duplicate grid level after tick rounding",
				slog.Int("level", level.Index),
				slog.String("price", level.Price.String()))
			continue
		}

		switch {
		case level.Price.LessThan(mark):
			level.Side = domain.SideBuy
		case level.Price.GreaterThan(mark):
			level.Side = domain.SideSell
		default:
			if g.cfg.SkipAtMarket {
				level.Skipped = true
				slog.Info("Skipping grid level at current price",
					slog.Int("level", level.Index),
					slog.String("price", level.Price.String()))
				continue
			}
			// At-market level placed as a buy; it may match immediately.
			level.Side = domain.SideBuy
		}

		rec, err := g.sub.Submit(ctx, domain.OrderSpec{
			Symbol:      symbol,
			Side:        level.Side,
			Type:        domain.TypeLimit,
			Quantity:    qtyPerLevel,
			Price:       level.Price,
			TimeInForce: domain.TifGTC,
		})
		if err != nil {
			slog.Error("Grid level failed",
				slog.Int("level", level.Index),
				slog.String("price", level.Price.String()),
				slog.Any("error", err))
			level.Err = err
			continue
		}

		level.Record = rec
		plan.ActiveOrderIDs[rec.OrderID] = struct{}{}
		if g.journal != nil {
			if jerr := g.journal.AddGridOrder(ctx, symbol, rec); jerr != nil {
				slog.Warn("Failed to register grid order in journal",
					slog.Int64("order_id", rec.OrderID),
					slog.Any("error", jerr))
			}
		}
		slog.Info("Grid level placed",
			slog.Int("level", level.Index),
			slog.String("side", string(level.Side)),
			slog.String("price", level.Price.String()),
			slog.Int64("order_id", rec.OrderID))
	}

	slog.Info("Grid deployed",
		slog.Int("placed", plan.Placed()),
		slog.Int("of", levelCount))
	return plan, nil
}

// CancelAll cancels every grid order registered for the symbol. An
// order the exchange no longer knows about counts as already resolved.
// The registry is cleared only after every id has been attempted.
// Without a journal the sweep falls back to canceling all open orders
// on the symbol.
func (g *GridManager) CancelAll(ctx context.Context, symbol string) (int, error) {
	var ids []int64
	if g.journal != nil {
		var err error
		ids, err = g.journal.GridOrderIDs(ctx, symbol)
		if err != nil {
			return 0, err
		}
	}

	if len(ids) == 0 {
		slog.Info("No registered grid orders, canceling all open orders", slog.String("symbol", symbol))
		if err := g.gw.CancelAllOpen(ctx, symbol); err != nil {
			return 0, err
		}
		return 0, nil
	}

	canceled := 0
	var failures int
	for _, id := range ids {
		err := g.gw.CancelOrder(ctx, symbol, id)
		switch {
		case err == nil:
			canceled++
		case exchange.IsUnknownOrder(err):
			// Filled or already canceled; nothing left to do.
			slog.Info("Grid order already resolved", slog.Int64("order_id", id))
			canceled++
		default:
			failures++
			slog.Error("Failed to cancel grid order",
				slog.Int64("order_id", id),
				slog.Any("error", err))
		}
	}

	if g.journal != nil {
		if err := g.journal.ClearGridOrders(ctx, symbol); err != nil {
			slog.Warn("Failed to clear grid registry", slog.Any("error", err))
		}
	}

	slog.Info("Grid cancel sweep done",
		slog.Int("canceled", canceled),
		slog.Int("failed", failures),
		slog.Int("of", len(ids)))
	if failures > 0 {
		return canceled, fmt.Errorf("%d of %d grid orders could not be canceled", failures, len(ids))
	}
	return canceled, nil
}

// computeLevels spreads levelCount prices evenly across [lower, upper]
// and rounds each to the tick. Rounding can collapse neighbors onto
// the same tick; duplicates are marked skipped so only one order sits
// per price.
func computeLevels(lower, upper decimal.Decimal, levelCount int, tick decimal.Decimal) []domain.GridLevel {
	step := upper.Sub(lower).Div(decimal.NewFromInt(int64(levelCount - 1)))

	levels := make([]domain.GridLevel, 0, levelCount)
	var prev decimal.Decimal
	for i := 0; i < levelCount; i++ {
		price := lower.Add(step.Mul(decimal.NewFromInt(int64(i))))
		if i == levelCount-1 {
			price = upper // no rounding drift on the boundary
		}
		if tick.IsPositive() {
			price = price.Div(tick).Floor().Mul(tick)
		}
		level := domain.GridLevel{Index: i + 1, Price: price}
		if i > 0 && !price.GreaterThan(prev) {
			level.Skipped = true
		} else {
			prev = price
		}
		levels = append(levels, level)
	}
	return levels
}
