// Package validate checks order parameters before any network call.
// Validation is fail-fast: the first violated rule is reported and
// checking stops.
package validate

import (
	"regexp"

	"futures_bot/internal/domain"

	"github.com/shopspring/decimal"
)

// USDT-margined futures pairs only, e.g. BTCUSDT, 1000PEPEUSDT.
var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{2,}USDT$`)

// Symbol checks the trading pair format.
func Symbol(symbol string) error {
	if !symbolPattern.MatchString(symbol) {
		return domain.NewValidationError("symbol", "%q does not match a USDT futures pair", symbol)
	}
	return nil
}

// Spec validates a precision-adjusted order spec against the symbol
// filters and the current mark price. markPrice may be zero when the
// caller could not fetch it; price-relation rules are then skipped.
func Spec(spec domain.OrderSpec, rules domain.PrecisionRules, markPrice decimal.Decimal) error {
	if err := Symbol(spec.Symbol); err != nil {
		return err
	}
	if spec.Side != domain.SideBuy && spec.Side != domain.SideSell {
		return domain.NewValidationError("side", "must be BUY or SELL, got %q", spec.Side)
	}
	if !spec.Quantity.IsPositive() {
		return domain.NewValidationError("quantity", "must be strictly positive, got %s", spec.Quantity)
	}
	if spec.Type != domain.TypeMarket && !spec.Price.IsPositive() {
		return domain.NewValidationError("price", "must be strictly positive, got %s", spec.Price)
	}
	if rules.MinQty.IsPositive() && spec.Quantity.LessThan(rules.MinQty) {
		return domain.NewValidationError("quantity", "%s below exchange minimum %s", spec.Quantity, rules.MinQty)
	}
	if spec.Price.IsPositive() && rules.MinNotional.IsPositive() {
		notional := spec.Quantity.Mul(spec.Price)
		if notional.LessThan(rules.MinNotional) {
			return domain.NewValidationError("notional",
				"order value %s below exchange minimum %s (quantity %s x price %s)",
				notional, rules.MinNotional, spec.Quantity, spec.Price)
		}
	}

	switch spec.Type {
	case domain.TypeMarket, domain.TypeLimit:
		return nil
	case domain.TypeStopLimit:
		return stopRelation(spec, markPrice)
	case domain.TypeTakeProfit:
		return takeProfitRelation(spec, markPrice)
	default:
		return domain.NewValidationError("type", "unknown order type %q", spec.Type)
	}
}

// stopRelation checks that a stop-limit's trigger and limit prices sit
// on the side of the market the order direction implies. A SELL stop
// arms below the current price, a BUY stop above; otherwise the order
// would trigger immediately.
func stopRelation(spec domain.OrderSpec, markPrice decimal.Decimal) error {
	if !spec.StopPrice.IsPositive() {
		return domain.NewValidationError("stopPrice", "must be strictly positive, got %s", spec.StopPrice)
	}
	if !markPrice.IsPositive() {
		return nil
	}

	if spec.Side == domain.SideSell {
		if spec.StopPrice.GreaterThanOrEqual(markPrice) {
			return domain.NewValidationError("stopPrice",
				"SELL stop %s must be below current price %s", spec.StopPrice, markPrice)
		}
		if spec.Price.GreaterThanOrEqual(markPrice) {
			return domain.NewValidationError("price",
				"SELL stop-limit price %s must be below current price %s", spec.Price, markPrice)
		}
	} else {
		if spec.StopPrice.LessThanOrEqual(markPrice) {
			return domain.NewValidationError("stopPrice",
				"BUY stop %s must be above current price %s", spec.StopPrice, markPrice)
		}
		if spec.Price.LessThanOrEqual(markPrice) {
			return domain.NewValidationError("price",
				"BUY stop-limit price %s must be above current price %s", spec.Price, markPrice)
		}
	}
	return nil
}

// takeProfitRelation is the mirror of stopRelation: a SELL take-profit
// arms above the market, a BUY take-profit below.
func takeProfitRelation(spec domain.OrderSpec, markPrice decimal.Decimal) error {
	if !spec.StopPrice.IsPositive() {
		return domain.NewValidationError("stopPrice", "must be strictly positive, got %s", spec.StopPrice)
	}
	if !markPrice.IsPositive() {
		return nil
	}

	if spec.Side == domain.SideSell {
		if spec.StopPrice.LessThanOrEqual(markPrice) {
			return domain.NewValidationError("stopPrice",
				"SELL take-profit %s must be above current price %s", spec.StopPrice, markPrice)
		}
	} else {
		if spec.StopPrice.GreaterThanOrEqual(markPrice) {
			return domain.NewValidationError("stopPrice",
				"BUY take-profit %s must be below current price %s", spec.StopPrice, markPrice)
		}
	}
	return nil
}

// OCO validates the take-profit / stop-loss pair for a position before
// either leg is placed. Prices must straddle the current price in the
// direction the position side implies.
func OCO(symbol string, posSide domain.PositionSide, qty, takeProfit, stopLoss, markPrice decimal.Decimal) error {
	if err := Symbol(symbol); err != nil {
		return err
	}
	if posSide != domain.PositionLong && posSide != domain.PositionShort {
		return domain.NewValidationError("positionSide", "must be LONG or SHORT, got %q", posSide)
	}
	if !qty.IsPositive() {
		return domain.NewValidationError("quantity", "must be strictly positive, got %s", qty)
	}
	if !takeProfit.IsPositive() {
		return domain.NewValidationError("takeProfitPrice", "must be strictly positive, got %s", takeProfit)
	}
	if !stopLoss.IsPositive() {
		return domain.NewValidationError("stopLossPrice", "must be strictly positive, got %s", stopLoss)
	}

	if posSide == domain.PositionLong {
		if takeProfit.LessThanOrEqual(stopLoss) {
			return domain.NewValidationError("takeProfitPrice",
				"LONG take-profit %s must be above stop-loss %s", takeProfit, stopLoss)
		}
	} else {
		if takeProfit.GreaterThanOrEqual(stopLoss) {
			return domain.NewValidationError("takeProfitPrice",
				"SHORT take-profit %s must be below stop-loss %s", takeProfit, stopLoss)
		}
	}

	if !markPrice.IsPositive() {
		return nil
	}

	if posSide == domain.PositionLong {
		// Exit orders for a LONG are SELLs: TP above market, SL below.
		if takeProfit.LessThanOrEqual(markPrice) {
			return domain.NewValidationError("takeProfitPrice",
				"LONG take-profit %s must be above current price %s or it would trigger immediately", takeProfit, markPrice)
		}
		if stopLoss.GreaterThanOrEqual(markPrice) {
			return domain.NewValidationError("stopLossPrice",
				"LONG stop-loss %s must be below current price %s", stopLoss, markPrice)
		}
	} else {
		// Exit orders for a SHORT are BUYs: TP below market, SL above.
		if takeProfit.GreaterThanOrEqual(markPrice) {
			return domain.NewValidationError("takeProfitPrice",
				"SHORT take-profit %s must be below current price %s or it would trigger immediately", takeProfit, markPrice)
		}
		if stopLoss.LessThanOrEqual(markPrice) {
			return domain.NewValidationError("stopLossPrice",
				"SHORT stop-loss %s must be above current price %s", stopLoss, markPrice)
		}
	}
	return nil
}
