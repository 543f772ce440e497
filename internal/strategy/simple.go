// Package strategy turns user trading intent into exchange orders:
// one-shot market/limit/stop-limit placement plus the supervised
// OCO, TWAP and grid strategies.
package strategy

import (
	"context"

	"futures_bot/internal/domain"
	"futures_bot/internal/execution"

	"github.com/shopspring/decimal"
)

// Market places a market order.
func Market(ctx context.Context, sub execution.Submitter, symbol string, side domain.Side, qty decimal.Decimal, reduceOnly bool) (domain.OrderRecord, error) {
	spec := domain.OrderSpec{
		Symbol:     symbol,
		Side:       side,
		Type:       domain.TypeMarket,
		Quantity:   qty,
		ReduceOnly: reduceOnly,
	}
	return sub.Submit(ctx, spec)
}

// Limit places a limit order. postOnly forces GTX regardless of the
// requested time-in-force.
func Limit(ctx context.Context, sub execution.Submitter, symbol string, side domain.Side, qty, price decimal.Decimal, tif domain.TimeInForce, reduceOnly, postOnly bool) (domain.OrderRecord, error) {
	if tif == "" {
		tif = domain.TifGTC
	}
	if postOnly {
		tif = domain.TifGTX
	}
	spec := domain.OrderSpec{
		Symbol:      symbol,
		Side:        side,
		Type:        domain.TypeLimit,
		Quantity:    qty,
		Price:       price,
		TimeInForce: tif,
		ReduceOnly:  reduceOnly,
	}
	return sub.Submit(ctx, spec)
}

// StopLimit places a stop-limit order: a limit order at limitPrice
// armed when the market crosses stopPrice.
func StopLimit(ctx context.Context, sub execution.Submitter, symbol string, side domain.Side, qty, stopPrice, limitPrice decimal.Decimal, reduceOnly bool, workingType domain.WorkingType) (domain.OrderRecord, error) {
	spec := domain.OrderSpec{
		Symbol:      symbol,
		Side:        side,
		Type:        domain.TypeStopLimit,
		Quantity:    qty,
		Price:       limitPrice,
		StopPrice:   stopPrice,
		TimeInForce: domain.TifGTC,
		ReduceOnly:  reduceOnly,
		WorkingType: workingType,
	}
	return sub.Submit(ctx, spec)
}
