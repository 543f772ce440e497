// Package exchange talks to the Binance USDT-M futures API. It is the
// only package that touches the network.
package exchange

import (
	"context"

	"futures_bot/internal/domain"

	"github.com/shopspring/decimal"
)

// Gateway defines the exchange operations the strategies need.
type Gateway interface {
	// PlaceOrder submits a new order.
	PlaceOrder(ctx context.Context, spec domain.OrderSpec) (domain.OrderRecord, error)

	// CancelOrder cancels an open order by exchange id.
	CancelOrder(ctx context.Context, symbol string, orderID int64) error

	// CancelAllOpen cancels every open order on a symbol.
	CancelAllOpen(ctx context.Context, symbol string) error

	// OrderStatus fetches the current state of an order.
	OrderStatus(ctx context.Context, symbol string, orderID int64) (domain.OrderRecord, error)

	// SymbolFilters fetches the precision rules for a symbol.
	SymbolFilters(ctx context.Context, symbol string) (domain.PrecisionRules, error)

	// MarkPrice fetches the current mark price for a symbol.
	MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}
