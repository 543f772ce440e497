package domain

import (
	"github.com/shopspring/decimal"
)

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType is the closed set of order variants this bot places.
// Wire names match Binance USDT-M futures.
type OrderType string

const (
	TypeMarket     OrderType = "MARKET"
	TypeLimit      OrderType = "LIMIT"
	TypeStopLimit  OrderType = "STOP"        // stop-limit: limit order armed by stopPrice
	TypeTakeProfit OrderType = "TAKE_PROFIT" // take-profit limit, used by the OCO TP leg
)

// TimeInForce values accepted by the exchange. GTX is post-only.
type TimeInForce string

const (
	TifGTC TimeInForce = "GTC"
	TifIOC TimeInForce = "IOC"
	TifFOK TimeInForce = "FOK"
	TifGTX TimeInForce = "GTX"
)

// WorkingType selects the reference price for stop triggers.
type WorkingType string

const (
	WorkingContractPrice WorkingType = "CONTRACT_PRICE"
	WorkingMarkPrice     WorkingType = "MARK_PRICE"
)

// PositionSide identifies which position an OCO pair protects.
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
)

// OrderSpec is a fully described order, immutable once built.
// Quantity and prices must already satisfy exchange precision before
// submission.
type OrderSpec struct {
	Symbol        string
	Side          Side
	Type          OrderType
	Quantity      decimal.Decimal
	Price         decimal.Decimal // zero for MARKET
	StopPrice     decimal.Decimal // zero unless STOP / TAKE_PROFIT
	TimeInForce   TimeInForce     // empty for MARKET
	ReduceOnly    bool
	WorkingType   WorkingType // empty means exchange default (CONTRACT_PRICE)
	ClientOrderID string
}

// PrecisionRules holds the per-symbol exchange filters.
// Fetched once per strategy invocation, never mutated.
type PrecisionRules struct {
	Symbol      string
	TickSize    decimal.Decimal
	StepSize    decimal.Decimal
	MinQty      decimal.Decimal
	MinNotional decimal.Decimal
}

// OrderStatus is the exchange-reported lifecycle state.
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusRejected        OrderStatus = "REJECTED"
	StatusExpired         OrderStatus = "EXPIRED"
	StatusSimulated       OrderStatus = "SIMULATED" // dry-run only, never on the wire
)

// OrderRecord is the exchange's view of an order. Read-only to the
// strategies that poll it.
type OrderRecord struct {
	OrderID       int64
	ClientOrderID string
	Symbol        string
	Side          Side
	Type          OrderType
	Status        OrderStatus
	Price         decimal.Decimal
	AvgPrice      decimal.Decimal
	OrigQty       decimal.Decimal
	ExecutedQty   decimal.Decimal
	UpdateTimeMS  int64
}

// IsOpen reports whether the order can still fill.
func (r *OrderRecord) IsOpen() bool {
	return r.Status == StatusNew || r.Status == StatusPartiallyFilled
}

// IsTerminal reports whether no further transitions are possible.
func (r *OrderRecord) IsTerminal() bool {
	switch r.Status {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// FullyFilled reports whether the entire original quantity executed.
// A PARTIALLY_FILLED order whose executed quantity already equals the
// original counts too; the status update may lag the last fill.
func (r *OrderRecord) FullyFilled() bool {
	if r.Status == StatusFilled {
		return true
	}
	return r.Status == StatusPartiallyFilled &&
		r.OrigQty.IsPositive() &&
		r.ExecutedQty.GreaterThanOrEqual(r.OrigQty)
}
