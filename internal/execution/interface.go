// Package execution is the single point of contact between the
// strategies and the exchange gateway.
package execution

import (
	"context"

	"futures_bot/internal/domain"

	"github.com/shopspring/decimal"
)

// Submitter places orders on behalf of a strategy. Implementations
// own precision adjustment, validation, and retry policy so the
// strategies never talk to the gateway for placement directly.
type Submitter interface {
	// Submit adjusts, validates and places one order.
	Submit(ctx context.Context, spec domain.OrderSpec) (domain.OrderRecord, error)

	// Rules returns the precision rules for a symbol, cached for the
	// lifetime of the submitter (one strategy invocation).
	Rules(ctx context.Context, symbol string) (domain.PrecisionRules, error)

	// ReferencePrice returns the price strategies compare levels
	// against. Zero means unknown.
	ReferencePrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}
