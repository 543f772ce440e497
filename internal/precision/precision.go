// Package precision rounds prices and quantities down to the
// tick/step sizes mandated by the exchange filters.
package precision

import (
	"futures_bot/internal/domain"

	"github.com/shopspring/decimal"
)

// Adjust floors value to the nearest multiple of step. It never rounds
// up: exceeding a user's stated price or an exchange limit is worse
// than leaving a fraction unfilled. A non-positive result is a
// PrecisionError.
func Adjust(field string, value, step decimal.Decimal) (decimal.Decimal, error) {
	if step.IsZero() || step.IsNegative() {
		return value, nil // no filter published for this symbol
	}

	adjusted := value.Div(step).Floor().Mul(step)
	if !adjusted.IsPositive() {
		return decimal.Zero, &domain.PrecisionError{
			Field: field,
			Value: value.String(),
			Step:  step.String(),
		}
	}
	return adjusted, nil
}

// AdjustSpec returns a copy of spec with quantity floored to the step
// size and prices floored to the tick size.
func AdjustSpec(spec domain.OrderSpec, rules domain.PrecisionRules) (domain.OrderSpec, error) {
	qty, err := Adjust("quantity", spec.Quantity, rules.StepSize)
	if err != nil {
		return spec, err
	}
	spec.Quantity = qty

	if spec.Price.IsPositive() {
		price, err := Adjust("price", spec.Price, rules.TickSize)
		if err != nil {
			return spec, err
		}
		spec.Price = price
	}
	if spec.StopPrice.IsPositive() {
		stop, err := Adjust("stopPrice", spec.StopPrice, rules.TickSize)
		if err != nil {
			return spec, err
		}
		spec.StopPrice = stop
	}
	return spec, nil
}
