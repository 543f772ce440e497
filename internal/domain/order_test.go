package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSide_Opposite(t *testing.T) {
	if SideBuy.Opposite() != SideSell {
		t.Error("BUY opposite should be SELL")
	}
	if SideSell.Opposite() != SideBuy {
		t.Error("SELL opposite should be BUY")
	}
}

func TestOrderRecord_Lifecycle(t *testing.T) {
	tests := []struct {
		status   OrderStatus
		open     bool
		terminal bool
	}{
		{StatusNew, true, false},
		{StatusPartiallyFilled, true, false},
		{StatusFilled, false, true},
		{StatusCanceled, false, true},
		{StatusRejected, false, true},
		{StatusExpired, false, true},
		{StatusSimulated, false, false},
	}
	for _, tt := range tests {
		rec := OrderRecord{Status: tt.status}
		if rec.IsOpen() != tt.open {
			t.Errorf("%s: IsOpen() = %v, want %v", tt.status, rec.IsOpen(), tt.open)
		}
		if rec.IsTerminal() != tt.terminal {
			t.Errorf("%s: IsTerminal() = %v, want %v", tt.status, rec.IsTerminal(), tt.terminal)
		}
	}
}

func TestOrderRecord_FullyFilled(t *testing.T) {
	qty := decimal.RequireFromString("0.01")

	filled := OrderRecord{Status: StatusFilled, OrigQty: qty, ExecutedQty: qty}
	if !filled.FullyFilled() {
		t.Error("FILLED order should be fully filled")
	}

	// Status lagging behind the final fill still counts.
	lagging := OrderRecord{Status: StatusPartiallyFilled, OrigQty: qty, ExecutedQty: qty}
	if !lagging.FullyFilled() {
		t.Error("PARTIALLY_FILLED with full executed quantity should count")
	}

	partial := OrderRecord{Status: StatusPartiallyFilled, OrigQty: qty, ExecutedQty: decimal.RequireFromString("0.005")}
	if partial.FullyFilled() {
		t.Error("half-filled order reported as fully filled")
	}

	open := OrderRecord{Status: StatusNew, OrigQty: qty}
	if open.FullyFilled() {
		t.Error("NEW order reported as fully filled")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	verr := NewValidationError("quantity", "must be positive, got %s", "-1")
	if verr.Field != "quantity" {
		t.Errorf("field = %s, want quantity", verr.Field)
	}
	var asV *ValidationError
	if !errors.As(error(verr), &asV) {
		t.Error("ValidationError not matched by errors.As")
	}

	inner := errors.New("connection reset")
	terr := &TransientError{Op: "POST /fapi/v1/order", Err: inner}
	if !errors.Is(terr, inner) {
		t.Error("TransientError should unwrap to its cause")
	}

	rerr := &OrderRejectedError{Op: "POST /fapi/v1/order", Code: -2019, Reason: "Margin is insufficient."}
	if rerr.Error() == "" {
		t.Error("rejection error message is empty")
	}
}
