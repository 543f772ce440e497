package precision

import (
	"errors"
	"testing"

	"futures_bot/internal/domain"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestAdjust_FloorsToStep(t *testing.T) {
	tests := []struct {
		name  string
		value string
		step  string
		want  string
	}{
		{"already aligned", "50000.0", "0.1", "50000"},
		{"rounds down", "50000.17", "0.1", "50000.1"},
		{"never rounds up", "0.019", "0.01", "0.01"},
		{"coarse step", "123.456", "5", "120"},
		{"quantity step", "0.0527", "0.001", "0.052"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Adjust("price", d(tt.value), d(tt.step))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(d(tt.want)) {
				t.Errorf("Adjust(%s, %s) = %s, want %s", tt.value, tt.step, got, tt.want)
			}
		})
	}
}

func TestAdjust_OutputIsMultipleOfStep(t *testing.T) {
	values := []string{"0.019", "1.23456", "50001.37", "0.001", "999.999"}
	step := d("0.01")

	for _, v := range values {
		got, err := Adjust("quantity", d(v), step)
		if err != nil {
			continue
		}
		if !got.Mod(step).IsZero() {
			t.Errorf("Adjust(%s) = %s is not a multiple of %s", v, got, step)
		}
		if got.GreaterThan(d(v)) {
			t.Errorf("Adjust(%s) = %s rounded up", v, got)
		}
	}
}

func TestAdjust_CollapseToZero(t *testing.T) {
	_, err := Adjust("quantity", d("0.0004"), d("0.001"))
	if err == nil {
		t.Fatal("expected PrecisionError when value collapses to zero")
	}
	var perr *domain.PrecisionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *domain.PrecisionError, got %T", err)
	}
	if perr.Field != "quantity" {
		t.Errorf("expected field quantity, got %s", perr.Field)
	}
}

func TestAdjust_ZeroStepIsNoop(t *testing.T) {
	got, err := Adjust("price", d("123.456"), decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(d("123.456")) {
		t.Errorf("expected value unchanged, got %s", got)
	}
}

func TestAdjustSpec(t *testing.T) {
	rules := domain.PrecisionRules{
		Symbol:   "BTCUSDT",
		TickSize: d("0.1"),
		StepSize: d("0.001"),
	}
	spec := domain.OrderSpec{
		Symbol:    "BTCUSDT",
		Side:      domain.SideBuy,
		Type:      domain.TypeStopLimit,
		Quantity:  d("0.0105"),
		Price:     d("50000.17"),
		StopPrice: d("50100.09"),
	}

	adjusted, err := AdjustSpec(spec, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !adjusted.Quantity.Equal(d("0.01")) {
		t.Errorf("quantity = %s, want 0.01", adjusted.Quantity)
	}
	if !adjusted.Price.Equal(d("50000.1")) {
		t.Errorf("price = %s, want 50000.1", adjusted.Price)
	}
	if !adjusted.StopPrice.Equal(d("50100")) {
		t.Errorf("stopPrice = %s, want 50100", adjusted.StopPrice)
	}
}

func TestAdjustSpec_Idempotent(t *testing.T) {
	rules := domain.PrecisionRules{TickSize: d("0.1"), StepSize: d("0.001")}
	spec := domain.OrderSpec{
		Quantity: d("0.0527"),
		Price:    d("50000.17"),
	}

	once, err := AdjustSpec(spec, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	twice, err := AdjustSpec(once, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !once.Quantity.Equal(twice.Quantity) || !once.Price.Equal(twice.Price) {
		t.Errorf("second adjustment changed values: %v vs %v", once, twice)
	}
}
