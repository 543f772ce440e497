package validate

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

var btcRules = domain.PrecisionRules{
	Symbol:      "BTCUSDT",
	TickSize:    d("0.1"),
	StepSize:    d("0.001"),
	MinQty:      d("0.001"),
	MinNotional: d("100"),
}

func TestSymbol(t *testing.T) {
	valid := []string{"BTCUSDT", "ETHUSDT", "1000PEPEUSDT"}
	for _, s := range valid {
		if err := Symbol(s); err != nil {
			t.Errorf("Symbol(%q) = %v, want nil", s, err)
		}
	}

	invalid := []string{"", "btcusdt", "BTCUSD", "BTC-USDT", "USDT"}
	for _, s := range invalid {
		if err := Symbol(s); err == nil {
			t.Errorf("Symbol(%q) = nil, want error", s)
		}
	}
}

func TestSpec_FailFastField(t *testing.T) {
	mark := d("50000")
	tests := []struct {
		name      string
		spec      domain.OrderSpec
		wantField string
	}{
		{
			name:      "bad symbol reported before bad side",
			spec:      domain.OrderSpec{Symbol: "nope", Side: "LEFT", Quantity: d("-1")},
			wantField: "symbol",
		},
		{
			name:      "bad side reported before bad quantity",
			spec:      domain.OrderSpec{Symbol: "BTCUSDT", Side: "LEFT", Quantity: d("-1")},
			wantField: "side",
		},
		{
			name:      "zero quantity",
			spec:      domain.OrderSpec{Symbol: "BTCUSDT", Side: domain.SideBuy, Type: domain.TypeMarket, Quantity: decimal.Zero},
			wantField: "quantity",
		},
		{
			name:      "limit without price",
			spec:      domain.OrderSpec{Symbol: "BTCUSDT", Side: domain.SideBuy, Type: domain.TypeLimit, Quantity: d("0.01")},
			wantField: "price",
		},
		{
			name: "below min quantity",
			spec: domain.OrderSpec{Symbol: "BTCUSDT", Side: domain.SideBuy, Type: domain.TypeLimit,
				Quantity: d("0.0001"), Price: d("50000")},
			wantField: "quantity",
		},
		{
			name: "below min notional",
			spec: domain.OrderSpec{Symbol: "BTCUSDT", Side: domain.SideBuy, Type: domain.TypeLimit,
				Quantity: d("0.001"), Price: d("50")},
			wantField: "notional",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Spec(tt.spec, btcRules, mark)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("field = %s, want %s", verr.Field, tt.wantField)
			}
		})
	}
}

func TestSpec_ValidLimit(t *testing.T) {
	// Buying below the market with a plain limit order is fine.
	spec := domain.OrderSpec{
		Symbol:   "BTCUSDT",
		Side:     domain.SideBuy,
		Type:     domain.TypeLimit,
		Quantity: d("0.01"),
		Price:    d("50000"),
	}
	if err := Spec(spec, btcRules, d("51000")); err != nil {
		t.Errorf("valid limit order rejected: %v", err)
	}
}

func TestSpec_StopRelation(t *testing.T) {
	mark := d("50000")

	sellStop := domain.OrderSpec{
		Symbol:    "BTCUSDT",
		Side:      domain.SideSell,
		Type:      domain.TypeStopLimit,
		Quantity:  d("0.01"),
		Price:     d("47900"),
		StopPrice: d("48000"),
	}
	if err := Spec(sellStop, btcRules, mark); err != nil {
		t.Errorf("valid SELL stop-limit rejected: %v", err)
	}

	// SELL stop above the market would trigger immediately.
	bad := sellStop
	bad.StopPrice = d("51000")
	bad.Price = d("50900")
	if err := Spec(bad, btcRules, mark); err == nil {
		t.Error("SELL stop above market accepted")
	}

	buyStop := domain.OrderSpec{
		Symbol:    "BTCUSDT",
		Side:      domain.SideBuy,
		Type:      domain.TypeStopLimit,
		Quantity:  d("0.01"),
		Price:     d("52100"),
		StopPrice: d("52000"),
	}
	if err := Spec(buyStop, btcRules, mark); err != nil {
		t.Errorf("valid BUY stop-limit rejected: %v", err)
	}

	bad = buyStop
	bad.StopPrice = d("49000")
	bad.Price = d("49100")
	if err := Spec(bad, btcRules, mark); err == nil {
		t.Error("BUY stop below market accepted")
	}
}

func TestSpec_TakeProfitRelation(t *testing.T) {
	mark := d("50000")

	sellTP := domain.OrderSpec{
		Symbol:    "BTCUSDT",
		Side:      domain.SideSell,
		Type:      domain.TypeTakeProfit,
		Quantity:  d("0.01"),
		Price:     d("52000"),
		StopPrice: d("52000"),
	}
	if err := Spec(sellTP, btcRules, mark); err != nil {
		t.Errorf("valid SELL take-profit rejected: %v", err)
	}

	bad := sellTP
	bad.StopPrice = d("48000")
	bad.Price = d("48000")
	if err := Spec(bad, btcRules, mark); err == nil {
		t.Error("SELL take-profit below market accepted")
	}
}

func TestSpec_UnknownMarkSkipsRelationChecks(t *testing.T) {
	// With no mark price the relation rules cannot be evaluated; the
	// exchange gets the final say instead.
	spec := domain.OrderSpec{
		Symbol:    "BTCUSDT",
		Side:      domain.SideSell,
		Type:      domain.TypeStopLimit,
		Quantity:  d("0.01"),
		Price:     d("99000"),
		StopPrice: d("99000"),
	}
	if err := Spec(spec, btcRules, decimal.Zero); err != nil {
		t.Errorf("expected relation checks skipped with zero mark, got %v", err)
	}
}

func TestOCO(t *testing.T) {
	mark := d("50000")

	if err := OCO("BTCUSDT", domain.PositionLong, d("0.01"), d("52000"), d("48000"), mark); err != nil {
		t.Errorf("valid LONG OCO rejected: %v", err)
	}
	if err := OCO("BTCUSDT", domain.PositionShort, d("0.01"), d("48000"), d("52000"), mark); err != nil {
		t.Errorf("valid SHORT OCO rejected: %v", err)
	}

	tests := []struct {
		name    string
		posSide domain.PositionSide
		tp, sl  string
	}{
		{"LONG tp below sl", domain.PositionLong, "48000", "52000"},
		{"LONG tp below market", domain.PositionLong, "49000", "48000"},
		{"LONG sl above market", domain.PositionLong, "53000", "51000"},
		{"SHORT tp above sl", domain.PositionShort, "52000", "48000"},
		{"SHORT tp above market", domain.PositionShort, "51000", "53000"},
		{"SHORT sl below market", domain.PositionShort, "47000", "49000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := OCO("BTCUSDT", tt.posSide, d("0.01"), d(tt.tp), d(tt.sl), mark); err == nil {
				t.Errorf("OCO(%s tp=%s sl=%s mark=%s) accepted", tt.posSide, tt.tp, tt.sl, mark)
			}
		})
	}
}

func TestOCO_BadPositionSide(t *testing.T) {
	err := OCO("BTCUSDT", "SIDEWAYS", d("0.01"), d("52000"), d("48000"), d("50000"))
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "positionSide" {
		t.Errorf("expected positionSide validation error, got %v", err)
	}
}
