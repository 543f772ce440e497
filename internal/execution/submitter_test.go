package execution

import (
	"context"
	"errors"
	"testing"

	"futures_bot/internal/domain"
	"futures_bot/internal/infra"

	"github.com/shopspring/decimal"
)

func testConfig() *infra.Config { return infra.DefaultConfig() }

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// fakeGateway scripts PlaceOrder responses and records what was sent.
type fakeGateway struct {
	rules      domain.PrecisionRules
	mark       decimal.Decimal
	placeErrs  []error // consumed one per PlaceOrder call until empty
	placed     []domain.OrderSpec
	nextID     int64
	filterErr  error
	markErr    error
	statusByID map[int64]domain.OrderRecord
	canceled   []int64
	cancelErr  error
}

func (g *fakeGateway) PlaceOrder(ctx context.Context, spec domain.OrderSpec) (domain.OrderRecord, error) {
	g.placed = append(g.placed, spec)
	if len(g.placeErrs) > 0 {
		err := g.placeErrs[0]
		g.placeErrs = g.placeErrs[1:]
		if err != nil {
			return domain.OrderRecord{}, err
		}
	}
	g.nextID++
	return domain.OrderRecord{
		OrderID:       g.nextID,
		ClientOrderID: spec.ClientOrderID,
		Symbol:        spec.Symbol,
		Side:          spec.Side,
		Type:          spec.Type,
		Status:        domain.StatusNew,
		Price:         spec.Price,
		OrigQty:       spec.Quantity,
	}, nil
}

func (g *fakeGateway) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	g.canceled = append(g.canceled, orderID)
	return g.cancelErr
}

func (g *fakeGateway) CancelAllOpen(ctx context.Context, symbol string) error { return nil }

func (g *fakeGateway) OrderStatus(ctx context.Context, symbol string, orderID int64) (domain.OrderRecord, error) {
	if rec, ok := g.statusByID[orderID]; ok {
		return rec, nil
	}
	return domain.OrderRecord{OrderID: orderID, Symbol: symbol, Status: domain.StatusNew}, nil
}

func (g *fakeGateway) SymbolFilters(ctx context.Context, symbol string) (domain.PrecisionRules, error) {
	if g.filterErr != nil {
		return domain.PrecisionRules{}, g.filterErr
	}
	return g.rules, nil
}

func (g *fakeGateway) MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if g.markErr != nil {
		return decimal.Zero, g.markErr
	}
	return g.mark, nil
}

func btcGateway() *fakeGateway {
	return &fakeGateway{
		rules: domain.PrecisionRules{
			Symbol:      "BTCUSDT",
			TickSize:    d("0.1"),
			StepSize:    d("0.001"),
			MinQty:      d("0.001"),
			MinNotional: d("100"),
		},
		mark: d("51000"),
	}
}

func TestLiveSubmitter_AdjustsAndPlaces(t *testing.T) {
	gw := btcGateway()
	sub := NewLiveSubmitter(gw, nil, 3)

	rec, err := sub.Submit(context.Background(), domain.OrderSpec{
		Symbol:      "BTCUSDT",
		Side:        domain.SideBuy,
		Type:        domain.TypeLimit,
		Quantity:    d("0.0105"),
		Price:       d("50000.17"),
		TimeInForce: domain.TifGTC,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.OrderID == 0 {
		t.Error("expected an order id")
	}
	if len(gw.placed) != 1 {
		t.Fatalf("expected 1 placement, got %d", len(gw.placed))
	}
	sent := gw.placed[0]
	if !sent.Quantity.Equal(d("0.01")) {
		t.Errorf("quantity sent = %s, want 0.01", sent.Quantity)
	}
	if !sent.Price.Equal(d("50000.1")) {
		t.Errorf("price sent = %s, want 50000.1", sent.Price)
	}
	if sent.ClientOrderID == "" {
		t.Error("expected a generated client order id")
	}
}

func TestLiveSubmitter_ValidationBeforeNetwork(t *testing.T) {
	gw := btcGateway()
	sub := NewLiveSubmitter(gw, nil, 3)

	_, err := sub.Submit(context.Background(), domain.OrderSpec{
		Symbol:   "BTCUSDT",
		Side:     "LEFT",
		Type:     domain.TypeMarket,
		Quantity: d("0.01"),
	})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(gw.placed) != 0 {
		t.Error("invalid order reached the gateway")
	}
}

func TestLiveSubmitter_RetriesTransient(t *testing.T) {
	if testing.Short() {
		t.Skip("retry backoff sleeps")
	}
	gw := btcGateway()
	gw.placeErrs = []error{
		&domain.TransientError{Op: "POST /fapi/v1/order", Err: errors.New("connection reset")},
		nil,
	}
	sub := NewLiveSubmitter(gw, nil, 3)

	rec, err := sub.Submit(context.Background(), domain.OrderSpec{
		Symbol:   "BTCUSDT",
		Side:     domain.SideBuy,
		Type:     domain.TypeMarket,
		Quantity: d("0.01"),
	})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if rec.OrderID == 0 {
		t.Error("expected an order id after retry")
	}
	if len(gw.placed) != 2 {
		t.Errorf("expected 2 attempts, got %d", len(gw.placed))
	}
}

func TestLiveSubmitter_NoRetryOnRejection(t *testing.T) {
	gw := btcGateway()
	gw.placeErrs = []error{
		&domain.OrderRejectedError{Op: "POST /fapi/v1/order", Code: -2019, Reason: "Margin is insufficient."},
	}
	sub := NewLiveSubmitter(gw, nil, 3)

	_, err := sub.Submit(context.Background(), domain.OrderSpec{
		Symbol:   "BTCUSDT",
		Side:     domain.SideBuy,
		Type:     domain.TypeMarket,
		Quantity: d("0.01"),
	})
	var rejected *domain.OrderRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected OrderRejectedError, got %v", err)
	}
	if rejected.Reason != "Margin is insufficient." {
		t.Errorf("rejection reason not surfaced verbatim: %q", rejected.Reason)
	}
	if len(gw.placed) != 1 {
		t.Errorf("rejection was retried: %d attempts", len(gw.placed))
	}
}

func TestLiveSubmitter_ExhaustedRetries(t *testing.T) {
	if testing.Short() {
		t.Skip("retry backoff sleeps")
	}
	transient := &domain.TransientError{Op: "POST /fapi/v1/order", Err: errors.New("timeout")}
	gw := btcGateway()
	gw.placeErrs = []error{transient, transient}
	sub := NewLiveSubmitter(gw, nil, 1)

	_, err := sub.Submit(context.Background(), domain.OrderSpec{
		Symbol:   "BTCUSDT",
		Side:     domain.SideBuy,
		Type:     domain.TypeMarket,
		Quantity: d("0.01"),
	})
	var terr *domain.TransientError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransientError after exhausted retries, got %v", err)
	}
	if len(gw.placed) != 2 {
		t.Errorf("expected 2 attempts with maxRetries=1, got %d", len(gw.placed))
	}
}

func TestLiveSubmitter_RulesCached(t *testing.T) {
	gw := btcGateway()
	sub := NewLiveSubmitter(gw, nil, 3)

	if _, err := sub.Rules(context.Background(), "BTCUSDT"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gw.filterErr = errors.New("should not be called again")
	if _, err := sub.Rules(context.Background(), "BTCUSDT"); err != nil {
		t.Errorf("cached rules fetch hit the gateway: %v", err)
	}
}

func TestDrySubmitter_NoNetwork(t *testing.T) {
	sub := NewDrySubmitter(d("50000"))

	rec, err := sub.Submit(context.Background(), domain.OrderSpec{
		Symbol:   "BTCUSDT",
		Side:     domain.SideBuy,
		Type:     domain.TypeMarket,
		Quantity: d("0.02"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != domain.StatusSimulated {
		t.Errorf("status = %s, want SIMULATED", rec.Status)
	}
	if !rec.ExecutedQty.Equal(d("0.02")) {
		t.Errorf("executed qty = %s, want 0.02", rec.ExecutedQty)
	}
	if !rec.AvgPrice.Equal(d("50000")) {
		t.Errorf("avg price = %s, want reference price 50000", rec.AvgPrice)
	}

	// Malformed input is still rejected in dry runs.
	if _, err := sub.Submit(context.Background(), domain.OrderSpec{
		Symbol:   "BTCUSDT",
		Side:     "LEFT",
		Type:     domain.TypeMarket,
		Quantity: d("0.02"),
	}); err == nil {
		t.Error("dry run accepted an invalid side")
	}

	rec2, _ := sub.Submit(context.Background(), domain.OrderSpec{
		Symbol:   "BTCUSDT",
		Side:     domain.SideBuy,
		Type:     domain.TypeMarket,
		Quantity: d("0.02"),
	})
	if rec2.OrderID == rec.OrderID {
		t.Error("simulated order ids should be distinct")
	}
}

func TestFactory(t *testing.T) {
	cfg := testConfig()
	if _, ok := NewSubmitter(ModeDry, cfg, nil, nil, decimal.Zero).(*DrySubmitter); !ok {
		t.Error("ModeDry should build a DrySubmitter")
	}
	if _, ok := NewSubmitter(ModeLive, cfg, btcGateway(), nil, decimal.Zero).(*LiveSubmitter); !ok {
		t.Error("ModeLive should build a LiveSubmitter")
	}
}
