package strategy

import (
	"context"
	"sync"

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

// fakeSubmitter returns filled records at the reference price and can
// fail scripted calls.
type fakeSubmitter struct {
	mu      sync.Mutex
	rules   domain.PrecisionRules
	ref     decimal.Decimal
	refErr  error
	errByN  map[int]error // 1-based Submit call number
	calls   []domain.OrderSpec
	nextID  int64
	pending bool // return NEW instead of FILLED
}

func (s *fakeSubmitter) Submit(ctx context.Context, spec domain.OrderSpec) (domain.OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, spec)
	if err := s.errByN[len(s.calls)]; err != nil {
		return domain.OrderRecord{}, err
	}
	s.nextID++
	status := domain.StatusFilled
	executed := spec.Quantity
	if s.pending {
		status = domain.StatusNew
		executed = decimal.Zero
	}
	price := spec.Price
	if !price.IsPositive() {
		price = s.ref
	}
	return domain.OrderRecord{
		OrderID:     s.nextID,
		Symbol:      spec.Symbol,
		Side:        spec.Side,
		Type:        spec.Type,
		Status:      status,
		Price:       price,
		AvgPrice:    price,
		OrigQty:     spec.Quantity,
		ExecutedQty: executed,
	}, nil
}

func (s *fakeSubmitter) Rules(ctx context.Context, symbol string) (domain.PrecisionRules, error) {
	return s.rules, nil
}

func (s *fakeSubmitter) ReferencePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if s.refErr != nil {
		return decimal.Zero, s.refErr
	}
	return s.ref, nil
}

// fakeGateway scripts order status and cancel behavior for the
// monitoring and cancel-sweep paths.
type fakeGateway struct {
	mu             sync.Mutex
	statusByID     map[int64]domain.OrderRecord
	canceled       []int64
	cancelErrBy    map[int64]error   // persistent, returned on every call
	cancelErrsBy   map[int64][]error // consumed one per call, takes precedence
	cancelAttempts map[int64]int
	cancelAll      []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		statusByID:     make(map[int64]domain.OrderRecord),
		cancelErrBy:    make(map[int64]error),
		cancelErrsBy:   make(map[int64][]error),
		cancelAttempts: make(map[int64]int),
	}
}

func (g *fakeGateway) PlaceOrder(ctx context.Context, spec domain.OrderSpec) (domain.OrderRecord, error) {
	return domain.OrderRecord{}, nil
}

func (g *fakeGateway) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelAttempts[orderID]++
	if errs := g.cancelErrsBy[orderID]; len(errs) > 0 {
		err := errs[0]
		g.cancelErrsBy[orderID] = errs[1:]
		if err != nil {
			return err
		}
	} else if err := g.cancelErrBy[orderID]; err != nil {
		return err
	}
	g.canceled = append(g.canceled, orderID)
	if rec, ok := g.statusByID[orderID]; ok {
		rec.Status = domain.StatusCanceled
		g.statusByID[orderID] = rec
	}
	return nil
}

func (g *fakeGateway) CancelAllOpen(ctx context.Context, symbol string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelAll = append(g.cancelAll, symbol)
	return nil
}

func (g *fakeGateway) OrderStatus(ctx context.Context, symbol string, orderID int64) (domain.OrderRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if rec, ok := g.statusByID[orderID]; ok {
		return rec, nil
	}
	return domain.OrderRecord{OrderID: orderID, Symbol: symbol, Status: domain.StatusNew}, nil
}

func (g *fakeGateway) SymbolFilters(ctx context.Context, symbol string) (domain.PrecisionRules, error) {
	return domain.PrecisionRules{Symbol: symbol}, nil
}

func (g *fakeGateway) MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (g *fakeGateway) setStatus(rec domain.OrderRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusByID[rec.OrderID] = rec
}
