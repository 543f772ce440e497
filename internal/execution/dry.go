package execution

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"futures_bot/internal/domain"
	"futures_bot/internal/validate"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DrySubmitter never touches the network. It synthesizes SIMULATED
// order records carrying the intended quantity and the reference price
// so dry runs still produce a full report.
type DrySubmitter struct {
	refPrice decimal.Decimal

	mu     sync.Mutex
	nextID int64
}

// NewDrySubmitter creates a dry-run submitter. refPrice may be zero
// when no price is known; simulated records then carry a zero price.
func NewDrySubmitter(refPrice decimal.Decimal) *DrySubmitter {
	return &DrySubmitter{refPrice: refPrice, nextID: 1}
}

// Submit logs the order and returns a simulated record. Structural
// validation still runs; price-relation checks are skipped since no
// live mark price exists.
func (s *DrySubmitter) Submit(ctx context.Context, spec domain.OrderSpec) (domain.OrderRecord, error) {
	if err := validate.Spec(spec, domain.PrecisionRules{Symbol: spec.Symbol}, decimal.Zero); err != nil {
		return domain.OrderRecord{}, err
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.mu.Unlock()

	price := spec.Price
	if !price.IsPositive() {
		price = s.refPrice
	}

	slog.Info("DRY RUN: would place order",
		slog.Int64("order_id", id),
		slog.String("symbol", spec.Symbol),
		slog.String("side", string(spec.Side)),
		slog.String("type", string(spec.Type)),
		slog.String("quantity", spec.Quantity.String()),
		slog.String("price", price.String()),
	)

	return domain.OrderRecord{
		OrderID:       id,
		ClientOrderID: uuid.NewString(),
		Symbol:        spec.Symbol,
		Side:          spec.Side,
		Type:          spec.Type,
		Status:        domain.StatusSimulated,
		Price:         price,
		AvgPrice:      price,
		OrigQty:       spec.Quantity,
		ExecutedQty:   spec.Quantity,
		UpdateTimeMS:  time.Now().UnixMilli(),
	}, nil
}

// Rules returns empty rules: dry runs skip precision adjustment rather
// than fetch filters over the network.
func (s *DrySubmitter) Rules(ctx context.Context, symbol string) (domain.PrecisionRules, error) {
	return domain.PrecisionRules{Symbol: symbol}, nil
}

// ReferencePrice returns the configured static price.
func (s *DrySubmitter) ReferencePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return s.refPrice, nil
}
