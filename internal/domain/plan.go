package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OCOState tracks the one-cancels-other monitoring lifecycle.
type OCOState string

const (
	OCOPlaced     OCOState = "PLACED"
	OCOMonitoring OCOState = "MONITORING"
	OCOResolved   OCOState = "RESOLVED"
	OCOFailed     OCOState = "FAILED"
	OCOTimeout    OCOState = "TIMEOUT"
)

// OCOPair links a take-profit and a stop-loss order protecting one
// position. At most one leg may ever fill; once one reaches a terminal
// fill the other must be canceled or already terminal.
type OCOPair struct {
	TakeProfit   OrderRecord
	StopLoss     OrderRecord
	PositionSide PositionSide
	State        OCOState
}

// SliceResult records the outcome of one TWAP slice.
type SliceResult struct {
	Slice       int // 1-based
	Record      OrderRecord
	Err         error
	SubmittedAt time.Time
}

// TWAPReport summarizes a time-sliced execution. Per-slice failures are
// contained here rather than aborting the plan.
type TWAPReport struct {
	Symbol        string
	Side          Side
	TotalQuantity decimal.Decimal
	SliceCount    int
	Interval      time.Duration
	Randomized    bool
	DryRun        bool
	Slices        []SliceResult
	TotalExecuted decimal.Decimal
	AvgPrice      decimal.Decimal
	StartPrice    decimal.Decimal
	EndPrice      decimal.Decimal
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Failed returns the slice numbers that did not execute.
func (r *TWAPReport) Failed() []int {
	var out []int
	for _, s := range r.Slices {
		if s.Err != nil {
			out = append(out, s.Slice)
		}
	}
	return out
}

// GridLevel is one rung of the price ladder.
type GridLevel struct {
	Index   int // 1-based, for display and logs
	Price   decimal.Decimal
	Side    Side // zero value when skipped
	Skipped bool
	Record  OrderRecord
	Err     error
}

// GridPlan owns the ladder of limit orders placed inside one price
// range. ActiveOrderIDs is in-memory state; durability across restarts
// comes from the optional order journal, not from the plan itself.
type GridPlan struct {
	Symbol           string
	LowerPrice       decimal.Decimal
	UpperPrice       decimal.Decimal
	LevelCount       int
	QuantityPerLevel decimal.Decimal
	MarkPrice        decimal.Decimal
	Levels           []GridLevel
	ActiveOrderIDs   map[int64]struct{}
}

// Placed counts levels with a live order.
func (p *GridPlan) Placed() int { return len(p.ActiveOrderIDs) }
