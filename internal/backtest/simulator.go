// Package backtest turns a position series into cost-adjusted PnL, an equity
// curve and turnover. The position decided at t is held over [t, t+1), so the
// realized return at t uses the position lagged by one step.
package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Result is the immutable bundle produced by one simulation run.
type Result struct {
	RunID      string      `json:"run_id"`
	Timestamps []time.Time `json:"timestamps,omitempty"`
	Positions  []int       `json:"positions"`
	Sizing     []float64   `json:"sizing,omitempty"`
	PnL        []float64   `json:"pnl"`
	Returns    []float64   `json:"returns"` // cost-adjusted
	Equity     []float64   `json:"equity"`  // cumulative product of 1+return, from 1
	Turnover   float64     `json:"turnover"`
	Trades     int         `json:"trades"`  // timestamps where the position changed
	Entries    int         `json:"entries"` // flat -> non-flat transitions
}

// Simulate runs the cost model over positions and per-period leg returns.
// sizing is optional; when supplied, exposure at t is position[t]*sizing[t].
// Every position change is a trade and incurs a round-trip cost of
// 2*costPerLeg, charged in that period's return. The pre-history position is
// flat, so a non-flat first position counts as a trade.
func Simulate(positions []int, legReturns []float64, sizing []float64, costPerLeg float64) (*Result, error) {
	n := len(positions)
	if len(legReturns) != n {
		return nil, fmt.Errorf("simulate: positions/returns length mismatch: %d vs %d", n, len(legReturns))
	}
	if sizing != nil && len(sizing) != n {
		return nil, fmt.Errorf("simulate: positions/sizing length mismatch: %d vs %d", n, len(sizing))
	}
	if costPerLeg < 0 {
		return nil, fmt.Errorf("simulate: cost per leg must be >= 0, got %g", costPerLeg)
	}

	res := &Result{
		RunID:     uuid.NewString(),
		Positions: positions,
		Sizing:    sizing,
		PnL:       make([]float64, n),
		Returns:   make([]float64, n),
		Equity:    make([]float64, n),
	}

	equity := 1.0
	prevPos := 0
	for t := 0; t < n; t++ {
		exposure := float64(prevPos)
		if sizing != nil && t > 0 {
			exposure = float64(prevPos) * sizing[t-1]
		}
		leg := legReturns[t]
		if math.IsNaN(leg) {
			leg = 0
		}
		pnl := exposure * leg

		traded := positions[t] != prevPos
		cost := 0.0
		if traded {
			cost = costPerLeg * 2
			res.Trades++
			if prevPos == 0 && positions[t] != 0 {
				res.Entries++
			}
		}
		res.Turnover += math.Abs(float64(positions[t] - prevPos))

		ret := pnl - cost
		equity *= 1 + ret

		res.PnL[t] = pnl
		res.Returns[t] = ret
		res.Equity[t] = equity
		prevPos = positions[t]
	}
	return res, nil
}
