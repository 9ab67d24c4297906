package position

import (
	"fmt"
	"math"

	"github.com/spreadrun/spreadrun/internal/timeseries"
)

// SizingConfig parameterizes volatility-targeted sizing of the discrete
// exposure.
type SizingConfig struct {
	VolWindow int     // trailing window for realized leg volatility
	ZCap      float64 // predicted z is clipped to +/- ZCap before normalizing
	MaxSize   float64 // hard cap on the absolute sizing multiple
}

// VolTargetSizing scales the +/-1 exposure by the ratio of normalized signal
// strength (predicted z clipped to ZCap, divided by ZCap) to recent realized
// volatility of the trading leg, clipped to MaxSize. Timestamps without a
// defined forecast size to zero.
func VolTargetSizing(cfg SizingConfig, predZ, legReturns []float64) ([]float64, error) {
	if len(predZ) != len(legReturns) {
		return nil, fmt.Errorf("sizing: signal/leg length mismatch: %d vs %d", len(predZ), len(legReturns))
	}
	if cfg.VolWindow < 2 || cfg.ZCap <= 0 || cfg.MaxSize <= 0 {
		return nil, fmt.Errorf("sizing: invalid config (vol_window=%d z_cap=%g max_size=%g)", cfg.VolWindow, cfg.ZCap, cfg.MaxSize)
	}

	vol := timeseries.RollingStd(legReturns, cfg.VolWindow, 1)
	for i, v := range vol {
		if v == 0 {
			vol[i] = math.NaN()
		}
	}
	vol = timeseries.FillEdges(vol)

	out := make([]float64, len(predZ))
	for i := range predZ {
		pz := predZ[i]
		if math.IsNaN(pz) || math.IsNaN(vol[i]) {
			out[i] = 0
			continue
		}
		if pz > cfg.ZCap {
			pz = cfg.ZCap
		} else if pz < -cfg.ZCap {
			pz = -cfg.ZCap
		}
		size := (pz / cfg.ZCap) / (vol[i] + 1e-8)
		if size > cfg.MaxSize {
			size = cfg.MaxSize
		} else if size < -cfg.MaxSize {
			size = -cfg.MaxSize
		}
		out[i] = size
	}
	return out, nil
}
