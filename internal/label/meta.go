package label

import (
	"fmt"
	"math"

	"github.com/spreadrun/spreadrun/internal/timeseries"
)

// MetaDataset is an aligned feature/label pair for training the secondary
// "would this predicted-direction trade have succeeded" filter. Index holds
// positions into the aligned trading index.
type MetaDataset struct {
	Index []int
	X     [][]float64
	Y     []int
}

// MetaConfig parameterizes the meta dataset construction.
type MetaConfig struct {
	EntryZ     float64 // candidate timestamps need |predicted z| >= EntryZ
	VolWindow  int     // window for the z-change volatility driving barriers
	PTMult     float64
	SLMult     float64
	MaxHorizon int
}

// BuildMetaDataset restricts candidates to timestamps where the forecast's
// magnitude clears the entry threshold, labels each with the triple-barrier
// outcome on the realized z-score, and marks success when the barrier in the
// predicted direction was hit first (long spread for a negative forecast,
// short for a positive one). Rows with incomplete features or labels are
// dropped. featIndex maps each feature row to its position in the aligned
// index; predZ and z are full-length aligned series.
func BuildMetaDataset(featIndex []int, feats [][]float64, predZ, z []float64, cfg MetaConfig) (MetaDataset, error) {
	if len(featIndex) != len(feats) {
		return MetaDataset{}, fmt.Errorf("meta dataset: index/feature length mismatch: %d vs %d", len(featIndex), len(feats))
	}
	if len(predZ) != len(z) {
		return MetaDataset{}, fmt.Errorf("meta dataset: predicted/realized z length mismatch: %d vs %d", len(predZ), len(z))
	}

	zVol := timeseries.RollingStd(timeseries.Diff(z), cfg.VolWindow, 1)
	for i, v := range zVol {
		if !math.IsNaN(v) && v < 1e-8 {
			zVol[i] = 1e-8
		}
	}
	labels, err := TripleBarrier(z, zVol, cfg.PTMult, cfg.SLMult, cfg.MaxHorizon)
	if err != nil {
		return MetaDataset{}, err
	}

	var ds MetaDataset
	for row, idx := range featIndex {
		pz := predZ[idx]
		if math.IsNaN(pz) || math.Abs(pz) < cfg.EntryZ {
			continue
		}
		lbl := labels[idx]
		if math.IsNaN(lbl) || hasNaN(feats[row]) {
			continue
		}
		success := 0
		if (pz > 0 && lbl == -1) || (pz < 0 && lbl == +1) {
			success = 1
		}
		ds.Index = append(ds.Index, idx)
		ds.X = append(ds.X, feats[row])
		ds.Y = append(ds.Y, success)
	}
	return ds, nil
}

func hasNaN(row []float64) bool {
	for _, v := range row {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
