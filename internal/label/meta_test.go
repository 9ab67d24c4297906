package label

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMetaDatasetFiltersAndLabels(t *testing.T) {
	// z swings down hard from index 3, so a short-spread forecast there
	// fails and a long-spread forecast succeeds.
	z := []float64{0, 0.5, -0.5, 2.0, 0.5, -1.0, -2.5, -0.5, 0.5, 0}
	n := len(z)
	predZ := make([]float64, n)
	for i := range predZ {
		predZ[i] = math.NaN()
	}
	predZ[3] = 2.1  // short-spread candidate; z then falls
	predZ[5] = -1.8 // long-spread candidate; z keeps falling first
	predZ[4] = 0.3  // below the entry threshold, never a candidate

	featIndex := make([]int, n)
	feats := make([][]float64, n)
	for i := range featIndex {
		featIndex[i] = i
		feats[i] = []float64{float64(i), 1}
	}

	ds, err := BuildMetaDataset(featIndex, feats, predZ, z, MetaConfig{
		EntryZ:     1.5,
		VolWindow:  3,
		PTMult:     1.0,
		SLMult:     1.0,
		MaxHorizon: 3,
	})
	require.NoError(t, err)

	require.Len(t, ds.Y, 2)
	assert.Equal(t, []int{3, 5}, ds.Index)

	// Index 3: predicted short (pz > 0) and z fell through the lower
	// barrier first, so the trade succeeded.
	assert.Equal(t, 1, ds.Y[0])
	// Index 5: predicted long (pz < 0) but no upper-barrier touch within
	// the horizon, so the trade did not succeed.
	assert.Equal(t, 0, ds.Y[1])
}

func TestBuildMetaDatasetDropsIncompleteRows(t *testing.T) {
	z := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	predZ := []float64{2, 2, 2, 2, 2, 2, 2, 2}
	featIndex := []int{0, 1, 2, 3}
	feats := [][]float64{
		{1, 2},
		{math.NaN(), 2},
		{1, math.Inf(1)},
		{3, 4},
	}
	ds, err := BuildMetaDataset(featIndex, feats, predZ, z, MetaConfig{
		EntryZ: 1.0, VolWindow: 3, PTMult: 1, SLMult: 1, MaxHorizon: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3}, ds.Index, "rows with NaN or Inf features are dropped")
}

func TestBuildMetaDatasetValidation(t *testing.T) {
	_, err := BuildMetaDataset([]int{0}, nil, []float64{1}, []float64{1}, MetaConfig{})
	require.Error(t, err)
	_, err = BuildMetaDataset(nil, nil, []float64{1, 2}, []float64{1}, MetaConfig{})
	require.Error(t, err)
}
