// Package cv provides the leakage-safe cross-validation scheme every
// predictive model plugged into the pipeline must use. Random shuffles leak
// future information into training and are not expressible here.
package cv

import "fmt"

// Fold is one (train, test) index pair. Train indices are strictly earlier
// than test indices, separated by the embargo gap.
type Fold struct {
	Train []int
	Test  []int
}

// PurgedKFold partitions [0, n) into NSplits contiguous test blocks with
// expanding-window training sets. For fold i the training set is every index
// strictly before the block start, and the test block is shifted forward by
// Embargo indices from the end of training. Folds whose test range empties
// out after the embargo are skipped.
type PurgedKFold struct {
	NSplits int
	Embargo int
}

func New(nSplits, embargo int) (PurgedKFold, error) {
	if nSplits < 1 {
		return PurgedKFold{}, fmt.Errorf("purged k-fold: need at least 1 split, got %d", nSplits)
	}
	if embargo < 0 {
		return PurgedKFold{}, fmt.Errorf("purged k-fold: embargo must be >= 0, got %d", embargo)
	}
	return PurgedKFold{NSplits: nSplits, Embargo: embargo}, nil
}

// Split returns the folds for n ordered observations.
func (p PurgedKFold) Split(n int) []Fold {
	foldSize := n / (p.NSplits + 1)
	folds := make([]Fold, 0, p.NSplits)
	for i := 0; i < p.NSplits; i++ {
		trainEnd := foldSize * (i + 1)
		testStart := trainEnd + p.Embargo
		testEnd := foldSize * (i + 2)
		if testEnd > n {
			testEnd = n
		}
		if trainEnd <= 0 || testEnd <= testStart {
			continue
		}
		folds = append(folds, Fold{
			Train: indexRange(0, trainEnd),
			Test:  indexRange(testStart, testEnd),
		})
	}
	return folds
}

func indexRange(start, end int) []int {
	out := make([]int, end-start)
	for i := range out {
		out[i] = start + i
	}
	return out
}
