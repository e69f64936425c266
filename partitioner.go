package zonalbatch

import "math"

//Batch the half open range of feature ordinals [Start, Start+Size)
type Batch struct {
	Start int
	Size  int
}

func (b Batch) End() int {
	return b.Start + b.Size
}

//IDs the feature ordinals of the batch
func (b Batch) IDs() []int64 {
	ids := make([]int64, b.Size)
	for i := range ids {
		ids[i] = int64(b.Start + i)
	}
	return ids
}

//Partition split [0, featureCount) into batches of round(featureCount/parallelJobs) features,
//halves rounding to even. The batch size is at least 1, the last batch holds the remainder.
func Partition(featureCount, parallelJobs int) ([]Batch, BatchError) {
	if parallelJobs <= 0 {
		return nil, NewBatchError(ErrCodeValidation, "parallel jobs must be positive, got:%d", parallelJobs)
	}
	if featureCount < 0 {
		return nil, NewBatchError(ErrCodeValidation, "feature count must not be negative, got:%d", featureCount)
	}
	batchSize := int(math.RoundToEven(float64(featureCount) / float64(parallelJobs)))
	if batchSize < 1 {
		batchSize = 1
	}
	batches := make([]Batch, 0, featureCount/batchSize+1)
	for start := 0; start < featureCount; start += batchSize {
		size := batchSize
		if start+size > featureCount {
			size = featureCount - start
		}
		batches = append(batches, Batch{Start: start, Size: size})
	}
	return batches, nil
}
