package utils

/*
HaloMap describes a row decomposition where every worker owns a contiguous block of rows
but reads a wider, contiguous window of rows. Rows inside a worker's window that are
owned by another worker must be exchanged before they can be read.
*/
type HaloMap struct {
	Owners  *PartitionMap
	Windows [][2]int // Per worker, [first, last) rows read
}

func NewHaloMap(owners *PartitionMap, window func(np int) [2]int) (hm *HaloMap) {
	hm = &HaloMap{
		Owners:  owners,
		Windows: make([][2]int, owners.ParallelDegree),
	}
	for np := 0; np < owners.ParallelDegree; np++ {
		hm.Windows[np] = window(np)
	}
	return
}

// Recipients returns the workers other than the owner whose window includes row
func (hm *HaloMap) Recipients(row int) (workers []int) {
	owner, _, _ := hm.Owners.GetBucket(row)
	for np, w := range hm.Windows {
		if np == owner {
			continue
		}
		if row >= w[0] && row < w[1] {
			workers = append(workers, np)
		}
	}
	return
}

// HaloRows is the number of rows a worker must receive from other workers
func (hm *HaloMap) HaloRows(np int) (n int) {
	var (
		w          = hm.Windows[np]
		kMin, kMax = hm.Owners.GetBucketRange(np)
	)
	for row := w[0]; row < w[1]; row++ {
		if row < kMin || row >= kMax {
			n++
		}
	}
	return
}
