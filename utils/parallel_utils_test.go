package utils

import (
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notargets/inflowgen/types"
)

func TestPartitionMap(t *testing.T) {
	{ // Test PartitionMap
		getHisto := func(K, Np int) (histo map[int]int) {
			pm := NewPartitionMap(Np, K)
			histo = make(map[int]int)
			for np := 0; np < pm.ParallelDegree; np++ {
				maxK := pm.GetBucketDimension(np)
				histo[maxK]++
			}
			return
		}
		getTotal := func(histo map[int]int) (total int) {
			for key, count := range histo {
				total += key * count
			}
			return
		}
		assert.Equal(t, map[int]int{0: 30, 1: 2}, getHisto(2, 32))
		assert.Equal(t, map[int]int{1: 32}, getHisto(32, 32))
		assert.Equal(t, map[int]int{8: 32}, getHisto(256, 32))
		assert.Equal(t, map[int]int{8: 1, 9: 31}, getHisto(287, 32))
		assert.Equal(t, 287, getTotal(getHisto(287, 32)))
		for n := 64; n < 2000; n++ {
			var (
				keys   [2]float64
				keyNum int
			)
			histo := getHisto(n, 32)
			for key := range histo {
				keys[keyNum] = float64(key)
				keyNum++
			}
			if keyNum == 2 {
				assert.Equal(t, 1., math.Abs(keys[0]-keys[1])) // Maximum imbalance of 1
			}
			assert.Equal(t, n, getTotal(histo))
		}
	}
	{ // Remainder goes to the first partitions, partitions are disjoint and cover
		pm := NewPartitionMap(3, 10)
		assert.Equal(t, [][2]int{{0, 4}, {4, 7}, {7, 10}}, pm.Partitions)
		for maxIndex := 1; maxIndex < 200; maxIndex++ {
			pm = NewPartitionMap(7, maxIndex)
			var next int
			for np := 0; np < pm.ParallelDegree; np++ {
				kMin, kMax := pm.GetBucketRange(np)
				assert.Equal(t, next, kMin)
				next = kMax
			}
			assert.Equal(t, maxIndex, next)
		}
	}
	{ // Test inverted bucket lookup - find bucket that contains index (efficiently)
		for maxIndex := 10; maxIndex < 1000; maxIndex++ {
			pm := NewPartitionMap(5, maxIndex)
			for k := 0; k < maxIndex; k++ {
				tryCount, bn, min, max := pm.getBucketWithTryCount(k)
				mmin, mmax := pm.GetBucketRange(bn)
				assert.True(t, k >= min && k < max && min == mmin && max == mmax && tryCount <= 1)
				assert.Equal(t, k, pm.GetGlobalK(k-min, bn))
			}
		}
	}
	{ // Degree selection
		assert.Equal(t, 4, ParallelDegreeFor(4, 100))
		assert.Equal(t, 3, ParallelDegreeFor(8, 3))
		assert.Equal(t, 6, ParallelDegreeFor(8, 6))
		assert.Equal(t, 1, ParallelDegreeFor(8, 0))
		pm := NewPartitionMap(5, 100)
		assert.Equal(t, 20, pm.GetBucketDimension(2))
		assert.Equal(t, 100, pm.GetBucketDimension(-1))
		assert.Equal(t, 47, pm.GetGlobalK(7, 2))
		assert.Equal(t, 7, pm.GetGlobalK(7, -1))
		assert.True(t, ParallelDegreeFor(0, 1<<20) >= 1)
	}
}

func TestMailBoxHalo(t *testing.T) {
	var (
		NRows    = 23
		NThreads = 4
		Halo     = 2
		owners   = NewPartitionMap(NThreads, NRows)
		wg       = sync.WaitGroup{}
	)
	hm := NewHaloMap(owners, func(np int) [2]int {
		kMin, kMax := owners.GetBucketRange(np)
		return [2]int{ClampInt(kMin-Halo, 0, NRows), ClampInt(kMax+Halo, 0, NRows)}
	})
	mb := NewMailBox[int](NThreads)
	for round := 0; round < 2; round++ { // buffers are reused between rounds
		for np := 0; np < NThreads; np++ {
			wg.Add(1)
			go func(np int) {
				defer wg.Done()
				kMin, kMax := owners.GetBucketRange(np)
				for row := kMin; row < kMax; row++ {
					for _, tgt := range hm.Recipients(row) {
						mb.PostMessage(np, tgt, row)
					}
				}
				mb.DeliverMyMessages(np)
			}(np)
		}
		wg.Wait()
		for np := 0; np < NThreads; np++ {
			received := append([]int{}, mb.ReceiveMyMessages(np)...)
			mb.ClearMyMessages(np)
			sort.Ints(received)
			var expected []int
			kMin, kMax := owners.GetBucketRange(np)
			for row := hm.Windows[np][0]; row < hm.Windows[np][1]; row++ {
				if row < kMin || row >= kMax {
					expected = append(expected, row)
				}
			}
			assert.Equal(t, expected, received)
			assert.Equal(t, len(expected), hm.HaloRows(np))
		}
	}
}

func TestIndexing(t *testing.T) {
	for I := 0; I < 60; I++ {
		i, j := Index2D(I, 7)
		assert.Equal(t, I, Index1D(i, j, 7))
	}
	assert.Equal(t, 0.123457, RoundSix(0.1234567))
	assert.Equal(t, 1., RoundSix(0.9999999))
	assert.Equal(t, 3, ClampInt(7, 0, 3))
	assert.Equal(t, 0, ClampInt(-1, 0, 3))
	assert.True(t, IsNan([]types.Vector{{0, 0, 0}, {1, math.NaN(), 0}}))
	assert.False(t, IsNan([]float64{1, 2}))
	assert.True(t, IsNan(math.NaN()))
	assert.Contains(t, GetMemUsage(), "Alloc")
}
