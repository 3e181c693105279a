package filter

import (
	"fmt"
	"math/rand/v2"
)

/*
NoiseGenerator produces standard normal white noise on the extended lattice. Each
extended row has its own PCG stream derived from the seed and the row index, so the
sequence a row sees does not depend on which worker generates it or how many workers
there are. The stream states are the only thing needed to continue the sequence after a
restart.
*/
type NoiseGenerator struct {
	Seed    uint64
	RowLen  int
	streams []*rand.PCG
	rngs    []*rand.Rand
}

// NoiseRow is one row of the extended noise field, one slice per velocity component
type NoiseRow struct {
	Row  int
	Data [3][]float64
}

func NewNoiseRow(row, rowLen int) (nr *NoiseRow) {
	nr = &NoiseRow{Row: row}
	for c := 0; c < 3; c++ {
		nr.Data[c] = make([]float64, rowLen)
	}
	return
}

func NewNoiseGenerator(seed uint64, nRows, rowLen int) (ng *NoiseGenerator) {
	ng = &NoiseGenerator{
		Seed:    seed,
		RowLen:  rowLen,
		streams: make([]*rand.PCG, nRows),
		rngs:    make([]*rand.Rand, nRows),
	}
	for row := 0; row < nRows; row++ {
		ng.seedRow(row)
	}
	return
}

func (ng *NoiseGenerator) seedRow(row int) {
	s1 := splitMix64(ng.Seed ^ (uint64(row)+1)*0x9e3779b97f4a7c15)
	s2 := splitMix64(s1)
	ng.streams[row] = rand.NewPCG(s1, s2)
	ng.rngs[row] = rand.New(ng.streams[row])
}

func splitMix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

func (ng *NoiseGenerator) NumRows() int {
	return len(ng.streams)
}

// FillRow draws one sample per node and component, node by node
func (ng *NoiseGenerator) FillRow(nr *NoiseRow) {
	var (
		rng = ng.rngs[nr.Row]
	)
	for k := 0; k < ng.RowLen; k++ {
		for c := 0; c < 3; c++ {
			nr.Data[c][k] = rng.NormFloat64()
		}
	}
}

func (ng *NoiseGenerator) MarshalStreams() (states [][]byte, err error) {
	states = make([][]byte, len(ng.streams))
	for row, s := range ng.streams {
		if states[row], err = s.MarshalBinary(); err != nil {
			err = fmt.Errorf("noise row %d: %w", row, err)
			return
		}
	}
	return
}

/*
UnmarshalStreams restores saved stream states. When the lattice changed since the
states were saved, rows without a saved state keep their freshly seeded stream and
saved rows beyond the current lattice are ignored.
*/
func (ng *NoiseGenerator) UnmarshalStreams(states [][]byte) (err error) {
	for row, st := range states {
		if row >= len(ng.streams) {
			break
		}
		if err = ng.streams[row].UnmarshalBinary(st); err != nil {
			err = fmt.Errorf("noise row %d: %w", row, err)
			return
		}
	}
	return
}
