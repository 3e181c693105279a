package filter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/notargets/inflowgen/lattice"
	"github.com/notargets/inflowgen/types"
	"github.com/notargets/inflowgen/utils"
)

// NodeKernels holds the y and z filters of each velocity component at one lattice node
type NodeKernels struct {
	Y, Z [3]*Kernel
}

// KernelsFor converts per node length scales into filters using the lattice spacings
func KernelsFor(kf *KernelFactory, g *lattice.Grid, Ly, Lz []types.Vector) (nk []NodeKernels, err error) {
	if len(Ly) != g.NumNodes() || len(Lz) != g.NumNodes() {
		err = fmt.Errorf("need %d length scales per direction, have %d and %d",
			g.NumNodes(), len(Ly), len(Lz))
		return
	}
	nk = make([]NodeKernels, g.NumNodes())
	for I := range nk {
		for c := 0; c < 3; c++ {
			if nk[I].Y[c], err = kf.Get(GridUnits(Ly[I][c], g.DY)); err != nil {
				return
			}
			if nk[I].Z[c], err = kf.Get(GridUnits(Lz[I][c], g.DZ)); err != nil {
				return
			}
		}
	}
	return
}

/*
SpatialCorrelator filters white noise on the extended lattice into a spatially
correlated field on the lattice. Lattice rows are split among workers; each worker also
owns a block of extended noise rows which it generates and sends to the workers whose
filter window reads them.

The extended field pads the lattice with HY rows and HZ columns on each side, the
largest half widths in use, so lattice node (j, k) reads extended rows j..j+2HY.
*/
type SpatialCorrelator struct {
	Grid      *lattice.Grid
	Kernels   []NodeKernels
	HY, HZ    int
	NYe, NZe  int
	Noise     *NoiseGenerator
	Rows      *utils.PartitionMap // Lattice rows
	NoiseRows *utils.PartitionMap // Extended rows
	Halo      *utils.HaloMap
	mb        *utils.MailBox[*NoiseRow]
	owned     [][]*NoiseRow
	// Wall time of the last noise and convolution phases
	NoiseElapsed, FilterElapsed time.Duration
}

func NewSpatialCorrelator(g *lattice.Grid, kernels []NodeKernels, seed uint64, procLimit int) (sc *SpatialCorrelator, err error) {
	if len(kernels) != g.NumNodes() {
		err = fmt.Errorf("need kernels for %d nodes, have %d", g.NumNodes(), len(kernels))
		return
	}
	sc = &SpatialCorrelator{
		Grid:    g,
		Kernels: kernels,
	}
	for _, nk := range kernels {
		for c := 0; c < 3; c++ {
			sc.HY = max(sc.HY, nk.Y[c].NL)
			sc.HZ = max(sc.HZ, nk.Z[c].NL)
		}
	}
	sc.NYe, sc.NZe = g.NY+2*sc.HY, g.NZ+2*sc.HZ
	NP := utils.ParallelDegreeFor(procLimit, g.NY)
	sc.Rows = utils.NewPartitionMap(NP, g.NY)
	sc.NoiseRows = utils.NewPartitionMap(NP, sc.NYe)
	sc.Halo = utils.NewHaloMap(sc.NoiseRows, func(np int) [2]int {
		j0, j1 := sc.Rows.GetBucketRange(np)
		if j1 == j0 {
			return [2]int{j0, j0}
		}
		return [2]int{j0, j1 + 2*sc.HY}
	})
	sc.mb = utils.NewMailBox[*NoiseRow](NP)
	sc.Noise = NewNoiseGenerator(seed, sc.NYe, sc.NZe)
	sc.owned = make([][]*NoiseRow, NP)
	for np := 0; np < NP; np++ {
		sc.owned[np] = make([]*NoiseRow, sc.NoiseRows.GetBucketDimension(np))
		for e := range sc.owned[np] {
			sc.owned[np][e] = NewNoiseRow(sc.NoiseRows.GetGlobalK(e, np), sc.NZe)
		}
	}
	return
}

func (sc *SpatialCorrelator) ParallelDegree() int {
	return sc.Rows.ParallelDegree
}

// Correlate advances the noise one step and returns the filtered field, one vector per lattice node
func (sc *SpatialCorrelator) Correlate(ctx context.Context) (field []types.Vector, err error) {
	if err = ctx.Err(); err != nil {
		return
	}
	var (
		NP = sc.ParallelDegree()
		wg = sync.WaitGroup{}
	)
	field = make([]types.Vector, sc.Grid.NumNodes())
	start := time.Now()
	for np := 0; np < NP; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			for _, nr := range sc.owned[np] {
				sc.Noise.FillRow(nr)
				for _, tgt := range sc.Halo.Recipients(nr.Row) {
					sc.mb.PostMessage(np, tgt, nr)
				}
			}
			sc.mb.DeliverMyMessages(np)
		}(np)
	}
	wg.Wait()
	sc.NoiseElapsed = time.Since(start)
	start = time.Now()
	errs := make([]error, NP)
	for np := 0; np < NP; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			var (
				w      = sc.Halo.Windows[np]
				window = make([]*NoiseRow, w[1]-w[0])
			)
			for _, nr := range sc.owned[np] {
				if nr.Row >= w[0] && nr.Row < w[1] {
					window[nr.Row-w[0]] = nr
				}
			}
			received := sc.mb.ReceiveMyMessages(np)
			sc.mb.ClearMyMessages(np)
			if len(received) != sc.Halo.HaloRows(np) {
				errs[np] = fmt.Errorf("worker %d received %d halo rows, expected %d",
					np, len(received), sc.Halo.HaloRows(np))
				return
			}
			for _, nr := range received {
				if nr.Row < w[0] || nr.Row >= w[1] {
					errs[np] = fmt.Errorf("worker %d received row %d outside window [%d,%d)",
						np, nr.Row, w[0], w[1])
					return
				}
				window[nr.Row-w[0]] = nr
			}
			j0, j1 := sc.Rows.GetBucketRange(np)
			for j := j0; j < j1; j++ {
				for k := 0; k < sc.Grid.NZ; k++ {
					I := sc.Grid.Index1D(j, k)
					for c := 0; c < 3; c++ {
						field[I][c] = sc.convolve(window, j-w[0], k, c, sc.Kernels[I])
					}
				}
			}
		}(np)
	}
	wg.Wait()
	sc.FilterElapsed = time.Since(start)
	if err = errors.Join(errs...); err != nil {
		field = nil
	}
	return
}

// convolve applies the 2D filter centred on extended node (jw+HY, k+HZ) of the window
func (sc *SpatialCorrelator) convolve(window []*NoiseRow, jw, k, c int, nk NodeKernels) (sum float64) {
	var (
		ky, kz = nk.Y[c], nk.Z[c]
		row0   = jw + sc.HY - ky.NL
		col0   = k + sc.HZ - kz.NL
	)
	for a, by := range ky.Coeffs {
		var (
			data = window[row0+a].Data[c][col0 : col0+kz.Width()]
			rs   float64
		)
		for b, bz := range kz.Coeffs {
			rs += bz * data[b]
		}
		sum += by * rs
	}
	return
}
