package readfiles

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/gocarina/gocsv"

	"github.com/notargets/inflowgen/types"
)

/*
ProfilePoint is one input point of the inflow statistics: mean velocity, Reynolds
stress, per component integral length scales along y and z, per component time scales
and an optional streamwise length scale. A zero time scale with a positive Lx is filled
from Taylor's hypothesis, T = Lx / |U|.
*/
type ProfilePoint struct {
	Y, Z   float64
	U      types.Vector
	R      types.SymmTensor
	Ly, Lz types.Vector
	T      types.Vector
	Lx     float64
}

type ProfileSource interface {
	Profile(ctx context.Context) ([]ProfilePoint, error)
}

type StaticProfileSource struct {
	Points []ProfilePoint
}

func (sp *StaticProfileSource) Profile(ctx context.Context) ([]ProfilePoint, error) {
	return sp.Points, ctx.Err()
}

// UniformProfile fills a ny x nz block of identical points spanning [y0,y1] x [z0,z1]
func UniformProfile(pt ProfilePoint, y0, y1, z0, z1 float64, ny, nz int) (sp *StaticProfileSource) {
	sp = &StaticProfileSource{}
	at := func(a, b float64, i, n int) float64 {
		if n < 2 {
			return 0.5 * (a + b)
		}
		return a + (b-a)*float64(i)/float64(n-1)
	}
	for j := 0; j < ny; j++ {
		for k := 0; k < nz; k++ {
			p := pt
			p.Y, p.Z = at(y0, y1, j, ny), at(z0, z1, k, nz)
			sp.Points = append(sp.Points, p)
		}
	}
	return
}

type profileRecord struct {
	Y   float64 `csv:"y" json:"y"`
	Z   float64 `csv:"z" json:"z"`
	Ux  float64 `csv:"Ux" json:"Ux"`
	Uy  float64 `csv:"Uy" json:"Uy"`
	Uz  float64 `csv:"Uz" json:"Uz"`
	Rxx float64 `csv:"Rxx" json:"Rxx"`
	Rxy float64 `csv:"Rxy" json:"Rxy"`
	Rxz float64 `csv:"Rxz" json:"Rxz"`
	Ryy float64 `csv:"Ryy" json:"Ryy"`
	Ryz float64 `csv:"Ryz" json:"Ryz"`
	Rzz float64 `csv:"Rzz" json:"Rzz"`
	Lyu float64 `csv:"Lyu" json:"Lyu"`
	Lyv float64 `csv:"Lyv" json:"Lyv"`
	Lyw float64 `csv:"Lyw" json:"Lyw"`
	Lzu float64 `csv:"Lzu" json:"Lzu"`
	Lzv float64 `csv:"Lzv" json:"Lzv"`
	Lzw float64 `csv:"Lzw" json:"Lzw"`
	Tu  float64 `csv:"Tu" json:"Tu"`
	Tv  float64 `csv:"Tv" json:"Tv"`
	Tw  float64 `csv:"Tw" json:"Tw"`
	Lx  float64 `csv:"Lx" json:"Lx"`
}

func (r *profileRecord) point() ProfilePoint {
	return ProfilePoint{
		Y:  r.Y,
		Z:  r.Z,
		U:  types.Vector{r.Ux, r.Uy, r.Uz},
		R:  types.SymmTensor{r.Rxx, r.Rxy, r.Rxz, r.Ryy, r.Ryz, r.Rzz},
		Ly: types.Vector{r.Lyu, r.Lyv, r.Lyw},
		Lz: types.Vector{r.Lzu, r.Lzv, r.Lzw},
		T:  types.Vector{r.Tu, r.Tv, r.Tw},
		Lx: r.Lx,
	}
}

func newProfileRecord(p ProfilePoint) *profileRecord {
	return &profileRecord{
		Y: p.Y, Z: p.Z,
		Ux: p.U[0], Uy: p.U[1], Uz: p.U[2],
		Rxx: p.R[types.XX], Rxy: p.R[types.XY], Rxz: p.R[types.XZ],
		Ryy: p.R[types.YY], Ryz: p.R[types.YZ], Rzz: p.R[types.ZZ],
		Lyu: p.Ly[0], Lyv: p.Ly[1], Lyw: p.Ly[2],
		Lzu: p.Lz[0], Lzv: p.Lz[1], Lzw: p.Lz[2],
		Tu: p.T[0], Tv: p.T[1], Tw: p.T[2],
		Lx: p.Lx,
	}
}

// OpenProfile picks the source from the file extension, .yaml or .yml for YAML and CSV otherwise
func OpenProfile(fileName string) ProfileSource {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".yaml", ".yml":
		return &YAMLProfileSource{FileName: fileName}
	}
	return &CSVProfileSource{FileName: fileName}
}

// YAMLProfileSource reads a list of points under the key "points", with the CSV column names as keys
type YAMLProfileSource struct {
	FileName string
}

type yamlProfile struct {
	Points []*profileRecord `json:"points"`
}

func (ys *YAMLProfileSource) Profile(ctx context.Context) (pts []ProfilePoint, err error) {
	if err = ctx.Err(); err != nil {
		return
	}
	var (
		data []byte
		yp   yamlProfile
	)
	if data, err = os.ReadFile(ys.FileName); err != nil {
		return
	}
	if err = yaml.Unmarshal(data, &yp); err != nil {
		err = fmt.Errorf("reading profile %s: %w", ys.FileName, err)
		return
	}
	if len(yp.Points) == 0 {
		err = fmt.Errorf("profile %s has no points", ys.FileName)
		return
	}
	for _, r := range yp.Points {
		pts = append(pts, r.point())
	}
	return
}

// CSVProfileSource reads the profile from a CSV file with one header row, re-reading on every call
type CSVProfileSource struct {
	FileName string
}

func (cs *CSVProfileSource) Profile(ctx context.Context) (pts []ProfilePoint, err error) {
	if err = ctx.Err(); err != nil {
		return
	}
	var file *os.File
	if file, err = os.Open(cs.FileName); err != nil {
		return
	}
	defer file.Close()
	if pts, err = ReadProfileCSV(file); err != nil {
		err = fmt.Errorf("reading profile %s: %w", cs.FileName, err)
	}
	return
}

func ReadProfileCSV(r io.Reader) (pts []ProfilePoint, err error) {
	var recs []*profileRecord
	if err = gocsv.Unmarshal(r, &recs); err != nil {
		return
	}
	if len(recs) == 0 {
		err = fmt.Errorf("profile has no points")
		return
	}
	pts = make([]ProfilePoint, len(recs))
	for i, rec := range recs {
		pts[i] = rec.point()
	}
	return
}

func WriteProfileCSV(w io.Writer, pts []ProfilePoint) error {
	recs := make([]*profileRecord, len(pts))
	for i, p := range pts {
		recs[i] = newProfileRecord(p)
	}
	return gocsv.Marshal(recs, w)
}

// TimeScales returns the per component time scales, using Taylor's hypothesis where T is unset
func TimeScales(pts []ProfilePoint) (T []types.Vector) {
	T = make([]types.Vector, len(pts))
	for i, p := range pts {
		T[i] = p.T
		speed := p.U.Mag()
		for c := 0; c < 3; c++ {
			if T[i][c] <= 0 && p.Lx > 0 && speed > 0 {
				T[i][c] = p.Lx / speed
			}
		}
	}
	return
}

// MinLengthScales is the smallest positive length scale of any component along y and z
func MinLengthScales(pts []ProfilePoint) (minLy, minLz float64, err error) {
	minLy, minLz = math.Inf(1), math.Inf(1)
	for _, p := range pts {
		for c := 0; c < 3; c++ {
			if p.Ly[c] > 0 {
				minLy = math.Min(minLy, p.Ly[c])
			}
			if p.Lz[c] > 0 {
				minLz = math.Min(minLz, p.Lz[c])
			}
		}
	}
	if math.IsInf(minLy, 1) || math.IsInf(minLz, 1) {
		err = fmt.Errorf("profile has no positive length scales")
	}
	return
}

func Points2(pts []ProfilePoint) (p2 []types.Point2) {
	p2 = make([]types.Point2, len(pts))
	for i, p := range pts {
		p2[i] = types.Point2{p.Y, p.Z}
	}
	return
}

func Means(pts []ProfilePoint) (U []types.Vector) {
	U = make([]types.Vector, len(pts))
	for i, p := range pts {
		U[i] = p.U
	}
	return
}

func Stresses(pts []ProfilePoint) (R []types.SymmTensor) {
	R = make([]types.SymmTensor, len(pts))
	for i, p := range pts {
		R[i] = p.R
	}
	return
}

func LengthScales(pts []ProfilePoint) (Ly, Lz []types.Vector) {
	Ly = make([]types.Vector, len(pts))
	Lz = make([]types.Vector, len(pts))
	for i, p := range pts {
		Ly[i], Lz[i] = p.Ly, p.Lz
	}
	return
}
