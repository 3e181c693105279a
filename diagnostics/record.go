package diagnostics

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/notargets/inflowgen/InflowGenerator"
	"github.com/notargets/inflowgen/types"
)

// StepRecord is one row of diagnostics.csv, the phase times are cumulative
type StepRecord struct {
	Step          int     `csv:"step"`
	Time          float64 `csv:"time"`
	Flux          float64 `csv:"flux"`
	Target        float64 `csv:"target"`
	MeanU         float64 `csv:"mean_u"`
	MeanV         float64 `csv:"mean_v"`
	MeanW         float64 `csv:"mean_w"`
	UU            float64 `csv:"uu"`
	VV            float64 `csv:"vv"`
	WW            float64 `csv:"ww"`
	UV            float64 `csv:"uv"`
	Random        float64 `csv:"random_s"`
	Spatial       float64 `csv:"spatial_s"`
	Temporal      float64 `csv:"temporal_s"`
	Interpolation float64 `csv:"interpolation_s"`
	Scaling       float64 `csv:"scaling_s"`
	MassFlow      float64 `csv:"massflow_s"`
}

func NewStepRecord(ts InflowGenerator.TimeState, u []types.Vector, flux, target float64) (r StepRecord, err error) {
	var m Moments
	if m, err = FieldMoments(u); err != nil {
		return
	}
	r = StepRecord{
		Step:   ts.Index,
		Time:   ts.Time,
		Flux:   flux,
		Target: target,
		MeanU:  m.Mean[0],
		MeanV:  m.Mean[1],
		MeanW:  m.Mean[2],
		UU:     m.Cov[types.XX],
		VV:     m.Cov[types.YY],
		WW:     m.Cov[types.ZZ],
		UV:     m.Cov[types.XY],
	}
	e := ts.Elapsed
	r.Random = e[InflowGenerator.PhaseRandom].Seconds()
	r.Spatial = e[InflowGenerator.PhaseSpatial].Seconds()
	r.Temporal = e[InflowGenerator.PhaseTemporal].Seconds()
	r.Interpolation = e[InflowGenerator.PhaseInterpolation].Seconds()
	r.Scaling = e[InflowGenerator.PhaseScaling].Seconds()
	r.MassFlow = e[InflowGenerator.PhaseMassFlow].Seconds()
	return
}

// RecordWriter appends StepRecords as CSV, the header goes out with the first record
type RecordWriter struct {
	w             io.Writer
	headerWritten bool
	Records       int
}

func NewRecordWriter(w io.Writer) *RecordWriter {
	return &RecordWriter{w: w}
}

func (rw *RecordWriter) Write(r StepRecord) (err error) {
	records := []StepRecord{r}
	if !rw.headerWritten {
		err = gocsv.Marshal(records, rw.w)
		rw.headerWritten = true
	} else {
		err = gocsv.MarshalWithoutHeaders(records, rw.w)
	}
	if err != nil {
		return fmt.Errorf("writing step %d: %w", r.Step, err)
	}
	rw.Records++
	return
}

// ReadRecords loads a diagnostics file back
func ReadRecords(r io.Reader) (records []StepRecord, err error) {
	err = gocsv.Unmarshal(r, &records)
	return
}
