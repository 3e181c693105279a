/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/notargets/inflowgen/InflowGenerator"
	"github.com/notargets/inflowgen/InputParameters"
	"github.com/notargets/inflowgen/diagnostics"
	"github.com/notargets/inflowgen/filter"
	"github.com/notargets/inflowgen/geometry2D"
	"github.com/notargets/inflowgen/logging"
	"github.com/notargets/inflowgen/readfiles"
	"github.com/notargets/inflowgen/types"
	"github.com/notargets/inflowgen/utils"
)

type GenerateRun struct {
	InputFile   string
	ProfileFile string
	RestartFile string
	OutDir      string
	Steps       int
	Plot        bool
	Trace       bool
	CPUProfile  bool
	Verbose     bool
	Out         io.Writer // Banner and summary, stdout when nil
}

// GenerateCmd represents the generate command
var GenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the inflow generator on a rectangular patch and write diagnostics",
	Long: `
Runs the inflow generator for a number of steps on the rectangular patch given in the
input parameters and writes diagnostics.csv (flux, moments and phase timings per step)
and metrics.prom to the output directory.

inflowgen generate -I inflow.yaml -P profile.csv -n 500 -o run1 --plot`,
	Run: func(cmd *cobra.Command, args []string) {
		gr := &GenerateRun{}
		gr.InputFile, _ = cmd.Flags().GetString("inputParametersFile")
		gr.ProfileFile, _ = cmd.Flags().GetString("profileFile")
		gr.RestartFile, _ = cmd.Flags().GetString("restart")
		gr.OutDir, _ = cmd.Flags().GetString("outDir")
		gr.Steps, _ = cmd.Flags().GetInt("steps")
		gr.Plot, _ = cmd.Flags().GetBool("plot")
		gr.Trace, _ = cmd.Flags().GetBool("trace")
		gr.CPUProfile, _ = cmd.Flags().GetBool("profile")
		gr.Verbose, _ = cmd.Flags().GetBool("verbose")
		if err := RunGenerate(context.Background(), gr, newLogger()); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(GenerateCmd)
	GenerateCmd.Flags().StringP("inputParametersFile", "I", "", "YAML (or .ini) file of input parameters, defaults are used when absent")
	GenerateCmd.Flags().StringP("profileFile", "P", "", "profile of mean velocity, stresses and scales (.csv, .yaml), overrides ProfileFile")
	GenerateCmd.Flags().IntP("steps", "n", 0, "number of steps, overrides Steps")
	GenerateCmd.Flags().StringP("outDir", "o", ".", "directory for diagnostics output")
	GenerateCmd.Flags().String("restart", "", "restart file, read when CleanRestart is false and written at the end")
	GenerateCmd.Flags().Bool("plot", false, "plot correlations and stress history")
	GenerateCmd.Flags().Bool("trace", false, "write pipeline spans to trace.json")
	GenerateCmd.Flags().Bool("profile", false, "write a CPU profile")
	GenerateCmd.Flags().BoolP("verbose", "v", false, "print the input parameters")
}

func processInput(gr *GenerateRun) (ip *InputParameters.InflowParameters, err error) {
	if len(gr.InputFile) == 0 {
		ip = InputParameters.NewInflowParameters()
	} else if ip, err = InputParameters.ReadFile(gr.InputFile); err != nil {
		exampleFile := `
########################################
Title: "Channel inlet"
CorrelationShape: gaussian # exp, doubleExp
NfK: 2
GridFactor: 2
MassFlowRule: shift # scale, none
CleanRestart: true
Seed: 1
DeltaT: 0.001
Steps: 100
Patch: {X: 0, Y0: 0, Y1: 1, Z0: 0, Z1: 1, NY: 20, NZ: 20}
Profile: {MeanU: 1, Stress: 0.01, LengthScale: 0.1, TimeScale: 0.1}
########################################
`
		fmt.Printf("Example File:%s\n", exampleFile)
		return
	}
	if gr.Steps > 0 {
		ip.Steps = gr.Steps
	}
	if len(gr.ProfileFile) != 0 {
		ip.ProfileFile = gr.ProfileFile
	}
	return
}

func profileSource(ip *InputParameters.InflowParameters) readfiles.ProfileSource {
	if len(ip.ProfileFile) != 0 {
		return readfiles.OpenProfile(ip.ProfileFile)
	}
	var (
		pp = ip.Profile
		p  = ip.Patch
		L  = types.Vector{pp.LengthScale, pp.LengthScale, pp.LengthScale}
	)
	return readfiles.UniformProfile(readfiles.ProfilePoint{
		U:  types.Vector{pp.MeanU, 0, 0},
		R:  types.NewSymmTensorDiag(pp.Stress, pp.Stress, pp.Stress),
		Ly: L,
		Lz: L,
		T:  types.Vector{pp.TimeScale, pp.TimeScale, pp.TimeScale},
	}, p.Y0, p.Y1, p.Z0, p.Z1, 3, 3)
}

func RunGenerate(ctx context.Context, gr *GenerateRun, log logging.Logger) (err error) {
	var (
		ip  *InputParameters.InflowParameters
		out = gr.Out
	)
	if out == nil {
		out = os.Stdout
	}
	if ip, err = processInput(gr); err != nil {
		return
	}
	if gr.Verbose {
		ip.Print()
	}
	if err = os.MkdirAll(gr.OutDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if gr.CPUProfile {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(gr.OutDir), profile.Quiet).Stop()
	}
	tc := InflowGenerator.TracingConfig{Enabled: gr.Trace, ServiceName: "inflowgen", SampleRatio: 1}
	if gr.Trace {
		var traceFile *os.File
		if traceFile, err = os.Create(filepath.Join(gr.OutDir, "trace.json")); err != nil {
			return
		}
		defer traceFile.Close()
		tc.Writer = traceFile
	}
	shutdown, err := InflowGenerator.InitTracing(ctx, tc, log)
	if err != nil {
		return
	}
	defer InflowGenerator.ShutdownWithTimeout(ctx, shutdown, log)

	var (
		p     = ip.Patch
		patch = geometry2D.NewRectangularPatch("inlet", p.X, p.Y0, p.Y1, p.Z0, p.Z1, p.NY, p.NZ)
		reg   = prometheus.NewRegistry()
		deps  = InflowGenerator.Dependencies{
			Patch:   patch,
			Profile: profileSource(ip),
			Logger:  log,
		}
		g *InflowGenerator.Generator
	)
	if len(gr.RestartFile) != 0 {
		deps.Store = &InflowGenerator.FileStore{FileName: gr.RestartFile}
	}
	if deps.Metrics, err = InflowGenerator.NewMetrics(reg); err != nil {
		return
	}
	if g, err = InflowGenerator.NewGenerator(ip, deps); err != nil {
		return
	}
	if err = g.Initialize(ctx); err != nil {
		return
	}
	fmt.Fprintf(out, "%s\n", ip.Title)
	fmt.Fprintf(out, "[%d x %d]\t\t= Patch faces\n", p.NY, p.NZ)
	fmt.Fprintf(out, "%s\t= Lattice\n", g.Grid)
	fmt.Fprintf(out, "%8.5f\t\t= Target flux\n", g.Target)

	var (
		csvFile  *os.File
		acc      = diagnostics.NewAccumulator(len(patch.FaceCentres()))
		cgY, cgZ *diagnostics.Correlogram
		records  []diagnostics.StepRecord
		first    = g.Time.Index + 1
	)
	if cgY, err = diagnostics.NewCorrelogram(g.Grid, diagnostics.AlongY, 0); err != nil {
		return
	}
	if cgZ, err = diagnostics.NewCorrelogram(g.Grid, diagnostics.AlongZ, 0); err != nil {
		return
	}
	if csvFile, err = os.Create(filepath.Join(gr.OutDir, "diagnostics.csv")); err != nil {
		return
	}
	defer csvFile.Close()
	rw := diagnostics.NewRecordWriter(csvFile)
	for n := first; n < first+ip.Steps; n++ {
		var (
			u   []types.Vector
			rec diagnostics.StepRecord
		)
		step := InflowGenerator.TimeStep{Index: n, Time: float64(n) * ip.DeltaT, DeltaT: ip.DeltaT}
		if u, err = g.Update(ctx, step); err != nil {
			return
		}
		if rec, err = diagnostics.NewStepRecord(g.Time, u, g.Corrector().Flux(u), g.Target); err != nil {
			return
		}
		if err = rw.Write(rec); err != nil {
			return
		}
		records = append(records, rec)
		if err = acc.Add(u); err != nil {
			return
		}
		if err = cgY.Add(g.TemporalField()); err != nil {
			return
		}
		if err = cgZ.Add(g.TemporalField()); err != nil {
			return
		}
	}
	if len(gr.RestartFile) != 0 {
		if err = g.Checkpoint(ctx); err != nil {
			return
		}
	}

	stressErr, err := acc.StressError(g.Stresses())
	if err != nil {
		return
	}
	rY, rZ := cgY.Correlation(), cgZ.Correlation()
	fmt.Fprintf(out, "%8.5f\t\t= Max stress error relative to trace\n", stressErr)
	fmt.Fprintf(out, "%8.5f\t\t= Integral scale along y, u component\n", diagnostics.IntegralScale(rY, cgY.Spacing))
	fmt.Fprintf(out, "%8.5f\t\t= Integral scale along z, u component\n", diagnostics.IntegralScale(rZ, cgZ.Spacing))
	fmt.Fprintf(out, "%8.5f\t\t= 1/e length along y, u component\n", diagnostics.CorrelationLength(rY, cgY.Spacing))
	fmt.Fprintf(out, "%8.5f\t\t= 1/e length along z, u component\n", diagnostics.CorrelationLength(rZ, cgZ.Spacing))
	fmt.Fprintf(out, "%s\n", g.Time)
	if gr.Verbose {
		fmt.Fprintf(out, "%s\n", utils.GetMemUsage())
	}

	if err = writeMetrics(filepath.Join(gr.OutDir, "metrics.prom"), reg); err != nil {
		return
	}
	if gr.Plot {
		if err = plotRun(gr.OutDir, ip, g, rY, rZ, cgY.Spacing, cgZ.Spacing, records); err != nil {
			return
		}
	}
	log.Info(ctx, "generation finished",
		logging.Int("steps", ip.Steps),
		logging.String("out_dir", gr.OutDir),
		logging.Float("stress_error", stressErr),
	)
	return
}

func writeMetrics(fileName string, reg prometheus.Gatherer) (err error) {
	var file *os.File
	if file, err = os.Create(fileName); err != nil {
		return
	}
	defer file.Close()
	mfs, err := reg.Gather()
	if err != nil {
		return
	}
	for _, mf := range mfs {
		if _, err = expfmt.MetricFamilyToText(file, mf); err != nil {
			return
		}
	}
	return
}

// plotRun draws the measured lattice correlations against the kernel's and the stress history
func plotRun(dir string, ip *InputParameters.InflowParameters, g *InflowGenerator.Generator,
	rY, rZ []float64, dy, dz float64, records []diagnostics.StepRecord) (err error) {
	curves := []diagnostics.Curve{
		diagnostics.CorrelationCurve("along y", rY, dy),
		diagnostics.CorrelationCurve("along z", rZ, dz),
	}
	if len(ip.ProfileFile) == 0 {
		L := ip.Profile.LengthScale
		for _, ax := range []struct {
			label string
			delta float64
			n     int
		}{{"filter y", dy, len(rY)}, {"filter z", dz, len(rZ)}} {
			var kn *filter.Kernel
			if kn, err = filter.NewKernel(ip.CorrelationShape, filter.GridUnits(L, ax.delta), ip.NfK); err != nil {
				return
			}
			r := make([]float64, ax.n)
			for m := range r {
				r[m] = kn.Autocorrelation(m)
			}
			c := diagnostics.CorrelationCurve(ax.label, r, ax.delta)
			c.Dashed = true
			curves = append(curves, c)
		}
	}
	if err = diagnostics.SavePlot(filepath.Join(dir, "correlation.png"),
		"Two point correlation of u on the lattice", "separation", "r", curves...); err != nil {
		return
	}
	var (
		steps  = make([]float64, len(records))
		series = map[string][]float64{
			"uu": make([]float64, len(records)),
			"vv": make([]float64, len(records)),
			"ww": make([]float64, len(records)),
		}
	)
	for i, r := range records {
		steps[i] = float64(r.Step)
		series["uu"][i], series["vv"][i], series["ww"][i] = r.UU, r.VV, r.WW
	}
	return diagnostics.SavePlot(filepath.Join(dir, "stress.png"),
		fmt.Sprintf("Patch averaged stresses, %s", g.Grid), "step", "stress",
		diagnostics.SeriesCurves(steps, series)...)
}
