package InputParameters

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ghodss/yaml"
	"gopkg.in/gcfg.v1"

	"github.com/notargets/inflowgen/filter"
	"github.com/notargets/inflowgen/massflow"
)

// Parameters obtained from the YAML input file
type InflowParameters struct {
	Title            string  `yaml:"Title"`
	LY               float64 `yaml:"LY"` // Minimum lattice height, the patch extent is used when larger
	LZ               float64 `yaml:"LZ"`
	GridFactor       float64 `yaml:"GridFactor"`
	CorrelationShape string  `yaml:"CorrelationShape"`
	NfK              int     `yaml:"NfK"`
	CleanRestart     bool    `yaml:"CleanRestart"`
	Seed             uint64  `yaml:"Seed"`
	MassFlowRule     string  `yaml:"MassFlowRule"`
	TargetFlux       float64 `yaml:"TargetFlux"` // Zero uses the flux of the mean profile
	Perturb          float64 `yaml:"Perturb"`
	ProcLimit        int     `yaml:"ProcLimit"`
	// Standalone driver settings
	DeltaT      float64 `yaml:"DeltaT"`
	Steps       int     `yaml:"Steps"`
	ProfileFile string  `yaml:"ProfileFile"`
	Patch       PatchParameters
	Profile     UniformProfileParameters
}

// PatchParameters describe the rectangular inflow patch built by the standalone driver
type PatchParameters struct {
	X      float64 `yaml:"X"`
	Y0, Y1 float64
	Z0, Z1 float64
	NY, NZ int
}

// UniformProfileParameters give a homogeneous profile when no profile file is used
type UniformProfileParameters struct {
	MeanU       float64 `yaml:"MeanU"`
	Stress      float64 `yaml:"Stress"` // Diagonal Reynolds stress
	LengthScale float64 `yaml:"LengthScale"`
	TimeScale   float64 `yaml:"TimeScale"`
}

func NewInflowParameters() *InflowParameters {
	return &InflowParameters{
		Title:            "inflow",
		GridFactor:       1,
		CorrelationShape: "gaussian",
		NfK:              2,
		CleanRestart:     true,
		Seed:             1,
		MassFlowRule:     massflow.DefaultRule,
		DeltaT:           1.e-3,
		Steps:            100,
		Patch: PatchParameters{
			Y0: 0, Y1: 1,
			Z0: 0, Z1: 1,
			NY: 20, NZ: 20,
		},
		Profile: UniformProfileParameters{
			MeanU:       1,
			Stress:      0.01,
			LengthScale: 0.1,
			TimeScale:   0.1,
		},
	}
}

func (ip *InflowParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

// ReadFile reads YAML, or the INI form for a .ini file, over the defaults
func ReadFile(fileName string) (ip *InflowParameters, err error) {
	var data []byte
	if data, err = os.ReadFile(fileName); err != nil {
		return
	}
	ip = NewInflowParameters()
	if strings.EqualFold(filepath.Ext(fileName), ".ini") {
		err = ip.ParseINI(string(data))
	} else {
		err = ip.Parse(data)
	}
	if err != nil {
		err = fmt.Errorf("parsing %s: %w", fileName, err)
		return
	}
	err = ip.Validate()
	return
}

// iniFile is the layout of the INI form, one [inflow] section with the same names as the YAML keys
type iniFile struct {
	Inflow struct {
		Title            string
		LY, LZ           float64
		GridFactor       float64
		CorrelationShape string
		NfK              int
		CleanRestart     bool
		Seed             uint64
		MassFlowRule     string
		TargetFlux       float64
		Perturb          float64
		ProcLimit        int
		DeltaT           float64
		Steps            int
		ProfileFile      string
	}
}

// ParseINI reads the INI form; keys it does not name keep their current values
func (ip *InflowParameters) ParseINI(data string) (err error) {
	var ini iniFile
	in := &ini.Inflow
	in.Title, in.LY, in.LZ, in.GridFactor = ip.Title, ip.LY, ip.LZ, ip.GridFactor
	in.CorrelationShape, in.NfK, in.CleanRestart, in.Seed = ip.CorrelationShape, ip.NfK, ip.CleanRestart, ip.Seed
	in.MassFlowRule, in.TargetFlux, in.Perturb, in.ProcLimit = ip.MassFlowRule, ip.TargetFlux, ip.Perturb, ip.ProcLimit
	in.DeltaT, in.Steps, in.ProfileFile = ip.DeltaT, ip.Steps, ip.ProfileFile
	if err = gcfg.ReadStringInto(&ini, data); err != nil {
		return
	}
	ip.Title, ip.LY, ip.LZ, ip.GridFactor = in.Title, in.LY, in.LZ, in.GridFactor
	ip.CorrelationShape, ip.NfK, ip.CleanRestart, ip.Seed = in.CorrelationShape, in.NfK, in.CleanRestart, in.Seed
	ip.MassFlowRule, ip.TargetFlux, ip.Perturb, ip.ProcLimit = in.MassFlowRule, in.TargetFlux, in.Perturb, in.ProcLimit
	ip.DeltaT, ip.Steps, ip.ProfileFile = in.DeltaT, in.Steps, in.ProfileFile
	return
}

func (ip *InflowParameters) Validate() (err error) {
	switch {
	case ip.GridFactor <= 0:
		err = fmt.Errorf("GridFactor must be positive, have %g", ip.GridFactor)
	case ip.NfK < 1:
		err = fmt.Errorf("NfK must be at least 1, have %d", ip.NfK)
	case ip.LY < 0 || ip.LZ < 0:
		err = fmt.Errorf("LY and LZ must not be negative, have %g, %g", ip.LY, ip.LZ)
	case ip.Perturb < 0:
		err = fmt.Errorf("Perturb must not be negative, have %g", ip.Perturb)
	}
	if err != nil {
		return
	}
	if _, err = filter.LookupShape(ip.CorrelationShape); err != nil {
		return
	}
	_, err = massflow.LookupRule(ip.MassFlowRule)
	return
}

func (ip *InflowParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("%8.5f, %8.5f\t= LY, LZ\n", ip.LY, ip.LZ)
	fmt.Printf("%8.5f\t\t= GridFactor\n", ip.GridFactor)
	fmt.Printf("[%s]\t\t= CorrelationShape\n", ip.CorrelationShape)
	fmt.Printf("[%d]\t\t\t= NfK\n", ip.NfK)
	fmt.Printf("[%v]\t\t\t= CleanRestart\n", ip.CleanRestart)
	fmt.Printf("[%s]\t\t\t= MassFlowRule\n", ip.MassFlowRule)
	if ip.TargetFlux != 0 {
		fmt.Printf("%8.5f\t\t= TargetFlux\n", ip.TargetFlux)
	}
	fmt.Printf("%8.5f\t\t= DeltaT\n", ip.DeltaT)
	fmt.Printf("[%d]\t\t\t= Steps\n", ip.Steps)
}
