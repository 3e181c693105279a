package InputParameters

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/inflowgen/filter"
	"github.com/notargets/inflowgen/massflow"
)

func TestInflowParameters(t *testing.T) {
	{ // YAML overrides defaults, unnamed keys keep them
		var ipYAML = []byte(`
Title: "Channel inlet"
LY: 1
LZ: 1
GridFactor: 2
CorrelationShape: doubleExp
NfK: 3
CleanRestart: false
Patch:
  Y0: -0.5
  Y1: 0.5
  NY: 8
Profile:
  MeanU: 10
`)
		ip := NewInflowParameters()
		require.NoError(t, ip.Parse(ipYAML))
		assert.Equal(t, "Channel inlet", ip.Title)
		assert.Equal(t, 1., ip.LY)
		assert.Equal(t, 2., ip.GridFactor)
		assert.Equal(t, "doubleExp", ip.CorrelationShape)
		assert.Equal(t, 3, ip.NfK)
		assert.False(t, ip.CleanRestart)
		assert.Equal(t, massflow.DefaultRule, ip.MassFlowRule)
		assert.Equal(t, -0.5, ip.Patch.Y0)
		assert.Equal(t, 8, ip.Patch.NY)
		assert.Equal(t, 20, ip.Patch.NZ)
		assert.Equal(t, 10., ip.Profile.MeanU)
		assert.Equal(t, 0.01, ip.Profile.Stress)
		require.NoError(t, ip.Validate())
		ip.Print()
	}
	{ // INI form of the same keys
		ip := NewInflowParameters()
		require.NoError(t, ip.ParseINI(`
[inflow]
title = duct
gridFactor = 3
correlationShape = exp
nfK = 4
cleanRestart = false
seed = 77
massFlowRule = shift
`))
		assert.Equal(t, "duct", ip.Title)
		assert.Equal(t, 3., ip.GridFactor)
		assert.Equal(t, "exp", ip.CorrelationShape)
		assert.Equal(t, 4, ip.NfK)
		assert.False(t, ip.CleanRestart)
		assert.Equal(t, uint64(77), ip.Seed)
		assert.Equal(t, "shift", ip.MassFlowRule)
		assert.Equal(t, 1.e-3, ip.DeltaT)
		require.NoError(t, ip.Validate())
		assert.Error(t, ip.ParseINI("[inflow]\nnotAKey = 1\n"))
	}
	{ // Validation
		ip := NewInflowParameters()
		ip.CorrelationShape = "tophat"
		assert.True(t, errors.Is(ip.Validate(), filter.ErrUnknownShape))
		ip = NewInflowParameters()
		ip.MassFlowRule = "bulk"
		assert.True(t, errors.Is(ip.Validate(), massflow.ErrUnknownRule))
		ip = NewInflowParameters()
		ip.NfK = 0
		assert.Error(t, ip.Validate())
		ip = NewInflowParameters()
		ip.GridFactor = 0
		assert.Error(t, ip.Validate())
	}
	{ // Files
		name := filepath.Join(t.TempDir(), "inflow.yaml")
		require.NoError(t, os.WriteFile(name, []byte("NfK: 5\nSteps: 12\n"), 0644))
		ip, err := ReadFile(name)
		require.NoError(t, err)
		assert.Equal(t, 5, ip.NfK)
		assert.Equal(t, 12, ip.Steps)
		require.NoError(t, os.WriteFile(name, []byte("CorrelationShape: box\n"), 0644))
		_, err = ReadFile(name)
		assert.True(t, errors.Is(err, filter.ErrUnknownShape))
		_, err = ReadFile(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
		ini := filepath.Join(t.TempDir(), "inflow.ini")
		require.NoError(t, os.WriteFile(ini, []byte("[inflow]\nsteps = 7\ncorrelationShape = exp\n"), 0644))
		ip, err = ReadFile(ini)
		require.NoError(t, err)
		assert.Equal(t, 7, ip.Steps)
		assert.Equal(t, "exp", ip.CorrelationShape)
		assert.Equal(t, 2, ip.NfK)
	}
}
