package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFixtureInventory(t *testing.T) {
	p := NewStaticProvider(nil)
	ctx := context.Background()

	cpus, err := p.Processors(ctx)
	require.NoError(t, err)
	assert.Len(t, cpus, 2)
	assert.Equal(t, "CPU0", cpus[0].ID)

	dimms, err := p.Memory(ctx)
	require.NoError(t, err)
	assert.Len(t, dimms, 4)

	info, err := p.ChassisInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0000000000000000", info["SerialNumber"])
}

func TestStaticPowerControl(t *testing.T) {
	p := NewStaticProvider(nil)
	ctx := context.Background()

	state, err := p.PowerState(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateOff, state)

	require.NoError(t, p.PowerControl(ctx, PowerOn))
	state, _ = p.PowerState(ctx)
	assert.Equal(t, StateOn, state)

	require.NoError(t, p.PowerControl(ctx, PowerGracefulOff))
	state, _ = p.PowerState(ctx)
	assert.Equal(t, StateOff, state)

	assert.ErrorIs(t, p.PowerControl(ctx, "Hibernate"), ErrUnsupported)
}

func TestStaticLED(t *testing.T) {
	p := NewStaticProvider(nil)
	ctx := context.Background()

	require.NoError(t, p.SetLED(ctx, LEDIdentify, LEDBlinkFast))
	state, err := p.LEDState(ctx, LEDIdentify)
	require.NoError(t, err)
	assert.Equal(t, IndicatorBlinking, state)

	require.NoError(t, p.SetLED(ctx, LEDIdentify, LEDOn))
	state, _ = p.LEDState(ctx, LEDIdentify)
	assert.Equal(t, IndicatorLit, state)

	assert.ErrorIs(t, p.SetLED(ctx, "rear", LEDOn), ErrUnsupported)
	_, err = p.LEDState(ctx, "rear")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestStaticSensorMissing(t *testing.T) {
	p := NewStaticProvider(nil)
	_, err := p.Sensor(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnavailable)

	r, err := p.Sensor(context.Background(), "ambient")
	require.NoError(t, err)
	assert.Equal(t, "C", r.Units)
}

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	doc := `
system_id: "abc"
bios_version: "v2"
chassis:
  serial_number: "SN1"
  model: "2U"
processors:
  - id: CPU0
    properties:
      Name: "CPU 0"
      TotalCores: 8
memory:
  - id: DIMM0
  - id: DIMM1
sensors:
  ambient: {value: 30, units: C}
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	f, err := LoadFixture(path)
	require.NoError(t, err)
	assert.Equal(t, StateOff, f.PowerState)
	assert.Equal(t, IndicatorOff, f.IndicatorLED)

	p := NewStaticProvider(f)
	info, _ := p.ChassisInfo(context.Background())
	assert.Equal(t, map[string]any{"SerialNumber": "SN1", "Model": "2U"}, info)

	cpus, _ := p.Processors(context.Background())
	require.Len(t, cpus, 1)
	assert.Equal(t, 8, cpus[0].Properties["TotalCores"])
}

func TestLoadFixtureMissing(t *testing.T) {
	_, err := LoadFixture(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
