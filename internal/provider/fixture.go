package provider

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixture is the hardware inventory served by StaticProvider.
type Fixture struct {
	SystemID     string `yaml:"system_id"`
	BIOSVersion  string `yaml:"bios_version"`
	PowerState   string `yaml:"power_state"`
	IndicatorLED string `yaml:"indicator_led"`

	Chassis struct {
		SerialNumber string `yaml:"serial_number"`
		Manufacturer string `yaml:"manufacturer"`
		Model        string `yaml:"model"`
		PartNumber   string `yaml:"part_number"`
		UUID         string `yaml:"uuid"`
	} `yaml:"chassis"`

	Processors []FixtureItem            `yaml:"processors"`
	Memory     []FixtureItem            `yaml:"memory"`
	Sensors    map[string]FixtureSensor `yaml:"sensors"`
}

// FixtureItem is one inventory entry in a fixture file.
type FixtureItem struct {
	ID         string         `yaml:"id"`
	Properties map[string]any `yaml:"properties"`
}

// FixtureSensor is a sensor value in a fixture file.
type FixtureSensor struct {
	Value float64 `yaml:"value"`
	Units string  `yaml:"units"`
}

// LoadFixture reads a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f Fixture
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if f.PowerState == "" {
		f.PowerState = StateOff
	}
	if f.IndicatorLED == "" {
		f.IndicatorLED = IndicatorOff
	}
	return &f, nil
}

// DefaultFixture describes a small single-socket-pair server: one chassis,
// two processors and four DIMMs.
func DefaultFixture() *Fixture {
	f := &Fixture{
		SystemID:     "0f1e2d3c4b5a69788796a5b4c3d2e1f0",
		BIOSVersion:  "open-power-firmware-v1.12",
		PowerState:   StateOff,
		IndicatorLED: IndicatorOff,
	}
	f.Chassis.SerialNumber = "0000000000000000"
	f.Chassis.Manufacturer = "OpenPOWER"
	f.Chassis.Model = "Palmetto"
	f.Chassis.PartNumber = "00UL865"
	f.Chassis.UUID = "5a5a5a5a00000000a5a5a5a5ffffffff"

	for i := 0; i < 2; i++ {
		f.Processors = append(f.Processors, FixtureItem{
			ID: fmt.Sprintf("CPU%d", i),
			Properties: map[string]any{
				"Name":          fmt.Sprintf("CPU %d", i),
				"Manufacturer":  "IBM",
				"ProcessorType": "CPU",
				"SerialNumber":  fmt.Sprintf("YA1934%06d", i),
				"PartNumber":    "02CY211",
				"TotalCores":    10,
				"Status":        map[string]any{"State": "Enabled", "Health": "OK"},
			},
		})
	}
	for i := 0; i < 4; i++ {
		f.Memory = append(f.Memory, FixtureItem{
			ID: fmt.Sprintf("DIMM%d", i),
			Properties: map[string]any{
				"Name":         fmt.Sprintf("DIMM %d", i),
				"Manufacturer": "Samsung",
				"MemoryType":   "DRAM",
				"SerialNumber": fmt.Sprintf("35F2%04d", i),
				"PartNumber":   "M393A2G40DB0-CPB",
				"Status":       map[string]any{"State": "Enabled", "Health": "OK"},
			},
		})
	}
	f.Sensors = map[string]FixtureSensor{
		"ambient":      {Value: 23.5, Units: "C"},
		"system_power": {Value: 212, Units: "W"},
		"curr_cap":     {Value: 1000, Units: "W"},
		"min_cap":      {Value: 500, Units: "W"},
		"max_cap":      {Value: 2000, Units: "W"},
	}
	return f
}
