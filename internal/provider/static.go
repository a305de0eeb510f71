package provider

import (
	"context"
	"fmt"
	"sync"
)

// StaticProvider serves a fixed inventory and keeps power and indicator state
// in memory, so actions behave like a real BMC.
type StaticProvider struct {
	mu      sync.Mutex
	fixture *Fixture
	power   string
	leds    map[string]string
}

func NewStaticProvider(f *Fixture) *StaticProvider {
	if f == nil {
		f = DefaultFixture()
	}
	return &StaticProvider{
		fixture: f,
		power:   f.PowerState,
		leds:    map[string]string{LEDIdentify: f.IndicatorLED},
	}
}

func (p *StaticProvider) ChassisInfo(ctx context.Context) (map[string]any, error) {
	c := p.fixture.Chassis
	info := map[string]any{}
	setIf(info, "SerialNumber", c.SerialNumber)
	setIf(info, "Manufacturer", c.Manufacturer)
	setIf(info, "Model", c.Model)
	setIf(info, "PartNumber", c.PartNumber)
	setIf(info, "UUID", c.UUID)
	return info, nil
}

func (p *StaticProvider) Processors(ctx context.Context) ([]Item, error) {
	return toItems(p.fixture.Processors), nil
}

func (p *StaticProvider) Memory(ctx context.Context) ([]Item, error) {
	return toItems(p.fixture.Memory), nil
}

func (p *StaticProvider) SystemID(ctx context.Context) (string, error) {
	return p.fixture.SystemID, nil
}

func (p *StaticProvider) SystemType() string { return "Physical" }

func (p *StaticProvider) BIOSVersion(ctx context.Context) (string, error) {
	return p.fixture.BIOSVersion, nil
}

func (p *StaticProvider) PowerState(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.power, nil
}

func (p *StaticProvider) PowerControl(ctx context.Context, op string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch op {
	case PowerOn, PowerForceRestart, PowerGracefulRestart:
		p.power = StateOn
	case PowerForceOff, PowerGracefulOff:
		p.power = StateOff
	default:
		return fmt.Errorf("power control %q: %w", op, ErrUnsupported)
	}
	return nil
}

func (p *StaticProvider) LEDState(ctx context.Context, led string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.leds[led]
	if !ok {
		return "", fmt.Errorf("led %q: %w", led, ErrUnsupported)
	}
	return state, nil
}

func (p *StaticProvider) SetLED(ctx context.Context, led, op string) error {
	var state string
	switch op {
	case LEDOn:
		state = IndicatorLit
	case LEDOff:
		state = IndicatorOff
	case LEDBlinkFast, LEDBlinkSlow:
		state = IndicatorBlinking
	default:
		return fmt.Errorf("led operation %q: %w", op, ErrUnsupported)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.leds[led]; !ok {
		return fmt.Errorf("led %q: %w", led, ErrUnsupported)
	}
	p.leds[led] = state
	return nil
}

func (p *StaticProvider) Sensor(ctx context.Context, name string) (SensorReading, error) {
	s, ok := p.fixture.Sensors[name]
	if !ok {
		return SensorReading{}, fmt.Errorf("sensor %q: %w", name, ErrUnavailable)
	}
	return SensorReading{Name: name, Value: s.Value, Units: s.Units}, nil
}

func toItems(in []FixtureItem) []Item {
	out := make([]Item, 0, len(in))
	for _, fi := range in {
		props := make(map[string]any, len(fi.Properties))
		for k, v := range fi.Properties {
			props[k] = v
		}
		out = append(out, Item{ID: fi.ID, Properties: props})
	}
	return out
}

func setIf(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}
