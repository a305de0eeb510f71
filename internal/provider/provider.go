package provider

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the management bus cannot answer a query.
var ErrUnavailable = errors.New("provider: management bus unavailable")

// ErrUnsupported is returned for an operation name the provider does not know.
var ErrUnsupported = errors.New("provider: unsupported operation")

// LEDIdentify is the chassis identify indicator.
const LEDIdentify = "identify"

// Power control operations accepted by PowerControl.
const (
	PowerOn              = "On"
	PowerForceOff        = "ForceOff"
	PowerGracefulOff     = "GracefulShutdown"
	PowerForceRestart    = "ForceRestart"
	PowerGracefulRestart = "GracefulRestart"
)

// LED operations accepted by SetLED.
const (
	LEDOn        = "On"
	LEDOff       = "Off"
	LEDBlinkFast = "BlinkFast"
	LEDBlinkSlow = "BlinkSlow"
)

// Power states reported by PowerState.
const (
	StateOn         = "On"
	StateOff        = "Off"
	StatePoweringOn = "PoweringOn"
)

// Indicator states reported by LEDState.
const (
	IndicatorLit      = "Lit"
	IndicatorOff      = "Off"
	IndicatorBlinking = "Blinking"
)

// Item is one inventory entry (a CPU, a DIMM) keyed by its instance id.
type Item struct {
	ID         string
	Properties map[string]any
}

// SensorReading is a single sensor value.
type SensorReading struct {
	Name  string
	Value float64
	Units string
}

// Provider answers semantic hardware queries against the management bus.
// It knows nothing about the resource tree.
type Provider interface {
	ChassisInfo(ctx context.Context) (map[string]any, error)
	Processors(ctx context.Context) ([]Item, error)
	Memory(ctx context.Context) ([]Item, error)
	SystemID(ctx context.Context) (string, error)
	SystemType() string
	BIOSVersion(ctx context.Context) (string, error)
	PowerState(ctx context.Context) (string, error)
	PowerControl(ctx context.Context, op string) error
	LEDState(ctx context.Context, led string) (string, error)
	SetLED(ctx context.Context, led, op string) error
	Sensor(ctx context.Context, name string) (SensorReading, error)
}
