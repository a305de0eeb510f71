package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	mapperService = "org.openbmc.ObjectMapper"
	mapperPath    = "/org/openbmc/ObjectMapper"
	inventoryRoot = "/org/openbmc/inventory"
	sensorsRoot   = "/org/openbmc/sensors"

	chassisService = "org.openbmc.control.Chassis"
	chassisPath    = "/org/openbmc/control/chassis0"
	systemService  = "org.openbmc.managers.System"
	systemPath     = "/org/openbmc/managers/System"
	ledService     = "org.openbmc.control.led"
	ledInterface   = "org.openbmc.Led"
	sensorIface    = "org.openbmc.SensorValue"
	propertiesGet  = "org.freedesktop.DBus.Properties.GetAll"
)

var powerMethods = map[string]string{
	PowerOn:              "powerOn",
	PowerForceOff:        "powerOff",
	PowerGracefulOff:     "softPowerOff",
	PowerForceRestart:    "reboot",
	PowerGracefulRestart: "softReboot",
}

var ledMethods = map[string]string{
	LEDOn:        "setOn",
	LEDOff:       "setOff",
	LEDBlinkFast: "setBlinkFast",
	LEDBlinkSlow: "setBlinkSlow",
}

var knownLEDs = map[string]bool{"identify": true, "power": true, "heartbeat": true}

// DBusProvider queries an OpenBMC management controller over the system bus.
type DBusProvider struct {
	conn   *dbus.Conn
	logger *zap.Logger

	mu        sync.Mutex
	inventory inventory
}

func NewDBusProvider(logger *zap.Logger) (*DBusProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w: %v", ErrUnavailable, err)
	}
	return &DBusProvider{conn: conn, logger: logger}, nil
}

func (p *DBusProvider) Close() error {
	return p.conn.Close()
}

// loadInventory enumerates the inventory subtree once and caches it.
func (p *DBusProvider) loadInventory(ctx context.Context) (inventory, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inventory != nil {
		return p.inventory, nil
	}
	inv, err := p.enumerate(ctx, inventoryRoot)
	if err != nil {
		return nil, err
	}
	p.inventory = inv
	return inv, nil
}

func (p *DBusProvider) enumerate(ctx context.Context, root string) (inventory, error) {
	var tree map[string]map[string][]string
	err := p.conn.Object(mapperService, mapperPath).
		CallWithContext(ctx, mapperService+".GetSubTree", 0, root, int32(0), []string{}).
		Store(&tree)
	if err != nil {
		return nil, fmt.Errorf("mapper subtree %s: %w: %v", root, ErrUnavailable, err)
	}

	inv := inventory{}
	for path, services := range tree {
		props := map[string]any{}
		for service, ifaces := range services {
			obj := p.conn.Object(service, dbus.ObjectPath(path))
			for _, iface := range ifaces {
				if strings.HasPrefix(iface, "org.freedesktop.DBus") {
					continue
				}
				var all map[string]dbus.Variant
				if err := obj.CallWithContext(ctx, propertiesGet, 0, iface).Store(&all); err != nil {
					p.logger.Debug("get properties failed",
						zap.String("path", path), zap.String("interface", iface), zap.Error(err))
					continue
				}
				for k, v := range all {
					props[k] = v.Value()
				}
			}
		}
		inv[path] = props
	}
	return inv, nil
}

func (p *DBusProvider) ChassisInfo(ctx context.Context) (map[string]any, error) {
	inv, err := p.loadInventory(ctx)
	if err != nil {
		return nil, err
	}
	return chassisFromInventory(inv), nil
}

func (p *DBusProvider) Processors(ctx context.Context) ([]Item, error) {
	inv, err := p.loadInventory(ctx)
	if err != nil {
		return nil, err
	}
	return processorsFromInventory(inv), nil
}

func (p *DBusProvider) Memory(ctx context.Context) ([]Item, error) {
	inv, err := p.loadInventory(ctx)
	if err != nil {
		return nil, err
	}
	return memoryFromInventory(inv), nil
}

func (p *DBusProvider) SystemID(ctx context.Context) (string, error) {
	v, err := p.conn.Object(chassisService, chassisPath).GetProperty(chassisService + ".uuid")
	if err != nil {
		return "", fmt.Errorf("chassis uuid: %w: %v", ErrUnavailable, err)
	}
	return str(v.Value()), nil
}

func (p *DBusProvider) SystemType() string { return "Physical" }

func (p *DBusProvider) BIOSVersion(ctx context.Context) (string, error) {
	inv, err := p.loadInventory(ctx)
	if err != nil {
		return "", err
	}
	return biosFromInventory(inv), nil
}

func (p *DBusProvider) PowerState(ctx context.Context) (string, error) {
	var state string
	err := p.conn.Object(systemService, systemPath).
		CallWithContext(ctx, systemService+".getSystemState", 0).
		Store(&state)
	if err != nil {
		return "", fmt.Errorf("system state: %w: %v", ErrUnavailable, err)
	}
	mapped, ok := systemStates[state]
	if !ok {
		return "", fmt.Errorf("system state %q: %w", state, ErrUnsupported)
	}
	return mapped, nil
}

func (p *DBusProvider) PowerControl(ctx context.Context, op string) error {
	method, ok := powerMethods[op]
	if !ok {
		return fmt.Errorf("power control %q: %w", op, ErrUnsupported)
	}
	call := p.conn.Object(chassisService, chassisPath).
		CallWithContext(ctx, chassisService+"."+method, 0)
	if call.Err != nil {
		return fmt.Errorf("power control %s: %w: %v", op, ErrUnavailable, call.Err)
	}
	return nil
}

func (p *DBusProvider) LEDState(ctx context.Context, led string) (string, error) {
	if !knownLEDs[led] {
		return "", fmt.Errorf("led %q: %w", led, ErrUnsupported)
	}
	call := p.ledObject(led).CallWithContext(ctx, ledInterface+".GetLedState", 0)
	if call.Err != nil {
		return "", fmt.Errorf("led %s state: %w: %v", led, ErrUnavailable, call.Err)
	}
	return ledStateFromReply(call.Body), nil
}

func (p *DBusProvider) SetLED(ctx context.Context, led, op string) error {
	method, ok := ledMethods[op]
	if !ok || !knownLEDs[led] {
		return fmt.Errorf("led %s %q: %w", led, op, ErrUnsupported)
	}
	call := p.ledObject(led).CallWithContext(ctx, ledInterface+"."+method, 0)
	if call.Err != nil {
		return fmt.Errorf("led %s %s: %w: %v", led, op, ErrUnavailable, call.Err)
	}
	return nil
}

func (p *DBusProvider) Sensor(ctx context.Context, name string) (SensorReading, error) {
	sensors, err := p.enumerate(ctx, sensorsRoot)
	if err != nil {
		return SensorReading{}, err
	}
	for path, props := range sensors {
		if lastSegment(path) != name {
			continue
		}
		value, ok := toFloat(props["value"])
		if !ok {
			return SensorReading{}, fmt.Errorf("sensor %s has no numeric value: %w", name, ErrUnavailable)
		}
		return SensorReading{Name: name, Value: value, Units: str(props["units"])}, nil
	}
	return SensorReading{}, fmt.Errorf("sensor %q: %w", name, ErrUnavailable)
}

func (p *DBusProvider) ledObject(led string) dbus.BusObject {
	return p.conn.Object(ledService, dbus.ObjectPath("/org/openbmc/control/led/"+led))
}

// ledStateFromReply maps a GetLedState reply to an indicator state. The
// controller answers either (code, state) or a bare state string.
func ledStateFromReply(body []any) string {
	if len(body) == 0 {
		return ""
	}
	state := str(body[len(body)-1])
	switch state {
	case "On":
		return IndicatorLit
	case "Blink", "BlinkFast", "BlinkSlow":
		return IndicatorBlinking
	default:
		return IndicatorOff
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

var _ Provider = (*DBusProvider)(nil)
var _ Provider = (*StaticProvider)(nil)
