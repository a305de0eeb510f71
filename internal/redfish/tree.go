package redfish

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"redfishd/internal/events"
	"redfishd/internal/provider"
	"redfishd/internal/registry"
)

const (
	RootName    = "redfish"
	ServiceName = "v1"
	// MetadataSegment is the last segment of the $metadata document path.
	MetadataSegment = "$metadata"
)

// Publisher accepts lifecycle events raised by actions.
type Publisher interface {
	PublishAsync(records ...events.EventRecord)
	Config() events.Config
}

// NopPublisher drops every record.
type NopPublisher struct{}

func (NopPublisher) PublishAsync(...events.EventRecord) {}
func (NopPublisher) Config() events.Config              { return events.Config{} }

// Options configures Build. Zero values are valid: no registries, no
// subscriptions and no event delivery.
type Options struct {
	ChassisID string
	Registry  *registry.Registry
	Store     events.Store
	Publisher Publisher
	Logger    *zap.Logger
}

// Tree is the resource tree built once at startup.
type Tree struct {
	root *Node
	env  *env

	subscriptions *Node
}

// Build assembles the full resource tree from what the provider reports.
// Provider failures are logged and leave the affected resources empty.
func Build(ctx context.Context, p provider.Provider, opts Options) (*Tree, error) {
	if p == nil {
		return nil, errors.New("redfish: nil provider")
	}
	if opts.ChassisID == "" {
		opts.ChassisID = "1U"
	}
	if opts.Publisher == nil {
		opts.Publisher = NopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	e := &env{
		provider:  p,
		registry:  opts.Registry,
		store:     opts.Store,
		publisher: opts.Publisher,
		logger:    opts.Logger,
	}
	b := &builder{log: opts.Logger}

	root := NewRoot(RootName)
	root.env = e

	v1 := b.add(root, NewServiceRoot(ServiceName, "RootService"))
	chassisColl := b.add(v1, NewCollection("Chassis", "Chassis Collection", "ChassisCollection"))
	systemsColl := b.add(v1, NewCollection("Systems", "Computer System Collection", "ComputerSystemCollection"))

	info, err := p.ChassisInfo(ctx)
	if err != nil {
		b.log.Warn("chassis inventory unavailable", zap.Error(err))
		info = map[string]any{}
	}
	serial, _ := info["SerialNumber"].(string)
	if serial == "" {
		serial = "System"
	}

	system := b.add(systemsColl, NewSystem(serial, info))
	chassis := b.add(chassisColl, NewChassis(opts.ChassisID, info))
	chassis.AddRelated("ComputerSystems", system)
	system.AddRelated("Chassis", chassis)

	processors := b.add(system, NewCollection("Processors", "Processors Collection", "ProcessorCollection"))
	memory := b.add(system, NewCollection("Memory", "Memory Collection", "MemoryCollection"))

	cpus, err := p.Processors(ctx)
	if err != nil {
		b.log.Warn("processor inventory unavailable", zap.Error(err))
	}
	for _, item := range cpus {
		b.add(processors, NewProcessor(item))
	}
	dimms, err := p.Memory(ctx)
	if err != nil {
		b.log.Warn("memory inventory unavailable", zap.Error(err))
	}
	for _, item := range dimms {
		b.add(memory, NewMemory(item))
	}

	registries := b.add(v1, NewCollection("Registries", "Registry File Collection", "MessageRegistryFileCollection"))
	if opts.Registry != nil {
		for _, id := range opts.Registry.IDs() {
			doc, _ := opts.Registry.Document(id)
			b.add(registries, NewRegistryFile(id, doc))
		}
	}

	eventService := b.add(v1, NewEventService("EventService"))
	subscriptions := b.add(eventService, NewSubscriptions("Subscriptions"))

	thermal := NewThermal("Thermal")
	power := NewPower("Power")
	b.add(chassis, thermal)
	b.add(chassis, power)
	b.add(power, NewPowerControl("PowerControl", "Power Control"))
	b.add(power, NewPowerSupply("0", "Power Supply 0"))
	b.add(power, NewPowerSupply("1", "Power Supply 1"))

	b.action(chassis, "LedUpdate", ledOps, ledHandler(e))
	b.action(system, "Reset", resetOps, resetHandler(e))
	b.action(system, "LedUpdate", ledOps, ledHandler(e))
	b.action(eventService, "SubmitTestEvent", eventTypeNames(), testEventHandler(e))

	if b.err != nil {
		return nil, b.err
	}
	return &Tree{root: root, env: e, subscriptions: subscriptions}, nil
}

// builder records the first attach or registration error.
type builder struct {
	log *zap.Logger
	err error
}

func (b *builder) add(parent, child *Node) *Node {
	if b.err == nil {
		b.err = parent.AddChild(child)
	}
	return child
}

func (b *builder) action(n *Node, name string, allowed []string, h ActionHandler) {
	if b.err == nil {
		b.err = n.AddAction(name, allowed, h)
	}
}

var (
	ledOps = []string{
		provider.LEDOn,
		provider.LEDOff,
		provider.LEDBlinkFast,
		provider.LEDBlinkSlow,
	}
	resetOps = []string{
		provider.PowerOn,
		provider.PowerForceOff,
		provider.PowerGracefulOff,
		provider.PowerForceRestart,
		provider.PowerGracefulRestart,
	}
)

func eventTypeNames() []string {
	var out []string
	for _, t := range events.EventTypes() {
		out = append(out, string(t))
	}
	return out
}

func resetHandler(e *env) ActionHandler {
	return func(ctx context.Context, op string) error {
		if err := e.provider.PowerControl(ctx, op); err != nil {
			return err
		}
		e.publisher.PublishAsync(events.NewEventRecord(events.StatusChange, registry.BaseID+".Success"))
		return nil
	}
}

func ledHandler(e *env) ActionHandler {
	return func(ctx context.Context, op string) error {
		if err := e.provider.SetLED(ctx, provider.LEDIdentify, op); err != nil {
			return err
		}
		e.publisher.PublishAsync(events.NewEventRecord(events.ResourceUpdated, registry.BaseID+".Success"))
		return nil
	}
}

func testEventHandler(e *env) ActionHandler {
	return func(ctx context.Context, typ string) error {
		t, ok := events.ParseEventType(typ)
		if !ok {
			return fmt.Errorf("unknown event type %q", typ)
		}
		e.publisher.PublishAsync(events.NewEventRecord(t, registry.BaseID+".Success"))
		return nil
	}
}

func (t *Tree) Root() *Node { return t.root }

// Subscriptions is the event destination collection.
func (t *Tree) Subscriptions() *Node { return t.subscriptions }

// Lookup locates a node without filling it.
func (t *Tree) Lookup(segments []string) (*Node, error) {
	return t.root.locate(segments)
}

// Get resolves segments and returns the node's attributes.
func (t *Tree) Get(ctx context.Context, segments []string) (*Attributes, error) {
	_, attrs, err := t.root.Resolve(ctx, segments)
	return attrs, err
}

// Invoke runs the action qualified ("<namespace>.<action>") on the node at
// segments with arg.
func (t *Tree) Invoke(ctx context.Context, segments []string, qualified string, arg any) error {
	n, err := t.root.locate(segments)
	if err != nil {
		return err
	}
	return n.invoke(ctx, qualified, arg)
}

// InvokePath handles a POST to ".../<node>/Actions/<namespace>.<action>".
// The argument is read from body["<action>Type"].
func (t *Tree) InvokePath(ctx context.Context, segments []string, body map[string]any) error {
	if len(segments) < 3 {
		if len(segments) == 0 {
			return notFound("")
		}
		return notFound(segments[len(segments)-1])
	}
	if segments[len(segments)-2] != "Actions" {
		return notFound(segments[len(segments)-2])
	}
	qualified := segments[len(segments)-1]
	name := qualified
	if i := strings.LastIndex(qualified, "."); i >= 0 {
		name = qualified[i+1:]
	}
	return t.Invoke(ctx, segments[:len(segments)-2], qualified, body[name+"Type"])
}

// Walk visits every node in pre-order, children in insertion order.
func (t *Tree) Walk(fn func(n *Node)) {
	var visit func(n *Node)
	visit = func(n *Node) {
		fn(n)
		for _, c := range n.children {
			visit(c)
		}
	}
	visit(t.root)
}

// EventDestination renders a subscription as an EventDestination resource.
func (t *Tree) EventDestination(sub events.Subscription) *Attributes {
	coll := t.subscriptions
	a := NewAttributes()
	a.Set(odataID, coll.path+"/"+sub.DestinationID)
	a.Set(odataContext, coll.childMetadataPath+"$entity")
	a.Set(odataType, "#EventDestination.v1_0_2.EventDestination")
	a.Set("Id", sub.DestinationID)
	a.Set("Name", sub.Name)
	a.Set("Destination", sub.Endpoint)
	a.Set("Context", sub.Context)
	a.Set("Protocol", "Redfish")
	a.Set("EventTypes", eventTypeNames())
	return a
}

// SortedSubscriptions orders subs by destination id.
func SortedSubscriptions(subs map[string]events.Subscription) []events.Subscription {
	out := make([]events.Subscription, 0, len(subs))
	for _, s := range subs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DestinationID < out[j].DestinationID })
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
