package redfish

import (
	"context"

	"redfishd/internal/events"
	"redfishd/internal/provider"
)

// behavior holds the per-kind hooks. Hooks that touch attrs run with the
// node's mutex held.
type behavior struct {
	// metadata derives self and child metadata paths on attach; nil means
	// the singleton rule.
	metadata func(n *Node)
	// attached runs on the parent after a child is attached.
	attached    func(n, child *Node)
	fillStatic  func(ctx context.Context, n *Node)
	fillDynamic func(ctx context.Context, n *Node)
}

var behaviors = map[Kind]behavior{
	KindRoot: {
		attached: rootAttached,
	},
	KindServiceRoot: {
		metadata:   serviceRootMetadata,
		fillStatic: serviceRootStatic,
	},
	KindCollection: {
		metadata:   collectionMetadata,
		attached:   collectionAttached,
		fillStatic: collectionStatic,
	},
	KindSubscriptions: {
		metadata:    collectionMetadata,
		attached:    collectionAttached,
		fillStatic:  collectionStatic,
		fillDynamic: subscriptionsDynamic,
	},
	KindChassis: {
		fillStatic:  chassisStatic,
		fillDynamic: indicatorAndPowerDynamic,
	},
	KindSystem: {
		fillStatic:  systemStatic,
		fillDynamic: indicatorAndPowerDynamic,
	},
	KindThermal: {
		fillDynamic: thermalDynamic,
	},
	KindPower: {
		fillDynamic: powerDynamic,
	},
	KindPowerControl: {
		fillDynamic: powerControlDynamic,
	},
	KindEventService: {
		fillStatic: eventServiceStatic,
	},
	KindRegistryFile: {
		fillStatic: registryFileStatic,
	},
}

// The root is a redirector: it only ever points at its latest child.
func rootAttached(n, child *Node) {
	n.attrs.Clear()
	n.attrs.Set(child.name, child.path)
}

func serviceRootMetadata(n *Node) {
	n.childMetadataPath = n.path + "/$metadata#"
	n.selfMetadataPath = n.childMetadataPath + n.namespace
}

func serviceRootStatic(ctx context.Context, n *Node) {
	n.attrs.Set("RedfishVersion", RedfishVersion)
	linkChildren(n)
	id, err := n.env.provider.SystemID(ctx)
	if err != nil {
		n.degraded("system id", err)
		return
	}
	n.attrs.Set("UUID", FormatUUID(id))
}

func collectionMetadata(n *Node) {
	n.selfMetadataPath = n.parent.childMetadataPath + n.name
	n.childMetadataPath = n.selfMetadataPath + "/Members/"
}

func collectionAttached(n, child *Node) {
	count, _ := n.attrs.Get(memberCount)
	c, _ := count.(int)
	n.attrs.Set(memberCount, c+1)
}

func collectionStatic(ctx context.Context, n *Node) {
	members := make([]map[string]any, 0, len(n.children))
	for _, c := range n.children {
		members = append(members, ref(c.path))
	}
	n.attrs.Set("Members", members)
	if _, ok := n.attrs.Get(memberCount); !ok {
		n.attrs.Set(memberCount, 0)
	}
}

// subscriptionsDynamic re-derives Members from the subscription store.
func subscriptionsDynamic(ctx context.Context, n *Node) {
	members := []map[string]any{}
	if n.env.store != nil {
		subs, err := n.env.store.Snapshot()
		if err != nil {
			n.degraded("subscriptions", err)
		}
		for _, s := range SortedSubscriptions(subs) {
			members = append(members, ref(n.path+"/"+s.DestinationID))
		}
	}
	n.attrs.Set(memberCount, len(members))
	n.attrs.Set("Members", members)
}

func chassisStatic(ctx context.Context, n *Node) {
	n.attrs.Set("Id", n.name)
	linkChildren(n)
}

func systemStatic(ctx context.Context, n *Node) {
	n.attrs.Set("Id", n.name)
	p := n.env.provider
	n.attrs.Set("SystemType", p.SystemType())
	if v, err := p.BIOSVersion(ctx); err != nil {
		n.degraded("bios version", err)
	} else if v != "" {
		n.attrs.Set("BiosVersion", v)
	}
	linkChildren(n)
}

func indicatorAndPowerDynamic(ctx context.Context, n *Node) {
	p := n.env.provider
	if led, err := p.LEDState(ctx, provider.LEDIdentify); err != nil {
		n.degraded("indicator led", err)
		n.attrs.Delete("IndicatorLED")
	} else {
		n.attrs.Set("IndicatorLED", led)
	}
	if state, err := p.PowerState(ctx); err != nil {
		n.degraded("power state", err)
		n.attrs.Delete("PowerState")
	} else {
		n.attrs.Set("PowerState", state)
	}
}

func thermalDynamic(ctx context.Context, n *Node) {
	r, err := n.env.provider.Sensor(ctx, "ambient")
	if err != nil {
		n.degraded("ambient sensor", err)
		n.attrs.Delete("Temperatures")
		return
	}
	t := NewAttributes()
	t.Set(odataID, n.path+"#/Temperatures/0")
	t.Set("MemberId", "0")
	t.Set("Name", "Ambient Temperature")
	t.Set("ReadingCelsius", r.Value)
	t.Set("PhysicalContext", "Intake")
	t.Set("Status", enabledOK())
	n.attrs.Set("Temperatures", []*Attributes{t})
}

// powerDynamic embeds the leaf children into the PowerControl and
// PowerSupplies arrays.
func powerDynamic(ctx context.Context, n *Node) {
	control := []*Attributes{}
	supplies := []*Attributes{}
	for _, c := range n.children {
		if !c.leaf {
			continue
		}
		snap := c.snapshot(ctx)
		switch c.kind {
		case KindPowerControl:
			control = append(control, snap)
		case KindPowerSupply:
			supplies = append(supplies, snap)
		}
	}
	n.attrs.Set("PowerControl", control)
	n.attrs.Set("PowerSupplies", supplies)
}

func powerControlDynamic(ctx context.Context, n *Node) {
	p := n.env.provider
	reading := func(name string) (float64, bool) {
		r, err := p.Sensor(ctx, name)
		if err != nil {
			n.degraded(name+" sensor", err)
			return 0, false
		}
		return r.Value, true
	}

	if v, ok := reading("system_power"); ok {
		n.attrs.Set("PowerConsumedWatts", v)
	} else {
		n.attrs.Delete("PowerConsumedWatts")
	}
	if v, ok := reading("max_cap"); ok {
		n.attrs.Set("PowerCapacityWatts", v)
	} else {
		n.attrs.Delete("PowerCapacityWatts")
	}
	if v, ok := reading("curr_cap"); ok {
		limit := NewAttributes()
		limit.Set("LimitInWatts", v)
		limit.Set("LimitException", "LogEventOnly")
		if minCap, ok := reading("min_cap"); ok {
			limit.Set("Oem", map[string]any{"MinimumLimitInWatts": minCap})
		}
		n.attrs.Set("PowerLimit", limit)
	} else {
		n.attrs.Delete("PowerLimit")
	}
}

func eventServiceStatic(ctx context.Context, n *Node) {
	cfg := n.env.publisher.Config()
	n.attrs.Set("ServiceEnabled", cfg.ServiceEnabled)
	n.attrs.Set("DeliveryRetryAttempts", cfg.RetryAttempts)
	n.attrs.Set("DeliveryRetryIntervalSeconds", int(cfg.RetryInterval.Seconds()))
	types := []string{}
	for _, t := range events.EventTypes() {
		types = append(types, string(t))
	}
	n.attrs.Set("EventTypesForSubscription", types)
	linkChildren(n)
}

func registryFileStatic(ctx context.Context, n *Node) {
	lang := "en"
	if v, ok := n.attrs.Get("Languages"); ok {
		if langs, _ := v.([]string); len(langs) > 0 {
			lang = langs[0]
		}
	}
	loc := NewAttributes()
	loc.Set("Language", lang)
	loc.Set("Uri", RegistryDocumentPath(n.path, n.name))
	n.attrs.Set("Location", []*Attributes{loc})
}

// RegistryDocumentPath is where the raw registry document below a
// MessageRegistryFile resource is served.
func RegistryDocumentPath(filePath, id string) string {
	return filePath + "/" + id + ".json"
}

// linkChildren adds a reference property per non-leaf child.
func linkChildren(n *Node) {
	for _, c := range n.children {
		if c.leaf {
			continue
		}
		n.attrs.Set(c.name, ref(c.path))
	}
}

func enabledOK() map[string]any {
	return map[string]any{"State": "Enabled", "Health": "OK"}
}
