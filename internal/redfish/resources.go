package redfish

import (
	"strings"

	"redfishd/internal/provider"
	"redfishd/internal/registry"
)

// NewRoot returns the redirector node mounted at "/<name>".
func NewRoot(name string) *Node {
	n := newNode(name, KindRoot, "", "")
	n.path = "/" + name
	n.selfMetadataPath = n.path
	n.childMetadataPath = n.path
	return n
}

func NewServiceRoot(name, id string) *Node {
	n := newNode(name, KindServiceRoot, "ServiceRoot", "v1_0_3.ServiceRoot")
	n.props.Set("Id", id)
	n.props.Set("Name", "Root Service")
	return n
}

// NewCollection returns a collection whose schema namespace and version
// are both namespace.
func NewCollection(name, displayName, namespace string) *Node {
	n := newNode(name, KindCollection, namespace, namespace)
	n.props.Set("Name", displayName)
	return n
}

func NewChassis(name string, info map[string]any) *Node {
	n := newNode(name, KindChassis, "Chassis", "v1_0_3.Chassis")
	n.props.Set("Name", "Chassis "+name)
	n.props.Set("ChassisType", "RackMount")
	for _, k := range sortedKeys(info) {
		if k == "UUID" {
			continue
		}
		n.props.Set(k, trimmed(info[k]))
	}
	return n
}

func NewSystem(name string, info map[string]any) *Node {
	n := newNode(name, KindSystem, "ComputerSystem", "v1_0_3.ComputerSystem")
	n.props.Set("Name", "Computer System "+name)
	for _, k := range sortedKeys(info) {
		if k == "UUID" {
			if s, _ := info[k].(string); s != "" {
				n.props.Set(k, FormatUUID(s))
			}
			continue
		}
		n.props.Set(k, trimmed(info[k]))
	}
	return n
}

func NewProcessor(item provider.Item) *Node {
	n := newNode(item.ID, KindProcessor, "Processor", "v1_0_2.Processor")
	n.props.Set("Id", item.ID)
	for _, k := range sortedKeys(item.Properties) {
		v := item.Properties[k]
		if s, ok := v.(string); ok && k == "UUID" {
			v = FormatUUID(s)
		}
		n.props.Set(k, v)
	}
	return n
}

func NewMemory(item provider.Item) *Node {
	n := newNode(item.ID, KindMemory, "Memory", "v1_0_0.Memory")
	n.props.Set("Id", item.ID)
	for _, k := range sortedKeys(item.Properties) {
		n.props.Set(k, item.Properties[k])
	}
	return n
}

func NewThermal(name string) *Node {
	n := newNode(name, KindThermal, "Thermal", "v1_1_0.Thermal")
	n.props.Set("Id", name)
	n.props.Set("Name", "Thermal")
	return n
}

func NewPower(name string) *Node {
	n := newNode(name, KindPower, "Power", "v1_2_0.Power")
	n.props.Set("Id", name)
	n.props.Set("Name", "Power")
	return n
}

// NewPowerControl returns a leaf embedded in its Power parent.
func NewPowerControl(name, displayName string) *Node {
	n := newNode(name, KindPowerControl, "", "")
	n.leaf = true
	n.props.Set("MemberId", name)
	n.props.Set("Name", displayName)
	n.props.Set("Status", enabledOK())
	return n
}

// NewPowerSupply returns a leaf embedded in its Power parent.
func NewPowerSupply(name, displayName string) *Node {
	n := newNode(name, KindPowerSupply, "", "")
	n.leaf = true
	n.props.Set("MemberId", name)
	n.props.Set("Name", displayName)
	n.props.Set("Status", enabledOK())
	return n
}

func NewEventService(name string) *Node {
	n := newNode(name, KindEventService, "EventService", "v1_0_2.EventService")
	n.props.Set("Id", name)
	n.props.Set("Name", "Event Service")
	return n
}

// NewSubscriptions returns the event destination collection. Its members
// come from the subscription store on every read.
func NewSubscriptions(name string) *Node {
	n := newNode(name, KindSubscriptions, "EventDestinationCollection", "EventDestinationCollection")
	n.props.Set("Name", "Event Subscriptions Collection")
	return n
}

func NewRegistryFile(id string, doc *registry.Document) *Node {
	n := newNode(id, KindRegistryFile, "MessageRegistryFile", "v1_0_0.MessageRegistryFile")
	n.props.Set("Id", id)
	name := id + " Message Registry File"
	lang := "en"
	if doc != nil {
		if doc.Name != "" {
			name = doc.Name + " File"
		}
		if doc.Language != "" {
			lang = doc.Language
		}
	}
	n.props.Set("Name", name)
	n.props.Set("Registry", id)
	n.props.Set("Languages", []string{lang})
	return n
}

func trimmed(v any) any {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return v
}
