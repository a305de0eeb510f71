package redfish

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"redfishd/internal/events"
	"redfishd/internal/provider"
	"redfishd/internal/registry"
)

const (
	RedfishVersion = "1.0.3"
	Copyright      = "Copyright 2014-2016 Distributed Management Task Force, Inc. (DMTF). " +
		"For the full DMTF copyright policy, see http://www.dmtf.org/about/policies/copyright."

	odataID      = "@odata.id"
	odataType    = "@odata.type"
	odataContext = "@odata.context"
	memberCount  = "Members@odata.count"
)

// Kind selects a node's fill and metadata behavior.
type Kind int

const (
	KindRoot Kind = iota
	KindServiceRoot
	KindCollection
	KindSubscriptions
	KindChassis
	KindSystem
	KindProcessor
	KindMemory
	KindThermal
	KindPower
	KindPowerControl
	KindPowerSupply
	KindEventService
	KindRegistryFile
)

var kindNames = [...]string{
	KindRoot:          "Root",
	KindServiceRoot:   "ServiceRoot",
	KindCollection:    "Collection",
	KindSubscriptions: "Subscriptions",
	KindChassis:       "Chassis",
	KindSystem:        "ComputerSystem",
	KindProcessor:     "Processor",
	KindMemory:        "Memory",
	KindThermal:       "Thermal",
	KindPower:         "Power",
	KindPowerControl:  "PowerControl",
	KindPowerSupply:   "PowerSupply",
	KindEventService:  "EventService",
	KindRegistryFile:  "MessageRegistryFile",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// env is shared by every node of one tree and handed down on attach.
type env struct {
	provider  provider.Provider
	registry  *registry.Registry
	store     events.Store
	publisher Publisher
	logger    *zap.Logger
}

// Node is one addressable resource.
//
// Topology (children, actions, path, metadata paths) is written only while
// the tree is built. attrs and the static latch are guarded by mu.
type Node struct {
	name          string
	kind          Kind
	namespace     string
	schemaVersion string
	leaf          bool

	// set on attach
	path              string
	parent            *Node
	selfMetadataPath  string
	childMetadataPath string
	env               *env

	children    []*Node
	actions     map[string]*action
	actionOrder []string
	hooks       behavior
	// props are set at construction and merged in on the static fill
	props *Attributes

	mu           sync.Mutex
	attrs        *Attributes
	staticFilled bool
}

func newNode(name string, kind Kind, namespace, schemaVersion string) *Node {
	return &Node{
		name:          name,
		kind:          kind,
		namespace:     namespace,
		schemaVersion: schemaVersion,
		attrs:         NewAttributes(),
		props:         NewAttributes(),
		actions:       map[string]*action{},
		hooks:         behaviors[kind],
	}
}

func (n *Node) Name() string              { return n.name }
func (n *Node) Path() string              { return n.path }
func (n *Node) Kind() Kind                { return n.kind }
func (n *Node) Leaf() bool                { return n.leaf }
func (n *Node) Parent() *Node             { return n.parent }
func (n *Node) SelfMetadataPath() string  { return n.selfMetadataPath }
func (n *Node) ChildMetadataPath() string { return n.childMetadataPath }

// ODataType is "#<namespace>.<schema version>".
func (n *Node) ODataType() string {
	return "#" + n.namespace + "." + n.schemaVersion
}

func (n *Node) Children() []*Node {
	return append([]*Node(nil), n.children...)
}

// Child returns the first child named name.
func (n *Node) Child(name string) (*Node, bool) {
	for _, c := range n.children {
		if c.name == name {
			return c, true
		}
	}
	return nil, false
}

// AddChild attaches child below n and derives its path and metadata paths.
// n must already be attached, child must not be, and sibling names must be
// unique.
func (n *Node) AddChild(child *Node) error {
	if n.path == "" {
		return fmt.Errorf("redfish: attach %q to unattached node %q", child.name, n.name)
	}
	if child.parent != nil || child.path != "" {
		return fmt.Errorf("redfish: node %q is already attached at %s", child.name, child.path)
	}
	if child.name == "" {
		return fmt.Errorf("redfish: empty node name below %s", n.path)
	}
	if _, dup := n.Child(child.name); dup {
		return fmt.Errorf("redfish: duplicate child %q below %s", child.name, n.path)
	}

	n.children = append(n.children, child)
	child.parent = n
	child.env = n.env
	if child.leaf {
		child.path = n.path + "#/" + child.name
	} else {
		child.path = n.path + "/" + child.name
		deriveMetadata(child)
	}

	child.mu.Lock()
	child.attrs.Set(odataID, child.path)
	child.mu.Unlock()

	if n.hooks.attached != nil {
		n.mu.Lock()
		n.hooks.attached(n, child)
		n.mu.Unlock()
	}
	return nil
}

// AddRelated appends a reference to other under Links[name].
func (n *Node) AddRelated(name string, other *Node) {
	n.mu.Lock()
	defer n.mu.Unlock()

	var links *Attributes
	if v, ok := n.attrs.Get("Links"); ok {
		links = v.(*Attributes)
	} else {
		links = NewAttributes()
		n.attrs.Set("Links", links)
	}
	var refs []map[string]any
	if v, ok := links.Get(name); ok {
		refs = v.([]map[string]any)
	}
	links.Set(name, append(refs, ref(other.path)))
}

func deriveMetadata(n *Node) {
	if n.hooks.metadata != nil {
		n.hooks.metadata(n)
		return
	}
	n.selfMetadataPath = n.parent.childMetadataPath + "$entity"
	n.childMetadataPath = n.parent.selfMetadataPath + "/" + n.name + "/"
}

// locate walks segments down from n. segments[0] must name n itself.
func (n *Node) locate(segments []string) (*Node, error) {
	if len(segments) == 0 {
		return nil, notFound("")
	}
	if segments[0] != n.name {
		return nil, notFound(segments[0])
	}
	cur := n
	for _, seg := range segments[1:] {
		next, ok := cur.Child(seg)
		if !ok {
			return nil, notFound(seg)
		}
		cur = next
	}
	return cur, nil
}

// Resolve locates the node named by segments and returns a snapshot of its
// attributes after filling static data (once) and dynamic data (every call).
func (n *Node) Resolve(ctx context.Context, segments []string) (*Node, *Attributes, error) {
	target, err := n.locate(segments)
	if err != nil {
		return nil, nil, err
	}
	return target, target.snapshot(ctx), nil
}

func (n *Node) snapshot(ctx context.Context) *Attributes {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fillLocked(ctx)
	return n.attrs.Clone()
}

func (n *Node) fillLocked(ctx context.Context) {
	if !n.staticFilled {
		n.fillStaticLocked(ctx)
		n.staticFilled = true
	}
	if n.hooks.fillDynamic != nil {
		n.hooks.fillDynamic(ctx, n)
	}
}

func (n *Node) fillStaticLocked(ctx context.Context) {
	if n.kind == KindRoot {
		return
	}
	if !n.leaf {
		n.attrs.Set(odataContext, n.selfMetadataPath)
		n.attrs.Set(odataType, n.ODataType())
		n.attrs.Set("@Redfish.Copyright", Copyright)
	}
	for _, k := range n.props.keys {
		n.attrs.Set(k, n.props.values[k])
	}
	if len(n.actionOrder) > 0 {
		n.attrs.Set("Actions", n.actionsAttr())
	}
	if n.hooks.fillStatic != nil {
		n.hooks.fillStatic(ctx, n)
	}
}

func (n *Node) logger() *zap.Logger {
	if n.env == nil || n.env.logger == nil {
		return zap.NewNop()
	}
	return n.env.logger
}

// degraded logs a provider failure. The affected property is left out.
func (n *Node) degraded(what string, err error) {
	n.logger().Warn("provider query failed",
		zap.String("path", n.path),
		zap.String("query", what),
		zap.Error(err))
}

func ref(path string) map[string]any {
	return map[string]any{odataID: path}
}

// SplitPath turns a request path into resolution segments. Empty segments
// are dropped.
func SplitPath(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
}
