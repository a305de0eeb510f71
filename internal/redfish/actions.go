package redfish

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// ActionHandler performs an action with a validated argument.
type ActionHandler func(ctx context.Context, arg string) error

type action struct {
	name    string
	allowed []string
	handler ActionHandler
}

// AddAction registers an action on n. The Actions property (target URL and
// allowable values) is published on the node's static fill.
func (n *Node) AddAction(name string, allowed []string, h ActionHandler) error {
	switch {
	case name == "" || strings.Contains(name, "."):
		return fmt.Errorf("redfish: invalid action name %q on %s", name, n.name)
	case h == nil:
		return fmt.Errorf("redfish: action %s on %s has no handler", name, n.name)
	case len(allowed) == 0:
		return fmt.Errorf("redfish: action %s on %s has no allowable values", name, n.name)
	case n.namespace == "":
		return fmt.Errorf("redfish: action %s on %s: node has no namespace", name, n.name)
	}
	if _, dup := n.actions[name]; dup {
		return fmt.Errorf("redfish: duplicate action %s on %s", name, n.name)
	}
	n.actions[name] = &action{
		name:    name,
		allowed: append([]string(nil), allowed...),
		handler: h,
	}
	n.actionOrder = append(n.actionOrder, name)
	return nil
}

// ActionTarget is the URL an action is invoked at.
func (n *Node) ActionTarget(name string) string {
	return n.path + "/Actions/" + n.namespace + "." + name
}

// AllowableValues returns the allow-list of a registered action.
func (n *Node) AllowableValues(name string) ([]string, bool) {
	a, ok := n.actions[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), a.allowed...), true
}

func (n *Node) actionsAttr() *Attributes {
	out := NewAttributes()
	for _, name := range n.actionOrder {
		a := n.actions[name]
		entry := NewAttributes()
		entry.Set("target", n.ActionTarget(name))
		entry.Set(name+"Type@Redfish.AllowableValues", append([]string(nil), a.allowed...))
		out.Set("#"+n.namespace+"."+name, entry)
	}
	return out
}

// invoke validates arg against the action's allow-list and runs its handler.
// qualified is "<namespace>.<action>".
func (n *Node) invoke(ctx context.Context, qualified string, arg any) error {
	i := strings.LastIndex(qualified, ".")
	if i <= 0 || i == len(qualified)-1 {
		return notFound(qualified)
	}
	ns, name := qualified[:i], qualified[i+1:]
	if ns != n.namespace {
		return notFound(qualified)
	}
	a, ok := n.actions[name]
	if !ok {
		return notFound(name)
	}

	if arg == nil {
		return &PropertyValueNotInListError{Property: name, Value: "null"}
	}
	s, isString := arg.(string)
	if !isString {
		return &PropertyValueNotInListError{Property: name, Value: fmt.Sprint(arg)}
	}
	if !slices.Contains(a.allowed, s) {
		return &PropertyValueNotInListError{Property: name, Value: s}
	}

	if err := a.handler(ctx, s); err != nil {
		return &ActionFailedError{Action: qualified, Err: err}
	}
	n.logger().Info("action invoked",
		zap.String("path", n.path), zap.String("action", qualified), zap.String("value", s))
	return nil
}
