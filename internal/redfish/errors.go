package redfish

import (
	"errors"
	"fmt"
)

var (
	ErrResourceDoesNotExist   = errors.New("redfish: resource does not exist")
	ErrPropertyValueNotInList = errors.New("redfish: property value not in list")
)

// ResourceDoesNotExistError names the first path segment or action that
// failed to resolve.
type ResourceDoesNotExistError struct {
	Segment string
}

func (e *ResourceDoesNotExistError) Error() string {
	return fmt.Sprintf("redfish: resource %q does not exist", e.Segment)
}

func (e *ResourceDoesNotExistError) Is(target error) bool {
	return target == ErrResourceDoesNotExist
}

// PropertyValueNotInListError reports an action argument that is missing,
// null or outside the action's allowable values.
type PropertyValueNotInListError struct {
	Property string
	Value    string
}

func (e *PropertyValueNotInListError) Error() string {
	return fmt.Sprintf("redfish: value %q for %s is not in the list of allowable values", e.Value, e.Property)
}

func (e *PropertyValueNotInListError) Is(target error) bool {
	return target == ErrPropertyValueNotInList
}

// ActionFailedError wraps an error returned by an action handler.
type ActionFailedError struct {
	Action string
	Err    error
}

func (e *ActionFailedError) Error() string {
	return fmt.Sprintf("redfish: action %s failed: %v", e.Action, e.Err)
}

func (e *ActionFailedError) Unwrap() error { return e.Err }

func notFound(segment string) error {
	return &ResourceDoesNotExistError{Segment: segment}
}
