package events

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	ErrSubscriptionNotFound = errors.New("events: subscription not found")
	ErrInvalidEndpoint      = errors.New("events: invalid subscriber endpoint")
)

// Subscription is a subscriber's declared metadata. The endpoint URL is the
// identity key and is not part of the persisted value.
type Subscription struct {
	Endpoint      string `json:"-"`
	DestinationID string `json:"Id"`
	Name          string `json:"Name"`
	Context       string `json:"Context"`
}

// Store persists subscriptions keyed by endpoint URL.
type Store interface {
	Create(endpoint, destinationID, name, context string) error
	Remove(endpoint string) error
	// RemoveIf removes the endpoint only while it still carries
	// destinationID, so a re-subscription that replaced it survives.
	RemoveIf(endpoint, destinationID string) error
	Snapshot() (map[string]Subscription, error)
	Close() error
}

// ValidateEndpoint accepts absolute http and https URLs.
func ValidateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}
	return nil
}

// FindByID returns the subscription whose destination id is id.
func FindByID(subs map[string]Subscription, id string) (Subscription, bool) {
	for _, s := range subs {
		if s.DestinationID == id {
			return s, true
		}
	}
	return Subscription{}, false
}
