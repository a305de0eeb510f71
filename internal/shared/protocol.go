package shared

// SubscriptionRequest is the body POSTed to the EventService Subscriptions
// collection. Only Destination is required.
type SubscriptionRequest struct {
	Destination string `json:"Destination"`
	ID          string `json:"Id,omitempty"`
	Name        string `json:"Name,omitempty"`
	Context     string `json:"Context,omitempty"`
}

// EventDestination is the subscription resource returned on create and GET.
type EventDestination struct {
	ODataID     string   `json:"@odata.id"`
	ID          string   `json:"Id"`
	Name        string   `json:"Name"`
	Destination string   `json:"Destination"`
	Context     string   `json:"Context"`
	Protocol    string   `json:"Protocol"`
	EventTypes  []string `json:"EventTypes"`
}

// Headers set on signed event deliveries.
const (
	HeaderEventTimestamp = "X-Event-Timestamp"
	HeaderEventBodySHA   = "X-Event-Body-Sha256"
	HeaderEventSignature = "X-Event-Signature"
)
