// Package listener is the event-destination side of the EventService: it
// subscribes to a Redfish service, receives webhook deliveries and
// unsubscribes on shutdown.
//
// A subscriber that stops answering is evicted by the service after its
// retries run out, so Resubscribe re-creates the subscription when the
// service no longer knows it.
package listener
