package listener

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"redfishd/internal/events"
	"redfishd/internal/shared"
)

const subscriptionsPath = "/redfish/v1/EventService/Subscriptions"

type Listener struct {
	ConfigPath string
	Cfg        *shared.ListenerConfig
	Client     *http.Client
	// OnEvent is called for every accepted delivery.
	OnEvent func(events.Event)

	pub ed25519.PublicKey
	log *zap.Logger

	mu       sync.Mutex
	received int
}

func New(configPath string, logger *zap.Logger) (*Listener, error) {
	cfg, err := shared.LoadListenerConfig(configPath)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(configPath, cfg, logger)
}

// NewWithConfig builds a listener from an already loaded config. The config
// is saved back to configPath after subscribe and unsubscribe when
// configPath is non-empty.
func NewWithConfig(configPath string, cfg *shared.ListenerConfig, logger *zap.Logger) (*Listener, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Listener{
		ConfigPath: configPath,
		Cfg:        cfg,
		Client:     &http.Client{Timeout: time.Duration(cfg.RequestTimeoutSecs) * time.Second},
		log:        logger,
	}
	if cfg.ServerPublicKey != "" {
		pub, err := shared.DecodePubKey(cfg.ServerPublicKey)
		if err != nil {
			return nil, fmt.Errorf("server_public_key: %w", err)
		}
		l.pub = pub
	}
	return l, nil
}

func (l *Listener) url(path string) string {
	return strings.TrimRight(l.Cfg.ServerURL, "/") + path
}

func (l *Listener) save() error {
	if l.ConfigPath == "" {
		return nil
	}
	return shared.SaveListenerConfig(l.ConfigPath, l.Cfg)
}

// SubscribeIfNeeded creates the subscription unless one was already
// recorded in the config.
func (l *Listener) SubscribeIfNeeded(ctx context.Context) error {
	if l.Cfg.SubscriptionURI != "" {
		return nil
	}
	return l.Subscribe(ctx)
}

func (l *Listener) Subscribe(ctx context.Context) error {
	req := shared.SubscriptionRequest{
		Destination: l.Cfg.CallbackURL,
		ID:          l.Cfg.DestinationID,
		Name:        l.Cfg.Name,
		Context:     l.Cfg.Context,
	}
	body, _ := json.Marshal(req)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", l.url(subscriptionsPath), bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.Client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 201 {
		return errors.New("subscribe failed: " + string(b))
	}

	var dest shared.EventDestination
	_ = json.Unmarshal(b, &dest)
	uri := resp.Header.Get("Location")
	if uri == "" {
		uri = dest.ODataID
	}
	l.Cfg.SubscriptionURI = uri
	l.Cfg.DestinationID = dest.ID
	l.log.Info("subscribed", zap.String("uri", uri), zap.String("destination", l.Cfg.CallbackURL))
	return l.save()
}

// Unsubscribe deletes the recorded subscription. A subscription the service
// already dropped counts as removed.
func (l *Listener) Unsubscribe(ctx context.Context) error {
	if l.Cfg.SubscriptionURI == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, "DELETE", l.url(l.Cfg.SubscriptionURI), nil)
	if err != nil {
		return err
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 204 && resp.StatusCode != 404 {
		b, _ := io.ReadAll(resp.Body)
		return errors.New("unsubscribe failed: " + string(b))
	}
	l.log.Info("unsubscribed", zap.String("uri", l.Cfg.SubscriptionURI))
	l.Cfg.SubscriptionURI = ""
	return l.save()
}

// Resubscribe checks that the service still holds the subscription and
// creates it again if it was evicted.
func (l *Listener) Resubscribe(ctx context.Context) error {
	if l.Cfg.SubscriptionURI == "" {
		return l.Subscribe(ctx)
	}
	req, err := http.NewRequestWithContext(ctx, "GET", l.url(l.Cfg.SubscriptionURI), nil)
	if err != nil {
		return err
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case 200:
		return nil
	case 404:
		l.log.Warn("subscription evicted, subscribing again", zap.String("uri", l.Cfg.SubscriptionURI))
		l.Cfg.SubscriptionURI = ""
		return l.Subscribe(ctx)
	default:
		return fmt.Errorf("check subscription: status %d", resp.StatusCode)
	}
}

// Received is the number of deliveries accepted so far.
func (l *Listener) Received() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.received
}

// ServeHTTP accepts event deliveries. Signed deliveries are verified when a
// server public key is configured; anything else is answered non-200 so the
// service retries.
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(405)
		return
	}
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, 2<<20))
	if err != nil {
		w.WriteHeader(400)
		return
	}

	if l.pub != nil {
		window := time.Duration(l.Cfg.SignatureWindowSecs) * time.Second
		if err := shared.VerifyEvent(l.pub, r.Header, body, window); err != nil {
			l.log.Warn("rejected delivery", zap.String("remote", r.RemoteAddr), zap.Error(err))
			w.WriteHeader(401)
			return
		}
	}

	var ev events.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		l.log.Warn("malformed delivery", zap.Error(err))
		w.WriteHeader(400)
		return
	}

	l.mu.Lock()
	l.received++
	l.mu.Unlock()

	for _, rec := range ev.Events {
		l.log.Info("event",
			zap.String("subscription", ev.ID),
			zap.String("context", ev.Context),
			zap.String("type", string(rec.EventType)),
			zap.String("message_id", rec.MessageID),
			zap.String("event_id", rec.EventID),
			zap.String("timestamp", rec.EventTimestamp))
	}
	if l.OnEvent != nil {
		l.OnEvent(ev)
	}
	w.WriteHeader(200)
}
