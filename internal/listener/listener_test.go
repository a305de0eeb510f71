package listener

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"redfishd/internal/events"
	"redfishd/internal/provider"
	"redfishd/internal/redfish"
	"redfishd/internal/registry"
	"redfishd/internal/server"
	"redfishd/internal/shared"
)

func testConfig(serverURL string) *shared.ListenerConfig {
	return &shared.ListenerConfig{
		ServerURL:           serverURL,
		CallbackURL:         "http://listener.example/events",
		DestinationID:       "listener-1",
		Name:                "test listener",
		Context:             "rack-7",
		SignatureWindowSecs: 60,
		RequestTimeoutSecs:  5,
	}
}

// service runs a complete rf-server handler stack with a real publisher.
type service struct {
	*httptest.Server
	store events.Store
}

func newService(t *testing.T, enabled bool, signer events.Signer) *service {
	t.Helper()
	ctx := context.Background()

	reg, err := registry.New("")
	require.NoError(t, err)
	store, err := events.OpenFileStore(filepath.Join(t.TempDir(), "subscriptions.json"))
	require.NoError(t, err)

	cfg := events.DefaultConfig()
	cfg.ServiceEnabled = enabled
	cfg.RetryInterval = 10 * time.Millisecond
	opts := []events.Option{events.WithLogger(zap.NewNop())}
	if signer != nil {
		opts = append(opts, events.WithSigner(signer))
	}
	pub, err := events.NewPublisher(store, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pub.Close(ctx)
	})

	tree, err := redfish.Build(ctx, provider.NewStaticProvider(nil), redfish.Options{
		Registry:  reg,
		Store:     store,
		Publisher: pub,
	})
	require.NoError(t, err)
	h, err := server.NewRouter(&server.API{
		Tree:      tree,
		Registry:  reg,
		Store:     store,
		Publisher: pub,
	}, server.RouterOptions{})
	require.NoError(t, err)

	s := &service{Server: httptest.NewServer(h), store: store}
	t.Cleanup(s.Close)
	return s
}

func TestSubscribeReceiveUnsubscribe(t *testing.T) {
	_, privB64, err := shared.GenKeypair()
	require.NoError(t, err)
	priv, err := shared.DecodePrivKey(privB64)
	require.NoError(t, err)

	svc := newService(t, true, shared.EventSigner(priv))

	cfg := testConfig(svc.URL)
	cfg.ServerPublicKey = shared.EncodePubKey(priv)
	configPath := filepath.Join(t.TempDir(), "rf-listener.json")
	l, err := NewWithConfig(configPath, cfg, zap.NewNop())
	require.NoError(t, err)

	var mu sync.Mutex
	var got []events.EventType
	l.OnEvent = func(ev events.Event) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "rack-7", ev.Context)
		for _, r := range ev.Events {
			got = append(got, r.EventType)
		}
	}
	hook := httptest.NewServer(l)
	t.Cleanup(hook.Close)
	cfg.CallbackURL = hook.URL + "/events"

	ctx := context.Background()
	require.NoError(t, l.SubscribeIfNeeded(ctx))
	assert.Equal(t, "/redfish/v1/EventService/Subscriptions/listener-1", cfg.SubscriptionURI)

	saved, err := shared.LoadListenerConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.SubscriptionURI, saved.SubscriptionURI)

	resp, err := http.Post(svc.URL+"/redfish/v1/Chassis/1U/Actions/Chassis.LedUpdate",
		"application/json", bytes.NewBufferString(`{"LedUpdateType":"BlinkFast"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 204, resp.StatusCode)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 2
	}, 5*time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.ElementsMatch(t, []events.EventType{events.ResourceAdded, events.ResourceUpdated}, got)
	mu.Unlock()

	require.NoError(t, l.Unsubscribe(ctx))
	assert.Empty(t, cfg.SubscriptionURI)
	subs, err := svc.store.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestResubscribeAfterEviction(t *testing.T) {
	svc := newService(t, false, nil)
	l, err := NewWithConfig("", testConfig(svc.URL), zaptest.NewLogger(t))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, l.Subscribe(ctx))
	require.NoError(t, l.Resubscribe(ctx))

	// the service drops a subscriber that stopped answering
	require.NoError(t, svc.store.Remove(l.Cfg.CallbackURL))
	require.NoError(t, l.Resubscribe(ctx))

	subs, err := svc.store.Snapshot()
	require.NoError(t, err)
	sub, ok := events.FindByID(subs, "listener-1")
	require.True(t, ok)
	assert.Equal(t, "http://listener.example/events", sub.Endpoint)
}

func TestUnsubscribeToleratesMissing(t *testing.T) {
	svc := newService(t, false, nil)
	cfg := testConfig(svc.URL)
	cfg.SubscriptionURI = "/redfish/v1/EventService/Subscriptions/gone"
	l, err := NewWithConfig("", cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, l.Unsubscribe(context.Background()))
	assert.Empty(t, cfg.SubscriptionURI)
}

func TestSubscribeRejected(t *testing.T) {
	svc := newService(t, false, nil)
	cfg := testConfig(svc.URL)
	cfg.CallbackURL = "not a url"
	l, err := NewWithConfig("", cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	err = l.Subscribe(context.Background())
	assert.ErrorContains(t, err, "subscribe failed")
	assert.Empty(t, cfg.SubscriptionURI)
}

func TestServeHTTPVerifiesSignature(t *testing.T) {
	_, privB64, err := shared.GenKeypair()
	require.NoError(t, err)
	priv, err := shared.DecodePrivKey(privB64)
	require.NoError(t, err)

	cfg := testConfig("http://unused")
	cfg.ServerPublicKey = shared.EncodePubKey(priv)
	l, err := NewWithConfig("", cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	body, err := json.Marshal(events.Event{
		ID:     "listener-1",
		Events: []events.EventRecord{events.NewEventRecord(events.Alert, "Base.1.0.Success")},
	})
	require.NoError(t, err)

	unsigned := httptest.NewRecorder()
	l.ServeHTTP(unsigned, httptest.NewRequest("POST", "/events", bytes.NewReader(body)))
	assert.Equal(t, 401, unsigned.Code)

	hdrs, err := shared.EventSigner(priv)(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", "/events", bytes.NewReader(body))
	for k, v := range hdrs {
		req.Header.Set(k, v)
	}
	signed := httptest.NewRecorder()
	l.ServeHTTP(signed, req)
	assert.Equal(t, 200, signed.Code)
	assert.Equal(t, 1, l.Received())
}

func TestServeHTTPRejectsBadInput(t *testing.T) {
	l, err := NewWithConfig("", testConfig("http://unused"), zaptest.NewLogger(t))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	l.ServeHTTP(rec, httptest.NewRequest("GET", "/events", nil))
	assert.Equal(t, 405, rec.Code)

	rec = httptest.NewRecorder()
	l.ServeHTTP(rec, httptest.NewRequest("POST", "/events", bytes.NewBufferString("{")))
	assert.Equal(t, 400, rec.Code)
	assert.Zero(t, l.Received())
}

func TestNewWithConfigRejectsBadKey(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.ServerPublicKey = "AAAA"
	_, err := NewWithConfig("", cfg, nil)
	assert.ErrorContains(t, err, "server_public_key")
}
