package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// subscriber records every POST it receives.
type subscriber struct {
	mu     sync.Mutex
	status int
	times  []time.Time
	bodies []Event
	header []http.Header
	srv    *httptest.Server
}

func newSubscriber(t *testing.T, status int) *subscriber {
	t.Helper()
	s := &subscriber{status: status}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		s.mu.Lock()
		s.times = append(s.times, time.Now())
		s.bodies = append(s.bodies, ev)
		s.header = append(s.header, r.Header.Clone())
		s.mu.Unlock()
		w.WriteHeader(s.status)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *subscriber) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.times)
}

// request returns the body and headers of the i-th delivery.
func (s *subscriber) request(i int) (Event, http.Header) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[i], s.header[i]
}

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := OpenFileStore(filepath.Join(t.TempDir(), "subscriptions.json"))
	require.NoError(t, err)
	return s
}

func TestPublishRetriesAndEvictsFailingSubscriber(t *testing.T) {
	store := newTestStore(t)
	a := newSubscriber(t, http.StatusOK)
	b := newSubscriber(t, http.StatusInternalServerError)
	c := newSubscriber(t, http.StatusOK)

	require.NoError(t, store.Create(a.srv.URL, "A", "a", "ctx-a"))
	require.NoError(t, store.Create(b.srv.URL, "B", "b", "ctx-b"))
	require.NoError(t, store.Create(c.srv.URL, "C", "c", "ctx-c"))

	const interval = 30 * time.Millisecond
	reg := prometheus.NewRegistry()
	p, err := NewPublisher(store, Config{
		ServiceEnabled: true,
		RetryAttempts:  3,
		RetryInterval:  interval,
		Workers:        4,
	}, WithLogger(zaptest.NewLogger(t)), WithMetrics(reg))
	require.NoError(t, err)

	rec := NewEventRecord(StatusChange, "Base.1.0.Success")
	require.NoError(t, p.Publish(context.Background(), rec))

	assert.Equal(t, 1, a.calls())
	assert.Equal(t, 1, c.calls())
	require.Equal(t, 3, b.calls())

	b.mu.Lock()
	for i := 1; i < len(b.times); i++ {
		assert.GreaterOrEqual(t, b.times[i].Sub(b.times[i-1]), interval)
	}
	b.mu.Unlock()

	subs, err := store.Snapshot()
	require.NoError(t, err)
	assert.Contains(t, subs, a.srv.URL)
	assert.Contains(t, subs, c.srv.URL)
	assert.NotContains(t, subs, b.srv.URL)

	assert.Equal(t, float64(5), testutil.ToFloat64(p.metrics.attempts))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.metrics.evictions))
	assert.Equal(t, float64(2), testutil.ToFloat64(p.metrics.deliveries.WithLabelValues("delivered")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.metrics.deliveries.WithLabelValues("failed")))
}

func TestPublishBodyCarriesSubscriberMetadata(t *testing.T) {
	store := newTestStore(t)
	sub := newSubscriber(t, http.StatusOK)
	require.NoError(t, store.Create(sub.srv.URL, "dest-9", "monitor", "opaque"))

	p, err := NewPublisher(store, Config{ServiceEnabled: true, RetryAttempts: 1, Workers: 1})
	require.NoError(t, err)

	r1 := NewEventRecord(ResourceAdded, "Base.1.0.ResourceCreated")
	r2 := NewEventRecord(ResourceUpdated, "Base.1.0.Success")
	require.NoError(t, p.Publish(context.Background(), r1, r2))

	require.Equal(t, 1, sub.calls())
	ev, header := sub.request(0)
	assert.Equal(t, "dest-9", ev.ID)
	assert.Equal(t, "monitor", ev.Name)
	assert.Equal(t, "opaque", ev.Context)
	assert.Equal(t, []EventRecord{r1, r2}, ev.Events)
	assert.Equal(t, "application/json", header.Get("Content-Type"))
}

func TestPublishOnlyStatus200Counts(t *testing.T) {
	store := newTestStore(t)
	sub := newSubscriber(t, http.StatusNoContent)
	require.NoError(t, store.Create(sub.srv.URL, "1", "", ""))

	p, err := NewPublisher(store, Config{ServiceEnabled: true, RetryAttempts: 2, Workers: 1})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), NewEventRecord(Alert, "Base.1.0.GeneralError")))

	assert.Equal(t, 2, sub.calls())
	subs, _ := store.Snapshot()
	assert.Empty(t, subs)
}

func TestPublishKeepsReplacedSubscription(t *testing.T) {
	store := newTestStore(t)
	var (
		once     sync.Once
		endpoint string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			// the listener comes back under a new id while retries run
			_ = store.Create(endpoint, "B2", "renewed", "")
		})
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	endpoint = srv.URL + "/"
	require.NoError(t, store.Create(endpoint, "B1", "stale", ""))

	reg := prometheus.NewRegistry()
	p, err := NewPublisher(store, Config{
		ServiceEnabled: true,
		RetryAttempts:  2,
		RetryInterval:  5 * time.Millisecond,
		Workers:        1,
	}, WithLogger(zaptest.NewLogger(t)), WithMetrics(reg))
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), NewEventRecord(Alert, "Base.1.0.GeneralError")))

	subs, err := store.Snapshot()
	require.NoError(t, err)
	require.Contains(t, subs, endpoint)
	assert.Equal(t, "B2", subs[endpoint].DestinationID)
	assert.Equal(t, float64(0), testutil.ToFloat64(p.metrics.evictions))
}

func TestPublishDisabledIsNoop(t *testing.T) {
	store := newTestStore(t)
	sub := newSubscriber(t, http.StatusOK)
	require.NoError(t, store.Create(sub.srv.URL, "1", "", ""))

	p, err := NewPublisher(store, Config{ServiceEnabled: false, RetryAttempts: 3, Workers: 1})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), NewEventRecord(Alert, "Base.1.0.GeneralError")))

	assert.Equal(t, 0, sub.calls())
}

func TestPublishSignsBodies(t *testing.T) {
	store := newTestStore(t)
	sub := newSubscriber(t, http.StatusOK)
	require.NoError(t, store.Create(sub.srv.URL, "1", "", ""))

	var signed []byte
	signer := func(body []byte) (map[string]string, error) {
		signed = append([]byte(nil), body...)
		return map[string]string{"X-Event-Signature": "sig"}, nil
	}
	p, err := NewPublisher(store, Config{ServiceEnabled: true, RetryAttempts: 1, Workers: 1}, WithSigner(signer))
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), NewEventRecord(Alert, "Base.1.0.GeneralError")))

	require.Equal(t, 1, sub.calls())
	_, header := sub.request(0)
	assert.Equal(t, "sig", header.Get("X-Event-Signature"))
	assert.NotEmpty(t, signed)
}

func TestPublishCancelledDoesNotEvict(t *testing.T) {
	store := newTestStore(t)
	sub := newSubscriber(t, http.StatusServiceUnavailable)
	require.NoError(t, store.Create(sub.srv.URL, "1", "", ""))

	p, err := NewPublisher(store, Config{
		ServiceEnabled: true,
		RetryAttempts:  5,
		RetryInterval:  time.Hour,
		Workers:        1,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = p.Publish(ctx, NewEventRecord(Alert, "Base.1.0.GeneralError"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, 1, sub.calls())
	subs, _ := store.Snapshot()
	assert.Len(t, subs, 1)
}

func TestPublishAsyncAndClose(t *testing.T) {
	store := newTestStore(t)
	sub := newSubscriber(t, http.StatusOK)
	require.NoError(t, store.Create(sub.srv.URL, "1", "", ""))

	p, err := NewPublisher(store, Config{ServiceEnabled: true, RetryAttempts: 1, Workers: 2})
	require.NoError(t, err)

	p.PublishAsync(NewEventRecord(ResourceUpdated, "Base.1.0.Success"))
	p.PublishAsync(NewEventRecord(ResourceUpdated, "Base.1.0.Success"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Close(ctx))
	assert.Equal(t, 2, sub.calls())

	// dropped after close
	p.PublishAsync(NewEventRecord(ResourceUpdated, "Base.1.0.Success"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, sub.calls())
}

func TestNewPublisherValidation(t *testing.T) {
	store := newTestStore(t)

	_, err := NewPublisher(nil, DefaultConfig())
	assert.Error(t, err)

	_, err = NewPublisher(store, Config{ServiceEnabled: true, RetryAttempts: 0})
	assert.Error(t, err)

	_, err = NewPublisher(store, Config{ServiceEnabled: true, RetryAttempts: 1, RetryInterval: -time.Second})
	assert.Error(t, err)
}

func TestNewEventRecord(t *testing.T) {
	rec := NewEventRecord(StatusChange, "Base.1.0.Success")
	assert.Equal(t, StatusChange, rec.EventType)
	assert.NotEmpty(t, rec.EventID)

	ts, err := time.Parse(time.RFC3339, rec.EventTimestamp)
	require.NoError(t, err)
	assert.Zero(t, ts.Nanosecond())

	typ, ok := ParseEventType("Alert")
	assert.True(t, ok)
	assert.Equal(t, Alert, typ)
	_, ok = ParseEventType("Bogus")
	assert.False(t, ok)
}
