package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrDeliveryFailed is returned by a delivery that exhausted its attempts.
var ErrDeliveryFailed = errors.New("events: delivery failed")

// Config controls delivery.
type Config struct {
	ServiceEnabled bool
	RetryAttempts  int
	RetryInterval  time.Duration
	// Workers caps concurrent deliveries within one publish.
	Workers int
	// Timeout bounds a single POST attempt. Zero means no per-attempt timeout.
	Timeout time.Duration
}

// DefaultConfig matches the stock event service settings.
func DefaultConfig() Config {
	return Config{
		ServiceEnabled: true,
		RetryAttempts:  3,
		RetryInterval:  5 * time.Second,
		Workers:        8,
		Timeout:        10 * time.Second,
	}
}

// Signer returns extra headers authenticating a webhook body.
type Signer func(body []byte) (map[string]string, error)

type Option func(*Publisher)

func WithHTTPClient(c *http.Client) Option {
	return func(p *Publisher) { p.client = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

func WithSigner(s Signer) Option {
	return func(p *Publisher) { p.signer = s }
}

// WithMetrics registers delivery metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(p *Publisher) { p.registerer = reg }
}

// Publisher delivers events to every current subscriber.
type Publisher struct {
	store      Store
	cfg        Config
	client     *http.Client
	logger     *zap.Logger
	signer     Signer
	registerer prometheus.Registerer
	metrics    *publisherMetrics

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

func NewPublisher(store Store, cfg Config, opts ...Option) (*Publisher, error) {
	if store == nil {
		return nil, errors.New("events: nil store")
	}
	if cfg.RetryAttempts < 1 {
		return nil, fmt.Errorf("events: retry attempts must be at least 1, got %d", cfg.RetryAttempts)
	}
	if cfg.RetryInterval < 0 {
		return nil, fmt.Errorf("events: negative retry interval %s", cfg.RetryInterval)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	p := &Publisher{store: store, cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = &http.Client{}
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	m, err := newPublisherMetrics(p.registerer)
	if err != nil {
		return nil, fmt.Errorf("events: register metrics: %w", err)
	}
	p.metrics = m
	p.baseCtx, p.cancel = context.WithCancel(context.Background())
	return p, nil
}

func (p *Publisher) Config() Config { return p.cfg }

// Publish sends records to every subscriber in the current snapshot and
// returns once each one has been attempted. Subscribers whose deliveries
// fail RetryAttempts times are removed from the store. A cancelled ctx
// stops retries without evicting anyone.
func (p *Publisher) Publish(ctx context.Context, records ...EventRecord) error {
	if !p.cfg.ServiceEnabled {
		return nil
	}
	start := time.Now()
	defer p.metrics.observePublish(start)

	subs, err := p.store.Snapshot()
	if err != nil {
		return fmt.Errorf("events: snapshot subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	failed := make(chan Subscription, len(subs))
	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)

	for endpoint, sub := range subs {
		endpoint, sub := endpoint, sub
		ev := Event{
			ID:      sub.DestinationID,
			Name:    sub.Name,
			Context: sub.Context,
			Events:  append([]EventRecord(nil), records...),
		}
		g.Go(func() error {
			err := p.deliver(ctx, endpoint, ev)
			if err != nil && ctx.Err() == nil {
				failed <- sub
			}
			return nil
		})
	}
	_ = g.Wait()
	close(failed)

	for sub := range failed {
		err := p.store.RemoveIf(sub.Endpoint, sub.DestinationID)
		switch {
		case err == nil:
			p.metrics.recordEviction()
			p.logger.Warn("subscriber evicted after failed deliveries",
				zap.String("endpoint", sub.Endpoint),
				zap.String("id", sub.DestinationID),
				zap.Int("attempts", p.cfg.RetryAttempts))
		case errors.Is(err, ErrSubscriptionNotFound):
			// unsubscribed or re-subscribed while we were retrying
		default:
			p.logger.Error("evict subscriber", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
	return ctx.Err()
}

// PublishAsync publishes in the background. Close waits for it.
func (p *Publisher) PublishAsync(records ...EventRecord) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Debug("publisher closed, dropping event", zap.Int("records", len(records)))
		return
	}
	p.inflight.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.inflight.Done()
		if err := p.Publish(p.baseCtx, records...); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Error("publish event", zap.Error(err))
		}
	}()
}

// Close stops accepting async publishes and waits for in-flight ones. When
// ctx expires first, pending retries are cancelled.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	defer p.cancel()

	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

// deliver POSTs ev to endpoint up to RetryAttempts times, sleeping
// RetryInterval between attempts.
func (p *Publisher) deliver(ctx context.Context, endpoint string, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	log := p.logger.With(zap.String("endpoint", endpoint))

	for attempt := 1; attempt <= p.cfg.RetryAttempts; attempt++ {
		if attempt > 1 {
			t := time.NewTimer(p.cfg.RetryInterval)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		p.metrics.recordAttempt()
		err := p.post(ctx, endpoint, body)
		if err == nil {
			p.metrics.recordDelivery(true)
			log.Debug("event delivered", zap.Int("attempt", attempt))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("event delivery attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.cfg.RetryAttempts),
			zap.Error(err))
	}

	p.metrics.recordDelivery(false)
	return fmt.Errorf("%w: %s after %d attempts", ErrDeliveryFailed, endpoint, p.cfg.RetryAttempts)
}

func (p *Publisher) post(ctx context.Context, endpoint string, body []byte) error {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.signer != nil {
		headers, err := p.signer(body)
		if err != nil {
			return fmt.Errorf("sign event: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("subscriber returned status %d", resp.StatusCode)
	}
	return nil
}
