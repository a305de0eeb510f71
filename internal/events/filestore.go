package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps subscriptions in memory and mirrors them to a single JSON
// document mapping endpoint URL to {Id, Name, Context}.
type FileStore struct {
	mu sync.Mutex

	path string
	subs map[string]Subscription
}

// OpenFileStore loads the document at path. A missing or empty file yields an
// empty store.
func OpenFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create subscriptions dir %s: %w", dir, err)
		}
	}
	s := &FileStore{path: path, subs: map[string]Subscription{}}

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) || (err == nil && len(b) == 0) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}

	var doc map[string]Subscription
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse subscriptions %s: %w", path, err)
	}
	for endpoint, sub := range doc {
		sub.Endpoint = endpoint
		s.subs[endpoint] = sub
	}
	return s, nil
}

func (s *FileStore) Create(endpoint, destinationID, name, context string) error {
	if err := ValidateEndpoint(endpoint); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.subs[endpoint]
	s.subs[endpoint] = Subscription{
		Endpoint:      endpoint,
		DestinationID: destinationID,
		Name:          name,
		Context:       context,
	}
	if err := s.writeLocked(); err != nil {
		if existed {
			s.subs[endpoint] = prev
		} else {
			delete(s.subs, endpoint)
		}
		return err
	}
	return nil
}

func (s *FileStore) Remove(endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.subs[endpoint]
	if !ok {
		return ErrSubscriptionNotFound
	}
	delete(s.subs, endpoint)
	if err := s.writeLocked(); err != nil {
		s.subs[endpoint] = prev
		return err
	}
	return nil
}

func (s *FileStore) RemoveIf(endpoint, destinationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.subs[endpoint]
	if !ok || prev.DestinationID != destinationID {
		return ErrSubscriptionNotFound
	}
	delete(s.subs, endpoint)
	if err := s.writeLocked(); err != nil {
		s.subs[endpoint] = prev
		return err
	}
	return nil
}

func (s *FileStore) Snapshot() (map[string]Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Subscription, len(s.subs))
	for k, v := range s.subs {
		out[k] = v
	}
	return out, nil
}

func (s *FileStore) Close() error { return nil }

// writeLocked rewrites the whole document through a temp file and rename.
func (s *FileStore) writeLocked() error {
	b, err := json.MarshalIndent(s.subs, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".subscriptions-*")
	if err != nil {
		return fmt.Errorf("write subscriptions: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write subscriptions: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync subscriptions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
