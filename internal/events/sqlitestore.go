package events

import (
	"database/sql"
	"sync"
	"time"
)

// SQLiteStore persists subscriptions in a SQLite table.
type SQLiteStore struct {
	mu sync.Mutex
	DB *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{DB: db}
}

func (s *SQLiteStore) Create(endpoint, destinationID, name, context string) error {
	if err := ValidateEndpoint(endpoint); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	_, err := s.DB.Exec(
		`INSERT INTO subscriptions (endpoint, destination_id, name, context, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET
		   destination_id=excluded.destination_id,
		   name=excluded.name,
		   context=excluded.context,
		   updated_at=excluded.updated_at`,
		endpoint, destinationID, name, context, now, now,
	)
	return err
}

func (s *SQLiteStore) Remove(endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.DB.Exec(`DELETE FROM subscriptions WHERE endpoint = ?`, endpoint)
	return deleted(res, err)
}

func (s *SQLiteStore) RemoveIf(endpoint, destinationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.DB.Exec(
		`DELETE FROM subscriptions WHERE endpoint = ? AND destination_id = ?`,
		endpoint, destinationID,
	)
	return deleted(res, err)
}

func deleted(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (s *SQLiteStore) Snapshot() (map[string]Subscription, error) {
	rows, err := s.DB.Query(
		`SELECT endpoint, destination_id, name, context
		 FROM subscriptions
		 ORDER BY created_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]Subscription{}
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.Endpoint, &sub.DestinationID, &sub.Name, &sub.Context); err != nil {
			return nil, err
		}
		out[sub.Endpoint] = sub
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.DB.Close()
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*FileStore)(nil)
)
