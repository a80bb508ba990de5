// Package audit keeps a local log of vault operations in a bbolt
// database next to the vault files.
//
// Records hold operation names, blob names and degraded-assurance
// flags only. Passwords, keys and plaintext never reach this package.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// FileName is the audit database file inside the vault directory.
const FileName = "audit.db"

var bucketAudit = []byte("audit")

// Entry is one recorded vault operation.
type Entry struct {
	ID       string    `json:"id"`
	Op       string    `json:"op"`
	Target   string    `json:"target,omitempty"`
	Degraded bool      `json:"degraded,omitempty"`
	At       time.Time `json:"at"`
}

// Log is a bbolt-backed operation log.
type Log struct {
	db *bolt.DB
}

// Open opens (or creates) the audit database at the given path with
// 0600 permissions.
func Open(path string) (*Log, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAudit)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit bucket: %w", err)
	}
	return &Log{db: db}, nil
}

// Record appends an entry for the given operation. Keys are ordered by
// timestamp so Recent can walk backwards.
func (l *Log) Record(op, target string, degraded bool) error {
	entry := Entry{
		ID:       uuid.New().String(),
		Op:       op,
		Target:   target,
		Degraded: degraded,
		At:       time.Now().UTC(),
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	// Fixed-width timestamp keys keep bucket order chronological.
	key := []byte(entry.At.Format("20060102150405.000000000") + "/" + entry.ID)

	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAudit).Put(key, value)
	})
}

// Recent returns up to n entries, newest first.
func (l *Log) Recent(n int) ([]Entry, error) {
	var entries []Entry
	err := l.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAudit).Cursor()
		for k, v := c.Last(); k != nil && len(entries) < n; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode audit entry: %w", err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}
