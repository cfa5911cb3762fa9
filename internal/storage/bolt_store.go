package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const taskBucket = "tasks"

// boltStore implements a Store backed by BoltDB.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	taskTTL         time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(taskBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		taskTTL:         opts.TaskTTL,
		cleanupInterval: opts.CleanupInterval,
		now:             time.Now,
	}
	store.lastCleanup.Store(store.now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// SaveTask upserts the journal record for rec.Task.TaskID.
func (b *boltStore) SaveTask(rec TaskRecord) error {
	if b == nil || b.db == nil {
		return nil
	}
	id := strings.TrimSpace(rec.Task.TaskID)
	if id == "" {
		return errors.New("task record has no task id")
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(taskBucket))
		if bucket == nil {
			return fmt.Errorf("task bucket missing")
		}

		if prev, ok := decodeRecord(bucket.Get([]byte(id))); ok {
			if rec.SubmittedAt.IsZero() {
				rec.SubmittedAt = prev.SubmittedAt
			}
			if rec.InputPath == "" {
				rec.InputPath = prev.InputPath
			}
			if rec.OutputPath == "" {
				rec.OutputPath = prev.OutputPath
			}
			if rec.ProviderID == "" {
				rec.ProviderID = prev.ProviderID
			}
		}
		if rec.SubmittedAt.IsZero() {
			rec.SubmittedAt = now.UTC()
		}
		rec.UpdatedAt = now.UTC()
		rec.ExpiresAt = now.Add(b.taskTTL).UTC()

		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode task record: %w", err)
		}
		return bucket.Put([]byte(id), raw)
	})
}

// LookupTask returns the live record for taskID. Expired records are removed
// and reported as missing.
func (b *boltStore) LookupTask(taskID string) (TaskRecord, bool, error) {
	if b == nil || b.db == nil {
		return TaskRecord{}, false, nil
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return TaskRecord{}, false, err
	}

	var (
		rec    TaskRecord
		exists bool
	)
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(taskBucket))
		if bucket == nil {
			return fmt.Errorf("task bucket missing")
		}

		key := []byte(strings.TrimSpace(taskID))
		value := bucket.Get(key)
		if value == nil {
			return nil
		}

		decoded, ok := decodeRecord(value)
		if !ok || !decoded.ExpiresAt.After(now) {
			return bucket.Delete(key)
		}

		rec = decoded
		exists = true
		return nil
	})
	return rec, exists, err
}

// ListTasks returns up to limit live records, newest submission first. A
// limit <= 0 returns all of them.
func (b *boltStore) ListTasks(limit int) ([]TaskRecord, error) {
	if b == nil || b.db == nil {
		return nil, nil
	}

	now := b.now()
	var out []TaskRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(taskBucket))
		if bucket == nil {
			return fmt.Errorf("task bucket missing")
		}
		return bucket.ForEach(func(_, v []byte) error {
			rec, ok := decodeRecord(v)
			if ok && rec.ExpiresAt.After(now) {
				out = append(out, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// maybeCleanupExpired removes expired task records on a fixed cadence to avoid unbounded growth.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(taskBucket))
		if bucket == nil {
			return fmt.Errorf("task bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			rec, ok := decodeRecord(v)
			if !ok || !rec.ExpiresAt.After(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

// decodeRecord decodes a stored record; corrupt values report !ok.
func decodeRecord(value []byte) (TaskRecord, bool) {
	if len(value) == 0 {
		return TaskRecord{}, false
	}
	var rec TaskRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return TaskRecord{}, false
	}
	if rec.ExpiresAt.IsZero() {
		return TaskRecord{}, false
	}
	return rec, true
}
