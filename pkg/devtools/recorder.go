package devtools

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/synapse-dev/synapse/pkg/synapse"
)

const recordBucket = "records"

// Recorder is an append-only flight recorder for diagnostic records,
// persisted to a bbolt file so a timeline survives the process. Storage
// sequence numbers start at 1 and follow append order.
type Recorder struct {
	db     *bbolt.DB
	logger *slog.Logger
}

// OpenRecorder opens the recorder file at path, creating it if needed.
func OpenRecorder(path string, logger *slog.Logger) (*Recorder, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("recorder path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open recorder db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(recordBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create record bucket: %w", err)
	}

	return &Recorder{db: db, logger: logger}, nil
}

// Append persists one record under the next storage sequence number.
func (r *Recorder) Append(rec synapse.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(recordBucket))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(marshalSeq(seq), payload)
	})
}

// Emit implements synapse.Sink. Persistence failures are logged and the
// record dropped; the reactive graph never sees recorder errors.
func (r *Recorder) Emit(rec synapse.Record) {
	if err := r.Append(rec); err != nil {
		r.logger.Error("record append failed", "error", err)
	}
}

// Replay calls f with each stored record in append order, starting at
// storage sequence from (1 is the oldest record).
func (r *Recorder) Replay(from uint64, f func(seq uint64, rec synapse.Record)) error {
	return r.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(recordBucket)).Cursor()
		for k, v := c.Seek(marshalSeq(from)); k != nil; k, v = c.Next() {
			var rec synapse.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal record %d: %w", unmarshalSeq(k), err)
			}
			f(unmarshalSeq(k), rec)
		}
		return nil
	})
}

// Records returns up to limit stored records with storage sequence >=
// from. A limit of 0 means no limit.
func (r *Recorder) Records(from uint64, limit int) ([]synapse.Record, error) {
	var recs []synapse.Record
	err := r.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(recordBucket)).Cursor()
		for k, v := c.Seek(marshalSeq(from)); k != nil && (limit <= 0 || len(recs) < limit); k, v = c.Next() {
			var rec synapse.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal record %d: %w", unmarshalSeq(k), err)
			}
			recs = append(recs, rec)
		}
		return nil
	})
	return recs, err
}

// LastSeq returns the storage sequence of the most recent record, 0 when
// the recorder is empty.
func (r *Recorder) LastSeq() (uint64, error) {
	var seq uint64
	err := r.db.View(func(tx *bbolt.Tx) error {
		seq = tx.Bucket([]byte(recordBucket)).Sequence()
		return nil
	})
	return seq, err
}

// Close closes the underlying database.
func (r *Recorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func marshalSeq(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func unmarshalSeq(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}
