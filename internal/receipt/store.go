package receipt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const bucketName = "receipts"

// Store is the persistence gateway for confirmed receipt records. All
// operations are independent; there are no cross-call transactions.
type Store interface {
	// List returns all records ordered by date descending, ties broken by
	// insertion order, newest first.
	List(ctx context.Context) ([]*Record, error)

	// Create assigns an ID and creation timestamp, then persists the record
	// atomically. It fails if the record violates its invariants.
	Create(ctx context.Context, record *Record) (string, error)

	// Delete removes a record by ID. Deleting an unknown ID is success.
	Delete(ctx context.Context, id string) error

	// Close releases the underlying store.
	Close() error
}

// IDGenerator generates unique IDs for records
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now().UTC()
}

// BoltStore implements Store on top of bbolt. Records are keyed by a
// monotonic sequence number so insertion order survives for tie-breaking.
type BoltStore struct {
	db          *bbolt.DB
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewBoltStore opens (or creates) the database file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	return NewBoltStoreWithDeps(path, &uuidGenerator{}, &defaultTimeSource{})
}

// NewBoltStoreWithDeps opens a store with custom ID and time dependencies
// for testing.
func NewBoltStoreWithDeps(path string, idGen IDGenerator, timeSrc TimeSource) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db, idGenerator: idGen, timeSource: timeSrc}, nil
}

// List returns all records, date descending, newest insertion first on ties.
func (b *BoltStore) List(_ context.Context) ([]*Record, error) {
	records := make([]*Record, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		// Walk keys backwards so records start out newest-insertion-first;
		// the stable sort below then only has to order by date.
		c := bucket.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var record Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshaling record: %w", err)
			}
			records = append(records, &record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date > records[j].Date
	})
	return records, nil
}

// Create validates the record, assigns its identity, and persists it in a
// single transaction.
func (b *BoltStore) Create(_ context.Context, record *Record) (string, error) {
	stored := *record
	stored.ID = b.idGenerator.Generate()
	stored.CreatedAt = b.timeSource.Now()
	stored.Currency = NormalizeCurrency(stored.Currency)
	if stored.Category == "" {
		stored.Category = DefaultCategory
	}

	if err := stored.Validate(); err != nil {
		return "", fmt.Errorf("invalid record: %w", err)
	}

	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating sequence: %w", err)
		}
		data, err := json.Marshal(&stored)
		if err != nil {
			return fmt.Errorf("marshaling record: %w", err)
		}
		return bucket.Put(seqKey(seq), data)
	})
	if err != nil {
		return "", err
	}
	return stored.ID, nil
}

// Delete removes the record with the given ID. Unknown IDs are treated as
// already gone.
func (b *BoltStore) Delete(_ context.Context, id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var record Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshaling record: %w", err)
			}
			if record.ID == id {
				return bucket.Delete(k)
			}
		}
		return nil
	})
}

// Close closes the database file.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
