package storage

import (
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
)

// Database is a generic interface for a key-value store. The ledger state can
// run against any backend (in-memory for tests, persistent for the daemon).
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	// NewBatch returns an empty write batch for this backend. Batches from
	// one backend cannot be written to another.
	NewBatch() Batch
	// Write applies every Put recorded on the batch in one commit.
	Write(batch Batch) error
	Close()
}

// Batch collects writes to be applied together.
type Batch interface {
	Put(key []byte, value []byte)
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemDB() *MemDB {
	return &MemDB{
		data: make(map[string][]byte),
	}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data[string(key)] = value
	return nil
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, ok := db.data[string(key)]
	if !ok {
		return nil, fmt.Errorf("key not found")
	}
	return value, nil
}

type memBatch struct {
	keys   []string
	values [][]byte
}

func (b *memBatch) Put(key []byte, value []byte) {
	b.keys = append(b.keys, string(key))
	b.values = append(b.values, value)
}

// NewBatch returns an empty in-memory write batch.
func (db *MemDB) NewBatch() Batch {
	return &memBatch{}
}

// Write applies the batch under a single lock acquisition.
func (db *MemDB) Write(batch Batch) error {
	mb, ok := batch.(*memBatch)
	if !ok {
		return fmt.Errorf("storage: batch not created by this backend")
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	for i, key := range mb.keys {
		db.data[key] = mb.values[i]
	}
	return nil
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {}

// --- Persistent DB ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	return ldb.db.Get(key, nil)
}

type levelBatch struct {
	b *leveldb.Batch
}

func (b *levelBatch) Put(key []byte, value []byte) {
	b.b.Put(key, value)
}

// NewBatch returns an empty LevelDB write batch.
func (ldb *LevelDB) NewBatch() Batch {
	return &levelBatch{b: new(leveldb.Batch)}
}

// Write commits the batch atomically.
func (ldb *LevelDB) Write(batch Batch) error {
	lb, ok := batch.(*levelBatch)
	if !ok {
		return fmt.Errorf("storage: batch not created by this backend")
	}
	return ldb.db.Write(lb.b, nil)
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	ldb.db.Close()
}
