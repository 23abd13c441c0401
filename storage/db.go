package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/triedb"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Database is a generic interface for a key-value store.
// This allows the rental state to use any database backend (in-memory or persistent).
// The trie database shares the same backend so state roots committed through
// storage/trie survive restarts.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	TrieDB() *triedb.Database
	Close() // A way to gracefully shut down the database connection.
}

type backend struct {
	disk   ethdb.Database
	trieDB *triedb.Database
}

func newBackend(disk ethdb.Database) backend {
	return backend{disk: disk, trieDB: triedb.NewDatabase(disk, triedb.HashDefaults)}
}

func (b backend) Put(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("storage: key must not be empty")
	}
	return b.disk.Put(key, value)
}

func (b backend) Get(key []byte) ([]byte, error) {
	ok, err := b.disk.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return b.disk.Get(key)
}

func (b backend) Has(key []byte) (bool, error) {
	return b.disk.Has(key)
}

func (b backend) TrieDB() *triedb.Database {
	return b.trieDB
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	backend
}

func NewMemDB() *MemDB {
	return &MemDB{backend: newBackend(rawdb.NewMemoryDatabase())}
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {
	_ = db.trieDB.Close()
	_ = db.disk.Close()
}

// --- Persistent DB ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	backend
}

const (
	levelDBCacheMB  = 64
	levelDBHandles  = 128
	levelDBMetrics  = "rentalchain/db/"
	levelDBReadOnly = false
)

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("storage: data directory required")
	}
	kv, err := leveldb.New(trimmed, levelDBCacheMB, levelDBHandles, levelDBMetrics, levelDBReadOnly)
	if err != nil {
		return nil, err
	}
	return &LevelDB{backend: newBackend(rawdb.NewDatabase(kv))}, nil
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	_ = ldb.trieDB.Close()
	_ = ldb.disk.Close()
}
