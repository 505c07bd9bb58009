// Package kvstore wraps the embedded BadgerDB handle used by the
// single-node ledger backend.
package kvstore

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v2"
)

type Badger struct {
	DB *badger.DB
}

func Open(path string) (*Badger, error) {
	if path == "" {
		return nil, errors.New("badger path is required")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create badger dir: %w", err)
	}
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{DB: db}, nil
}

func (b *Badger) Close() error {
	if b == nil || b.DB == nil {
		return nil
	}
	return b.DB.Close()
}
