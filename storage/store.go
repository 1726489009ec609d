package storage

import "context"

// Update notifies listeners that a key now holds Value, encoded as raw JSON.
// A batch written with SetAll yields a single Update with an empty Key and
// the whole document as Value.
type Update struct {
	Key   []byte
	Value []byte
}

// Entry is one key of a batch write.
type Entry struct {
	Key   []byte
	Value interface{}
}

type Store interface {
	Set(ctx context.Context, key []byte, value interface{}) error
	SetAll(ctx context.Context, entries []Entry) error
	Get(ctx context.Context, key []byte) ([]byte, error)

	Restore(values []byte) error
	Backup() ([]byte, error)

	ListenToUpdates() <-chan *Update
	StopListening(updates <-chan *Update)

	Close() error
}
