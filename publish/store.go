package publish

import (
	"context"

	"github.com/luma/imubridge/protocol"
	"github.com/luma/imubridge/storage"
)

// StorePublisher keeps the latest value of each quantity in a Store.
type StorePublisher struct {
	store storage.Store
}

func NewStorePublisher(store storage.Store) *StorePublisher {
	return &StorePublisher{store: store}
}

// Publish writes all quantities of a reading as one batch.
func (s *StorePublisher) Publish(ctx context.Context, reading protocol.Reading) error {
	entries := make([]storage.Entry, 0, len(protocol.Quantities))
	for _, q := range protocol.Quantities {
		value, _ := reading.Value(q)
		entries = append(entries, storage.Entry{Key: []byte(q), Value: value})
	}

	return s.store.SetAll(ctx, entries)
}

var _ Publisher = (*StorePublisher)(nil)
