package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	UpdateBufferSize = 255
)

var (
	ErrKeyNotFound = errors.New("Key not found")
	ErrStoreClosed = errors.New("Store is closed")
)

// InmemoryStore keeps a single JSON document in memory. Each physical
// quantity of the latest reading is stored under its own key, so consumers
// can fetch one value or the whole document.
type InmemoryStore struct {
	mu     sync.RWMutex
	values []byte

	listenMu    sync.Mutex
	updateChans []chan *Update

	// stop willl be closed when Close() is called
	stop     chan struct{}
	stopOnce sync.Once
}

func NewInmemoryStore() *InmemoryStore {
	return &InmemoryStore{
		values:      []byte(""),
		stop:        make(chan struct{}),
		updateChans: make([]chan *Update, 0),
	}
}

func (i *InmemoryStore) Close() error {
	i.stopOnce.Do(func() {
		close(i.stop)

		i.listenMu.Lock()
		defer i.listenMu.Unlock()

		for _, updateChan := range i.updateChans {
			close(updateChan)
		}
		i.updateChans = nil
	})

	return nil
}

func (i *InmemoryStore) Set(ctx context.Context, key []byte, value interface{}) (err error) {
	if !i.isRunning() {
		return ErrStoreClosed
	}

	i.mu.Lock()
	i.values, err = sjson.SetBytes(i.values, string(key), value)
	if err != nil {
		i.mu.Unlock()
		return err
	}
	raw := []byte(gjson.GetBytes(i.values, string(key)).Raw)
	i.mu.Unlock()

	i.notify(&Update{Key: key, Value: raw})

	return nil
}

// SetAll applies every entry or none of them. Readers never observe a
// document with only part of the batch written.
func (i *InmemoryStore) SetAll(ctx context.Context, entries []Entry) error {
	if !i.isRunning() {
		return ErrStoreClosed
	}

	i.mu.Lock()
	values := append([]byte(nil), i.values...)
	for _, entry := range entries {
		var err error
		values, err = sjson.SetBytes(values, string(entry.Key), entry.Value)
		if err != nil {
			i.mu.Unlock()
			return err
		}
	}
	i.values = values
	doc := append([]byte(nil), values...)
	i.mu.Unlock()

	i.notify(&Update{Value: doc})

	return nil
}

func (i *InmemoryStore) notify(update *Update) {
	i.listenMu.Lock()
	defer i.listenMu.Unlock()

	for _, updateChan := range i.updateChans {
		// Slow listeners miss intermediate values rather than stalling writers.
		select {
		case updateChan <- update:
		default:
		}
	}
}

func (i *InmemoryStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	result := gjson.GetBytes(i.values, string(key))
	if !result.Exists() {
		return nil, ErrKeyNotFound
	}

	return []byte(result.Raw), nil
}

func (i *InmemoryStore) ListenToUpdates() <-chan *Update {
	i.listenMu.Lock()
	defer i.listenMu.Unlock()

	updateChan := make(chan *Update, UpdateBufferSize)
	if !i.isRunning() {
		close(updateChan)
		return updateChan
	}

	i.updateChans = append(i.updateChans, updateChan)

	return updateChan
}

// StopListening unregisters and closes a channel returned by ListenToUpdates.
func (i *InmemoryStore) StopListening(updates <-chan *Update) {
	i.listenMu.Lock()
	defer i.listenMu.Unlock()

	for idx, updateChan := range i.updateChans {
		if (<-chan *Update)(updateChan) == updates {
			close(updateChan)
			i.updateChans = append(i.updateChans[:idx], i.updateChans[idx+1:]...)
			return
		}
	}
}

func (i *InmemoryStore) Restore(values []byte) error {
	if len(values) > 0 && !gjson.ValidBytes(values) {
		return errors.New("Restore requires a valid JSON document")
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.values = append([]byte(nil), values...)
	return nil
}

func (i *InmemoryStore) Backup() ([]byte, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if len(i.values) == 0 {
		return []byte("{}"), nil
	}

	return append([]byte(nil), i.values...), nil
}

// isRunning returns true if Close has not been called
func (i *InmemoryStore) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

var _ Store = (*InmemoryStore)(nil)
