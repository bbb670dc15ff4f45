package notifier

import (
	"context"
	"sync"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// KVStore provides simple kv data storage.
type KVStore interface {
	ReadKey(key []byte) ([]byte, error)
	UpdateKey(key []byte, data []byte) error
	DeleteKey(key []byte) error
	Keys() ([][]byte, error)
}

var errBacklogFull = errors.New("backlog is full")

// backlog keeps notices which couldn't be sent and resends them later.
type backlog struct {
	store   KVStore
	maxSize int
	metrics *metrics
	l       logrus.FieldLogger

	// Serializes size checks with writes and retries.
	mu sync.Mutex
}

func newBacklog(store KVStore, maxSize int, m *metrics, l logrus.FieldLogger) (*backlog, error) {
	b := &backlog{
		store:   store,
		maxSize: maxSize,
		metrics: m,
		l:       l,
	}

	keys, err := store.Keys()
	if err != nil {
		return nil, errors.Wrap(err, "reading backlog keys")
	}
	m.backlogSize.Set(float64(len(keys)))

	return b, nil
}

func (b *backlog) push(notice *Notice) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	keys, err := b.store.Keys()
	if err != nil {
		return errors.Wrap(err, "reading backlog keys")
	}
	if len(keys) >= b.maxSize {
		return errBacklogFull
	}

	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(notice)
	if err != nil {
		return errors.Wrap(err, "marshalling notice")
	}
	if err := b.store.UpdateKey([]byte(uuid.NewString()), data); err != nil {
		return errors.Wrap(err, "storing notice")
	}
	b.metrics.backlogSize.Set(float64(len(keys) + 1))

	return nil
}

// retry resends all stored notices. Sent and unreadable notices are removed.
// Returns number of notices sent.
func (b *backlog) retry(ctx context.Context, send func(context.Context, *Notice) (*Notice, error)) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	keys, err := b.store.Keys()
	if err != nil {
		return 0, errors.Wrap(err, "reading backlog keys")
	}

	var sent int
	remaining := len(keys)
	defer func() {
		b.metrics.backlogSize.Set(float64(remaining))
	}()

	for _, key := range keys {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}

		data, err := b.store.ReadKey(key)
		if err != nil {
			return sent, errors.Wrap(err, "reading backlogged notice")
		}

		var notice Notice
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &notice); err != nil {
			b.l.Warnf("dropping unreadable backlogged notice %s: %v", key, err)
		} else if _, err := send(ctx, &notice); err != nil {
			if !isPermanent(err) {
				continue
			}
			b.l.Warnf("dropping backlogged notice %s: %v", key, err)
		} else {
			sent++
		}

		if err := b.store.DeleteKey(key); err != nil {
			return sent, errors.Wrap(err, "deleting backlogged notice")
		}
		remaining--
	}

	return sent, nil
}
