package mock

import (
	"sort"
	"sync"
)

// KVStore mocks notifier.KVStore.
type KVStore struct {
	data    map[string][]byte
	reads   int
	updates int
	deletes int
	m       sync.Mutex

	// Err is returned by every call when set.
	Err error
}

// NewKVStore creates new KVStore instance with given data.
func NewKVStore(data map[string][]byte) *KVStore {
	return &KVStore{
		data: data,
	}
}

// ReadKey returns data saved for given key.
func (s *KVStore) ReadKey(key []byte) ([]byte, error) {
	s.m.Lock()
	defer s.m.Unlock()

	s.reads++
	if s.Err != nil {
		return nil, s.Err
	}
	if s.data == nil {
		return nil, nil
	}

	return s.data[string(key)], nil
}

// UpdateKey stores given data under given key.
func (s *KVStore) UpdateKey(key []byte, data []byte) error {
	s.m.Lock()
	defer s.m.Unlock()

	s.updates++
	if s.Err != nil {
		return s.Err
	}
	if s.data == nil {
		s.data = make(map[string][]byte)
	}
	s.data[string(key)] = data

	return nil
}

// DeleteKey removes given key.
func (s *KVStore) DeleteKey(key []byte) error {
	s.m.Lock()
	defer s.m.Unlock()

	s.deletes++
	if s.Err != nil {
		return s.Err
	}
	delete(s.data, string(key))

	return nil
}

// Keys returns sorted stored keys.
func (s *KVStore) Keys() ([][]byte, error) {
	s.m.Lock()
	defer s.m.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	res := make([][]byte, 0, len(keys))
	for _, k := range keys {
		res = append(res, []byte(k))
	}
	return res, nil
}

// Len returns number of stored keys.
func (s *KVStore) Len() int {
	s.m.Lock()
	defer s.m.Unlock()

	return len(s.data)
}

// Updates returns update call count.
func (s *KVStore) Updates() int {
	s.m.Lock()
	defer s.m.Unlock()

	return s.updates
}

// Deletes returns delete call count.
func (s *KVStore) Deletes() int {
	s.m.Lock()
	defer s.m.Unlock()

	return s.deletes
}
