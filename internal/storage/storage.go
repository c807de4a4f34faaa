package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

type Storage[I any] interface {
	Get(ctx context.Context, id string) (*I, error)
	List(ctx context.Context, limit int, skip int) ([]I, error)

	Set(ctx context.Context, data *I) (id string, err error)
	Remove(ctx context.Context, id string) error
}

type StorageType uint8

const (
	StorageType_Memory StorageType = iota
)

func NewStorage[I any](stype StorageType) (Storage[I], error) {
	switch stype {
	case StorageType_Memory:
		memstorage := new(MemoryStorage[I])
		memstorage.data = make(map[string]*I)
		return memstorage, nil
	default:
		return nil, errors.New("storage not supported")
	}
}

var ErrNotFound = errors.New("data not found")

// MemoryStorage keeps records in insertion order so listings read like a
// log.
type MemoryStorage[I any] struct {
	mux   sync.RWMutex
	data  map[string]*I
	order []string
}

func (ms *MemoryStorage[I]) Get(ctx context.Context, id string) (*I, error) {
	ms.mux.RLock()
	defer ms.mux.RUnlock()

	data, ok := ms.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (ms *MemoryStorage[I]) List(ctx context.Context, limit int, skip int) ([]I, error) {
	ms.mux.RLock()
	defer ms.mux.RUnlock()

	if skip > len(ms.order) {
		skip = len(ms.order)
	}

	out := make([]I, 0, limit)
	for _, id := range ms.order[skip:] {
		if len(out) >= limit {
			break
		}
		out = append(out, *ms.data[id])
	}
	return out, nil
}

func (ms *MemoryStorage[I]) Set(ctx context.Context, data *I) (string, error) {
	ms.mux.Lock()
	defer ms.mux.Unlock()

	id := uuid.NewString()

	ms.data[id] = data
	ms.order = append(ms.order, id)

	return id, nil
}

func (ms *MemoryStorage[I]) Remove(ctx context.Context, id string) error {
	ms.mux.Lock()
	defer ms.mux.Unlock()

	if _, ok := ms.data[id]; !ok {
		return nil
	}

	delete(ms.data, id)
	for i, oid := range ms.order {
		if oid == id {
			ms.order = append(ms.order[:i], ms.order[i+1:]...)
			break
		}
	}

	return nil
}
