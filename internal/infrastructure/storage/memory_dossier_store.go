package storage

import (
	"context"
	"errors"
	"slices"
	"sync"

	applending "github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/application/lending"
)

var _ applending.DossierStore = (*MemoryDossierStore)(nil)

// StoredObject is one object held by MemoryDossierStore
type StoredObject struct {
	Data        []byte
	ContentType string
}

// MemoryDossierStore keeps dossiers in memory. It is used when object storage
// is disabled and in tests.
type MemoryDossierStore struct {
	mu      sync.RWMutex
	objects map[string]StoredObject
}

// NewMemoryDossierStore creates an empty store
func NewMemoryDossierStore() *MemoryDossierStore {
	return &MemoryDossierStore{objects: make(map[string]StoredObject)}
}

// Upload stores a copy of data under storageKey
func (s *MemoryDossierStore) Upload(_ context.Context, storageKey string, data []byte, contentType string) error {
	if storageKey == "" {
		return errors.New("storage key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[storageKey] = StoredObject{Data: slices.Clone(data), ContentType: contentType}
	return nil
}

// Get returns the object under storageKey
func (s *MemoryDossierStore) Get(storageKey string) (StoredObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[storageKey]
	return obj, ok
}

// Keys returns the stored keys in lexical order
func (s *MemoryDossierStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
