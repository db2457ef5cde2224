package memory

import (
	"context"
	"io"
	"strings"
	"sync"
)

// InMemoryObjectStore keeps uploaded objects in a map. Dev mode and tests
// only; the production store is the R2 adapter.
type InMemoryObjectStore struct {
	objects map[string][]byte
	baseURL string
	mu      sync.RWMutex
}

func NewObjectStore(baseURL string) *InMemoryObjectStore {
	return &InMemoryObjectStore{
		objects: make(map[string][]byte),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (s *InMemoryObjectStore) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return s.URL(key), nil
}

func (s *InMemoryObjectStore) URL(key string) string {
	return s.baseURL + "/" + key
}

func (s *InMemoryObjectStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *InMemoryObjectStore) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Has reports whether an object is stored under key. Test helper.
func (s *InMemoryObjectStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok
}
