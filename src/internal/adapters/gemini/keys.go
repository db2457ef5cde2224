package gemini

import "sync"

// KeyRing rotates through the configured API keys round-robin so repeated
// calls spread quota across keys.
type KeyRing struct {
	keys []string
	idx  int
	mu   sync.Mutex
}

func NewKeyRing(keys []string) *KeyRing {
	filtered := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			filtered = append(filtered, k)
		}
	}
	return &KeyRing{keys: filtered}
}

func (r *KeyRing) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.keys) == 0 {
		return ""
	}
	key := r.keys[r.idx]
	r.idx = (r.idx + 1) % len(r.keys)
	return key
}

func (r *KeyRing) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys) == 0
}
