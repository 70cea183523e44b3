package webui

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultDownloadTTL = 15 * time.Minute

type downloadEntry struct {
	data    []byte
	expires time.Time
}

// downloadStore keeps processed files in memory for a short while so the
// results page can offer a download link. Expired entries are dropped lazily
// on access.
type downloadStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]downloadEntry
	now     func() time.Time
}

func newDownloadStore(ttl time.Duration) *downloadStore {
	if ttl <= 0 {
		ttl = defaultDownloadTTL
	}
	return &downloadStore{
		ttl:     ttl,
		entries: make(map[string]downloadEntry),
		now:     time.Now,
	}
}

// Put stores data under a fresh token and returns the token.
func (s *downloadStore) Put(data []byte) string {
	token := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()
	s.entries[token] = downloadEntry{
		data:    data,
		expires: s.now().Add(s.ttl),
	}
	return token
}

// Get returns the stored bytes for token, or false if the token is unknown
// or has expired.
func (s *downloadStore) Get(token string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[token]
	if !ok {
		return nil, false
	}
	if s.now().After(entry.expires) {
		delete(s.entries, token)
		return nil, false
	}
	return entry.data, true
}

func (s *downloadStore) purgeLocked() {
	now := s.now()
	for token, entry := range s.entries {
		if now.After(entry.expires) {
			delete(s.entries, token)
		}
	}
}
