package scanner

import (
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"healthcert/pkg/platform/sentinel"
)

// ImageStore holds raw uploaded image bytes keyed by reference. Images are
// process-local: scan jobs are ephemeral, so nothing here needs to survive a
// restart.
type ImageStore struct {
	mu     sync.RWMutex
	images map[string][]byte
}

func NewImageStore() *ImageStore {
	return &ImageStore{images: make(map[string][]byte)}
}

// Put stores image bytes and returns a fresh reference.
func (s *ImageStore) Put(data []byte) string {
	ref := uuid.NewString()
	s.mu.Lock()
	s.images[ref] = data
	s.mu.Unlock()
	return ref
}

func (s *ImageStore) Get(ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if data, ok := s.images[ref]; ok {
		return data, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *ImageStore) Delete(ref string) {
	s.mu.Lock()
	delete(s.images, ref)
	s.mu.Unlock()
}

// looksLikeImage sniffs the payload the way the HTTP layer would. Scanning
// garbage bytes is rejected up front rather than after ten progress ticks.
func looksLikeImage(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	contentType := http.DetectContentType(data)
	return strings.HasPrefix(contentType, "image/")
}
