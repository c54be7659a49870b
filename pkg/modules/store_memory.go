package modules

import (
	"fmt"
	"path"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps assets in memory. It backs tests, package overlays and
// editor integrations that hold unsaved buffers.
type MemoryStore struct {
	name   string                  // Human-readable name
	assets map[string]*MemoryAsset // Map of canonical id -> asset
	mutex  sync.RWMutex            // Protects concurrent access

	extensions []string
	indexFiles []string
}

// MemoryAsset represents an asset stored in memory
type MemoryAsset struct {
	ID       string    // Canonical id
	Content  []byte    // Asset content
	Created  time.Time // When the asset was added
	Modified time.Time // When the asset was last modified
	dirty    bool      // Changed since the last MarkClean
}

// NewMemoryStore creates a new in-memory asset store
func NewMemoryStore(name string) *MemoryStore {
	if name == "" {
		name = "Memory"
	}

	return &MemoryStore{
		name:       name,
		assets:     make(map[string]*MemoryAsset),
		extensions: DefaultExtensions,
		indexFiles: DefaultIndexFiles,
	}
}

// Name returns the store name
func (s *MemoryStore) Name() string {
	return s.name
}

// GetAsset returns the asset with the given id
func (s *MemoryStore) GetAsset(id string) (*Asset, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	asset, exists := s.assets[id]
	if !exists {
		return nil, fmt.Errorf("asset not found: %s", id)
	}
	content := make([]byte, len(asset.Content))
	copy(content, asset.Content)
	return &Asset{Content: content, Modified: asset.dirty}, nil
}

// Resolve maps a specifier to the id of a stored asset
func (s *MemoryStore) Resolve(specifier, baseDir string) (string, bool) {
	target, ok := targetPath(specifier, baseDir)
	if !ok {
		return "", false
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return probe(target, s.extensions, s.indexFiles, func(id string) bool {
		_, exists := s.assets[id]
		return exists
	})
}

// MarkClean clears the modified flag of an asset
func (s *MemoryStore) MarkClean(id string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if asset, exists := s.assets[id]; exists {
		asset.dirty = false
	}
}

// AddAsset adds or replaces an asset. A new asset starts out modified.
func (s *MemoryStore) AddAsset(id string, content string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	id = path.Clean(id)
	now := time.Now()
	s.assets[id] = &MemoryAsset{
		ID:       id,
		Content:  []byte(content),
		Created:  now,
		Modified: now,
		dirty:    true,
	}
}

// UpdateAsset updates an existing asset's content and marks it modified
func (s *MemoryStore) UpdateAsset(id string, content string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	asset, exists := s.assets[id]
	if !exists {
		return fmt.Errorf("asset not found: %s", id)
	}

	asset.Content = []byte(content)
	asset.Modified = time.Now()
	asset.dirty = true
	return nil
}

// RemoveAsset removes an asset from the store
func (s *MemoryStore) RemoveAsset(id string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.assets, id)
}

// List returns all asset ids in the store, sorted
func (s *MemoryStore) List() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := make([]string, 0, len(s.assets))
	for id := range s.assets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of stored assets
func (s *MemoryStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.assets)
}

// Clear removes all assets from the store
func (s *MemoryStore) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.assets = make(map[string]*MemoryAsset)
}

// SetExtensions sets the extensions tried during resolution
func (s *MemoryStore) SetExtensions(extensions []string) {
	s.extensions = extensions
}

// SetIndexFiles sets the index file names tried during resolution
func (s *MemoryStore) SetIndexFiles(indexFiles []string) {
	s.indexFiles = indexFiles
}
