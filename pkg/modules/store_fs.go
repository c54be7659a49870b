package modules

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileSystemStore serves assets from an fs.FS. Canonical ids are the
// slash-separated paths below the root, prefixed with "/".
type FileSystemStore struct {
	name string
	fs   fs.FS

	extensions []string
	indexFiles []string

	mutex sync.Mutex
	clean map[string]time.Time // Modification time at the last MarkClean
}

// NewFileSystemStore creates a store over any fs.FS
func NewFileSystemStore(filesystem fs.FS) *FileSystemStore {
	return &FileSystemStore{
		name:       "FileSystem",
		fs:         filesystem,
		extensions: DefaultExtensions,
		indexFiles: DefaultIndexFiles,
		clean:      make(map[string]time.Time),
	}
}

// NewOSFileSystemStore creates a store rooted at a directory on disk
func NewOSFileSystemStore(baseDir string) *FileSystemStore {
	absBaseDir, err := filepath.Abs(baseDir)
	if err != nil {
		absBaseDir = baseDir
	}

	s := NewFileSystemStore(os.DirFS(absBaseDir))
	s.name = "OSFileSystem"
	return s
}

// Name returns the store name
func (s *FileSystemStore) Name() string {
	return s.name
}

// fsPath converts a canonical id into an fs.FS path.
func fsPath(id string) (string, bool) {
	if !strings.HasPrefix(id, "/") {
		return "", false
	}
	p := strings.TrimPrefix(id, "/")
	if p == "" {
		p = "."
	}
	return p, fs.ValidPath(p)
}

// GetAsset reads the file behind id. Modified is set when the file's
// modification time differs from the one recorded by MarkClean.
func (s *FileSystemStore) GetAsset(id string) (*Asset, error) {
	p, ok := fsPath(id)
	if !ok {
		return nil, fmt.Errorf("invalid asset id: %s", id)
	}
	content, err := fs.ReadFile(s.fs, p)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", id, err)
	}

	modified := true
	if info, err := fs.Stat(s.fs, p); err == nil {
		s.mutex.Lock()
		last, seen := s.clean[id]
		s.mutex.Unlock()
		modified = !seen || !last.Equal(info.ModTime())
	}
	return &Asset{Content: content, Modified: modified}, nil
}

// Resolve maps a specifier to the id of an existing file
func (s *FileSystemStore) Resolve(specifier, baseDir string) (string, bool) {
	target, ok := targetPath(specifier, baseDir)
	if !ok {
		return "", false
	}
	return probe(target, s.extensions, s.indexFiles, s.isFile)
}

// MarkClean records the file's current modification time
func (s *FileSystemStore) MarkClean(id string) {
	p, ok := fsPath(id)
	if !ok {
		return
	}
	info, err := fs.Stat(s.fs, p)
	if err != nil {
		return
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.clean[id] = info.ModTime()
}

// isFile checks if a path exists and is a file (not a directory)
func (s *FileSystemStore) isFile(id string) bool {
	p, ok := fsPath(id)
	if !ok {
		return false
	}
	info, err := fs.Stat(s.fs, p)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// SetExtensions sets the file extensions to try during resolution
func (s *FileSystemStore) SetExtensions(extensions []string) {
	s.extensions = extensions
}

// SetIndexFiles sets the index file names to try during resolution
func (s *FileSystemStore) SetIndexFiles(indexFiles []string) {
	s.indexFiles = indexFiles
}
