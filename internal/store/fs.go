package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/desertthunder/pmx/internal/shared"
)

const docExt = ".json"

// FileStore keeps one JSON file per document under root/<collection>/<id>.json.
type FileStore struct {
	root string
}

// NewFileStore returns a store rooted at root. The directory is created on first write.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Root is the directory holding all collections.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) path(collection, id string) string {
	return filepath.Join(s.root, collection, id+docExt)
}

func (s *FileStore) Get(collection, id string) ([]byte, error) {
	if err := validKey(collection, id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(collection, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", shared.ErrNotFound, collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", collection, id, err)
	}
	return data, nil
}

func (s *FileStore) Put(collection, id string, doc []byte) error {
	if err := validKey(collection, id); err != nil {
		return err
	}
	return shared.WriteFileAtomic(s.path(collection, id), doc, 0644)
}

func (s *FileStore) List(collection string) ([]string, error) {
	if err := validKey(collection); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.root, collection))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, docExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, docExt))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *FileStore) Collections() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	collections := []string{}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		ids, err := s.List(entry.Name())
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			collections = append(collections, entry.Name())
		}
	}
	sort.Strings(collections)
	return collections, nil
}
