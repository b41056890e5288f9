// Package storage provides object storage adapters for document payloads.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"warish/internal/warish/models"
)

var errEmptyPayload = errors.New("empty payload")

// objectKey builds folder/uuid.ext. The folder hint is reduced to a single
// safe path segment.
func objectKey(mimeType, folderHint string) string {
	folder := sanitizeSegment(folderHint)
	ext := ""
	if m := mimetype.Lookup(mimeType); m != nil {
		ext = m.Extension()
	}
	name := uuid.NewString() + ext
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

func sanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Memory keeps objects in process memory.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string
}

func NewMemory(baseURL string) *Memory {
	if baseURL == "" {
		baseURL = "mem://warish"
	}
	return &Memory{objects: make(map[string][]byte), baseURL: strings.TrimRight(baseURL, "/")}
}

func (m *Memory) Upload(ctx context.Context, data []byte, mimeType, folderHint string) (models.StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return models.StoredObject{}, err
	}
	if len(data) == 0 {
		return models.StoredObject{}, errEmptyPayload
	}
	key := objectKey(mimeType, folderHint)
	cp := make([]byte, len(data))
	copy(cp, data)

	m.mu.Lock()
	m.objects[key] = cp
	m.mu.Unlock()
	return models.StoredObject{URL: m.baseURL + "/" + key, StorageID: key}, nil
}

func (m *Memory) Delete(ctx context.Context, storageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.objects, storageID)
	m.mu.Unlock()
	return nil
}

// Get returns a stored payload.
func (m *Memory) Get(storageID string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[storageID]
	return data, ok
}

// Len reports how many objects are stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Filesystem writes objects below a root directory and serves them from baseURL.
type Filesystem struct {
	root    string
	baseURL string
}

func NewFilesystem(root, baseURL string) (*Filesystem, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	if baseURL == "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve storage root: %w", err)
		}
		baseURL = "file://" + filepath.ToSlash(abs)
	}
	return &Filesystem{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (f *Filesystem) Upload(ctx context.Context, data []byte, mimeType, folderHint string) (models.StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return models.StoredObject{}, err
	}
	if len(data) == 0 {
		return models.StoredObject{}, errEmptyPayload
	}
	key := objectKey(mimeType, folderHint)
	full := filepath.Join(f.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return models.StoredObject{}, fmt.Errorf("create object folder: %w", err)
	}

	tmp := full + ".part"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return models.StoredObject{}, fmt.Errorf("write object: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = os.Remove(tmp)
		return models.StoredObject{}, err
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return models.StoredObject{}, fmt.Errorf("commit object: %w", err)
	}
	return models.StoredObject{URL: f.baseURL + "/" + path.Clean(key), StorageID: key}, nil
}

func (f *Filesystem) Delete(ctx context.Context, storageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := path.Clean("/" + storageID)[1:]
	if clean == "" || clean != storageID {
		return fmt.Errorf("invalid storage id %q", storageID)
	}
	err := os.Remove(filepath.Join(f.root, filepath.FromSlash(clean)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
