package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pdfPayload = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("")

	obj, err := m.Upload(ctx, pdfPayload, "application/pdf", "applications/../x")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.StorageID, "applicationsx/"))
	assert.True(t, strings.HasSuffix(obj.StorageID, ".pdf"))
	assert.Equal(t, "mem://warish/"+obj.StorageID, obj.URL)

	stored, ok := m.Get(obj.StorageID)
	require.True(t, ok)
	assert.Equal(t, pdfPayload, stored)

	require.NoError(t, m.Delete(ctx, obj.StorageID))
	require.NoError(t, m.Delete(ctx, obj.StorageID), "deleting twice is fine")
	assert.Zero(t, m.Len())

	_, err = m.Upload(ctx, nil, "application/pdf", "")
	assert.Error(t, err)
}

func TestMemoryStorageHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory("").Upload(ctx, pdfPayload, "application/pdf", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFilesystemStorage(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs, err := NewFilesystem(root, "https://files.example.test/")
	require.NoError(t, err)

	obj, err := fs.Upload(ctx, pdfPayload, "application/pdf", "certificates")
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.test/"+obj.StorageID, obj.URL)

	onDisk, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(obj.StorageID)))
	require.NoError(t, err)
	assert.Equal(t, pdfPayload, onDisk)

	require.NoError(t, fs.Delete(ctx, obj.StorageID))
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(obj.StorageID)))
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, fs.Delete(ctx, obj.StorageID))

	assert.Error(t, fs.Delete(ctx, "../outside.pdf"))
}
