// Package storage keeps uploaded document bytes on local disk.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxExtLen = 16

// ErrTooLarge is returned when an upload exceeds the store's size limit.
var ErrTooLarge = errors.New("file exceeds maximum upload size")

// ErrNotExist is returned when a stored object is missing.
var ErrNotExist = errors.New("stored file not found")

// SaveResult describes a blob written by Save.
type SaveResult struct {
	// Name is the unique storage name, "<uuid><ext>".
	Name string
	// Path is Name under its date partition, "YYYY/MM/<uuid><ext>", slash separated.
	Path     string
	Size     int64
	Checksum string
}

// FileStore writes blobs beneath a root directory using date-partitioned paths.
type FileStore struct {
	root     string
	maxBytes int64
	now      func() time.Time
}

// NewFileStore creates root if needed. maxBytes <= 0 disables the size limit.
func NewFileStore(root string, maxBytes int64) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", root, err)
	}
	return &FileStore{root: root, maxBytes: maxBytes, now: time.Now}, nil
}

// Save streams r to a temp file while hashing it, fsyncs, then renames it into place.
// The temp file is removed on any failure.
func (fs *FileStore) Save(r io.Reader, originalName string) (*SaveResult, error) {
	name := uuid.NewString() + storageExt(originalName)
	now := fs.now().UTC()
	rel := path.Join(now.Format("2006"), now.Format("01"), name)
	full := filepath.Join(fs.root, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return nil, fmt.Errorf("create partition dir: %w", err)
	}

	tmp := full + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	src := r
	if fs.maxBytes > 0 {
		src = io.LimitReader(r, fs.maxBytes+1)
	}
	hasher := sha256.New()
	size, err := io.Copy(f, io.TeeReader(src, hasher))
	if err == nil && fs.maxBytes > 0 && size > fs.maxBytes {
		err = ErrTooLarge
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		if errors.Is(err, ErrTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("write blob: %w", err)
	}

	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("rename blob: %w", err)
	}

	return &SaveResult{
		Name:     name,
		Path:     rel,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// storageExt keeps short alphanumeric extensions on blob names and drops anything else.
func storageExt(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if len(ext) < 2 || len(ext) > maxExtLen {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}

// Open returns a reader for a blob previously returned by Save. The caller closes it.
func (fs *FileStore) Open(rel string) (io.ReadSeekCloser, error) {
	clean := path.Clean("/" + rel)
	f, err := os.Open(filepath.Join(fs.root, filepath.FromSlash(clean)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("open blob %s: %w", rel, err)
	}
	return f, nil
}

// Delete removes a blob. A missing blob is not an error.
func (fs *FileStore) Delete(rel string) error {
	clean := path.Clean("/" + rel)
	err := os.Remove(filepath.Join(fs.root, filepath.FromSlash(clean)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob %s: %w", rel, err)
	}
	return nil
}
