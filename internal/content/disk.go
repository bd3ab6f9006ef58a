package content

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ppiankov/kbsync/internal/model"
)

// linkFunc publishes a fully written temp file under its final name.
// os.Link fails when the target exists, which gives write-once semantics.
var linkFunc = os.Link

// DiskStore stores one file per digest in a flat directory
type DiskStore struct {
	dir  string
	ext  string
	once sync.Once
	err  error
}

// NewDiskStore creates a disk store rooted at dir. ext is the fixed file extension.
func NewDiskStore(dir, ext string) *DiskStore {
	if ext == "" {
		ext = ".md"
	}
	return &DiskStore{dir: dir, ext: ext}
}

// Dir returns the blob directory
func (s *DiskStore) Dir() string {
	return s.dir
}

// Put writes text under its digest unless a blob with that digest already exists
func (s *DiskStore) Put(text string) (string, error) {
	normalized := Normalize(text)
	digest := Digest(normalized)
	path := s.path(digest)

	if s.Has(digest) {
		return digest, nil
	}

	if err := s.ensureDir(); err != nil {
		return "", &model.StorageWriteError{Op: "create blob dir", Key: s.dir, Err: err}
	}

	tmp, err := os.CreateTemp(s.dir, ".blob-*")
	if err != nil {
		return "", &model.StorageWriteError{Op: "write blob", Key: digest, Err: err}
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.WriteString(normalized); err != nil {
		_ = tmp.Close()
		return "", &model.StorageWriteError{Op: "write blob", Key: digest, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", &model.StorageWriteError{Op: "sync blob", Key: digest, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", &model.StorageWriteError{Op: "close blob", Key: digest, Err: err}
	}

	if err := linkFunc(tmpName, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return digest, nil
		}
		return "", &model.StorageWriteError{Op: "publish blob", Key: digest, Err: err}
	}

	return digest, nil
}

// Get reads the blob stored under digest
func (s *DiskStore) Get(digest string) (string, error) {
	if !ValidDigest(digest) {
		return "", &model.NotFoundError{Digest: digest}
	}

	data, err := os.ReadFile(s.path(digest))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &model.NotFoundError{Digest: digest}
		}
		return "", fmt.Errorf("read blob %s: %w", digest, err)
	}

	return string(data), nil
}

// Has reports whether a blob exists for digest
func (s *DiskStore) Has(digest string) bool {
	if !ValidDigest(digest) {
		return false
	}
	_, err := os.Stat(s.path(digest))
	return err == nil
}

func (s *DiskStore) ensureDir() error {
	s.once.Do(func() {
		s.err = os.MkdirAll(s.dir, 0755)
	})
	return s.err
}

// path generates the file path for a digest
func (s *DiskStore) path(digest string) string {
	return filepath.Join(s.dir, digest+s.ext)
}
