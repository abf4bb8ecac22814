// Package blob stores uploaded chat images on local disk under random
// filenames and hands back the public URL they are served from.
package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

type Store struct {
	dir        string
	publicBase string
	maxBytes   int64
}

// New creates the upload directory if needed. publicBase is the URL prefix
// uploads are served under, e.g. "http://host/files".
func New(dir, publicBase string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{
		dir:        dir,
		publicBase: strings.TrimSuffix(publicBase, "/"),
		maxBytes:   maxBytes,
	}, nil
}

var ErrNotImage = fmt.Errorf("upload is not an image")

var ErrTooLarge = fmt.Errorf("upload exceeds size limit")

// Save sniffs the content type, writes the payload under a random name and
// returns its public URL. Only image payloads are accepted.
func (s *Store) Save(r io.Reader) (string, error) {
	limited := io.LimitReader(r, s.maxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrTooLarge
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", ErrNotImage
	}

	name := uuid.NewString() + mt.Extension()
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return s.publicBase + "/" + name, nil
}

// Open returns the stored payload for serving.
func (s *Store) Open(name string) (io.ReadCloser, error) {
	clean := filepath.Base(name)
	f, err := os.Open(filepath.Join(s.dir, clean))
	if err != nil {
		return nil, fmt.Errorf("open blob %q: %w", clean, err)
	}
	return f, nil
}

// Dir exposes the backing directory for the static file handler.
func (s *Store) Dir() string {
	return s.dir
}
