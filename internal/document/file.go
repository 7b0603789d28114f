package document

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/keithlinneman/docserve/internal/xerrors"
)

// DefaultDir is the content root used when none is configured.
const DefaultDir = "content"

// FileStore serves documents from files under a directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir, relative to the working
// directory unless absolute. The directory must exist.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = DefaultDir
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, xerrors.Wrapf(err, "content dir %s", dir)
	}
	if !info.IsDir() {
		return nil, xerrors.Newf("content dir %s is not a directory", dir)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the content root.
func (s *FileStore) Dir() string { return s.dir }

// GetDocument reads dir/p fully and parses it as one JSON value. ".."
// segments are walked on disk, so every directory they pass through must exist.
func (s *FileStore) GetDocument(ctx context.Context, p string) (json.RawMessage, error) {
	name, err := localPath(p)
	if err != nil {
		return nil, xerrors.Wrapf(err, "resolve %q", p)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := s.readFile(filepath.FromSlash(name))
	if err != nil {
		return nil, err
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, xerrors.Wrapf(err, "parse %s", name)
	}
	return doc, nil
}

// readFile opens name through an os.Root so symlinks cannot lead outside dir
func (s *FileStore) readFile(name string) ([]byte, error) {
	root, err := os.OpenRoot(s.dir)
	if err != nil {
		return nil, xerrors.Wrapf(err, "open content dir %s", s.dir)
	}
	defer root.Close()

	f, err := root.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, xerrors.Wrapf(ErrNotFound, "open %s", name)
		}
		return nil, xerrors.Wrapf(err, "open %s", name)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, xerrors.Wrapf(err, "stat %s", name)
	}
	if info.IsDir() {
		return nil, xerrors.Wrapf(ErrNotFound, "%s is a directory", name)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, xerrors.Wrapf(err, "read %s", name)
	}
	return data, nil
}

// Ping reports whether the content root is still a readable directory.
func (s *FileStore) Ping(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return xerrors.Wrap(err, "content dir unavailable")
	}
	if !info.IsDir() {
		return xerrors.Newf("content dir %s is not a directory", s.dir)
	}
	return nil
}
