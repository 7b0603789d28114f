package document

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

var (
	// ErrNotFound means no document exists at the path.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidJSON means the stored bytes are not exactly one JSON value.
	ErrInvalidJSON = errors.New("document is not valid JSON")
	// ErrPathEscape means the path resolves outside the content root.
	ErrPathEscape = errors.New("document path escapes content root")
)

// Store retrieves a document by its path relative to the content root.
type Store interface {
	GetDocument(ctx context.Context, path string) (json.RawMessage, error)
}

// Pinger is implemented by stores that can report whether their backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Parse validates data as a single UTF-8 JSON value and returns it compacted.
func Parse(data []byte) (json.RawMessage, error) {
	// gjson does not check string contents for UTF-8
	if !utf8.Valid(data) || !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	return json.RawMessage(pretty.Ugly(data)), nil
}

// localPath validates a request path as slash-separated and local to the
// content root, returning it without the leading slash. A trailing slash
// names a directory, never a document.
func localPath(p string) (string, error) {
	p = strings.TrimPrefix(p, "/")
	if p == "" || strings.HasSuffix(p, "/") {
		return "", ErrNotFound
	}
	if strings.ContainsAny(p, "\x00\\") || !filepath.IsLocal(filepath.FromSlash(p)) {
		return "", ErrPathEscape
	}
	return p, nil
}

// cleanPath is localPath with ".." resolved lexically, for backends
// without directories.
func cleanPath(p string) (string, error) {
	name, err := localPath(p)
	if err != nil {
		return "", err
	}
	return path.Clean(name), nil
}

// Kind names the failure class of err for logs and metric labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidJSON):
		return "invalid_json"
	case errors.Is(err, ErrPathEscape):
		return "path_escape"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "read_error"
	}
}
