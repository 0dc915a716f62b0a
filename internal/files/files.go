// Package files stores uploaded customer logos and report images and
// resolves their logical references to readable local paths.
package files

import (
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

var (
	// ErrNotFound is returned when a reference does not resolve to a file.
	ErrNotFound = eris.New("file not found")

	// ErrUnsupportedType is returned for uploads outside the image whitelist.
	ErrUnsupportedType = eris.New("unsupported file type")

	// ErrInvalidKey is returned for keys that escape the storage root.
	ErrInvalidKey = eris.New("invalid file key")
)

// Storage persists files under slash-separated keys such as
// "logos/customer_<id>_<uuid>.png".
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader) error
	// Resolve returns a local path that can be opened for reading.
	Resolve(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

var allowedExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
}

// NewKey builds a collision-free key for an upload below prefix. The
// original filename only contributes its extension.
func NewKey(prefix, owner, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", eris.Wrapf(ErrUnsupportedType, "%q", filename)
	}
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	return path.Join(prefix, owner+"_"+id+ext), nil
}

// ContentType returns the MIME type for a key's extension, or "" if unknown.
func ContentType(key string) string {
	return allowedExtensions[strings.ToLower(path.Ext(key))]
}

// cleanKey rejects absolute keys and keys containing "..".
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return "", eris.Wrapf(ErrInvalidKey, "%q", key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", eris.Wrapf(ErrInvalidKey, "%q", key)
	}
	return cleaned, nil
}
