package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrInvalidKey is returned for object keys that are empty or try to escape the store.
var ErrInvalidKey = errors.New("invalid object key")

// Service stores uploaded item images and maps them to public URLs.
type Service interface {
	Save(ctx context.Context, key string, body io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	// URL returns the public URL for key. baseURL is the scheme://host the
	// request arrived on; drivers with their own public endpoint ignore it.
	URL(baseURL, key string) string
	// KeyFromURL reverses URL for images this store owns.
	KeyFromURL(imageURL string) (string, bool)
}

// ValidKey reports whether key is a single safe path segment.
func ValidKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	if strings.ContainsAny(key, `/\`) {
		return false
	}
	return path.Clean(key) == key
}

// NormalizeURL converts backslash separators (as stored by some upload
// middlewares on Windows) into forward slashes.
func NormalizeURL(imageURL string) string {
	return strings.ReplaceAll(imageURL, `\`, "/")
}
