package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalService keeps images on disk; the HTTP layer serves Dir under URLPrefix.
type LocalService struct {
	root      string
	urlPrefix string
}

func NewLocalService(root, urlPrefix string) (*LocalService, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("upload dir is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	prefix := "/" + strings.Trim(urlPrefix, "/")
	if prefix == "/" {
		prefix = "/uploads"
	}
	return &LocalService{
		root:      filepath.Clean(root),
		urlPrefix: prefix,
	}, nil
}

// Dir is the directory images are written to.
func (s *LocalService) Dir() string {
	return s.root
}

// URLPrefix is the path under which Dir is served.
func (s *LocalService) URLPrefix() string {
	return s.urlPrefix
}

func (s *LocalService) Save(ctx context.Context, key string, body io.Reader, contentType string) error {
	if !ValidKey(key) {
		return ErrInvalidKey
	}

	dest := filepath.Join(s.root, key)
	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close image: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("store image: %w", err)
	}
	return nil
}

func (s *LocalService) Delete(ctx context.Context, key string) error {
	if !ValidKey(key) {
		return ErrInvalidKey
	}
	if err := os.Remove(filepath.Join(s.root, key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}

func (s *LocalService) URL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + s.urlPrefix + "/" + key
}

func (s *LocalService) KeyFromURL(imageURL string) (string, bool) {
	imageURL = NormalizeURL(strings.TrimSpace(imageURL))
	if imageURL == "" {
		return "", false
	}
	p := imageURL
	if parsed, err := url.Parse(imageURL); err == nil {
		p = parsed.Path
	}

	idx := strings.Index(p, s.urlPrefix+"/")
	if idx < 0 {
		return "", false
	}
	key := p[idx+len(s.urlPrefix)+1:]
	if !ValidKey(key) {
		return "", false
	}
	return key, true
}

var _ Service = (*LocalService)(nil)
