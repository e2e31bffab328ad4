package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidKey(t *testing.T) {
	valid := []string{"a.jpg", "2f1c6a4e-photo.png"}
	invalid := []string{"", ".", "..", "../etc/passwd", "dir/file.jpg", `dir\file.jpg`}
	for _, k := range valid {
		if !ValidKey(k) {
			t.Fatalf("expected %q to be valid", k)
		}
	}
	for _, k := range invalid {
		if ValidKey(k) {
			t.Fatalf("expected %q to be invalid", k)
		}
	}
}

func TestLocalServiceSaveAndDelete(t *testing.T) {
	root := filepath.Join(t.TempDir(), "uploads")
	svc, err := NewLocalService(root, "uploads")
	if err != nil {
		t.Fatalf("new local service: %v", err)
	}
	ctx := context.Background()

	if err := svc.Save(ctx, "photo.jpg", strings.NewReader("jpeg-bytes"), "image/jpeg"); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "photo.jpg"))
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Fatalf("saved content = %q", data)
	}

	if err := svc.Save(ctx, "../escape.jpg", strings.NewReader("x"), "image/jpeg"); err != ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}

	if err := svc.Delete(ctx, "photo.jpg"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "photo.jpg")); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err = %v", err)
	}
	if err := svc.Delete(ctx, "photo.jpg"); err != nil {
		t.Fatalf("deleting a missing file should be a no-op: %v", err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

func TestLocalServiceURLs(t *testing.T) {
	svc, err := NewLocalService(t.TempDir(), "/uploads/")
	if err != nil {
		t.Fatalf("new local service: %v", err)
	}

	got := svc.URL("http://10.0.0.2:5000/", "abc.jpg")
	if got != "http://10.0.0.2:5000/uploads/abc.jpg" {
		t.Fatalf("URL = %q", got)
	}

	tests := []struct {
		in   string
		key  string
		owns bool
	}{
		{"http://10.0.0.2:5000/uploads/abc.jpg", "abc.jpg", true},
		{`http://host\uploads\abc.jpg`, "abc.jpg", true},
		{"/uploads/abc.jpg", "abc.jpg", true},
		{"https://cdn.example.com/other/abc.jpg", "", false},
		{"http://host/uploads/../secret", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		key, ok := svc.KeyFromURL(tt.in)
		if ok != tt.owns || key != tt.key {
			t.Fatalf("KeyFromURL(%q) = (%q, %v), want (%q, %v)", tt.in, key, ok, tt.key, tt.owns)
		}
	}
}

func TestS3ServiceURLs(t *testing.T) {
	svc, err := NewS3Service(nil, S3Options{Bucket: "scout", KeyPrefix: "/images/", Region: "eu-west-1"})
	if err != nil {
		t.Fatalf("new s3 service: %v", err)
	}

	url := svc.URL("http://ignored", "abc.jpg")
	if url != "https://scout.s3.eu-west-1.amazonaws.com/images/abc.jpg" {
		t.Fatalf("URL = %q", url)
	}
	key, ok := svc.KeyFromURL(url)
	if !ok || key != "abc.jpg" {
		t.Fatalf("KeyFromURL round trip = (%q, %v)", key, ok)
	}
	if _, ok := svc.KeyFromURL("https://scout.s3.eu-west-1.amazonaws.com/other/abc.jpg"); ok {
		t.Fatalf("expected foreign prefix to be rejected")
	}

	cdn, err := NewS3Service(nil, S3Options{Bucket: "scout", PublicBaseURL: "https://cdn.example.com/"})
	if err != nil {
		t.Fatalf("new s3 service: %v", err)
	}
	if got := cdn.URL("", "abc.jpg"); got != "https://cdn.example.com/abc.jpg" {
		t.Fatalf("cdn URL = %q", got)
	}

	if _, err := NewS3Service(nil, S3Options{}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}
