package fileutil

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteLimited(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.bin")

	got, err := WriteLimited(dst, strings.NewReader("hello world"), 64)
	if err != nil {
		t.Fatalf("WriteLimited: %v", err)
	}
	if got.Bytes != 11 || len(got.SHA256) != 64 {
		t.Fatalf("unexpected result: %+v", got)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello world" {
		t.Fatalf("content mismatch: got %q", data)
	}

	if _, err := WriteLimited(dst, strings.NewReader("again"), 0); err == nil {
		t.Fatal("expected existing destination to be refused")
	}
}

func TestWriteLimitedRejectsOversize(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "big.bin")

	_, err := WriteLimited(dst, bytes.NewReader(make([]byte, 100)), 10)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatal("expected partial file removed")
	}
}

func TestCopyVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	content := make([]byte, 64*1024)
	for i := range content {
		content[i] = byte(i % 251)
	}
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := CopyVerified(src, dst)
	if err != nil {
		t.Fatalf("CopyVerified: %v", err)
	}
	if got.Bytes != int64(len(content)) {
		t.Fatalf("expected %d bytes, got %d", len(content), got.Bytes)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, content) {
		t.Fatal("content mismatch")
	}
}

func TestCopyVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	if _, err := CopyVerified(filepath.Join(dir, "missing"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"clip.mp4":           "clip.mp4",
		"../../etc/passwd":   "passwd",
		`C:\videos\a b.mov`:  "a_b.mov",
		"":                   "upload",
		"..":                 "upload",
		"new\nline.mkv":      "newline.mkv",
		"holiday video.webm": "holiday_video.webm",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
