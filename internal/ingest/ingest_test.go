package ingest_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipforge/internal/ingest"
	"clipforge/internal/services"
	"clipforge/internal/store"
	"clipforge/internal/testsupport"
)

// mp4Header is an ISO base media ftyp box, enough for content sniffing.
var mp4Header = append([]byte{0x00, 0x00, 0x00, 0x18}, []byte("ftypisom\x00\x00\x02\x00isomiso2avc1mp41")...)

func sampleVideo(size int) []byte {
	data := make([]byte, size)
	copy(data, mp4Header)
	return data
}

func newService(t *testing.T) (*ingest.Service, *store.Store, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Uploads.MaxUploadMB = 1
	st := testsupport.MustOpenStore(t, cfg)
	svc, err := ingest.NewService(cfg, st, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, st, cfg.Paths.UploadDir
}

func TestSaveStoresVideo(t *testing.T) {
	svc, st, uploadDir := newService(t)
	ctx := context.Background()

	file, err := svc.Save(ctx, "my clip.mp4", bytes.NewReader(sampleVideo(4096)))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if file.Status != store.FileUploaded || file.SizeBytes != 4096 {
		t.Fatalf("unexpected file: %+v", file)
	}
	if file.ContentType != "video/mp4" {
		t.Fatalf("expected video/mp4, got %q", file.ContentType)
	}
	if filepath.Dir(file.StoredPath) != uploadDir || !strings.HasPrefix(filepath.Base(file.StoredPath), file.ID+"_") {
		t.Fatalf("unexpected stored path %q", file.StoredPath)
	}
	if !strings.HasSuffix(file.StoredPath, "my_clip.mp4") {
		t.Fatalf("expected sanitized name in %q", file.StoredPath)
	}

	got, err := st.GetFile(ctx, file.ID)
	if err != nil || got == nil {
		t.Fatalf("GetFile: %v", err)
	}
	if got.OriginalName != "my clip.mp4" {
		t.Fatalf("expected original name preserved, got %q", got.OriginalName)
	}
}

func TestSaveRejectsNonVideo(t *testing.T) {
	svc, st, uploadDir := newService(t)

	_, err := svc.Save(context.Background(), "notes.txt", strings.NewReader("just some text\n"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	entries, _ := os.ReadDir(uploadDir)
	if len(entries) != 0 {
		t.Fatalf("expected rejected upload removed, found %d entries", len(entries))
	}
	files, _ := st.ListFiles(context.Background())
	if len(files) != 0 {
		t.Fatalf("expected no rows, got %d", len(files))
	}
}

func TestSaveRejectsOversize(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Save(context.Background(), "big.mp4", bytes.NewReader(sampleVideo(2*1024*1024)))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestImportCopiesLocalFile(t *testing.T) {
	svc, _, _ := newService(t)
	src := filepath.Join(t.TempDir(), "local.mp4")
	if err := os.WriteFile(src, sampleVideo(2048), 0o644); err != nil {
		t.Fatal(err)
	}

	file, err := svc.Import(context.Background(), src)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if file.OriginalName != "local.mp4" || file.SizeBytes != 2048 {
		t.Fatalf("unexpected file: %+v", file)
	}
	if !testsupport.Exists(src) || !testsupport.Exists(file.StoredPath) {
		t.Fatal("expected source kept and copy stored")
	}

	if _, err := svc.Import(context.Background(), filepath.Join(t.TempDir(), "missing.mp4")); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAllowed(t *testing.T) {
	svc, _, _ := newService(t)
	cases := map[string]bool{
		"video/mp4":                 true,
		"VIDEO/webm":                true,
		"video/x-matroska; v=1":     true,
		"audio/mpeg":                false,
		"text/plain; charset=utf-8": false,
	}
	for ct, want := range cases {
		if got := svc.Allowed(ct); got != want {
			t.Errorf("Allowed(%q) = %v, want %v", ct, got, want)
		}
	}
}
