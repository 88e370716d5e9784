package testsupport

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"clipforge/internal/config"
	"clipforge/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// AddUploadedFile writes a small source file into the upload directory and
// records it in the store with the given upload time (now when zero).
func AddUploadedFile(t testing.TB, st *store.Store, cfg *config.Config, name string, uploadedAt time.Time) *store.File {
	t.Helper()

	id := uuid.NewString()
	path := filepath.Join(cfg.Paths.UploadDir, id+"_"+name)
	WriteFile(t, path, 1024)
	f := &store.File{
		ID:           id,
		OriginalName: name,
		StoredPath:   path,
		SizeBytes:    1024,
		ContentType:  "video/mp4",
		UploadTime:   uploadedAt,
	}
	if err := st.AddFile(context.Background(), f); err != nil {
		t.Fatalf("store.AddFile: %v", err)
	}
	return f
}
