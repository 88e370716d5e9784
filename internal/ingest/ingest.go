// Package ingest stores uploaded and imported video files and records them
// as Uploaded rows in the store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"clipforge/internal/config"
	"clipforge/internal/fileutil"
	"clipforge/internal/logging"
	"clipforge/internal/services"
	"clipforge/internal/store"
)

// Service writes incoming files into the upload directory.
type Service struct {
	store     *store.Store
	uploadDir string
	maxBytes  int64
	allowed   []string
	logger    *slog.Logger
}

// NewService constructs an ingest service for cfg.
func NewService(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Service, error) {
	if cfg == nil || st == nil {
		return nil, services.Wrap(services.ErrConfiguration, "ingest", "init", "config and store required", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		store:     st,
		uploadDir: cfg.Paths.UploadDir,
		maxBytes:  cfg.MaxUploadBytes(),
		allowed:   append([]string(nil), cfg.Uploads.AllowedTypes...),
		logger:    logging.NewComponentLogger(logger, "ingest"),
	}, nil
}

// Save streams r into the upload directory under a fresh id, verifies the
// content type, and records the file.
func (s *Service) Save(ctx context.Context, originalName string, r io.Reader) (*store.File, error) {
	if r == nil {
		return nil, services.Wrap(services.ErrValidation, "ingest", "save", "empty upload", nil)
	}
	id := uuid.NewString()
	name := fileutil.SanitizeName(originalName)
	dst := filepath.Join(s.uploadDir, id+"_"+name)

	written, err := fileutil.WriteLimited(dst, r, s.maxBytes)
	if err != nil {
		if errors.Is(err, fileutil.ErrTooLarge) {
			return nil, services.Wrap(services.ErrValidation, "ingest", "save", fmt.Sprintf("file %s is too large", originalName), err)
		}
		return nil, services.Wrap(services.ErrTransient, "ingest", "save", "write upload", err)
	}
	return s.record(ctx, id, originalName, written)
}

// Import copies a local file into the upload directory with checksum
// verification, then records it like an upload.
func (s *Service) Import(ctx context.Context, localPath string) (*store.File, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "ingest", "import", "source file", err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "ingest", "import", localPath+" is a directory", nil)
	}
	if s.maxBytes > 0 && info.Size() > s.maxBytes {
		return nil, services.Wrap(services.ErrValidation, "ingest", "import", fmt.Sprintf("file %s is too large", filepath.Base(localPath)), fileutil.ErrTooLarge)
	}
	id := uuid.NewString()
	original := filepath.Base(localPath)
	dst := filepath.Join(s.uploadDir, id+"_"+fileutil.SanitizeName(original))
	written, err := fileutil.CopyVerified(localPath, dst)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "ingest", "import", "copy file", err)
	}
	return s.record(ctx, id, original, written)
}

func (s *Service) record(ctx context.Context, id, originalName string, written fileutil.Written) (*store.File, error) {
	mtype, err := mimetype.DetectFile(written.Path)
	if err != nil {
		_ = os.Remove(written.Path)
		return nil, services.Wrap(services.ErrTransient, "ingest", "detect", "sniff content type", err)
	}
	if !s.Allowed(mtype.String()) {
		_ = os.Remove(written.Path)
		return nil, services.Wrap(services.ErrValidation, "ingest", "detect",
			fmt.Sprintf("file %s is not a video (%s)", originalName, mtype.String()), nil)
	}

	file := &store.File{
		ID:           id,
		OriginalName: originalName,
		StoredPath:   written.Path,
		SizeBytes:    written.Bytes,
		ContentType:  mtype.String(),
		UploadTime:   time.Now().UTC(),
	}
	if err := s.store.AddFile(ctx, file); err != nil {
		_ = os.Remove(written.Path)
		return nil, services.Wrap(services.ErrTransient, "ingest", "record", "persist file", err)
	}
	s.logger.Info("file ingested",
		logging.String(logging.FieldFileID, id),
		logging.String("name", originalName),
		logging.Int64("bytes", written.Bytes),
		logging.String("content_type", file.ContentType),
		logging.String("sha256", written.SHA256),
	)
	return file, nil
}

// Allowed reports whether a detected content type matches a configured
// prefix such as "video/".
func (s *Service) Allowed(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	for _, prefix := range s.allowed {
		if prefix != "" && strings.HasPrefix(contentType, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}
