// Package bundle packages a job's processed outputs into one zip archive.
package bundle

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// Result describes a written archive.
type Result struct {
	Path    string
	Entries []string
	Skipped []string
}

// Create writes bundle_<jobid8>_<unixnano>.zip into dir containing every
// output that still exists. Missing outputs are skipped; an archive with no
// entries is still valid.
func Create(ctx context.Context, dir, jobID string, outputs []string) (Result, error) {
	if strings.TrimSpace(dir) == "" {
		return Result{}, fmt.Errorf("bundle: output directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("bundle: ensure dir: %w", err)
	}
	name := fmt.Sprintf("bundle_%s_%d.zip", shortID(jobID), time.Now().UnixNano())
	final := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, ".bundle-*.tmp")
	if err != nil {
		return Result{}, fmt.Errorf("bundle: create temp: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	result := Result{Path: final}
	zw := zip.NewWriter(tmp)
	used := make(map[string]int, len(outputs))
	for _, output := range outputs {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		added, err := addEntry(zw, output, used)
		if err != nil {
			return Result{}, fmt.Errorf("bundle: add %s: %w", filepath.Base(output), err)
		}
		if added == "" {
			result.Skipped = append(result.Skipped, output)
			continue
		}
		result.Entries = append(result.Entries, added)
	}
	if err := zw.Close(); err != nil {
		return Result{}, fmt.Errorf("bundle: finalize zip: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return Result{}, fmt.Errorf("bundle: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Result{}, fmt.Errorf("bundle: close: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		return Result{}, fmt.Errorf("bundle: rename: %w", err)
	}
	committed = true
	return result, nil
}

// addEntry copies path into the archive under its base name and returns the
// entry name, or "" when the file no longer exists.
func addEntry(zw *zip.Writer, path string, used map[string]int) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", nil
	}

	name := uniqueName(filepath.Base(path), used)
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return "", err
	}
	header.Name = name
	header.Method = zip.Deflate
	w, err := zw.CreateHeader(header)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(w, src); err != nil {
		return "", err
	}
	return name, nil
}

func uniqueName(base string, used map[string]int) string {
	n := used[base]
	used[base] = n + 1
	if n == 0 {
		return base
	}
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(base, ext), n, ext)
}

func shortID(id string) string {
	id = strings.ReplaceAll(strings.TrimSpace(id), "-", "")
	if id == "" {
		return "job"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Entries lists the member names of an existing archive.
func Entries(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names, nil
}
