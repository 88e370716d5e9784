package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// ErrTooLarge reports a stream that exceeded its byte limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// Written describes a file produced by WriteLimited or CopyVerified.
type Written struct {
	Path   string
	Bytes  int64
	SHA256 string
}

// WriteLimited streams r into dst. When limit is positive and the stream is
// longer, dst is removed and ErrTooLarge returned.
func WriteLimited(dst string, r io.Reader, limit int64) (Written, error) {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return Written{}, err
	}
	ok := false
	defer func() {
		if !ok {
			_ = out.Close()
			_ = os.Remove(dst)
		}
	}()

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, hasher), src)
	if err != nil {
		return Written{}, err
	}
	if limit > 0 && written > limit {
		return Written{}, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	if err := out.Close(); err != nil {
		return Written{}, err
	}
	ok = true
	return Written{Path: dst, Bytes: written, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// CopyVerified streams src to dst with SHA256 + size integrity verification.
// Removes dst on mismatch.
func CopyVerified(src, dst string) (Written, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return Written{}, fmt.Errorf("stat source: %w", err)
	}
	srcSize := srcInfo.Size()

	in, err := os.Open(src)
	if err != nil {
		return Written{}, err
	}
	defer in.Close()

	srcHasher := sha256.New()
	result, err := WriteLimited(dst, io.TeeReader(in, srcHasher), 0)
	if err != nil {
		return Written{}, err
	}
	if result.Bytes != srcSize {
		_ = os.Remove(dst)
		return Written{}, fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcSize, result.Bytes)
	}
	if hex.EncodeToString(srcHasher.Sum(nil)) != result.SHA256 {
		_ = os.Remove(dst)
		return Written{}, fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	return result, nil
}

// SanitizeName reduces an uploaded file name to a safe base name. Path
// separators and control characters are dropped; an empty result becomes
// "upload".
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsControl(r), r == '/', r == ':':
			continue
		case unicode.IsSpace(r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	clean := strings.Trim(b.String(), "._")
	if clean == "" {
		return "upload"
	}
	const maxLen = 128
	if len(clean) > maxLen {
		ext := filepath.Ext(clean)
		if len(ext) > 16 {
			ext = ""
		}
		clean = strings.ToValidUTF8(clean[:maxLen-len(ext)], "") + ext
	}
	return clean
}
