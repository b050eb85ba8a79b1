package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/platinummonkey/folio/pkg/errs"
)

// ErrNotFound is returned when a reference does not name a stored file.
var ErrNotFound = errors.New("file not found")

// FileStore saves and loads manuscript files by reference.
type FileStore interface {
	Save(ctx context.Context, r io.Reader, suggestedName string) (ref string, err error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
	Stat(ctx context.Context, ref string) (size int64, err error)
}

// Config selects and configures a backend.
type Config struct {
	Backend string // "fs" or "s3"

	Dir string

	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
}

// New builds the backend named by cfg.Backend.
func New(ctx context.Context, cfg Config) (FileStore, error) {
	switch cfg.Backend {
	case "", "fs":
		return NewFilesystemStore(cfg.Dir)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// AllowedExtensions lists the manuscript formats accepted for upload.
var AllowedExtensions = map[string]bool{
	"pdf":  true,
	"docx": true,
	"doc":  true,
	"txt":  true,
	"png":  true,
	"jpg":  true,
	"jpeg": true,
}

// ValidateUpload checks a file name and size before anything is stored.
// maxBytes <= 0 disables the size check.
func ValidateUpload(name string, size, maxBytes int64) error {
	const op = "upload_manuscript"
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if !AllowedExtensions[ext] {
		return errs.Invalid(op, "file_type")
	}
	if size <= 0 {
		return errs.Invalid(op, "file")
	}
	if maxBytes > 0 && size > maxBytes {
		return errs.Invalid(op, "file_size")
	}
	return nil
}

// SanitizeName reduces a client-supplied file name to a safe base name.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}

// NewRef returns a fresh reference for suggestedName.
func NewRef(suggestedName string) string {
	return uuid.NewString() + "_" + SanitizeName(suggestedName)
}

// OriginalName recovers the sanitized file name from a reference.
func OriginalName(ref string) string {
	if _, name, ok := strings.Cut(ref, "_"); ok {
		return name
	}
	return ref
}

// validRef rejects references that could escape a backend's namespace.
func validRef(ref string) bool {
	return ref != "" && !strings.ContainsAny(ref, "/\\") && ref != "." && ref != ".."
}
