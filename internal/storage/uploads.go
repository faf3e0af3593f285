package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-service/internal/config"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SavedFile describes a stored attachment.
type SavedFile struct {
	// Name is the sanitized original file name shown to users.
	Name string
	// Path is where the file landed on disk.
	Path string
}

// Store writes uploaded attachments to the local uploads directory.
// Only a fixed set of extensions is accepted; stored names get a random
// prefix so uploads can never collide or overwrite each other.
type Store struct {
	dir     string
	allowed map[string]struct{}
}

// NewStore builds a store from upload configuration.
func NewStore(cfg config.UploadConfig) *Store {
	allowed := make(map[string]struct{}, len(cfg.AllowedExts))
	for _, ext := range cfg.AllowedExts {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return &Store{dir: cfg.Dir, allowed: allowed}
}

// Allowed reports whether the file's extension is on the allowlist.
func (s *Store) Allowed(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return false
	}
	_, ok := s.allowed[ext]
	return ok
}

// Save persists an upload and returns its sanitized name and disk path.
// Disallowed extensions are rejected with a validation error.
func (s *Store) Save(src io.Reader, originalName string) (SavedFile, error) {
	if !s.Allowed(originalName) {
		return SavedFile{}, apperrors.NewValidationError("file type not allowed", map[string]any{
			"file": filepath.Ext(originalName),
		})
	}

	safeName := SanitizeFileName(originalName)
	prefix := strings.ReplaceAll(uuid.NewString(), "-", "")
	storedName := fmt.Sprintf("%s_%s", prefix, safeName)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return SavedFile{}, fmt.Errorf("create upload dir: %w", err)
	}

	path := filepath.Join(s.dir, storedName)
	dst, err := os.Create(path)
	if err != nil {
		return SavedFile{}, fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return SavedFile{}, fmt.Errorf("write upload file: %w", err)
	}

	return SavedFile{Name: safeName, Path: path}, nil
}

// SanitizeFileName strips path components and characters that are not
// safe in a stored file name.
func SanitizeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	safe := unsafeNameChars.ReplaceAllString(base, "_")
	if safe == "" || safe == "." || safe == ".." {
		return "file"
	}
	return safe
}
