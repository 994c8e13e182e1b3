package uploads

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrOutsideDir = errors.New("path outside upload dir")

// PublicPrefix is the URL path covers are served under. A post's cover is
// PublicPrefix + "/" + name, whatever directory the files live in.
const PublicPrefix = "uploads"

// Store hands out names for uploaded covers inside one directory.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: filepath.Clean(dir)}, nil
}

// NewCover picks a fresh name for an upload, keeping the extension of the
// client's filename so the file is served with its type. cover is the
// public path stored on the post, diskPath is where the bytes go.
func (s *Store) NewCover(originalName string) (cover, diskPath string) {
	name := uuid.NewString()
	if ext := Ext(originalName); ext != "" {
		name += "." + ext
	}
	return PublicPrefix + "/" + name, filepath.Join(s.dir, name)
}

// Remove deletes the file behind a cover path. Missing files are not an
// error.
func (s *Store) Remove(cover string) error {
	if cover == "" {
		return nil
	}

	name, ok := strings.CutPrefix(cover, PublicPrefix+"/")
	if !ok || name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return ErrOutsideDir
	}

	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Ext is the part of the filename after the last dot. Anything that is not
// a plain alphanumeric extension is dropped.
func Ext(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))

	i := strings.LastIndex(base, ".")
	if i <= 0 || i == len(base)-1 {
		return ""
	}

	ext := base[i+1:]
	if len(ext) > 10 {
		return ""
	}

	for _, r := range ext {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return ""
		}
	}

	return ext
}
