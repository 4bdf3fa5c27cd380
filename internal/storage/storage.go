package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// URLPrefix is where the upload directory is mounted on the router.
const URLPrefix = "/uploads/"

// Store writes uploaded files (poll images, avatars) into a public
// directory under generated unique names.
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes the file and returns its public URL path. The original
// filename is kept as a suffix for human readability; the uuid prefix
// guarantees uniqueness.
func (s *Store) Save(originalName string, r io.Reader) (string, error) {
	name := uuid.NewString() + "_" + sanitizeName(originalName)

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("writing upload file: %w", err)
	}

	return URLPrefix + name, nil
}

// Remove deletes a previously saved file given its public URL path.
// Missing files are not an error; the upload may already be gone.
func (s *Store) Remove(publicPath string) error {
	name, ok := strings.CutPrefix(publicPath, URLPrefix)
	if !ok || name == "" {
		return nil
	}
	// Never follow path segments out of the upload dir.
	name = filepath.Base(name)

	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func sanitizeName(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	if name == "." || name == string(filepath.Separator) {
		return "file"
	}
	return name
}
