package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalStore writes images under root and serves them from publicPath.
type LocalStore struct {
	root       string
	publicPath string
}

func NewLocalStore(root, publicPath string) (*LocalStore, error) {
	for _, folder := range []string{FolderRestaurants, FolderProfiles} {
		if err := os.MkdirAll(filepath.Join(root, folder), 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}
	return &LocalStore{root: root, publicPath: "/" + strings.Trim(publicPath, "/")}, nil
}

func (s *LocalStore) Root() string       { return s.root }
func (s *LocalStore) PublicPath() string { return s.publicPath }

func (s *LocalStore) Save(_ context.Context, folder string, file *multipart.FileHeader) (string, error) {
	data, ext, err := readImage(file)
	if err != nil {
		return "", err
	}
	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.root, folder, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return path.Join(s.publicPath, folder, name), nil
}

func (s *LocalStore) Remove(_ context.Context, ref string) error {
	p, ok := s.localPath(ref)
	if !ok {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}

// localPath maps a public reference back to a file under root.
func (s *LocalStore) localPath(ref string) (string, bool) {
	prefix := s.publicPath + "/"
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	rel := path.Clean(strings.TrimPrefix(ref, prefix))
	if rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.Join(s.root, filepath.FromSlash(rel)), true
}

// Sweep deletes files that no record references and that are older than
// minAge. It returns the number of files removed.
func (s *LocalStore) Sweep(ctx context.Context, referenced []string, minAge time.Duration) (int, error) {
	keep := make(map[string]bool, len(referenced))
	for _, ref := range referenced {
		if p, ok := s.localPath(ref); ok {
			keep[p] = true
		}
	}

	cutoff := time.Now().Add(-minAge)
	removed := 0
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || keep[p] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}
