package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrymomot/formstream"
)

// LocalStorage implements Storage for the local filesystem. All operations
// are confined to baseDir to prevent path traversal attacks.
type LocalStorage struct {
	baseDir      string        // Absolute path - all files stored within this directory
	baseURL      string        // URL prefix for serving files (e.g., "/files/")
	storeTimeout time.Duration // Optional timeout to prevent hanging stores
}

// LocalOption configures LocalStorage.
type LocalOption func(*LocalStorage)

// WithLocalStoreTimeout sets the timeout for store operations.
// If not set, relies on context deadline from caller.
func WithLocalStoreTimeout(timeout time.Duration) LocalOption {
	return func(s *LocalStorage) {
		s.storeTimeout = timeout
	}
}

// NewLocalStorage creates a local filesystem storage rooted at baseDir.
// baseDir is resolved to an absolute path and created if it doesn't exist.
// baseURL is used for generating public URLs (e.g., "/files/").
func NewLocalStorage(baseDir, baseURL string, opts ...LocalOption) (*LocalStorage, error) {
	if baseDir == "" {
		return nil, ErrInvalidConfig
	}

	absBaseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to resolve base directory: %v", ErrFailedToGetAbsolutePath, err)
	}

	if err := os.MkdirAll(absBaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}

	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	s := &LocalStorage{
		baseDir: absBaseDir,
		baseURL: baseURL,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Store moves the part's temp file into the base directory. A same-device
// rename is attempted first; across filesystems the file is copied with
// context cancellation support and the temp file removed afterwards. On
// success the temp file no longer exists.
func (s *LocalStorage) Store(ctx context.Context, part *formstream.FilePart, dest string) (*Object, error) {
	if part == nil {
		return nil, ErrNilFilePart
	}

	if s.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	dir, name := destName(part, dest)
	relPath := filepath.Join(dir, name)
	absPath, err := s.resolvePath(relPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}

	if err := os.Rename(part.TempPath, absPath); err != nil {
		// Rename fails across filesystems; fall back to copy-and-remove.
		if err := s.copyFile(ctx, part.TempPath, absPath); err != nil {
			return nil, err
		}
		_ = os.Remove(part.TempPath)
	}

	return &Object{
		Name:        name,
		Size:        part.Length,
		Path:        relPath,
		ContentType: part.MediaType(),
		SHA256:      part.SHA256,
	}, nil
}

// copyFile copies src to dst in buffered chunks, checking the context between
// writes so a hung disk or cancelled request doesn't leak a partial file.
func (s *LocalStorage) copyFile(ctx context.Context, srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToOpenFile, err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToCreateFile, err)
	}
	defer func() { _ = dst.Close() }()

	buf := make([]byte, 32*1024)
	for {
		select {
		case <-ctx.Done():
			_ = dst.Close()
			_ = os.Remove(dstPath)
			return ctx.Err()
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				_ = dst.Close()
				_ = os.Remove(dstPath)
				return fmt.Errorf("%w: %v", ErrFailedToWriteFile, writeErr)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			_ = dst.Close()
			_ = os.Remove(dstPath)
			return fmt.Errorf("%w: %v", ErrFailedToReadFile, readErr)
		}
	}
}

// Delete removes a single stored file.
// Verifies the target is a file, not a directory, to prevent accidental data loss.
func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	absPath, err := s.resolvePath(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("%w: %v", ErrFailedToStatPath, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%w: %s", ErrIsDirectory, path)
	}

	if err := os.Remove(absPath); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToDeleteFile, err)
	}

	return nil
}

// Exists checks if a stored file exists.
// Returns false for invalid paths or on context cancellation.
func (s *LocalStorage) Exists(ctx context.Context, path string) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}

	absPath, err := s.resolvePath(path)
	if err != nil {
		return false
	}

	_, err = os.Stat(absPath)
	return err == nil
}

// URL returns the public URL for a stored file.
func (s *LocalStorage) URL(path string) string {
	path = filepath.Clean(path)
	path = filepath.ToSlash(path)

	if strings.HasPrefix(path, "/") {
		return path
	}

	return s.baseURL + path
}

// resolvePath validates and resolves a path within the base directory.
// Critical security function that prevents path traversal attacks by ensuring
// all resolved paths stay within baseDir bounds.
func (s *LocalStorage) resolvePath(path string) (string, error) {
	path = filepath.Clean(path)
	absPath := filepath.Join(s.baseDir, path)

	absPath, err := filepath.Abs(absPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailedToGetAbsolutePath, err)
	}

	if !strings.HasPrefix(absPath, s.baseDir+string(filepath.Separator)) && absPath != s.baseDir {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	return absPath, nil
}
