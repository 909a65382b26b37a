package uploads

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrUnsupportedType is returned for files outside the image whitelist.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrTooLarge is returned when a file exceeds the configured size cap.
	ErrTooLarge = errors.New("file too large")
)

var allowedExtensions = map[string]struct{}{
	".jpeg": {},
	".jpg":  {},
	".png":  {},
	".gif":  {},
}

// Storage writes featured images to a local directory and hands back the
// public path they are served under.
type Storage struct {
	dir      string
	maxBytes int64
}

func NewStorage(dir string, maxBytes int64) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &Storage{dir: dir, maxBytes: maxBytes}, nil
}

// Dir returns the directory backing the store, for static file serving.
func (s *Storage) Dir() string {
	return s.dir
}

// Save persists an uploaded image and returns its public path
// ("/uploads/<name>"). Names embed a nanosecond timestamp so concurrent
// uploads never clash.
func (s *Storage) Save(fh *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
	if fh.Size > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, fh.Size, s.maxBytes)
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	name := fmt.Sprintf("featuredImage-%d%s", time.Now().UnixNano(), ext)
	dstPath := filepath.Join(s.dir, name)

	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	// Re-enforce the cap while copying; the declared header size is
	// client-controlled.
	n, err := io.Copy(dst, io.LimitReader(src, s.maxBytes+1))
	if err != nil {
		os.Remove(dstPath)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if n > s.maxBytes {
		os.Remove(dstPath)
		return "", fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, s.maxBytes)
	}

	return "/uploads/" + name, nil
}

// Remove deletes a previously saved image given its public path. Paths that
// do not point into the uploads dir are ignored.
func (s *Storage) Remove(publicPath string) error {
	name := strings.TrimPrefix(publicPath, "/uploads/")
	if name == publicPath || name == "" || strings.Contains(name, "/") {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}
