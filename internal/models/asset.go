package models

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// VideoAsset wraps a selected video file and the temporary derivatives made
// from it. Release must be called once the asset is replaced or cleared.
type VideoAsset struct {
	ID       uuid.UUID
	Name     string
	MIMEType string

	path string
	size int64

	mu          sync.Mutex
	workDir     string
	working     string
	workingSize int64
	released    bool
}

// NewVideoAsset creates an asset for the file at path. A private work
// directory is allocated for derivatives.
func NewVideoAsset(path, mimeType string, size int64) (*VideoAsset, error) {
	workDir, err := os.MkdirTemp("", "videolens-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}

	return &VideoAsset{
		ID:          uuid.New(),
		Name:        strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		MIMEType:    mimeType,
		path:        path,
		size:        size,
		workDir:     workDir,
		working:     path,
		workingSize: size,
	}, nil
}

// Original is the path of the file the user selected.
func (a *VideoAsset) Original() string { return a.path }

// OriginalSize is the size of the selected file in bytes.
func (a *VideoAsset) OriginalSize() int64 { return a.size }

// Working is the path the pipeline should read: the latest derivative, or
// the original when none exists.
func (a *VideoAsset) Working() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.working
}

// WorkingSize is the size of Working in bytes.
func (a *VideoAsset) WorkingSize() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.workingSize
}

// DerivativePath returns a path inside the asset's work directory.
func (a *VideoAsset) DerivativePath(name string) string {
	return filepath.Join(a.workDir, name)
}

// Replace substitutes a derivative for the working binary. The previous
// derivative, if any, is removed.
func (a *VideoAsset) Replace(path string, size int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return fmt.Errorf("asset %s already released", a.ID)
	}
	if a.working != a.path && a.working != path {
		os.Remove(a.working)
	}
	a.working = path
	a.workingSize = size
	return nil
}

// Reset drops any derivative and points the asset back at the original.
func (a *VideoAsset) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.working != a.path {
		os.Remove(a.working)
	}
	a.working = a.path
	a.workingSize = a.size
}

// Release removes the work directory and every derivative in it. It is
// safe to call more than once.
func (a *VideoAsset) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return nil
	}
	a.released = true
	a.working = a.path
	a.workingSize = a.size
	if err := os.RemoveAll(a.workDir); err != nil {
		return fmt.Errorf("failed to remove work directory '%s': %w", a.workDir, err)
	}
	return nil
}

// Released reports whether Release has been called.
func (a *VideoAsset) Released() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.released
}
