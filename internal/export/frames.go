package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const batchSize = 10 // Number of frames to batch write

const manifestName = "frames.json"

// FrameFile is a key-frame image and where it came from.
type FrameFile struct {
	Name      string `json:"file"`
	Segment   int    `json:"segment"`
	Timestamp string `json:"timestamp"`
	Title     string `json:"title"`
	Image     []byte `json:"-"`
}

// FrameStore writes key-frames and their manifest to a directory in
// batches.
type FrameStore struct {
	dir     string
	pending []FrameFile
	mu      sync.Mutex
}

// NewFrameStore creates a store writing into dir.
func NewFrameStore(dir string) *FrameStore {
	return &FrameStore{dir: dir}
}

// Dir is the directory frames are written to.
func (s *FrameStore) Dir() string {
	return s.dir
}

// AddFrame queues a frame and flushes once the batch is full.
func (s *FrameStore) AddFrame(ctx context.Context, frame FrameFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, frame)

	// Write to disk when batch is full
	if len(s.pending) >= batchSize {
		return s.flush()
	}
	return nil
}

// Flush writes all pending frames to disk.
func (s *FrameStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

func (s *FrameStore) flush() error {
	if len(s.pending) == 0 {
		return nil
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create frames directory: %w", err)
	}

	for _, frame := range s.pending {
		path := filepath.Join(s.dir, frame.Name)
		if err := os.WriteFile(path, frame.Image, 0644); err != nil {
			return fmt.Errorf("failed to write frame '%s': %w", path, err)
		}
	}

	manifestPath := filepath.Join(s.dir, manifestName)

	var existing []FrameFile
	if data, err := os.ReadFile(manifestPath); err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("failed to unmarshal existing manifest: %w", err)
		}
	}

	all := append(existing, s.pending...)

	file, err := os.Create(manifestPath)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(all); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	s.pending = nil // Clear the batch
	return nil
}

// Manifest reads the frames recorded in dir.
func Manifest(dir string) ([]FrameFile, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, err
	}
	var frames []FrameFile
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return frames, nil
}
