package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/screenwise/screenwise/types"
)

// DirSource replays pre-captured frames from a directory in lexical order,
// one per Capture call. Used for offline replay and tests; after the last
// file it keeps returning the final frame, mimicking an unchanging screen.
type DirSource struct {
	mu    sync.Mutex
	files []string
	next  int
}

// NewDirSource lists the jpg/png files under dir.
func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		if strings.HasSuffix(name, ".jpg") || strings.HasSuffix(name, ".jpeg") || strings.HasSuffix(name, ".png") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no frames found in directory %q", dir)
	}
	sort.Strings(files)

	return &DirSource{files: files}, nil
}

// Capture returns the next frame in sequence.
func (s *DirSource) Capture(ctx context.Context) (*types.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	idx := s.next
	if idx >= len(s.files) {
		idx = len(s.files) - 1
	} else {
		s.next++
	}
	path := s.files[idx]
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewError(types.ErrCaptureFailed, "read replay frame").WithCause(err)
	}

	mime := "image/jpeg"
	if strings.HasSuffix(strings.ToLower(path), ".png") {
		mime = "image/png"
	}

	return &types.Frame{Data: data, MimeType: mime, CapturedAt: time.Now()}, nil
}

var _ FrameSource = (*DirSource)(nil)
