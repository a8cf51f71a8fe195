package partition

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"

	"openbq/internal/fileutil"
	"openbq/internal/staging"
)

// Batch is one scratch folder holding links to up to batchSize inputs.
type Batch struct {
	Index   int
	Dir     string
	Inputs  int
	sources map[string]string
}

// Source maps a path reported by an engine for this batch back to the
// original input. Engines may report the link path or just its base name.
func (b *Batch) Source(reported string) (string, bool) {
	if b == nil {
		return "", false
	}
	if src, ok := b.sources[reported]; ok {
		return src, true
	}
	src, ok := b.sources[filepath.Join(b.Dir, filepath.Base(reported))]
	return src, ok
}

// LinkError reports an input that could not be placed into a batch folder.
type LinkError struct {
	Path string
	Err  error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link %s: %v", e.Path, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }

// BatchSet owns the scratch root for one job's batch folders.
type BatchSet struct {
	root      string
	batchSize int

	mu      sync.Mutex
	batches map[string]*Batch
	next    int
	closed  bool
}

// NewBatchSet creates a fresh scratch root under tempDir. The name embeds
// jobID so concurrent jobs never share folders.
func NewBatchSet(tempDir, jobID string, batchSize int) (*BatchSet, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	root, err := os.MkdirTemp(tempDir, staging.BatchRootPrefix+jobID+"-")
	if err != nil {
		return nil, fmt.Errorf("create batch root: %w", err)
	}
	return &BatchSet{root: root, batchSize: batchSize, batches: make(map[string]*Batch)}, nil
}

// Root returns the scratch directory holding every batch folder.
func (s *BatchSet) Root() string {
	return s.root
}

// Lookup returns the batch created for dir.
func (s *BatchSet) Lookup(dir string) (*Batch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[dir]
	return b, ok
}

// Batches regroups files into batch folders, yielding each folder once it is
// full or the input is exhausted. At most limit inputs are consumed when limit
// is positive. Inputs that cannot be linked are yielded as *LinkError and do
// not count against the batch.
func (s *BatchSet) Batches(files iter.Seq2[string, error], limit int) iter.Seq2[*Batch, error] {
	return func(yield func(*Batch, error) bool) {
		var (
			current *Batch
			taken   = make(map[string]struct{})
		)
		flush := func() bool {
			if current == nil || current.Inputs == 0 {
				return true
			}
			b := current
			current = nil
			return yield(b, nil)
		}
		for path, err := range Take(files, limit) {
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			if current == nil {
				b, err := s.newBatch()
				if err != nil {
					yield(nil, err)
					return
				}
				current = b
				clear(taken)
			}
			name := fileutil.UniqueName(current.Dir, filepath.Base(path), taken)
			dst := filepath.Join(current.Dir, name)
			if _, err := fileutil.LinkOrCopy(path, dst); err != nil {
				if !yield(nil, &LinkError{Path: path, Err: err}) {
					return
				}
				continue
			}
			taken[name] = struct{}{}
			src, absErr := filepath.Abs(path)
			if absErr != nil {
				src = path
			}
			current.sources[dst] = src
			current.Inputs++
			if current.Inputs >= s.batchSize && !flush() {
				return
			}
		}
		flush()
	}
}

func (s *BatchSet) newBatch() (*Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("batch set closed")
	}
	index := s.next
	s.next++
	dir := filepath.Join(s.root, fmt.Sprintf("batch_%04d", index))
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create batch folder: %w", err)
	}
	b := &Batch{Index: index, Dir: dir, sources: make(map[string]string)}
	s.batches[dir] = b
	return b, nil
}

// Close removes the scratch root and every batch folder in it. It is safe to
// call more than once.
func (s *BatchSet) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if err := os.RemoveAll(s.root); err != nil {
		return fmt.Errorf("remove batch root: %w", err)
	}
	return nil
}
