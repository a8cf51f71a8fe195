package partition

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"path/filepath"
	"slices"
	"strings"
)

// Scanner enumerates input files matching a glob pattern and a set of extensions.
type Scanner struct {
	Root       string
	Pattern    string
	Extensions []string
}

// NewScanner builds a scanner with expanded extensions. An empty pattern
// matches every file stem.
func NewScanner(root, pattern string, types []string) *Scanner {
	if strings.TrimSpace(pattern) == "" {
		pattern = "*"
	}
	return &Scanner{
		Root:       root,
		Pattern:    pattern,
		Extensions: ExpandExtensions(types),
	}
}

// ExpandExtensions returns each extension in lower and upper case, without the
// leading dot and without duplicates.
func ExpandExtensions(types []string) []string {
	out := make([]string, 0, len(types)*2)
	for _, t := range types {
		t = strings.TrimPrefix(strings.TrimSpace(t), ".")
		if t == "" {
			continue
		}
		for _, variant := range []string{strings.ToLower(t), strings.ToUpper(t)} {
			if !slices.Contains(out, variant) {
				out = append(out, variant)
			}
		}
	}
	return out
}

// Files walks the root recursively and yields matching file paths in lexical
// order. Walk errors are yielded once and end the enumeration.
func (s *Scanner) Files() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if _, err := filepath.Match(s.Pattern, ""); err != nil {
			yield("", fmt.Errorf("invalid pattern %q: %w", s.Pattern, err))
			return
		}
		errStop := errors.New("stop")
		err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !s.matches(d.Name()) {
				return nil
			}
			if !yield(path, nil) {
				return errStop
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			yield("", fmt.Errorf("scan %s: %w", s.Root, err))
		}
	}
}

// Count walks the input root once and returns how many files match.
func (s *Scanner) Count() (int, error) {
	n := 0
	for _, err := range s.Files() {
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Scanner) matches(name string) bool {
	ext := filepath.Ext(name)
	if ext == "" || !slices.Contains(s.Extensions, ext[1:]) {
		return false
	}
	ok, _ := filepath.Match(s.Pattern, strings.TrimSuffix(name, ext))
	return ok
}

// Total clamps the discovered count to limit when one is set.
func Total(discovered, limit int) int {
	if limit > 0 && limit < discovered {
		return limit
	}
	return discovered
}

// Take yields at most limit successful paths from seq. A non-positive limit
// yields everything. Errors are passed through without counting.
func Take(seq iter.Seq2[string, error], limit int) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		taken := 0
		for path, err := range seq {
			if err == nil {
				if limit > 0 && taken >= limit {
					return
				}
				taken++
			}
			if !yield(path, err) {
				return
			}
		}
	}
}
