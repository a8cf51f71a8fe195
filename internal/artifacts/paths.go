package artifacts

import (
	"path"
	"strings"
)

// NormalizePath converts p to forward slashes and removes redundant
// separators and dot elements.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return path.Clean(strings.ReplaceAll(p, `\`, "/"))
}

// ReconstructPath places p under prefix so the table stays meaningful on the
// machine that reads it. Paths already under prefix are returned unchanged.
// Leading ".." elements cannot climb out of prefix.
func ReconstructPath(p, prefix string) string {
	prefix = NormalizePath(prefix)
	if p == "" || prefix == "" || prefix == "." {
		return p
	}
	if p == prefix || strings.HasPrefix(p, strings.TrimSuffix(prefix, "/")+"/") {
		return p
	}
	return path.Join(prefix, path.Clean("/"+p))
}

// DisplayPath applies normalisation then reconstruction.
func DisplayPath(p, prefix string) string {
	return ReconstructPath(NormalizePath(p), prefix)
}

// RelativeTo strips cwd from p when p lies beneath it.
func RelativeTo(p, cwd string) string {
	cwd = NormalizePath(cwd)
	p = NormalizePath(p)
	if cwd == "" || cwd == "." {
		return p
	}
	if rest, ok := strings.CutPrefix(p, strings.TrimSuffix(cwd, "/")+"/"); ok {
		return rest
	}
	return p
}
