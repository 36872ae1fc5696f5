// Package docroot confines file access to a document root.
package docroot

import (
	"os"
	"path/filepath"
	"strings"
)

// Verdict classifies a requested path relative to the document root
type Verdict int

const (
	// Found means the path resolves to an existing entry inside the root
	Found Verdict = iota
	// NotFound means the path stays inside the root but nothing exists there
	NotFound
	// Forbidden means the canonical path lies outside the root
	Forbidden
)

func (v Verdict) String() string {
	switch v {
	case Found:
		return "found"
	case NotFound:
		return "not found"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Resolve canonicalizes root+uriPath and classifies it.
//
// A path whose canonical form is not root itself or below root is always
// Forbidden, whatever exists on disk. Failures other than a missing entry
// are reported as NotFound.
func Resolve(uriPath, root string) Verdict {
	_, verdict := locate(uriPath, root)
	return verdict
}

// locate returns the canonical path of root+uriPath together with its
// verdict. The path is only meaningful when the verdict is Found.
func locate(uriPath, root string) (string, Verdict) {
	if strings.IndexByte(uriPath, 0) >= 0 || strings.IndexByte(root, 0) >= 0 {
		return "", NotFound
	}

	canonicalRoot, err := canonicalize(root)
	if err != nil {
		return "", NotFound
	}

	// plain concatenation, so ".." in uriPath is resolved against the
	// filesystem and not cleaned away beforehand
	canonical, err := canonicalize(root + uriPath)
	if err != nil {
		return "", NotFound
	}
	if !within(canonical, canonicalRoot) {
		return "", Forbidden
	}

	if _, err := filepath.EvalSymlinks(canonical); err != nil {
		return "", NotFound
	}
	return canonical, Found
}

// canonicalize returns the absolute, symlink-free form of path. ".." is
// applied to the already resolved prefix, so it follows the filesystem
// rather than the spelling of path. Components that do not exist are kept
// lexically, the way realpath reports a missing file.
func canonicalize(path string) (string, error) {
	sep := string(filepath.Separator)
	if !filepath.IsAbs(path) {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		path = wd + sep + path
	}

	resolved := sep
	var missing []string
	for _, comp := range strings.Split(path, sep) {
		switch {
		case comp == "" || comp == ".":
			continue
		case comp == "..":
			if len(missing) > 0 {
				missing = missing[:len(missing)-1]
			} else {
				resolved = filepath.Dir(resolved)
			}
			continue
		case len(missing) > 0:
			missing = append(missing, comp)
			continue
		}

		next := filepath.Join(resolved, comp)
		fi, err := os.Lstat(next)
		if err != nil {
			if os.IsNotExist(err) {
				missing = append(missing, comp)
				continue
			}
			return "", err
		}
		if fi.Mode()&os.ModeSymlink == 0 {
			resolved = next
			continue
		}

		target, err := filepath.EvalSymlinks(next)
		if err != nil {
			if os.IsNotExist(err) {
				// dangling link
				missing = append(missing, comp)
				continue
			}
			return "", err
		}
		resolved = target
	}
	return filepath.Join(append([]string{resolved}, missing...)...), nil
}

// within reports whether path equals root or lies below it
func within(path, root string) bool {
	if path == root {
		return true
	}
	if !strings.HasSuffix(root, string(filepath.Separator)) {
		root += string(filepath.Separator)
	}
	return strings.HasPrefix(path, root)
}
