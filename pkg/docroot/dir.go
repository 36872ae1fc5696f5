package docroot

import (
	"os"

	"github.com/niels/rawhttpd/pkg/bytestr"
	"github.com/pkg/errors"
)

// File access errors
var (
	// ErrNotFound means the entry is missing or is a directory
	ErrNotFound = errors.New("docroot: not found")
	// ErrForbidden means the path escapes the document root
	ErrForbidden = errors.New("docroot: outside document root")
)

// Dir is a document root on the local filesystem. Paths handed to its
// methods are request URIs such as "/images/tux.jpg".
type Dir string

// Resolve classifies uriPath against the root
func (d Dir) Resolve(uriPath string) Verdict {
	return Resolve(uriPath, string(d))
}

// ReadFile returns the bytes of the regular file at uriPath. Directories are
// reported as ErrNotFound, escapes as ErrForbidden.
func (d Dir) ReadFile(uriPath string) (bytestr.String, error) {
	path, verdict := locate(uriPath, string(d))
	switch verdict {
	case Forbidden:
		return bytestr.String{}, errors.Wrap(ErrForbidden, uriPath)
	case NotFound:
		return bytestr.String{}, errors.Wrap(ErrNotFound, uriPath)
	}

	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return bytestr.String{}, errors.Wrap(ErrNotFound, uriPath)
		}
		return bytestr.String{}, errors.Wrapf(err, "stat %s", uriPath)
	}
	if !fi.Mode().IsRegular() {
		return bytestr.String{}, errors.Wrapf(ErrNotFound, "%s is not a regular file", uriPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return bytestr.String{}, errors.Wrapf(err, "read %s", uriPath)
	}
	return bytestr.Copy(data), nil
}
