// Package mimetype maps a file extension to a Content-Type value.
package mimetype

import (
	"github.com/niels/rawhttpd/pkg/bytestr"
)

// OctetStream is served for unknown or missing extensions
const OctetStream = "application/octet-stream"

var families = []struct {
	prefix     string
	extensions []string
}{
	{"image/", []string{"png", "jpg", "jpeg", "gif"}},
	{"application/", []string{"pdf", "js"}},
	{"text/", []string{"html"}},
}

// Extension returns the final dot-separated segment of uri, or nil when uri
// contains no dot segment.
func Extension(uri bytestr.String) *bytestr.String {
	parts := uri.Split('.')
	if len(parts) < 2 {
		return nil
	}
	return &parts[len(parts)-1]
}

// Resolve returns the Content-Type for ext. Matching is case-insensitive and
// the lower-cased extension becomes the subtype, e.g. "JPG" -> "image/jpg".
func Resolve(ext *bytestr.String) bytestr.String {
	if ext == nil {
		return bytestr.FromString(OctetStream)
	}

	lower := ext.Clone()
	lower.ToLowerCase()
	for _, family := range families {
		for _, candidate := range family.extensions {
			if !lower.EqualsBytes([]byte(candidate)) {
				continue
			}
			contentType := bytestr.FromString(family.prefix)
			contentType.ConcatString(lower)
			return contentType
		}
	}
	return bytestr.FromString(OctetStream)
}
