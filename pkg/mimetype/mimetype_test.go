package mimetype

import (
	"testing"

	"github.com/niels/rawhttpd/pkg/bytestr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"/index.html", "text/html"},
		{"/INDEX.HTML", "text/html"},
		{"/images/tux.jpg", "image/jpg"},
		{"/images/tux.JPEG", "image/jpeg"},
		{"/a.png", "image/png"},
		{"/a.gif", "image/gif"},
		{"/doc.pdf", "application/pdf"},
		{"/app.min.js", "application/js"},
		{"/style.css", OctetStream},
		{"/README", OctetStream},
		{"/file.", OctetStream},
		{"/archive.htmlx", OctetStream},
		{"/dir.v2/file", OctetStream},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got := Resolve(Extension(bytestr.FromString(tt.uri)))
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestResolveNil(t *testing.T) {
	assert.Equal(t, OctetStream, Resolve(nil).String())
}

func TestExtension(t *testing.T) {
	ext := Extension(bytestr.FromString("/a/b.tar.gz"))
	require.NotNil(t, ext)
	assert.Equal(t, "gz", ext.String())

	assert.Nil(t, Extension(bytestr.FromString("/noext")))
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	ext := bytestr.FromString("PNG")
	assert.Equal(t, "image/png", Resolve(&ext).String())
	assert.Equal(t, "PNG", ext.String())
}
