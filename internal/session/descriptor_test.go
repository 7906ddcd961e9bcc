package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptor(t *testing.T) {
	d, err := NewDescriptor("/out", "com.example", "geo",
		[]string{"/src/geo", "/src/geo"},
		[]string{"/usr/include/extra"},
		[]string{"/opt/lib/libshapes.so", "/opt/lib/libgeo_core.a", "/usr/lib/libm.so"})
	require.NoError(t, err)

	assert.Equal(t, `headers = geo.h
compilerOpts = -I/out -I/src/geo -I/usr/include/extra
linkerOpts = -L/opt/lib -L/usr/lib -lshapes -lm
staticLibraries = libgeo_core.a libgeo.a
libraryPaths = /opt/lib /out
package = com.example.internal
`, d.String())
}

func TestDescriptorOmitsEmptyKeys(t *testing.T) {
	d, err := NewDescriptor("/out", "p", "m", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "headers = m.h\ncompilerOpts = -I/out\nstaticLibraries = libm.a\nlibraryPaths = /out\npackage = p.internal\n", d.String())
}

func TestDescriptorRejectsUnknownLibrary(t *testing.T) {
	_, err := NewDescriptor("/out", "p", "m", nil, nil, []string{"/opt/lib/libx.dylib"})
	assert.ErrorIs(t, err, ErrUnsupportedLibrary)
}
