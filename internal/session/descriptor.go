package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// ErrUnsupportedLibrary is returned for a library that is neither a static
// (.a) nor a shared (.so) library.
var ErrUnsupportedLibrary = errors.New("unsupported library type")

// Descriptor is the module descriptor consumed by the native interop
// build: the generated header, compile and link flags, and the package the
// low-level bindings land in.
type Descriptor struct {
	Headers         []string
	CompilerOpts    []string
	LinkerOpts      []string
	StaticLibraries []string
	LibraryPaths    []string
	Package         string
}

// checkLibraries rejects libraries the descriptor cannot link.
func checkLibraries(libs []string) error {
	for _, l := range libs {
		if !strings.HasSuffix(l, ".a") && !strings.HasSuffix(l, ".so") {
			return fmt.Errorf("%w: %s", ErrUnsupportedLibrary, l)
		}
	}
	return nil
}

// NewDescriptor builds the descriptor for module written to dir. The shim
// header and static library live in dir; headerDirs and includePaths are
// where the wrapped headers are found.
func NewDescriptor(dir, pkg, module string, headerDirs, includePaths, libraries []string) (Descriptor, error) {
	libs := append(slices.Clone(libraries), filepath.Join(dir, "lib"+module+".a"))
	if err := checkLibraries(libs); err != nil {
		return Descriptor{}, err
	}

	d := Descriptor{
		Headers: []string{module + ".h"},
		Package: pkg + ".internal",
	}
	for _, inc := range append(append([]string{dir}, headerDirs...), includePaths...) {
		d.CompilerOpts = appendUnique(d.CompilerOpts, "-I"+inc)
	}

	var linkDirs, links []string
	for _, l := range libs {
		parent, name := filepath.Split(l)
		parent = filepath.Clean(parent)
		if strings.HasSuffix(name, ".a") {
			d.StaticLibraries = append(d.StaticLibraries, name)
			d.LibraryPaths = appendUnique(d.LibraryPaths, parent)
			continue
		}
		linkDirs = appendUnique(linkDirs, "-L"+parent)
		links = append(links, "-l"+strings.TrimSuffix(strings.TrimPrefix(name, "lib"), ".so"))
	}
	d.LinkerOpts = append(linkDirs, links...)
	return d, nil
}

func appendUnique(s []string, v string) []string {
	if slices.Contains(s, v) {
		return s
	}
	return append(s, v)
}

// String renders the descriptor as key = value lines. Empty keys are
// omitted.
func (d Descriptor) String() string {
	var b strings.Builder
	line := func(key string, vals []string) {
		if len(vals) > 0 {
			fmt.Fprintf(&b, "%s = %s\n", key, strings.Join(vals, " "))
		}
	}
	line("headers", d.Headers)
	line("compilerOpts", d.CompilerOpts)
	line("linkerOpts", d.LinkerOpts)
	line("staticLibraries", d.StaticLibraries)
	line("libraryPaths", d.LibraryPaths)
	fmt.Fprintf(&b, "package = %s\n", d.Package)
	return b.String()
}
