package parse

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// ExpandHeaders resolves header arguments to files. Each argument is a path
// or a doublestar pattern (`include/**/*.h`). Matches of one pattern are
// sorted; the result keeps argument order and drops duplicates. A plain path
// must exist; a pattern matching nothing is an error.
func ExpandHeaders(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, pattern := range patterns {
		if !hasMeta(pattern) {
			info, err := os.Stat(pattern)
			if err != nil {
				return nil, fmt.Errorf("header %s: %w", pattern, err)
			}
			if info.IsDir() {
				return nil, fmt.Errorf("header %s: is a directory", pattern)
			}
			add(pattern)
			continue
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("header pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("header pattern %s: no files match", pattern)
		}
		slices.Sort(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return out, nil
}

func hasMeta(p string) bool {
	for _, r := range p {
		switch r {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

// HeaderDirs returns the distinct directories of headers in first-seen
// order. They become the include path of the generated shim.
func HeaderDirs(headers []string) []string {
	var dirs []string
	for _, h := range headers {
		d := filepath.Dir(h)
		if !slices.Contains(dirs, d) {
			dirs = append(dirs, d)
		}
	}
	return dirs
}
