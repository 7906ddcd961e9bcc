package rules

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/cbind/internal/filter"
	"github.com/roach88/cbind/internal/mapping"
)

// Set is the rules loaded from one or more sources, in application order.
type Set struct {
	Rules []*Rule
	Files []string
}

// Mappers returns the rules as mappers, in order.
func (s *Set) Mappers() []mapping.Mapper {
	out := make([]mapping.Mapper, len(s.Rules))
	for i, r := range s.Rules {
		out[i] = r
	}
	return out
}

// Load compiles the rule files and directories at paths, in order. A
// directory is loaded as one CUE package. Every error is collected; the Set
// holds the rules that compiled.
func Load(paths []string) (*Set, []error) {
	set := &Set{}
	var errs []error
	seen := make(map[string]string)

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			errs = append(errs, &CompileError{Field: "path", Message: fmt.Sprintf("rules not found: %s", p)})
			continue
		}

		var v cue.Value
		if info.IsDir() {
			files, err := FindCUEFiles(p)
			if err != nil {
				errs = append(errs, &CompileError{Field: "path", Message: fmt.Sprintf("scan %s: %v", p, err)})
				continue
			}
			if len(files) == 0 {
				errs = append(errs, &CompileError{Field: "path", Message: fmt.Sprintf("no CUE files found in %s", p)})
				continue
			}
			set.Files = append(set.Files, files...)
			if v, err = loadDir(p); err != nil {
				errs = append(errs, err)
				continue
			}
		} else {
			src, err := os.ReadFile(p)
			if err != nil {
				errs = append(errs, &CompileError{Field: "path", Message: fmt.Sprintf("read %s: %v", p, err)})
				continue
			}
			set.Files = append(set.Files, p)
			v = cuecontext.New().CompileBytes(src, cue.Filename(p))
		}

		rules, cerrs := Compile(v)
		errs = append(errs, cerrs...)
		for _, r := range rules {
			if prev, dup := seen[r.name]; dup {
				errs = append(errs, &CompileError{Rule: r.name, Field: "rule", Message: "duplicate rule, first defined in " + prev, Pos: r.pos})
				continue
			}
			seen[r.name] = p
			set.Rules = append(set.Rules, r)
		}
	}
	return set, errs
}

func loadDir(dir string) (cue.Value, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, &CompileError{Field: "cue", Message: "no CUE instances loaded from " + dir}
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, &CompileError{Field: "cue", Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}
	return cuecontext.New().BuildInstance(inst), nil
}

// CompileString compiles rules from CUE source named filename.
func CompileString(filename, src string) ([]*Rule, []error) {
	return Compile(cuecontext.New().CompileString(src, cue.Filename(filename)))
}

// ParseFilter compiles a filter written in rule filter syntax, without the
// surrounding braces:
//
//	kind: "class", class_qualified: starts_with: "geo::"
//
// An empty source and "all" match everything.
func ParseFilter(src string) (filter.Predicate, error) {
	src = strings.TrimSpace(src)
	if src == "" || src == "all" || src == `"all"` {
		return filter.All{}, nil
	}
	v := cuecontext.New().CompileString(src, cue.Filename("filter"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	pred, err := compileFilter("", v)
	if err != nil {
		return nil, err
	}
	if res := filter.Validate(pred); !res.Valid() {
		return nil, &CompileError{Field: "filter", Message: strings.Join(res.Errors, "; "), Pos: v.Pos()}
	}
	return pred, nil
}

// Compile compiles every rule under the top-level rule struct, in
// declaration order.
func Compile(v cue.Value) ([]*Rule, []error) {
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}
	rv := v.LookupPath(cue.ParsePath("rule"))
	if !rv.Exists() {
		return nil, []error{&CompileError{Field: "rule", Message: "no rules defined", Pos: v.Pos()}}
	}
	it, err := rv.Fields()
	if err != nil {
		return nil, []error{&CompileError{Field: "rule", Message: "rule must be a struct of named rules", Pos: rv.Pos()}}
	}

	var rules []*Rule
	var errs []error
	for it.Next() {
		r, err := CompileRule(it.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rules = append(rules, r)
	}
	return rules, errs
}

// FindCUEFiles walks dir and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
