// Package loader resolves include/require targets to decoded programs.
package loader

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"quercus/ast"
	"quercus/errors"
)

// ModuleLoader resolves name against the including file's directory and
// returns the decoded program. Program.File holds the canonical path, which
// the engine uses as the identity of the module.
type ModuleLoader interface {
	Load(dir, name string) (*ast.Program, error)
}

// astExtensions are tried in order after the name as given
var astExtensions = []string{".yaml", ".yml", ".json"}

// FileLoader loads serialized ASTs from the file system. Lookups go to the
// including directory first, then to the include paths in order.
type FileLoader struct {
	includePaths []string

	mu    sync.RWMutex
	cache map[string]*ast.Program
}

// NewFileLoader creates a loader searching includePaths after the including
// directory
func NewFileLoader(includePaths ...string) *FileLoader {
	return &FileLoader{
		includePaths: includePaths,
		cache:        make(map[string]*ast.Program),
	}
}

// IncludePaths returns the configured search path
func (l *FileLoader) IncludePaths() []string {
	return l.includePaths
}

// Load implements ModuleLoader
func (l *FileLoader) Load(dir, name string) (*ast.Program, error) {
	resolved, err := l.Resolve(dir, name)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	prog, ok := l.cache[resolved]
	l.mu.RUnlock()
	if ok {
		return prog, nil
	}

	prog, err = ast.DecodeFile(resolved)
	if err != nil {
		return nil, errors.WrapError(err, errors.CodeIncludeFailed, fmt.Sprintf("failed to decode %s: %v", resolved, err))
	}
	prog.File = resolved

	l.mu.Lock()
	if cached, ok := l.cache[resolved]; ok {
		prog = cached
	} else {
		l.cache[resolved] = prog
	}
	l.mu.Unlock()
	return prog, nil
}

// Resolve returns the absolute path name refers to
func (l *FileLoader) Resolve(dir, name string) (string, error) {
	if name == "" {
		return "", errors.NewRuntimeError(errors.CodeIncludeFailed, "empty include path")
	}
	var roots []string
	if filepath.IsAbs(name) {
		roots = []string{""}
	} else {
		if dir != "" {
			roots = append(roots, dir)
		}
		roots = append(roots, l.includePaths...)
		if dir == "" {
			roots = append(roots, ".")
		}
	}

	for _, root := range roots {
		for _, candidate := range candidates(filepath.Join(root, name)) {
			info, err := os.Stat(candidate)
			if err != nil || info.IsDir() {
				continue
			}
			abs, err := filepath.Abs(candidate)
			if err != nil {
				return "", errors.WrapError(err, errors.CodeIncludeFailed, err.Error())
			}
			return abs, nil
		}
	}
	return "", errors.NewRuntimeError(errors.CodeIncludeFailed,
		fmt.Sprintf("failed opening '%s' for inclusion (include_path='%s')", name, strings.Join(l.includePaths, string(os.PathListSeparator))))
}

// candidates lists the files that may hold the AST of p: p itself, p with an
// AST extension appended, and p with its extension replaced
func candidates(p string) []string {
	out := []string{p}
	for _, ext := range astExtensions {
		out = append(out, p+ext)
	}
	if ext := filepath.Ext(p); ext != "" {
		base := strings.TrimSuffix(p, ext)
		for _, e := range astExtensions {
			if e != ext {
				out = append(out, base+e)
			}
		}
	}
	return out
}

// MapLoader serves programs from memory, keyed by slash separated path
type MapLoader struct {
	mu       sync.RWMutex
	programs map[string]*ast.Program
}

// NewMapLoader creates an empty in-memory loader
func NewMapLoader() *MapLoader {
	return &MapLoader{programs: make(map[string]*ast.Program)}
}

// Add registers prog under name; its File is set to the cleaned name
func (l *MapLoader) Add(name string, prog *ast.Program) {
	name = path.Clean("/" + name)
	prog.File = name
	l.mu.Lock()
	l.programs[name] = prog
	l.mu.Unlock()
}

// Load implements ModuleLoader
func (l *MapLoader) Load(dir, name string) (*ast.Program, error) {
	key := name
	if !strings.HasPrefix(name, "/") {
		key = path.Join("/", dir, name)
	}
	key = path.Clean(key)

	l.mu.RLock()
	defer l.mu.RUnlock()
	if prog, ok := l.programs[key]; ok {
		return prog, nil
	}
	return nil, errors.NewRuntimeError(errors.CodeIncludeFailed, fmt.Sprintf("failed opening '%s' for inclusion", name))
}
