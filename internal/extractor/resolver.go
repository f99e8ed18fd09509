package extractor

import (
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// ResolutionError reports that a qualified name could not be computed for a
// file or scope node. It is local to the offending node: callers skip the
// node (and its descendants) and continue.
type ResolutionError struct {
	Path   string
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve qualified name for %s: %s", e.Path, e.Reason)
}

// ModuleQName computes the canonical dotted path for a source file relative
// to the analysis root. The root prefix never appears in the result, so two
// analyses of the same project produce identical identifiers regardless of
// where the project is checked out.
//
//	pkg/mod.py      -> pkg.mod
//	pkg/__init__.py -> pkg
func ModuleQName(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", &ResolutionError{Path: path, Reason: "outside analysis root"}
	}

	rel = strings.TrimSuffix(filepath.ToSlash(rel), ".py")
	parts := strings.Split(rel, "/")
	if last := len(parts) - 1; parts[last] == "__init__" {
		parts = parts[:last]
	}
	if len(parts) == 0 {
		// A top-level __init__.py makes the root directory itself the package.
		return filepath.Base(root), nil
	}
	for _, p := range parts {
		if p == "" {
			return "", &ResolutionError{Path: path, Reason: "empty path segment"}
		}
	}
	return strings.Join(parts, "."), nil
}

// Resolver computes project-relative dotted paths for scope nodes. Each
// scope's qualified name is resolved exactly once and cached, so every read
// observes the same identifier no matter the traversal order.
type Resolver struct {
	cache map[*sitter.Node]string
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{cache: make(map[*sitter.Node]string)}
}

// Scope returns the qualified name of a class or function definition node
// within its module: the module's dotted path followed by the names of the
// enclosing definitions, outermost first.
func (r *Resolver) Scope(m *Module, node *sitter.Node) (string, error) {
	if qn, ok := r.cache[node]; ok {
		return qn, nil
	}

	var names []string
	for n := node; n != nil; n = n.Parent() {
		switch n.Type() {
		case "class_definition", "function_definition":
			name := childIdentifier(m, n)
			if name == "" {
				return "", &ResolutionError{Path: m.FilePath, Reason: "unnamed scope node"}
			}
			names = append(names, name)
		}
	}

	parts := []string{m.QName}
	for i := len(names) - 1; i >= 0; i-- {
		parts = append(parts, names[i])
	}
	qn := strings.Join(parts, ".")
	r.cache[node] = qn
	return qn, nil
}
