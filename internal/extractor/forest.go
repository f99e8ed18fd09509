package extractor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/imyousuf/CodeWeaver/internal/graph"
)

// Module is one parsed source file together with its canonical dotted path
// and the import bindings visible at module scope.
type Module struct {
	// FilePath is the file's path relative to the analysis root. It is the
	// path recorded on every entity extracted from this module.
	FilePath string
	// QName is the module's project-relative dotted path.
	QName string
	// Source is the raw file content.
	Source []byte
	// Tree is the parsed syntax tree.
	Tree *sitter.Tree
	// Imports maps a locally bound name to the qualified name it refers to.
	Imports map[string]string
}

// Forest holds the parsed trees for every source file under the analysis
// root, plus a forest-wide index of definitions used for static name
// inference. Loading the forest up front is what makes qualified-name
// resolution order-independent: every definition is known before any
// reference is visited.
type Forest struct {
	Root    string
	Modules []*Module

	// defs maps a qualified name to the kind of scope it defines.
	defs map[string]graph.EntityKind

	log *slog.Logger
}

// LoadForest walks root, parses every Python file, and builds the
// definition index. Files that fail qualified-name resolution are skipped
// and logged; a file that fails to parse is likewise skipped rather than
// failing the whole load.
func LoadForest(ctx context.Context, root string, logger *slog.Logger) (*Forest, error) {
	if logger == nil {
		logger = slog.Default()
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve analysis root %s: %w", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat analysis root %s: %w", absRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("analysis root %s is not a directory", absRoot)
	}

	f := &Forest{
		Root: absRoot,
		defs: make(map[string]graph.EntityKind),
		log:  logger,
	}

	var files []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible entries
		}
		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			if name := d.Name(); strings.HasPrefix(name, ".") || name == "__pycache__" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".py") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", absRoot, err)
	}
	sort.Strings(files)

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	for _, path := range files {
		m, err := f.loadFile(ctx, parser, path)
		if err != nil {
			var resErr *ResolutionError
			if errors.As(err, &resErr) {
				f.log.Warn("skipping file: qualified name resolution failed",
					"file", path, "error", err)
				continue
			}
			f.log.Warn("skipping file: parse failed", "file", path, "error", err)
			continue
		}
		f.Modules = append(f.Modules, m)
	}

	for _, m := range f.Modules {
		f.indexModule(m)
	}
	for _, m := range f.Modules {
		m.Imports = collectImports(m)
	}

	return f, nil
}

func (f *Forest) loadFile(ctx context.Context, parser *sitter.Parser, path string) (*Module, error) {
	qname, err := ModuleQName(f.Root, path)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(f.Root, path)
	if err != nil {
		return nil, &ResolutionError{Path: path, Reason: "outside analysis root"}
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return &Module{
		FilePath: filepath.ToSlash(rel),
		QName:    qname,
		Source:   source,
		Tree:     tree,
	}, nil
}

// indexModule registers the module and every class and function it defines
// in the forest-wide definition index.
func (f *Forest) indexModule(m *Module) {
	f.defs[m.QName] = graph.EntityModule
	f.indexScope(m, m.Tree.RootNode(), m.QName, false)
}

func (f *Forest) indexScope(m *Module, node *sitter.Node, scopeQN string, inClass bool) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "class_definition":
			if name := childIdentifier(m, child); name != "" {
				qn := scopeQN + "." + name
				f.defs[qn] = graph.EntityClass
				if body := child.ChildByFieldName("body"); body != nil {
					f.indexScope(m, body, qn, true)
				}
			}
		case "function_definition":
			if name := childIdentifier(m, child); name != "" {
				qn := scopeQN + "." + name
				if inClass {
					f.defs[qn] = graph.EntityMethod
				} else {
					f.defs[qn] = graph.EntityFunction
				}
			}
		case "decorated_definition":
			// The wrapped definition is a named child; recursing over the
			// decorated node's children indexes it in place.
			f.indexScope(m, child, scopeQN, inClass)
		}
	}
}

// DefKind returns the kind of scope a qualified name defines within the
// analyzed project, or false when the name is not defined in the forest.
func (f *Forest) DefKind(qname string) (graph.EntityKind, bool) {
	k, ok := f.defs[qname]
	return k, ok
}

// ModulePrefixes returns the sorted, distinct top-level dotted prefixes of
// the analyzed modules. A qualified name belongs to the project exactly when
// it starts with one of these prefixes; everything else is an external
// reference.
func (f *Forest) ModulePrefixes() []string {
	seen := make(map[string]struct{})
	var prefixes []string
	for _, m := range f.Modules {
		top := topSegment(m.QName)
		if _, ok := seen[top]; ok {
			continue
		}
		seen[top] = struct{}{}
		prefixes = append(prefixes, top)
	}
	sort.Strings(prefixes)
	return prefixes
}

// Defined reports whether a qualified name resolves to any definition in
// the forest.
func (f *Forest) Defined(qname string) bool {
	_, ok := f.defs[qname]
	return ok
}

func topSegment(qname string) string {
	if i := strings.IndexByte(qname, '.'); i >= 0 {
		return qname[:i]
	}
	return qname
}

// collectImports builds the module's import bindings: each import statement
// binds a local name to the qualified name it refers to.
func collectImports(m *Module) map[string]string {
	imports := make(map[string]string)
	root := m.Tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "import_statement":
			collectPlainImport(m, child, imports)
		case "import_from_statement":
			collectFromImport(m, child, imports)
		}
	}
	return imports
}

// collectPlainImport handles `import a.b` (binds "a") and
// `import a.b as x` (binds "x" to "a.b").
func collectPlainImport(m *Module, node *sitter.Node, imports map[string]string) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			target := nodeText(m, child)
			imports[topSegment(target)] = topSegment(target)
		case "aliased_import":
			name := child.ChildByFieldName("name")
			alias := child.ChildByFieldName("alias")
			if name != nil && alias != nil {
				imports[nodeText(m, alias)] = nodeText(m, name)
			}
		}
	}
}

// collectFromImport handles `from a.b import c [as x]`, including relative
// imports resolved against the importing module's package path.
func collectFromImport(m *Module, node *sitter.Node, imports map[string]string) {
	moduleName := ""
	modNode := node.ChildByFieldName("module_name")
	if modNode != nil {
		switch modNode.Type() {
		case "dotted_name":
			moduleName = nodeText(m, modNode)
		case "relative_import":
			moduleName = resolveRelativeImport(m, nodeText(m, modNode))
		}
	}
	if moduleName == "" {
		return
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child == modNode {
			continue
		}
		switch child.Type() {
		case "dotted_name":
			name := nodeText(m, child)
			imports[name] = moduleName + "." + name
		case "aliased_import":
			name := child.ChildByFieldName("name")
			alias := child.ChildByFieldName("alias")
			if name != nil && alias != nil {
				imports[nodeText(m, alias)] = moduleName + "." + nodeText(m, name)
			}
		case "wildcard_import":
			// `from x import *` binds names this index cannot enumerate.
		}
	}
}

// resolveRelativeImport turns `.sub` or `..pkg.sub` into a dotted path
// anchored at the importing module's package.
func resolveRelativeImport(m *Module, ref string) string {
	dots := 0
	for dots < len(ref) && ref[dots] == '.' {
		dots++
	}
	rest := ref[dots:]

	parts := strings.Split(m.QName, ".")
	// One dot refers to the current package, each extra dot goes up one level.
	drop := dots
	if drop > len(parts) {
		return rest
	}
	base := parts[:len(parts)-drop]
	if rest == "" {
		return strings.Join(base, ".")
	}
	if len(base) == 0 {
		return rest
	}
	return strings.Join(base, ".") + "." + rest
}

func childIdentifier(m *Module, node *sitter.Node) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return nodeText(m, name)
	}
	return ""
}

func nodeText(m *Module, node *sitter.Node) string {
	return node.Content(m.Source)
}
