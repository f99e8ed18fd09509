package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/imyousuf/CodeWeaver/internal/graph"
)

// refScope carries the lexical context a reference is resolved in.
type refScope struct {
	module *Module
	// classQN is the qualified name of the enclosing class, when any.
	classQN string
}

// resolveName statically resolves a dotted reference to a qualified name.
// Resolution tries, in order: the enclosing class (for self-references),
// the module's import bindings, and definitions local to the module. When
// none applies the literal reference text is returned unchanged; downstream
// external-entity synthesis decides whether such a name points outside the
// project. This is a heuristic boundary, not guaranteed-exact.
func (f *Forest) resolveName(s refScope, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ref
	}

	head, rest := splitHead(ref)

	if head == "self" && s.classQN != "" {
		if rest == "" {
			return s.classQN
		}
		return s.classQN + "." + rest
	}

	if target, ok := s.module.Imports[head]; ok {
		if rest == "" {
			return target
		}
		return target + "." + rest
	}

	if f.Defined(s.module.QName + "." + head) {
		return s.module.QName + "." + ref
	}

	return ref
}

// inferCallType resolves the type produced by a call expression. A call
// whose callee resolves to a class defined in the forest instantiates that
// class; anything else is inconclusive.
func (f *Forest) inferCallType(s refScope, callee string) (string, bool) {
	qn := f.resolveName(s, callee)
	if kind, ok := f.DefKind(qn); ok && kind == graph.EntityClass {
		return qn, true
	}
	return qn, false
}

func splitHead(ref string) (head, rest string) {
	if i := strings.IndexByte(ref, '.'); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return ref, ""
}

// calleeText extracts the dotted reference text of a call expression's
// callee. Calls through subscripts, literals, or other non-name expressions
// yield an empty string and are not recorded.
func calleeText(m *Module, call *sitter.Node) string {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	if isNameExpr(fn) {
		return nodeText(m, fn)
	}
	return ""
}

// isNameExpr reports whether a node is an identifier or a chain of
// attribute accesses over identifiers (a, a.b, a.b.c).
func isNameExpr(node *sitter.Node) bool {
	switch node.Type() {
	case "identifier":
		return true
	case "attribute":
		obj := node.ChildByFieldName("object")
		attr := node.ChildByFieldName("attribute")
		return obj != nil && attr != nil && isNameExpr(obj) && attr.Type() == "identifier"
	}
	return false
}

// containsYield reports whether a function body contains a yield expression
// outside any nested function definition.
func containsYield(node *sitter.Node) bool {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "yield":
			return true
		case "function_definition", "class_definition":
			continue
		}
		if containsYield(child) {
			return true
		}
	}
	return false
}
