// Package extractor traverses a Python syntax forest and emits the entity
// and relationship records the rest of the pipeline consumes. Qualified
// names are project-relative; references that cannot be resolved statically
// keep their literal text and are classified downstream.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/imyousuf/CodeWeaver/internal/graph"
)

// EmitFunc receives each record as it is produced. Returning an error stops
// the traversal; the walk is single-pass and not restartable.
type EmitFunc func(graph.Record) error

// Extractor walks the forest depth-first, containers before contents, and
// emits one record stream per analysis run.
type Extractor struct {
	forest   *Forest
	resolver *Resolver
	log      *slog.Logger
}

// New creates an Extractor over a loaded forest. A nil logger falls back to
// slog.Default().
func New(forest *Forest, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		forest:   forest,
		resolver: NewResolver(),
		log:      logger,
	}
}

// scopeCtx is the lexical scope a construct is visited in.
type scopeCtx struct {
	kind    graph.EntityKind
	qname   string
	classQN string // nearest enclosing class, for self-reference resolution
}

func (sc scopeCtx) ref(m *Module) refScope {
	return refScope{module: m, classQN: sc.classQN}
}

// Extract traverses every module in the forest and emits entity and
// relationship records. Files in a stable order, depth-first within a file.
func (e *Extractor) Extract(ctx context.Context, emit EmitFunc) error {
	for _, m := range e.forest.Modules {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := e.extractModule(m, emit); err != nil {
			return err
		}
	}
	return nil
}

func (e *Extractor) extractModule(m *Module, emit EmitFunc) error {
	name := m.QName
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	err := emit(&graph.EntityRecord{
		Kind:          graph.EntityModule,
		Name:          name,
		QualifiedName: m.QName,
		FilePath:      m.FilePath,
	})
	if err != nil {
		return err
	}

	sc := scopeCtx{kind: graph.EntityModule, qname: m.QName}
	return e.visitBody(m, m.Tree.RootNode(), sc, emit)
}

// visitBody dispatches the statements of a module, class, or function body.
// Compound statements are descended so that guarded definitions and
// assignments are still found.
func (e *Extractor) visitBody(m *Module, node *sitter.Node, sc scopeCtx, emit EmitFunc) error {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		var err error
		switch child.Type() {
		case "class_definition":
			err = e.visitClass(m, child, sc, emit)
		case "function_definition":
			err = e.visitFunction(m, child, sc, emit)
		case "decorated_definition":
			if def := child.ChildByFieldName("definition"); def != nil {
				switch def.Type() {
				case "class_definition":
					err = e.visitClass(m, def, sc, emit)
				case "function_definition":
					err = e.visitFunction(m, def, sc, emit)
				}
			}
		case "expression_statement":
			err = e.visitExpressionStatement(m, child, sc, emit)
		case "if_statement", "for_statement", "while_statement",
			"try_statement", "with_statement", "block",
			"else_clause", "elif_clause", "except_clause", "finally_clause":
			err = e.visitBody(m, child, sc, emit)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Extractor) visitClass(m *Module, node *sitter.Node, sc scopeCtx, emit EmitFunc) error {
	name := childIdentifier(m, node)
	if name == "" {
		return nil
	}
	qn, err := e.resolver.Scope(m, node)
	if err != nil {
		e.log.Warn("skipping class: resolution failed", "file", m.FilePath, "error", err)
		return nil
	}

	err = emit(&graph.EntityRecord{
		Kind:          graph.EntityClass,
		Name:          name,
		QualifiedName: qn,
		FilePath:      m.FilePath,
	})
	if err != nil {
		return err
	}

	if sc.kind == graph.EntityModule {
		err = emit(&graph.RelationshipRecord{
			Kind:              graph.RelContainsModuleClass,
			FromType:          graph.EntityModule,
			FromQualifiedName: sc.qname,
			ToType:            graph.EntityClass,
			ToQualifiedName:   qn,
		})
		if err != nil {
			return err
		}
	} else {
		e.log.Debug("nested class has no containment relationship",
			"class", qn, "enclosing", sc.qname)
	}

	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			base := supers.NamedChild(i)
			if !isNameExpr(base) {
				continue
			}
			to := e.forest.resolveName(sc.ref(m), nodeText(m, base))
			err = emit(&graph.RelationshipRecord{
				Kind:              graph.RelInherits,
				FromType:          graph.EntityClass,
				FromQualifiedName: qn,
				ToType:            graph.EntityClass,
				ToQualifiedName:   to,
			})
			if err != nil {
				return err
			}
		}
	}

	if body := node.ChildByFieldName("body"); body != nil {
		inner := scopeCtx{kind: graph.EntityClass, qname: qn, classQN: qn}
		return e.visitBody(m, body, inner, emit)
	}
	return nil
}

func (e *Extractor) visitFunction(m *Module, node *sitter.Node, sc scopeCtx, emit EmitFunc) error {
	name := childIdentifier(m, node)
	if name == "" {
		return nil
	}
	qn, err := e.resolver.Scope(m, node)
	if err != nil {
		e.log.Warn("skipping function: resolution failed", "file", m.FilePath, "error", err)
		return nil
	}

	kind := graph.EntityFunction
	if sc.kind == graph.EntityClass {
		kind = graph.EntityMethod
	}

	err = emit(&graph.EntityRecord{
		Kind:          kind,
		Name:          name,
		QualifiedName: qn,
		FilePath:      m.FilePath,
	})
	if err != nil {
		return err
	}

	switch sc.kind {
	case graph.EntityModule:
		err = emit(&graph.RelationshipRecord{
			Kind:              graph.RelContainsModuleFunction,
			FromType:          graph.EntityModule,
			FromQualifiedName: sc.qname,
			ToType:            graph.EntityFunction,
			ToQualifiedName:   qn,
		})
	case graph.EntityClass:
		err = emit(&graph.RelationshipRecord{
			Kind:              graph.RelContainsClassMethod,
			FromType:          graph.EntityClass,
			FromQualifiedName: sc.qname,
			ToType:            graph.EntityMethod,
			ToQualifiedName:   qn,
		})
	default:
		e.log.Debug("nested function has no containment relationship",
			"function", qn, "enclosing", sc.qname)
	}
	if err != nil {
		return err
	}

	inner := scopeCtx{kind: kind, qname: qn, classQN: sc.classQN}

	if err := e.emitParameters(m, node, inner, kind, qn, emit); err != nil {
		return err
	}
	if err := e.emitReturn(m, node, inner, kind, qn, emit); err != nil {
		return err
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	if err := e.emitCalls(m, body, inner, kind, qn, emit); err != nil {
		return err
	}
	return e.visitBody(m, body, inner, emit)
}

// emitParameters records one takes relationship per typed parameter.
func (e *Extractor) emitParameters(m *Module, node *sitter.Node, sc scopeCtx, kind graph.EntityKind, qn string, emit EmitFunc) error {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		param := params.NamedChild(i)
		switch param.Type() {
		case "typed_parameter", "typed_default_parameter":
		default:
			continue
		}
		typeNode := param.ChildByFieldName("type")
		if typeNode == nil {
			continue
		}
		to := e.forest.resolveName(sc.ref(m), nodeText(m, typeNode))
		err := emit(&graph.RelationshipRecord{
			Kind:              graph.RelTakes,
			FromType:          kind,
			FromQualifiedName: qn,
			ToType:            e.targetKind(to, graph.EntityClass),
			ToQualifiedName:   to,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// emitReturn records a returns relationship for an annotated return type, or
// a yields relationship when the body is a generator.
func (e *Extractor) emitReturn(m *Module, node *sitter.Node, sc scopeCtx, kind graph.EntityKind, qn string, emit EmitFunc) error {
	retNode := node.ChildByFieldName("return_type")
	if retNode == nil {
		return nil
	}
	to := e.forest.resolveName(sc.ref(m), nodeText(m, retNode))

	relKind := graph.RelReturns
	if body := node.ChildByFieldName("body"); body != nil && containsYield(body) {
		relKind = graph.RelYields
	}
	return emit(&graph.RelationshipRecord{
		Kind:              relKind,
		FromType:          kind,
		FromQualifiedName: qn,
		ToType:            e.targetKind(to, graph.EntityClass),
		ToQualifiedName:   to,
	})
}

// emitCalls records one calls relationship per call expression in the body,
// excluding calls inside nested definitions (those belong to the nested
// scope's own record stream).
func (e *Extractor) emitCalls(m *Module, node *sitter.Node, sc scopeCtx, kind graph.EntityKind, qn string, emit EmitFunc) error {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "function_definition", "class_definition":
			continue
		case "call":
			callee := calleeText(m, child)
			if callee == "" {
				e.log.Debug("call target is not a name expression", "caller", qn)
			} else {
				to := e.forest.resolveName(sc.ref(m), callee)
				err := emit(&graph.RelationshipRecord{
					Kind:              graph.RelCalls,
					FromType:          kind,
					FromQualifiedName: qn,
					ToType:            e.targetKind(to, graph.EntityFunction),
					ToQualifiedName:   to,
				})
				if err != nil {
					return err
				}
			}
		}
		if err := e.emitCalls(m, child, sc, kind, qn, emit); err != nil {
			return err
		}
	}
	return nil
}

// visitExpressionStatement extracts variable assignments: the entity, its
// containment relationship, and an instantiates relationship when the
// assigned value's inferred type resolves to a project class.
func (e *Extractor) visitExpressionStatement(m *Module, node *sitter.Node, sc scopeCtx, emit EmitFunc) error {
	if node.NamedChildCount() == 0 {
		return nil
	}
	assign := node.NamedChild(0)
	if assign.Type() != "assignment" {
		return nil
	}
	lhs := assign.ChildByFieldName("left")
	if lhs == nil || lhs.Type() != "identifier" {
		return nil
	}

	name := nodeText(m, lhs)
	varQN := sc.qname + "." + name

	err := emit(&graph.EntityRecord{
		Kind:          graph.EntityVariable,
		Name:          name,
		QualifiedName: varQN,
		Access:        graph.ClassifyAccess(name),
		FilePath:      m.FilePath,
	})
	if err != nil {
		return err
	}

	var containsKind graph.RelationKind
	switch sc.kind {
	case graph.EntityModule:
		containsKind = graph.RelContainsModuleVariable
	case graph.EntityClass:
		containsKind = graph.RelContainsClassVariable
	case graph.EntityFunction, graph.EntityMethod:
		containsKind = graph.RelContainsFunctionVariable
	default:
		// The dispatch above only ever visits module, class, and function
		// scopes; anything else is a contract violation.
		return fmt.Errorf("variable %s: unexpected enclosing scope kind %q", varQN, sc.kind)
	}
	err = emit(&graph.RelationshipRecord{
		Kind:              containsKind,
		FromType:          sc.kind,
		FromQualifiedName: sc.qname,
		ToType:            graph.EntityVariable,
		ToQualifiedName:   varQN,
	})
	if err != nil {
		return err
	}

	rhs := assign.ChildByFieldName("right")
	if rhs == nil || rhs.Type() != "call" {
		return nil
	}
	callee := calleeText(m, rhs)
	if callee == "" {
		return nil
	}
	typeQN, isClass := e.forest.inferCallType(sc.ref(m), callee)
	if !isClass {
		e.log.Debug("assigned value type not resolvable to a class",
			"variable", varQN, "inferred", typeQN)
		return nil
	}
	return emit(&graph.RelationshipRecord{
		Kind:              graph.RelInstantiates,
		FromType:          graph.EntityClass,
		FromQualifiedName: typeQN,
		ToType:            graph.EntityVariable,
		ToQualifiedName:   varQN,
	})
}

// targetKind picks the endpoint kind for a reference target: the defined
// kind when the forest knows the name, the fallback otherwise. The fallback
// kind determines which external placeholder the synthesizer creates.
func (e *Extractor) targetKind(qname string, fallback graph.EntityKind) graph.EntityKind {
	if k, ok := e.forest.DefKind(qname); ok {
		return k
	}
	return fallback
}
