package graph

import "strings"

// EntityKind represents the kind of entity extracted from source code.
type EntityKind string

const (
	EntityModule           EntityKind = "module"
	EntityClass            EntityKind = "class"
	EntityFunction         EntityKind = "function"
	EntityMethod           EntityKind = "method"
	EntityVariable         EntityKind = "variable"
	EntityExternalFunction EntityKind = "external_function"
	EntityExternalClass    EntityKind = "external_class"
)

// RelationKind represents a relationship between two extracted entities.
type RelationKind string

const (
	RelCalls                    RelationKind = "calls"
	RelInherits                 RelationKind = "inherits"
	RelContainsModuleClass      RelationKind = "contains_module_class"
	RelContainsModuleFunction   RelationKind = "contains_module_function"
	RelContainsClassMethod      RelationKind = "contains_class_method"
	RelContainsClassVariable    RelationKind = "contains_class_variable"
	RelContainsFunctionVariable RelationKind = "contains_function_variable"
	RelContainsModuleVariable   RelationKind = "contains_module_variable"
	RelTakes                    RelationKind = "takes"
	RelReturns                  RelationKind = "returns"
	RelYields                   RelationKind = "yields"
	RelInstantiates             RelationKind = "instantiates"
)

// Access is the visibility of a variable, derived from Python naming convention.
type Access string

const (
	AccessPublic    Access = "public"
	AccessProtected Access = "protected"
	AccessPrivate   Access = "private"
)

// ExternalLabel marks placeholder nodes for code referenced outside the
// analyzed project.
const ExternalLabel = "External"

// ExternalFilePath is the sentinel file path of synthesized external entities.
const ExternalFilePath = "<external>"

// EntityKinds lists every entity kind in a fixed order. The enumeration is
// the single registration point for entity kinds; collections are staged and
// composed in this order.
var EntityKinds = []EntityKind{
	EntityModule,
	EntityClass,
	EntityFunction,
	EntityMethod,
	EntityVariable,
	EntityExternalFunction,
	EntityExternalClass,
}

// RelationKinds lists every relationship kind in a fixed order.
var RelationKinds = []RelationKind{
	RelCalls,
	RelInherits,
	RelContainsModuleClass,
	RelContainsModuleFunction,
	RelContainsClassMethod,
	RelContainsClassVariable,
	RelContainsFunctionVariable,
	RelContainsModuleVariable,
	RelTakes,
	RelReturns,
	RelYields,
	RelInstantiates,
}

// entityLabels maps each entity kind to its primary node label. External
// kinds share the primary label of the kind they mirror so that endpoint
// lookups by label match placeholder nodes transparently.
var entityLabels = map[EntityKind]string{
	EntityModule:           "Module",
	EntityClass:            "Class",
	EntityFunction:         "Function",
	EntityMethod:           "Method",
	EntityVariable:         "Variable",
	EntityExternalFunction: "Function",
	EntityExternalClass:    "Class",
}

// relationEdgeTypes maps each relationship kind to its graph edge type.
var relationEdgeTypes = map[RelationKind]string{
	RelCalls:                    "CALLS",
	RelInherits:                 "INHERITS",
	RelContainsModuleClass:      "CONTAINS_MODULE_CLASS",
	RelContainsModuleFunction:   "CONTAINS_MODULE_FUNCTION",
	RelContainsClassMethod:      "CONTAINS_CLASS_METHOD",
	RelContainsClassVariable:    "CONTAINS_CLASS_VARIABLE",
	RelContainsFunctionVariable: "CONTAINS_FUNCTION_VARIABLE",
	RelContainsModuleVariable:   "CONTAINS_MODULE_VARIABLE",
	RelTakes:                    "TAKES",
	RelReturns:                  "RETURNS",
	RelYields:                   "YIELDS",
	RelInstantiates:             "INSTANTIATES",
}

// IsExternal reports whether the kind is a synthesized placeholder kind.
func (k EntityKind) IsExternal() bool {
	return k == EntityExternalFunction || k == EntityExternalClass
}

// Label returns the primary node label used for endpoint matching.
func (k EntityKind) Label() string { return entityLabels[k] }

// Labels returns all node labels for the kind: the primary label plus the
// External marker for placeholder kinds.
func (k EntityKind) Labels() []string {
	if k.IsExternal() {
		return []string{entityLabels[k], ExternalLabel}
	}
	return []string{entityLabels[k]}
}

// Collection returns the staging collection name for the kind.
func (k EntityKind) Collection() string { return string(k) + "_ent" }

// ExternalKindFor returns the placeholder counterpart of a base kind, or
// false when the base kind has no external mirror.
func ExternalKindFor(base EntityKind) (EntityKind, bool) {
	switch base {
	case EntityFunction:
		return EntityExternalFunction, true
	case EntityClass:
		return EntityExternalClass, true
	}
	return "", false
}

// EdgeType returns the graph edge type for the relationship kind.
func (k RelationKind) EdgeType() string { return relationEdgeTypes[k] }

// Collection returns the staging collection name for the relationship kind.
func (k RelationKind) Collection() string { return string(k) + "_rel" }

// ClassifyAccess derives variable visibility from its name: a double
// underscore prefix without a dunder suffix means private, a single
// underscore prefix means protected, everything else (dunder names
// included) is public.
func ClassifyAccess(name string) Access {
	if strings.HasPrefix(name, "__") {
		if strings.HasSuffix(name, "__") {
			return AccessPublic
		}
		return AccessPrivate
	}
	if strings.HasPrefix(name, "_") {
		return AccessProtected
	}
	return AccessPublic
}

// Record is implemented by EntityRecord and RelationshipRecord; Collection
// names the staging collection the record belongs to.
type Record interface {
	Collection() string
}

// EntityRecord is the canonical shape of an extracted program element.
// Records are immutable once emitted by the extractor or synthesizer.
type EntityRecord struct {
	Kind          EntityKind `json:"kind"`
	Name          string     `json:"name"`
	QualifiedName string     `json:"qualified_name"`
	Access        Access     `json:"access,omitempty"`
	FilePath      string     `json:"file_path"`
}

// Collection returns the staging collection for the entity's kind.
func (e *EntityRecord) Collection() string { return e.Kind.Collection() }

// RelationshipRecord is the canonical shape of a relationship between two
// entities. Endpoints are identified by entity kind and qualified name; both
// endpoints must exist as nodes (materialized or synthesized) before the
// relationship is composed into the graph.
type RelationshipRecord struct {
	Kind              RelationKind      `json:"kind"`
	FromType          EntityKind        `json:"from_type"`
	FromQualifiedName string            `json:"from_qualified_name"`
	ToType            EntityKind        `json:"to_type"`
	ToQualifiedName   string            `json:"to_qualified_name"`
	Props             map[string]string `json:"props,omitempty"`
}

// Collection returns the staging collection for the relationship's kind.
func (r *RelationshipRecord) Collection() string { return r.Kind.Collection() }
