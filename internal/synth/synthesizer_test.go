package synth

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/imyousuf/CodeWeaver/internal/graph"
	"github.com/imyousuf/CodeWeaver/internal/stage"
)

func openTestStore(t *testing.T) *stage.Store {
	t.Helper()
	s, err := stage.Open(filepath.Join(t.TempDir(), "stage.db"), nil)
	if err != nil {
		t.Fatalf("open staging store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertRel(t *testing.T, s *stage.Store, kind graph.RelationKind, from, to string) {
	t.Helper()
	rec := &graph.RelationshipRecord{
		Kind:              kind,
		FromType:          graph.EntityFunction,
		FromQualifiedName: from,
		ToType:            graph.EntityFunction,
		ToQualifiedName:   to,
	}
	if kind == graph.RelInherits {
		rec.FromType = graph.EntityClass
		rec.ToType = graph.EntityClass
	}
	if err := s.InsertRelationship(context.Background(), rec); err != nil {
		t.Fatalf("insert %s relationship: %v", kind, err)
	}
}

func TestRunSynthesizesPlaceholders(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	insertRel(t, s, graph.RelCalls, "a.f", "os.path.join")
	insertRel(t, s, graph.RelCalls, "a.g", "os.path.join")
	insertRel(t, s, graph.RelCalls, "a.f", "a.g")
	insertRel(t, s, graph.RelInherits, "a.Foo", "abc.ABC")

	created, err := New(s, nil).Run(ctx, []string{"a"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	// os.path.join once, despite two references, plus abc.ABC.
	if created != 2 {
		t.Fatalf("created = %d, want 2", created)
	}

	var funcs, classes []*graph.EntityRecord
	collect := func(dst *[]*graph.EntityRecord) func(*graph.EntityRecord) error {
		return func(rec *graph.EntityRecord) error {
			*dst = append(*dst, rec)
			return nil
		}
	}
	if err := s.Entities(ctx, graph.EntityExternalFunction, collect(&funcs)); err != nil {
		t.Fatalf("stream external functions: %v", err)
	}
	if err := s.Entities(ctx, graph.EntityExternalClass, collect(&classes)); err != nil {
		t.Fatalf("stream external classes: %v", err)
	}

	if len(funcs) != 1 {
		t.Fatalf("external functions = %d, want 1", len(funcs))
	}
	ext := funcs[0]
	if ext.QualifiedName != "os.path.join" {
		t.Errorf("external function qname = %q, want %q", ext.QualifiedName, "os.path.join")
	}
	if ext.Name != "os.path.join" {
		t.Errorf("external function name = %q, want the full qualified name", ext.Name)
	}
	if ext.FilePath != graph.ExternalFilePath {
		t.Errorf("external function file path = %q, want %q", ext.FilePath, graph.ExternalFilePath)
	}

	if len(classes) != 1 || classes[0].QualifiedName != "abc.ABC" {
		t.Errorf("external classes = %+v, want one abc.ABC placeholder", classes)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	insertRel(t, s, graph.RelCalls, "a.f", "os.path.join")
	insertRel(t, s, graph.RelTakes, "a.f", "typing.Any")

	syn := New(s, nil)
	created, err := syn.Run(ctx, []string{"a"})
	if err != nil {
		t.Fatalf("first run returned error: %v", err)
	}
	if created != 2 {
		t.Fatalf("first run created = %d, want 2", created)
	}

	created, err = syn.Run(ctx, []string{"a"})
	if err != nil {
		t.Fatalf("second run returned error: %v", err)
	}
	if created != 0 {
		t.Errorf("second run created = %d, want 0", created)
	}
}

func TestRunIgnoresContainmentRelationships(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Containment targets are always project-internal entities; the
	// synthesizer never scans those collections.
	insertRel(t, s, graph.RelContainsModuleClass, "other", "other.Foo")

	created, err := New(s, nil).Run(ctx, []string{"a"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if created != 0 {
		t.Errorf("created = %d, want 0", created)
	}
}
