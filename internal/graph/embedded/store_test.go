package embedded

import (
	"context"
	"testing"

	"github.com/imyousuf/CodeWeaver/internal/graph"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestApplyBatchMergeIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	batch := []graph.Mutation{
		graph.MergeNode{
			Labels:        []string{"Class"},
			QualifiedName: "a.Foo",
			Props:         map[string]any{"name": "Foo"},
		},
		graph.MergeNode{
			Labels:        []string{"Method"},
			QualifiedName: "a.Foo.bar",
			Props:         map[string]any{"name": "bar"},
		},
		graph.MergeEdge{
			Type:      "CONTAINS_CLASS_METHOD",
			FromLabel: "Class", FromQN: "a.Foo",
			ToLabel: "Method", ToQN: "a.Foo.bar",
		},
	}
	for i := 0; i < 2; i++ {
		result, err := s.ApplyBatch(ctx, batch)
		if err != nil {
			t.Fatalf("apply %d returned error: %v", i, err)
		}
		if result.Applied != 3 || len(result.Skipped) != 0 {
			t.Fatalf("apply %d result = %+v, want 3 applied, 0 skipped", i, result)
		}
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.Nodes != 2 || stats.Edges != 1 {
		t.Errorf("stats = %+v, want 2 nodes, 1 edge", stats)
	}
}

func TestMergeNodeUpdatesProps(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := graph.MergeNode{
		Labels:        []string{"Class"},
		QualifiedName: "a.Foo",
		Props:         map[string]any{"name": "Foo", "file_path": "a.py"},
	}
	second := first
	second.Props = map[string]any{"name": "Foo", "file_path": "moved/a.py"}

	for _, m := range []graph.Mutation{first, second} {
		if _, err := s.ApplyBatch(ctx, []graph.Mutation{m}); err != nil {
			t.Fatalf("apply returned error: %v", err)
		}
	}

	props, labels, err := s.GetNode(ctx, "Class", "a.Foo")
	if err != nil {
		t.Fatalf("GetNode returned error: %v", err)
	}
	if props["file_path"] != "moved/a.py" {
		t.Errorf("file_path = %v, want %q", props["file_path"], "moved/a.py")
	}
	if len(labels) != 1 || labels[0] != "Class" {
		t.Errorf("labels = %v, want [Class]", labels)
	}
}

func TestMergeEdgeMissingEndpointIsSkipped(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	batch := []graph.Mutation{
		graph.MergeNode{Labels: []string{"Function"}, QualifiedName: "a.f"},
		graph.MergeEdge{
			Type:      "CALLS",
			FromLabel: "Function", FromQN: "a.f",
			ToLabel: "Function", ToQN: "a.ghost",
		},
		graph.MergeNode{Labels: []string{"Function"}, QualifiedName: "a.g"},
	}
	result, err := s.ApplyBatch(ctx, batch)
	if err != nil {
		t.Fatalf("ApplyBatch returned error: %v", err)
	}
	if result.Applied != 2 {
		t.Errorf("applied = %d, want 2", result.Applied)
	}
	if len(result.Skipped) != 1 {
		t.Fatalf("skipped = %d, want 1", len(result.Skipped))
	}
	missing, ok := result.Skipped[0].(*graph.MissingEndpointError)
	if !ok {
		t.Fatalf("skipped error type = %T, want *graph.MissingEndpointError", result.Skipped[0])
	}
	if missing.ToQN != "a.ghost" {
		t.Errorf("missing endpoint = %q, want %q", missing.ToQN, "a.ghost")
	}

	// The rest of the batch still committed.
	if _, _, err := s.GetNode(ctx, "Function", "a.g"); err != nil {
		t.Errorf("node after skipped edge not committed: %v", err)
	}
	found, err := s.HasEdge(ctx, "CALLS", "Function", "a.f", "Function", "a.ghost")
	if err != nil {
		t.Fatalf("HasEdge returned error: %v", err)
	}
	if found {
		t.Error("edge with missing endpoint must not be stored")
	}
}

func TestEndpointLookupByPrimaryLabelMatchesExternals(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// A placeholder node stores under its primary label, so an edge whose
	// endpoint kind is the base kind still resolves it.
	batch := []graph.Mutation{
		graph.MergeNode{Labels: []string{"Method"}, QualifiedName: "a.Foo.bar"},
		graph.MergeNode{
			Labels:        []string{"Function", "External"},
			QualifiedName: "os.path.join",
		},
		graph.MergeEdge{
			Type:      "CALLS",
			FromLabel: "Method", FromQN: "a.Foo.bar",
			ToLabel: "Function", ToQN: "os.path.join",
		},
	}
	result, err := s.ApplyBatch(ctx, batch)
	if err != nil {
		t.Fatalf("ApplyBatch returned error: %v", err)
	}
	if len(result.Skipped) != 0 {
		t.Fatalf("skipped = %v, want none", result.Skipped)
	}
	found, err := s.HasEdge(ctx, "CALLS", "Method", "a.Foo.bar", "Function", "os.path.join")
	if err != nil {
		t.Fatalf("HasEdge returned error: %v", err)
	}
	if !found {
		t.Error("edge to external placeholder not found")
	}
}
