package driver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/imyousuf/CodeWeaver/internal/graph"
	"github.com/imyousuf/CodeWeaver/internal/graph/embedded"
	"github.com/imyousuf/CodeWeaver/internal/stage"
)

const sourceA = `import os


class Foo:
    def bar(self):
        os.path.join("x", "y")
`

const sourceB = `from a import Foo

v = Foo()
`

func TestRunFullPipeline(t *testing.T) {
	root := t.TempDir()
	for name, content := range map[string]string{"a.py": sourceA, "b.py": sourceB} {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	stageStore, err := stage.Open(filepath.Join(t.TempDir(), "stage.db"), nil)
	if err != nil {
		t.Fatalf("open staging store: %v", err)
	}
	defer stageStore.Close()

	graphStore, err := embedded.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("open graph store: %v", err)
	}
	defer graphStore.Close()

	ctx := context.Background()
	summary, err := Run(ctx, Config{
		Root:  root,
		Stage: stageStore,
		Graph: graphStore,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Files != 2 {
		t.Errorf("files = %d, want 2", summary.Files)
	}
	// module a, module b, class a.Foo, method a.Foo.bar, variable b.v,
	// plus the synthesized os.path.join placeholder.
	if summary.Entities != 6 {
		t.Errorf("entities = %d, want 6", summary.Entities)
	}
	if summary.Relationships != 5 {
		t.Errorf("relationships = %d, want 5", summary.Relationships)
	}
	if summary.ExternalEntities != 1 {
		t.Errorf("external entities = %d, want 1", summary.ExternalEntities)
	}
	if summary.Duplicates != 0 {
		t.Errorf("duplicates = %d, want 0", summary.Duplicates)
	}
	if summary.ComposedEntities != 6 || summary.ComposedRelations != 5 {
		t.Errorf("composed = %d entities, %d relationships, want 6, 5",
			summary.ComposedEntities, summary.ComposedRelations)
	}
	if summary.SkippedRelations != 0 {
		t.Errorf("skipped relationships = %d, want 0", summary.SkippedRelations)
	}

	stats, err := graphStore.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.Nodes != 6 || stats.Edges != 5 {
		t.Errorf("stats = %+v, want 6 nodes, 5 edges", stats)
	}

	props, labels, err := graphStore.GetNode(ctx, "Class", "a.Foo")
	if err != nil {
		t.Fatalf("get node a.Foo: %v", err)
	}
	if props["name"] != "Foo" || props["file_path"] != "a.py" {
		t.Errorf("a.Foo props = %v", props)
	}
	if len(labels) != 1 || labels[0] != "Class" {
		t.Errorf("a.Foo labels = %v, want [Class]", labels)
	}

	_, labels, err = graphStore.GetNode(ctx, "Function", "os.path.join")
	if err != nil {
		t.Fatalf("get node os.path.join: %v", err)
	}
	if len(labels) != 2 || labels[1] != graph.ExternalLabel {
		t.Errorf("os.path.join labels = %v, want [Function External]", labels)
	}

	edges := []struct {
		typ, fromLabel, from, toLabel, to string
	}{
		{"CONTAINS_MODULE_CLASS", "Module", "a", "Class", "a.Foo"},
		{"CONTAINS_CLASS_METHOD", "Class", "a.Foo", "Method", "a.Foo.bar"},
		{"CALLS", "Method", "a.Foo.bar", "Function", "os.path.join"},
		{"CONTAINS_MODULE_VARIABLE", "Module", "b", "Variable", "b.v"},
		{"INSTANTIATES", "Class", "a.Foo", "Variable", "b.v"},
	}
	for _, e := range edges {
		found, err := graphStore.HasEdge(ctx, e.typ, e.fromLabel, e.from, e.toLabel, e.to)
		if err != nil {
			t.Fatalf("check edge %s: %v", e.typ, err)
		}
		if !found {
			t.Errorf("missing edge %s(%s -> %s)", e.typ, e.from, e.to)
		}
	}
}

func TestRunIsRepeatable(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.py"), []byte(sourceA), 0o644); err != nil {
		t.Fatalf("write a.py: %v", err)
	}

	stageStore, err := stage.Open(filepath.Join(t.TempDir(), "stage.db"), nil)
	if err != nil {
		t.Fatalf("open staging store: %v", err)
	}
	defer stageStore.Close()

	graphStore, err := embedded.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("open graph store: %v", err)
	}
	defer graphStore.Close()

	ctx := context.Background()
	cfg := Config{Root: root, Stage: stageStore, Graph: graphStore}

	first, err := Run(ctx, cfg)
	if err != nil {
		t.Fatalf("first run returned error: %v", err)
	}
	second, err := Run(ctx, cfg)
	if err != nil {
		t.Fatalf("second run returned error: %v", err)
	}

	// The staging store resets per run and graph writes merge, so a rerun
	// reproduces the first run exactly and leaves the graph unchanged.
	if *first != *second {
		t.Errorf("summaries differ: first %+v, second %+v", first, second)
	}
	stats, err := graphStore.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.Nodes != first.Entities || int(stats.Edges) != first.ComposedRelations {
		t.Errorf("stats after rerun = %+v, want %d nodes, %d edges",
			stats, first.Entities, first.ComposedRelations)
	}
}
