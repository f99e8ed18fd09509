// Package synth materializes placeholder entities for references that point
// outside the analyzed project. It runs once per analysis, after extraction
// completes and before graph composition.
package synth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/imyousuf/CodeWeaver/internal/graph"
	"github.com/imyousuf/CodeWeaver/internal/stage"
)

// externalTargets fixes which relationship kinds are expected to reference
// external code, and which placeholder kind their targets synthesize into.
// The table is the single registration point for the mapping.
var externalTargets = []struct {
	Rel  graph.RelationKind
	Kind graph.EntityKind
}{
	{graph.RelCalls, graph.EntityExternalFunction},
	{graph.RelInherits, graph.EntityExternalClass},
	{graph.RelReturns, graph.EntityExternalClass},
	{graph.RelYields, graph.EntityExternalClass},
	{graph.RelInstantiates, graph.EntityExternalClass},
	{graph.RelTakes, graph.EntityExternalClass},
}

// Synthesizer scans staged relationships for out-of-project targets and
// stages one placeholder entity per distinct qualified name.
type Synthesizer struct {
	store *stage.Store
	log   *slog.Logger
}

// New creates a Synthesizer over the staging store. A nil logger falls back
// to slog.Default().
func New(store *stage.Store, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{store: store, log: logger}
}

// Run synthesizes external placeholder entities for every relationship kind
// in the external-targets table. prefixes is the set of top-level module
// prefixes belonging to the analyzed project; any target outside them is
// external. Re-running over the same relationships is idempotent: the
// staging store's unique natural key rejects duplicates, which are logged
// and skipped. Returns the number of newly synthesized entities.
func (s *Synthesizer) Run(ctx context.Context, prefixes []string) (int, error) {
	created := 0
	for _, pair := range externalTargets {
		targets, err := s.store.DistinctExternalTargets(ctx, pair.Rel, prefixes)
		if err != nil {
			return created, err
		}
		for _, qn := range targets {
			rec := &graph.EntityRecord{
				Kind:          pair.Kind,
				Name:          qn,
				QualifiedName: qn,
				FilePath:      graph.ExternalFilePath,
			}
			err := s.store.InsertEntity(ctx, rec)
			if errors.Is(err, stage.ErrDuplicateKey) {
				s.log.Debug("external entity already synthesized",
					"qualified_name", qn, "kind", pair.Kind)
				continue
			}
			if err != nil {
				return created, err
			}
			created++
			s.log.Debug("synthesized external entity",
				"qualified_name", qn, "kind", pair.Kind)
		}
	}
	return created, nil
}
