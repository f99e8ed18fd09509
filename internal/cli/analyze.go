package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/imyousuf/CodeWeaver/internal/config"
	"github.com/imyousuf/CodeWeaver/internal/driver"
	"github.com/imyousuf/CodeWeaver/internal/stage"
)

func newAnalyzeCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Extract records and compose the knowledge graph",
		Long: `Analyze the configured Python codebase: extract entity and relationship
records, stage them, synthesize placeholders for external references, and
compose everything into the graph store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if root != "" {
				cfg.Analysis.Root = root
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()

			stageStore, err := stage.Open(cfg.Stage.Path, slog.Default())
			if err != nil {
				return err
			}
			defer stageStore.Close()

			graphStore, err := openGraphStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer graphStore.Close()

			summary, err := driver.Run(ctx, driver.Config{
				Root:      cfg.Analysis.Root,
				Stage:     stageStore,
				Graph:     graphStore,
				ChunkSize: cfg.Analysis.ChunkSize,
				Logger:    slog.Default(),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Analyzed %d files\n", summary.Files)
			fmt.Fprintf(out, "  entities:      %d (%d external)\n", summary.Entities, summary.ExternalEntities)
			fmt.Fprintf(out, "  relationships: %d\n", summary.Relationships)
			fmt.Fprintf(out, "  composed:      %d nodes, %d edges (%d skipped)\n",
				summary.ComposedEntities, summary.ComposedRelations, summary.SkippedRelations)
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "analysis root (overrides config)")
	return cmd
}
