package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imyousuf/CodeWeaver/internal/config"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show graph statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := openGraphStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Graph storage: %s\n", cfg.Graph.Storage)
			fmt.Fprintf(out, "  nodes: %d\n", stats.Nodes)
			fmt.Fprintf(out, "  edges: %d\n", stats.Edges)
			return nil
		},
	}
}
