package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/imyousuf/CodeWeaver/internal/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [root]",
		Short: "Initialize a .codeweaver.yaml config file",
		Long: `Initialize a CodeWeaver configuration in the current directory.

Writes .codeweaver.yaml with the analysis root (the given directory, or the
current directory) and embedded graph storage defaults.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}

			root := cwd
			if len(args) == 1 {
				root, err = filepath.Abs(args[0])
				if err != nil {
					return fmt.Errorf("resolve analysis root: %w", err)
				}
			}

			path := filepath.Join(cwd, config.DefaultConfigFile+"."+config.DefaultConfigType)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}

			cfg := &config.Config{}
			cfg.Analysis.Root = root
			cfg.Analysis.ChunkSize = 1000
			cfg.Stage.Path = ".codeweaver.stage.db"
			cfg.Graph.Storage = "embedded"
			cfg.Graph.Path = ".codeweaver.graph.db"

			if err := config.WriteConfig(cfg, path); err != nil {
				return fmt.Errorf("write config file: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %s\n", path)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintln(out, "  1. Review .codeweaver.yaml (analysis root, graph storage)")
			fmt.Fprintln(out, "  2. Add to .gitignore:")
			fmt.Fprintln(out, "       .codeweaver.stage.db")
			fmt.Fprintln(out, "       .codeweaver.graph.db/")
			fmt.Fprintln(out, "  3. Run 'codeweaver analyze' to build the graph")

			return nil
		},
	}
}
