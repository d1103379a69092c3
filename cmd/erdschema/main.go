package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tordrt/erdschema/internal/config"
	"github.com/tordrt/erdschema/internal/logging"
)

// Version is set at build time.
var Version = "dev"

type configKey struct{}

func newRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "erdschema <input>...",
		Short: "Render database schemas as Mermaid ER diagrams",
		Long: `erdschema renders a relational schema as a Mermaid erDiagram.

Each input is a database connection (postgres://, mysql://, sqlite://, sqlserver://
or an ADO connection string such as "Server=.;Database=Shop;Trusted_Connection=True"),
a path to a SQL Server DDL script, or DDL text passed inline.

The output extension selects the flavour: .md wraps the diagram in a mermaid code
fence, .mmd writes the raw diagram.`,
		Version: Version,
		Args:    cobra.MinimumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger := logging.New(cmd.ErrOrStderr(), cfg.Verbose)
			if cfg.ConfigFile != "" {
				logger.Debug("using config file", "path", cfg.ConfigFile)
			}

			ctx := logging.WithLogger(cmd.Context(), logger)
			ctx = context.WithValue(ctx, configKey{}, cfg)
			cmd.SetContext(ctx)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cmd.Context().Value(configKey{}).(*config.Config)
			return run(cmd.Context(), cfg, args, cmd.OutOrStdout())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./"+config.DefaultConfigFile+")")
	flags.StringP("output", "o", config.DefaultOutput, "Output file; .md for a fenced diagram, .mmd for raw")
	flags.StringP("newline", "n", config.DefaultNewLine, `Line terminator, escapes allowed (e.g. "\r\n")`)
	flags.StringP("format", "f", config.FormatDiagram, "Output format: diagram, docs, text, yaml or multi")
	flags.StringP("schema", "s", "", "Database schema to read (live databases only)")
	flags.StringSliceP("tables", "t", nil, "Tables to read (comma-separated, live databases only)")
	flags.StringSliceP("exclude", "e", nil, "Tables to leave out (comma-separated)")
	flags.StringP("output-dir", "d", "", "Write one output per input into this directory")
	flags.BoolP("verbose", "v", false, "Verbose logging")
	flags.BoolP("watch", "w", false, "Re-render when a script file changes")
	flags.IntP("parallel", "p", config.DefaultParallel, "Inputs rendered concurrently with --output-dir")

	_ = rootCmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.FormatDiagram, config.FormatDocs, config.FormatText, config.FormatYAML, config.FormatMulti}, cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
