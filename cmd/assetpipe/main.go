// assetpipe builds and serves the assets of a single-page application.
//
// Usage:
//
//	assetpipe [--config FILE] [--root DIR] [--addr ADDR] <command>
//
// Commands:
//
//	serve [dist]              build for development, serve and watch; or build and serve dist
//	build                     production build into dist
//	default                   same as build
//	manifest                  write the bundle manifest from the HTML build blocks
//	graph <sequence> [target] print the task graph of a sequence as DOT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/askiada/go-assetpipe/internal/config"
	"github.com/askiada/go-assetpipe/internal/orchestrator"
	"github.com/askiada/go-assetpipe/internal/tasks"
	"github.com/askiada/go-assetpipe/internal/telemetry"
)

// version is set with ldflags at build time.
var version = "dev"

type globalFlags struct {
	config    string
	root      string
	addr      string
	// configSet is true when --config was given: the file must then exist.
	configSet bool
}

func (f *globalFlags) load() (config.Config, error) {
	cfg, err := config.Load(f.root, f.config, f.configSet)
	if err != nil {
		return config.Config{}, err
	}

	return cfg.WithAddr(f.addr), nil
}

func main() {
	logger := telemetry.SetupLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd(logger).ExecuteContext(telemetry.WithLogger(ctx, logger))

	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "assetpipe",
		Short:         "assetpipe builds and serves web application assets",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			flags.configSet = cmd.Flags().Changed("config")
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.config, "config", config.DefaultFile, "configuration file, relative to the root")
	rootCmd.PersistentFlags().StringVar(&flags.root, "root", ".", "project root")
	rootCmd.PersistentFlags().StringVar(&flags.addr, "addr", "", "server address, overrides the configuration")

	newOrchestrator := func(opts ...orchestrator.Option) (*orchestrator.Orchestrator, error) {
		cfg, err := flags.load()
		if err != nil {
			return nil, err
		}

		return orchestrator.New(cfg, append([]orchestrator.Option{orchestrator.WithLogger(logger)}, opts...)...), nil
	}

	rootCmd.AddCommand(
		newServeCmd(newOrchestrator),
		newBuildCmd(orchestrator.SequenceBuild, "Production build into the dist directory", newOrchestrator),
		newBuildCmd(orchestrator.SequenceDefault, "Same as build", newOrchestrator),
		newManifestCmd(flags),
		newGraphCmd(newOrchestrator),
	)

	return rootCmd
}

type orchestratorFunc func(opts ...orchestrator.Option) (*orchestrator.Orchestrator, error)

func newServeCmd(newOrchestrator orchestratorFunc) *cobra.Command {
	return &cobra.Command{
		Use:       "serve [dist]",
		Short:     "Build and serve; without a target, watch sources and rebuild on change",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"dist"},
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := newOrchestrator()
			if err != nil {
				return err
			}

			var target string
			if len(args) == 1 {
				target = args[0]
			}

			return orch.Run(cmd.Context(), orchestrator.SequenceServe, target)
		},
	}
}

func newBuildCmd(sequence, short string, newOrchestrator orchestratorFunc) *cobra.Command {
	var graphFile string

	cmd := &cobra.Command{
		Use:   sequence,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts []orchestrator.Option
			if graphFile != "" {
				opts = append(opts, orchestrator.WithGraphFile(graphFile))
			}

			orch, err := newOrchestrator(opts...)
			if err != nil {
				return err
			}

			return orch.Run(cmd.Context(), sequence, "")
		},
	}

	cmd.Flags().StringVar(&graphFile, "graph", "", "write the task graph with durations to this DOT file")

	return cmd
}

func newManifestCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "manifest",
		Short: "Write the bundle manifest from the build blocks of the HTML entry point",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}

			m, err := tasks.GenerateManifest(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			for _, b := range m.Bundles {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d files\n", b.Type, b.Dest, len(b.Members))
			}

			return nil
		},
	}
}

func newGraphCmd(newOrchestrator orchestratorFunc) *cobra.Command {
	return &cobra.Command{
		Use:       "graph <sequence> [target]",
		Short:     "Print the task graph of a sequence in the DOT language",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: orchestrator.Sequences(),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := newOrchestrator()
			if err != nil {
				return err
			}

			var target string
			if len(args) == 2 {
				target = args[1]
			}

			return orch.Graph(cmd.OutOrStdout(), args[0], target)
		},
	}
}
