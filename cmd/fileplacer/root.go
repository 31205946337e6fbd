package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fileplacer/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

type rootOptions struct {
	verbose bool
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "fileplacer",
		Short: "Find source files that live in the wrong folder",
		Long: `fileplacer walks a repository, asks a language model whether each file
sits in the folder its role calls for, and reports the misplaced ones with a
suggested destination.`,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(opts.verbose)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	root.Version = version

	root.AddCommand(newScanCmd(opts))
	root.AddCommand(newServeCmd(opts))
	return root
}
