package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dev/bravebird/pagecheck/pkg/config"
	"dev/bravebird/pagecheck/pkg/logging"
)

// rootOptions holds global flags for all commands
type rootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"
}

var validFormats = []string{"text", "json"}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "pagecheck",
		Short: "Run page-object scenarios against TodoMVC",
		Long: `pagecheck drives the TodoMVC application through page objects and checks
both what is rendered and what is persisted, retrying every check until it
holds or its deadline passes.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range validFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
		},
		SilenceUsage:  true,
		SilenceErrors: true, // main prints the error
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default ./pagecheck.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newOpsCommand())

	return cmd
}

// setup loads config and builds the logger
func setup(opts *rootOptions) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.Log.Development)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
