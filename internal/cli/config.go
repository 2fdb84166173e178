package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/huddle/internal/config"
)

// ValidationResult holds config validation results.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Path  string `json:"path"`
	Feeds int    `json:"feeds"`
}

func (r ValidationResult) String() string {
	return fmt.Sprintf("✓ %s is valid (%d feed(s))", r.Path, r.Feeds)
}

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Check and show configuration",
	}
	cmd.AddCommand(newConfigValidateCommand(rootOpts))
	cmd.AddCommand(newConfigShowCommand(rootOpts))
	return cmd
}

func newConfigValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a configuration file without opening the database",
		Long: `Validate a configuration file against the schema: known keys, value
types and ranges, the sync schedule, and duplicate feeds.

The file defaults to the --config flag.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Config
			if len(args) == 1 {
				path = args[0]
			}
			formatter := newFormatter(rootOpts, cmd)
			if path == "" {
				return NewExitError(ExitCommandError, "no configuration file given (pass a file or --config)")
			}

			formatter.VerboseLog("Validating %s", path)
			cfg, err := config.Load(path)
			if err != nil {
				if outErr := formatter.Error(ErrCodeConfig, "validation failed", strings.Split(err.Error(), "\n")); outErr != nil {
					return outErr
				}
				// Validation failures = exit code 1
				return reported(ExitFailure, err)
			}
			return formatter.Success(ValidationResult{Valid: true, Path: path, Feeds: len(cfg.Feeds)})
		},
	}
}

type configView struct {
	*config.Config
}

func (v configView) String() string {
	data, err := yaml.Marshal(v.Config)
	if err != nil {
		return err.Error()
	}
	return strings.TrimRight(string(data), "\n")
}

func newConfigShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Print the effective configuration with defaults applied",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			cfg, err := config.Load(rootOpts.Config)
			if err != nil {
				return reportSetupError(formatter, WrapExitError(ExitCommandError, "failed to load config", err))
			}
			if rootOpts.Database != "" {
				cfg.Database = rootOpts.Database
			}
			return formatter.Success(configView{cfg})
		},
	}
}
