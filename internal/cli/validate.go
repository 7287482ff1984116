package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/keyflow/internal/config"
)

// ErrCodeEnv marks a failure to load the env file or its overrides.
const ErrCodeEnv = "E_ENV"

// ValidationResult describes a configuration that loaded.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Source  string `json:"source"`
	KeyMaps int    `json:"keymaps"`
	Enabled int    `json:"enabled"`
	Groups  int    `json:"groups"`
}

func (r ValidationResult) String() string {
	return fmt.Sprintf("✓ %s: %d key map(s), %d enabled, %d group(s)", r.Source, r.KeyMaps, r.Enabled, r.Groups)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Check a key map configuration",
		Long: `Load a YAML or CUE key map configuration and check it against the
schema, the trigger and action rules and the group references, without
running anything.

Exit codes:
  0 - configuration is valid
  1 - configuration is invalid
  2 - file could not be read`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts, path)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	formatter.VerboseLog("loaded %s with defaults %+v", cfg.Source, cfg.Defaults)

	return formatter.Success(ValidationResult{
		Valid:   true,
		Source:  cfg.Source,
		KeyMaps: len(cfg.Set.KeyMaps),
		Enabled: len(cfg.Set.Enabled()),
		Groups:  len(cfg.Set.Groups),
	})
}

// loadConfig loads path with the env-derived defaults as the base.
func loadConfig(opts *RootOptions, path string) (*config.Config, error) {
	loader, err := newLoader(opts)
	if err != nil {
		return nil, err
	}
	return loader.Load(path)
}

func newLoader(opts *RootOptions) (*config.Loader, error) {
	defaults, err := config.FromEnv(opts.EnvFile)
	if err != nil {
		return nil, err
	}
	return config.NewLoader(defaults), nil
}

// reportLoadError writes err and maps it to an exit code: unreadable
// inputs are command errors, everything else is an invalid configuration.
func reportLoadError(f *OutputFormatter, err error) error {
	var le *config.LoadError
	if !errors.As(err, &le) {
		_ = f.Error(ErrCodeEnv, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load defaults", err)
	}

	var details map[string]any
	if le.Pos.IsValid() {
		details = map[string]any{"line": le.Pos.Line(), "column": le.Pos.Column()}
	}
	_ = f.Error(le.Code, le.Error(), details)

	if le.Code == config.ErrCodeRead {
		return WrapExitError(ExitCommandError, "failed to read config", err)
	}
	return WrapExitError(ExitFailure, "invalid config", err)
}
