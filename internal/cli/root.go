package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/roach88/formharness/internal/config"
	"github.com/roach88/formharness/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	EnvFile    string
	NoInput    bool

	// LookupEnv replaces os.LookupEnv (for testing).
	LookupEnv func(string) (string, bool)
	// Prompt replaces the terminal password prompt (for testing).
	Prompt config.PasswordPrompt
	// Logger replaces the logger built from the flags (for testing).
	Logger *zap.Logger
	// Sessions replaces the browser and database sessions (for testing).
	Sessions SessionOpener
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the formharness CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

// Execute runs the CLI with the process arguments, reports a failure in
// the selected output format and returns the exit code.
func Execute() int {
	opts := &RootOptions{}
	err := newRootCommand(opts).Execute()
	if err == nil {
		return ExitSuccess
	}
	out := &OutputFormatter{Format: opts.Format, Writer: os.Stdout, ErrWriter: os.Stderr}
	return out.Fail(err)
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formharness",
		Short: "formharness - browser-driven form tests for the monitoring console",
		Long: `Run fixture scenarios against the monitoring web console: fill forms in a
real browser, submit them and check the console's messages and the database.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default "+config.DefaultFile+")")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "dotenv file (default .env)")
	cmd.PersistentFlags().BoolVar(&opts.NoInput, "no-input", false, "never prompt")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewHashCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig reads the configuration. Partial skips validation for
// commands that only need paths.
func (o *RootOptions) loadConfig(partial bool) (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{
		Path:       o.ConfigPath,
		EnvFile:    o.EnvFile,
		LookupEnv:  o.LookupEnv,
		NoValidate: partial,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// prompt returns the password prompt, or nil when prompting is off or
// stdin is not a terminal.
func (o *RootOptions) prompt() config.PasswordPrompt {
	if o.NoInput {
		return nil
	}
	if o.Prompt != nil {
		return o.Prompt
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	return config.SurveyPrompt
}

func (o *RootOptions) logger() (*zap.Logger, error) {
	if o.Logger != nil {
		return o.Logger, nil
	}
	l, err := logging.New(logging.Options{Verbose: o.Verbose, Format: o.Format})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create logger", err)
	}
	return l, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
