package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/marginalia/internal/config"
	"github.com/roach88/marginalia/internal/workspace"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	DB         string
	Replica    string
	AuthorID   string
	AuthorName string
	Order      string
	NoColor    bool
	LogFormat  string

	// Resolved in PersistentPreRunE.
	cfg    config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the marginalia CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "marginalia",
		Short: "Anchored comment threads for shared documents",
		Long: `Marginalia keeps comment threads attached to ranges of a document.

Threads live in a replicated store that merges without conflicts, so
replicas can comment offline and sync later. Each thread is anchored by a
mark in the document text and follows that text through edits.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigPath, "config", "", "CUE config file (default $"+config.EnvConfig+")")
	flags.StringVar(&opts.DB, "db", "", "replica database path (default marginalia.db)")
	flags.StringVar(&opts.Replica, "replica", "", "replica name (default: recorded in the database)")
	flags.StringVar(&opts.AuthorID, "author-id", "", "comment author id")
	flags.StringVar(&opts.AuthorName, "author-name", "", "comment author display name")
	flags.StringVar(&opts.Order, "order", "", "sidebar order (hint|live)")
	flags.BoolVar(&opts.NoColor, "no-color", false, "disable coloured logs")
	flags.StringVar(&opts.LogFormat, "log-format", "", "log format (text|json)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewReplyCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts, true))
	cmd.AddCommand(NewResolveCommand(opts, false))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewViewCommand(opts))
	cmd.AddCommand(NewNavigateCommand(opts))
	cmd.AddCommand(NewEditCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewGCCommand(opts))
	cmd.AddCommand(NewDumpCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// resolve validates global flags, loads the config file and builds the
// logger. Flags override the file; the file overrides defaults.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	cfg, err := config.Load(config.ResolvePath(o.ConfigPath))
	if err != nil {
		return o.formatter(cmd).Fail(err)
	}
	cfg = cfg.Override(config.Config{
		Replica: o.Replica,
		DB:      o.DB,
		Order:   o.Order,
		Author:  config.Author{ID: o.AuthorID, Name: o.AuthorName},
		Log:     config.Log{Format: o.LogFormat},
	})
	if o.Verbose {
		cfg.Log.Level = "debug"
	}

	o.cfg = cfg
	o.logger = NewLogger(cmd.ErrOrStderr(), ParseLevel(cfg.Log.Level), cfg.Log.Format, o.NoColor)
	return nil
}

// Config returns the resolved configuration.
func (o *RootOptions) Config() config.Config {
	return o.cfg
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func (o *RootOptions) log() *slog.Logger {
	if o.logger == nil {
		return slog.Default()
	}
	return o.logger
}

// open opens the workspace named by cfg.
func (o *RootOptions) open(cmd *cobra.Command, cfg config.Config, opts ...workspace.Option) (*workspace.Workspace, error) {
	opts = append([]workspace.Option{workspace.WithLogger(o.log())}, opts...)
	return workspace.Open(cmd.Context(), cfg, opts...)
}

// outcome is what a command produces: a JSON payload and its text form.
type outcome struct {
	data any
	text string
}

// run opens the configured workspace, runs fn and prints its outcome.
// With save, the document snapshot is written after fn succeeds.
func (o *RootOptions) run(cmd *cobra.Command, save bool, fn func(ws *workspace.Workspace) (outcome, error)) error {
	f := o.formatter(cmd)

	ws, err := o.open(cmd, o.cfg)
	if err != nil {
		return f.Fail(err)
	}
	defer ws.Close()

	out, err := fn(ws)
	if err != nil {
		o.log().Error("command failed", "command", cmd.Name(), "error", err)
		return f.Fail(err)
	}
	if save {
		_, err = ws.Save(cmd.Context())
	} else {
		err = ws.Err()
	}
	if err != nil {
		return f.Fail(err)
	}
	return f.Success(out.data, out.text)
}
