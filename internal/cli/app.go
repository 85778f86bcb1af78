// Package cli provides the mailmerge command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/pdfmailmerge/internal/persistence"
)

// Version information set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// App represents the CLI application.
type App struct {
	root   *cobra.Command
	stdout io.Writer
	stderr io.Writer

	storeSpec string
	verbose   bool
	logger    *slog.Logger
	now       func() time.Time

	// memory backs --store memory for the lifetime of the App.
	memory *persistence.MemoryStore
}

// New creates a new CLI application.
func New() *App {
	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
		now:    time.Now,
	}

	app.root = &cobra.Command{
		Use:   "mailmerge",
		Short: "Fill a PDF template with one document per data row",
		Long: `mailmerge places labels on the pages of a PDF template and stamps each
data row's values at those labels, producing one PDF per row.

Labels are stored per template, keyed by the template's content hash, so a
renamed copy of the same file keeps its labels.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.setupLogging()
		},
	}

	app.root.PersistentFlags().StringVar(&app.storeSpec, "store", "badger:",
		`label store: "badger:<dir>" (empty dir uses the user config dir), "redis:<addr>", "redis://<url>", "gs://<bucket>/<prefix>" or "memory"`)
	app.root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Enable debug logging")

	app.setupLogging()

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newHashCmd(),
		app.newPagesCmd(),
		app.newLabelsCmd(),
		app.newPreviewCmd(),
		app.newExportCmd(),
	)

	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	a.setupLogging()
	return a
}

// Execute runs the CLI application.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments (useful for testing).
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

func (a *App) setupLogging() {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
}

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "mailmerge version %s\n", Version)
			fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
			fmt.Fprintf(a.stdout, "  Build date: %s\n", BuildDate)
		},
	}
}
