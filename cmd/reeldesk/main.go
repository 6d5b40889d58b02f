package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	serveradapter "github.com/evanschultz/reeldesk/internal/adapters/server"
)

// version is stamped at build time.
var version = "dev"

// program is the subset of tea.Program the root command drives.
type program interface {
	Run() (tea.Model, error)
}

// programFactory builds the TUI program; tests replace it.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdout, os.Stderr)
	if err := fang.Execute(ctx, root, fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

// run executes one command line against the given writers.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// cli holds the persistent flag values shared by every subcommand.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	c := &cli{stdout: stdout, stderr: stderr}

	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("REELDESK_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	appName := "reeldesk"
	if envApp := strings.TrimSpace(os.Getenv("REELDESK_APP_NAME")); envApp != "" {
		appName = envApp
	}

	cmd := &cobra.Command{
		Use:           "reeldesk",
		Short:         "Portfolio desk: order media and experience, move contacts through outreach",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  reeldesk

  # Serve the REST API and MCP tools
  reeldesk serve

  # Move a contact to another outreach category
  reeldesk move people <id> contacted
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runTUI(cmd.Context())
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to config TOML")
	flags.StringVar(&c.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&c.appName, "app", appName, "application name for config/data path resolution")
	flags.BoolVar(&c.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev) and the workspace log file")

	cmd.AddCommand(
		newPathsCmd(c),
		newServeCmd(c),
		newListCmd(c),
		newAddCmd(c),
		newMoveCmd(c),
		newReorderCmd(c),
		newExportCmd(c),
		newImportCmd(c),
	)
	return cmd
}

// parseBoolEnv reads one boolean environment variable.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

func writef(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
