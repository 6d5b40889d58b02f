package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	serveradapter "github.com/evanschultz/reeldesk/internal/adapters/server"
	"github.com/evanschultz/reeldesk/internal/app"
	"github.com/evanschultz/reeldesk/internal/domain"
	"github.com/evanschultz/reeldesk/internal/tui"
)

// withBackend resolves config, opens the backend, and runs fn with both.
func (c *cli) withBackend(ctx context.Context, command string, fn func(*runEnv, *backend) error) error {
	rt, err := c.resolve(command)
	if err != nil {
		return err
	}
	defer rt.close(c.stderr)

	b, err := rt.openBackend(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := b.close(); closeErr != nil {
			rt.logger.Warn("backend close failed", "err", closeErr)
		}
	}()

	rt.logger.Info("command flow start", "command", command)
	if err := fn(rt, b); err != nil {
		rt.logger.Error("command flow failed", "command", command, "err", err)
		return fmt.Errorf("run %s command: %w", command, err)
	}
	rt.logger.Info("command flow complete", "command", command)
	return nil
}

func (c *cli) runTUI(ctx context.Context) error {
	rt, err := c.resolve("tui")
	if err != nil {
		return err
	}
	defer rt.close(c.stderr)
	// Runtime logs stay in the dev-file sink while the TUI owns the terminal.
	rt.logger.SetConsoleEnabled(false)

	b, err := rt.openBackend(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := b.close(); closeErr != nil {
			rt.logger.Warn("backend close failed", "err", closeErr)
		}
	}()

	keys := rt.cfg.Keys
	opts := []tui.Option{
		tui.WithPipeline(rt.pipeline),
		tui.WithReorderOptions(rt.reorderOptions()),
		tui.WithLogger(rt.logger),
		tui.WithKeyOverrides(tui.KeyOverrides{
			Pick:    keys.Pick,
			Reorder: keys.Reorder,
			Details: keys.Details,
			CopyURL: keys.CopyURL,
		}),
	}
	if b.service != nil {
		opts = append(opts, tui.WithMediaURL(b.service.MediaURL))
	}
	m := tui.NewModel(b.store, opts...)
	defer m.Close()

	rt.logger.Info("starting tui program loop")
	if _, err := programFactory(m).Run(); err != nil {
		rt.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	rt.logger.Info("command flow complete", "command", "tui")
	return nil
}

func newPathsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data, and log paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.resolve("paths")
			if err != nil {
				return err
			}
			defer rt.close(c.stderr)
			out := cmd.OutOrStdout()
			writef(out, "app: %s\n", c.appName)
			writef(out, "dev_mode: %t\n", c.devMode)
			writef(out, "config: %s\n", rt.configPath)
			writef(out, "data_dir: %s\n", rt.paths.DataDir)
			writef(out, "db: %s\n", rt.cfg.Database.Path)
			writef(out, "log_dir: %s\n", rt.paths.LogDir)
			return nil
		},
	}
}

func newServeCmd(c *cli) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API, event stream, and MCP tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withBackend(cmd.Context(), "serve", func(rt *runEnv, b *backend) error {
				_, adapter, err := b.local()
				if err != nil {
					return err
				}
				cfg := serveradapter.Config{
					HTTPBind:      rt.cfg.Server.HTTPBind,
					APIEndpoint:   rt.cfg.Server.APIEndpoint,
					MCPEndpoint:   rt.cfg.Server.MCPEndpoint,
					ServerName:    c.appName,
					ServerVersion: version,
				}
				if strings.TrimSpace(bind) != "" {
					cfg.HTTPBind = bind
				}
				rt.logger.Info("serving", "bind", cfg.HTTPBind, "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint)
				return serveCommandRunner(cmd.Context(), cfg, serveradapter.Dependencies{
					Collections: adapter,
					Feed:        adapter,
					Ready:       b.ready,
				})
			})
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "listen address (overrides server.http_bind)")
	return cmd
}

func newListCmd(c *cli) *cobra.Command {
	var (
		kind       string
		visibility string
	)
	cmd := &cobra.Command{
		Use:   "list <collection>",
		Short: "List one collection in display order as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseFilter(args[0], kind, visibility)
			if err != nil {
				return err
			}
			return c.withBackend(cmd.Context(), "list", func(_ *runEnv, b *backend) error {
				items, err := b.store.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), items)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "restrict to one kind")
	cmd.Flags().StringVar(&visibility, "visibility", "", "any | visible | hidden")
	return cmd
}

func newAddCmd(c *cli) *cobra.Command {
	var (
		kind    string
		title   string
		status  string
		hidden  bool
		details domain.Details
	)
	cmd := &cobra.Command{
		Use:   "add <collection>",
		Short: "Create one item at the end of its ordering scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, err := domain.ParseCollection(args[0])
			if err != nil {
				return err
			}
			return c.withBackend(cmd.Context(), "add", func(_ *runEnv, b *backend) error {
				svc, _, err := b.local()
				if err != nil {
					return err
				}
				item, err := svc.CreateItem(cmd.Context(), app.CreateItemInput{
					Collection: collection,
					Kind:       kind,
					Title:      title,
					Status:     status,
					Visible:    !hidden,
					Details:    details,
				})
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), item)
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&title, "title", "", "item title")
	flags.StringVar(&kind, "kind", "", "item kind (media and experience)")
	flags.StringVar(&status, "status", "", "board category (people and studios)")
	flags.BoolVar(&hidden, "hidden", false, "hide the item from public feeds")
	flags.StringVar(&details.StoragePath, "storage-path", "", "object path inside the media bucket")
	flags.StringVar(&details.Company, "company", "", "company (people)")
	flags.StringVar(&details.Email, "email", "", "email (people)")
	flags.StringVar(&details.Website, "website", "", "website (studios)")
	flags.StringVar(&details.Notes, "notes", "", "markdown notes")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newMoveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "move <collection> <id> <status>",
		Short: "Move one board item to another category",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, err := domain.ParseCollection(args[0])
			if err != nil {
				return err
			}
			return c.withBackend(cmd.Context(), "move", func(rt *runEnv, b *backend) error {
				ctx := cmd.Context()
				board, err := app.NewBoard(b.store, app.BoardConfig{
					Collection: collection,
					Pipeline:   rt.pipeline,
					Sink:       rt.sink(),
					Logger:     rt.logger,
				})
				if err != nil {
					return err
				}
				if err := board.Load(ctx); err != nil {
					return err
				}
				if err := board.OnPick(args[1]); err != nil {
					return err
				}
				result := board.OnDrop(ctx, strings.ToLower(strings.TrimSpace(args[2])))
				if err := result.Wait(ctx); err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}

func newReorderCmd(c *cli) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "reorder <collection> <id>...",
		Short: "Commit a full ordering scope as contiguous display orders",
		Long: strings.TrimSpace(`
Reorder takes every id in the scope, in the desired order, and writes
display orders 0..N-1. Writes are independent; a partial failure reports
which positions were applied.`),
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, err := domain.ParseCollection(args[0])
			if err != nil {
				return err
			}
			ids := args[1:]
			return c.withBackend(cmd.Context(), "reorder", func(rt *runEnv, b *backend) error {
				report, err := commitOrder(cmd.Context(), rt, b, domain.ItemFilter{
					Collection: collection,
					Kind:       strings.ToLower(strings.TrimSpace(kind)),
				}, ids)
				if writeErr := writeJSON(cmd.OutOrStdout(), report); writeErr != nil {
					return writeErr
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "ordering scope kind (required for experience)")
	return cmd
}

// commitOrder drives a Reorder engine through start, moves, and commit.
func commitOrder(ctx context.Context, rt *runEnv, b *backend, filter domain.ItemFilter, ids []string) (app.CommitReport, error) {
	engine, err := app.NewReorder(b.store, app.ReorderConfig{
		Filter:  filter,
		Sink:    rt.sink(),
		Options: rt.reorderOptions(),
	})
	if err != nil {
		return app.CommitReport{}, err
	}
	if err := engine.Load(ctx); err != nil {
		return app.CommitReport{}, err
	}
	if err := engine.StartReorder(); err != nil {
		return app.CommitReport{}, err
	}
	if err := engine.ApplyPermutation(ids); err != nil {
		_ = engine.CancelReorder()
		return app.CommitReport{}, err
	}
	return engine.CommitReorder(ctx)
}

func newExportCmd(c *cli) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every item as a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withBackend(cmd.Context(), "export", func(_ *runEnv, b *backend) error {
				svc, _, err := b.local()
				if err != nil {
					return err
				}
				snap, err := svc.ExportSnapshot(cmd.Context())
				if err != nil {
					return fmt.Errorf("export snapshot: %w", err)
				}
				if outPath == "-" {
					return writeJSON(cmd.OutOrStdout(), snap)
				}
				if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
					return fmt.Errorf("create export output dir: %w", err)
				}
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				if err := writeJSON(f, snap); err != nil {
					_ = f.Close()
					return err
				}
				return f.Close()
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

func newImportCmd(c *cli) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a JSON snapshot, replacing matching items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return errors.New("--in is required")
			}
			return c.withBackend(cmd.Context(), "import", func(_ *runEnv, b *backend) error {
				svc, _, err := b.local()
				if err != nil {
					return err
				}
				content, err := os.ReadFile(inPath)
				if err != nil {
					return fmt.Errorf("read import file: %w", err)
				}
				var snap app.Snapshot
				if err := json.Unmarshal(content, &snap); err != nil {
					return fmt.Errorf("decode snapshot json: %w", err)
				}
				if err := svc.ImportSnapshot(cmd.Context(), snap); err != nil {
					return fmt.Errorf("import snapshot: %w", err)
				}
				writef(cmd.OutOrStdout(), "imported %d items\n", len(snap.Items))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	return cmd
}

func parseFilter(rawCollection, kind, rawVisibility string) (domain.ItemFilter, error) {
	collection, err := domain.ParseCollection(rawCollection)
	if err != nil {
		return domain.ItemFilter{}, err
	}
	visibility, err := domain.ParseVisibility(rawVisibility)
	if err != nil {
		return domain.ItemFilter{}, err
	}
	filter := domain.ItemFilter{
		Collection: collection,
		Kind:       strings.ToLower(strings.TrimSpace(kind)),
		Visibility: visibility,
	}
	if err := filter.Validate(); err != nil {
		return domain.ItemFilter{}, err
	}
	return filter, nil
}

func writeJSON(w io.Writer, v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	encoded = append(encoded, '\n')
	if _, err := w.Write(encoded); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}
