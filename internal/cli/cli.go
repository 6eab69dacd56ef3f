package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/bloom/internal/app"
	"github.com/Additional-Code/bloom/internal/config"
	"github.com/Additional-Code/bloom/internal/dto"
	"github.com/Additional-Code/bloom/internal/logger"
	"github.com/Additional-Code/bloom/internal/migration"
	"github.com/Additional-Code/bloom/internal/seeder"
	serviceorder "github.com/Additional-Code/bloom/internal/service/order"
	"github.com/Additional-Code/bloom/internal/service/query"
	"github.com/Additional-Code/bloom/internal/syncclient"
)

// NewRootCommand builds the root bloom CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "bloom",
		Short:         "Bloom order management toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newOrdersCmd())
	root.AddCommand(newSyncCmd())

	return root
}

// Execute runs the bloom CLI until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"run"},
		Short:   "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			withGRPC, _ := cmd.Flags().GetBool("grpc")
			opts := []fx.Option{app.Module}
			if withGRPC {
				opts = append(opts, app.GRPC)
			}
			return runUntilDone(cmd.Context(), fx.New(opts...))
		},
	}
	cmd.Flags().Bool("grpc", false, "Also serve the gRPC health service")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Up(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			all, _ := cmd.Flags().GetBool("all")
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Down(ctx, steps, all); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migration steps to rollback")
	downCmd.Flags().Bool("all", false, "Rollback all applied migrations")

	cmd.AddCommand(upCmd, downCmd)
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create sample orders from the menu",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSharedStore("seed"); err != nil {
				return err
			}
			var seed *seeder.Seeder
			opts := fx.Options(app.Core, seeder.Module, fx.Populate(&seed))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				n, err := seed.Orders(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d orders\n", n)
				return nil
			})
		},
	}
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the order notification worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), fx.New(app.Worker))
		},
	})
	return cmd
}

func newOrdersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect and maintain order history",
	}

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Print revenue, completion rate and top items",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			top, _ := cmd.Flags().GetInt("top")
			if err := requireSharedStore("orders report"); err != nil {
				return err
			}

			var queries *query.Service
			opts := fx.Options(app.Core, fx.Populate(&queries))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				var (
					summary query.Summary
					err     error
				)
				if date == "" {
					summary, err = queries.Analytics(ctx, top)
				} else {
					day, perr := query.ParseDay(date, queries.Location())
					if perr != nil {
						return perr
					}
					summary, err = queries.Report(ctx, day, top)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd, dto.FromSummary(summary))
			})
		},
	}
	reportCmd.Flags().String("date", "", "Restrict the report to one day (YYYY-MM-DD)")
	reportCmd.Flags().Int("top", 0, "Number of top items to list (defaults to ORDERS_TOP_ITEMS)")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Archive and delete all orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, _ := cmd.Flags().GetString("password")
			server, _ := cmd.Flags().GetString("server")

			if server != "" {
				res, err := syncclient.NewClient(server, 10*time.Second).Clear(cmd.Context(), password)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			}
			if err := requireSharedStore("orders clear"); err != nil {
				return fmt.Errorf("%w, or pass --server to clear through a running API", err)
			}

			var orders *serviceorder.Service
			opts := fx.Options(app.Core, fx.Populate(&orders))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				res, err := orders.ClearAll(ctx, password)
				if err != nil {
					return err
				}
				if res.Archive != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "history archived to %s\n", res.Archive)
				}
				return printJSON(cmd, dto.ClearResponse{Success: true, Message: serviceorder.ClearMessage, Cleared: res.Cleared})
			})
		},
	}
	clearCmd.Flags().String("password", "", "Clear secret")
	clearCmd.Flags().String("server", "", "Clear through a running API instead of the local store")
	_ = clearCmd.MarkFlagRequired("password")

	cmd.AddCommand(reportCmd, clearCmd)
	return cmd
}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Client-side order synchronisation",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Poll the API and print order counts as they change",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			if server, _ := cmd.Flags().GetString("server"); server != "" {
				cfg.Sync.ServerURL = server
			}
			log, err := logger.Build(cfg.Observability)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			s := syncclient.New(cfg.Sync, log)
			return s.Run(cmd.Context(), func(snap syncclient.Snapshot) {
				counts := map[string]int{}
				for _, o := range snap.Orders {
					counts[o.Status]++
				}
				log.Info("orders",
					zap.Int("total", len(snap.Orders)),
					zap.Int("pending", counts["pending"]),
					zap.Int("completed", counts["completed"]),
					zap.Int("billed", counts["billed"]),
					zap.Int("outbox", snap.Pending),
					zap.Bool("stale", snap.Stale),
				)
			})
		},
	}
	runCmd.Flags().String("server", "", "API base URL (defaults to SYNC_SERVER_URL)")

	cmd.AddCommand(runCmd)
	return cmd
}

// requireSharedStore rejects commands that would only touch a throwaway
// in-process store.
func requireSharedStore(command string) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	if !cfg.UsesDatabase() {
		return fmt.Errorf("%s needs ORDERS_BACKEND=database; the memory backend only lives inside the running server", command)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runUntilDone(ctx context.Context, application *fx.App) error {
	if err := application.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case sig := <-application.Wait():
		if sig.ExitCode != 0 {
			return errors.Join(fmt.Errorf("exit code %d", sig.ExitCode), stop(application))
		}
	}
	return stop(application)
}

func stop(application *fx.App) error {
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return application.Stop(stopCtx)
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = stop(application) }()
	return fn(ctx)
}
