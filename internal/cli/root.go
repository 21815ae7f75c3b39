package cli

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"finance/internal/amqp"
	"finance/internal/apiclient"
	"finance/internal/config"
	"finance/internal/dashboard"
	apphttp "finance/internal/http"
	applog "finance/internal/log"
	"finance/internal/services"
	"finance/internal/sheets"
	"finance/internal/sheets/google"
	"finance/internal/sheets/memory"
	"finance/internal/worker"
)

// app holds what every subcommand needs once the root pre-run has finished.
type app struct {
	envFile string
	cfg     *config.Config
	logger  *applog.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "finance",
		Short: "Personal finance tracker: transaction API and dashboard",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadAndValidateConfig(a.envFile)
			if err != nil {
				return err
			}
			logger, err := SetupLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	rootCmd.AddCommand(
		a.newServeCommand(),
		a.newDashboardCommand(),
		a.newMigrateCommand(),
		a.newExportSheetsCommand(),
		a.newSyncSheetsCommand(),
	)
	return rootCmd
}

func (a *app) newServeCommand() *cobra.Command {
	var withDashboard bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the transaction JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := SignalContext(cmd.Context())
			defer stop()
			return a.runServe(ctx, withDashboard)
		},
	}
	cmd.Flags().BoolVar(&withDashboard, "with-dashboard", false, "also serve the dashboard on DASHBOARD_PORT")
	return cmd
}

func (a *app) runServe(ctx context.Context, withDashboard bool) error {
	gw, err := OpenStorage(ctx, a.logger, a.cfg.SQLiteDBPath)
	if err != nil {
		return err
	}

	svc := services.NewTransactionService(gw, ConnectPublisher(ctx, a.cfg, a.logger), a.logger)
	defer func() {
		if err := svc.Close(); err != nil {
			a.logger.Error("Close failed", applog.FieldError, err)
		}
	}()

	apiAddr := net.JoinHostPort("", a.cfg.Port)
	servers := []managedServer{{name: "api", addr: apiAddr, srv: apphttp.NewServer(apiAddr, svc, a.logger)}}

	if withDashboard {
		dash, err := a.newDashboardServer()
		if err != nil {
			return err
		}
		servers = append(servers, dash)
	}
	return runServers(ctx, a.logger, servers...)
}

func (a *app) newDashboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Run the dashboard against API_BASE_URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := SignalContext(cmd.Context())
			defer stop()

			dash, err := a.newDashboardServer()
			if err != nil {
				return err
			}
			return runServers(ctx, a.logger, dash)
		},
	}
}

func (a *app) newDashboardServer() (managedServer, error) {
	addr := net.JoinHostPort("", a.cfg.DashboardPort)
	client := apiclient.New(a.cfg.APIBaseURL, a.cfg.HTTPClientTimeout, a.logger)
	srv, err := dashboard.NewServer(addr, client, a.logger)
	if err != nil {
		return managedServer{}, err
	}
	return managedServer{name: "dashboard", addr: addr, srv: srv}, nil
}

func (a *app) newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := OpenStorage(cmd.Context(), a.logger, a.cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			a.logger.Info("Schema is up to date", "path", a.cfg.SQLiteDBPath)
			return gw.Close()
		},
	}
}

func (a *app) newExportSheetsCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "export-sheets",
		Short: "Replace the configured Google Sheet with every stored transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var writer sheets.TransactionWriter
			if dryRun {
				writer = memory.New()
			} else {
				if err := a.cfg.ValidateSheets(); err != nil {
					return err
				}
				client, err := google.New(ctx, a.cfg.GoogleSpreadsheetID, a.cfg.GoogleSheetName, a.logger)
				if err != nil {
					return fmt.Errorf("google sheets: %w", err)
				}
				writer = client
			}

			gw, err := OpenStorage(ctx, a.logger, a.cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			svc := services.NewTransactionService(gw, nil, a.logger)
			defer svc.Close()

			result, err := services.NewExportService(svc, writer, a.logger).Export(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d transactions to %s\n", result.Count, result.Ref)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "build the rows in memory without calling Google")
	return cmd
}

func (a *app) newSyncSheetsCommand() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "sync-sheets",
		Short: "Keep the Google Sheet in step with transaction events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := SignalContext(cmd.Context())
			defer stop()

			if err := a.cfg.ValidateSheets(); err != nil {
				return err
			}
			if a.cfg.AMQPURL == "" && interval <= 0 {
				return fmt.Errorf("sync-sheets needs AMQP_URL or a positive --interval")
			}

			client, err := google.New(ctx, a.cfg.GoogleSpreadsheetID, a.cfg.GoogleSheetName, a.logger)
			if err != nil {
				return fmt.Errorf("google sheets: %w", err)
			}
			gw, err := OpenStorage(ctx, a.logger, a.cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			svc := services.NewTransactionService(gw, nil, a.logger)
			defer svc.Close()

			w := worker.NewSyncWorker(services.NewExportService(svc, client, a.logger), a.logger)
			if err := w.StartupSync(ctx); err != nil {
				a.logger.Warn("Startup sync failed, continuing", applog.FieldError, err)
			}

			g, gctx := errgroup.WithContext(ctx)
			if a.cfg.AMQPURL != "" {
				consumer, err := amqp.NewClient(ctx, a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue, a.logger)
				if err != nil {
					return fmt.Errorf("amqp: %w", err)
				}
				defer consumer.Close()
				g.Go(func() error {
					if err := consumer.ConsumeTransactionEvents(gctx, w.HandleEvent); err != nil && gctx.Err() == nil {
						return err
					}
					return nil
				})
			}
			if interval > 0 {
				g.Go(func() error { return w.PeriodicSync(gctx, interval) })
			}
			err = g.Wait()

			syncs, failures, last := w.Stats()
			a.logger.Info("Sheet sync stopped",
				applog.FieldOperation, applog.OpShutdown,
				"syncs", syncs,
				"failures", failures,
				"last_sync", last)
			return err
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 10*time.Minute, "full re-export period as a backup to events (0 disables)")
	return cmd
}
