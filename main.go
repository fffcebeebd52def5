package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vibeproof/config"
	"vibeproof/database"
	"vibeproof/handlers"
	"vibeproof/middleware"
	"vibeproof/services"
	"vibeproof/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	configPath  string
	missionDate string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vibeproof",
	Short: "VibeProof mission verification service",
	Long: `Verifies VibeProof missions against Solana, X and in-app state,
records completions at most once per mission and awards XP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintln(os.Stderr, "No .env file found, reading environment variables directly")
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = utils.NewLogger(cfg.Log.Development, cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background jobs",
	RunE:  runServe,
}

var missionsCmd = &cobra.Command{
	Use:     "missions",
	Short:   "Materialize and print the mission board for a date",
	Example: `  vibeproof missions --date 2026-02-18`,
	RunE:    runMissions,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire completions stuck in pending or verifying",
	RunE:  runSweep,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Report wallets whose XP differs from their verified completions",
	RunE:  runReconcile,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "vibeproof.toml", "path to the TOML config file (optional)")
	missionsCmd.Flags().StringVar(&missionDate, "date", "", "calendar day as YYYY-MM-DD (default: today)")

	rootCmd.AddCommand(serveCmd, missionsCmd, sweepCmd, reconcileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// engine holds the wired services shared by every subcommand.
type engine struct {
	db         *gorm.DB
	clock      services.Clock
	progress   *services.ProgressionService
	state      *services.AppStateService
	ledger     *services.Ledger
	missions   *services.MissionService
	reconciler *services.Reconciler
	archiver   *services.ProofArchiver
}

func openEngine(ctx context.Context, reg prometheus.Registerer) (*engine, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}

	metrics := services.NewMetrics(reg)
	clock := services.NewClock(cfg.Location())
	state := services.NewAppStateService(db)
	progress := services.NewProgressionService(db, services.NewBadgeService(db, logger), clock, logger)
	ledger := services.NewLedger(db)

	xClient := services.NewXClient(cfg.X.APIBaseURL, utils.NewHTTPClient(cfg.VerificationTimeout()),
		cfg.X.RatePerSecond, cfg.X.Burst, cfg.X.MaxRetries)
	dispatcher := services.NewDispatcher(
		services.NewSolanaChecks(services.NewSolanaRPC(cfg.Solana.RPCURL, cfg.Solana.MaxRetries)),
		services.NewSocialChecks(state, xClient),
		services.NewAppChecks(state, clock),
		cfg.VerificationTimeout(),
		metrics,
		logger,
	)

	e := &engine{
		db:         db,
		clock:      clock,
		progress:   progress,
		state:      state,
		ledger:     ledger,
		missions:   services.NewMissionService(services.NewCatalog(clock.Location()), ledger, dispatcher, progress, clock, metrics, logger),
		reconciler: services.NewReconciler(db, clock, metrics, logger),
	}

	if cfg.ArchiveEnabled() {
		client, err := utils.NewR2Client(ctx, cfg.ArchiveEndpoint(), cfg.Archive.AccessKeyID, cfg.Archive.AccessKeySecret)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize R2 client: %w", err)
		}
		e.archiver = services.NewProofArchiver(client, cfg.Archive.Bucket, cfg.Archive.QueueSize, metrics, logger)
		e.missions.WithArchive(e.archiver)
	} else {
		logger.Info("proof archive disabled, no bucket configured")
	}
	return e, nil
}

func (e *engine) close() {
	if e.archiver != nil {
		e.archiver.Close()
	}
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	e, err := openEngine(ctx, reg)
	if err != nil {
		return err
	}
	defer e.close()

	if e.archiver != nil {
		e.archiver.Start(ctx)
	}

	sched, err := services.StartScheduler(ctx, e.missions, e.reconciler, services.SchedulerConfig{
		SweepInterval: cfg.SweepInterval(),
		StaleAfter:    cfg.SweepStaleAfter(),
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sched.Shutdown(); err != nil {
			logger.Warn("scheduler shutdown", zap.Error(err))
		}
	}()

	app := fiber.New(fiber.Config{
		BodyLimit:             1 * 1024 * 1024,
		DisableStartupMessage: true,
	})

	app.Use(middleware.NewHTTPMetrics(reg).Handler())
	// Only gateway requests are allowed
	app.Use(middleware.GatewayAuthMiddleware(cfg.Server.GatewayToken, logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: "GET,POST,PUT,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, " + middleware.WalletHeader + ", " + middleware.RolesHeader,
		MaxAge:       86400,
	}))

	handlers.SetupSystemRoutes(app, e.db, reg)
	handlers.SetupMissionRoutes(app, e.missions, logger)
	handlers.SetupProgressionRoutes(app, e.progress, e.state, e.ledger, logger)
	handlers.SetupAdminRoutes(app, e.reconciler, cfg.SweepStaleAfter(), logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(":" + cfg.Server.Port)
	}()
	logger.Info("server running",
		zap.String("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Driver),
		zap.Bool("archive", e.archiver != nil),
		zap.String("allowed_origins", cfg.Server.AllowedOrigins),
	)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	return app.ShutdownWithTimeout(10 * time.Second)
}

func runMissions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEngine(ctx, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer e.close()

	date := e.clock.Now()
	if missionDate != "" {
		date, err = time.ParseInLocation("2006-01-02", missionDate, e.clock.Location())
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
	}
	if _, err := e.missions.MaterializeInstances(ctx, date); err != nil {
		return fmt.Errorf("materializing instances: %w", err)
	}
	return printJSON(cmd, e.missions.Catalog.GetTemplatesForDate(date))
}

func runSweep(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd.Context(), prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer e.close()

	n, err := e.reconciler.ExpireStale(cmd.Context(), cfg.SweepStaleAfter())
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]int64{"expired": n})
}

func runReconcile(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd.Context(), prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer e.close()

	drift, err := e.reconciler.FindXPDrift(cmd.Context())
	if err != nil {
		return err
	}
	if drift == nil {
		drift = []services.XPDrift{}
	}
	return printJSON(cmd, map[string]any{"drift": drift})
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
