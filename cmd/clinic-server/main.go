package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinic/frontdesk/internal/config"
	"github.com/clinic/frontdesk/internal/domain/availability"
	"github.com/clinic/frontdesk/internal/domain/patient"
	"github.com/clinic/frontdesk/internal/domain/scheduling"
	"github.com/clinic/frontdesk/internal/domain/staff"
	"github.com/clinic/frontdesk/internal/domain/transfer"
	"github.com/clinic/frontdesk/internal/platform/auth"
	"github.com/clinic/frontdesk/internal/platform/db"
	"github.com/clinic/frontdesk/internal/platform/docstore"
	"github.com/clinic/frontdesk/internal/platform/middleware"
	"github.com/clinic/frontdesk/internal/platform/notification"
	"github.com/clinic/frontdesk/internal/platform/sandbox"
	"github.com/clinic/frontdesk/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic front-desk API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(notifyWorkerCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations (postgres backend)",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			migrator, closeFn, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			fmt.Printf("Running migrations on schema: %s\n", schema)
			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "public", "Target schema for migrations")
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			migrator, closeFn, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "public", "Target schema for migrations")
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func openMigrator(ctx context.Context, dir string) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.StoreBackend != config.BackendPostgres {
		return nil, nil, fmt.Errorf("migrations apply to the %s backend only (STORE_BACKEND=%s)", config.BackendPostgres, cfg.StoreBackend)
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, poolOptions(cfg))
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrationSource(dir)), pool.Close, nil
}

func poolOptions(cfg *config.Config) db.PoolOptions {
	return db.PoolOptions{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns, AppName: "clinic-server"}
}

func migrationSource(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func notifyWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify-worker",
		Short: "Deliver queued transfer notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is required for notify-worker")
			}
			logger := newLogger(cfg.Env)

			conn, ch, err := notification.DialQueue(cfg.AMQPURL, cfg.NotifyQueue)
			if err != nil {
				return err
			}
			defer conn.Close()
			defer ch.Close()

			deliveries, err := notification.Consume(ch, cfg.NotifyQueue, "clinic-notify-worker")
			if err != nil {
				return fmt.Errorf("consume %s: %w", cfg.NotifyQueue, err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			consumer := notification.NewConsumer(newManager(cfg, logger), logger)
			logger.Info().Str("queue", cfg.NotifyQueue).Msg("notify worker started")
			err = consumer.Run(ctx, deliveries)
			logger.Info().Msg("notify worker stopped")
			return err
		},
	}
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a demo clinic (therapists, schedules, patients, appointments)",
		RunE: func(cmd *cobra.Command, args []string) error {
			seedCfg, err := seedConfigFromFlags(cmd)
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env)

			ctx := context.Background()
			st, closeStores, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStores()

			a, err := newApp(st, cfg, notification.Discard{}, newManager(cfg, logger), prometheus.NewRegistry(), logger)
			if err != nil {
				return err
			}
			seeder := sandbox.NewSeeder(seedCfg, sandbox.Targets{
				Therapists:   a.staff,
				Schedules:    a.availability,
				Patients:     a.patients,
				Appointments: a.scheduling,
			}, logger)

			result, err := seeder.Run(ctx)
			if err != nil {
				return fmt.Errorf("seed failed after %d therapist(s), %d patient(s): %w", result.Therapists, result.Patients, err)
			}
			fmt.Printf("Seeded %d therapist(s), %d patient(s) (%d unassigned), %d appointment(s) in %s.\n",
				result.Therapists, result.Patients, result.Unassigned, result.Appointments, result.Duration.Round(time.Millisecond))
			return nil
		},
	}
	def := sandbox.DefaultSeedConfig()
	cmd.Flags().Int("therapists", def.TherapistCount, "Number of therapists")
	cmd.Flags().Int("patients", def.PatientCount, "Number of patients")
	cmd.Flags().Int("appointments", def.AppointmentsPerPatient, "Appointments per assigned patient")
	cmd.Flags().Int("days", def.ScheduleDays, "Days of published availability")
	cmd.Flags().Int("unassigned-every", def.UnassignedEvery, "Leave every Nth patient without a therapist (0 = none)")
	cmd.Flags().String("start", "", "First schedule date, YYYY-MM-DD (default today)")
	cmd.Flags().Int64("seed", 0, "Random seed for reproducible data (0 = time based)")
	return cmd
}

func seedConfigFromFlags(cmd *cobra.Command) (sandbox.SeedConfig, error) {
	cfg := sandbox.DefaultSeedConfig()
	cfg.TherapistCount, _ = cmd.Flags().GetInt("therapists")
	cfg.PatientCount, _ = cmd.Flags().GetInt("patients")
	cfg.AppointmentsPerPatient, _ = cmd.Flags().GetInt("appointments")
	cfg.ScheduleDays, _ = cmd.Flags().GetInt("days")
	cfg.UnassignedEvery, _ = cmd.Flags().GetInt("unassigned-every")
	cfg.Seed, _ = cmd.Flags().GetInt64("seed")

	if start, _ := cmd.Flags().GetString("start"); start != "" {
		d, err := time.Parse(availability.DateLayout, start)
		if err != nil {
			return cfg, fmt.Errorf("--start must be YYYY-MM-DD: %w", err)
		}
		cfg.StartDate = d
	}
	if cfg.TherapistCount < 0 || cfg.PatientCount < 0 || cfg.AppointmentsPerPatient < 0 || cfg.ScheduleDays < 0 {
		return cfg, errors.New("seed counts must not be negative")
	}
	return cfg, nil
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// stores is one backend's set of repositories plus its transaction boundary.
type stores struct {
	therapists   staff.Repository
	availability availability.Repository
	patients     patient.Repository
	appointments scheduling.AppointmentRepository
	requests     transfer.RequestRepository
	history      transfer.HistoryRepository
	tx           db.Transactor
	health       db.Pinger
}

func pgStores(pool *pgxpool.Pool) *stores {
	return &stores{
		therapists:   staff.NewRepoPG(pool),
		availability: availability.NewRepoPG(pool),
		patients:     patient.NewRepoPG(pool),
		appointments: scheduling.NewAppointmentRepoPG(pool),
		requests:     transfer.NewRequestRepoPG(pool),
		history:      transfer.NewHistoryRepoPG(pool),
		tx:           db.NewPgTransactor(pool),
		health:       pool,
	}
}

func supabaseStores(client *docstore.Client) *stores {
	return &stores{
		therapists:   staff.NewRepoSupabase(client),
		availability: availability.NewRepoSupabase(client),
		patients:     patient.NewRepoSupabase(client),
		appointments: scheduling.NewAppointmentRepoSupabase(client),
		requests:     transfer.NewRequestRepoSupabase(client),
		history:      transfer.NewHistoryRepoSupabase(client),
		tx:           db.NoopTransactor{},
		health:       client,
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendSupabase:
		client, err := docstore.NewClient(cfg.SupabaseURL, cfg.SupabaseKey)
		if err != nil {
			return nil, nil, err
		}
		return supabaseStores(client), func() {}, nil
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, poolOptions(cfg))
		if err != nil {
			return nil, nil, err
		}
		return pgStores(pool), pool.Close, nil
	}
}

func newManager(cfg *config.Config, logger zerolog.Logger) *notification.Manager {
	var email notification.EmailSender = notification.LogSender{Logger: logger}
	if cfg.SMTPHost != "" {
		email = notification.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	}
	var sms notification.SMSSender = notification.LogSender{Logger: logger}
	if cfg.SMSAPIURL != "" {
		sms = notification.NewHTTPSMSSender(cfg.SMSAPIURL, cfg.SMSAPIKey, cfg.SMSSecretKey, cfg.SMSSender)
	}
	return notification.NewManager(email, sms, notification.NewTemplateEngine(), logger)
}

// notifier picks the transfer notification side channel. The returned stop
// function drains or closes whatever was started.
func notifier(cfg *config.Config, mgr *notification.Manager, logger zerolog.Logger) (notification.Dispatcher, func(context.Context) error, error) {
	switch cfg.NotifyMode {
	case config.NotifyOff:
		return notification.Discard{}, func(context.Context) error { return nil }, nil
	case config.NotifyAMQP:
		conn, ch, err := notification.DialQueue(cfg.AMQPURL, cfg.NotifyQueue)
		if err != nil {
			return nil, nil, err
		}
		w := notification.NewWorker(notification.NewAMQPPublisher(ch, cfg.NotifyQueue), cfg.NotifyBuffer, logger)
		w.Start()
		stop := func(ctx context.Context) error {
			drainErr := w.Stop(ctx)
			ch.Close()
			return errors.Join(drainErr, conn.Close())
		}
		return w, stop, nil
	default:
		w := notification.NewWorker(mgr, cfg.NotifyBuffer, logger)
		w.Start()
		return w, w.Stop, nil
	}
}

type app struct {
	staff        *staff.Service
	patients     *patient.Service
	scheduling   *scheduling.Service
	availability *availability.Service
	transfers    *transfer.Service
	notify       *notification.Manager
	health       db.Pinger
}

func newApp(st *stores, cfg *config.Config, dispatcher notification.Dispatcher, mgr *notification.Manager, reg prometheus.Registerer, logger zerolog.Logger) (*app, error) {
	staffSvc, err := staff.NewService(st.therapists, cfg.StaffCacheSize)
	if err != nil {
		return nil, fmt.Errorf("staff service: %w", err)
	}
	patientSvc := patient.NewService(st.patients, staffSvc)
	schedSvc := scheduling.NewService(st.appointments, patientSvc, staffSvc)
	availSvc := availability.NewService(st.availability)

	transferSvc := transfer.NewService(transfer.Deps{
		Requests:     st.requests,
		History:      st.history,
		Patients:     patientSvc,
		Appointments: schedSvc,
		Availability: availSvc,
		Therapists:   staffSvc,
		Tx:           st.tx,
		Notifier:     dispatcher,
		Metrics:      transfer.NewMetrics(reg),
		Logger:       logger,
	})

	return &app{
		staff:        staffSvc,
		patients:     patientSvc,
		scheduling:   schedSvc,
		availability: availSvc,
		transfers:    transferSvc,
		notify:       mgr,
		health:       st.health,
	}, nil
}

func newServer(cfg *config.Config, a *app, reg *prometheus.Registry, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.HTTPMetrics(reg))
	e.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{HSTS: cfg.IsProduction()}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, auth.ActorHeader},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
			Skipper:  auth.AuthSkipper,
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(a.health))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	apiV1 := e.Group("/api/v1", middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           middleware.DefaultRateLimitConfig().IdleTTL,
	}))

	staff.NewHandler(a.staff).RegisterRoutes(apiV1)
	availability.NewHandler(a.availability).RegisterRoutes(apiV1)
	patient.NewHandler(a.patients).RegisterRoutes(apiV1)
	scheduling.NewHandler(a.scheduling).RegisterRoutes(apiV1)
	transfer.NewHandler(a.transfers).RegisterRoutes(apiV1)

	adminGroup := apiV1.Group("", auth.RequireRole("admin"))
	notification.NewHandler(a.notify).RegisterRoutes(adminGroup)

	return e
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Env)

	// Store
	ctx := context.Background()
	st, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open store")
	}
	defer closeStores()
	logger.Info().Str("backend", cfg.StoreBackend).Bool("atomic", st.tx.Atomic()).Msg("store ready")

	// Notifications
	mgr := newManager(cfg, logger)
	dispatcher, stopNotify, err := notifier(cfg, mgr, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("mode", cfg.NotifyMode).Msg("failed to start notifications")
	}

	reg := newRegistry()
	a, err := newApp(st, cfg, dispatcher, mgr, reg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}
	e := newServer(cfg, a, reg, logger)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := stopNotify(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("notifications not fully drained")
	}
	logger.Info().Msg("server stopped")
	return nil
}
