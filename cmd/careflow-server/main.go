package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/careflow/careflow/internal/config"
	"github.com/careflow/careflow/internal/domain/inbox"
	"github.com/careflow/careflow/internal/domain/patient"
	"github.com/careflow/careflow/internal/domain/timeline"
	"github.com/careflow/careflow/internal/notify"
	"github.com/careflow/careflow/internal/platform/auth"
	"github.com/careflow/careflow/internal/platform/db"
	"github.com/careflow/careflow/internal/platform/middleware"
	"github.com/careflow/careflow/internal/platform/notification"
	"github.com/careflow/careflow/internal/platform/websocket"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "careflow-server",
		Short: "Patient workflow tracking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the workflow API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

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
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// hubSink bridges coordinator decisions onto the websocket hub, avoiding a
// circular import between the notify and websocket packages.
type hubSink struct {
	hub *websocket.Hub
}

func (s *hubSink) DeliverCount(userID string, count int) {
	data, _ := json.Marshal(map[string]int{"count": count})
	s.hub.SendToUser(userID, websocket.Event{Type: websocket.EventUnreadCount, Data: data})
}

func (s *hubSink) DeliverPopup(userID string, p notify.Popup) {
	data, _ := json.Marshal(p)
	s.hub.SendToUser(userID, websocket.Event{Type: websocket.EventPopup, Data: data})
}

// coordinatorObserver binds hub connect/disconnect to coordinator sessions.
// Sessions run on the server's base context, not the upgrade request's, so a
// session outlives the HTTP handshake that started it.
type coordinatorObserver struct {
	base context.Context
	c    *notify.Coordinator
}

func (o *coordinatorObserver) Attached(_ context.Context, userID string) {
	o.c.Attach(o.base, userID)
}

func (o *coordinatorObserver) Detached(userID string) {
	o.c.Detach(userID)
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	baseCtx, baseCancel := context.WithCancel(context.Background())
	defer baseCancel()
	pool, err := db.NewPool(baseCtx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Secret:   []byte(cfg.AuthSecret),
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
		}))
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	apiV1 := e.Group("/api/v1")

	// Rate limiting on the API surface
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Domain services
	inboxSvc := inbox.NewService(inbox.NewRepoPG(pool))
	patientSvc := patient.NewService(patient.NewRepoPG(pool), logger)

	// Status change side effects: system inbox message + optional email.
	var sender notification.EmailSender = &notification.LogSender{From: cfg.NotifyEmailFrom, Logger: logger}
	emailMgr := notification.NewManager(sender, notification.NewTemplateEngine())
	patientSvc.SetNotifier(notify.NewStatusNotifier(inboxSvc, emailMgr, cfg.NotifyEmailEnabled, logger))

	// Real-time delivery: websocket hub fed by the poll/push coordinator.
	hub := websocket.NewHub()
	coordinator := notify.NewCoordinator(inboxSvc, &hubSink{hub: hub}, cfg.PollInterval(), logger)
	hub.SetObserver(&coordinatorObserver{base: baseCtx, c: coordinator})

	go runInsertListener(baseCtx, pool, coordinator, logger)

	// Routes
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	timeline.NewHandler(patientSvc).RegisterRoutes(apiV1)
	inbox.NewHandler(inboxSvc).RegisterRoutes(apiV1)
	websocket.NewHandler(hub).RegisterRoutes(e.Group(""))

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
	baseCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// runInsertListener keeps a LISTEN subscription alive for the message insert
// channel, re-establishing it after connection loss.
func runInsertListener(ctx context.Context, pool *pgxpool.Pool, coordinator *notify.Coordinator, logger zerolog.Logger) {
	for {
		listener, err := db.Listen(ctx, pool, notify.InsertChannel)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Msg("insert listener subscribe failed, retrying")
			time.Sleep(3 * time.Second)
			continue
		}

		err = coordinator.RunListener(ctx, listener)
		listener.Close(context.Background())
		if ctx.Err() != nil {
			return
		}
		logger.Warn().Err(err).Msg("insert listener dropped, reconnecting")
		time.Sleep(time.Second)
	}
}
