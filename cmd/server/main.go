package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/iliyamo/game-rental-reservation/internal/config"
	"github.com/iliyamo/game-rental-reservation/internal/database"
	"github.com/iliyamo/game-rental-reservation/internal/handler"
	"github.com/iliyamo/game-rental-reservation/internal/middleware"
	"github.com/iliyamo/game-rental-reservation/internal/queue"
	"github.com/iliyamo/game-rental-reservation/internal/repository"
	"github.com/iliyamo/game-rental-reservation/internal/router"
	"github.com/iliyamo/game-rental-reservation/internal/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "gamerent",
		Short:        "Board game rental reservation service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newSeedCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Apply the schema and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, closeAll, err := bootstrap()
			if err != nil {
				return err
			}
			defer closeAll()
			if err := database.Migrate(context.Background(), db); err != nil {
				return err
			}
			slog.Info("schema applied", "dialect", db.Dialect)
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert the game catalog from YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, closeAll, err := bootstrap()
			if err != nil {
				return err
			}
			defer closeAll()
			if file == "" {
				file = cfg.SeedFile
			}
			ctx := context.Background()
			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			cat, err := database.LoadCatalog(file)
			if err != nil {
				return err
			}
			n, err := database.Seed(ctx, db, cat)
			if err != nil {
				return err
			}
			slog.Info("catalog seeded", "games", n, "file", file)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "catalog YAML (default: SEED_FILE or the embedded demo catalog)")
	return cmd
}

// bootstrap loads config, sets up logging and opens the database.
func bootstrap() (config.Config, *database.DB, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("load config: %w", err)
	}
	_, logCloser := config.SetupLogger(cfg.Log)
	db, err := database.Open(cfg.DB)
	if err != nil {
		_ = logCloser.Close()
		return config.Config{}, nil, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, db, func() {
		_ = db.Close()
		_ = logCloser.Close()
	}, nil
}

func runServe(parent context.Context) error {
	// config, logging and database
	cfg, db, closeAll, err := bootstrap()
	if err != nil {
		return err
	}
	defer closeAll()
	logger := slog.Default()

	if parent == nil {
		parent = context.Background()
	}
	// ctx is cancelled on SIGINT or SIGTERM
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	// Redis backs the rate limiter and the response cache; nil disables both
	redisCfg, err := config.LoadRedisConfig()
	if err != nil {
		return err
	}
	cacheCfg, err := config.LoadCacheConfig()
	if err != nil {
		return err
	}
	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		return err
	}
	rdb := config.NewRedisClient(redisCfg)
	if rdb != nil {
		defer rdb.Close()
	}

	// reservation events go to RabbitMQ when enabled
	var events service.EventPublisher = queue.NopPublisher{}
	if cfg.AMQP.Enabled {
		pub := queue.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, logger)
		defer pub.Close()
		events = pub
	}
	// optional in-process audit consumer writing to a rotating file
	if cfg.AMQP.Enabled && cfg.AMQP.ConsumerEnabled {
		audit := config.NewRotatingFile(cfg.AMQP.AuditLogFile, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays, cfg.Log.Compress)
		defer audit.Close()
		consumer := queue.NewAuditConsumer(cfg.AMQP.URL, cfg.AMQP.Queue, audit, logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("audit consumer stopped", "err", err)
			}
		}()
	}

	// repositories and the reservation service
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	games := repository.NewGameRepo(db)
	reservations := repository.NewReservationRepo(db)
	svc := service.NewReservationService(db, games, reservations, service.Options{
		Location:        cfg.Location(),
		MaxCalendarDays: cfg.CalendarMaxDays,
		Events:          events,
		Logger:          logger,
	})

	// Echo with global middleware
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.CORS())
	e.Use(middleware.NewTokenBucket(rlCfg, rdb))

	// routes
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterPublic(e, handler.NewGameHandler(games, svc), cacheCfg, rdb)
	resH := handler.NewReservationHandler(svc)
	router.RegisterCustomer(e, resH, handler.NewUserHandler(users, svc), cfg.JWTSecret)
	router.RegisterAdmin(e, resH, cfg.JWTSecret)

	// start in the background and wait for a signal or a listen error
	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env, "db", db.Dialect, "tz", cfg.Location().String())
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	// drain in-flight requests for up to ten seconds
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
