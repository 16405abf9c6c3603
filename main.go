package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yashasviy/transfer-map/api"
	"github.com/yashasviy/transfer-map/config"
	"github.com/yashasviy/transfer-map/db"
	"github.com/yashasviy/transfer-map/generator"
	"github.com/yashasviy/transfer-map/geo"
	"github.com/yashasviy/transfer-map/logger"
	"github.com/yashasviy/transfer-map/middleware"
	"github.com/yashasviy/transfer-map/models"
	"github.com/yashasviy/transfer-map/store"
)

func main() {
	// Standard log until slog is configured
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	l := logger.New(os.Stdout, cfg.Mode)
	slog.SetDefault(l)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, l); err != nil {
		l.Error("Transfer map stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, l *slog.Logger) error {
	places, err := loadPlaces(ctx, cfg, l)
	if err != nil {
		return err
	}

	var rng *rand.Rand
	if cfg.Requests.Seed != 0 {
		rng = rand.New(rand.NewPCG(cfg.Requests.Seed, cfg.Requests.Seed))
	}
	gen := generator.New(rng)

	var pin *models.Pin
	if cfg.Requests.PinFrom != "" || cfg.Requests.PinTo != "" {
		pin = &models.Pin{From: cfg.Requests.PinFrom, To: cfg.Requests.PinTo}
	}
	initial, err := gen.Generate(cfg.Requests.Initial, pin)
	if err != nil {
		return fmt.Errorf("generate initial requests: %w", err)
	}
	requests := store.New(gen, initial)
	middleware.StoreSize.Set(float64(requests.Len()))
	l.Info("Generated initial transfer requests", slog.Int("count", len(initial)))

	handler := api.NewHandler(requests, gen, geo.NewPlaces(places), geo.UKAlbers(cfg.Canvas.Width, cfg.Canvas.Height), l)

	var actionMW []func(http.Handler) http.Handler
	if cfg.Repositories.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Repositories.Redis.Addr,
			Password: cfg.Repositories.Redis.Password,
			DB:       cfg.Repositories.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		l.Info("Redis connected, idempotent actions enabled", slog.String("addr", cfg.Repositories.Redis.Addr))
		actionMW = append(actionMW, middleware.Idempotency(rdb, cfg.Repositories.Redis.TTL, l))
	}

	router := chi.NewMux()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(logger.StructuredLogger(l))
	router.Use(chimw.Recoverer)
	router.Use(middleware.Prometheus)
	router.Handle("/metrics", promhttp.Handler())
	router.Mount("/", handler.Routes(actionMW...))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(l.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("Starting HTTP server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	l.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	l.Info("Transfer map stopped")
	return nil
}

func loadPlaces(ctx context.Context, cfg config.Config, l *slog.Logger) ([]models.Place, error) {
	switch cfg.Places.Source {
	case "file":
		l.Info("Loading places from file", slog.String("file", cfg.Places.File))
		return geo.LoadFile(cfg.Places.File)
	case "postgres":
		conn, err := db.Open(ctx, cfg.Repositories.Postgres.URL)
		if err != nil {
			return nil, err
		}
		defer conn.Close()
		if err := db.Initialize(ctx, conn); err != nil {
			return nil, err
		}
		if cfg.Places.Seed {
			bundled, err := geo.DefaultPlaces()
			if err != nil {
				return nil, err
			}
			if err := db.SeedPlaces(ctx, conn, bundled); err != nil {
				return nil, err
			}
		}
		l.Info("Loading places from postgres")
		return db.LoadPlaces(ctx, conn)
	default:
		return geo.DefaultPlaces()
	}
}
