package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"noble-ngs-quiz/internal/clients/curriculum"
	"noble-ngs-quiz/internal/clients/generator"
	"noble-ngs-quiz/internal/config"
	"noble-ngs-quiz/internal/database"
	"noble-ngs-quiz/internal/engine/coordinator"
	"noble-ngs-quiz/internal/engine/ledger"
	"noble-ngs-quiz/internal/engine/picker"
	"noble-ngs-quiz/internal/engine/session"
	"noble-ngs-quiz/internal/engine/store"
	"noble-ngs-quiz/internal/handlers"
)

func main() {
	cfg := config.Load()

	var st store.Store
	if cfg.MockGenerator {
		// Local/dev mode: keep everything in-process, no Postgres required.
		st = store.NewMemStore(store.SystemClock{})
	} else {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		if err := db.EnsureSchema(); err != nil {
			log.Fatalf("failed to apply schema: %v", err)
		}
		st = store.NewPGStore(db)
	}

	var gen coordinator.Generator
	if cfg.MockGenerator {
		gen = generator.NewMock()
	} else {
		gen = generator.NewClient(cfg.GeneratorBaseURL, func() string {
			return cfg.GeneratorServiceToken
		}, cfg.GenDeadline)
	}

	coord := coordinator.New(coordinator.Config{
		Workers:     cfg.GenWorkers,
		MaxAttempts: cfg.GenMaxAttempts,
		BackoffBase: cfg.GenBackoffBase,
		JitterFrac:  cfg.GenBackoffJitter,
		Deadline:    cfg.GenDeadline,
	}, st, gen)
	coord.Start()

	catalog := curriculum.New()

	sessionTracker := session.New(st)
	p := picker.New(st, catalog, coord, cfg.MinStock, cfg.SyncWait)
	l := ledger.New(st, sessionTracker)

	h := handlers.NewHandler(st, p, l, sessionTracker)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Get("/health", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Get("/questions/fetch", h.FetchQuestions)
	api.Post("/attempts", h.SubmitAttempt)
	api.Get("/progress", h.GetProgress)
	api.Post("/sessions", h.OpenSession)
	api.Post("/sessions/:id/end", h.EndSession)
	api.Get("/sessions/:id/summary", h.SessionSummary)
	api.Get("/subtopics", h.ListSubtopics)

	go func() {
		if err := app.Listen("0.0.0.0:" + cfg.Port); err != nil {
			log.Fatalf("server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(shutdownCtx)
	coord.Shutdown()
}
