package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/Welkro/Tides-and-Currents-Predictions/internal/api/http"
	"github.com/Welkro/Tides-and-Currents-Predictions/internal/chart"
	"github.com/Welkro/Tides-and-Currents-Predictions/internal/config"
	"github.com/Welkro/Tides-and-Currents-Predictions/internal/logging"
	"github.com/Welkro/Tides-and-Currents-Predictions/internal/mqtt"
	"github.com/Welkro/Tides-and-Currents-Predictions/internal/playback"
	"github.com/Welkro/Tides-and-Currents-Predictions/internal/scheduler"
	"github.com/Welkro/Tides-and-Currents-Predictions/internal/sse"
	"github.com/Welkro/Tides-and-Currents-Predictions/internal/station"
	"github.com/Welkro/Tides-and-Currents-Predictions/internal/station/noaa"
	"github.com/Welkro/Tides-and-Currents-Predictions/internal/store"
)

const appName = "station-replay"

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg := logging.New(cfg.AppEnv, cfg.SlogLevel(), appName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound upstream calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	window := cfg.Window()
	source := noaa.NewClient(httpClient, noaa.Query{
		BaseURL:  cfg.NOAABaseURL,
		Station:  cfg.StationID,
		Begin:    window.Begin,
		End:      window.End,
		Datum:    cfg.Datum,
		TimeZone: cfg.TimeZone,
		Units:    cfg.Units,
	}, noaa.BackoffConfig{
		MaxRetries:      cfg.FetchMaxRetries,
		InitialInterval: cfg.FetchBackoff,
		MaxInterval:     cfg.FetchMaxBackoff,
	})

	// Fetch and assemble once; nothing is refetched afterwards.
	assembler := station.NewAssembler(source, station.AssemblerConfig{
		Station:     cfg.StationID,
		Parameters:  cfg.ParameterSpecs(),
		Window:      window,
		// Worst case: every attempt times out, plus the backoff waits between them.
		CallTimeout: time.Duration(cfg.FetchMaxRetries+1)*cfg.HTTPTimeout + cfg.FetchMaxBackoff*time.Duration(cfg.FetchMaxRetries),
	}, lg)

	ds, err := assembler.Assemble(ctx)
	if err != nil {
		if errors.Is(err, station.ErrNoData) {
			lg.Error("no data: every parameter failed, nothing to replay", "error", err)
		} else {
			lg.Error("assembly failed", "error", err)
		}
		os.Exit(1)
	}

	memStore := store.NewMemoryStore()
	memStore.SaveDataset(ds)

	// Display side: the chart holds emitted points, the hub streams them.
	ch := chart.FromDataset(ds, cfg.StationName)
	hub := sse.NewHub(lg)
	ch.Subscribe(hub)

	if cfg.MQTTBroker != "" {
		pub, err := mqtt.Connect(mqtt.Config{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
			Station:     cfg.StationID,
		}, lg)
		if err != nil {
			lg.Warn("mqtt mirror disabled", "error", err)
		} else {
			ch.Subscribe(pub)
			defer pub.Close()
		}
	}

	channels := make(map[station.Parameter]playback.Channel, len(ds.Series))
	for _, s := range ds.Series {
		series, _ := ch.Series(string(s.Parameter))
		channels[s.Parameter] = series
	}

	player, err := playback.NewController(ds, channels, playback.Config{
		Delay:    cfg.PlaybackDelay,
		Pacing:   playback.Pacing(cfg.PlaybackPacing),
		Speedup:  cfg.PlaybackSpeedup,
		MaxDelay: time.Second,
	}, lg)
	if err != nil {
		lg.Error("failed to prepare playback", "error", err)
		os.Exit(1)
	}
	player.OnReset(ch.Reset)
	player.OnChange(func(st playback.Status) {
		hub.Broadcast(sse.EventStatus, st)
	})

	sched := scheduler.New(ctx, cfg.ReplayInterval, player, lg)
	if err := sched.Start(); err != nil {
		lg.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": appName,
			"station": cfg.StationID,
		})
	})

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Store:  memStore,
		Chart:  ch,
		Player: player,
		Hub:    hub,
		Logger: lg,
		Ctx:    ctx,
	})

	go func() {
		lg.Info("http server listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			lg.Warn("fiber server stopped", "error", err)
		}
	}()

	if cfg.PlaybackAutostart {
		if err := player.Start(ctx); err != nil {
			lg.Error("failed to start playback", "error", err)
		}
	}

	// Wait for termination signal
	<-ctx.Done()
	lg.Info("shutting down")

	if err := player.Stop(); err != nil && !errors.Is(err, playback.ErrNotRunning) {
		lg.Warn("error stopping playback", "error", err)
	}
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		lg.Warn("error during shutdown", "error", err)
	}
}
