package httpapi

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/Welkro/Tides-and-Currents-Predictions/internal/chart"
	"github.com/Welkro/Tides-and-Currents-Predictions/internal/playback"
	"github.com/Welkro/Tides-and-Currents-Predictions/internal/sse"
	"github.com/Welkro/Tides-and-Currents-Predictions/internal/station"
	"github.com/Welkro/Tides-and-Currents-Predictions/internal/store"
)

var validate = validator.New()

const keepaliveInterval = 30 * time.Second

// Player is the playback control surface exposed over HTTP.
type Player interface {
	Start(ctx context.Context) error
	Pause() error
	Resume() error
	Stop() error
	Status() playback.Status
}

// Deps are the components the routes read from and control.
type Deps struct {
	Store  *store.MemoryStore
	Chart  *chart.Chart
	Player Player
	Hub    *sse.Hub
	Logger *slog.Logger
	// Ctx is the parent context for replays started over HTTP.
	Ctx context.Context
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.Ctx == nil {
		d.Ctx = context.Background()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	v1 := app.Group("/api/v1")

	v1.Get("/dataset", func(c *fiber.Ctx) error {
		ds, at, err := d.Store.Dataset()
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}

		summaries := make([]seriesSummary, 0, len(ds.Series))
		for _, s := range ds.Series {
			summaries = append(summaries, seriesSummary{
				Parameter: s.Parameter,
				Label:     s.Label,
				Samples:   s.Len(),
				Records:   s.RawCount,
				Gaps:      len(s.Gaps),
			})
		}
		return c.JSON(fiber.Map{
			"station":     ds.Station,
			"window":      ds.Window,
			"series":      summaries,
			"failures":    ds.Failures,
			"assembledAt": at,
		})
	})

	v1.Get("/series/:parameter", func(c *fiber.Ctx) error {
		var req seriesQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		p := station.Parameter(req.Parameter)
		if req.Range == nil {
			series, err := d.Store.GetSeries(p)
			if err != nil {
				return notFoundOr500(err, "failed to read series")
			}
			return c.JSON(series)
		}

		samples, err := d.Store.GetRange(p, req.Range.From, req.Range.To)
		if err != nil {
			return notFoundOr500(err, "failed to read series range")
		}
		return c.JSON(fiber.Map{
			"parameter": p,
			"from":      req.Range.From,
			"to":        req.Range.To,
			"samples":   samples,
		})
	})

	v1.Get("/chart", func(c *fiber.Ctx) error {
		return c.JSON(d.Chart.Layout())
	})

	v1.Get("/chart/series/:parameter", func(c *fiber.Ctx) error {
		req := parameterPath{Parameter: c.Params("parameter")}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		points, err := d.Chart.Points(req.Parameter)
		if err != nil {
			if errors.Is(err, chart.ErrUnknownSeries) {
				return fiber.NewError(fiber.StatusNotFound, "no chart series for requested parameter")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read chart series")
		}
		return c.JSON(fiber.Map{
			"series": req.Parameter,
			"points": points,
		})
	})

	v1.Get("/playback", func(c *fiber.Ctx) error {
		return c.JSON(d.Player.Status())
	})

	v1.Post("/playback/:action", func(c *fiber.Ctx) error {
		req := playbackAction{Action: c.Params("action")}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		var err error
		switch req.Action {
		case "start":
			err = d.Player.Start(d.Ctx)
		case "pause":
			err = d.Player.Pause()
		case "resume":
			err = d.Player.Resume()
		case "stop":
			err = d.Player.Stop()
		}
		if err != nil {
			if errors.Is(err, playback.ErrAlreadyRunning) ||
				errors.Is(err, playback.ErrNotRunning) ||
				errors.Is(err, playback.ErrNotPaused) {
				return fiber.NewError(fiber.StatusConflict, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(d.Player.Status())
	})

	v1.Get("/events", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")
		c.Set("X-Accel-Buffering", "no")

		id, messages := d.Hub.AddClient()
		hello := sse.Message{
			Type: sse.EventConnected,
			Data: fiber.Map{
				"client_id": id,
				"chart":     d.Chart.Layout(),
				"playback":  d.Player.Status(),
			},
			Timestamp: time.Now().UTC(),
		}
		logger := d.Logger
		hub := d.Hub

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer hub.RemoveClient(id)
			streamEvents(w, hello, messages, keepaliveInterval, logger)
		}))
		return nil
	})
}

// streamEvents writes hello, then every hub message, until the client goes
// away or the hub closes the channel. A keepalive comment is written every interval.
func streamEvents(w *bufio.Writer, hello sse.Message, messages <-chan sse.Message, interval time.Duration, logger *slog.Logger) {
	if err := sse.WriteMessage(w, hello); err != nil {
		return
	}

	keepalive := time.NewTicker(interval)
	defer keepalive.Stop()

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if err := sse.WriteMessage(w, msg); err != nil {
				logger.Debug("sse write failed", "error", err)
				return
			}
		case <-keepalive.C:
			if err := sse.WriteKeepalive(w); err != nil {
				return
			}
		}
	}
}

func notFoundOr500(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrEmpty) {
		return fiber.NewError(fiber.StatusNotFound, "no data for requested parameter or range")
	}
	return fiber.NewError(fiber.StatusInternalServerError, msg)
}

type seriesSummary struct {
	Parameter station.Parameter `json:"parameter"`
	Label     string            `json:"label"`
	Samples   int               `json:"samples"`
	Records   int               `json:"records"`
	Gaps      int               `json:"gaps"`
}

type parameterPath struct {
	Parameter string `validate:"required,oneof=wind air_pressure water_level tide_predictions water_temperature air_temperature"`
}

type playbackAction struct {
	Action string `validate:"required,oneof=start pause resume stop"`
}

// rangeQuery holds an inclusive time range.
type rangeQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

// seriesQuery holds the path and optional range of the series endpoint.
// Either both bounds are given or neither.
type seriesQuery struct {
	parameterPath
	Range *rangeQuery `validate:"omitempty"`
}

func (q *seriesQuery) bind(c *fiber.Ctx) error {
	q.Parameter = c.Params("parameter")
	q.Range = nil

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if (fromStr == "") != (toStr == "") {
		return errors.New("from and to must be given together")
	}
	if fromStr == "" {
		return nil
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}
	q.Range = &rangeQuery{From: from, To: to}
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
