package station

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Assembler fetches every configured parameter and builds a Dataset.
type Assembler struct {
	source      Source
	station     string
	specs       []ParameterSpec
	window      DateRange
	logger      *slog.Logger
	callTimeout time.Duration
}

// AssemblerConfig holds the fixed per-deployment inputs.
type AssemblerConfig struct {
	Station    string
	Parameters []ParameterSpec
	Window     DateRange
	// CallTimeout bounds each parameter's retrieval including retries. Zero means no bound.
	CallTimeout time.Duration
}

// NewAssembler creates a new Assembler.
func NewAssembler(source Source, cfg AssemblerConfig, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		source:      source,
		station:     cfg.Station,
		specs:       cfg.Parameters,
		window:      cfg.Window,
		logger:      logger,
		callTimeout: cfg.CallTimeout,
	}
}

type fetchResult struct {
	series Series
	err    error
}

// Assemble retrieves all parameters concurrently, waits for every call to settle,
// and decodes them in configured order. Parameter failures are logged and
// collected; only a run where nothing survives returns ErrNoData.
func (a *Assembler) Assemble(ctx context.Context) (*Dataset, error) {
	if len(a.specs) == 0 {
		return nil, fmt.Errorf("no parameters configured: %w", ErrNoData)
	}

	a.logger.Debug("assembling dataset",
		"station", a.station, "source", a.source.Name(), "parameters", len(a.specs))

	// Each goroutine writes only its own slot, so no lock is needed and the
	// output order never depends on which call finishes first.
	results := make([]fetchResult, len(a.specs))
	var wg sync.WaitGroup
	for i, spec := range a.specs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = a.assembleOne(ctx, spec)
		}()
	}
	wg.Wait()

	ds := &Dataset{Station: a.station, Request: a.window}
	for i, r := range results {
		if r.err != nil {
			pe := ParameterError{Parameter: a.specs[i].Name, Err: r.err}
			ds.Failures = append(ds.Failures, pe)
			a.logger.Warn("parameter skipped", "parameter", pe.Parameter, "error", r.err)
			continue
		}
		ds.Series = append(ds.Series, r.series)
	}

	window, err := ComputeWindow(ds.Series)
	if err != nil {
		return ds, fmt.Errorf("all %d parameters failed: %w", len(a.specs), err)
	}
	ds.Window = window

	a.logger.Info("dataset assembled",
		"series", len(ds.Series), "failed", len(ds.Failures),
		"from", window.Min.Format(time.RFC3339), "to", window.Max.Format(time.RFC3339))
	return ds, nil
}

func (a *Assembler) assembleOne(ctx context.Context, spec ParameterSpec) fetchResult {
	if a.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.callTimeout)
		defer cancel()
	}

	body, err := a.source.Fetch(ctx, spec)
	if err != nil {
		return fetchResult{err: fmt.Errorf("fetch: %w", err)}
	}

	series, skipped, err := Decode(spec, a.window, body)
	if err != nil {
		return fetchResult{err: err}
	}
	for _, s := range skipped {
		level := slog.LevelWarn
		if s.Reason == SkipMissingValue {
			level = slog.LevelInfo
		}
		a.logger.Log(ctx, level, "record skipped",
			"parameter", spec.Name, "timestamp", s.Timestamp, "index", s.Index, "reason", string(s.Reason))
	}
	if series.Len() == 0 {
		return fetchResult{err: fmt.Errorf("%w: %d records received", ErrEmptySeries, series.RawCount)}
	}

	a.logger.Debug("parameter assembled",
		"parameter", spec.Name, "samples", series.Len(), "skipped", len(skipped))
	return fetchResult{series: series}
}
