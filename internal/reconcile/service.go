// Package reconcile compares a project's planned materials with a warehouse
// stock sheet.
//
// A run is a single blocking call: the sheet is loaded, validated, matched
// and reported before Run returns. Nothing is cached across runs.
package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sitestock/internal"
	"sitestock/internal/config"
	"sitestock/internal/errs"
	"sitestock/internal/sheet"
	"sitestock/internal/stock"
)

const (
	RunKind     = "reconcile"
	StatusOK    = "ok"
	StatusError = "error"
)

// TableSource fetches the raw headerless table behind a stock reference.
type TableSource interface {
	Load(ctx context.Context, ref string) (sheet.Table, error)
}

type RunRecorder interface {
	InsertRun(run internal.RunLog) error
}

type Request struct {
	ProjectID int
	StockRef  string
	Plan      []internal.PlannedMaterial
	// Threshold overrides the configured threshold when in 1..100.
	Threshold int
}

type Result struct {
	RunID string
	Table Table
	Stock SheetStats
}

type SheetStats struct {
	Rows          int
	Candidates    int
	SkippedRows   int
	BadQuantities int
}

type Service struct {
	source    TableSource
	runs      RunRecorder
	threshold int
	log       zerolog.Logger
	now       func() time.Time
}

// NewService wires a reconciliation service. runs may be nil.
func NewService(source TableSource, runs RunRecorder, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		source:    source,
		runs:      runs,
		threshold: cfg.StockMatchThreshold,
		log:       log,
		now:       time.Now,
	}
}

func (s *Service) Run(ctx context.Context, req Request) (Result, error) {
	start := s.now()
	res := Result{RunID: uuid.NewString()}
	threshold := s.threshold
	if req.Threshold > 0 && req.Threshold <= 100 {
		threshold = req.Threshold
	}
	log := s.log.With().Str("run", res.RunID).Int("project", req.ProjectID).Str("url", req.StockRef).Logger()

	table, stats, err := s.run(ctx, req, threshold)
	timings := map[string]float64{"totalMs": float64(s.now().Sub(start).Milliseconds())}
	if err != nil {
		log.Warn().Err(err).Str("kind", errs.Kind(err)).Msg("reconciliation failed")
		s.record(log, internal.RunLog{
			TraceID: res.RunID, Kind: RunKind, ProjectID: req.ProjectID, Ref: req.StockRef,
			Status: StatusError + ":" + errs.Kind(err), Timings: timings, Counts: map[string]int{},
		})
		return res, err
	}

	res.Table = table
	res.Stock = stats
	found := len(table.Found())
	log.Info().
		Int("rows", len(table.Rows)).
		Int("found", found).
		Int("notFound", len(table.Rows)-found).
		Int("candidates", stats.Candidates).
		Int("badQuantities", stats.BadQuantities).
		Int("threshold", threshold).
		Dur("took", s.now().Sub(start)).
		Msg("reconciliation done")
	s.record(log, internal.RunLog{
		TraceID: res.RunID, Kind: RunKind, ProjectID: req.ProjectID, Ref: req.StockRef,
		Status: StatusOK, Timings: timings,
		Counts: map[string]int{
			"rows": len(table.Rows), "found": found, "notFound": len(table.Rows) - found,
			"stockRows": stats.Rows, "candidates": stats.Candidates,
		},
	})
	return res, nil
}

func (s *Service) run(ctx context.Context, req Request, threshold int) (Table, SheetStats, error) {
	if len(req.Plan) == 0 {
		return Table{}, SheetStats{}, &errs.EmptyInputError{Input: "planned materials"}
	}

	raw, err := s.source.Load(ctx, req.StockRef)
	if err != nil {
		return Table{}, SheetStats{}, err
	}
	normalized, err := stock.Normalize(raw)
	if err != nil {
		return Table{}, SheetStats{}, err
	}

	stats := SheetStats{
		Rows:          len(normalized.Rows),
		Candidates:    len(normalized.Candidates),
		SkippedRows:   normalized.SkippedRows,
		BadQuantities: normalized.BadQuantities,
	}
	return Reconcile(req.Plan, normalized, threshold), stats, nil
}

func (s *Service) record(log zerolog.Logger, run internal.RunLog) {
	if s.runs == nil {
		return
	}
	if err := s.runs.InsertRun(run); err != nil {
		log.Error().Err(err).Msg("record reconciliation run")
	}
}
