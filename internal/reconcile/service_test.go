package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"sitestock/internal"
	"sitestock/internal/config"
	"sitestock/internal/errs"
	"sitestock/internal/sheet"
)

type stubSource struct {
	table sheet.Table
	err   error
	refs  []string
}

func (s *stubSource) Load(_ context.Context, ref string) (sheet.Table, error) {
	s.refs = append(s.refs, ref)
	return s.table, s.err
}

type memRuns struct {
	runs []internal.RunLog
}

func (m *memRuns) InsertRun(run internal.RunLog) error {
	m.runs = append(m.runs, run)
	return nil
}

func testService(src TableSource, runs RunRecorder) *Service {
	return NewService(src, runs, config.Config{StockMatchThreshold: 80}, zerolog.Nop())
}

func TestRunReconcilesAndRecords(t *testing.T) {
	src := &stubSource{table: sheet.Table{
		stockRow("Bag cement 50kg", "A", "10", "S1"),
		make([]string, 3),
		stockRow("Bag cement 50kg", "B", "5", "S2"),
	}}
	runs := &memRuns{}
	res, err := testService(src, runs).Run(context.Background(), Request{
		ProjectID: 7,
		StockRef:  "https://example.com/stock.xlsx",
		Plan:      []internal.PlannedMaterial{{Name: "Cement bag 50kg", Unit: "bag"}, {Name: "Drill bit 6mm", Unit: "шт"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.RunID == "" || len(res.Table.Rows) != 2 || res.Table.Threshold != 80 {
		t.Fatalf("res=%+v", res)
	}
	if res.Stock.Rows != 2 || res.Stock.Candidates != 1 || res.Stock.SkippedRows != 1 {
		t.Fatalf("stats=%+v", res.Stock)
	}
	if len(runs.runs) != 1 {
		t.Fatalf("runs=%v", runs.runs)
	}
	run := runs.runs[0]
	if run.TraceID != res.RunID || run.Status != StatusOK || run.ProjectID != 7 || run.Counts["found"] != 1 || run.Counts["notFound"] != 1 {
		t.Fatalf("run=%+v", run)
	}
}

func TestRunEmptyPlanFailsBeforeFetch(t *testing.T) {
	src := &stubSource{}
	runs := &memRuns{}
	_, err := testService(src, runs).Run(context.Background(), Request{StockRef: "https://example.com/s.xlsx"})
	if !errors.Is(err, errs.ErrEmptyInput) {
		t.Fatalf("err=%v", err)
	}
	if len(src.refs) != 0 {
		t.Fatalf("source was called: %v", src.refs)
	}
	if len(runs.runs) != 1 || runs.runs[0].Status != "error:empty_input" {
		t.Fatalf("runs=%+v", runs.runs)
	}
}

func TestRunFormatErrorReturnsNoTable(t *testing.T) {
	src := &stubSource{table: sheet.Table{make([]string, 10)}}
	res, err := testService(src, nil).Run(context.Background(), Request{StockRef: "x.csv", Plan: plan("sand")})
	var fe *errs.FormatError
	if !errors.As(err, &fe) || fe.Found != 10 || fe.Required != 17 {
		t.Fatalf("err=%v", err)
	}
	if len(res.Table.Rows) != 0 {
		t.Fatalf("partial table returned: %+v", res.Table)
	}
}

func TestRunPropagatesLoaderErrors(t *testing.T) {
	src := &stubSource{err: &errs.AccessDeniedError{URL: "u", StatusCode: 403}}
	runs := &memRuns{}
	_, err := testService(src, runs).Run(context.Background(), Request{StockRef: "u", Plan: plan("sand")})
	if !errors.Is(err, errs.ErrAccessDenied) {
		t.Fatalf("err=%v", err)
	}
	if !strings.HasSuffix(runs.runs[0].Status, "access_denied") {
		t.Fatalf("status=%s", runs.runs[0].Status)
	}
}

func TestRunThresholdOverride(t *testing.T) {
	src := &stubSource{table: sheet.Table{stockRow("abd", "A", "1", "S1")}}
	svc := testService(src, nil)

	res, err := svc.Run(context.Background(), Request{StockRef: "s", Plan: plan("abc")})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Table.Found()) != 0 {
		t.Fatalf("default threshold should reject: %+v", res.Table)
	}

	res, err = svc.Run(context.Background(), Request{StockRef: "s", Plan: plan("abc"), Threshold: 60})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Table.Found()) != 1 || res.Table.Threshold != 60 {
		t.Fatalf("override should accept: %+v", res.Table)
	}
}
