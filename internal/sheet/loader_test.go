package sheet

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"

	"sitestock/internal/config"
	"sitestock/internal/errs"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testLoader(attempts int, rt roundTripFunc) *Loader {
	l := NewLoader(config.Config{StockFetchTimeoutMs: 1000, StockFetchAttempts: attempts}, nil, zerolog.Nop())
	l.backoff = func(int) time.Duration { return 0 }
	if rt != nil {
		l.httpClient = &http.Client{Transport: rt}
	}
	return l
}

func response(status int, body []byte) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestLoadRewritesGoogleEditLink(t *testing.T) {
	blob := mkXLSX([][]any{{"1", "Sand"}})
	var requested string
	l := testLoader(1, func(r *http.Request) (*http.Response, error) {
		requested = r.URL.String()
		return response(http.StatusOK, blob), nil
	})

	table, err := l.Load(context.Background(), "https://docs.google.com/spreadsheets/d/ABC123/edit#gid=0")
	if err != nil {
		t.Fatal(err)
	}
	if requested != "https://docs.google.com/spreadsheets/d/ABC123/export?format=xlsx" {
		t.Fatalf("requested %s", requested)
	}
	if len(table) != 1 || table[0][1] != "Sand" {
		t.Fatalf("table=%v", table)
	}
}

func TestFetchStatusKinds(t *testing.T) {
	cases := []struct {
		name     string
		statuses []int
		attempts int
		kind     error
		calls    int
	}{
		{name: "forbidden", statuses: []int{403}, attempts: 3, kind: errs.ErrAccessDenied, calls: 1},
		{name: "unauthorized", statuses: []int{401}, attempts: 3, kind: errs.ErrAccessDenied, calls: 1},
		{name: "not found is not retried", statuses: []int{404}, attempts: 3, kind: errs.ErrFetch, calls: 1},
		{name: "server error after retries", statuses: []int{500, 502}, attempts: 2, kind: errs.ErrFetch, calls: 2},
		{name: "recovers after 503", statuses: []int{503, 503, 200}, attempts: 3, kind: nil, calls: 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			l := testLoader(tc.attempts, func(r *http.Request) (*http.Response, error) {
				status := tc.statuses[calls]
				calls++
				return response(status, []byte("1,Sand\n")), nil
			})
			_, err := l.Fetch(context.Background(), "https://files.example.com/stock.csv")
			if tc.kind == nil && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if tc.kind != nil && !errors.Is(err, tc.kind) {
				t.Fatalf("err=%v want %v", err, tc.kind)
			}
			if calls != tc.calls {
				t.Fatalf("calls=%d want %d", calls, tc.calls)
			}
		})
	}
}

func TestFetchTransportErrors(t *testing.T) {
	l := testLoader(1, func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	})
	_, err := l.Fetch(context.Background(), "https://files.example.com/stock.csv")
	var te *errs.TransportError
	if !errors.As(err, &te) || te.Timeout {
		t.Fatalf("err=%v", err)
	}

	l = testLoader(1, func(r *http.Request) (*http.Response, error) {
		return nil, context.DeadlineExceeded
	})
	_, err = l.Fetch(context.Background(), "https://files.example.com/stock.csv")
	if !errors.As(err, &te) || !te.Timeout {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestFetchSignInRedirectIsAccessDenied(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/spreadsheets/d/PRIVATE/export", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ServiceLogin?continue=export", http.StatusFound)
	})
	mux.HandleFunc("/ServiceLogin", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>Sign in</body></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	l := testLoader(1, nil)
	_, err := l.Load(context.Background(), srv.URL+"/spreadsheets/d/PRIVATE/edit#gid=0")
	if !errors.Is(err, errs.ErrAccessDenied) {
		t.Fatalf("err=%v", err)
	}
}

func TestLoadOverHTTP(t *testing.T) {
	blob := mkXLSX([][]any{{"1", "Rebar 12mm"}, {"2", "Sand"}})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", xlsxMIME)
		_, _ = w.Write(blob)
	}))
	defer srv.Close()

	table, err := testLoader(1, nil).Load(context.Background(), srv.URL+"/stock.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != 2 || table[0][1] != "Rebar 12mm" {
		t.Fatalf("table=%v", table)
	}
}

func TestLoadEmptyRef(t *testing.T) {
	_, err := testLoader(1, nil).Load(context.Background(), "   ")
	if !errors.Is(err, errs.ErrEmptyInput) {
		t.Fatalf("err=%v", err)
	}
}

type stubExporter struct {
	id   string
	body []byte
}

func (s *stubExporter) ExportXLSX(_ context.Context, id string) ([]byte, error) {
	s.id = id
	return s.body, nil
}

func TestLoadUsesExporterForGoogleSheets(t *testing.T) {
	exp := &stubExporter{body: mkXLSX([][]any{{"1", "Gravel"}})}
	l := testLoader(1, func(r *http.Request) (*http.Response, error) {
		t.Fatalf("unexpected http request to %s", r.URL)
		return nil, nil
	})
	l.exporter = exp

	table, err := l.Load(context.Background(), "https://docs.google.com/spreadsheets/d/PRIV42/edit")
	if err != nil {
		t.Fatal(err)
	}
	if exp.id != "PRIV42" || table[0][1] != "Gravel" {
		t.Fatalf("id=%s table=%v", exp.id, table)
	}
}

func TestClassifyDriveError(t *testing.T) {
	if err := classifyDriveError("drive:x", &googleapi.Error{Code: 404}); !errors.Is(err, errs.ErrAccessDenied) {
		t.Fatalf("404: %v", err)
	}
	if err := classifyDriveError("drive:x", &googleapi.Error{Code: 500, Message: "backend"}); !errors.Is(err, errs.ErrFetch) {
		t.Fatalf("500: %v", err)
	}
	if err := classifyDriveError("drive:x", errors.New("oauth2: token expired")); !errors.Is(err, errs.ErrTransport) {
		t.Fatalf("other: %v", err)
	}
	if !strings.Contains(classifyDriveError("drive:x", &googleapi.Error{Code: 403}).Error(), "drive:x") {
		t.Fatal("message should name the reference")
	}
}
