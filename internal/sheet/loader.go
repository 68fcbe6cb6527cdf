package sheet

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sitestock/internal/config"
	"sitestock/internal/errs"
)

const maxBodyBytes = 64 << 20

// Exporter downloads a Google spreadsheet as xlsx with user credentials.
type Exporter interface {
	ExportXLSX(ctx context.Context, spreadsheetID string) ([]byte, error)
}

// Document is a successfully fetched response body.
type Document struct {
	URL         string
	FinalURL    string
	ContentType string
	Body        []byte
}

type Loader struct {
	httpClient *http.Client
	attempts   int
	exporter   Exporter
	backoff    func(attempt int) time.Duration
	log        zerolog.Logger
}

// NewLoader builds a loader from config. exporter may be nil, in which case
// Google sheets are fetched through their public export link.
func NewLoader(cfg config.Config, exporter Exporter, log zerolog.Logger) *Loader {
	return &Loader{
		httpClient: &http.Client{Timeout: time.Duration(cfg.StockFetchTimeoutMs) * time.Millisecond},
		attempts:   max(cfg.StockFetchAttempts, 1),
		exporter:   exporter,
		backoff:    defaultBackoff,
		log:        log,
	}
}

// Load returns the table behind ref: a URL is fetched, anything else is read
// as a local file.
func (l *Loader) Load(ctx context.Context, ref string) (Table, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, &errs.EmptyInputError{Input: "stock sheet URL"}
	}
	if !isRemote(ref) {
		return LoadFile(strings.TrimPrefix(ref, "file://"))
	}

	if l.exporter != nil {
		if id, ok := SpreadsheetID(ref); ok {
			l.log.Debug().Str("spreadsheet", id).Msg("exporting stock sheet through drive")
			body, err := l.exporter.ExportXLSX(ctx, id)
			if err != nil {
				return nil, err
			}
			return Decode(body, xlsxMIME)
		}
	}

	doc, err := l.Fetch(ctx, ResolveURL(ref))
	if err != nil {
		return nil, err
	}
	return Decode(doc.Body, doc.ContentType)
}

// Fetch performs the GET, retrying throttling and server errors.
func (l *Loader) Fetch(ctx context.Context, rawURL string) (Document, error) {
	var lastErr error
	for attempt := 1; attempt <= l.attempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, l.backoff(attempt-1)); err != nil {
				return Document{}, transportError(rawURL, err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return Document{}, &errs.TransportError{URL: rawURL, Err: err}
		}
		req.Header.Set("Accept", xlsxMIME+", text/csv;q=0.9, text/html;q=0.5, */*;q=0.1")

		l.log.Debug().Str("url", rawURL).Int("attempt", attempt).Msg("fetching stock sheet")
		resp, err := l.httpClient.Do(req)
		if err != nil {
			lastErr = transportError(rawURL, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = transportError(rawURL, readErr)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return Document{}, &errs.AccessDeniedError{URL: rawURL, StatusCode: resp.StatusCode}
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			lastErr = &errs.FetchError{URL: rawURL, StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
			if isRetryableStatus(resp.StatusCode) {
				continue
			}
			return Document{}, lastErr
		case redirectedToSignIn(resp):
			return Document{}, &errs.AccessDeniedError{URL: rawURL}
		}

		doc := Document{URL: rawURL, FinalURL: rawURL, ContentType: resp.Header.Get("Content-Type"), Body: body}
		if resp.Request != nil && resp.Request.URL != nil {
			doc.FinalURL = resp.Request.URL.String()
		}
		return doc, nil
	}

	if lastErr == nil {
		lastErr = &errs.TransportError{URL: rawURL, Err: errors.New("request failed")}
	}
	return Document{}, lastErr
}

// redirectedToSignIn detects a private Google sheet: instead of 403 Google
// answers 200 with its sign-in page after a redirect.
func redirectedToSignIn(resp *http.Response) bool {
	if resp.Request == nil || resp.Request.URL == nil {
		return false
	}
	u := resp.Request.URL
	if strings.EqualFold(u.Hostname(), "accounts.google.com") {
		return true
	}
	return strings.HasPrefix(u.Path, "/ServiceLogin") || strings.HasPrefix(u.Path, "/v3/signin")
}

func transportError(rawURL string, err error) error {
	var ne net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout())
	return &errs.TransportError{URL: rawURL, Timeout: timeout, Err: err}
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func defaultBackoff(attempt int) time.Duration {
	return time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
