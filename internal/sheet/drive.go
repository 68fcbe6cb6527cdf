package sheet

import (
	"context"
	"errors"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"sitestock/internal/config"
	"sitestock/internal/errs"
)

// DriveExporter exports spreadsheets that are not shared publicly, using the
// refresh token of an account that can read them.
type DriveExporter struct {
	service *drive.Service
}

func NewDriveExporter(ctx context.Context, cfg config.Config) (*DriveExporter, error) {
	if err := cfg.Require("GOOGLE_CLIENT_ID", cfg.GoogleClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GOOGLE_CLIENT_SECRET", cfg.GoogleClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("GOOGLE_REFRESH_TOKEN", cfg.GoogleRefreshToken); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GoogleRedirectURI,
		Scopes:       []string{drive.DriveReadonlyScope},
	}
	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GoogleRefreshToken})
	svc, err := drive.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}
	return &DriveExporter{service: svc}, nil
}

func (d *DriveExporter) ExportXLSX(ctx context.Context, spreadsheetID string) ([]byte, error) {
	ref := "drive:" + spreadsheetID
	resp, err := d.service.Files.Export(spreadsheetID, xlsxMIME).Context(ctx).Download()
	if err != nil {
		return nil, classifyDriveError(ref, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, transportError(ref, err)
	}
	return body, nil
}

func classifyDriveError(ref string, err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return transportError(ref, err)
	}
	switch gerr.Code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		// Drive reports files the account cannot see as not found.
		return &errs.AccessDeniedError{URL: ref, StatusCode: gerr.Code}
	default:
		return &errs.FetchError{URL: ref, StatusCode: gerr.Code, Body: gerr.Message}
	}
}
