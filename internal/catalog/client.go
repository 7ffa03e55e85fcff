// Package catalog is the client of the remote app catalog API.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/veranemoloko/app-installer/internal/domain"
)

// Options configures the catalog client.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	UserAgent    string
}

// Client talks to the catalog REST API.
type Client struct {
	resty  *resty.Client
	logger *slog.Logger
}

// NewClient creates a catalog client. Transient failures are retried by a
// retryablehttp transport underneath resty.
func NewClient(opts Options, logger *slog.Logger) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = opts.RetryWaitMax
	}
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "stars-installer/1.0"
	}

	restyClient := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent).
		SetTransport(retryClient.StandardClient().Transport)

	return &Client{resty: restyClient, logger: logger}
}

// GetApps lists every app in the catalog.
func (c *Client) GetApps(ctx context.Context) ([]domain.App, error) {
	var apps []domain.App
	if err := c.get(ctx, "/api/apps", &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// GetFeaturedApps lists the apps the catalog promotes.
func (c *Client) GetFeaturedApps(ctx context.Context) ([]domain.App, error) {
	var apps []domain.App
	if err := c.get(ctx, "/api/apps/featured", &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// GetLatestRelease returns the newest release of an app, or nil when the
// catalog knows no release for it.
func (c *Client) GetLatestRelease(ctx context.Context, appID string) (*domain.Release, error) {
	var release domain.Release
	resp, err := c.resty.R().
		SetContext(ctx).
		SetResult(&release).
		Get("/api/apps/" + url.PathEscape(appID) + "/latest")
	if err != nil {
		return nil, fmt.Errorf("get latest release of %s: %w", appID, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		c.logger.Debug("no release in catalog", "app_id", appID)
		return nil, nil
	case resp.IsError():
		return nil, fmt.Errorf("get latest release of %s: unexpected status %d", appID, resp.StatusCode())
	}
	return &release, nil
}

// GetScreenshots returns the screenshot URLs of an app.
func (c *Client) GetScreenshots(ctx context.Context, appID string) ([]string, error) {
	var urls []string
	if err := c.get(ctx, "/api/apps/"+url.PathEscape(appID)+"/screenshots", &urls); err != nil {
		return nil, err
	}
	return urls, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	resp, err := c.resty.R().
		SetContext(ctx).
		SetResult(result).
		Get(path)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	if resp.IsError() {
		c.logger.Warn("catalog request failed", "path", path, "status", resp.StatusCode())
		return fmt.Errorf("get %s: unexpected status %d", path, resp.StatusCode())
	}
	return nil
}
