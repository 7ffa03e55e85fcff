package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/veranemoloko/app-installer/internal/domain"
	errpkg "github.com/veranemoloko/app-installer/internal/errors"
	"github.com/veranemoloko/app-installer/internal/metrics"
	"github.com/veranemoloko/app-installer/internal/storage"
	"github.com/veranemoloko/app-installer/internal/validation"
)

const chunkSize = 32 * 1024

// Options configures the HTTP behavior of a DownloadWorker.
type Options struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	UserAgent    string
}

// DownloadWorker streams release assets into FileStorage.
type DownloadWorker struct {
	fileStorage *storage.FileStorage
	httpClient  *retryablehttp.Client
	userAgent   string
	logger      *slog.Logger
}

// NewDownloadWorker creates a DownloadWorker. Redirects are never followed
// automatically; Download follows exactly one hop itself.
func NewDownloadWorker(fileStorage *storage.FileStorage, opts Options, logger *slog.Logger) *DownloadWorker {
	client := retryablehttp.NewClient()
	client.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		client.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		client.RetryWaitMax = opts.RetryWaitMax
	}
	client.Logger = nil
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.HTTPClient.Timeout = opts.Timeout
	client.HTTPClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "app-installer/1.0"
	}

	return &DownloadWorker{
		fileStorage: fileStorage,
		httpClient:  client,
		userAgent:   userAgent,
		logger:      logger,
	}
}

// Download fetches asset into the downloads directory, calling onProgress with
// the completed fraction after every chunk once the total size is known.
// On failure a partially written file may remain; callers remove it with Discard.
func (w *DownloadWorker) Download(ctx context.Context, asset domain.Asset, onProgress func(float64)) (domain.DownloadedArtifact, error) {
	metrics.DownloadsTotal.Inc()
	start := time.Now()

	artifact, err := w.download(ctx, asset, onProgress)
	if err != nil {
		metrics.DownloadsFailed.Inc()
		w.logger.Error("download failed",
			"asset", asset.Name,
			"url", asset.DownloadURL,
			"error", err,
		)
		return artifact, err
	}

	metrics.DownloadDuration.Observe(time.Since(start).Seconds())
	metrics.DownloadBytes.Add(float64(artifact.Size))
	w.logger.Info("download finished",
		"asset", asset.Name,
		"bytes", artifact.Size,
		"content_type", artifact.ContentType,
		"duration", time.Since(start),
	)
	return artifact, nil
}

// Discard removes a downloaded or partially downloaded asset.
func (w *DownloadWorker) Discard(assetName string) error {
	return w.fileStorage.Remove(assetName)
}

func (w *DownloadWorker) download(ctx context.Context, asset domain.Asset, onProgress func(float64)) (domain.DownloadedArtifact, error) {
	artifact := domain.DownloadedArtifact{Path: w.fileStorage.Path(asset.Name)}

	if !w.fileStorage.ValidName(asset.Name) {
		return artifact, &errpkg.TransferError{URL: asset.DownloadURL, Err: fmt.Errorf("invalid asset name %q", asset.Name)}
	}
	if err := validation.ValidateDownloadURL(asset.DownloadURL); err != nil {
		return artifact, &errpkg.TransferError{URL: asset.DownloadURL, Err: err}
	}
	if err := w.fileStorage.EnsureDir(); err != nil {
		return artifact, &errpkg.TransferError{URL: asset.DownloadURL, Err: err}
	}

	resp, err := w.open(ctx, asset.DownloadURL)
	if err != nil {
		return artifact, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return artifact, &errpkg.TransferError{URL: asset.DownloadURL, StatusCode: resp.StatusCode}
	}

	total := resp.ContentLength
	if total <= 0 {
		total = asset.Size
	}

	if w.fileStorage.FileExists(asset.Name) {
		w.logger.Debug("replacing stale artifact", "path", artifact.Path)
	}
	file, err := w.fileStorage.CreateFile(asset.Name)
	if err != nil {
		return artifact, &errpkg.TransferError{URL: asset.DownloadURL, Err: fmt.Errorf("create file: %w", err)}
	}

	written, err := w.copyWithContext(ctx, file, resp.Body, total, onProgress)
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	artifact.Size = written
	if err != nil {
		return artifact, &errpkg.TransferError{URL: asset.DownloadURL, Err: fmt.Errorf("copy data: %w", err)}
	}

	if mt, err := mimetype.DetectFile(artifact.Path); err == nil {
		artifact.ContentType = mt.String()
	}

	return artifact, nil
}

// open issues the request and follows at most one redirect.
func (w *DownloadWorker) open(ctx context.Context, rawURL string) (*http.Response, error) {
	resp, err := w.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if !isRedirect(resp.StatusCode) {
		return resp, nil
	}

	location, err := resp.Location()
	resp.Body.Close()
	if err != nil {
		return nil, &errpkg.TransferError{
			URL: rawURL,
			Err: fmt.Errorf("redirect %d without usable Location: %w", resp.StatusCode, err),
		}
	}

	w.logger.Debug("following redirect",
		"from", rawURL,
		"to", location.String(),
		"status", resp.StatusCode,
	)
	return w.get(ctx, location.String())
}

func (w *DownloadWorker) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &errpkg.TransferError{URL: rawURL, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", w.userAgent)
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, &errpkg.TransferError{URL: rawURL, Err: err}
	}
	return resp, nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func (w *DownloadWorker) copyWithContext(ctx context.Context, dst *os.File, src io.Reader, total int64, onProgress func(float64)) (int64, error) {
	buf := make([]byte, chunkSize)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
			nr, err := src.Read(buf)
			if nr > 0 {
				nw, werr := dst.Write(buf[0:nr])
				if nw > 0 {
					written += int64(nw)
				}
				if werr != nil {
					return written, werr
				}
				if nr != nw {
					return written, io.ErrShortWrite
				}
				if total > 0 && onProgress != nil {
					onProgress(min(float64(written)/float64(total), 1))
				}
			}
			if err != nil {
				if err == io.EOF {
					return written, nil
				}
				return written, err
			}
		}
	}
}
