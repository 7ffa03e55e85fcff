// Command install installs one catalog app from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/veranemoloko/app-installer/internal/app"
	cfgpkg "github.com/veranemoloko/app-installer/internal/config"
	"github.com/veranemoloko/app-installer/internal/domain"
	"github.com/veranemoloko/app-installer/internal/installer"
	"github.com/veranemoloko/app-installer/internal/service"
	"github.com/veranemoloko/app-installer/internal/validation"
)

type options struct {
	ID         string
	Name       string
	Developer  string
	Category   string
	CatalogURL string
	DryRun     bool
	Quiet      bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, "error:", err)
		return 2
	}

	cfg, err := cfgpkg.Load()
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	if opts.CatalogURL != "" {
		cfg.CatalogURL = opts.CatalogURL
	}
	if opts.Quiet {
		cfg.LogLevel = "error"
	}
	logger := cfgpkg.SetupLogger(cfg)

	components, err := app.Build(cfg, logger)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := components.Sessions.Shutdown(ctx); err != nil {
			logger.Warn("session shutdown failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	target := domain.InstallRequest{ID: opts.ID, Name: opts.Name, Developer: opts.Developer, Category: opts.Category}.App()

	if opts.DryRun {
		return dryRun(ctx, components, target, stdout, stderr)
	}
	return install(ctx, components, target, opts.Quiet, stdout, stderr)
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := pflag.NewFlagSet("install", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.ID, "id", "", "catalog app id (required)")
	fs.StringVar(&opts.Name, "name", "", "display name of the app (required)")
	fs.StringVar(&opts.Developer, "developer", "", "developer of the app")
	fs.StringVar(&opts.Category, "category", "", "catalog category of the app")
	fs.StringVar(&opts.CatalogURL, "catalog-url", "", "catalog base URL, overrides STARS_CATALOG_URL")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "print the selected asset without downloading")
	fs.BoolVarP(&opts.Quiet, "quiet", "q", false, "print only the final result")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.Name = strings.TrimSpace(opts.Name)
	req := domain.InstallRequest{ID: opts.ID, Name: opts.Name, Developer: opts.Developer, Category: opts.Category}
	if err := validation.ValidateStruct(req); err != nil {
		return opts, fmt.Errorf("invalid arguments: %w", err)
	}
	return opts, nil
}

func dryRun(ctx context.Context, c *app.Components, target domain.App, stdout, stderr io.Writer) int {
	plan, err := c.Pipeline.Plan(ctx, target)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	format, _ := installer.DetectFormat(plan.Asset.Name)
	fmt.Fprintf(stdout, "Platform: %s (%s)\n", plan.Platform.DisplayName(), plan.Arch)
	fmt.Fprintf(stdout, "Release:  %s\n", plan.Release.TagName)
	fmt.Fprintf(stdout, "Asset:    %s (%s)\n", plan.Asset.Name, sizeLabel(plan.Asset.Size))
	fmt.Fprintf(stdout, "Format:   %s\n", format)
	return 0
}

func install(ctx context.Context, c *app.Components, target domain.App, quiet bool, stdout, stderr io.Writer) int {
	p := newPrinter(stdout, quiet)

	inv, err := c.Sessions.Install(ctx, target, service.WithListener(p.print))
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	select {
	case <-inv.Done():
	case <-ctx.Done():
		fmt.Fprintln(stderr, "cancelling...")
		c.Sessions.Cancel()
	}

	outcome, err := inv.Wait(context.Background())

	// Listeners run on their own goroutine; let the final stage line land first.
	select {
	case <-p.finished:
	case <-time.After(time.Second):
	}

	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	fmt.Fprintf(stdout, "Installed %s %s to %s (%s)\n",
		target.Name, outcome.Version, outcome.InstallPath, sizeLabel(outcome.SizeBytes))
	if outcome.ExecutablePath != "" && outcome.ExecutablePath != outcome.InstallPath {
		fmt.Fprintf(stdout, "Executable: %s\n", outcome.ExecutablePath)
	}
	return 0
}

// printer renders progress events as one line per message, throttling
// download percentages to whole steps of ten. finished is closed after the
// terminal event has been handled.
type printer struct {
	out      io.Writer
	quiet    bool
	finished chan struct{}

	lastMessage string
	lastDecile  int
	lastPrint   time.Time
}

func newPrinter(out io.Writer, quiet bool) *printer {
	return &printer{out: out, quiet: quiet, finished: make(chan struct{})}
}

func (p *printer) print(event domain.ProgressEvent) {
	if event.Stage.Terminal() {
		defer p.finish()
	}
	if p.quiet {
		return
	}

	if event.Stage == domain.StageDownloading && event.Progress > 0 {
		decile := int(event.Progress * 10)
		if decile == p.lastDecile && time.Since(p.lastPrint) < time.Second {
			return
		}
		p.lastDecile = decile
	}

	if event.Message == p.lastMessage {
		return
	}
	p.lastMessage = event.Message
	p.lastPrint = time.Now()
	fmt.Fprintf(p.out, "[%s] %s\n", event.Stage, event.Message)
}

func (p *printer) finish() {
	select {
	case <-p.finished:
	default:
		close(p.finished)
	}
}

func sizeLabel(n int64) string {
	if n <= 0 {
		return "unknown size"
	}
	return humanize.Bytes(uint64(n))
}
