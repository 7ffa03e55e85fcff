package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InstallsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_installer_installs_started_total",
		Help: "Total number of installation sessions started",
	})

	InstallsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_installer_installs_completed_total",
		Help: "Total number of installations completed",
	})

	InstallsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_installer_installs_failed_total",
		Help: "Total number of installations failed",
	})

	InstallsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_installer_installs_rejected_total",
		Help: "Total number of install requests rejected because a session was not idle",
	})

	InstallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "app_installer_install_duration_seconds",
		Help:    "Duration of a pipeline run in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	StageTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_installer_stage_transitions_total",
		Help: "Total number of pipeline stage transitions by stage",
	}, []string{"stage"})

	DownloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_installer_downloads_total",
		Help: "Total number of download attempts",
	})

	DownloadsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_installer_downloads_failed_total",
		Help: "Total number of failed downloads",
	})

	DownloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "app_installer_download_duration_seconds",
		Help:    "Download duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	DownloadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_installer_download_bytes_total",
		Help: "Total bytes downloaded",
	})
)
