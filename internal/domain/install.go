package domain

import "time"

// DownloadedArtifact is a transferred asset on local disk. It never outlives
// the pipeline invocation that created it.
type DownloadedArtifact struct {
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
}

// InstallOutcome describes a successful installation.
type InstallOutcome struct {
	AppID          string `json:"app_id"`
	Version        string `json:"version"`
	InstallPath    string `json:"install_path"`
	ExecutablePath string `json:"executable_path"`
	SizeBytes      int64  `json:"size_bytes"`
}

// InstalledApp is the library record of an installed application.
type InstalledApp struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Developer      string    `json:"developer,omitempty"`
	Category       string    `json:"category,omitempty"`
	Version        string    `json:"installed_version"`
	InstalledAt    time.Time `json:"install_timestamp"`
	SizeBytes      int64     `json:"size_bytes"`
	Size           string    `json:"size,omitempty"`
	InstallPath    string    `json:"install_path"`
	ExecutablePath string    `json:"executable_path"`
}
