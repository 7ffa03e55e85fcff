package domain

import "time"

// App is the catalog descriptor of an installable application.
type App struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Developer   string    `json:"owner_login,omitempty"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// Release is the latest published version of an app together with its assets.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name,omitempty"`
	Body        string    `json:"body,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	Assets      []Asset   `json:"assets"`
}

// Asset is a single downloadable file attached to a release.
type Asset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
}
