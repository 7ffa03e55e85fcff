package domain

// InstallRequest represents the request body for starting an installation.
type InstallRequest struct {
	ID        string `json:"id" validate:"required,app_id"`
	Name      string `json:"name" validate:"required,max=200"`
	Developer string `json:"developer" validate:"max=200"`
	Category  string `json:"category" validate:"max=100"`
}

// App converts the request into a catalog descriptor.
func (r InstallRequest) App() App {
	return App{
		ID:        r.ID,
		Name:      r.Name,
		Developer: r.Developer,
		Category:  r.Category,
	}
}

// InstallResponse is returned when an installation was accepted.
type InstallResponse struct {
	InvocationID uint64 `json:"invocation_id"`
	RunID        string `json:"run_id"`
}

// UpdateInfo reports whether a newer release exists for an installed app.
type UpdateInfo struct {
	AppID            string `json:"app_id"`
	InstalledVersion string `json:"installed_version"`
	LatestVersion    string `json:"latest_version"`
	UpdateAvailable  bool   `json:"update_available"`
}
