package repository

import (
	"context"

	"github.com/veranemoloko/app-installer/internal/domain"
)

// LibraryRepo defines the operations of the installed-app library.
type LibraryRepo interface {
	Install(ctx context.Context, app *domain.InstalledApp) error
	IsInstalled(ctx context.Context, id string) (bool, error)
	Remove(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (*domain.InstalledApp, error)
	List(ctx context.Context) ([]*domain.InstalledApp, error)
}
