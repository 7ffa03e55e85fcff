package errors

import (
	"errors"
	"fmt"
)

var (
	ErrReleaseNotFound   = errors.New("release not found")
	ErrNoCompatibleAsset = errors.New("no compatible asset")
	ErrTransfer          = errors.New("transfer failed")
	ErrInstall           = errors.New("install failed")
	ErrConcurrentInstall = errors.New("another installation is already in progress")
	ErrAppNotInstalled   = errors.New("app not installed")
	ErrServiceShutdown   = errors.New("service is shutting down")
)

// ReleaseNotFoundError is returned when the catalog has no usable release for an app.
type ReleaseNotFoundError struct {
	AppName     string
	EmptyAssets bool
}

func (e *ReleaseNotFoundError) Error() string {
	if e.EmptyAssets {
		return fmt.Sprintf("No downloadable assets found for %s", e.AppName)
	}
	return fmt.Sprintf("No release found for %s", e.AppName)
}

func (e *ReleaseNotFoundError) Is(target error) bool {
	return target == ErrReleaseNotFound
}

// NoCompatibleAssetError is returned when no asset of a release matches the host.
type NoCompatibleAssetError struct {
	Platform string
}

func (e *NoCompatibleAssetError) Error() string {
	return fmt.Sprintf("No compatible download found for %s", e.Platform)
}

func (e *NoCompatibleAssetError) Is(target error) bool {
	return target == ErrNoCompatibleAsset
}

// TransferError describes a failed download. StatusCode is zero when the
// failure happened before a response was received.
type TransferError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransferError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

func (e *TransferError) Is(target error) bool {
	return target == ErrTransfer
}

// InstallError describes a failed installer step. ExitCode is set when an
// external command exited non-zero, Err when the step failed on its own.
type InstallError struct {
	Op       string
	ExitCode int
	Output   string
	Err      error
}

func (e *InstallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s exited with code %d", e.Op, e.ExitCode)
}

func (e *InstallError) Unwrap() error { return e.Err }

func (e *InstallError) Is(target error) bool {
	return target == ErrInstall
}

// NewInstallError wraps err as an InstallError for the given step.
func NewInstallError(op string, err error) *InstallError {
	return &InstallError{Op: op, Err: err}
}

// ExitError reports a command that exited with a non-zero code.
func ExitError(op string, exitCode int, output string) *InstallError {
	return &InstallError{Op: op, ExitCode: exitCode, Output: output}
}
