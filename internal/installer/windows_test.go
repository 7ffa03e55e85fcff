package installer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/app-installer/internal/domain"
	errpkg "github.com/veranemoloko/app-installer/internal/errors"
	"github.com/veranemoloko/app-installer/internal/platform"
	"github.com/veranemoloko/app-installer/internal/runner"
)

func windowsRequest(t *testing.T, artifact string) Request {
	return Request{
		App:      domain.App{ID: "foo", Name: "Foo App"},
		Platform: domain.PlatformWindows,
		Artifact: writeArtifact(t, artifact, "MZ payload"),
	}
}

func TestMSI_SilentInstall(t *testing.T) {
	root := t.TempDir()
	fake := &runner.Fake{}
	s := &msiStrategy{runner: fake, layout: platform.Layout{WindowsAppsDir: root}, logger: newTestLogger()}

	req := windowsRequest(t, "Foo-setup.msi")
	res, err := s.Install(context.Background(), req, noStaging())
	require.NoError(t, err)

	appDir := filepath.Join(root, "Foo_App")
	assert.Equal(t, appDir, res.InstallPath)
	assert.DirExists(t, appDir)
	assert.Equal(t, []string{
		"msiexec /i " + req.Artifact.Path + " /quiet /norestart TARGETDIR=" + appDir,
	}, fake.CommandLines())
}

func TestMSI_NonZeroExit(t *testing.T) {
	fake := &runner.Fake{Handler: func(runner.Call) (*runner.Result, error) {
		return exit(1603, "")
	}}
	s := &msiStrategy{runner: fake, layout: platform.Layout{WindowsAppsDir: t.TempDir()}, logger: newTestLogger()}

	_, err := s.Install(context.Background(), windowsRequest(t, "Foo.msi"), noStaging())
	var installErr *errpkg.InstallError
	require.ErrorAs(t, err, &installErr)
	assert.Equal(t, 1603, installErr.ExitCode)
	assert.Equal(t, "msiexec exited with code 1603", err.Error())
}

func TestEXE_Installer(t *testing.T) {
	root := t.TempDir()
	fake := &runner.Fake{}
	s := &exeStrategy{runner: fake, layout: platform.Layout{WindowsAppsDir: root}, logger: newTestLogger()}

	req := windowsRequest(t, "Foo-Setup-1.0.exe")
	res, err := s.Install(context.Background(), req, noStaging())
	require.NoError(t, err)

	appDir := filepath.Join(root, "Foo_App")
	assert.Equal(t, appDir, res.InstallPath)
	assert.Empty(t, res.ExecutablePath)
	assert.Equal(t, []string{req.Artifact.Path + " /S /D=" + appDir}, fake.CommandLines())
}

func TestEXE_FallsBackToCopy(t *testing.T) {
	root := t.TempDir()
	fake := &runner.Fake{Handler: func(runner.Call) (*runner.Result, error) {
		return exit(2, "unknown switch")
	}}
	s := &exeStrategy{runner: fake, layout: platform.Layout{WindowsAppsDir: root}, logger: newTestLogger()}

	req := windowsRequest(t, "Foo-Setup-1.0.exe")
	res, err := s.Install(context.Background(), req, noStaging())
	require.NoError(t, err)

	want := filepath.Join(root, "Foo_App", "Foo-Setup-1.0.exe")
	assert.Equal(t, want, res.ExecutablePath)
	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "MZ payload", string(data))
}

func TestEXE_PortableIsCopied(t *testing.T) {
	root := t.TempDir()
	fake := &runner.Fake{}
	s := &exeStrategy{runner: fake, layout: platform.Layout{WindowsAppsDir: root}, logger: newTestLogger()}

	res, err := s.Install(context.Background(), windowsRequest(t, "Foo-Portable.exe"), noStaging())
	require.NoError(t, err)

	assert.Empty(t, fake.Calls())
	assert.Equal(t, filepath.Join(root, "Foo_App", "Foo-Portable.exe"), res.ExecutablePath)
}

func TestWindowsZip_ExtractsIntoAppDir(t *testing.T) {
	root := t.TempDir()
	reg := NewRegistry(Deps{Runner: &runner.Fake{}, Layout: platform.Layout{WindowsAppsDir: root}, Logger: newTestLogger()})
	s, err := reg.Lookup(domain.PlatformWindows, "Foo-win-x64.zip")
	require.NoError(t, err)

	req := windowsRequest(t, "Foo-win-x64.zip")
	writeZip(t, req.Artifact.Path, []archiveEntry{{name: "Foo.exe", body: "MZ"}})

	staging, err := s.Extract(context.Background(), req)
	require.NoError(t, err)
	res, err := s.Install(context.Background(), req, staging)
	require.NoError(t, err)
	require.NoError(t, staging.Release(context.Background()))

	assert.Equal(t, filepath.Join(root, "Foo_App"), res.InstallPath)
	assert.FileExists(t, filepath.Join(root, "Foo_App", "Foo.exe"))
}
