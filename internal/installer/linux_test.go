package installer

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/app-installer/internal/domain"
	errpkg "github.com/veranemoloko/app-installer/internal/errors"
	"github.com/veranemoloko/app-installer/internal/platform"
	"github.com/veranemoloko/app-installer/internal/runner"
)

func linuxRequest(t *testing.T, p domain.Platform, artifact string) Request {
	return Request{
		App:      domain.App{ID: "foo", Name: "Foo"},
		Platform: p,
		Artifact: writeArtifact(t, artifact, "payload"),
	}
}

func TestAppImage_CopiesIntoBinDir(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "bin")
	s := &appImageStrategy{binDir: bin, logger: newTestLogger()}

	res, err := s.Install(context.Background(), linuxRequest(t, domain.PlatformLinuxGeneric, "Foo-x86_64.AppImage"), noStaging())
	require.NoError(t, err)

	want := filepath.Join(bin, "Foo.AppImage")
	assert.Equal(t, want, res.InstallPath)
	assert.Equal(t, want, res.ExecutablePath)

	info, err := os.Stat(want)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	// Reinstall replaces the previous copy.
	_, err = s.Install(context.Background(), linuxRequest(t, domain.PlatformLinuxGeneric, "Foo-x86_64.AppImage"), noStaging())
	require.NoError(t, err)
}

func TestLinuxArchive_ExtractMarkExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}

	root := t.TempDir()
	reg := NewRegistry(Deps{Runner: &runner.Fake{}, Layout: platform.Layout{LinuxAppsDir: root}, Logger: newTestLogger()})
	s, err := reg.Lookup(domain.PlatformLinuxDebian, "foo-linux-x64.tar.gz")
	require.NoError(t, err)

	req := linuxRequest(t, domain.PlatformLinuxDebian, "foo-linux-x64.tar.gz")
	writeTarGz(t, req.Artifact.Path, []archiveEntry{
		{name: "foo/", dir: true},
		{name: "foo/foo", body: "elf", mode: 0o644},
	})

	// A previous install is replaced.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Foo", "stale"), 0o755))

	staging, err := s.Extract(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(staging.Dir), platform.TempDirPrefix))
	assert.Equal(t, root, filepath.Dir(staging.Dir))

	res, err := s.Install(context.Background(), req, staging)
	require.NoError(t, err)
	require.NoError(t, staging.Release(context.Background()))

	appDir := filepath.Join(root, "Foo")
	assert.Equal(t, appDir, res.InstallPath)
	assert.NoDirExists(t, filepath.Join(appDir, "stale"))

	info, err := os.Stat(filepath.Join(appDir, "foo", "foo"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o111)
}

func TestLinuxArchive_DotNamesStayInsideTheirAppDir(t *testing.T) {
	for _, name := range []string{".", ".."} {
		t.Run(name, func(t *testing.T) {
			base := t.TempDir()
			root := filepath.Join(base, "apps")
			require.NoError(t, os.MkdirAll(filepath.Join(root, "Other"), 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(root, "Other", "other-bin"), []byte("x"), 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(base, "sibling"), []byte("x"), 0o644))

			s := &archiveStrategy{layout: platform.Layout{LinuxAppsDir: root}, format: FormatTarGz, logger: newTestLogger()}
			req := linuxRequest(t, domain.PlatformLinuxGeneric, "foo.tar.gz")
			req.App.Name = name
			writeTarGz(t, req.Artifact.Path, []archiveEntry{{name: "foo", body: "elf"}})

			staging, err := s.Extract(context.Background(), req)
			require.NoError(t, err)
			res, err := s.Install(context.Background(), req, staging)
			require.NoError(t, err)
			require.NoError(t, staging.Release(context.Background()))

			assert.Equal(t, filepath.Join(root, "_"), res.InstallPath)
			assert.FileExists(t, filepath.Join(root, "Other", "other-bin"))
			assert.FileExists(t, filepath.Join(base, "sibling"))
		})
	}
}

func TestManagedAppDir_RejectsPathsOutsideRoots(t *testing.T) {
	_, err := managedAppDir(platform.Layout{}, domain.PlatformLinuxGeneric, "Foo")
	require.ErrorIs(t, err, errpkg.ErrInstall)

	s := &archiveStrategy{layout: platform.Layout{}, format: FormatTarGz, logger: newTestLogger()}
	_, err = s.Install(context.Background(), linuxRequest(t, domain.PlatformLinuxGeneric, "foo.tar.gz"), noStaging())
	require.ErrorIs(t, err, errpkg.ErrInstall)

	dir, err := managedAppDir(platform.Layout{LinuxAppsDir: "/opt/apps"}, domain.PlatformLinuxGeneric, "..")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/opt/apps", "_"), dir)
}

func TestLinuxArchive_CorruptArchive(t *testing.T) {
	root := t.TempDir()
	s := &archiveStrategy{layout: platform.Layout{LinuxAppsDir: root}, format: FormatTarGz, executable: true, logger: newTestLogger()}

	_, err := s.Extract(context.Background(), linuxRequest(t, domain.PlatformLinuxGeneric, "foo.tar.gz"))
	require.ErrorIs(t, err, errpkg.ErrInstall)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "staging dir must be removed")
}

func debHandler(t *testing.T, installExit int, status string) func(runner.Call) (*runner.Result, error) {
	return func(c runner.Call) (*runner.Result, error) {
		line := c.String()
		switch {
		case strings.HasPrefix(line, "dpkg-deb --field"):
			return ok("foo\n")
		case strings.HasPrefix(line, "pkexec dpkg -i"):
			if installExit != 0 {
				return exit(installExit, "dependency problems")
			}
			return ok("")
		case strings.HasPrefix(line, "pkexec apt-get install -f -y"):
			return ok("")
		case strings.HasPrefix(line, "dpkg-query"):
			return ok(status)
		case line == "dpkg -L foo":
			return ok("/.\n/usr\n/usr/share/doc/foo/copyright\n/usr/bin\n/usr/bin/foo\n")
		}
		t.Errorf("unexpected command %q", line)
		return exit(127, "")
	}
}

func TestDeb_Install(t *testing.T) {
	fake := &runner.Fake{Handler: debHandler(t, 0, "")}
	s := &packageStrategy{tool: debTool, runner: fake, elevate: "pkexec", logger: newTestLogger()}

	req := linuxRequest(t, domain.PlatformLinuxDebian, "foo_1.0_amd64.deb")
	res, err := s.Install(context.Background(), req, noStaging())
	require.NoError(t, err)

	assert.Equal(t, "/usr/bin", res.InstallPath)
	assert.Equal(t, "/usr/bin/foo", res.ExecutablePath)
	assert.Equal(t, []string{
		"dpkg-deb --field " + req.Artifact.Path + " Package",
		"pkexec dpkg -i " + req.Artifact.Path,
		"dpkg -L foo",
	}, fake.CommandLines())
}

func TestDeb_RepairsDependencies(t *testing.T) {
	fake := &runner.Fake{Handler: debHandler(t, 1, "install ok installed")}
	s := &packageStrategy{tool: debTool, runner: fake, elevate: "pkexec", logger: newTestLogger()}

	res, err := s.Install(context.Background(), linuxRequest(t, domain.PlatformLinuxDebian, "foo.deb"), noStaging())
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/foo", res.ExecutablePath)

	lines := fake.CommandLines()
	assert.Contains(t, lines, "pkexec apt-get install -f -y")
	assert.Contains(t, lines, "dpkg-query -W -f=${Status} foo")
}

func TestDeb_RepairDoesNotHelp(t *testing.T) {
	fake := &runner.Fake{Handler: debHandler(t, 1, "deinstall ok config-files")}
	s := &packageStrategy{tool: debTool, runner: fake, elevate: "pkexec", logger: newTestLogger()}

	_, err := s.Install(context.Background(), linuxRequest(t, domain.PlatformLinuxDebian, "foo.deb"), noStaging())

	var installErr *errpkg.InstallError
	require.ErrorAs(t, err, &installErr)
	assert.Equal(t, "dpkg", installErr.Op)
	assert.Equal(t, 1, installErr.ExitCode)
}

func TestRPM_OptInstallRoot(t *testing.T) {
	fake := &runner.Fake{Handler: func(c runner.Call) (*runner.Result, error) {
		switch c.Args[0] {
		case "-qp":
			return ok("foo")
		case "-ql":
			return ok("/opt/Foo/foo-bin\n/opt/Foo/resources/app.asar\n/usr/share/applications/foo.desktop\n")
		}
		return ok("")
	}}
	s := &packageStrategy{tool: rpmTool, runner: fake, logger: newTestLogger()}

	req := linuxRequest(t, domain.PlatformLinuxRPM, "foo-1.0.x86_64.rpm")
	res, err := s.Install(context.Background(), req, noStaging())
	require.NoError(t, err)

	assert.Equal(t, "/opt/Foo", res.InstallPath)
	assert.Empty(t, res.ExecutablePath)
	assert.Contains(t, fake.CommandLines(), "rpm -U --replacepkgs "+req.Artifact.Path)
}

func TestPacman_NoRepairStep(t *testing.T) {
	fake := &runner.Fake{Handler: func(c runner.Call) (*runner.Result, error) {
		if c.Args[0] == "-U" {
			return exit(1, "error: failed to commit transaction")
		}
		return ok("foo 1.0-1\n")
	}}
	s := &packageStrategy{tool: pacmanTool, runner: fake, logger: newTestLogger()}

	_, err := s.Install(context.Background(), linuxRequest(t, domain.PlatformLinuxArch, "foo.pkg.tar.zst"), noStaging())
	require.ErrorIs(t, err, errpkg.ErrInstall)
	assert.Len(t, fake.Calls(), 2)
}

func TestPackage_UnknownLocationUsesPlaceholder(t *testing.T) {
	fake := &runner.Fake{Handler: func(c runner.Call) (*runner.Result, error) {
		if c.Args[0] == "-qp" {
			return exit(1, "")
		}
		return ok("")
	}}
	s := &packageStrategy{tool: rpmTool, runner: fake, logger: newTestLogger()}

	res, err := s.Install(context.Background(), linuxRequest(t, domain.PlatformLinuxRPM, "foo.rpm"), noStaging())
	require.NoError(t, err)
	assert.Equal(t, PackagePlaceholderPath, res.InstallPath)
}
