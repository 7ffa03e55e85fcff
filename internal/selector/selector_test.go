package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veranemoloko/app-installer/internal/domain"
)

func assets(names ...string) []domain.Asset {
	out := make([]domain.Asset, 0, len(names))
	for _, n := range names {
		out = append(out, domain.Asset{Name: n, DownloadURL: "https://example.com/" + n})
	}
	return out
}

func TestSelectBest_MacPrefersDMG(t *testing.T) {
	list := []domain.Asset{
		{Name: "foo-mac.dmg", Size: 10 << 20},
		{Name: "foo-mac.zip", Size: 9 << 20},
	}

	got, ok := SelectBest(list, domain.PlatformMacOS, domain.ArchX64)

	assert.True(t, ok)
	assert.Equal(t, "foo-mac.dmg", got.Name)
}

func TestSelectBest_PriorityTables(t *testing.T) {
	tests := []struct {
		name     string
		platform domain.Platform
		assets   []domain.Asset
		want     string
	}{
		{"windows msi over exe", domain.PlatformWindows, assets("app-win.exe", "app-win.msi"), "app-win.msi"},
		{"windows installer over portable", domain.PlatformWindows, assets("app-win-portable.exe", "app-win-setup.exe"), "app-win-setup.exe"},
		{"windows portable over zip", domain.PlatformWindows, assets("app-windows.zip", "app-windows-portable.exe"), "app-windows-portable.exe"},
		{"mac pkg over app tarball", domain.PlatformMacOS, assets("app-darwin.app.tar.gz", "app-macos.pkg"), "app-macos.pkg"},
		{"debian deb over appimage", domain.PlatformLinuxDebian, assets("app.AppImage", "app_1.0_amd64.deb"), "app_1.0_amd64.deb"},
		{"debian falls back to appimage", domain.PlatformLinuxDebian, assets("app.rpm", "app.AppImage"), "app.AppImage"},
		{"rpm native", domain.PlatformLinuxRPM, assets("app-linux.tar.gz", "app.x86_64.rpm", "app.deb"), "app.x86_64.rpm"},
		{"arch native", domain.PlatformLinuxArch, assets("app.AppImage", "app-1.0-x86_64.pkg.tar.zst"), "app-1.0-x86_64.pkg.tar.zst"},
		{"generic appimage", domain.PlatformLinuxGeneric, assets("app-linux.tar.gz", "app.AppImage"), "app.AppImage"},
		{"generic tarball", domain.PlatformLinuxGeneric, assets("app.deb", "app-linux-x64.tar.gz"), "app-linux-x64.tar.gz"},
		{"first encountered tie", domain.PlatformWindows, assets("a-win.msi", "b-win.msi"), "a-win.msi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectBest(tt.assets, tt.platform, domain.ArchX64)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestSelectBest_NoneCompatible(t *testing.T) {
	_, ok := SelectBest(assets("bar-linux.deb"), domain.PlatformMacOS, domain.ArchX64)
	assert.False(t, ok)

	_, ok = SelectBest(nil, domain.PlatformWindows, domain.ArchX64)
	assert.False(t, ok)
}

func TestSelectBest_SkipsSourceArchives(t *testing.T) {
	_, ok := SelectBest(assets("app-linux-source.tar.gz", "app-linux-src.tgz"), domain.PlatformLinuxGeneric, domain.ArchX64)
	assert.False(t, ok)
}

func TestSelectBest_RequiresPlatformKeyword(t *testing.T) {
	_, ok := SelectBest(assets("app-setup.exe", "app.dmg"), domain.PlatformWindows, domain.ArchX64)
	assert.False(t, ok)
}

func TestSelectBest_WindowsIgnoresDarwinAssets(t *testing.T) {
	_, ok := SelectBest(assets("app-darwin-amd64.zip"), domain.PlatformWindows, domain.ArchX64)
	assert.False(t, ok)
}

func TestSelectBest_ArchitectureFilter(t *testing.T) {
	list := assets("app-win-x64.exe")

	_, ok := SelectBest(list, domain.PlatformWindows, domain.ArchARM64)
	assert.False(t, ok)

	got, ok := SelectBest(list, domain.PlatformWindows, domain.ArchX64)
	assert.True(t, ok)
	assert.Equal(t, "app-win-x64.exe", got.Name)
}

func TestSelectBest_PicksMatchingArchitecture(t *testing.T) {
	list := assets("app-mac-x64.dmg", "app-mac-arm64.dmg")

	got, ok := SelectBest(list, domain.PlatformMacOS, domain.ArchARM64)
	assert.True(t, ok)
	assert.Equal(t, "app-mac-arm64.dmg", got.Name)
}

func TestSelectBest_Deterministic(t *testing.T) {
	list := assets("app-win-x64.zip", "app-win-x64.msi", "app-win-x64.exe", "app-win-arm64.msi")

	first, _ := SelectBest(list, domain.PlatformWindows, domain.ArchX64)
	for i := 0; i < 10; i++ {
		got, _ := SelectBest(list, domain.PlatformWindows, domain.ArchX64)
		assert.Equal(t, first, got)
	}
	assert.Equal(t, "app-win-x64.msi", first.Name)
}

func TestArchCompatible(t *testing.T) {
	tests := []struct {
		name string
		arch domain.Arch
		want bool
	}{
		{"app.dmg", domain.ArchARM64, true},
		{"app-universal.dmg", domain.ArchARM64, true},
		{"app-x86_64.AppImage", domain.ArchX64, true},
		{"app-x86_64.AppImage", domain.ArchX86, false},
		{"app-x86_64.AppImage", domain.ArchARM64, false},
		{"app-amd64.deb", domain.ArchX64, true},
		{"app-aarch64.rpm", domain.ArchARM64, true},
		{"app-i686.exe", domain.ArchX86, true},
		{"app-x86.exe", domain.ArchX64, false},
		{"app-arm64.zip", domain.Arch("riscv64"), true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ArchCompatible(tt.name, tt.arch), "%s on %s", tt.name, tt.arch)
	}
}

func TestRank_KeepsOrder(t *testing.T) {
	ranked := Rank(assets("app-mac.zip", "app.deb", "app-mac.dmg"), domain.PlatformMacOS, domain.ArchX64)

	assert.Len(t, ranked, 2)
	assert.Equal(t, "app-mac.zip", ranked[0].Asset.Name)
	assert.Equal(t, 4, ranked[0].Priority)
	assert.Equal(t, 10, ranked[1].Priority)
}
