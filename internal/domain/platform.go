package domain

// Platform is the OS and package-family classification of the running host.
type Platform string

const (
	PlatformWindows      Platform = "windows"
	PlatformMacOS        Platform = "macos"
	PlatformLinuxDebian  Platform = "linux_debian"
	PlatformLinuxRPM     Platform = "linux_rpm"
	PlatformLinuxArch    Platform = "linux_arch"
	PlatformLinuxGeneric Platform = "linux_generic"
)

// DisplayName returns the human-readable platform name used in user-facing messages.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformWindows:
		return "Windows"
	case PlatformMacOS:
		return "macOS"
	case PlatformLinuxDebian:
		return "Linux (Debian/Ubuntu)"
	case PlatformLinuxRPM:
		return "Linux (Fedora/RHEL)"
	case PlatformLinuxArch:
		return "Linux (Arch)"
	default:
		return "Linux"
	}
}

// IsLinux reports whether p is one of the Linux families.
func (p Platform) IsLinux() bool {
	switch p {
	case PlatformLinuxDebian, PlatformLinuxRPM, PlatformLinuxArch, PlatformLinuxGeneric:
		return true
	}
	return false
}

// Arch is a normalized CPU architecture. Unknown architectures keep their raw name.
type Arch string

const (
	ArchX64   Arch = "x64"
	ArchARM64 Arch = "arm64"
	ArchX86   Arch = "x86"
)
