package deps

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform identifies a host as {osx|win|linux}-{64|arm64}.
type Platform string

const (
	LinuxAMD64   Platform = "linux-64"
	LinuxARM64   Platform = "linux-arm64"
	MacOSAMD64   Platform = "osx-64"
	MacOSARM64   Platform = "osx-arm64"
	WindowsAMD64 Platform = "win-64"
	WindowsARM64 Platform = "win-arm64"
)

// CurrentPlatform returns the platform of the running process.
func CurrentPlatform() Platform {
	p, err := NormalizePlatform(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		// Unknown hosts still get a stable identifier so that platform
		// restricted references are simply filtered out.
		return Platform(runtime.GOOS + "-" + runtime.GOARCH)
	}
	return p
}

// NormalizePlatform maps raw operating system and architecture strings, as
// reported by Go or by uname, onto a Platform.
func NormalizePlatform(goos, arch string) (Platform, error) {
	var osPart string
	switch strings.ToLower(goos) {
	case "darwin", "macos", "osx":
		osPart = "osx"
	case "windows", "win", "win32":
		osPart = "win"
	case "linux":
		osPart = "linux"
	default:
		return "", fmt.Errorf("unsupported operating system %q", goos)
	}

	var archPart string
	switch strings.ToLower(arch) {
	case "amd64", "x86_64", "x64", "64":
		archPart = "64"
	case "arm64", "aarch64":
		archPart = "arm64"
	default:
		return "", fmt.Errorf("unsupported architecture %q", arch)
	}

	return Platform(osPart + "-" + archPart), nil
}

// OS returns the operating system part of the platform.
func (p Platform) OS() string {
	os, _, _ := strings.Cut(string(p), "-")
	return os
}

// IsWindows reports whether the platform is a Windows flavour.
func (p Platform) IsWindows() bool {
	return p.OS() == "win"
}

func (p Platform) String() string {
	return string(p)
}
