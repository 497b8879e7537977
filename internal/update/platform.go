package update

import (
	"fmt"
	"runtime"
)

// Platform is the OS and architecture a client build targets.
type Platform struct {
	OS   string
	Arch string
}

// Detect returns the platform the running client was built for.
func Detect() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// String returns "os/arch".
func (p Platform) String() string {
	return p.OS + "/" + p.Arch
}

// AssetNames lists the release asset names that hold a client build for p,
// most preferred first: the bare binary, then an archive.
func (p Platform) AssetNames() []string {
	base := fmt.Sprintf("parley-%s-%s", p.OS, p.Arch)
	return []string{base, base + ".tar.gz"}
}

// IsSupported reports whether a client on p can replace its own executable.
func (p Platform) IsSupported() bool {
	switch p.OS {
	case "darwin", "linux":
		return p.Arch == "amd64" || p.Arch == "arm64"
	default:
		return false
	}
}
