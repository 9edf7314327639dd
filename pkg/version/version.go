// Package version provides version information for nudb.
package version

import "runtime/debug"

// Version is overridden at build time with
// -ldflags "-X github.com/ha1tch/nudb/pkg/version.Version=v1.2.3".
var Version = "dev"

// String returns the version string. Development builds report the module
// version recorded by the Go toolchain when there is one.
func String() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

// Full returns a full version string with the program name.
func Full() string {
	return "nudb version " + String()
}
