package version

import "runtime/debug"

// Version is overridden at build time with -ldflags "-X".
var Version = "dev"

func String() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

func UserAgent() string {
	return "tf/" + String()
}
