package types

import "runtime/debug"

// Version is the drover release version embedded in health responses, CLI
// output and commit statuses. It is resolved from module build information
// when available; binaries built outside a module (e.g. go run) report
// "unknown".
var Version = resolveVersion()

func resolveVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "unknown"
	}
	return info.Main.Version
}
