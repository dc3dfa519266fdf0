package version

import (
	"strings"

	"github.com/fatih/color"
)

// Version information for the p8sync CLI.
// These variables can be overridden at build time via -ldflags, e.g.
//
//	-X p8sync/internal/version.GitCommit=$(git rev-parse --short HEAD)
var (
	Major  = "0"
	Minor  = "3"
	Patch  = "0"
	Suffix = "-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

var (
	majorColor = color.New(color.FgYellow, color.Bold)
	minorColor = color.New(color.FgGreen, color.Bold)
	patchColor = color.New(color.FgBlue, color.Bold)
)

// String returns the plain semantic version, e.g. "0.3.0-dev".
func String() string {
	return strings.Join([]string{Major, Minor, Patch}, ".") + Suffix
}

// Colored returns the version with each component colored. It equals
// String when color output is disabled.
func Colored() string {
	return majorColor.Sprint(Major) + "." + minorColor.Sprint(Minor) + "." + patchColor.Sprint(Patch) + Suffix
}
