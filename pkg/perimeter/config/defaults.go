// Package config loads perimeter settings from YAML, environment and flags.
package config

// Default configuration values for perimeter.
const (
	// DefaultRoot is the directory collected when none is specified.
	DefaultRoot = "/"

	// DefaultPermissionFormat is the rendering used for permission strings.
	DefaultPermissionFormat = "symbolic"

	// DefaultWorkers lets the tuner pick the walker concurrency.
	DefaultWorkers = 0

	// DefaultMaxDepth disables the depth limit.
	DefaultMaxDepth = 0

	// DefaultRetainRuns is how many stored runs are kept. Zero keeps all.
	DefaultRetainRuns = 20
)

// DefaultExclusions contains pseudo-filesystems skipped unless configured otherwise.
var DefaultExclusions = []string{
	"/proc",
	"/sys",
	"/dev",
}
