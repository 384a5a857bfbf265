package version

// Set at build time via -ldflags.
var (
	// Version is the release version.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
)
