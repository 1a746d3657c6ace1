package version

// Set with -ldflags "-X github.com/lastwords/lastwords/version.Version=..."
var (
	Version = "0.1.0"
	Commit  = "unknown"
	Date    = "unknown"
)
