package updater

import "time"

const (
	// Release repository.
	RepoOwner = "autobill"
	RepoName  = "autobill"

	DefaultCheckInterval = 6 * time.Hour

	// Delay before the first check so the service settles first.
	StartupDelay = 30 * time.Second
)

// Config holds the updater settings.
type Config struct {
	Owner          string
	Repo           string
	CheckInterval  time.Duration
	CurrentVersion string
}

// DefaultConfig returns the stock configuration for the given running
// version.
func DefaultConfig(version string) *Config {
	return &Config{
		Owner:          RepoOwner,
		Repo:           RepoName,
		CheckInterval:  DefaultCheckInterval,
		CurrentVersion: version,
	}
}

// ParseDuration parses a user-supplied interval string.
func ParseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}
