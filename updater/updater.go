// Package updater checks GitHub releases for newer builds and swaps the
// running binary in place.
package updater

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/creativeprojects/go-selfupdate"
)

// Updater checks for and applies binary updates.
type Updater struct {
	config *Config
	logger *log.Logger
}

func New(config *Config, logger *log.Logger) *Updater {
	return &Updater{config: config, logger: logger}
}

func (u *Updater) newUpdater() (*selfupdate.Updater, error) {
	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub source: %w", err)
	}
	up, err := selfupdate.NewUpdater(selfupdate.Config{Source: source})
	if err != nil {
		return nil, fmt.Errorf("failed to create updater: %w", err)
	}
	return up, nil
}

// CheckForUpdate reports whether a newer release exists.
func (u *Updater) CheckForUpdate(ctx context.Context) (*selfupdate.Release, bool, error) {
	u.logger.Printf("Checking for updates... (current: %s)", u.config.CurrentVersion)

	up, err := u.newUpdater()
	if err != nil {
		return nil, false, err
	}

	repository := selfupdate.ParseSlug(fmt.Sprintf("%s/%s", u.config.Owner, u.config.Repo))
	latest, found, err := up.DetectLatest(ctx, repository)
	if err != nil {
		return nil, false, fmt.Errorf("failed to detect latest version: %w", err)
	}
	if !found {
		u.logger.Printf("No release found for %s/%s", runtime.GOOS, runtime.GOARCH)
		return nil, false, nil
	}

	current := u.config.CurrentVersion
	if len(current) > 0 && current[0] != 'v' {
		current = "v" + current
	}
	if latest.LessOrEqual(current) {
		u.logger.Printf("Current version (%s) is up to date", u.config.CurrentVersion)
		return latest, false, nil
	}

	u.logger.Printf("New version available: %s (current: %s)", latest.Version(), u.config.CurrentVersion)
	return latest, true, nil
}

// Update replaces the running executable with the release build.
func (u *Updater) Update(ctx context.Context, release *selfupdate.Release) error {
	u.logger.Printf("Downloading update %s...", release.Version())

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	up, err := u.newUpdater()
	if err != nil {
		return err
	}
	if err := up.UpdateTo(ctx, release, exe); err != nil {
		return fmt.Errorf("failed to update: %w", err)
	}

	u.logger.Printf("Successfully updated to version %s", release.Version())
	return nil
}

// UpdateTo applies the release to an arbitrary binary path, used by the
// sidecar to update the main service binary instead of itself.
func (u *Updater) UpdateTo(ctx context.Context, release *selfupdate.Release, path string) error {
	up, err := u.newUpdater()
	if err != nil {
		return err
	}
	if err := up.UpdateTo(ctx, release, path); err != nil {
		return fmt.Errorf("failed to update %s: %w", path, err)
	}
	return nil
}

// CheckAndUpdate applies an update when one exists. The boolean reports
// whether anything was installed.
func (u *Updater) CheckAndUpdate(ctx context.Context) (bool, error) {
	release, needsUpdate, err := u.CheckForUpdate(ctx)
	if err != nil {
		return false, err
	}
	if !needsUpdate {
		return false, nil
	}
	if err := u.Update(ctx, release); err != nil {
		return false, err
	}
	return true, nil
}

// StartPeriodicCheck polls for updates on the configured interval and calls
// onUpdateAvailable when one is found. Applying is the callback's choice.
func (u *Updater) StartPeriodicCheck(ctx context.Context, onUpdateAvailable func()) {
	go func() {
		select {
		case <-time.After(StartupDelay):
		case <-ctx.Done():
			return
		}

		ticker := time.NewTicker(u.config.CheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				release, needsUpdate, err := u.CheckForUpdate(ctx)
				if err != nil {
					u.logger.Printf("Update check error: %v", err)
					continue
				}
				if needsUpdate {
					u.logger.Printf("Update available: %s", release.Version())
					if onUpdateAvailable != nil {
						onUpdateAvailable()
					}
				}
			case <-ctx.Done():
				u.logger.Println("Periodic update check stopped")
				return
			}
		}
	}()
}
