package cmd

import (
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/tubeload/tubeload/internal/config"
)

var appLock *flock.Flock

// AcquireLock takes the single-instance lock. Returns false when another
// instance already holds it.
func AcquireLock() (bool, error) {
	appLock = flock.New(filepath.Join(config.GetAppDir(), "tubeload.lock"))
	return appLock.TryLock()
}

// ReleaseLock releases the single-instance lock.
func ReleaseLock() error {
	if appLock == nil {
		return nil
	}
	return appLock.Unlock()
}
