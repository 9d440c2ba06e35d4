// Package application holds process-wide identity: the application name and
// the per-user directory where databases, secrets and the config file live.
package application

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const (
	// AppName names the data directory and the default issuer of tokens.
	AppName = "pagewright"

	// EnvDataDir overrides the data directory for every command.
	EnvDataDir = "PAGEWRIGHT_DATA_DIR"
)

var (
	once   sync.Once
	appDir string
	errDir error
)

// GetApplicationDirectory returns the pagewright data directory.
// Linux: ~/.config/pagewright (via os.UserConfigDir)
// Windows: C:\Users\{username}\AppData\Local\pagewright (via os.UserCacheDir)
// PAGEWRIGHT_DATA_DIR wins over both.
func GetApplicationDirectory() (string, error) {
	once.Do(lazyLoad)

	return appDir, errDir
}

// EnsureApplicationDirectory returns the data directory, creating it.
func EnsureApplicationDirectory() (string, error) {
	dir, err := GetApplicationDirectory()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}

	return dir, nil
}

func lazyLoad() {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		appDir = dir

		return
	}

	var (
		baseDir string
		err     error
	)

	switch runtime.GOOS {
	case "windows":
		baseDir, err = os.UserCacheDir()
	default:
		baseDir, err = os.UserConfigDir()
	}

	if err != nil {
		errDir = fmt.Errorf("failed to get config directory: %w", err)

		return
	}

	appDir = filepath.Join(baseDir, AppName)
}
