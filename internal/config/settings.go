package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Settings holds all user-configurable application settings organized by category.
type Settings struct {
	General GeneralSettings `json:"general"`
	Network NetworkSettings `json:"network"`
	Demo    DemoSettings    `json:"demo"`
}

// GeneralSettings contains application behavior settings.
type GeneralSettings struct {
	DefaultDownloadDir string `json:"default_download_dir"`
	ClipboardMonitor   bool   `json:"clipboard_monitor"`
	Theme              Theme  `json:"theme"`
	LogRetentionCount  int    `json:"log_retention_count"`
	LogLevel           string `json:"log_level"`
}

// Theme selects the color scheme of the queue view.
type Theme int

const (
	ThemeAdaptive Theme = iota
	ThemeLight
	ThemeDark
)

// NetworkSettings contains transfer tuning parameters.
type NetworkSettings struct {
	MaxConcurrentDownloads int           `json:"max_concurrent_downloads"`
	UserAgent              string        `json:"user_agent"`
	StallTimeout           time.Duration `json:"stall_timeout"`
	ReportInterval         time.Duration `json:"report_interval"`
}

// DemoSettings contains the restricted-tier thresholds. The limits are
// configuration, not business logic: the demo build ships with Enabled set
// and the caps below, a full build leaves Enabled off.
type DemoSettings struct {
	Enabled         bool          `json:"enabled"`
	MaxClipDuration time.Duration `json:"max_clip_duration"`
	MaxDownloads    int           `json:"max_downloads"`
}

const (
	KB = 1024
	MB = 1024 * KB
)

// DefaultSettings returns a new Settings instance with sensible defaults.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()

	defaultDir := ""

	// Check XDG_DOWNLOAD_DIR
	if xdgDir := os.Getenv("XDG_DOWNLOAD_DIR"); xdgDir != "" {
		if info, err := os.Stat(xdgDir); err == nil && info.IsDir() {
			defaultDir = xdgDir
		}
	}

	// Check ~/Downloads if not set
	if defaultDir == "" && homeDir != "" {
		downloadsDir := filepath.Join(homeDir, "Downloads")
		if info, err := os.Stat(downloadsDir); err == nil && info.IsDir() {
			defaultDir = downloadsDir
		}
	}

	return &Settings{
		General: GeneralSettings{
			DefaultDownloadDir: defaultDir,
			ClipboardMonitor:   false,
			Theme:              ThemeAdaptive,
			LogRetentionCount:  5,
			LogLevel:           "info",
		},
		Network: NetworkSettings{
			// Two at once leaves bandwidth for video playback.
			MaxConcurrentDownloads: 2,
			UserAgent:              "",
			StallTimeout:           15 * time.Second,
			ReportInterval:         150 * time.Millisecond,
		},
		Demo: DemoSettings{
			Enabled:         false,
			MaxClipDuration: 5 * time.Minute,
			MaxDownloads:    3,
		},
	}
}

// GetAppDir returns the per-user configuration directory. It falls back to
// the working directory when no user config dir can be resolved.
func GetAppDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "tubeload")
}

// GetStateDir holds the history database and the control-port file.
func GetStateDir() string {
	return filepath.Join(GetAppDir(), "state")
}

// GetLogsDir holds the rotated log files.
func GetLogsDir() string {
	return filepath.Join(GetAppDir(), "logs")
}

// EnsureDirs creates the settings, state and log directories.
func EnsureDirs() error {
	for _, dir := range []string{GetStateDir(), GetLogsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// GetSettingsPath returns the path to the settings JSON file.
func GetSettingsPath() string {
	return filepath.Join(GetAppDir(), "settings.json")
}

// LoadSettings loads settings from disk. Returns defaults if file doesn't exist.
func LoadSettings() (*Settings, error) {
	path := GetSettingsPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings() // Start with defaults to fill any missing fields
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// SaveSettings saves settings to disk atomically.
func SaveSettings(s *Settings) error {
	path := GetSettingsPath()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	// Atomic write: write to temp file, then rename
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tempPath, path)
}
