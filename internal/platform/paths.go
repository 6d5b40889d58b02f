package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// DefaultAppName names the config and data directories.
const DefaultAppName = "reeldesk"

// Environment overrides for resolved paths.
const (
	EnvConfigPath = "REELDESK_CONFIG"
	EnvDBPath     = "REELDESK_DB_PATH"
)

// Paths holds the resolved config, data and log locations.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	LogDir     string
}

// Options selects the app directory name.
type Options struct {
	AppName string
	DevMode bool
}

// DefaultPaths resolves paths for the default app name.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{AppName: DefaultAppName})
}

// DefaultPathsWithOptions resolves platform paths, then applies env overrides.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = DefaultAppName
	}
	if opts.DevMode {
		appName += "-dev"
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir := configDir
	if runtime.GOOS == "linux" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return Paths{}, fmt.Errorf("user home dir: %w", homeErr)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	if runtime.GOOS == "windows" {
		if v := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); v != "" {
			dataDir = v
		}
	}

	env := map[string]string{
		"XDG_CONFIG_HOME": os.Getenv("XDG_CONFIG_HOME"),
		"XDG_DATA_HOME":   os.Getenv("XDG_DATA_HOME"),
		"APPDATA":         os.Getenv("APPDATA"),
		"LOCALAPPDATA":    os.Getenv("LOCALAPPDATA"),
	}
	paths, err := PathsFor(runtime.GOOS, env, configDir, dataDir, appName)
	if err != nil {
		return Paths{}, err
	}
	return WithEnvOverrides(paths, os.Getenv), nil
}

// WithEnvOverrides replaces the config and database paths when the env sets them.
func WithEnvOverrides(paths Paths, getenv func(string) string) Paths {
	if getenv == nil {
		return paths
	}
	if v := strings.TrimSpace(getenv(EnvConfigPath)); v != "" {
		paths.ConfigPath = v
	}
	if v := strings.TrimSpace(getenv(EnvDBPath)); v != "" {
		paths.DBPath = v
	}
	return paths
}

// DevLogPath returns the dev-mode log file for one workspace and day.
func DevLogPath(workspace, appName string, day time.Time) string {
	appName = strings.TrimSpace(appName)
	if appName == "" {
		appName = DefaultAppName
	}
	name := fmt.Sprintf("%s-%s.log", appName, day.Format("20060102"))
	return filepath.Join(workspace, "."+appName, "log", name)
}

// PathsFor resolves paths for one platform and environment snapshot.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName string) (Paths, error) {
	if userConfigDir == "" || userDataDir == "" {
		return Paths{}, fmt.Errorf("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, fmt.Errorf("empty app name")
	}

	configBase := userConfigDir
	dataBase := userDataDir

	switch goos {
	case "linux":
		if v := env["XDG_CONFIG_HOME"]; v != "" {
			configBase = v
		}
		if v := env["XDG_DATA_HOME"]; v != "" {
			dataBase = v
		}
	case "windows":
		if v := env["APPDATA"]; v != "" {
			configBase = v
		}
		if v := env["LOCALAPPDATA"]; v != "" {
			dataBase = v
		}
	case "darwin":
		// Keep os.UserConfigDir/UserCacheDir defaults for macOS.
	default:
		// Fallback for other platforms.
	}

	appConfigDir := filepath.Join(configBase, appName)
	appDataDir := filepath.Join(dataBase, appName)
	dbName := appName + ".db"
	return Paths{
		ConfigPath: filepath.Join(appConfigDir, "config.toml"),
		DataDir:    appDataDir,
		DBPath:     filepath.Join(appDataDir, dbName),
		LogDir:     filepath.Join(appDataDir, "log"),
	}, nil
}
