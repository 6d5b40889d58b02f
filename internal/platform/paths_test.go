package platform

import (
	"path/filepath"
	"testing"
	"time"
)

// TestPathsForLinuxWithXDG verifies behavior for the covered scenario.
func TestPathsForLinuxWithXDG(t *testing.T) {
	p, err := PathsFor("linux", map[string]string{
		"XDG_CONFIG_HOME": "/xdg/config",
		"XDG_DATA_HOME":   "/xdg/data",
	}, "/fallback/config", "/fallback/data", "reeldesk")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	wantConfig := filepath.Join("/xdg/config", "reeldesk", "config.toml")
	wantDB := filepath.Join("/xdg/data", "reeldesk", "reeldesk.db")
	if p.ConfigPath != wantConfig {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
	if p.DBPath != wantDB {
		t.Fatalf("unexpected db path %q", p.DBPath)
	}
}

// TestPathsForWindowsUsesAppData verifies behavior for the covered scenario.
func TestPathsForWindowsUsesAppData(t *testing.T) {
	p, err := PathsFor("windows", map[string]string{
		"APPDATA":      `C:\Users\me\AppData\Roaming`,
		"LOCALAPPDATA": `C:\Users\me\AppData\Local`,
	}, `C:\fallback\config`, `C:\fallback\data`, "reeldesk")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}

	wantConfig := filepath.Join(`C:\Users\me\AppData\Roaming`, "reeldesk", "config.toml")
	wantDB := filepath.Join(`C:\Users\me\AppData\Local`, "reeldesk", "reeldesk.db")
	if p.ConfigPath != wantConfig {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
	if p.DBPath != wantDB {
		t.Fatalf("unexpected db path %q", p.DBPath)
	}
}

// TestPathsForEmptyDirsFails verifies behavior for the covered scenario.
func TestPathsForEmptyDirsFails(t *testing.T) {
	_, err := PathsFor("darwin", nil, "", "/tmp/data", "reeldesk")
	if err == nil {
		t.Fatal("expected error for empty dirs")
	}
}

// TestPathsForDarwinFallback verifies behavior for the covered scenario.
func TestPathsForDarwinFallback(t *testing.T) {
	p, err := PathsFor("darwin", map[string]string{
		"XDG_CONFIG_HOME": "/ignored",
		"XDG_DATA_HOME":   "/ignored",
	}, "/Users/me/Library/Application Support", "/Users/me/Library/Application Support", "reeldesk")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	wantConfig := filepath.Join("/Users/me/Library/Application Support", "reeldesk", "config.toml")
	wantDB := filepath.Join("/Users/me/Library/Application Support", "reeldesk", "reeldesk.db")
	if p.ConfigPath != wantConfig {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
	if p.DBPath != wantDB {
		t.Fatalf("unexpected db path %q", p.DBPath)
	}
}

// TestPathsForUnknownFallback verifies behavior for the covered scenario.
func TestPathsForUnknownFallback(t *testing.T) {
	p, err := PathsFor("freebsd", map[string]string{}, "/cfg", "/data", "reeldesk")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	wantConfig := filepath.Join("/cfg", "reeldesk", "config.toml")
	wantData := filepath.Join("/data", "reeldesk")
	if p.ConfigPath != wantConfig {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
	if p.DataDir != wantData {
		t.Fatalf("unexpected data dir %q", p.DataDir)
	}
}

// TestPathsForLinuxFallbackWithoutXDG verifies behavior for the covered scenario.
func TestPathsForLinuxFallbackWithoutXDG(t *testing.T) {
	p, err := PathsFor("linux", map[string]string{}, "/home/me/.config", "/home/me/.local/share", "reeldesk")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	wantConfig := filepath.Join("/home/me/.config", "reeldesk", "config.toml")
	wantDB := filepath.Join("/home/me/.local/share", "reeldesk", "reeldesk.db")
	if p.ConfigPath != wantConfig {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
	if p.DBPath != wantDB {
		t.Fatalf("unexpected db path %q", p.DBPath)
	}
}

// TestDefaultPathsSmoke verifies behavior for the covered scenario.
func TestDefaultPathsSmoke(t *testing.T) {
	p, err := DefaultPaths()
	if err != nil {
		t.Fatalf("DefaultPaths() error = %v", err)
	}
	if p.ConfigPath == "" || p.DBPath == "" || p.DataDir == "" {
		t.Fatalf("expected non-empty paths, got %#v", p)
	}
}

// TestDefaultPathsWithOptionsDevMode verifies behavior for the covered scenario.
func TestDefaultPathsWithOptionsDevMode(t *testing.T) {
	p, err := DefaultPathsWithOptions(Options{AppName: "reeldesk", DevMode: true})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	if filepath.Base(filepath.Dir(p.ConfigPath)) != "reeldesk-dev" {
		t.Fatalf("expected dev config dir suffix, got %q", p.ConfigPath)
	}
	if filepath.Base(p.DBPath) != "reeldesk-dev.db" {
		t.Fatalf("expected dev db name, got %q", p.DBPath)
	}
}

// TestPathsForIncludesLogDir verifies the log dir sits under the data dir.
func TestPathsForIncludesLogDir(t *testing.T) {
	p, err := PathsFor("linux", map[string]string{}, "/cfg", "/data", "reeldesk")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	if want := filepath.Join("/data", "reeldesk", "log"); p.LogDir != want {
		t.Fatalf("unexpected log dir %q, want %q", p.LogDir, want)
	}
}

// TestWithEnvOverrides verifies REELDESK_CONFIG and REELDESK_DB_PATH win over platform paths.
func TestWithEnvOverrides(t *testing.T) {
	base := Paths{ConfigPath: "/cfg/config.toml", DBPath: "/data/reeldesk.db", DataDir: "/data"}
	env := map[string]string{
		EnvConfigPath: "/etc/reeldesk.toml",
		EnvDBPath:     " /srv/reeldesk.db ",
	}
	got := WithEnvOverrides(base, func(key string) string { return env[key] })
	if got.ConfigPath != "/etc/reeldesk.toml" || got.DBPath != "/srv/reeldesk.db" {
		t.Fatalf("unexpected overrides %#v", got)
	}
	if got.DataDir != "/data" {
		t.Fatalf("data dir changed: %q", got.DataDir)
	}
	if unchanged := WithEnvOverrides(base, func(string) string { return "" }); unchanged != base {
		t.Fatalf("expected unchanged paths, got %#v", unchanged)
	}
	if unchanged := WithEnvOverrides(base, nil); unchanged != base {
		t.Fatalf("expected unchanged paths for nil getenv, got %#v", unchanged)
	}
}

// TestDevLogPath verifies the dated workspace log file name.
func TestDevLogPath(t *testing.T) {
	day := time.Date(2026, 3, 4, 23, 0, 0, 0, time.UTC)
	got := DevLogPath("/work", "", day)
	want := filepath.Join("/work", ".reeldesk", "log", "reeldesk-20260304.log")
	if got != want {
		t.Fatalf("DevLogPath() = %q, want %q", got, want)
	}
}
