// Package config loads shotcoach runtime settings from flags and the
// environment. Flags win over environment variables, which win over defaults.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds process-level settings.
type Config struct {
	Addr      string // HTTP listen address
	DataDir   string // Database, plugins and pose service live here
	WebDir    string // Static UI files; empty disables them
	PluginDir string
	CameraID  int
	Model     string // Pose model served by the helper process
	LogLevel  string
	Tray      bool
	User      string // Default player name for tray-started captures
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	dataDir := ".shotcoach"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".shotcoach")
	}
	return Config{
		Addr:     ":8080",
		DataDir:  dataDir,
		CameraID: 0,
		Model:    "movenet_lightning",
		LogLevel: "info",
	}
}

// Load builds a Config from args (without the program name) and getenv.
func Load(args []string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("shotcoach", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory for the database and plugins")
	fs.StringVar(&cfg.WebDir, "web-dir", cfg.WebDir, "Directory of static web files")
	fs.StringVar(&cfg.PluginDir, "plugin-dir", cfg.PluginDir, "Plugin directory (default <data-dir>/plugins)")
	fs.IntVar(&cfg.CameraID, "camera", cfg.CameraID, "Camera device index")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "Pose model: movenet_lightning, movenet_thunder, mediapipe")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.BoolVar(&cfg.Tray, "tray", cfg.Tray, "Show the system tray icon")
	fs.StringVar(&cfg.User, "user", cfg.User, "Player name used for tray-started captures")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.PluginDir == "" {
		cfg.PluginDir = filepath.Join(cfg.DataDir, "plugins")
	}
	if cfg.WebDir == "" {
		cfg.WebDir = findWebDir(cfg.DataDir)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}

	if v := getenv("SHOTCOACH_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := getenv("SHOTCOACH_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := getenv("SHOTCOACH_WEB_DIR"); v != "" {
		cfg.WebDir = v
	}
	if v := getenv("SHOTCOACH_PLUGIN_DIR"); v != "" {
		cfg.PluginDir = v
	}
	if v := getenv("SHOTCOACH_CAMERA"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SHOTCOACH_CAMERA: %w", err)
		}
		cfg.CameraID = id
	}
	if v := getenv("SHOTCOACH_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := getenv("SHOTCOACH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("SHOTCOACH_TRAY"); v != "" {
		cfg.Tray = v != "false" && v != "0"
	}
	if v := getenv("SHOTCOACH_USER"); v != "" {
		cfg.User = v
	}
	return nil
}

// DBPath is the SQLite database location.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "shotcoach.db")
}

// findWebDir returns the first existing web directory among "web",
// "../web", "../../web" and <dataDir>/web, or "".
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
