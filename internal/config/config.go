package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/petems/capture-inventory/internal/device"
	"github.com/petems/capture-inventory/internal/hotplug"
)

const (
	BackendPortAudio = "portaudio"
	BackendMalgo     = "malgo"
)

type Config struct {
	LogLevel string        `json:"log_level"` // "trace", "debug", "info", "warn", "error"
	Kinds    []string      `json:"kinds"`     // "audio", "video", "display"
	Watcher  WatcherConfig `json:"watcher"`
	Probe    ProbeConfig   `json:"probe"`
	Hotplug  HotplugConfig `json:"hotplug"`
}

type WatcherConfig struct {
	PollInterval Duration `json:"poll_interval"`
	QueueSize    int      `json:"queue_size"`
}

type ProbeConfig struct {
	AudioBackend string `json:"audio_backend"` // "portaudio" or "malgo"
}

type HotplugConfig struct {
	Enabled  bool     `json:"enabled"`
	Paths    []string `json:"paths"`
	Patterns []string `json:"patterns"`
	Debounce Duration `json:"debounce"`
}

// Duration is a time.Duration that reads and writes as a Go duration string
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"2s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Kinds:    []string{"audio", "video"},
		Watcher: WatcherConfig{
			PollInterval: Duration(2 * time.Second),
			QueueSize:    16,
		},
		Probe: ProbeConfig{
			AudioBackend: BackendPortAudio,
		},
		Hotplug: HotplugConfig{
			// Only Linux exposes capture devices as nodes under /dev
			Enabled:  runtime.GOOS == "linux",
			Paths:    append([]string(nil), hotplug.DefaultPaths...),
			Patterns: append([]string(nil), hotplug.DefaultPatterns...),
			Debounce: Duration(250 * time.Millisecond),
		},
	}
}

// Load reads the config from disk or returns defaults
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom reads the config at path, falling back to defaults for a missing file
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if level := strings.TrimSpace(os.Getenv("CAPTURE_INVENTORY_LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}

	cfg.Validate()
	return cfg, nil
}

// Validate resets out-of-range values to their defaults
func (c *Config) Validate() {
	def := Default()

	if c.Watcher.PollInterval.Std() < 100*time.Millisecond {
		c.Watcher.PollInterval = def.Watcher.PollInterval
	}
	if c.Watcher.QueueSize <= 0 {
		c.Watcher.QueueSize = def.Watcher.QueueSize
	}
	switch c.Probe.AudioBackend {
	case BackendPortAudio, BackendMalgo:
	default:
		c.Probe.AudioBackend = def.Probe.AudioBackend
	}
	if c.Hotplug.Debounce.Std() <= 0 {
		c.Hotplug.Debounce = def.Hotplug.Debounce
	}
	if len(c.DeviceKinds()) == 0 {
		c.Kinds = def.Kinds
	}
}

// DeviceKinds returns the configured kinds, skipping unknown and duplicate names
func (c *Config) DeviceKinds() []device.Kind {
	seen := make(map[device.Kind]bool)
	var kinds []device.Kind
	for _, name := range c.Kinds {
		k, err := device.ParseKind(name)
		if err != nil || seen[k] {
			continue
		}
		seen[k] = true
		kinds = append(kinds, k)
	}
	return kinds
}

// Save writes the config to disk
func (c *Config) Save() error {
	return c.SaveTo(Path())
}

func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Path returns the config file location, honouring CAPTURE_INVENTORY_CONFIG
func Path() string {
	if p := strings.TrimSpace(os.Getenv("CAPTURE_INVENTORY_CONFIG")); p != "" {
		return p
	}

	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "capture-inventory", "config.json")
}
