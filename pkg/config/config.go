package config

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	appName = "xkbtray"

	DefaultFontPath     = "/usr/share/fonts/TTF/DejaVuSans.ttf"
	DefaultEvdevXMLPath = "/usr/share/X11/xkb/rules/evdev.xml"
)

const (
	TrayXembed = "xembed"
	TraySNI    = "sni"
	TrayNone   = "none"

	OnUnavailableExit     = "exit"
	OnUnavailableHeadless = "headless"

	HistoryNone   = "none"
	HistoryMemory = "memory"
	HistoryJSON   = "json"
	HistorySQLite = "sqlite"
)

type Config struct {
	Display        string            `yaml:"display" toml:"display"`
	ConnectTimeout Duration          `yaml:"connect_timeout" toml:"connect_timeout"`
	FontPath       string            `yaml:"font_path" toml:"font_path"`
	Icon           Icon              `yaml:"icon" toml:"icon"`
	Tray           Tray              `yaml:"tray" toml:"tray"`
	Labels         map[string]string `yaml:"labels" toml:"labels"`
	EvdevXMLPath   string            `yaml:"evdev_xml_path" toml:"evdev_xml_path"`
	History        History           `yaml:"history" toml:"history"`
	GlyphCacheSize int               `yaml:"glyph_cache_size" toml:"glyph_cache_size"`
}

type Icon struct {
	Size       int     `yaml:"size" toml:"size"`
	FontSize   float64 `yaml:"font_size" toml:"font_size"`
	Background Color   `yaml:"background" toml:"background"`
	Foreground Color   `yaml:"foreground" toml:"foreground"`
}

type Tray struct {
	Backend       string   `yaml:"backend" toml:"backend"`
	OnUnavailable string   `yaml:"on_unavailable" toml:"on_unavailable"`
	DockRetries   int      `yaml:"dock_retries" toml:"dock_retries"`
	DockInterval  Duration `yaml:"dock_interval" toml:"dock_interval"`
}

type History struct {
	Backend    string `yaml:"backend" toml:"backend"`
	Path       string `yaml:"path" toml:"path"`
	MaxEntries int    `yaml:"max_entries" toml:"max_entries"`
}

func Default() *Config {
	return &Config{
		ConnectTimeout: Duration(5 * time.Second),
		FontPath:       DefaultFontPath,
		Icon: Icon{
			Size:       24,
			FontSize:   16,
			Background: Color{R: 35, G: 35, B: 35, A: 255},
			Foreground: Color{R: 255, G: 255, B: 255, A: 255},
		},
		Tray: Tray{
			Backend:       TrayXembed,
			OnUnavailable: OnUnavailableExit,
			DockRetries:   10,
			DockInterval:  Duration(500 * time.Millisecond),
		},
		EvdevXMLPath: DefaultEvdevXMLPath,
		History: History{
			Backend:    HistoryNone,
			MaxEntries: 1000,
		},
		GlyphCacheSize: 32,
	}
}

// Locate finds config.yaml or config.toml in the XDG config dirs.
func Locate() (string, bool) {
	for _, name := range []string{"config.yaml", "config.yml", "config.toml"} {
		path, err := xdg.SearchConfigFile(filepath.Join(appName, name))
		if err == nil {
			return path, true
		}
	}
	return "", false
}

// Load reads the file at path over the defaults. With an empty path the
// XDG config dirs are searched, and defaults are returned when nothing is
// found there.
func Load(path string) (*Config, error) {
	if path == "" {
		found, ok := Locate()
		if !ok {
			return Default(), nil
		}
		path = found
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes YAML, or TOML when format is ".toml". Unknown keys are
// rejected.
func Parse(data []byte, format string) (*Config, error) {
	cfg := Default()

	switch strings.ToLower(format) {
	case ".toml", "toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}

	default:
		if len(bytes.TrimSpace(data)) == 0 {
			return cfg, nil
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.ConnectTimeout <= 0 {
		add("connect_timeout must be positive, got %s", c.ConnectTimeout)
	}
	if strings.TrimSpace(c.FontPath) == "" {
		add("font_path must not be empty")
	}
	if c.Icon.Size < 8 || c.Icon.Size > 512 {
		add("icon.size must be between 8 and 512, got %d", c.Icon.Size)
	}
	if c.Icon.FontSize <= 0 {
		add("icon.font_size must be positive, got %v", c.Icon.FontSize)
	}

	switch c.Tray.Backend {
	case TrayXembed, TraySNI, TrayNone:
	default:
		add("tray.backend must be one of %s, %s, %s; got %q", TrayXembed, TraySNI, TrayNone, c.Tray.Backend)
	}
	switch c.Tray.OnUnavailable {
	case OnUnavailableExit, OnUnavailableHeadless:
	default:
		add("tray.on_unavailable must be %s or %s, got %q", OnUnavailableExit, OnUnavailableHeadless, c.Tray.OnUnavailable)
	}
	if c.Tray.DockRetries < 1 {
		add("tray.dock_retries must be at least 1, got %d", c.Tray.DockRetries)
	}
	if c.Tray.DockInterval <= 0 {
		add("tray.dock_interval must be positive, got %s", c.Tray.DockInterval)
	}

	for key, label := range c.Labels {
		if strings.TrimSpace(label) == "" {
			add("labels.%s must not be empty", key)
		}
	}

	switch c.History.Backend {
	case HistoryNone, HistoryMemory, HistoryJSON, HistorySQLite:
	default:
		add("history.backend must be one of none, memory, json, sqlite; got %q", c.History.Backend)
	}
	if c.History.MaxEntries < 0 {
		add("history.max_entries must not be negative, got %d", c.History.MaxEntries)
	}

	if c.GlyphCacheSize < 1 {
		add("glyph_cache_size must be at least 1, got %d", c.GlyphCacheSize)
	}

	return errors.Join(errs...)
}

// HistoryPath is history.path, or a file under $XDG_STATE_HOME/xkbtray
// named after the backend.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}

	name := "history.db"
	if c.History.Backend == HistoryJSON {
		name = "history.json"
	}

	path, err := xdg.StateFile(filepath.Join(appName, name))
	if err != nil {
		return "", fmt.Errorf("locate history file: %w", err)
	}
	return path, nil
}
