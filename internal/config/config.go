// Package config handles loading and resolving jarqyn configuration.
// Resolution order (first non-empty value wins):
//  1. CLI flags --base-url, --media-url
//  2. Environment variables JARQYN_BASE_URL, JARQYN_MEDIA_URL, JARQYN_DB_PATH
//  3. config.json in the current working directory
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	DefaultConfigFile      = "config.json"
	DefaultFormat          = "table"
	DefaultTimeout         = 30 * time.Second
	DefaultRate            = 5.0
	DefaultBaseURL         = "http://localhost:3001/reports"
	DefaultMediaBaseURL    = "http://localhost:3001"
	DefaultTimezone        = "Asia/Almaty"
	DefaultListenAddr      = "127.0.0.1:8080"
	DefaultSearchDebounce  = 300 * time.Millisecond
	DefaultKeep            = 20
	DefaultTileURL         = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	DefaultTileAttribution = `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a>`
	DefaultCenterLat       = 52.2833
	DefaultCenterLon       = 76.9667
	DefaultZoom            = 12

	EnvBaseURL  = "JARQYN_BASE_URL"
	EnvMediaURL = "JARQYN_MEDIA_URL"
	EnvDBPath   = "JARQYN_DB_PATH"
)

// File is the on-disk representation of config.json.
type File struct {
	BaseURL         string  `json:"base_url"`
	MediaBaseURL    string  `json:"media_base_url"`
	DefaultFormat   string  `json:"default_format"`
	Timeout         string  `json:"timeout"`
	Rate            float64 `json:"rate"`
	DBPath          string  `json:"db_path"`
	Keep            int     `json:"archive_keep,omitempty"`
	TileURL         string  `json:"tile_url,omitempty"`
	TileAttribution string  `json:"tile_attribution,omitempty"`
	CenterLat       float64 `json:"center_lat,omitempty"`
	CenterLon       float64 `json:"center_lon,omitempty"`
	Zoom            int     `json:"zoom,omitempty"`
	Timezone        string  `json:"timezone"`
	ListenAddr      string  `json:"listen_addr,omitempty"`
	ServerFiltering bool    `json:"server_filtering"`
	SearchDebounce  string  `json:"search_debounce,omitempty"`
	RefreshInterval string  `json:"refresh_interval,omitempty"`
}

// Config is the fully-resolved runtime configuration.
// All callers use this struct; the File is only read during loading.
type Config struct {
	BaseURL         string
	MediaBaseURL    string
	Format          string
	Timeout         time.Duration
	Rate            float64
	DBPath          string
	Keep            int
	TileURL         string
	TileAttribution string
	CenterLat       float64
	CenterLon       float64
	Zoom            int
	Timezone        string
	ListenAddr      string
	ServerFiltering bool
	SearchDebounce  time.Duration
	RefreshInterval time.Duration // 0 disables periodic refresh in `serve`
	ConfigPath      string        // path of the config.json that was loaded (empty if none found)

	// Runtime overrides set from CLI flags after Load()
	Offline bool
	Quiet   bool
	Verbose bool
	Debug   bool
}

// Load resolves configuration from all sources.
// flagBaseURL and flagMediaURL are the values of --base-url and --media-url
// (empty string if not set).
func Load(flagBaseURL, flagMediaURL string) (*Config, error) {
	cfg := &Config{
		BaseURL:         DefaultBaseURL,
		MediaBaseURL:    DefaultMediaBaseURL,
		Format:          DefaultFormat,
		Timeout:         DefaultTimeout,
		Rate:            DefaultRate,
		Keep:            DefaultKeep,
		TileURL:         DefaultTileURL,
		TileAttribution: DefaultTileAttribution,
		CenterLat:       DefaultCenterLat,
		CenterLon:       DefaultCenterLon,
		Zoom:            DefaultZoom,
		Timezone:        DefaultTimezone,
		ListenAddr:      DefaultListenAddr,
		SearchDebounce:  DefaultSearchDebounce,
	}

	// Layer 1: config.json (lowest priority)
	if f, path, err := loadFile(); err == nil {
		applyFile(cfg, f, path)
	}

	// Layer 2: environment variables
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv(EnvMediaURL); v != "" {
		cfg.MediaBaseURL = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}

	// Layer 3: CLI flags (highest priority)
	if flagBaseURL != "" {
		cfg.BaseURL = flagBaseURL
	}
	if flagMediaURL != "" {
		cfg.MediaBaseURL = flagMediaURL
	}

	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DBPath = filepath.Join(home, ".jarqyn", "jarqyn.db")
		}
	}

	return cfg, nil
}

// Validate returns an error if required fields are missing or malformed.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New(
			"report service URL not set.\n\n" +
				"Set it one of these ways:\n" +
				"  1. CLI flag:        jarqyn --base-url http://host:3001/reports ...\n" +
				"  2. Environment:     export JARQYN_BASE_URL=http://host:3001/reports\n" +
				"  3. config.json:     {\"base_url\": \"http://host:3001/reports\"}",
		)
	}
	if err := checkURL("base_url", c.BaseURL); err != nil {
		return err
	}
	if c.MediaBaseURL != "" {
		if err := checkURL("media_base_url", c.MediaBaseURL); err != nil {
			return err
		}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return nil
}

func checkURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", key, raw)
	}
	return nil
}

// loadFile attempts to read config.json from the current working directory.
func loadFile() (*File, string, error) {
	path, err := filepath.Abs(DefaultConfigFile)
	if err != nil {
		return nil, "", err
	}
	f, err := ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return f, path, nil
}

// ReadFile parses a config.json at path.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config.json not found at %s", path)
		}
		return nil, fmt.Errorf("reading config.json: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing config.json: %w", err)
	}
	return &f, nil
}

// applyFile copies values from a parsed File into cfg,
// skipping any fields that are zero/empty.
func applyFile(cfg *Config, f *File, path string) {
	cfg.ConfigPath = path
	if f.BaseURL != "" {
		cfg.BaseURL = f.BaseURL
	}
	if f.MediaBaseURL != "" {
		cfg.MediaBaseURL = f.MediaBaseURL
	}
	if f.DefaultFormat != "" {
		cfg.Format = f.DefaultFormat
	}
	if d, ok := duration(f.Timeout); ok {
		cfg.Timeout = d
	}
	if f.Rate > 0 {
		cfg.Rate = f.Rate
	}
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}
	if f.Keep > 0 {
		cfg.Keep = f.Keep
	}
	if f.TileURL != "" {
		cfg.TileURL = f.TileURL
	}
	if f.TileAttribution != "" {
		cfg.TileAttribution = f.TileAttribution
	}
	if f.CenterLat != 0 || f.CenterLon != 0 {
		cfg.CenterLat, cfg.CenterLon = f.CenterLat, f.CenterLon
	}
	if f.Zoom > 0 {
		cfg.Zoom = f.Zoom
	}
	if f.Timezone != "" {
		cfg.Timezone = f.Timezone
	}
	if f.ListenAddr != "" {
		cfg.ListenAddr = f.ListenAddr
	}
	cfg.ServerFiltering = f.ServerFiltering
	if d, ok := duration(f.SearchDebounce); ok {
		cfg.SearchDebounce = d
	}
	if d, ok := duration(f.RefreshInterval); ok {
		cfg.RefreshInterval = d
	}
}

// duration parses s, ignoring empty, invalid and negative values.
func duration(s string) (time.Duration, bool) {
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}

// ─── Editing ──────────────────────────────────────────────────────────────────

var setters = map[string]func(f *File, v string) error{
	"base_url":         func(f *File, v string) error { f.BaseURL = v; return nil },
	"media_base_url":   func(f *File, v string) error { f.MediaBaseURL = v; return nil },
	"default_format":   func(f *File, v string) error { f.DefaultFormat = v; return nil },
	"timeout":          durationSetter(func(f *File) *string { return &f.Timeout }),
	"rate":             floatSetter(func(f *File) *float64 { return &f.Rate }),
	"db_path":          func(f *File, v string) error { f.DBPath = v; return nil },
	"archive_keep":     intSetter(func(f *File) *int { return &f.Keep }),
	"tile_url":         func(f *File, v string) error { f.TileURL = v; return nil },
	"tile_attribution": func(f *File, v string) error { f.TileAttribution = v; return nil },
	"center_lat":       floatSetter(func(f *File) *float64 { return &f.CenterLat }),
	"center_lon":       floatSetter(func(f *File) *float64 { return &f.CenterLon }),
	"zoom":             intSetter(func(f *File) *int { return &f.Zoom }),
	"timezone": func(f *File, v string) error {
		if _, err := time.LoadLocation(v); err != nil {
			return fmt.Errorf("unknown timezone %q", v)
		}
		f.Timezone = v
		return nil
	},
	"listen_addr": func(f *File, v string) error { f.ListenAddr = v; return nil },
	"server_filtering": func(f *File, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("server_filtering must be true or false")
		}
		f.ServerFiltering = b
		return nil
	},
	"search_debounce":  durationSetter(func(f *File) *string { return &f.SearchDebounce }),
	"refresh_interval": durationSetter(func(f *File) *string { return &f.RefreshInterval }),
}

// Keys returns the settable config keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns a single key from its string form, as typed on the command line.
func (f *File) Set(key, val string) error {
	key = strings.ToLower(key)
	if key == "format" {
		key = "default_format"
	}
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s", key, strings.Join(Keys(), ", "))
	}
	return set(f, val)
}

func durationSetter(field func(*File) *string) func(*File, string) error {
	return func(f *File, v string) error {
		if _, ok := duration(v); !ok {
			return fmt.Errorf("invalid duration %q (examples: 30s, 500ms, 5m)", v)
		}
		*field(f) = v
		return nil
	}
}

func floatSetter(field func(*File) *float64) func(*File, string) error {
	return func(f *File, v string) error {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%q is not a number", v)
		}
		*field(f) = n
		return nil
	}
}

func intSetter(field func(*File) *int) func(*File, string) error {
	return func(f *File, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%q is not an integer", v)
		}
		*field(f) = n
		return nil
	}
}

// Template returns a File populated with sensible defaults, suitable for
// writing an initial config.json via `jarqyn config init`.
func Template() File {
	return File{
		BaseURL:        DefaultBaseURL,
		MediaBaseURL:   DefaultMediaBaseURL,
		DefaultFormat:  DefaultFormat,
		Timeout:        "30s",
		Rate:           DefaultRate,
		Timezone:       DefaultTimezone,
		SearchDebounce: DefaultSearchDebounce.String(),
	}
}

// WriteFile serialises a File to the given path.
func WriteFile(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}
