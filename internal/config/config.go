// Package config loads and validates the mapping described in spec.md §6
// ("Configuration inputs"), applies defaults, and watches the backing file
// for edits to a documented subset of live-reloadable fields.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the Injector/Session startup mapping from spec.md §6.
type Config struct {
	Server     string `yaml:"server" validate:"required"`
	Port       int    `yaml:"port" validate:"required,min=1,max=65535"`
	ClientName string `yaml:"client_name" validate:"required"`

	ScreenWidth  int `yaml:"screen_width" validate:"min=0"`
	ScreenHeight int `yaml:"screen_height" validate:"min=0"`

	MouseBackend    string `yaml:"mouse_backend" validate:"oneof=auto uinput wayland pty"`
	KeyboardBackend string `yaml:"keyboard_backend" validate:"oneof=auto uinput wayland pty"`

	AbsMouseMove         bool `yaml:"abs_mouse_move"`
	MouseMoveThresholdMS int  `yaml:"mouse_move_threshold_ms" validate:"min=0"`
	MousePosSyncFreq     int  `yaml:"mouse_pos_sync_freq" validate:"min=1"`

	TLS      bool   `yaml:"tls"`
	MTLS     bool   `yaml:"mtls"`
	TLSTrust bool   `yaml:"tls_trust"`
	PEMPath  string `yaml:"pem_path"`

	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// StatusGPIOChip names the gpiochipN device backing the optional status
	// indicator (e.g. "gpiochip0"). Empty disables the indicator entirely.
	StatusGPIOChip      string `yaml:"status_gpio_chip"`
	StatusGPIOLine      int    `yaml:"status_gpio_line" validate:"min=0"`
	StatusGPIOActiveLow bool   `yaml:"status_gpio_active_low"`

	// TranscriptDir enables the daily-rotating lifecycle transcript when
	// non-empty (§9 supplement); empty disables it.
	TranscriptDir string `yaml:"transcript_dir"`
}

// Default returns the spec-mandated defaults; callers load a file over top
// of this rather than starting from a zero Config.
func Default() Config {
	return Config{
		Server:               "localhost",
		Port:                 24800,
		ClientName:           hostnameOrFallback(),
		ScreenWidth:          0, // 0 means "auto": the backend reports no usable size and the Injector falls back to 1920x1080.
		ScreenHeight:         0,
		MouseBackend:         "auto",
		KeyboardBackend:      "auto",
		AbsMouseMove:         false,
		MouseMoveThresholdMS: 8,
		MousePosSyncFreq:     2,
		TLS:                  false,
		MTLS:                 false,
		TLSTrust:             false,
		LogLevel:             "info",
	}
}

func hostnameOrFallback() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "barrierscreen-client"
	}

	return h
}

// Load reads path, merging it over Default(), and validates the result.
// A missing file is not an error: Default() is used as-is.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)

			return cfg, validate(cfg)
		}

		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// applyEnvOverrides layers BARRIERSCREEN_* environment variables over the
// loaded file, the way a CLI in this lineage layers flags over a config
// file -- env vars win over the file, flags (applied later, in main) win
// over both.
func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("BARRIERSCREEN_SERVER"); ok {
		cfg.Server = v
	}

	if v, ok := os.LookupEnv("BARRIERSCREEN_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}

	if v, ok := os.LookupEnv("BARRIERSCREEN_CLIENT_NAME"); ok {
		cfg.ClientName = v
	}

	if v, ok := os.LookupEnv("BARRIERSCREEN_TLS"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.TLS = b
		}
	}

	if v, ok := os.LookupEnv("BARRIERSCREEN_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
}

var validatorInstance = validator.New()

func validate(cfg Config) error {
	if err := validatorInstance.Struct(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// The mouse and keyboard devices come from one backend.Backend (a single
	// uinput/Wayland/pty session opens both at once), so the two fields must
	// agree even though the wire format names them separately.
	if cfg.MouseBackend != cfg.KeyboardBackend {
		return fmt.Errorf("config: mouse_backend (%s) and keyboard_backend (%s) must match",
			cfg.MouseBackend, cfg.KeyboardBackend)
	}

	return nil
}

// liveReloadable lists the YAML keys Watch applies on an edit without a
// process restart -- everything else requires a restart since it's baked
// into an already-dialed connection or an already-opened device.
var liveReloadable = map[string]struct{}{
	"mouse_move_threshold_ms": {},
	"mouse_pos_sync_freq":     {},
	"abs_mouse_move":          {},
	"log_level":               {},
}

// Watcher watches a config file on disk and re-parses it on write events,
// invoking onChange with the fields from liveReloadable applied onto the
// previously-loaded Config. Fields outside that set are intentionally
// ignored here; picking them up requires a restart.
type Watcher struct {
	path     string
	w        *fsnotify.Watcher
	current  Config
	onChange func(Config)
}

// WatchFile starts watching path for changes, calling onChange with an
// updated Config whenever a live-reloadable field changes. The returned
// Watcher must be closed by the caller.
func WatchFile(path string, initial Config, onChange func(Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: creating watcher: %w", err)
	}

	if err := fw.Add(path); err != nil {
		fw.Close() //nolint:errcheck,gosec

		return nil, fmt.Errorf("config: watching %s: %w", path, err)
	}

	w := &Watcher{path: path, w: fw, current: initial, onChange: onChange}

	go w.run()

	return w, nil
}

func (w *Watcher) run() {
	var debounce <-chan time.Time

	for {
		select {
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}

			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				// Editors frequently emit several events per save (truncate
				// then write); coalesce into one reload.
				debounce = time.After(100 * time.Millisecond)
			}

		case <-debounce:
			debounce = nil
			w.reload()

		case _, ok := <-w.w.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) reload() {
	next, err := Load(w.path)
	if err != nil {
		return // keep running on the last-known-good config
	}

	merged := w.current
	applyLiveReloadable(&merged, next)
	w.current = merged
	w.onChange(merged)
}

// applyLiveReloadable copies exactly the fields named in liveReloadable
// from src onto dst; everything else in dst is left untouched.
func applyLiveReloadable(dst *Config, src Config) {
	dst.MouseMoveThresholdMS = src.MouseMoveThresholdMS
	dst.MousePosSyncFreq = src.MousePosSyncFreq
	dst.AbsMouseMove = src.AbsMouseMove
	dst.LogLevel = src.LogLevel
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	if err := w.w.Close(); err != nil {
		return fmt.Errorf("config: closing watcher: %w", err)
	}

	return nil
}
