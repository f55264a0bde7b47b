package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/convene-dev/convene/pkg/preferences"
)

// Loader reads the config file and can watch it for changes.
type Loader struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	current  *Config
	onChange func(*Config)
	watcher  *fsnotify.Watcher
}

func NewLoader(path string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{path: path, logger: logger}
}

// Load is the one-shot entry point. An empty path loads pure defaults.
func Load(path string) (*Config, error) {
	return NewLoader(path, nil).Load()
}

func (l *Loader) Load() (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaultsMap(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}
	if l.path != "" {
		if err := k.Load(file.Provider(l.path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", l.path, err)
		}
	}

	expanded, ok := expandEnvVarsInData(k.Raw()).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("config root is not a map")
	}
	k = koanf.New(".")
	if err := k.Load(confmap.Provider(expanded, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to reload expanded config: %w", err)
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Current returns the last successfully loaded config.
func (l *Loader) Current() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Watch reloads on file change and hands the new config to onChange. A
// reload that fails validation keeps the previous config in place.
func (l *Loader) Watch(onChange func(*Config)) error {
	if l.path == "" {
		return fmt.Errorf("cannot watch: no config file path")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	// Watch the directory: editors replace files on save, which drops
	// watches on the file itself.
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	l.mu.Lock()
	l.onChange = onChange
	l.watcher = watcher
	l.mu.Unlock()

	go l.watchLoop(watcher)
	return nil
}

func (l *Loader) watchLoop(watcher *fsnotify.Watcher) {
	var lastReload time.Time
	target := filepath.Clean(l.path)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Saves arrive as bursts of events.
			if time.Since(lastReload) < 100*time.Millisecond {
				continue
			}
			lastReload = time.Now()

			cfg, err := l.Load()
			if err != nil {
				l.logger.Warn("config reload failed, keeping previous config", "error", err)
				continue
			}
			l.logger.Info("config reloaded", "path", l.path)
			if l.onChange != nil {
				l.onChange(cfg)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

// defaultsMap seeds the full default tree, preferences included.
func defaultsMap() map[string]interface{} {
	defaults := Defaults()
	prefs := preferences.Default()
	defaults["preferences.preferred_start_hour"] = prefs.PreferredStartHour
	defaults["preferences.preferred_end_hour"] = prefs.PreferredEndHour
	defaults["preferences.preferred_days"] = prefs.PreferredDays
	defaults["preferences.preferred_duration"] = prefs.PreferredDuration
	defaults["preferences.min_duration"] = prefs.MinDuration
	defaults["preferences.max_duration"] = prefs.MaxDuration
	defaults["preferences.buffer_between_meetings"] = prefs.BufferBetweenMeetings
	defaults["preferences.max_meetings_per_day"] = prefs.MaxMeetingsPerDay
	defaults["preferences.max_meetings_per_week"] = prefs.MaxMeetingsPerWeek
	defaults["preferences.allow_new_partners"] = prefs.AllowNewPartners
	defaults["preferences.min_trust_score"] = prefs.MinTrustScore
	return defaults
}
