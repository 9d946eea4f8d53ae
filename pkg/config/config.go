// Tankobon: a manga library, reader backend and downloader.
// Copyright (C) 2025 Luca M. Schmidt (LuMiSxh)
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"Tankobon/pkg/core"
	"Tankobon/pkg/engine/logger"
	"Tankobon/pkg/errors"
)

const appID = "tankobon"

// Recognized keys
const (
	KeyDarkTheme        = "dark-theme"
	KeyUpdateAtStartup  = "update-at-startup"
	KeyBackgroundColor  = "background-color"
	KeyFullscreen       = "fullscreen"
	KeyReadingDirection = "reading-direction"
	KeyScaling          = "scaling"
	KeyWindowSize       = "window-size"
	KeyDataDir          = "data-dir"
	KeyLogLevel         = "log-level"
	KeyUpdateSchedule   = "update-schedule"
	KeyNSFW             = "nsfw"
	KeyPageDelay        = "download.page-delay"
	KeyRetryBudget      = "download.retry-budget"
	KeyRetryDelay       = "download.retry-delay"
	KeyNetworkTimeout   = "network.timeout"
	KeyRequestsPerSec   = "network.requests-per-second"
)

var defaults = map[string]interface{}{
	KeyDarkTheme:        false,
	KeyUpdateAtStartup:  false,
	KeyBackgroundColor:  string(core.BackgroundWhite),
	KeyFullscreen:       false,
	KeyReadingDirection: string(core.RightToLeft),
	KeyScaling:          string(core.ScaleScreen),
	KeyWindowSize:       []int{360, 648},
	KeyDataDir:          "",
	KeyLogLevel:         "info",
	KeyUpdateSchedule:   "",
	KeyNSFW:             false,
	KeyPageDelay:        "500ms",
	KeyRetryBudget:      3,
	KeyRetryDelay:       "2s",
	KeyNetworkTimeout:   "30s",
	KeyRequestsPerSec:   2.0,
}

// Settings is a typed snapshot of the configuration
type Settings struct {
	DarkTheme        bool
	UpdateAtStartup  bool
	BackgroundColor  core.BackgroundColor
	Fullscreen       bool
	ReadingDirection core.ReadingDirection
	Scaling          core.Scaling
	WindowSize       [2]int
	DataDir          string
	LogLevel         logger.Level
	UpdateSchedule   string
	NSFW             bool
	PageDelay        time.Duration
	RetryBudget      int
	RetryDelay       time.Duration
	NetworkTimeout   time.Duration
	RequestsPerSec   float64
}

// Reader returns the global reader defaults
func (s Settings) Reader() core.ReaderSettings {
	return core.ReaderSettings{
		ReadingDirection: s.ReadingDirection,
		Scaling:          s.Scaling,
		BackgroundColor:  s.BackgroundColor,
		Fullscreen:       s.Fullscreen,
	}
}

// LibraryPath is the database file inside the data directory
func (s Settings) LibraryPath() string {
	return filepath.Join(s.DataDir, "library.db")
}

// LogPath is the log file inside the data directory
func (s Settings) LogPath() string {
	return filepath.Join(s.DataDir, "logs", appID+".log")
}

// Config wraps a viper instance holding the settings file
type Config struct {
	mu   sync.RWMutex
	v    *viper.Viper
	path string
}

// New returns a configuration holding only defaults, not backed by a file
func New() *Config {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(strings.ToUpper(appID))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return &Config{v: v}
}

// Load reads the settings file at path, or the default location when path
// is empty. A missing file is not an error.
func Load(path string) (*Config, error) {
	c := New()
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		path = filepath.Join(dir, appID, "settings.yaml")
	}
	c.path = path
	c.v.SetConfigFile(path)
	c.v.SetConfigType("yaml")

	if err := c.v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, errors.Track(err).
				WithFileContext(path, "read").
				WithMessagef("could not read settings file %s: %v", path, err).
				Error()
		}
	}

	if _, err := c.validated(); err != nil {
		return nil, err
	}
	return c, nil
}

// Path returns the settings file location
func (c *Config) Path() string {
	return c.path
}

// BindFlag lets a command line flag override a key
func (c *Config) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v.BindPFlag(key, flag)
}

// Keys lists the recognized keys in sorted order
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the current value of key formatted as a string
func (c *Config) Get(key string) (string, error) {
	if _, ok := defaults[key]; !ok {
		return "", errors.Track(errors.ErrInvalidInput).
			WithContext("key", key).
			WithMessagef("unknown setting %q", key).
			Error()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	if key == KeyWindowSize {
		ws := c.v.GetIntSlice(key)
		if len(ws) != 2 {
			return fmt.Sprint(ws), nil
		}
		return fmt.Sprintf("%dx%d", ws[0], ws[1]), nil
	}
	return c.v.GetString(key), nil
}

// Set validates value against the domain of key and stores it
func (c *Config) Set(key, value string) error {
	parsed, err := parseValue(key, value)
	if err != nil {
		return errors.Track(errors.ErrInvalidInput).
			WithContext("key", key).
			WithContext("value", value).
			WithMessage(err.Error()).
			Error()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.v.Set(key, parsed)
	return nil
}

// Save writes the current settings back to the settings file
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.path == "" {
		return errors.Track(errors.ErrInvalidInput).WithMessage("configuration has no backing file").Error()
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return errors.Track(err).AsStorage().WithFileContext(c.path, "mkdir").Error()
	}
	if err := c.v.WriteConfigAs(c.path); err != nil {
		return errors.Track(err).AsStorage().WithFileContext(c.path, "write").Error()
	}
	return nil
}

// Settings returns the typed view. Values that fail validation fall back
// to their defaults; Load already rejected a broken file.
func (c *Config) Settings() Settings {
	s, err := c.validated()
	if err != nil {
		return fallback()
	}
	return s
}

func (c *Config) validated() (Settings, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v := c.v
	s := Settings{
		DarkTheme:       v.GetBool(KeyDarkTheme),
		UpdateAtStartup: v.GetBool(KeyUpdateAtStartup),
		Fullscreen:      v.GetBool(KeyFullscreen),
		DataDir:         v.GetString(KeyDataDir),
		UpdateSchedule:  strings.TrimSpace(v.GetString(KeyUpdateSchedule)),
		NSFW:            v.GetBool(KeyNSFW),
		PageDelay:       v.GetDuration(KeyPageDelay),
		RetryBudget:     v.GetInt(KeyRetryBudget),
		RetryDelay:      v.GetDuration(KeyRetryDelay),
		NetworkTimeout:  v.GetDuration(KeyNetworkTimeout),
		RequestsPerSec:  v.GetFloat64(KeyRequestsPerSec),
	}

	var errs []error
	check := func(key string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	var err error
	s.BackgroundColor, err = core.ParseBackgroundColor(v.GetString(KeyBackgroundColor))
	check(KeyBackgroundColor, err)
	s.ReadingDirection, err = core.ParseReadingDirection(v.GetString(KeyReadingDirection))
	check(KeyReadingDirection, err)
	s.Scaling, err = core.ParseScaling(v.GetString(KeyScaling))
	check(KeyScaling, err)
	s.LogLevel, err = logger.ParseLevel(v.GetString(KeyLogLevel))
	check(KeyLogLevel, err)

	ws := v.GetIntSlice(KeyWindowSize)
	if len(ws) == 2 && ws[0] > 0 && ws[1] > 0 {
		s.WindowSize = [2]int{ws[0], ws[1]}
	} else {
		check(KeyWindowSize, fmt.Errorf("expected two positive integers, got %v", ws))
	}

	if s.UpdateSchedule != "" {
		_, err = cron.ParseStandard(s.UpdateSchedule)
		check(KeyUpdateSchedule, err)
	}
	if s.RetryBudget < 1 {
		check(KeyRetryBudget, fmt.Errorf("must be at least 1"))
	}
	if s.NetworkTimeout <= 0 {
		check(KeyNetworkTimeout, fmt.Errorf("must be positive"))
	}
	if s.PageDelay < 0 || s.RetryDelay < 0 {
		check(KeyPageDelay, fmt.Errorf("delays cannot be negative"))
	}
	if s.RequestsPerSec <= 0 {
		check(KeyRequestsPerSec, fmt.Errorf("must be positive"))
	}

	if s.DataDir == "" {
		s.DataDir = DefaultDataDir()
	}

	if len(errs) > 0 {
		return s, errors.Track(errors.Join(errs...)).
			AsValidation().
			WithContext("file", c.path).
			Error()
	}
	return s, nil
}

func fallback() Settings {
	s, _ := New().validated()
	return s
}

// DefaultDataDir is <user data dir>/tankobon
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appID)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return appID
	}
	return filepath.Join(home, ".local", "share", appID)
}

func parseValue(key, value string) (interface{}, error) {
	value = strings.TrimSpace(value)
	switch key {
	case KeyDarkTheme, KeyUpdateAtStartup, KeyFullscreen, KeyNSFW:
		return strconv.ParseBool(value)
	case KeyBackgroundColor:
		c, err := core.ParseBackgroundColor(value)
		return string(c), err
	case KeyReadingDirection:
		d, err := core.ParseReadingDirection(value)
		return string(d), err
	case KeyScaling:
		sc, err := core.ParseScaling(value)
		return string(sc), err
	case KeyWindowSize:
		parts := strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == 'x' || r == ' ' })
		if len(parts) != 2 {
			return nil, fmt.Errorf("window-size takes two integers like 800x600")
		}
		w, err1 := strconv.Atoi(parts[0])
		h, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
			return nil, fmt.Errorf("window-size takes two positive integers")
		}
		return []int{w, h}, nil
	case KeyDataDir:
		return value, nil
	case KeyLogLevel:
		if _, err := logger.ParseLevel(value); err != nil {
			return nil, err
		}
		return strings.ToLower(value), nil
	case KeyUpdateSchedule:
		if value == "" {
			return "", nil
		}
		if _, err := cron.ParseStandard(value); err != nil {
			return nil, fmt.Errorf("invalid cron expression: %w", err)
		}
		return value, nil
	case KeyPageDelay, KeyRetryDelay, KeyNetworkTimeout:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, err
		}
		if d < 0 || (key == KeyNetworkTimeout && d == 0) {
			return nil, fmt.Errorf("%s must be positive", key)
		}
		return value, nil
	case KeyRetryBudget:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("retry budget must be a positive integer")
		}
		return n, nil
	case KeyRequestsPerSec:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("requests per second must be a positive number")
		}
		return f, nil
	}
	return nil, fmt.Errorf("unknown setting %q", key)
}
