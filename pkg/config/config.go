package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/pkg/errors"

	"github.com/dupelink/dupelink/pkg/hasher"
)

const (
	AppName   = "dupelink"
	EnvPrefix = "DUPELINK_"
)

var (
	// Config is the loaded configuration, set by Init.
	Config *Configuration
	K      = koanf.New(".")
)

func DefaultConfigFile() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

func DefaultCacheFile() string {
	return filepath.Join(xdg.CacheHome, AppName, "hashes.json")
}

func DefaultLogFile() string {
	return filepath.Join(xdg.StateHome, AppName, "activity.log")
}

func Defaults() map[string]any {
	return map[string]any{
		"cache.enabled":                 true,
		"cache.path":                    DefaultCacheFile(),
		"cache.source":                  true,
		"cache.destination":             true,
		"cache.flush_every":             100,
		"hash.algorithm":                hasher.DefaultAlgorithm,
		"hash.buffer":                   "64KiB",
		"index.follow_symlinks":         false,
		"index.ignore_hardlinks":        true,
		"performance.hash_workers":      4,
		"filter.ignore":                 []string{},
		"metrics.file":                  "",
		"notifications.detailed":        false,
		"notifications.skip_empty_run":  true,
		"notifications.service.discord": "",
	}
}

// Init loads defaults, then configFile, then the environment. A missing
// configFile is only an error when required is set.
func Init(configFile string, required bool) error {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return errors.Wrap(err, "load defaults")
	}

	if configFile != "" {
		_, err := os.Stat(configFile)
		switch {
		case err == nil:
			if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
				return errors.Wrapf(err, "load config %q", configFile)
			}
		case os.IsNotExist(err) && !required:
		default:
			return errors.Wrapf(err, "stat config %q", configFile)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return errors.Wrap(err, "load environment")
	}

	cfg := &Configuration{}
	if err := k.Unmarshal("", cfg); err != nil {
		return errors.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	K = k
	Config = cfg
	return nil
}

// envKey maps DUPELINK_CACHE__FLUSH_EVERY to cache.flush_every.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func (c *Configuration) Validate() error {
	algo, err := hasher.GetAlgorithm(c.Hash.Algorithm)
	if err != nil {
		return errors.Wrap(err, "hash.algorithm")
	}
	// the cache is namespaced by the canonical name
	c.Hash.Algorithm = algo.Name

	if _, err := c.Hash.BufferSize(); err != nil {
		return errors.Wrap(err, "hash.buffer")
	}
	if c.Performance.HashWorkers < 1 {
		return errors.Errorf("performance.hash_workers must be at least 1, got %d", c.Performance.HashWorkers)
	}
	if c.Cache.FlushEvery < 0 {
		return errors.Errorf("cache.flush_every must not be negative, got %d", c.Cache.FlushEvery)
	}
	if c.Cache.Enabled && c.Cache.Path == "" {
		return errors.New("cache.path must be set when the cache is enabled")
	}
	return nil
}

func (h HashConfig) BufferSize() (int, error) {
	n, err := humanize.ParseBytes(h.Buffer)
	if err != nil {
		return 0, err
	}
	if n == 0 || n > 1<<30 {
		return 0, errors.Errorf("buffer size out of range: %s", h.Buffer)
	}
	return int(n), nil
}
