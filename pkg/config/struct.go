package config

type Configuration struct {
	Cache         CacheConfig
	Hash          HashConfig
	Index         IndexConfig
	Performance   PerformanceConfig
	Filter        FilterConfig
	Metrics       MetricsConfig
	Notifications NotificationsConfig
}

type CacheConfig struct {
	Enabled     bool
	Path        string
	Source      bool
	Destination bool
	FlushEvery  int `yaml:"flush_every" koanf:"flush_every"`
}

type HashConfig struct {
	Algorithm string
	// Buffer is the read chunk size, e.g. "64KiB".
	Buffer string
}

type IndexConfig struct {
	FollowSymlinks bool `yaml:"follow_symlinks" koanf:"follow_symlinks"`
	// IgnoreHardlinks skips destination files that already have several links.
	IgnoreHardlinks bool `yaml:"ignore_hardlinks" koanf:"ignore_hardlinks"`
}

type PerformanceConfig struct {
	HashWorkers int `yaml:"hash_workers" koanf:"hash_workers"`
}

type FilterConfig struct {
	// Ignore lists expressions; files matching any of them are not indexed.
	Ignore []string
}

type MetricsConfig struct {
	// File receives run metrics in the Prometheus text format.
	File string
}
