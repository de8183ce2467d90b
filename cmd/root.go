package cmd

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dupelink/dupelink/pkg/config"
	"github.com/dupelink/dupelink/pkg/logger"
)

var (
	// Global flags
	flagVerbose     int
	flagDebug       bool
	flagConfigFile  string
	flagLogFile     string
	flagCacheFile   string
	flagMetricsFile string
	flagWorkers     int

	// Link mode
	flagSoftlink bool
	flagHardlink bool

	// Indexing
	flagFollowSymlinks      bool
	flagDontIgnoreHardlinks bool

	// Cache
	flagNoCache            bool
	flagNoSourceCache      bool
	flagNoDestinationCache bool

	// Hash algorithm
	flagSHA1   bool
	flagSHA256 bool
	flagSHA512 bool
	flagMD5    bool
	flagXXHash bool

	flagPrintHashes bool
)

var algorithmFlags = []string{"sha1", "sha256", "sha512", "md5", "xxhash"}

// RootCommand builds the dupelink command.
func RootCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "dupelink [flags] <source>... <destination>",
		Short: "Replace duplicate files with links",
		Long: `dupelink finds files below the destination that are byte-identical to files
below one or more sources and replaces them with soft or hard links to the
source files. Without --softlink or --hardlink nothing is changed and the
planned links are listed.

Candidates are found by size first, only files sharing a size with a file on
the other side are hashed. Digests are cached by file name and size; two
different files with equal name and size share a cache entry, use --no-cache
when that is not acceptable.`,
		Example: `  dupelink ~/Pictures /mnt/backup/Pictures
  dupelink --hardlink --sha256 ~/Music ~/Downloads/Music
  dupelink --softlink -v /srv/a /srv/b /srv/archive`,
		Version:       versionString(),
		Args:          cobra.MinimumNArgs(2),
		SilenceErrors: true,
	}

	flags := command.Flags()
	flags.CountVarP(&flagVerbose, "verbose", "v", "Verbose level, repeat for trace output")
	flags.BoolVarP(&flagDebug, "debug", "d", false, "Debug output")
	flags.StringVarP(&flagConfigFile, "config", "c", config.DefaultConfigFile(), "Config file")
	flags.StringVarP(&flagLogFile, "log", "l", config.DefaultLogFile(), "Log file, empty to disable")
	flags.StringVar(&flagCacheFile, "cache-file", "", "Hash cache file (default from config)")
	flags.StringVar(&flagMetricsFile, "metrics-file", "", "Write Prometheus metrics of the run to this file")
	flags.IntVar(&flagWorkers, "workers", 0, "Number of files hashed concurrently (default from config)")

	flags.BoolVar(&flagSoftlink, "softlink", false, "Replace duplicates with softlinks")
	flags.BoolVar(&flagHardlink, "hardlink", false, "Replace duplicates with hardlinks")

	flags.BoolVar(&flagFollowSymlinks, "follow-symlinks", false, "Follow symlinked files and directories")
	flags.BoolVar(&flagDontIgnoreHardlinks, "dont-ignore-hardlinks", false, "Include destination files that already have several hardlinks")

	flags.BoolVar(&flagNoCache, "no-cache", false, "Do not read or write the hash cache")
	flags.BoolVar(&flagNoSourceCache, "no-source-cache", false, "Rehash source files instead of using cached digests")
	flags.BoolVar(&flagNoDestinationCache, "no-destination-cache", false, "Rehash destination files instead of using cached digests")

	flags.BoolVar(&flagSHA1, "sha1", false, "Hash with SHA-1 (default)")
	flags.BoolVar(&flagSHA256, "sha256", false, "Hash with SHA-256")
	flags.BoolVar(&flagSHA512, "sha512", false, "Hash with SHA-512")
	flags.BoolVar(&flagMD5, "md5", false, "Hash with MD5")
	flags.BoolVar(&flagXXHash, "xxhash", false, "Hash with xxHash64")

	flags.BoolVar(&flagPrintHashes, "print-hashes", false, "Print the digest of every hashed file")

	command.MarkFlagsMutuallyExclusive("softlink", "hardlink")
	command.MarkFlagsMutuallyExclusive(algorithmFlags...)

	command.RunE = func(cmd *cobra.Command, args []string) error {
		// arguments are valid from here on, errors are runtime failures
		cmd.SilenceUsage = true

		if err := initCore(cmd); err != nil {
			return err
		}

		return run(cmd.Context(), cmd.OutOrStdout(), args[:len(args)-1], args[len(args)-1])
	}

	return command
}

func initCore(cmd *cobra.Command) error {
	if err := logger.Init(logger.Options{
		Verbose: flagVerbose,
		Debug:   flagDebug,
		File:    flagLogFile,
	}); err != nil {
		return errors.Wrap(err, "initialize logging")
	}

	if err := config.Init(flagConfigFile, cmd.Flags().Changed("config")); err != nil {
		return errors.Wrap(err, "load configuration")
	}

	if err := applyFlags(cmd, config.Config); err != nil {
		return err
	}

	log := logger.GetLogger("app")
	log.Debugf("Using config file: %q", flagConfigFile)
	log.Debugf("Using log file: %q", flagLogFile)
	log.Debugf("Using hash cache: %q (enabled: %v)", config.Config.Cache.Path, config.Config.Cache.Enabled)

	return nil
}

// applyFlags overrides configuration with flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Configuration) error {
	flags := cmd.Flags()

	if flags.Changed("follow-symlinks") {
		cfg.Index.FollowSymlinks = flagFollowSymlinks
	}
	if flags.Changed("dont-ignore-hardlinks") {
		cfg.Index.IgnoreHardlinks = !flagDontIgnoreHardlinks
	}
	if flagNoCache {
		cfg.Cache.Enabled = false
	}
	if flagNoSourceCache {
		cfg.Cache.Source = false
	}
	if flagNoDestinationCache {
		cfg.Cache.Destination = false
	}
	if flags.Changed("cache-file") {
		cfg.Cache.Path = flagCacheFile
	}
	if flags.Changed("workers") {
		cfg.Performance.HashWorkers = flagWorkers
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.File = flagMetricsFile
	}

	for _, name := range algorithmFlags {
		if on, _ := flags.GetBool(name); on {
			cfg.Hash.Algorithm = name
		}
	}

	return cfg.Validate()
}

func interactive() bool {
	return isatty.IsTerminal(os.Stderr.Fd()) && flagVerbose == 0 && !flagDebug
}
