package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/natefinch/lumberjack"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var (
	prefixLen = 10
	prefixMu  sync.Mutex
)

// Options controls how Init wires up logrus.
type Options struct {
	Verbose int
	Debug   bool
	File    string
	Output  io.Writer
}

// Level maps the verbosity flags onto a logrus level.
// Nothing set is warn, -v is info, -d is debug and -vv is trace.
func Level(verbose int, debug bool) logrus.Level {
	switch {
	case verbose >= 2:
		return logrus.TraceLevel
	case debug:
		return logrus.DebugLevel
	case verbose == 1:
		return logrus.InfoLevel
	default:
		return logrus.WarnLevel
	}
}

func Init(opts Options) error {
	level := Level(opts.Verbose, opts.Debug)

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	colors := false
	if f, ok := out.(*os.File); ok {
		colors = isatty.IsTerminal(f.Fd())
	}

	logrus.SetOutput(out)
	logrus.SetLevel(level)
	logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))
	logrus.SetFormatter(&prefixed.TextFormatter{
		ForceColors:     colors,
		DisableColors:   !colors,
		ForceFormatting: true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if opts.File == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return errors.Wrapf(err, "create log directory for %q", opts.File)
	}

	logrus.AddHook(NewRotateFileHook(RotateFileConfig{
		Filename:   opts.File,
		MaxSize:    5,
		MaxBackups: 10,
		MaxAge:     90,
		Level:      level,
		Formatter: &prefixed.TextFormatter{
			DisableColors:   true,
			ForceFormatting: true,
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		},
	}))

	return nil
}

// GetLogger returns an entry tagged with a padded prefix, e.g. [matcher   ].
func GetLogger(prefix string) *logrus.Entry {
	prefixMu.Lock()
	if len(prefix) > prefixLen {
		prefixLen = len(prefix)
	}
	width := prefixLen
	prefixMu.Unlock()

	return logrus.WithFields(logrus.Fields{"prefix": fmt.Sprintf("%-*s", width, prefix)})
}

/* rotating file hook */

type RotateFileConfig struct {
	Filename   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Level      logrus.Level
	Formatter  logrus.Formatter
}

type RotateFileHook struct {
	config    RotateFileConfig
	logWriter io.Writer
}

func NewRotateFileHook(config RotateFileConfig) logrus.Hook {
	return &RotateFileHook{
		config: config,
		logWriter: &lumberjack.Logger{
			Filename:   config.Filename,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
		},
	}
}

func (hook *RotateFileHook) Levels() []logrus.Level {
	return logrus.AllLevels[:hook.config.Level+1]
}

func (hook *RotateFileHook) Fire(entry *logrus.Entry) error {
	b, err := hook.config.Formatter.Format(entry)
	if err != nil {
		return err
	}

	_, err = hook.logWriter.Write(b)
	return err
}
