package expression

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/dustin/go-humanize"
	"github.com/expr-lang/expr/vm"

	"github.com/dupelink/dupelink/pkg/fileindex"
	"github.com/dupelink/dupelink/pkg/logger"
)

type CompiledExpression struct {
	Program *vm.Program
	Text    string
}

// evalContext is the environment expressions are evaluated against.
type evalContext struct {
	Path      string
	Name      string
	Dir       string
	Ext       string
	Size      int64
	Links     uint64
	IsSymlink bool
	// Age is the time since the last modification, in seconds.
	Age float64

	ctx context.Context
}

func newEvalContext(ctx context.Context, rec fileindex.Record) *evalContext {
	return &evalContext{
		Path:      rec.Path,
		Name:      rec.Name,
		Dir:       filepath.Dir(rec.Path),
		Ext:       strings.ToLower(strings.TrimPrefix(filepath.Ext(rec.Name), ".")),
		Size:      rec.Size,
		Links:     rec.Links,
		IsSymlink: rec.IsSymlink,
		Age:       time.Since(rec.ModTime).Seconds(),
		ctx:       ctx,
	}
}

var regexCache sync.Map

// RegexMatch matches value against a .NET style pattern, which unlike RE2
// supports lookarounds and backreferences.
func (e *evalContext) RegexMatch(value string, pattern string) bool {
	var re *regexp2.Regexp
	if cached, ok := regexCache.Load(pattern); ok {
		re = cached.(*regexp2.Regexp)
	} else {
		compiled, err := regexp2.Compile(pattern, regexp2.None)
		if err != nil {
			logger.GetLogger("expression").WithError(err).Warnf("Invalid regex pattern: %q", pattern)
			return false
		}
		regexCache.Store(pattern, compiled)
		re = compiled
	}

	match, err := re.MatchString(value)
	if err != nil {
		return false
	}
	return match
}

// Bytes parses a human readable size such as "64KiB" or "1.5 GB".
func (e *evalContext) Bytes(size string) int64 {
	n, err := humanize.ParseBytes(size)
	if err != nil {
		logger.GetLogger("expression").WithError(err).Warnf("Invalid size: %q", size)
		return 0
	}
	return int64(n)
}
