package logging

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrLogExists means a run with the same timestamp already owns the file.
var ErrLogExists = errors.New("log file already exists")

type Options struct {
	Dir     string
	AppName string
	Level   string
	// Console mirrors every entry to Stderr.
	Console bool
	Stderr  io.Writer
}

// FileName returns dir + appName + "_" + YYYYMMDD-HHMMSS + ".log".
func FileName(dir, appName string, runTime time.Time) string {
	return dir + appName + "_" + runTime.Format("20060102-150405") + ".log"
}

// New opens a fresh per-run log file and returns a logger writing to it.
// The returned close func flushes and closes the file.
func New(opts Options, runTime time.Time) (*zap.Logger, string, func() error, error) {
	level, err := zapcore.ParseLevel(defaultString(opts.Level, "info"))
	if err != nil {
		return nil, "", nil, errors.Wrapf(err, "log level %q", opts.Level)
	}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, "", nil, errors.Wrapf(err, "creating %s", opts.Dir)
		}
	}

	path := FileName(opts.Dir, opts.AppName, runTime)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil, path, nil, errors.Wrapf(ErrLogExists, "%s", path)
	}
	if err != nil {
		return nil, path, nil, errors.Wrapf(err, "opening %s", path)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(f), level),
	}
	if opts.Console {
		out := opts.Stderr
		if out == nil {
			out = os.Stderr
		}
		consoleCfg := encCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(zapcore.AddSync(out)), level))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	closeFn := func() error {
		_ = logger.Sync()
		return f.Close()
	}
	return logger, path, closeFn, nil
}

// AskConsole asks once whether logs should also go to the console.
func AskConsole(in io.Reader, out io.Writer) bool {
	fmt.Fprint(out, "Mirror log output to the console? (y/n): ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
