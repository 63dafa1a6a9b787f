package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/lmittmann/tint"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Names of the loggers used by the memento packages.
var LoggerNames = []string{"identity", "blob", "lock", "inventory", "vault", "store", "cli"}

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboat's logger.ILogger)
// --------------------------------------------------------------------------

// mementoLogger implements the ILogger interface on top of a slog.Logger.
// Filtering happens here, the slog handler accepts every level.
type mementoLogger struct {
	name   string
	level  logger.LogLevel
	logger *slog.Logger
}

func (l *mementoLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *mementoLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.log(slog.LevelDebug, format, args...)
	}
}

func (l *mementoLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.log(slog.LevelInfo, format, args...)
	}
}

func (l *mementoLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.log(slog.LevelWarn, format, args...)
	}
}

func (l *mementoLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.log(slog.LevelError, format, args...)
	}
}

func (l *mementoLogger) Panicf(format string, args ...interface{}) {
	if l.level >= logger.CRITICAL {
		panic(fmt.Sprintf(format, args...))
	}
}

// log formats and writes a log message. this internal helper is used by the public methods
func (l *mementoLogger) log(level slog.Level, format string, args ...interface{}) {
	l.logger.Log(context.Background(), level, fmt.Sprintf(format, args...), "pkg", l.name)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

var (
	handlerMu sync.Mutex
	handler   slog.Handler
)

// newHandler creates a tint handler writing to w. Colors are only used for terminals.
func newHandler(w io.Writer, color bool) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !color,
	})
}

// SetOutput redirects all loggers created afterwards to w (without colors).
func SetOutput(w io.Writer) {
	handlerMu.Lock()
	defer handlerMu.Unlock()
	handler = newHandler(w, false)
}

// getHandler returns the shared handler, creating the stderr handler on first use.
func getHandler() slog.Handler {
	handlerMu.Lock()
	defer handlerMu.Unlock()
	if handler == nil {
		handler = newHandler(colorable.NewColorable(os.Stderr), isatty.IsTerminal(os.Stderr.Fd()))
	}
	return handler
}

// CreateLogger implements dragonboat's logger.Factory.
func CreateLogger(pkgName string) logger.ILogger {
	return &mementoLogger{
		name:   pkgName,
		level:  logger.INFO,
		logger: slog.New(getHandler()),
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// InitLoggers installs the memento logger factory and sets the level of all memento loggers.
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	// Set as the global logger factory
	logger.SetLoggerFactory(CreateLogger)

	for _, name := range LoggerNames {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}
