package core

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var once sync.Once

type logger struct {
	*log.Logger
}

var singleton *logger

func getLogger() *logger {
	once.Do(func() {
		l := log.NewWithOptions(os.Stderr, log.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          "Frames 🎞️ ",
		})
		l.SetLevel(log.InfoLevel)
		// The Log* helpers add one frame on top of the caller.
		l.SetCallerOffset(1)
		singleton = &logger{l}
	})
	return singleton
}

// ConfigureLogger applies the [log] section of the configuration to the
// engine logger. An unknown level falls back to info.
func ConfigureLogger(cfg LogConfig) {
	l := getLogger()
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		l.Warnf("unknown log level %q, using info", cfg.Level)
		level = log.InfoLevel
	}
	l.SetLevel(level)
	l.SetReportCaller(cfg.ReportCaller)
	if cfg.Prefix != "" {
		l.SetPrefix(cfg.Prefix)
	}
	if cfg.TimeFormat != "" {
		l.SetTimeFormat(cfg.TimeFormat)
	}
}

// SetLogOutput redirects the engine logger, mostly useful to silence tests.
func SetLogOutput(w io.Writer) {
	getLogger().SetOutput(w)
}

func LogDebug(msg string, args ...interface{}) {
	getLogger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	getLogger().Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	getLogger().Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	getLogger().Errorf(msg, args...)
}

func LogFatal(msg string, args ...interface{}) {
	getLogger().Fatalf(msg, args...)
}
