package observability

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger initializes zerolog for one qagen run. If logPath is non-empty,
// the global zerolog logger (log.Logger) and the standard library logger
// write to that file (append mode) instead of stdout. Loggers built
// separately, such as the one main1 builds on os.Stdout for the run, are
// not redirected. If opening the file fails, logging falls back to stdout
// and a warning is printed to stderr.
func InitLogger(logPath string, level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var w io.Writer = os.Stdout
	if logPath != "" {
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			w = f
		} else {
			_, _ = fmt.Fprintf(os.Stderr, "qagen: failed to open log file %q: %v\n", logPath, err)
		}
	}
	log.Logger = log.Output(w).With().Timestamp().Logger()

	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	lvl := zerolog.InfoLevel
	if level != "" {
		if l, err := zerolog.ParseLevel(level); err == nil {
			lvl = l
		}
	}
	zerolog.SetGlobalLevel(lvl)

	// Capture logs from any dependency still using the standard library's
	// logger (e.g. a driver that only exposes *log.Logger hooks).
	stdlog.SetFlags(0)
	stdlog.SetOutput(log.Logger)
}
