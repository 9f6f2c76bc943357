// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs a JSON logger tagged with the service name and environment
// as the global zerolog logger and returns it. Development environments get a
// human-readable console writer instead.
func Setup(service, env, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = os.Stdout
	if env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}

	ctx := zerolog.New(out).With().Timestamp().Str("service", strings.TrimSpace(service))
	if env = strings.TrimSpace(env); env != "" {
		ctx = ctx.Str("env", env)
	}
	logger := ctx.Logger()
	log.Logger = logger
	return logger
}
