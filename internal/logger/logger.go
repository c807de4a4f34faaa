package logger

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var Global = zerolog.New(os.Stderr).With().Timestamp().Logger()

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if os.Getenv("REPLQ_DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	zerolog.ErrorStackMarshaler = func(err error) interface{} {
		if err == nil {
			return nil
		}
		type stackTracer interface {
			StackTrace() errors.StackTrace
		}
		if st, ok := err.(stackTracer); ok {
			return st.StackTrace()
		}
		return nil
	}

	switch os.Getenv("REPLQ_LOG_OUTPUT") {
	case "stdout":
		Global = Global.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	case "plain":
		// raw JSON lines, already the default writer
	default:
		Global = Global.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
