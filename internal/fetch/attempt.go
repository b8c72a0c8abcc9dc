package fetch

import (
	"strings"

	"github.com/karlosatvar19/movies-app/internal/logger"
)

// connectivitySubstrings mark errors that come from flaky transport rather
// than bad data. They are logged at warn level; everything else is an error.
var connectivitySubstrings = []string{
	"connection",
	"connect",
	"timeout",
	"socket",
	"network",
	"disconnected",
	"closed",
	"heartbeat",
}

// isConnectivityError classifies err by message substring, case-insensitive.
func isConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range connectivitySubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// attempt runs fn and substitutes fallback on failure. A failed side effect
// never aborts a fetch job: the error is logged and the job keeps going.
func attempt[T any](log logger.Logger, op string, fallback T, fn func() (T, error)) T {
	v, err := fn()
	if err != nil {
		logAttemptFailure(log, op, err)
		return fallback
	}
	return v
}

// attemptRun is attempt for side effects with no result value.
func attemptRun(log logger.Logger, op string, fn func() error) {
	if err := fn(); err != nil {
		logAttemptFailure(log, op, err)
	}
}

func logAttemptFailure(log logger.Logger, op string, err error) {
	if isConnectivityError(err) {
		log.Warn("Transient failure, continuing",
			logger.String("operation", op),
			logger.Error(err),
		)
		return
	}
	log.Error("Operation failed, continuing",
		logger.String("operation", op),
		logger.Error(err),
	)
}
