package fetch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/karlosatvar19/movies-app/internal/logger"
)

func TestIsConnectivityError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"timeout", errors.New("context deadline exceeded: Timeout"), true},
		{"socket", errors.New("broken Socket pipe"), true},
		{"network", errors.New("network is unreachable"), true},
		{"disconnected", errors.New("peer disconnected"), true},
		{"closed", errors.New("use of closed network connection"), true},
		{"heartbeat", errors.New("HEARTBEAT missed"), true},
		{"bad data", errors.New("invalid character 'x' in JSON"), false},
		{"constraint", errors.New("duplicate key value violates unique constraint"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isConnectivityError(tt.err))
		})
	}
}

func TestAttempt_ReturnsValueOnSuccess(t *testing.T) {
	got := attempt(logger.NewNop(), "op", 0, func() (int, error) {
		return 42, nil
	})
	assert.Equal(t, 42, got)
}

func TestAttempt_SubstitutesFallbackOnError(t *testing.T) {
	got := attempt(logger.NewNop(), "op", -1, func() (int, error) {
		return 99, errors.New("connection reset")
	})
	assert.Equal(t, -1, got)
}

func TestAttempt_NilFallbackForPointers(t *testing.T) {
	type thing struct{ n int }

	got := attempt(logger.NewNop(), "op", nil, func() (*thing, error) {
		return nil, errors.New("boom")
	})
	assert.Nil(t, got)
}

func TestAttemptRun_SwallowsError(t *testing.T) {
	called := false
	attemptRun(logger.NewNop(), "op", func() error {
		called = true
		return errors.New("publish buffer full")
	})
	assert.True(t, called)
}
