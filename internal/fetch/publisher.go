package fetch

import (
	"context"

	"github.com/karlosatvar19/movies-app/internal/logger"
	"github.com/karlosatvar19/movies-app/internal/sse"
)

// Progress status values carried on fetch:progress events.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// Gateway publishes fetch lifecycle events to the SSE broker.
// All publishes are fire-and-forget: a full buffer or stopped broker is
// logged and ignored, never surfaced to the orchestrator.
type Gateway struct {
	broker *sse.Broker
	logger logger.Logger
}

// NewGateway creates a gateway over broker.
func NewGateway(broker *sse.Broker, log logger.Logger) *Gateway {
	return &Gateway{broker: broker, logger: log}
}

// FetchStarted announces a newly accepted job.
func (g *Gateway) FetchStarted(ctx context.Context, jobID, searchTerm string) {
	g.publish(ctx, sse.NewFetchProgressEvent(jobID, searchTerm, StatusPending, 0, 100))
}

// FetchProgress reports page-by-page discovery progress.
func (g *Gateway) FetchProgress(ctx context.Context, jobID, searchTerm, status string, progress, total int) {
	g.publish(ctx, sse.NewFetchProgressEvent(jobID, searchTerm, status, progress, total))
}

// FetchCompleted announces a finished job and how many movies it added.
func (g *Gateway) FetchCompleted(ctx context.Context, jobID, searchTerm string, newMovies int) {
	g.publish(ctx, sse.NewFetchCompletedEvent(jobID, searchTerm, newMovies))
}

// FetchError announces an unrecoverable job failure.
func (g *Gateway) FetchError(ctx context.Context, jobID, message string) {
	g.publish(ctx, sse.NewFetchErrorEvent(jobID, message))
}

func (g *Gateway) publish(ctx context.Context, event sse.Event) {
	attemptRun(g.logger, "publish "+event.Type, func() error {
		return g.broker.Publish(ctx, event)
	})
}
