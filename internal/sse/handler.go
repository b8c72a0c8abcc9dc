package sse

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/karlosatvar19/movies-app/internal/logger"
)

const sseContentType = "text/event-stream"

// Handler returns a Gin handler that streams broker events to the client
// until it disconnects. Heartbeat comments keep idle connections alive
// through proxies.
func Handler(broker *Broker, log logger.Logger, filter EventFilter) gin.HandlerFunc {
	return func(c *gin.Context) {
		w := c.Writer
		w.Header().Set("Content-Type", sseContentType)
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.Flush()

		events, cleanup := broker.Subscribe(c.Request.Context(), filter)
		defer cleanup()

		connected := Event{
			Type: eventTypeConnected,
			Data: map[string]any{
				"message":   "connected",
				"timestamp": time.Now().UnixMilli(),
			},
		}
		if err := writeEvent(w, connected); err != nil {
			log.Error("Failed to write connection event", logger.Error(err))
			return
		}

		log.Debug("SSE stream opened", logger.String("remote_addr", c.ClientIP()))

		ticker := time.NewTicker(DefaultHeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					log.Debug("SSE event channel closed")
					return
				}
				if err := writeEvent(w, event); err != nil {
					log.Debug("SSE write failed, client likely disconnected",
						logger.Error(err),
						logger.String("event_type", event.Type),
					)
					return
				}
			case <-ticker.C:
				if err := writeHeartbeat(w); err != nil {
					log.Debug("SSE heartbeat failed, client disconnected")
					return
				}
			case <-c.Request.Context().Done():
				log.Debug("SSE request context cancelled")
				return
			}
		}
	}
}

func writeEvent(w gin.ResponseWriter, event Event) error {
	if event.Type != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
			return fmt.Errorf("write event type: %w", err)
		}
	}
	if event.ID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", event.ID); err != nil {
			return fmt.Errorf("write event id: %w", err)
		}
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event data: %w", err)
	}

	w.Flush()
	return nil
}

func writeHeartbeat(w gin.ResponseWriter) error {
	if _, err := fmt.Fprintf(w, ": heartbeat %d\n\n", time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("write heartbeat: %w", err)
	}
	w.Flush()
	return nil
}
