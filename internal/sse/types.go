// Package sse streams fetch job events to browsers over Server-Sent Events.
package sse

import "time"

// Event is a single Server-Sent Event.
// Wire format: event: <Type>\ndata: <JSON payload>\n\n
type Event struct {
	// Type is the event name (e.g. "fetch:progress")
	Type string `json:"type"`
	// Data is the JSON payload
	Data any `json:"data"`
	// ID is an optional event ID for client-side resume tracking
	ID string `json:"id,omitempty"`
}

// EventFilter decides whether an event is delivered to a client.
// Return true to deliver.
type EventFilter func(event Event) bool

// Event types published during a fetch job lifecycle.
const (
	EventTypeFetchProgress  = "fetch:progress"
	EventTypeFetchCompleted = "fetch:completed"
	EventTypeFetchError     = "fetch:error"
)

// Internal event types.
const (
	eventTypeConnected = "connected"
)

// FetchProgressData is the payload for fetch:progress events.
type FetchProgressData struct {
	JobID      string `json:"jobId"`
	SearchTerm string `json:"searchTerm"`
	Status     string `json:"status"`
	Progress   int    `json:"progress"`
	Total      int    `json:"total"`
	Timestamp  int64  `json:"timestamp"`
}

// FetchCompletedData is the payload for fetch:completed events. Movies is
// the number of movies the job added, not the records themselves.
type FetchCompletedData struct {
	JobID      string `json:"jobId"`
	Movies     int    `json:"movies"`
	SearchTerm string `json:"searchTerm"`
	Timestamp  int64  `json:"timestamp"`
}

// FetchErrorData is the payload for fetch:error events.
type FetchErrorData struct {
	JobID     string `json:"jobId"`
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
}

// NewFetchProgressEvent creates a fetch:progress event.
func NewFetchProgressEvent(jobID, searchTerm, status string, progress, total int) Event {
	return Event{
		Type: EventTypeFetchProgress,
		Data: FetchProgressData{
			JobID:      jobID,
			SearchTerm: searchTerm,
			Status:     status,
			Progress:   progress,
			Total:      total,
			Timestamp:  time.Now().UnixMilli(),
		},
	}
}

// NewFetchCompletedEvent creates a fetch:completed event.
func NewFetchCompletedEvent(jobID, searchTerm string, newMovies int) Event {
	return Event{
		Type: EventTypeFetchCompleted,
		Data: FetchCompletedData{
			JobID:      jobID,
			Movies:     newMovies,
			SearchTerm: searchTerm,
			Timestamp:  time.Now().UnixMilli(),
		},
	}
}

// NewFetchErrorEvent creates a fetch:error event.
func NewFetchErrorEvent(jobID, message string) Event {
	return Event{
		Type: EventTypeFetchError,
		Data: FetchErrorData{
			JobID:     jobID,
			Error:     message,
			Timestamp: time.Now().UnixMilli(),
		},
	}
}

// WithFetchFilter passes only fetch lifecycle events.
func WithFetchFilter() EventFilter {
	return func(event Event) bool {
		switch event.Type {
		case EventTypeFetchProgress, EventTypeFetchCompleted, EventTypeFetchError:
			return true
		default:
			return false
		}
	}
}
