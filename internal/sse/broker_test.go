package sse

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/karlosatvar19/movies-app/internal/logger"
)

func startBroker(t *testing.T) *Broker {
	t.Helper()

	b := NewBroker(logger.NewNop())
	b.Start(context.Background())
	t.Cleanup(b.Stop)
	return b
}

func TestBroker_PublishSubscribe(t *testing.T) {
	b := startBroker(t)

	events, cleanup := b.Subscribe(context.Background(), nil)
	defer cleanup()

	event := NewFetchProgressEvent("job-1", "space", "processing", 5, 42)
	if err := b.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-events:
		if got.Type != EventTypeFetchProgress {
			t.Errorf("got event type %q, want %q", got.Type, EventTypeFetchProgress)
		}
		data, ok := got.Data.(FetchProgressData)
		if !ok {
			t.Fatalf("unexpected data type %T", got.Data)
		}
		if data.JobID != "job-1" || data.Progress != 5 || data.Total != 42 {
			t.Errorf("unexpected payload: %+v", data)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroker_MultipleSubscribersReceiveSameEvent(t *testing.T) {
	b := startBroker(t)

	ctx := context.Background()
	events1, cleanup1 := b.Subscribe(ctx, nil)
	defer cleanup1()
	events2, cleanup2 := b.Subscribe(ctx, nil)
	defer cleanup2()

	if count := b.ClientCount(); count != 2 {
		t.Fatalf("got %d clients, want 2", count)
	}

	if err := b.Publish(ctx, NewFetchErrorEvent("job-1", "boom")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for i, ch := range []<-chan Event{events1, events2} {
		select {
		case got := <-ch:
			if got.Type != EventTypeFetchError {
				t.Errorf("subscriber %d: got type %q", i, got.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out", i)
		}
	}
}

func TestBroker_FilterSkipsOtherEvents(t *testing.T) {
	b := startBroker(t)

	ctx := context.Background()
	events, cleanup := b.Subscribe(ctx, WithFetchFilter())
	defer cleanup()

	if err := b.Publish(ctx, Event{Type: "other:event"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := b.Publish(ctx, NewFetchCompletedEvent("job-1", "space", 0)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-events:
		if got.Type != EventTypeFetchCompleted {
			t.Errorf("filtered event leaked through: %q", got.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroker_CleanupRemovesClient(t *testing.T) {
	b := startBroker(t)

	_, cleanup := b.Subscribe(context.Background(), nil)
	cleanup()

	deadline := time.Now().Add(time.Second)
	for b.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client still registered after cleanup, count=%d", b.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroker_SubscriberContextCancelDisconnects(t *testing.T) {
	b := startBroker(t)

	ctx, cancel := context.WithCancel(context.Background())
	events, cleanup := b.Subscribe(ctx, nil)
	defer cleanup()

	cancel()

	select {
	case _, open := <-events:
		if open {
			t.Error("expected channel close after context cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
}

func TestBroker_StopClosesSubscribers(t *testing.T) {
	b := NewBroker(logger.NewNop())
	b.Start(context.Background())

	events, cleanup := b.Subscribe(context.Background(), nil)
	defer cleanup()

	b.Stop()

	select {
	case _, open := <-events:
		if open {
			t.Error("expected channel close after broker stop")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after broker stop")
	}
}

func TestNewFetchCompletedEvent_MoviesFieldIsCount(t *testing.T) {
	event := NewFetchCompletedEvent("job-1", "space", 7)

	data, ok := event.Data.(FetchCompletedData)
	if !ok {
		t.Fatalf("unexpected data type %T", event.Data)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, want := payload["movies"], float64(7); got != want {
		t.Errorf("movies field = %v, want %v", got, want)
	}
	if payload["jobId"] != "job-1" || payload["searchTerm"] != "space" {
		t.Errorf("unexpected payload: %s", raw)
	}
}

func TestNewFetchErrorEvent_ErrorFieldName(t *testing.T) {
	event := NewFetchErrorEvent("job-1", "catalog unreachable")

	data, ok := event.Data.(FetchErrorData)
	if !ok {
		t.Fatalf("unexpected data type %T", event.Data)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload["error"] != "catalog unreachable" {
		t.Errorf("error field missing or wrong: %s", raw)
	}
	if _, leaked := payload["message"]; leaked {
		t.Errorf("payload carries a message field: %s", raw)
	}
}
