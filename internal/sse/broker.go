package sse

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/karlosatvar19/movies-app/internal/logger"
)

// Default broker tuning.
const (
	DefaultEventBufferSize   = 256
	DefaultClientBufferSize  = 64
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultShutdownTimeout   = 5 * time.Second
)

var clientSeq atomic.Int64

// client is a single subscribed connection with its own buffered channel.
// A client that cannot keep up with the broadcast rate is evicted.
type client struct {
	id     string
	events chan Event
	filter EventFilter
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

func newSubscriber(ctx context.Context, bufferSize int, filter EventFilter) *client {
	cctx, cancel := context.WithCancel(ctx)
	return &client{
		id:     fmt.Sprintf("client-%d", clientSeq.Add(1)),
		events: make(chan Event, bufferSize),
		filter: filter,
		ctx:    cctx,
		cancel: cancel,
	}
}

// deliver offers the event to the client without blocking.
// Returns false when the buffer is full, marking the client as slow.
func (c *client) deliver(event Event) bool {
	if c.closed.Load() {
		return false
	}
	if c.filter != nil && !c.filter(event) {
		return true
	}
	select {
	case c.events <- event:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	if c.closed.CompareAndSwap(false, true) {
		c.cancel()
		close(c.events)
	}
}

// Broker fans fetch events out to subscribed SSE clients. Events are
// dropped rather than blocking the publisher when the buffer is full.
type Broker struct {
	logger  logger.Logger
	publish chan Event

	mu      sync.RWMutex
	clients map[string]*client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBroker creates a stopped broker. Call Start before publishing.
func NewBroker(log logger.Logger) *Broker {
	return &Broker{
		logger:  log,
		publish: make(chan Event, DefaultEventBufferSize),
		clients: make(map[string]*client),
	}
}

// Start launches the broadcast loop.
func (b *Broker) Start(ctx context.Context) {
	b.ctx, b.cancel = context.WithCancel(ctx)

	b.wg.Add(1)
	go b.broadcastLoop()

	b.logger.Info("SSE broker started",
		logger.Int("event_buffer_size", DefaultEventBufferSize),
		logger.Int("client_buffer_size", DefaultClientBufferSize),
	)
}

// Stop shuts the broker down and disconnects all clients.
func (b *Broker) Stop() {
	if b.cancel != nil {
		b.cancel()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("SSE broker stopped")
	case <-time.After(DefaultShutdownTimeout):
		b.logger.Warn("SSE broker shutdown timeout exceeded")
	}
}

// Publish enqueues an event for broadcast. It never blocks: when the
// broker buffer is full the event is dropped and an error returned.
func (b *Broker) Publish(ctx context.Context, event Event) error {
	select {
	case b.publish <- event:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish cancelled: %w", ctx.Err())
	default:
		return fmt.Errorf("publish buffer full, dropped event %s", event.Type)
	}
}

// Subscribe registers a client and returns its event channel plus a
// cleanup func. The channel is closed on client disconnect or broker stop.
func (b *Broker) Subscribe(ctx context.Context, filter EventFilter) (<-chan Event, func()) {
	c := newSubscriber(ctx, DefaultClientBufferSize, filter)

	b.mu.Lock()
	b.clients[c.id] = c
	b.mu.Unlock()

	b.logger.Debug("SSE client subscribed",
		logger.String("client_id", c.id),
		logger.Int("total_clients", b.ClientCount()),
	)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		<-c.ctx.Done()
		b.removeClient(c.id)
	}()

	return c.events, func() { b.removeClient(c.id) }
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *Broker) broadcastLoop() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.publish:
			b.broadcast(event)
		case <-b.ctx.Done():
			b.disconnectAll()
			return
		}
	}
}

func (b *Broker) broadcast(event Event) {
	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	var slow []string
	for _, c := range clients {
		if !c.deliver(event) {
			slow = append(slow, c.id)
		}
	}

	for _, id := range slow {
		b.logger.Warn("Client buffer full, dropping slow connection",
			logger.String("client_id", id),
			logger.String("event_type", event.Type),
		)
		b.removeClient(id)
	}
}

func (b *Broker) removeClient(id string) {
	b.mu.Lock()
	c, ok := b.clients[id]
	if ok {
		delete(b.clients, id)
	}
	b.mu.Unlock()

	if ok {
		c.close()
		b.logger.Debug("SSE client disconnected",
			logger.String("client_id", id),
			logger.Int("total_clients", b.ClientCount()),
		)
	}
}

func (b *Broker) disconnectAll() {
	b.mu.Lock()
	clients := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.clients = make(map[string]*client)
	b.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}
