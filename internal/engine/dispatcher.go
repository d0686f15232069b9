// ABOUTME: Dispatcher fans events out to per-user FIFO mailboxes
// ABOUTME: One drain goroutine per active user keeps arrival order without blocking other users

package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrMailboxFull is returned when a user has too many pending events.
	ErrMailboxFull = errors.New("mailbox full")
	// ErrDispatcherClosed is returned after Close.
	ErrDispatcherClosed = errors.New("dispatcher closed")
)

// Handler processes one event. *Engine implements it.
type Handler interface {
	Handle(ctx context.Context, ev Event)
}

// Dispatcher delivers events to a Handler asynchronously. Events for one
// user are handled in the order Dispatch accepted them.
type Dispatcher struct {
	ctx     context.Context
	handler Handler
	size    int
	logger  *slog.Logger

	mu        sync.Mutex
	mailboxes map[string]chan Event
	closed    bool
	wg        sync.WaitGroup
}

// NewDispatcher creates a Dispatcher whose handlers run with ctx.
// size bounds the pending events per user.
func NewDispatcher(ctx context.Context, handler Handler, size int, logger *slog.Logger) *Dispatcher {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		ctx:       ctx,
		handler:   handler,
		size:      size,
		logger:    logger.With("component", "dispatcher"),
		mailboxes: make(map[string]chan Event),
	}
}

// Dispatch queues ev for its user and returns without waiting for it.
func (d *Dispatcher) Dispatch(ev Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	mb, ok := d.mailboxes[ev.UserID]
	if !ok {
		mb = make(chan Event, d.size)
		d.mailboxes[ev.UserID] = mb
		d.wg.Add(1)
		go d.drain(ev.UserID, mb)
	}

	select {
	case mb <- ev:
		return nil
	default:
		d.logger.Warn("dropping event, mailbox full", "user_id", ev.UserID, "kind", ev.Kind.String())
		return ErrMailboxFull
	}
}

// drain handles queued events until the mailbox is empty. The emptiness
// check and the map delete happen under d.mu, which Dispatch also holds
// while sending, so no event is stranded.
func (d *Dispatcher) drain(userID string, mb chan Event) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		select {
		case ev := <-mb:
			d.mu.Unlock()
			d.handle(ev)
		default:
			delete(d.mailboxes, userID)
			d.mu.Unlock()
			return
		}
	}
}

func (d *Dispatcher) handle(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked", "user_id", ev.UserID, "kind", ev.Kind.String(), "panic", r)
		}
	}()
	d.handler.Handle(d.ctx, ev)
}

// Pending returns the number of users with queued or in-flight events.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.mailboxes)
}

// Close stops accepting events and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
