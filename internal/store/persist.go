package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MdanzDev/nickstore/internal/storage"
)

// Storage keys, one entry per state field.
const (
	KeyCart    = "nickstore-cart"
	KeyHistory = "nickstore-history"
	KeyTheme   = "nickstore-theme"
)

type state struct {
	Cart    []CartItem
	History []Order
	Theme   Theme
}

func (s state) clone() state {
	return state{
		Cart:    cloneItems(s.Cart),
		History: cloneHistory(s.History),
		Theme:   s.Theme,
	}
}

// writer owns every storage write. Snapshots are queued in a single slot:
// a newer snapshot replaces one that has not been written yet, so the
// store always converges on the latest state. A snapshot whose write failed
// is kept until a newer one supersedes it or a flush writes it again.
type writer struct {
	kv      storage.KV
	timeout time.Duration
	report  func(error) // called after every write, nil on success
	failed  *state      // owned by the run goroutine

	queue   chan state
	flush   chan chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newWriter(kv storage.KV, timeout time.Duration, report func(error)) *writer {
	return &writer{
		kv:      kv,
		timeout: timeout,
		report:  report,
		queue:   make(chan state, 1),
		flush:   make(chan chan struct{}),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (w *writer) run() {
	defer close(w.stopped)
	for {
		select {
		case s := <-w.queue:
			w.write(s)
		case ack := <-w.flush:
			w.drain()
			close(ack)
		case <-w.done:
			w.drain()
			return
		}
	}
}

// drain writes the queued snapshot, or retries the last failed one.
func (w *writer) drain() {
	select {
	case s := <-w.queue:
		w.write(s)
	default:
		if w.failed != nil {
			w.write(*w.failed)
		}
	}
}

// enqueue never blocks. It must only be called with the manager lock held,
// which makes it the sole producer.
func (w *writer) enqueue(s state) {
	select {
	case w.queue <- s:
		return
	default:
	}
	select {
	case <-w.queue:
	default:
	}
	w.queue <- s
}

// wait blocks until everything enqueued before the call has been written.
func (w *writer) wait(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case w.flush <- ack:
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *writer) stop(ctx context.Context) error {
	w.once.Do(func() { close(w.done) })
	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *writer) write(s state) {
	err := writeState(context.Background(), w.kv, s, w.timeout)
	if err != nil {
		w.failed = &s
	} else {
		w.failed = nil
	}
	w.report(err)
}

// writeState stores all three keys. Cart and history are JSON arrays; the
// theme is stored as the bare string.
func writeState(ctx context.Context, kv storage.KV, s state, timeout time.Duration) error {
	cart, err := json.Marshal(nonNil(s.Cart))
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	history, err := json.Marshal(nonNil(s.History))
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return setKey(gctx, kv, KeyCart, cart) })
	g.Go(func() error { return setKey(gctx, kv, KeyHistory, history) })
	g.Go(func() error { return setKey(gctx, kv, KeyTheme, []byte(s.Theme)) })
	return g.Wait()
}

func setKey(ctx context.Context, kv storage.KV, key string, value []byte) error {
	if err := kv.Set(ctx, key, value); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
