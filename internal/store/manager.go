// Package store is the single owner of the shopping cart, the order history
// and the theme preference. It persists all three to a storage.KV and turns
// a cart into an order on checkout.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/MdanzDev/nickstore/internal/storage"
)

var (
	// ErrHandoffFailed wraps a fulfillment error after the order was recorded.
	ErrHandoffFailed = errors.New("order recorded but fulfillment handoff failed")
	// ErrInvalidTheme is returned by SetTheme for anything but dark or light.
	ErrInvalidTheme = errors.New("invalid theme")
	// ErrStorageUnavailable is returned by Load when the backend could not be read.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// DateLayout renders order dates the way a Malaysian locale prints them, e.g. "16 Oct 2026".
const DateLayout = "2 Jan 2006"

// Fulfiller receives every order created by Checkout.
type Fulfiller interface {
	Fulfill(ctx context.Context, order Order) error
}

// Manager is the store state manager. All methods are safe for concurrent use;
// every mutation is applied under one lock, so readers never see half of a
// checkout.
type Manager struct {
	mu     sync.Mutex
	kv     storage.KV
	state  state
	loaded bool
	closed bool
	seq    sequencer
	writer *writer

	fulfiller    Fulfiller
	log          logrus.FieldLogger
	nowFunc      func() time.Time
	loc          *time.Location
	newOrderID   func() string
	writeTimeout time.Duration
	onPersistErr func(error)

	persistMu  sync.Mutex
	persistErr error
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(l logrus.FieldLogger) Option { return func(m *Manager) { m.log = l } }

func WithFulfiller(f Fulfiller) Option { return func(m *Manager) { m.fulfiller = f } }

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.nowFunc = now } }

// WithLocation sets the zone used for order dates.
func WithLocation(loc *time.Location) Option { return func(m *Manager) { m.loc = loc } }

// WithWriteTimeout bounds each background write of the state.
func WithWriteTimeout(d time.Duration) Option { return func(m *Manager) { m.writeTimeout = d } }

// WithPersistErrorHook is called from the writer goroutine for every failed write.
func WithPersistErrorHook(fn func(error)) Option { return func(m *Manager) { m.onPersistErr = fn } }

// WithOrderIDs replaces the order id generator.
func WithOrderIDs(fn func() string) Option { return func(m *Manager) { m.newOrderID = fn } }

// New returns an unloaded Manager holding the default state. Call Load before use
// and Close when done.
func New(kv storage.KV, opts ...Option) *Manager {
	m := &Manager{
		kv:           kv,
		state:        defaultState(),
		log:          logrus.StandardLogger(),
		nowFunc:      time.Now,
		loc:          time.Local,
		newOrderID:   uuid.NewString,
		writeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.seq.nowFunc = m.nowFunc
	return m
}

func defaultState() state {
	return state{Cart: []CartItem{}, History: []Order{}, Theme: DefaultTheme}
}

// Load reads cart, history and theme from storage. A missing or unparsable
// entry falls back to its own default without affecting the others. If the
// backend itself fails, Load returns ErrStorageUnavailable and the manager
// stays unloaded: it keeps working in memory but writes nothing, so stored
// data is never overwritten with defaults. Load may be retried.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return nil
	}

	next := defaultState()
	var readErrs []error

	if err := loadSlice(ctx, m, KeyCart, &next.Cart); err != nil {
		readErrs = append(readErrs, err)
	}
	if err := loadSlice(ctx, m, KeyHistory, &next.History); err != nil {
		readErrs = append(readErrs, err)
	}
	if err := m.loadTheme(ctx, &next.Theme); err != nil {
		readErrs = append(readErrs, err)
	}
	if len(readErrs) > 0 {
		err := fmt.Errorf("%w: %w", ErrStorageUnavailable, errors.Join(readErrs...))
		m.setPersistErr(err)
		return err
	}

	if len(m.state.Cart) > 0 || len(m.state.History) > 0 {
		m.log.WithFields(logrus.Fields{
			"cart":    len(m.state.Cart),
			"history": len(m.state.History),
		}).Warn("discarding changes made before load")
	}
	m.state = next
	for _, it := range next.Cart {
		m.seq.observe(it.ID)
	}
	for _, o := range next.History {
		for _, it := range o.Items {
			m.seq.observe(it.ID)
		}
	}

	m.writer = newWriter(m.kv, m.writeTimeout, m.recordWrite)
	go m.writer.run()
	m.loaded = true
	m.setPersistErr(nil)

	m.log.WithFields(logrus.Fields{
		"cart":    len(next.Cart),
		"history": len(next.History),
		"theme":   next.Theme,
	}).Debug("store loaded")
	return nil
}

// loadSlice decodes key into out. Only backend failures are returned; an
// absent, corrupt or null value leaves out untouched.
func loadSlice[T any](ctx context.Context, m *Manager, key string, out *[]T) error {
	raw, err := m.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	var v []T
	if err := json.Unmarshal(raw, &v); err != nil {
		m.log.WithError(err).WithField("key", key).Warn("stored value is corrupt, using default")
		return nil
	}
	if v != nil {
		*out = v
	}
	return nil
}

// loadTheme accepts the bare string or a JSON string.
func (m *Manager) loadTheme(ctx context.Context, out *Theme) error {
	raw, err := m.kv.Get(ctx, KeyTheme)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", KeyTheme, err)
	}
	s := string(raw)
	var quoted string
	if json.Unmarshal(raw, &quoted) == nil {
		s = quoted
	}
	if t, ok := ParseTheme(s); ok {
		*out = t
		return nil
	}
	m.log.WithField("key", KeyTheme).Warnf("unknown theme %q, using default", s)
	return nil
}

// Loaded reports whether Load has completed.
func (m *Manager) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// persistLocked queues the current state for writing. Nothing is written
// before Load or after Close.
func (m *Manager) persistLocked() {
	if !m.loaded || m.closed {
		return
	}
	m.writer.enqueue(m.state.clone())
}

func (m *Manager) recordWrite(err error) {
	if err == nil {
		m.setPersistErr(nil)
		return
	}
	m.log.WithError(err).Error("persist store state")
	m.setPersistErr(err)
	if m.onPersistErr != nil {
		m.onPersistErr(err)
	}
}

func (m *Manager) setPersistErr(err error) {
	m.persistMu.Lock()
	m.persistErr = err
	m.persistMu.Unlock()
}

// PersistErr returns the error of the most recent storage access, or nil.
func (m *Manager) PersistErr() error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()
	return m.persistErr
}

// Degraded reports whether state is currently not reaching storage. The
// in-memory state stays authoritative either way.
func (m *Manager) Degraded() bool {
	return m.PersistErr() != nil
}

// Flush waits until every change made before the call has been written.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	w := m.writer
	m.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.wait(ctx)
}

// Close flushes pending state and stops the writer. Later mutations stay in memory.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	w := m.writer
	m.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.stop(ctx)
}

// AddToCart appends item with a fresh id and returns the id. The item is
// not validated.
func (m *Manager) AddToCart(item NewCartItem) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	ci := CartItem{ID: m.seq.next(), NewCartItem: item}
	m.state.Cart = append(m.state.Cart, ci)
	m.persistLocked()
	return ci.ID
}

// RemoveFromCart drops the item with id. It reports whether anything was removed.
func (m *Manager) RemoveFromCart(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, it := range m.state.Cart {
		if it.ID == id {
			cart := make([]CartItem, 0, len(m.state.Cart)-1)
			cart = append(cart, m.state.Cart[:i]...)
			m.state.Cart = append(cart, m.state.Cart[i+1:]...)
			m.persistLocked()
			return true
		}
	}
	return false
}

func (m *Manager) ClearCart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Cart = []CartItem{}
	m.persistLocked()
}

func (m *Manager) ClearHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.History = []Order{}
	m.persistLocked()
}

func (m *Manager) SetTheme(t Theme) error {
	if _, ok := ParseTheme(string(t)); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Theme = t
	m.persistLocked()
	return nil
}

// CartTotal is the sum of cart prices.
func (m *Manager) CartTotal() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sumPrices(m.state.Cart)
}

func (m *Manager) CartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.Cart)
}

func (m *Manager) Cart() []CartItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneItems(m.state.Cart)
}

// History returns orders most recent first.
func (m *Manager) History() []Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneHistory(m.state.History)
}

func (m *Manager) Theme() Theme {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Theme
}

// Order looks up an order in history by id.
func (m *Manager) Order(id string) (Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.state.History {
		if o.ID == id {
			return cloneOrder(o), true
		}
	}
	return Order{}, false
}

// Snapshot returns a consistent copy of the whole state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Cart:      cloneItems(m.state.Cart),
		History:   cloneHistory(m.state.History),
		Theme:     m.state.Theme,
		CartCount: len(m.state.Cart),
		CartTotal: NewMoney(sumPrices(m.state.Cart)),
		Loaded:    m.loaded,
	}
}

// Checkout turns the cart into a pending order. With an empty cart it does
// nothing and returns "". Otherwise the order is prepended to history and
// the cart is emptied in one step, then the order is handed to the
// fulfiller. A handoff error is wrapped in ErrHandoffFailed; the order
// stays recorded and its id is still returned.
func (m *Manager) Checkout(ctx context.Context) (string, error) {
	m.mu.Lock()
	if len(m.state.Cart) == 0 {
		m.mu.Unlock()
		return "", nil
	}

	now := m.nowFunc().In(m.loc)
	order := Order{
		ID:        m.newOrderID(),
		Date:      now.Format(DateLayout),
		Items:     cloneItems(m.state.Cart),
		Total:     NewMoney(sumPrices(m.state.Cart)),
		Status:    StatusPending,
		CreatedAt: now,
	}

	history := make([]Order, 0, len(m.state.History)+1)
	history = append(history, order)
	m.state.History = append(history, m.state.History...)
	m.state.Cart = []CartItem{}
	m.persistLocked()
	f := m.fulfiller
	m.mu.Unlock()

	log := m.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"items":    len(order.Items),
		"total":    order.Total.StringFixed(2),
	})
	log.Info("order placed")

	if f == nil {
		return order.ID, nil
	}
	if err := f.Fulfill(ctx, cloneOrder(order)); err != nil {
		log.WithError(err).Error("fulfillment handoff failed")
		return order.ID, fmt.Errorf("%w: %w", ErrHandoffFailed, err)
	}
	return order.ID, nil
}
