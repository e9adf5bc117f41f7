package timer

import (
	"context"
	"errors"
	"sync"
	"time"

	bookingserrors "urut/internal/bookings/errors"
	"urut/internal/bookings/repository"
	"urut/pkg/events"
	"urut/pkg/logger"
	"urut/pkg/model"
)

const (
	// tickInterval is how often the countdown recomputes its remaining
	// time. Remaining time is always derived from the absolute expiry
	// timestamp, never decremented, so a delayed or missed tick cannot
	// stretch the window.
	tickInterval = time.Second
)

// ExpirationFunc is called exactly once when a countdown reaches its expiry.
// It runs on the timer goroutine; implementations decide the lifecycle
// consequence.
type ExpirationFunc func(ctx context.Context, event model.ExpirationEvent)

type countdown struct {
	key       string
	phase     model.TimerPhase
	bookingID string
	expiresAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

// Manager owns the single active deadline countdown. Starting a countdown
// persists a checkpoint so that a process restart can resume the window, or
// fire the expiration it slept through.
type Manager struct {
	mu          sync.Mutex
	checkpoints repository.CheckpointRepository
	sink        events.Sink
	log         *logger.Logger

	active   *countdown
	snapshot model.BookingSnapshot

	onExpiration ExpirationFunc

	now      func() time.Time
	interval time.Duration
}

func NewManager(checkpoints repository.CheckpointRepository, sink events.Sink, log *logger.Logger) *Manager {
	return &Manager{
		checkpoints: checkpoints,
		sink:        sink,
		log:         log,
		now:         time.Now,
		interval:    tickInterval,
	}
}

// OnExpiration registers the expiration handler. Must be called before the
// first Start.
func (m *Manager) OnExpiration(fn ExpirationFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpiration = fn
}

func timerKey(bookingID string, phase model.TimerPhase) string {
	return bookingID + ":" + string(phase)
}

// Start begins a countdown toward state.ExpiresAt. Starting the countdown
// that is already running is a no-op; starting a different one replaces the
// running countdown. The checkpoint is written before the countdown runs so
// a crash between the two cannot lose the deadline.
func (m *Manager) Start(ctx context.Context, state model.TimerState, snapshot model.BookingSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := timerKey(state.BookingID, state.Phase)
	if m.active != nil && m.active.key == key {
		return nil
	}
	m.stopLocked("replaced")

	checkpoint := &model.TimerCheckpoint{
		BookingID: state.BookingID,
		Phase:     state.Phase,
		ExpiresAt: state.ExpiresAt,
		Status:    snapshot.Status,
		CreatedAt: m.now().UTC().Truncate(time.Millisecond),
	}
	if err := m.checkpoints.Save(ctx, checkpoint); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	cd := &countdown{
		key:       key,
		phase:     state.Phase,
		bookingID: state.BookingID,
		expiresAt: state.ExpiresAt,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	m.active = cd
	m.snapshot = snapshot

	m.log.Info("countdown started",
		"booking_id", state.BookingID,
		"phase", state.Phase,
		"expires_at", state.ExpiresAt)

	go m.run(runCtx, cd)
	return nil
}

// UpdateSnapshot replaces the booking view the ticks read. The owner calls
// this after every lifecycle transition so the countdown sees status changes
// without holding a reference into the owner's state.
func (m *Manager) UpdateSnapshot(snapshot model.BookingSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = snapshot
}

// Quiesce cancels the active countdown without touching its checkpoint.
// Used on process shutdown so the next start can Resume the window; a
// settled booking goes through Stop instead.
func (m *Manager) Quiesce(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked(reason)
}

// Stop cancels the active countdown, if any, and clears its checkpoint.
func (m *Manager) Stop(ctx context.Context, reason string) {
	m.mu.Lock()
	stopped := m.stopLocked(reason)
	m.mu.Unlock()

	if stopped {
		if err := m.checkpoints.Clear(ctx); err != nil {
			m.log.Error("failed to clear timer checkpoint", "error", err)
		}
	}
}

func (m *Manager) stopLocked(reason string) bool {
	if m.active == nil {
		return false
	}
	m.log.Info("countdown stopped",
		"booking_id", m.active.bookingID,
		"phase", m.active.phase,
		"reason", reason)
	m.active.cancel()
	m.active = nil
	return true
}

// Remaining reports the time left on the active countdown. The second
// return is false when no countdown is running.
func (m *Manager) Remaining() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return 0, false
	}
	remaining := m.active.expiresAt.Sub(m.now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

func (m *Manager) run(ctx context.Context, cd *countdown) {
	defer close(cd.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.tick(cd) {
				return
			}
		}
	}
}

// tick runs one countdown step. It returns true when the countdown is
// finished, either because it expired or because the snapshot shows the
// booking no longer owns a running window.
func (m *Manager) tick(cd *countdown) bool {
	m.mu.Lock()

	if m.active != cd {
		m.mu.Unlock()
		return true
	}

	snapshot := m.snapshot
	if snapshot.BookingID != cd.bookingID || !snapshot.Active() {
		m.stopLocked("booking no longer active")
		m.mu.Unlock()
		m.clearCheckpoint()
		return true
	}

	remaining := cd.expiresAt.Sub(m.now())
	if remaining > 0 {
		m.mu.Unlock()
		return false
	}

	m.stopLocked("expired")
	handler := m.onExpiration
	m.mu.Unlock()

	m.fireExpiration(handler, cd, snapshot)
	m.clearCheckpoint()
	return true
}

func (m *Manager) fireExpiration(handler ExpirationFunc, cd *countdown, snapshot model.BookingSnapshot) {
	event := model.ExpirationEvent{
		Phase:      cd.phase,
		BookingID:  cd.bookingID,
		DocumentID: snapshot.DocumentID,
		Status:     snapshot.Status,
	}

	m.log.Info("countdown expired",
		"booking_id", event.BookingID,
		"phase", event.Phase)

	m.sink.Emit(context.Background(), events.Event{
		Type:      events.TypeDeadlineExpired,
		BookingID: event.BookingID,
		Status:    event.Status,
		Phase:     event.Phase,
	})

	if handler != nil {
		handler(context.Background(), event)
	}
}

func (m *Manager) clearCheckpoint() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.checkpoints.Clear(ctx); err != nil {
		m.log.Error("failed to clear timer checkpoint", "error", err)
	}
}

// Resume restores the countdown persisted before the last shutdown. A
// checkpoint whose booking is gone or settled is discarded; one whose
// expiry already passed fires the expiration immediately; anything else
// restarts the countdown against the original absolute deadline.
func (m *Manager) Resume(ctx context.Context, fetch func(ctx context.Context, bookingID string) (*model.Booking, error)) error {
	checkpoint, err := m.checkpoints.Find(ctx)
	if err != nil {
		return err
	}
	if checkpoint == nil {
		return nil
	}

	booking, err := fetch(ctx, checkpoint.BookingID)
	if err != nil && !errors.Is(err, bookingserrors.ErrNotFound) {
		return err
	}
	if booking == nil || !booking.Status.Active() {
		m.log.Info("discarding stale timer checkpoint",
			"booking_id", checkpoint.BookingID,
			"phase", checkpoint.Phase)
		return m.checkpoints.Clear(ctx)
	}

	snapshot := model.BookingSnapshot{
		BookingID:  booking.BookingID,
		DocumentID: booking.DocumentID,
		Status:     booking.Status,
	}

	if !m.now().Before(checkpoint.ExpiresAt) {
		m.mu.Lock()
		handler := m.onExpiration
		m.mu.Unlock()

		m.log.Warn("deadline passed while process was down, expiring now",
			"booking_id", checkpoint.BookingID,
			"phase", checkpoint.Phase,
			"expired_at", checkpoint.ExpiresAt)

		m.fireExpiration(handler, &countdown{
			phase:     checkpoint.Phase,
			bookingID: checkpoint.BookingID,
			expiresAt: checkpoint.ExpiresAt,
		}, snapshot)
		return m.checkpoints.Clear(ctx)
	}

	m.log.Info("resuming countdown from checkpoint",
		"booking_id", checkpoint.BookingID,
		"phase", checkpoint.Phase,
		"expires_at", checkpoint.ExpiresAt)

	return m.Start(ctx, model.TimerState{
		Phase:     checkpoint.Phase,
		BookingID: checkpoint.BookingID,
		ExpiresAt: checkpoint.ExpiresAt,
	}, snapshot)
}
