// Package session owns the scan-to-confirm workflow: an explicit state
// machine over LIST, SCANNING, and REVIEW_DETAIL with the single in-flight
// capture session as owned state, not ambient globals. One machine serves
// one user; only one capture session exists at a time.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/expenselens/expenselens/internal/capture"
	"github.com/expenselens/expenselens/internal/receipt"
	"github.com/expenselens/expenselens/internal/reconcile"
	"github.com/expenselens/expenselens/internal/scanning"
)

// State is the workflow state the presentation layer renders.
type State int

const (
	// StateList shows the confirmed record list. Initial and resting state.
	StateList State = iota
	// StateScanning holds the capture device and waits for a snapshot or
	// an extraction in flight.
	StateScanning
	// StateReview presents the editable form seeded from extraction.
	StateReview
)

func (s State) String() string {
	switch s {
	case StateList:
		return "list"
	case StateScanning:
		return "scanning"
	case StateReview:
		return "review"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Extractor is the extraction service client surface the machine needs.
type Extractor interface {
	Extract(ctx context.Context, imageURI string) scanning.Outcome
}

// Option configures a Machine.
type Option func(*Machine)

// WithSettleDelay sets the purely visual pause between extraction resolving
// and the transition to review, so a progress bar can be seen completing.
// Zero (the default) skips it; correctness never depends on it.
func WithSettleDelay(d time.Duration) Option {
	return func(m *Machine) { m.settle = d }
}

// WithObserver registers a callback invoked after every state transition.
// It runs outside the machine's lock.
func WithObserver(fn func(State)) Option {
	return func(m *Machine) { m.observer = fn }
}

// WithDefaults overrides the form-seeding defaults.
func WithDefaults(d reconcile.Defaults) Option {
	return func(m *Machine) { m.defaults = d }
}

// Machine is the capture session state machine. All methods are safe for
// concurrent use, though the workflow itself is single-flight: one session,
// one outstanding extraction, guarded against stale resolution by a
// per-capture generation counter.
type Machine struct {
	device    capture.Device
	extractor Extractor
	store     receipt.Store
	defaults  reconcile.Defaults
	settle    time.Duration
	observer  func(State)

	mu       sync.Mutex
	state    State
	gen      uint64
	imageURI string
	form     *reconcile.FormState
	progress float64
	ticker   chan struct{} // closed to stop the progress ticker
}

// New creates a machine resting in the list state.
func New(device capture.Device, extractor Extractor, store receipt.Store, opts ...Option) *Machine {
	m := &Machine{
		device:    device,
		extractor: extractor,
		store:     store,
		defaults:  reconcile.StandardDefaults(),
		state:     StateList,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current workflow state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Progress reports the cosmetic extraction progress in [0,1]. It updates
// monotonically below 0.9 while a call is outstanding and jumps to 1 when
// the call resolves. Nothing transitions on it.
func (m *Machine) Progress() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progress
}

// Form returns the editable review form, or nil outside review. Edits
// mutate the form directly; nothing re-validates until confirm.
func (m *Machine) Form() *reconcile.FormState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.form
}

// Records refreshes the confirmed record list from the gateway.
func (m *Machine) Records(ctx context.Context) ([]*receipt.Record, error) {
	records, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return records, nil
}

// StartCapture moves from the list into scanning and acquires the capture
// device. A failed acquisition is surfaced but leaves the machine in
// scanning, where the user can retry (by calling StartCapture again) or
// close back to the list.
func (m *Machine) StartCapture() error {
	m.mu.Lock()
	if m.state != StateList && m.state != StateScanning {
		m.mu.Unlock()
		return fmt.Errorf("cannot start capture from %s", m.state)
	}
	m.state = StateScanning
	m.progress = 0
	m.mu.Unlock()
	m.notify(StateScanning)

	if err := m.device.Open(); err != nil {
		return fmt.Errorf("acquiring capture device: %w", err)
	}
	return nil
}

// Capture takes a snapshot synchronously, then issues the one asynchronous
// extraction call for it. The machine stays in scanning until the call
// resolves; resolution (success or failure alike) moves it to review
// exactly once, unless the session was closed or retaken in the meantime.
func (m *Machine) Capture(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateScanning {
		m.mu.Unlock()
		return fmt.Errorf("cannot capture from %s", m.state)
	}

	frame, contentType, err := m.device.Snapshot()
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("taking snapshot: %w", err)
	}

	m.imageURI = scanning.EncodeDataURI(frame, contentType)
	m.progress = 0
	m.stopTickerLocked()
	stop := make(chan struct{})
	m.ticker = stop
	gen := m.gen
	uri := m.imageURI
	m.mu.Unlock()

	go m.tickProgress(stop)
	go func() {
		outcome := m.extractor.Extract(ctx, uri)
		m.resolve(gen, outcome)
	}()
	return nil
}

// resolve applies an extraction result. The generation check discards
// results that arrive after the user closed the scanner or retook: a stale
// outcome must be dropped, never applied.
func (m *Machine) resolve(gen uint64, outcome scanning.Outcome) {
	m.mu.Lock()
	if m.gen != gen || m.state != StateScanning {
		m.mu.Unlock()
		return
	}
	m.stopTickerLocked()
	m.progress = 1
	settle := m.settle
	m.mu.Unlock()

	// Visual settling only: lets the progress indicator be seen at 100%.
	if settle > 0 {
		time.Sleep(settle)
	}

	m.mu.Lock()
	if m.gen != gen || m.state != StateScanning {
		m.mu.Unlock()
		return
	}
	m.form = reconcile.Seed(outcome, m.defaults)
	m.device.Close() // device is held only while scanning
	m.state = StateReview
	m.mu.Unlock()
	m.notify(StateReview)
}

// CloseScanner abandons the capture session and returns to the list,
// releasing the device. Any in-flight extraction result becomes stale.
func (m *Machine) CloseScanner() error {
	m.mu.Lock()
	if m.state != StateScanning {
		m.mu.Unlock()
		return fmt.Errorf("cannot close scanner from %s", m.state)
	}
	m.gen++
	m.stopTickerLocked()
	m.clearSessionLocked()
	m.state = StateList
	m.mu.Unlock()
	m.notify(StateList)

	if err := m.device.Close(); err != nil {
		return fmt.Errorf("releasing capture device: %w", err)
	}
	return nil
}

// Retake discards the reviewed capture and goes back to scanning,
// re-acquiring the device.
func (m *Machine) Retake() error {
	m.mu.Lock()
	if m.state != StateReview {
		m.mu.Unlock()
		return fmt.Errorf("cannot retake from %s", m.state)
	}
	m.gen++
	m.clearSessionLocked()
	m.state = StateScanning
	m.mu.Unlock()
	m.notify(StateScanning)

	if err := m.device.Open(); err != nil {
		return fmt.Errorf("re-acquiring capture device: %w", err)
	}
	return nil
}

// Confirm finalizes the form into a record and hands it to the gateway. On
// success the session is destroyed and the machine returns to the list; on
// failure it stays in review with the user's edits intact for retry.
func (m *Machine) Confirm(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.state != StateReview {
		m.mu.Unlock()
		return "", fmt.Errorf("cannot confirm from %s", m.state)
	}
	record := reconcile.Finalize(m.form, m.imageURI)
	m.mu.Unlock()

	id, err := m.store.Create(ctx, record)
	if err != nil {
		return "", fmt.Errorf("saving record: %w", err)
	}

	m.mu.Lock()
	m.gen++
	m.clearSessionLocked()
	m.state = StateList
	m.mu.Unlock()
	m.notify(StateList)
	return id, nil
}

// Delete removes a confirmed record from the list. Failures are surfaced
// without a state change; deleting an already-gone record succeeds.
func (m *Machine) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	if m.state != StateList {
		m.mu.Unlock()
		return fmt.Errorf("cannot delete from %s", m.state)
	}
	m.mu.Unlock()

	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	return nil
}

func (m *Machine) clearSessionLocked() {
	m.imageURI = ""
	m.form = nil
	m.progress = 0
}

func (m *Machine) stopTickerLocked() {
	if m.ticker != nil {
		close(m.ticker)
		m.ticker = nil
	}
}

// tickProgress advances the cosmetic indicator toward (but never past) 90%
// on a fixed interval until stopped. It is fire-and-forget and takes no
// part in transition logic.
func (m *Machine) tickProgress(stop chan struct{}) {
	interval := time.NewTicker(150 * time.Millisecond)
	defer interval.Stop()
	for {
		select {
		case <-stop:
			return
		case <-interval.C:
			m.mu.Lock()
			if m.progress < 0.9 {
				m.progress += (0.9 - m.progress) * 0.15
			}
			m.mu.Unlock()
		}
	}
}

func (m *Machine) notify(s State) {
	if m.observer != nil {
		m.observer(s)
	}
}
