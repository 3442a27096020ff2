package proctor

import (
	"strings"
	"sync"
	"time"

	"proctor-quiz-service/internal/domain"
)

// Violation tags. The free-form "blocked-shortcut:" prefix carries the key
// that was intercepted.
const (
	TagTabSwitched        = "tab-switched"
	TagWindowBlurred      = "window-blurred"
	TagCopyAttempted      = "copy-attempted"
	TagContextMenu        = "context-menu"
	TagTextSelection      = "text-selection"
	TagScreenshot         = "screenshot-attempted"
	TagShortcutPrefix     = "blocked-shortcut:"
	DefaultGracePeriod    = 3 * time.Second
	defaultViolationAlloc = 8
)

// Monitor observes integrity signals while armed, records violations, and
// issues a single debounced force-submit when the tab stays hidden past the
// grace period. Detection is best-effort: a handler never panics outward and
// never blocks quiz completion.
type Monitor struct {
	env   Environment
	grace time.Duration
	now   func() time.Time
	after func(time.Duration, func()) *time.Timer

	onViolation   func(domain.ViolationEvent)
	onForceSubmit func()

	mu          sync.Mutex
	unsubscribe func()
	violations  []domain.ViolationEvent
	hidden      bool
	gracePend   bool
	forced      bool
	graceTimer  *time.Timer
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithGracePeriod overrides the visibility grace period.
func WithGracePeriod(d time.Duration) Option {
	return func(m *Monitor) { m.grace = d }
}

// WithClock injects the clock used to stamp violations.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithTimerFactory injects the grace-period timer constructor. Tests use it
// to capture and fire the timer deterministically.
func WithTimerFactory(after func(time.Duration, func()) *time.Timer) Option {
	return func(m *Monitor) { m.after = after }
}

// WithViolationSink registers a callback invoked for every recorded
// violation, for display/logging by the owning controller.
func WithViolationSink(fn func(domain.ViolationEvent)) Option {
	return func(m *Monitor) { m.onViolation = fn }
}

// NewMonitor builds a disarmed monitor. onForceSubmit is invoked at most
// once over the monitor's lifetime.
func NewMonitor(env Environment, onForceSubmit func(), opts ...Option) *Monitor {
	m := &Monitor{
		env:           env,
		grace:         DefaultGracePeriod,
		now:           time.Now,
		after:         time.AfterFunc,
		onForceSubmit: onForceSubmit,
		violations:    make([]domain.ViolationEvent, 0, defaultViolationAlloc),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Arm subscribes to the environment. Arming an armed monitor is a no-op.
func (m *Monitor) Arm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsubscribe != nil {
		return
	}
	m.unsubscribe = m.env.Subscribe(m.handle)
}

// Disarm removes the environment subscription and cancels a pending grace
// timer. It runs on every exit path of a session (manual submit, forced
// submit, navigation away); already-recorded violations are kept.
func (m *Monitor) Disarm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
	}
	m.gracePend = false
}

// Armed reports whether the monitor currently observes signals.
func (m *Monitor) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unsubscribe != nil
}

// Violations returns a snapshot of the accumulated violation list in
// event-arrival order.
func (m *Monitor) Violations() []domain.ViolationEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ViolationEvent, len(m.violations))
	copy(out, m.violations)
	return out
}

func (m *Monitor) handle(sig Signal) {
	// Best-effort: a malformed signal must never take the session down.
	defer func() { _ = recover() }()

	switch sig.Kind {
	case SignalContextMenu:
		m.record(TagContextMenu)
	case SignalSelectStart:
		m.record(TagTextSelection)
	case SignalCopy:
		m.record(TagCopyAttempted)
	case SignalWindowBlur:
		m.record(TagWindowBlurred)
	case SignalKeyDown:
		m.handleKeyDown(sig)
	case SignalVisibilityHidden:
		m.handleHidden()
	case SignalVisibilityVisible:
		m.mu.Lock()
		m.hidden = false
		m.mu.Unlock()
	}
}

func (m *Monitor) handleKeyDown(sig Signal) {
	key := strings.ToLower(sig.Key)
	switch {
	case sig.Key == "PrintScreen":
		m.record(TagScreenshot)
	case sig.Ctrl && sig.Shift && (key == "i" || key == "j"):
		m.record(TagShortcutPrefix + sig.Key)
	case sig.Key == "F12":
		m.record(TagShortcutPrefix + sig.Key)
	case sig.Ctrl && (key == "c" || key == "a" || key == "v" || key == "x" ||
		key == "u" || key == "s" || key == "p"):
		m.record(TagShortcutPrefix + sig.Key)
	}
}

// handleHidden records the violation immediately and starts the grace timer.
// One timer per hide transition: flapping hide/show while a timer is pending
// does not restart it.
func (m *Monitor) handleHidden() {
	m.record(TagTabSwitched)

	m.mu.Lock()
	m.hidden = true
	if m.gracePend || m.forced {
		m.mu.Unlock()
		return
	}
	m.gracePend = true
	m.graceTimer = m.after(m.grace, m.graceExpired)
	m.mu.Unlock()
}

func (m *Monitor) graceExpired() {
	m.mu.Lock()
	m.gracePend = false
	m.graceTimer = nil
	fire := m.hidden && !m.forced && m.unsubscribe != nil
	if fire {
		m.forced = true
	}
	m.mu.Unlock()

	if fire && m.onForceSubmit != nil {
		m.onForceSubmit()
	}
}

func (m *Monitor) record(tag string) {
	m.mu.Lock()
	if m.unsubscribe == nil {
		// Raced with Disarm; the session is already finalizing.
		m.mu.Unlock()
		return
	}
	ev := domain.ViolationEvent{Tag: tag, OccurredAt: m.now()}
	m.violations = append(m.violations, ev)
	sink := m.onViolation
	m.mu.Unlock()

	if sink != nil {
		sink(ev)
	}
}
