package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"proctor-quiz-service/internal/domain"
	"proctor-quiz-service/internal/proctor"
)

// State is the session lifecycle position. Submitted and non-retryable
// Blocked are terminal.
type State string

const (
	StateLoading    State = "loading"
	StateBlocked    State = "blocked"
	StateReady      State = "ready"
	StateInProgress State = "in_progress"
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
)

// EventType tags asynchronous session notifications.
type EventType string

const (
	EventTick      EventType = "tick"
	EventViolation EventType = "violation"
	EventSubmitted EventType = "submitted"
)

// Event is one asynchronous notification from the session to its consumer
// (timer sync, violation warning, or a submission outcome that the consumer
// did not initiate, such as time-up or a forced submit).
type Event struct {
	Type             EventType
	RemainingSeconds int
	Violation        domain.ViolationEvent
	Record           domain.AttemptRecord
	Err              error
}

// SessionConfig carries the fixed parameters of one attempt. Duration is a
// configuration value, never derived (40- and 60-minute deployments exist).
type SessionConfig struct {
	Duration time.Duration
	Grace    time.Duration
	Quotas   map[string]int
	Window   Window
}

// Controller owns the lifecycle of a single quiz attempt from question load
// through terminal submission, exactly once. All state is guarded by one
// mutex; answers and violations are snapshotted at the moment submit wins
// the guard so the persisted record never reflects mid-flight mutation.
type Controller struct {
	userID   string
	cfg      SessionConfig
	bank     QuestionBank
	attempts AttemptStore
	profiles ProfileStore
	monitor  *proctor.Monitor

	now          func() time.Time
	rnd          *rand.Rand
	newID        func() string
	tickInterval time.Duration

	mu          sync.Mutex
	state       State
	blockReason domain.BlockReason
	questions   []domain.Question
	pos         int
	answers     domain.AnswerRecord
	remaining   int
	device      domain.DeviceInfo
	submitGuard bool
	result      *domain.AttemptRecord
	stopTicker  context.CancelFunc

	events chan Event
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithClock injects the wall clock.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// WithRand injects the shuffle source for deterministic ordering in tests.
func WithRand(rnd *rand.Rand) ControllerOption {
	return func(c *Controller) { c.rnd = rnd }
}

// WithIDGenerator injects attempt-ID generation.
func WithIDGenerator(newID func() string) ControllerOption {
	return func(c *Controller) { c.newID = newID }
}

// WithTickInterval overrides the countdown interval. Zero disables the
// internal ticker; tests then drive Tick directly.
func WithTickInterval(d time.Duration) ControllerOption {
	return func(c *Controller) { c.tickInterval = d }
}

// NewController builds a session in the Loading state. The monitor is
// created disarmed against env and armed only for the InProgress span.
func NewController(userID string, cfg SessionConfig, env proctor.Environment,
	bank QuestionBank, attempts AttemptStore, profiles ProfileStore,
	opts ...ControllerOption) *Controller {

	c := &Controller{
		userID:       userID,
		cfg:          cfg,
		bank:         bank,
		attempts:     attempts,
		profiles:     profiles,
		now:          time.Now,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
		newID:        uuid.NewString,
		tickInterval: time.Second,
		state:        StateLoading,
		answers:      make(domain.AnswerRecord),
		events:       make(chan Event, 32),
	}
	for _, opt := range opts {
		opt(c)
	}

	grace := cfg.Grace
	if grace <= 0 {
		grace = proctor.DefaultGracePeriod
	}
	c.monitor = proctor.NewMonitor(env,
		func() { _, _ = c.Submit(context.Background(), true) },
		proctor.WithGracePeriod(grace),
		proctor.WithClock(c.now),
		proctor.WithViolationSink(func(ev domain.ViolationEvent) {
			c.emit(Event{Type: EventViolation, Violation: ev})
		}),
	)
	return c
}

// Events yields asynchronous session notifications. Slow consumers lose the
// oldest pending event, never the newest.
func (c *Controller) Events() <-chan Event { return c.events }

// Monitor exposes the session's proctoring monitor.
func (c *Controller) Monitor() *proctor.Monitor { return c.monitor }

// State returns the current state and, when Blocked, the reason.
func (c *Controller) State() (State, domain.BlockReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.blockReason
}

// LoadQuestions runs the eligibility gate and fetches the question set:
// category quotas composed first, then one global shuffle. Valid from
// Loading and from a retryable Blocked state.
func (c *Controller) LoadQuestions(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateLoading && !(c.state == StateBlocked && c.blockReason.Retryable()) {
		c.mu.Unlock()
		return domain.ErrInvalidState
	}
	c.mu.Unlock()

	if !c.cfg.Window.Contains(c.now()) {
		c.block(domain.BlockOutsideWindow)
		return domain.ErrOutsideWindow
	}

	attempted, err := c.profiles.HasAttempted(ctx, c.userID)
	if err != nil {
		c.block(domain.BlockLoadFailed)
		return err
	}
	if attempted {
		c.block(domain.BlockAlreadyAttempted)
		return domain.ErrAlreadyAttempted
	}

	verified, err := c.profiles.IsPaymentVerified(ctx, c.userID)
	if err != nil {
		c.block(domain.BlockLoadFailed)
		return err
	}
	if !verified {
		c.block(domain.BlockNotEligible)
		return domain.ErrNotEligible
	}

	questions, err := ComposeByQuota(ctx, c.bank, c.cfg.Quotas)
	if err != nil {
		c.block(domain.BlockLoadFailed)
		return err
	}
	if len(questions) == 0 {
		c.block(domain.BlockLoadFailed)
		return domain.ErrQuestionBank
	}
	ShuffleQuestions(questions, c.rnd)

	c.mu.Lock()
	c.questions = questions
	c.state = StateReady
	c.blockReason = ""
	c.mu.Unlock()
	return nil
}

// StartSession arms the monitor and starts the countdown. Valid only from
// Ready; calls from any other state are no-ops.
func (c *Controller) StartSession(device domain.DeviceInfo) {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return
	}
	c.state = StateInProgress
	c.device = device
	c.remaining = int(c.cfg.Duration.Seconds())
	var tickCtx context.Context
	if c.tickInterval > 0 {
		tickCtx, c.stopTicker = context.WithCancel(context.Background())
	}
	c.mu.Unlock()

	c.monitor.Arm()
	if tickCtx != nil {
		go c.runTicker(tickCtx)
	}
}

func (c *Controller) runTicker(ctx context.Context) {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.Tick() {
				return
			}
		}
	}
}

// Tick advances the countdown by one interval. Reaching zero triggers a
// forced submit exactly once and stops ticking. Returns false once the
// session no longer needs ticks.
func (c *Controller) Tick() bool {
	c.mu.Lock()
	if c.state != StateInProgress {
		alive := c.state == StateSubmitting
		c.mu.Unlock()
		return alive
	}
	if c.remaining > 0 {
		c.remaining--
	}
	remaining := c.remaining
	c.mu.Unlock()

	c.emit(Event{Type: EventTick, RemainingSeconds: remaining})
	if remaining == 0 {
		_, _ = c.Submit(context.Background(), true)
		return false
	}
	return true
}

// SelectAnswer upserts the selection for a question. Unknown question IDs
// and calls outside InProgress are safely ignored.
func (c *Controller) SelectAnswer(questionID string, label domain.Label) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInProgress {
		return
	}
	for i := range c.questions {
		if c.questions[i].ID == questionID {
			c.answers[questionID] = label
			return
		}
	}
}

// NextQuestion advances the position, clamped at the last question.
func (c *Controller) NextQuestion() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateInProgress && c.pos < len(c.questions)-1 {
		c.pos++
	}
}

// PreviousQuestion moves back, clamped at the first question.
func (c *Controller) PreviousQuestion() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateInProgress && c.pos > 0 {
		c.pos--
	}
}

// Position returns the current question index.
func (c *Controller) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

// Questions returns the loaded set in session order.
func (c *Controller) Questions() []domain.Question {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Question, len(c.questions))
	copy(out, c.questions)
	return out
}

// AnsweredCount reports how many questions have a selection.
func (c *Controller) AnsweredCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.answers)
}

// Remaining returns the countdown value in seconds.
func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Submit is the single-shot terminal transition. The first call wins the
// guard, disarms the monitor, snapshots answers and violations, persists the
// attempt, and marks the profile flag. Later calls are no-ops except that a
// call after Submitted returns the persisted record. The guard is released
// only on confirmed persistence failure, so an explicit retry is possible
// for manual and forced submissions alike.
func (c *Controller) Submit(ctx context.Context, forced bool) (domain.AttemptRecord, error) {
	c.mu.Lock()
	if c.state == StateSubmitted && c.result != nil {
		rec := *c.result
		c.mu.Unlock()
		return rec, nil
	}
	if c.state != StateInProgress || c.submitGuard {
		c.mu.Unlock()
		return domain.AttemptRecord{}, domain.ErrInvalidState
	}
	c.submitGuard = true
	c.state = StateSubmitting

	// Consistent snapshot: nothing read again after the persistence call
	// starts, even if ticks or signals keep arriving.
	violations := c.monitor.Violations()
	answers := make(domain.AnswerRecord, len(c.answers))
	for id, label := range c.answers {
		answers[id] = label
	}
	questions := c.questions
	elapsed := int(c.cfg.Duration.Seconds()) - c.remaining
	device := c.device
	c.mu.Unlock()

	c.monitor.Disarm()

	score := 0
	breakdown := make([]domain.QuestionResult, 0, len(questions))
	for _, q := range questions {
		given, answered := answers[q.ID]
		correct := answered && given == q.CorrectLabel
		if correct {
			score++
		}
		breakdown = append(breakdown, domain.QuestionResult{
			QuestionID:   q.ID,
			Prompt:       q.Prompt,
			CorrectLabel: q.CorrectLabel,
			GivenLabel:   given,
			Correct:      correct,
		})
	}

	record := domain.AttemptRecord{
		ID:                c.newID(),
		UserID:            c.userID,
		Score:             score,
		TotalQuestions:    len(questions),
		TimeTakenSeconds:  elapsed,
		Breakdown:         breakdown,
		DeviceFingerprint: Fingerprint(device),
		Violations:        violations,
		Forced:            forced,
		SubmittedAt:       c.now(),
	}

	if err := c.attempts.Save(ctx, record); err != nil {
		c.mu.Lock()
		c.submitGuard = false
		c.state = StateInProgress
		c.mu.Unlock()
		// The session continues; deterrence stays active for the retry.
		c.monitor.Arm()
		if forced {
			c.emit(Event{Type: EventSubmitted, Err: err})
		}
		return domain.AttemptRecord{}, err
	}

	// Flag update is the UX fast path; the store's unique constraint is the
	// authoritative guard, so a failure here is not a failed submission.
	_ = c.profiles.MarkAttempted(ctx, c.userID, record.SubmittedAt)

	c.mu.Lock()
	c.state = StateSubmitted
	c.result = &record
	stop := c.stopTicker
	c.stopTicker = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}

	if forced {
		// Manual submissions get their outcome on the call itself; only
		// unattended paths need the asynchronous notification.
		c.emit(Event{Type: EventSubmitted, Record: record})
	}
	return record, nil
}

// Close releases the session's resources on navigation away: the monitor is
// disarmed and the ticker stopped. An in-flight submission is not canceled.
func (c *Controller) Close() {
	c.monitor.Disarm()
	c.mu.Lock()
	stop := c.stopTicker
	c.stopTicker = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (c *Controller) block(reason domain.BlockReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateBlocked
	c.blockReason = reason
}

func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		// Drop the oldest pending event so slow consumers never block
		// the session.
		select {
		case <-c.events:
		default:
		}
		select {
		case c.events <- ev:
		default:
		}
	}
}
