// Package session runs one quiz session: it sequences question loading,
// answer locking, timing, scoring and advancement, and consults the ad
// policy on every transition.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"medquiz-service/internal/adpolicy"
	"medquiz-service/internal/doubt"
	"medquiz-service/internal/domain"
	"medquiz-service/internal/timer"
)

// TimeUpNotice is the notice text emitted when a practice question times out.
const TimeUpNotice = "Time's up!"

// EventType classifies what changed in a session.
type EventType string

const (
	EventState    EventType = "state"
	EventTick     EventType = "tick"
	EventTimeUp   EventType = "time-up"
	EventComplete EventType = "complete"
)

// Event is a snapshot published to subscribers.
type Event struct {
	Type   EventType
	State  domain.SessionState
	Notice string
}

// Options configures a Controller.
type Options struct {
	ID     string
	Kind   domain.SessionKind
	QuizID string
	Title  string
	// QuestionCount is 0 for an unlimited session.
	QuestionCount int
	// SecondsPerQuestion is 0 for untimed questions.
	SecondsPerQuestion int
	// AutoAdvanceOnExpiry moves to the next question when the timer runs out
	// without a selection. Practice sessions show a notice instead.
	AutoAdvanceOnExpiry bool

	Source     QuestionSource
	Doubts     DoubtResolver
	Ads        *adpolicy.Engine
	Dispatcher *adpolicy.Dispatcher

	// TickInterval overrides the one-second countdown step.
	TickInterval time.Duration
	// OnComplete runs once, outside the controller lock, when the session
	// reaches Complete.
	OnComplete func(domain.SessionState)
}

// Controller is the state machine for one session. All methods are safe for
// concurrent use; provider and doubt calls happen outside the lock.
type Controller struct {
	opts   Options
	timer  *timer.Countdown
	doubts *doubt.Channel

	bg     context.Context
	cancel context.CancelFunc

	mu                 sync.Mutex
	phase              domain.Phase
	current            *domain.Question
	selected           domain.Label
	score              int
	index              int
	remaining          *int
	timedOut           bool
	explanationVisible bool
	explanationOpened  bool
	adCounter          int
	nativeShown        bool
	loading            bool
	closed             bool
	// generation changes whenever the current question is left, so results
	// of calls started for an earlier question can be recognised.
	generation  uint64
	timerSeq    uint64
	completed   bool
	subscribers map[chan Event]struct{}
}

// New builds a controller in the Loading phase for question 1.
func New(opts Options) *Controller {
	if opts.Ads == nil {
		opts.Ads = adpolicy.NewEngine(adpolicy.DefaultPolicy(), nil)
	}
	if opts.Kind == "" {
		opts.Kind = domain.KindPractice
	}
	bg, cancel := context.WithCancel(context.Background())
	c := &Controller{
		opts:        opts,
		doubts:      doubt.NewChannel(),
		bg:          bg,
		cancel:      cancel,
		phase:       domain.PhaseLoading,
		index:       1,
		subscribers: make(map[chan Event]struct{}),
	}
	c.timer = timer.New(opts.TickInterval, c.onTick, c.onExpire)
	return c
}

// ID returns the session id.
func (c *Controller) ID() string {
	return c.opts.ID
}

// Kind returns the session kind.
func (c *Controller) Kind() domain.SessionKind {
	return c.opts.Kind
}

// Start loads the first question.
func (c *Controller) Start(ctx context.Context) error {
	return c.Load(ctx)
}

// Load requests the question for the current position. It is only valid in
// the Loading phase; on provider failure the session stays in Loading and
// the caller may retry.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed || c.phase != domain.PhaseLoading {
		c.mu.Unlock()
		return domain.ErrInvalidPhase
	}
	if c.loading {
		c.mu.Unlock()
		return domain.ErrLoadInFlight
	}
	c.loading = true
	gen, index := c.generation, c.index
	c.mu.Unlock()

	q, err := c.opts.Source.Next(ctx, index)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.closed {
		return domain.ErrInvalidPhase
	}
	c.loading = false
	if err != nil {
		if !errors.Is(err, domain.ErrProviderUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
		}
		glog.Warningf("session %s: load question %d: %v", c.opts.ID, index, err)
		c.broadcastLocked(EventState, "")
		return err
	}

	c.current = &q
	c.phase = domain.PhasePresented
	c.selected = ""
	c.timedOut = false
	c.explanationVisible = false
	c.explanationOpened = false
	c.remaining = nil
	if secs := c.opts.SecondsPerQuestion; secs > 0 {
		c.remaining = &secs
		c.timerSeq = c.timer.Start(secs)
	}
	c.broadcastLocked(EventState, "")
	return nil
}

// SelectAnswer locks in label for the current question. It reports false
// without error when an answer was already chosen or the timer expired.
func (c *Controller) SelectAnswer(label domain.Label) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, domain.ErrInvalidPhase
	}
	switch c.phase {
	case domain.PhaseAnswered:
		return false, nil
	case domain.PhasePresented:
	default:
		return false, domain.ErrInvalidPhase
	}
	if !label.Valid() {
		return false, fmt.Errorf("%w: %q", domain.ErrInvalidLabel, label)
	}
	if c.timedOut {
		return false, nil
	}

	c.stopTimerLocked()
	c.selected = label
	c.phase = domain.PhaseAnswered
	if c.current.IsCorrect(label) {
		c.score++
	} else {
		c.evaluateLocked(adpolicy.HookWrongAnswer, true)
	}
	c.broadcastLocked(EventState, "")
	return true, nil
}

// ToggleExplanation flips explanation visibility and returns the new value.
func (c *Controller) ToggleExplanation() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.phase != domain.PhaseAnswered {
		return false, domain.ErrInvalidPhase
	}
	c.explanationVisible = !c.explanationVisible
	if c.explanationVisible && !c.explanationOpened {
		c.explanationOpened = true
		c.evaluateLocked(adpolicy.HookExplanationOpened, false)
	}
	c.broadcastLocked(EventState, "")
	return c.explanationVisible, nil
}

// Advance leaves the current question. The returned phase is Loading, in
// which case the caller should Load the next question, or Complete.
func (c *Controller) Advance() (domain.Phase, error) {
	c.mu.Lock()
	phase, complete, err := c.advanceLocked()
	state := c.snapshotLocked()
	c.mu.Unlock()

	if err != nil {
		return phase, err
	}
	if complete {
		c.notifyComplete(state)
	}
	return phase, nil
}

func (c *Controller) advanceLocked() (domain.Phase, bool, error) {
	if c.closed {
		return c.phase, false, domain.ErrInvalidPhase
	}
	answered := c.phase == domain.PhaseAnswered
	expired := c.phase == domain.PhasePresented && c.timedOut
	if !answered && !expired {
		return c.phase, false, domain.ErrInvalidPhase
	}

	c.stopTimerLocked()
	c.leaveQuestionLocked()
	c.adCounter++
	c.evaluateLocked(adpolicy.HookQuestionTransition, false)

	if c.opts.QuestionCount > 0 && c.index >= c.opts.QuestionCount {
		c.completeLocked()
		return c.phase, true, nil
	}
	c.index++
	c.phase = domain.PhaseLoading
	c.broadcastLocked(EventState, "")
	return c.phase, false, nil
}

// Finish ends the session from any phase. Calling it on a completed session
// is a no-op.
func (c *Controller) Finish() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrInvalidPhase
	}
	if c.phase == domain.PhaseComplete {
		c.mu.Unlock()
		return nil
	}
	c.stopTimerLocked()
	c.leaveQuestionLocked()
	c.completeLocked()
	state := c.snapshotLocked()
	c.mu.Unlock()

	c.notifyComplete(state)
	return nil
}

// AskDoubt sends a follow-up about the current question to the doubt
// service. The call is made without holding the session lock; an answer
// that arrives after the question was left is dropped.
func (c *Controller) AskDoubt(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.closed || c.phase != domain.PhaseAnswered || !c.explanationVisible {
		c.mu.Unlock()
		return domain.ErrInvalidPhase
	}
	ticket, err := c.doubts.Begin(text)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	q := *c.current
	gen := c.generation
	c.broadcastLocked(EventState, "")
	c.mu.Unlock()

	req := DoubtRequest{
		Doubt:        ticket.Text,
		Question:     q.Prompt,
		Options:      q.LabeledOptions(),
		CorrectLabel: q.CorrectLabel,
		Explanation:  q.Explanation,
	}
	var answer string
	if c.opts.Doubts == nil {
		err = domain.ErrDoubtServiceUnavailable
	} else {
		answer, err = c.opts.Doubts.Resolve(ctx, req)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.closed {
		glog.V(2).Infof("session %s: dropping doubt answer for a question already left", c.opts.ID)
		return nil
	}
	if err != nil {
		c.doubts.Fail(ticket)
	} else {
		c.doubts.Resolve(ticket, answer)
	}
	c.evaluateLocked(adpolicy.HookDoubtResolved, false)
	c.broadcastLocked(EventState, "")

	if err != nil {
		glog.Warningf("session %s: doubt resolution failed: %v", c.opts.ID, err)
		if !errors.Is(err, domain.ErrDoubtServiceUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrDoubtServiceUnavailable, err)
		}
		return err
	}
	return nil
}

// Close tears the session down. Pending timers are cancelled, subscribers
// are closed and late provider or doubt results are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopTimerLocked()
	c.generation++
	c.cancel()
	for ch := range c.subscribers {
		delete(c.subscribers, ch)
		close(ch)
	}
}

// Snapshot returns a copy of the observable state.
func (c *Controller) Snapshot() domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe returns a channel of session events starting with the current
// state. The caller must invoke the returned cancel function.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	// The channel is fresh, so the initial event never blocks and always
	// precedes later broadcasts.
	ch <- Event{Type: EventState, State: c.snapshotLocked()}
	c.subscribers[ch] = struct{}{}
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

func (c *Controller) onTick(tick timer.Tick) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || tick.Seq != c.timerSeq {
		return
	}
	remaining := tick.Remaining
	c.remaining = &remaining
	c.broadcastLocked(EventTick, "")
}

func (c *Controller) onExpire(tick timer.Tick) {
	c.mu.Lock()
	if c.closed || tick.Seq != c.timerSeq || c.phase != domain.PhasePresented {
		c.mu.Unlock()
		return
	}
	c.timerSeq = 0
	zero := 0
	c.remaining = &zero
	c.timedOut = true

	if !c.opts.AutoAdvanceOnExpiry {
		c.evaluateLocked(adpolicy.HookTimeUp, false)
		c.broadcastLocked(EventTimeUp, TimeUpNotice)
		c.mu.Unlock()
		return
	}

	c.broadcastLocked(EventTimeUp, "")
	phase, complete, err := c.advanceLocked()
	state := c.snapshotLocked()
	c.mu.Unlock()

	if err != nil {
		glog.Errorf("session %s: auto-advance after expiry: %v", c.opts.ID, err)
		return
	}
	if complete {
		c.notifyComplete(state)
		return
	}
	if phase == domain.PhaseLoading {
		go func() {
			if err := c.Load(c.bg); err != nil && !errors.Is(err, domain.ErrInvalidPhase) {
				glog.Warningf("session %s: load after auto-advance: %v", c.opts.ID, err)
			}
		}()
	}
}

func (c *Controller) stopTimerLocked() {
	c.timer.Cancel()
	c.timerSeq = 0
}

func (c *Controller) leaveQuestionLocked() {
	c.generation++
	c.loading = false
	c.doubts.Reset()
	c.current = nil
	c.selected = ""
	c.timedOut = false
	c.explanationVisible = false
	c.explanationOpened = false
	c.remaining = nil
}

func (c *Controller) completeLocked() {
	c.phase = domain.PhaseComplete
	c.evaluateLocked(adpolicy.HookQuizComplete, false)
}

// notifyComplete runs OnComplete and only then broadcasts EventComplete, so
// subscribers reacting to the event observe the recorded outcome.
func (c *Controller) notifyComplete(state domain.SessionState) {
	c.mu.Lock()
	if c.completed {
		c.mu.Unlock()
		return
	}
	c.completed = true
	c.mu.Unlock()

	if c.opts.OnComplete != nil {
		c.opts.OnComplete(state)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.broadcastLocked(EventComplete, "")
	}
}

func (c *Controller) evaluateLocked(hook adpolicy.Hook, incorrect bool) {
	decision := c.opts.Ads.Evaluate(hook, adpolicy.Input{
		AdEventCounter: c.adCounter,
		Incorrect:      incorrect,
		NativeAdShown:  c.nativeShown,
	})
	if decision == adpolicy.DecisionNative {
		c.nativeShown = true
	}
	if decision != adpolicy.DecisionNone {
		glog.V(2).Infof("session %s: %s -> %s", c.opts.ID, hook, decision)
	}
	c.opts.Dispatcher.Dispatch(hook, decision)
}

func (c *Controller) broadcastLocked(kind EventType, notice string) {
	ev := Event{Type: kind, State: c.snapshotLocked(), Notice: notice}
	for ch := range c.subscribers {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: replace its oldest pending event.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func (c *Controller) snapshotLocked() domain.SessionState {
	state := domain.SessionState{
		SessionID:          c.opts.ID,
		Kind:               c.opts.Kind,
		QuizID:             c.opts.QuizID,
		Title:              c.opts.Title,
		Phase:              c.phase,
		SelectedLabel:      c.selected,
		Score:              c.score,
		QuestionIndex:      c.index,
		QuestionCount:      c.opts.QuestionCount,
		TimedOut:           c.timedOut,
		ExplanationVisible: c.explanationVisible,
		DoubtTranscript:    c.doubts.Transcript(),
		DoubtPending:       c.doubts.Pending(),
		AdEventCounter:     c.adCounter,
		NativeAdShown:      c.nativeShown,
	}
	if c.current != nil {
		q := c.current.Clone()
		state.CurrentQuestion = &q
	}
	if c.remaining != nil {
		r := *c.remaining
		state.RemainingSeconds = &r
	}
	return state
}
