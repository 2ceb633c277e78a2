package adpolicy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seqSource replays fixed values, then repeats the last one.
type seqSource struct {
	values []float64
	calls  int
}

func (s *seqSource) Float64() float64 {
	if len(s.values) == 0 {
		return 0
	}
	i := s.calls
	if i >= len(s.values) {
		i = len(s.values) - 1
	}
	s.calls++
	return s.values[i]
}

func TestQuestionTransitionEveryThird(t *testing.T) {
	e := NewEngine(DefaultPolicy(), &seqSource{})
	for counter := 1; counter <= 12; counter++ {
		got := e.Evaluate(HookQuestionTransition, Input{AdEventCounter: counter})
		if counter%3 == 0 {
			assert.Equal(t, DecisionInterstitial, got, "transition %d", counter)
		} else {
			assert.Equal(t, DecisionNone, got, "transition %d", counter)
		}
	}
}

func TestQuestionTransitionIgnoresZeroCounter(t *testing.T) {
	e := NewEngine(DefaultPolicy(), &seqSource{})
	assert.Equal(t, DecisionNone, e.Evaluate(HookQuestionTransition, Input{AdEventCounter: 0}))
}

func TestWrongAnswerNativeProbability(t *testing.T) {
	src := &seqSource{values: []float64{0.49, 0.5}}
	e := NewEngine(DefaultPolicy(), src)

	assert.Equal(t, DecisionNative, e.Evaluate(HookWrongAnswer, Input{Incorrect: true}))
	assert.Equal(t, DecisionNone, e.Evaluate(HookWrongAnswer, Input{Incorrect: true}))
	assert.Equal(t, DecisionNone, e.Evaluate(HookWrongAnswer, Input{Incorrect: false}))
	assert.Equal(t, 2, src.calls, "a correct answer must not consume randomness")
}

func TestNativeSuppressedOnceShown(t *testing.T) {
	src := &seqSource{values: []float64{0}}
	e := NewEngine(DefaultPolicy(), src)

	assert.Equal(t, DecisionNone, e.Evaluate(HookWrongAnswer, Input{Incorrect: true, NativeAdShown: true}))
	assert.Equal(t, DecisionNone, e.Evaluate(HookExplanationOpened, Input{NativeAdShown: true}))
	assert.Equal(t, 0, src.calls)
}

func TestExplanationOpenedThreshold(t *testing.T) {
	e := NewEngine(DefaultPolicy(), &seqSource{values: []float64{0.29, 0.3}})
	assert.Equal(t, DecisionNative, e.Evaluate(HookExplanationOpened, Input{}))
	assert.Equal(t, DecisionNone, e.Evaluate(HookExplanationOpened, Input{}))
}

func TestDoubtResolvedThreshold(t *testing.T) {
	e := NewEngine(DefaultPolicy(), &seqSource{values: []float64{0.39, 0.4}})
	assert.Equal(t, DecisionInterstitial, e.Evaluate(HookDoubtResolved, Input{}))
	assert.Equal(t, DecisionNone, e.Evaluate(HookDoubtResolved, Input{}))
}

func TestInterstitialsAreNeverSuppressed(t *testing.T) {
	e := NewEngine(DefaultPolicy(), &seqSource{values: []float64{0}})
	in := Input{NativeAdShown: true, AdEventCounter: 3}
	assert.Equal(t, DecisionInterstitial, e.Evaluate(HookQuizComplete, in))
	assert.Equal(t, DecisionInterstitial, e.Evaluate(HookTimeUp, in))
	assert.Equal(t, DecisionInterstitial, e.Evaluate(HookQuestionTransition, in))
	assert.Equal(t, DecisionInterstitial, e.Evaluate(HookDoubtResolved, in))
}

func TestUnknownHook(t *testing.T) {
	e := NewEngine(DefaultPolicy(), nil)
	assert.Equal(t, DecisionNone, e.Evaluate(Hook("banner"), Input{}))
}

type recordingPlatform struct {
	mu    sync.Mutex
	calls []string
	err   error
	done  chan struct{}
}

func (p *recordingPlatform) record(kind string) error {
	p.mu.Lock()
	p.calls = append(p.calls, kind)
	p.mu.Unlock()
	p.done <- struct{}{}
	return p.err
}

func (p *recordingPlatform) RequestInterstitial(context.Context) error {
	return p.record("interstitial")
}

func (p *recordingPlatform) RequestNative(_ context.Context, ref string) error {
	return p.record("native:" + ref)
}

func (p *recordingPlatform) RequestRewarded(context.Context) error {
	return p.record("rewarded")
}

func TestDispatcherSwallowsPlatformErrors(t *testing.T) {
	platform := &recordingPlatform{err: errors.New("sdk offline"), done: make(chan struct{}, 4)}
	d := NewDispatcher(platform, "native-ad-container", time.Second)

	d.Dispatch(HookWrongAnswer, DecisionNative)
	d.Dispatch(HookQuizComplete, DecisionInterstitial)
	d.Dispatch(HookQuizComplete, DecisionNone)

	for i := 0; i < 2; i++ {
		select {
		case <-platform.done:
		case <-time.After(time.Second):
			t.Fatalf("dispatch %d never reached the platform", i)
		}
	}

	platform.mu.Lock()
	defer platform.mu.Unlock()
	require.Len(t, platform.calls, 2)
	assert.ElementsMatch(t, []string{"native:native-ad-container", "interstitial"}, platform.calls)
}

func TestNilDispatcherIsSafe(t *testing.T) {
	var d *Dispatcher
	d.Dispatch(HookQuizComplete, DecisionInterstitial)
	NewDispatcher(nil, "", 0).Dispatch(HookQuizComplete, DecisionInterstitial)
}
