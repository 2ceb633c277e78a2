// Package adpolicy decides when a session should ask the ad platform for an
// ad. Evaluate is a pure function of the counters passed in and the injected
// random source; it never looks at ad SDK state.
package adpolicy

import (
	"math/rand/v2"
	"time"
)

// Hook is a named decision point in a session.
type Hook string

const (
	HookQuestionTransition Hook = "question-transition"
	HookWrongAnswer        Hook = "wrong-answer"
	HookExplanationOpened  Hook = "explanation-opened"
	HookDoubtResolved      Hook = "doubt-resolved"
	HookQuizComplete       Hook = "quiz-complete"
	HookTimeUp             Hook = "time-up"
)

// Decision is what the session should request from the ad platform.
type Decision string

const (
	DecisionNone         Decision = "none"
	DecisionInterstitial Decision = "interstitial"
	DecisionNative       Decision = "native"
	DecisionRewarded     Decision = "rewarded"
)

// Source supplies uniform values in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Input carries the session counters a hook is evaluated against.
type Input struct {
	// AdEventCounter is the counter value after the triggering increment.
	AdEventCounter int
	// Incorrect is set for the wrong-answer hook.
	Incorrect bool
	// NativeAdShown suppresses further native requests in the session.
	NativeAdShown bool
}

// Policy holds the trigger parameters.
type Policy struct {
	InterstitialEvery    int
	WrongAnswerNativeP   float64
	ExplanationNativeP   float64
	DoubtInterstitialP   float64
	TimeUpInterstitial   bool
	CompleteInterstitial bool
}

// DefaultPolicy returns the production trigger table.
func DefaultPolicy() Policy {
	return Policy{
		InterstitialEvery:    3,
		WrongAnswerNativeP:   0.5,
		ExplanationNativeP:   0.3,
		DoubtInterstitialP:   0.4,
		TimeUpInterstitial:   true,
		CompleteInterstitial: true,
	}
}

// Engine evaluates hooks for one session.
type Engine struct {
	policy Policy
	rand   Source
}

// NewEngine builds an engine. A nil source is replaced by a time-seeded PCG.
func NewEngine(policy Policy, src Source) *Engine {
	if src == nil {
		seed := uint64(time.Now().UnixNano())
		src = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &Engine{policy: policy, rand: src}
}

// Evaluate returns the decision for hook given in.
func (e *Engine) Evaluate(hook Hook, in Input) Decision {
	switch hook {
	case HookQuestionTransition:
		every := e.policy.InterstitialEvery
		if every > 0 && in.AdEventCounter > 0 && in.AdEventCounter%every == 0 {
			return DecisionInterstitial
		}
		return DecisionNone
	case HookWrongAnswer:
		if !in.Incorrect {
			return DecisionNone
		}
		return e.native(in, e.policy.WrongAnswerNativeP)
	case HookExplanationOpened:
		return e.native(in, e.policy.ExplanationNativeP)
	case HookDoubtResolved:
		if e.chance(e.policy.DoubtInterstitialP) {
			return DecisionInterstitial
		}
		return DecisionNone
	case HookQuizComplete:
		if e.policy.CompleteInterstitial {
			return DecisionInterstitial
		}
		return DecisionNone
	case HookTimeUp:
		if e.policy.TimeUpInterstitial {
			return DecisionInterstitial
		}
		return DecisionNone
	default:
		return DecisionNone
	}
}

func (e *Engine) native(in Input, p float64) Decision {
	if in.NativeAdShown {
		return DecisionNone
	}
	if e.chance(p) {
		return DecisionNative
	}
	return DecisionNone
}

func (e *Engine) chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return e.rand.Float64() < p
}
