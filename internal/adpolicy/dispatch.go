package adpolicy

import (
	"context"
	"time"

	"github.com/golang/glog"
)

// Platform is the ad SDK binding. Calls are fire-and-forget: the returned
// error is only ever logged.
type Platform interface {
	RequestInterstitial(ctx context.Context) error
	RequestNative(ctx context.Context, containerRef string) error
	RequestRewarded(ctx context.Context) error
}

// Dispatcher forwards decisions to a Platform without blocking the caller.
type Dispatcher struct {
	platform     Platform
	containerRef string
	timeout      time.Duration
}

// NewDispatcher builds a dispatcher. A nil platform disables ads.
func NewDispatcher(platform Platform, containerRef string, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{platform: platform, containerRef: containerRef, timeout: timeout}
}

// Dispatch requests the ad for decision in the background.
func (d *Dispatcher) Dispatch(hook Hook, decision Decision) {
	if d == nil || d.platform == nil || decision == DecisionNone {
		return
	}
	go d.send(hook, decision)
}

func (d *Dispatcher) send(hook Hook, decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			glog.Errorf("ad platform panicked on %s (%s): %v", decision, hook, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	var err error
	switch decision {
	case DecisionInterstitial:
		err = d.platform.RequestInterstitial(ctx)
	case DecisionNative:
		err = d.platform.RequestNative(ctx, d.containerRef)
	case DecisionRewarded:
		err = d.platform.RequestRewarded(ctx)
	}
	if err != nil {
		glog.Warningf("ad request %s for hook %s failed: %v", decision, hook, err)
		return
	}
	glog.V(2).Infof("ad requested: %s (hook %s)", decision, hook)
}

// LogPlatform is a Platform that only records requests in the log. It is used
// when no client is attached to receive ad requests.
type LogPlatform struct{}

func (LogPlatform) RequestInterstitial(context.Context) error {
	glog.V(1).Info("interstitial ad requested")
	return nil
}

func (LogPlatform) RequestNative(_ context.Context, containerRef string) error {
	glog.V(1).Infof("native ad requested for container %q", containerRef)
	return nil
}

func (LogPlatform) RequestRewarded(context.Context) error {
	glog.V(1).Info("rewarded ad requested")
	return nil
}
