package llm

import (
	"context"
	"time"

	"github.com/golang/glog"
)

// LoggingProvider records every request in the log: purpose, model,
// latency, token usage and error.
type LoggingProvider struct {
	inner Provider
	name  string
}

// WithLogging wraps p. name identifies the backend in log lines.
func WithLogging(p Provider, name string) Provider {
	return &LoggingProvider{inner: p, name: name}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)
	latency := time.Since(start)

	purpose := PurposeFrom(ctx)
	if err != nil {
		glog.Warningf("llm %s/%s purpose=%s latency=%s failed: %v", l.name, l.inner.ModelID(), purpose, latency, err)
		return nil, err
	}
	glog.V(1).Infof("llm %s/%s purpose=%s latency=%s tokens=%d/%d stop=%s",
		l.name, resp.Model, purpose, latency, resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.StopReason)
	if glog.V(3) {
		glog.Infof("llm %s response: %s", purpose, resp.Content)
	}
	return resp, nil
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}
