// gatekeeper/util/alerter.go

package util

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	logger "github.com/dev-mohitbeniwal/echo/gatekeeper/logging"
)

type AdminNotifier interface {
	NotifyAdmins(ctx context.Context, message string) error
}

// DependencyAlerter logs every dependency failure and escalates to admins
// once a component fails threshold times inside one window. Escalations for
// the same component are spaced by at least minInterval.
type DependencyAlerter struct {
	notifier    AdminNotifier
	threshold   int
	window      time.Duration
	minInterval time.Duration
	now         func() time.Time

	mu          sync.Mutex
	windowStart time.Time
	counts      map[string]int
	limiters    map[string]*rate.Sometimes
}

func NewDependencyAlerter(notifier AdminNotifier, threshold int, window, minInterval time.Duration) *DependencyAlerter {
	return &DependencyAlerter{
		notifier:    notifier,
		threshold:   threshold,
		window:      window,
		minInterval: minInterval,
		now:         time.Now,
		counts:      make(map[string]int),
		limiters:    make(map[string]*rate.Sometimes),
	}
}

func (a *DependencyAlerter) WithClock(now func() time.Time) *DependencyAlerter {
	a.now = now
	return a
}

func (a *DependencyAlerter) Report(component string, err error) {
	logger.Error("Dependency failure",
		zap.Error(err),
		zap.String("class", "dependency"),
		zap.String("component", component))

	a.mu.Lock()
	now := a.now()
	if now.Sub(a.windowStart) >= a.window {
		a.windowStart = now
		clear(a.counts)
	}
	a.counts[component]++
	count := a.counts[component]
	limiter := a.limiterFor(component)
	a.mu.Unlock()

	if count < a.threshold {
		return
	}
	limiter.Do(func() {
		msg := fmt.Sprintf("%s: %d failures within %s, last error: %v", component, count, a.window, err)
		if notifyErr := a.notifier.NotifyAdmins(context.Background(), msg); notifyErr != nil {
			logger.Error("Failed to notify admins", zap.Error(notifyErr), zap.String("component", component))
		}
	})
}

func (a *DependencyAlerter) limiterFor(component string) *rate.Sometimes {
	limiter, ok := a.limiters[component]
	if !ok {
		if a.minInterval > 0 {
			limiter = &rate.Sometimes{Interval: a.minInterval}
		} else {
			limiter = &rate.Sometimes{Every: 1}
		}
		a.limiters[component] = limiter
	}
	return limiter
}
