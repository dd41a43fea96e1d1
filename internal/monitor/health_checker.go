// Package monitor watches a running session for signs that it has stopped
// making progress or that the device is rejecting input.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jordanella.com/rmac/internal/device"
	"jordanella.com/rmac/internal/session"
)

// Reason names an unhealthy condition.
type Reason string

const (
	ReasonDeviceFailing     Reason = "device_failing"
	ReasonStuck             Reason = "session_stuck"
	ReasonScreenUnavailable Reason = "screen_unavailable"
)

// UnhealthyCallback is called when the session becomes unhealthy
type UnhealthyCallback func(reason Reason, err error)

// HealthChecker samples the session status on an interval.
type HealthChecker struct {
	status *session.Status
	flags  *session.Flags
	screen device.Screen

	checkInterval     time.Duration
	stuckTimeout      time.Duration
	stuckThreshold    int
	maxInjectFailures int64
	onUnhealthy       UnhealthyCallback

	mu               sync.Mutex
	lastEvents       int64
	lastFailures     int64
	lastActivityTime time.Time
	stuckCount       int
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(status *session.Status, flags *session.Flags) *HealthChecker {
	return &HealthChecker{
		status:            status,
		flags:             flags,
		checkInterval:     10 * time.Second,
		stuckTimeout:      60 * time.Second,
		stuckThreshold:    3,
		maxInjectFailures: 5,
		lastActivityTime:  time.Now(),
	}
}

// WithUnhealthyCallback sets the callback for unhealthy events
func (hc *HealthChecker) WithUnhealthyCallback(callback UnhealthyCallback) *HealthChecker {
	hc.onUnhealthy = callback
	return hc
}

// WithCheckInterval sets the health check interval
func (hc *HealthChecker) WithCheckInterval(interval time.Duration) *HealthChecker {
	if interval > 0 {
		hc.checkInterval = interval
	}
	return hc
}

// WithStuckTimeout sets how long a driving session may go without a new
// event before a check counts as stuck.
func (hc *HealthChecker) WithStuckTimeout(timeout time.Duration, threshold int) *HealthChecker {
	hc.stuckTimeout = timeout
	if threshold > 0 {
		hc.stuckThreshold = threshold
	}
	return hc
}

// WithScreen adds a responsiveness probe of the capture target.
func (hc *HealthChecker) WithScreen(s device.Screen) *HealthChecker {
	hc.screen = s
	return hc
}

// Run checks until ctx ends.
func (hc *HealthChecker) Run(ctx context.Context) {
	ticker := time.NewTicker(hc.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			hc.Check(now)
		}
	}
}

// RecordActivity records progress to prevent stuck detection
func (hc *HealthChecker) RecordActivity() {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.lastActivityTime = time.Now()
	hc.stuckCount = 0
}

// Check runs every probe once. Only the first failing probe is reported.
func (hc *HealthChecker) Check(now time.Time) {
	if reason, err := hc.check(now); err != nil && hc.onUnhealthy != nil {
		hc.onUnhealthy(reason, err)
	}
}

func (hc *HealthChecker) check(now time.Time) (Reason, error) {
	v := hc.status.View(hc.flags)

	hc.mu.Lock()
	defer hc.mu.Unlock()

	if v.Events != hc.lastEvents {
		hc.lastEvents = v.Events
		hc.lastActivityTime = now
		hc.stuckCount = 0
	}

	failed := v.InjectFails - hc.lastFailures
	hc.lastFailures = v.InjectFails
	if hc.maxInjectFailures > 0 && failed >= hc.maxInjectFailures {
		return ReasonDeviceFailing, fmt.Errorf("%d injections failed since the last check", failed)
	}

	// Recording waits on the user, so only units that drive on their own
	// can be stuck.
	if hc.stuckTimeout > 0 && (v.Flags.Playing || v.Flags.QuestWalking) {
		idle := now.Sub(hc.lastActivityTime)
		if idle > hc.stuckTimeout {
			hc.stuckCount++
			if hc.stuckCount >= hc.stuckThreshold {
				hc.stuckCount = 0
				return ReasonStuck, fmt.Errorf("no activity for %v", idle.Round(time.Second))
			}
		} else {
			hc.stuckCount = 0
		}
	}

	if hc.screen != nil {
		if _, err := hc.screen.Bounds(); err != nil {
			return ReasonScreenUnavailable, fmt.Errorf("screen check failed: %w", err)
		}
	}
	return "", nil
}
