package notify

import (
	"sync"

	"go.uber.org/zap"
)

// AlwaysActive is an ActivitySignal for surfaces that are never backgrounded
// (headless operation suppresses all alerts).
type AlwaysActive struct{}

// Active implements ActivitySignal.
func (AlwaysActive) Active() bool { return true }

// NeverActive is an ActivitySignal for surfaces with no focus tracking at
// all; every incoming message is eligible for an alert.
type NeverActive struct{}

// Active implements ActivitySignal.
func (NeverActive) Active() bool { return false }

// ManualSignal is an ActivitySignal driven by explicit focus/blur updates,
// typically fed from surface.* bus events.
type ManualSignal struct {
	mu     sync.Mutex
	active bool
}

// NewManualSignal creates a signal that starts in the given state.
func NewManualSignal(active bool) *ManualSignal {
	return &ManualSignal{active: active}
}

// Active implements ActivitySignal.
func (s *ManualSignal) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SetActive records a visibility/focus transition.
func (s *ManualSignal) SetActive(active bool) {
	s.mu.Lock()
	s.active = active
	s.mu.Unlock()
}

// LogSink writes alerts to the logger. It stands in for an OS notification
// backend and always reports the alert as shown.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a logging sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Dispatch implements Sink.
func (s *LogSink) Dispatch(title, body string, meta map[string]string) bool {
	s.logger.Info("notification",
		zap.String("title", title),
		zap.String("body", body),
		zap.Any("meta", meta))
	return true
}

// DeniedSink models absent notification permission: dispatch is a silent
// no-op that reports the alert as not shown.
type DeniedSink struct{}

// Dispatch implements Sink.
func (DeniedSink) Dispatch(string, string, map[string]string) bool { return false }
