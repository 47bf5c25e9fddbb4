package notify

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/omjaiswal45/Chat-App/internal/bus"
	"github.com/omjaiswal45/Chat-App/internal/push"
	"go.uber.org/zap"
)

// fakeSink records dispatched alerts.
type fakeSink struct {
	mu    sync.Mutex
	calls []fakeCall
}

type fakeCall struct {
	Title string
	Body  string
}

func (s *fakeSink) Dispatch(title, body string, _ map[string]string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fakeCall{Title: title, Body: body})
	return true
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func testDispatcher(sink Sink, signal ActivitySignal) *Dispatcher {
	logger, _ := zap.NewDevelopment()
	return NewDispatcher(sink, signal, bus.New(), 2*time.Second, logger)
}

func TestCooldownSuppressesSecondAlert(t *testing.T) {
	sink := &fakeSink{}
	d := testDispatcher(sink, NeverActive{})

	// Deterministic clock.
	now := time.UnixMilli(100000)
	d.now = func() time.Time { return now }

	if !d.HandleMessage(push.MessageEvent{SenderID: "alice", Text: "one"}) {
		t.Fatal("first message should dispatch")
	}

	// Second event 500ms later, inside the 2000ms cooldown.
	now = now.Add(500 * time.Millisecond)
	if d.HandleMessage(push.MessageEvent{SenderID: "alice", Text: "two"}) {
		t.Error("second message inside cooldown should be suppressed")
	}
	if sink.count() != 1 {
		t.Errorf("dispatched %d alerts, want exactly 1", sink.count())
	}

	// Past the cooldown the next event dispatches again.
	now = now.Add(2 * time.Second)
	if !d.HandleMessage(push.MessageEvent{SenderID: "alice", Text: "three"}) {
		t.Error("message after cooldown should dispatch")
	}
}

func TestActiveSurfaceSuppressesAll(t *testing.T) {
	sink := &fakeSink{}
	d := testDispatcher(sink, AlwaysActive{})

	d.HandleMessage(push.MessageEvent{SenderID: "alice", Text: "one"})
	d.HandleMessage(push.MessageEvent{SenderID: "alice", Text: "two"})

	if sink.count() != 0 {
		t.Errorf("dispatched %d alerts with active surface, want 0", sink.count())
	}
}

func TestDeniedSinkDoesNotStartCooldown(t *testing.T) {
	d := testDispatcher(DeniedSink{}, NeverActive{})

	now := time.UnixMilli(100000)
	d.now = func() time.Time { return now }

	if d.HandleMessage(push.MessageEvent{SenderID: "alice", Text: "one"}) {
		t.Error("denied sink should report not shown")
	}

	// Permission denial is a no-op; it must not consume the cooldown slot.
	if !d.lastDispatch.IsZero() {
		t.Error("lastDispatch set even though nothing was shown")
	}
}

func TestBodyTruncation(t *testing.T) {
	sink := &fakeSink{}
	d := testDispatcher(sink, NeverActive{})

	long := strings.Repeat("x", 300)
	d.HandleMessage(push.MessageEvent{SenderID: "alice", Text: long})

	if sink.count() != 1 {
		t.Fatal("message not dispatched")
	}
	if got := len(sink.calls[0].Body); got > bodyPreviewLen+3 {
		t.Errorf("body length = %d, want <= %d", got, bodyPreviewLen+3)
	}
}

func TestBodyTruncationKeepsValidUTF8(t *testing.T) {
	sink := &fakeSink{}
	d := testDispatcher(sink, NeverActive{})

	// 3-byte runes; the 100-byte limit falls mid-rune.
	long := strings.Repeat("世", 100)
	d.HandleMessage(push.MessageEvent{SenderID: "alice", Text: long})

	if sink.count() != 1 {
		t.Fatal("message not dispatched")
	}
	body := sink.calls[0].Body
	if !utf8.ValidString(body) {
		t.Errorf("preview is not valid UTF-8: %q", body)
	}
	if got := len(body); got > bodyPreviewLen+3 {
		t.Errorf("body length = %d, want <= %d", got, bodyPreviewLen+3)
	}
}

func TestManualSignalFollowsSurfaceEvents(t *testing.T) {
	sink := &fakeSink{}
	b := bus.New()
	signal := NewManualSignal(true)
	logger, _ := zap.NewDevelopment()
	d := NewDispatcher(sink, signal, b, 2*time.Second, logger)

	d.Start(context.Background())
	defer d.Stop()

	time.Sleep(50 * time.Millisecond)
	b.Emit(bus.KindSurfaceBlur, nil)

	deadline := time.After(2 * time.Second)
	for signal.Active() {
		select {
		case <-deadline:
			t.Fatal("signal never went inactive after surface.blur")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// With the surface blurred, a push message now raises an alert.
	b.Emit(bus.KindPushMessage, push.MessageEvent{SenderID: "alice", Text: "hi"})
	deadline = time.After(2 * time.Second)
	for sink.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("no alert dispatched after blur")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
