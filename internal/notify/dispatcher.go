// Package notify decides whether an incoming message surfaces an
// out-of-band alert. It is independent of the message store.
package notify

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/omjaiswal45/Chat-App/internal/bus"
	"github.com/omjaiswal45/Chat-App/internal/push"
	"go.uber.org/zap"
)

const bodyPreviewLen = 100

// Sink delivers an alert to the user. The boolean reports whether the alert
// was actually shown; a sink without permission returns false instead of
// erroring.
type Sink interface {
	Dispatch(title, body string, meta map[string]string) bool
}

// ActivitySignal reports whether the viewing surface is currently
// visible/focused.
type ActivitySignal interface {
	Active() bool
}

// Dispatcher suppresses alerts while the surface is active or within the
// cooldown window after the previous dispatched alert.
type Dispatcher struct {
	sink     Sink
	signal   ActivitySignal
	bus      *bus.Bus
	cooldown time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu           sync.Mutex
	lastDispatch time.Time

	cancel context.CancelFunc
}

// NewDispatcher creates a dispatcher with the given cooldown.
func NewDispatcher(sink Sink, signal ActivitySignal, b *bus.Bus, cooldown time.Duration, logger *zap.Logger) *Dispatcher {
	if cooldown <= 0 {
		cooldown = 2 * time.Second
	}
	return &Dispatcher{
		sink:     sink,
		signal:   signal,
		bus:      b,
		cooldown: cooldown,
		logger:   logger,
		now:      time.Now,
	}
}

// Start consumes push message events and surface focus/blur signals from
// the bus.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	msgCh, unsubMsg := d.bus.Subscribe(bus.KindPushMessage, 64)
	surfCh, unsubSurf := d.bus.Subscribe("surface.", 16)

	go func() {
		defer unsubMsg()
		defer unsubSurf()
		for {
			select {
			case evt := <-msgCh:
				msg, ok := evt.Payload.(push.MessageEvent)
				if !ok {
					continue
				}
				d.HandleMessage(msg)
			case evt := <-surfCh:
				if manual, ok := d.signal.(*ManualSignal); ok {
					manual.SetActive(evt.Kind == bus.KindSurfaceFocus)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop tears down the bus subscriptions.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

// HandleMessage applies the suppression rules and dispatches the alert.
// Returns whether an alert was shown.
func (d *Dispatcher) HandleMessage(msg push.MessageEvent) bool {
	if d.signal.Active() {
		return false
	}

	now := d.now()
	d.mu.Lock()
	if !d.lastDispatch.IsZero() && now.Sub(d.lastDispatch) < d.cooldown {
		d.mu.Unlock()
		return false
	}
	d.mu.Unlock()

	shown := d.sink.Dispatch(
		"New message from "+msg.SenderID,
		truncate(msg.Text, bodyPreviewLen),
		map[string]string{"senderId": msg.SenderID},
	)
	if shown {
		d.mu.Lock()
		d.lastDispatch = now
		d.mu.Unlock()
		d.logger.Info("notification dispatched", zap.String("sender", msg.SenderID))
	}
	return shown
}

// truncate cuts s to at most maxLen bytes on a rune boundary.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
