package engine

import (
	"context"

	"github.com/omjaiswal45/Chat-App/internal/bus"
	"github.com/omjaiswal45/Chat-App/internal/push"
	"github.com/omjaiswal45/Chat-App/internal/store"
	"go.uber.org/zap"
)

// StartLive subscribes the session to push message events and folds them
// into the active conversation's view and the local cache.
func (s *Session) StartLive(ctx context.Context) {
	ctx, s.cancelLive = context.WithCancel(ctx)
	ch, unsub := s.bus.Subscribe(bus.KindPushMessage, 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				msg, ok := evt.Payload.(push.MessageEvent)
				if !ok {
					continue
				}
				s.mergeLive(msg)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StopLive tears down the push subscription.
func (s *Session) StopLive() {
	if s.cancelLive != nil {
		s.cancelLive()
	}
}

// mergeLive applies one push event. Events from senders other than the
// selected counterpart are ignored; echoes of messages this client queued
// are dropped by sender+content+timestamp match. Live events are appended
// in arrival order, never re-sorted: push delivery is server-ordered.
func (s *Session) mergeLive(evt push.MessageEvent) {
	s.mu.Lock()
	conv := s.selected
	if evt.SenderID != conv || s.isDuplicateLocked(evt) {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	sm := store.Message{
		ConversationID: conv,
		MsgID:          evt.ID,
		SenderID:       evt.SenderID,
		ReceiverID:     evt.ReceiverID,
		Body:           evt.Text,
		Attachment:     evt.Image,
		CreatedAt:      evt.CreatedAt.UnixMilli(),
	}
	// Best-effort: the message still reaches the view when the cache write
	// fails.
	if _, err := s.db.Put(conv, &sm); err != nil {
		s.logger.Warn("cache write failed for live message", zap.Error(err), zap.String("msg_id", sm.MsgID))
	}
	s.append(conv, sm)
}

// isDuplicateLocked reports whether the event is already represented in the
// view, either by id or as a near-simultaneous echo of the same content
// from the same sender. Caller holds s.mu.
func (s *Session) isDuplicateLocked(evt push.MessageEvent) bool {
	tolerance := s.echoWindow.Milliseconds()
	ts := evt.CreatedAt.UnixMilli()
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if m.MsgID == evt.ID {
			return true
		}
		if m.SenderID == evt.SenderID && m.Body == evt.Text && absDiff(m.CreatedAt, ts) <= tolerance {
			return true
		}
	}
	return false
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
