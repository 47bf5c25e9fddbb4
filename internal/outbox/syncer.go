// Package outbox retries delivery of messages that were queued while the
// remote store was unreachable.
package outbox

import (
	"context"
	"time"

	"github.com/omjaiswal45/Chat-App/internal/bus"
	"github.com/omjaiswal45/Chat-App/internal/remote"
	"github.com/omjaiswal45/Chat-App/internal/store"
	"go.uber.org/zap"
)

// Syncer drains the offline delivery queue against the remote message API.
// The queue is not a separate physical store: it is the subset of cache
// records still flagged offline.
type Syncer struct {
	db       *store.DB
	remote   remote.Client
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration
	cancel   context.CancelFunc
}

// NewSyncer creates a syncer. interval controls opportunistic background
// retries; reconnect events trigger an immediate pass regardless.
func NewSyncer(db *store.DB, rc remote.Client, b *bus.Bus, logger *zap.Logger, interval time.Duration) *Syncer {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Syncer{
		db:       db,
		remote:   rc,
		bus:      b,
		logger:   logger,
		interval: interval,
	}
}

// Start runs the retry loop: a periodic tick plus an immediate pass whenever
// the push channel reports a reconnect.
func (s *Syncer) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	ch, unsub := s.bus.Subscribe(bus.KindPushConnected, 16)

	go func() {
		defer unsub()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ch:
				s.runPass(ctx)
			case <-ticker.C:
				s.runPass(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the retry loop.
func (s *Syncer) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Syncer) runPass(ctx context.Context) {
	if _, err := s.SyncPending(ctx); err != nil {
		s.logger.Error("offline sync pass failed", zap.Error(err))
	}
}

// SyncPending resubmits every queued offline message from a snapshot taken
// at invocation time. Messages queued during iteration are left for the
// next pass. Safe to invoke repeatedly and concurrently with new sends:
// deletion is keyed by message id, and a failed resubmission leaves the
// record queued untouched.
func (s *Syncer) SyncPending(ctx context.Context) (int, error) {
	pending, err := s.db.ListOffline()
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	synced := 0
	for _, m := range pending {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}

		payload := remote.SendPayload{Text: m.Body, Image: m.Attachment}
		if _, err := s.remote.SendMessage(ctx, m.ConversationID, payload); err != nil {
			// Still unreachable; the record stays queued for a later pass.
			s.logger.Warn("offline resubmission failed",
				zap.Error(err), zap.String("msg_id", m.MsgID))
			continue
		}

		// The placeholder is retired rather than mutated: its confirmed
		// counterpart arrives through the next fetch or live merge.
		if err := s.db.DeleteByMessageID(m.ConversationID, m.MsgID); err != nil {
			s.logger.Error("failed to retire placeholder",
				zap.Error(err), zap.String("msg_id", m.MsgID))
			continue
		}
		synced++
		s.logger.Info("offline message delivered",
			zap.String("conversation", m.ConversationID), zap.String("msg_id", m.MsgID))
		s.bus.Emit(bus.KindMessageSynced, m)
	}
	return synced, nil
}
