// Package engine reconciles the local message cache with the remote store
// of record and maintains the published conversation view.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/omjaiswal45/Chat-App/internal/bus"
	"github.com/omjaiswal45/Chat-App/internal/loadstate"
	"github.com/omjaiswal45/Chat-App/internal/remote"
	"github.com/omjaiswal45/Chat-App/internal/store"
	"go.uber.org/zap"
)

// ErrNotFound is returned when neither the cache nor the remote store has
// any data for a conversation. It is a report to the caller, not a fault.
var ErrNotFound = errors.New("no messages available for conversation")

// ErrQueuedOffline is returned by Send when the remote store was unreachable
// and the message was queued locally instead of delivered.
var ErrQueuedOffline = errors.New("message queued for offline delivery")

// Options configures a Session.
type Options struct {
	UserID       string
	FetchTimeout time.Duration
	// EchoWindow is the timestamp tolerance for discarding a push echo of a
	// message this client queued itself (no client-side id is exchanged
	// before server confirmation).
	EchoWindow time.Duration
}

// Session owns the selected conversation, its published message view, and
// the offline flag. The view is a disposable projection: everything in it
// can be rebuilt from the local store plus the last remote fetch.
type Session struct {
	db      *store.DB
	remote  remote.Client
	bus     *bus.Bus
	machine *loadstate.Machine
	logger  *zap.Logger

	userID       string
	fetchTimeout time.Duration
	echoWindow   time.Duration

	mu                sync.Mutex
	selected          string
	generation        uint64
	messages          []store.Message
	offline           bool
	lastOfflineMillis int64

	cancelLive context.CancelFunc
}

// NewSession creates a session over the given collaborators.
func NewSession(db *store.DB, rc remote.Client, b *bus.Bus, m *loadstate.Machine, logger *zap.Logger, opts Options) *Session {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.EchoWindow <= 0 {
		opts.EchoWindow = 5 * time.Second
	}
	return &Session{
		db:           db,
		remote:       rc,
		bus:          b,
		machine:      m,
		logger:       logger,
		userID:       opts.UserID,
		fetchTimeout: opts.FetchTimeout,
		echoWindow:   opts.EchoWindow,
	}
}

// Load selects a conversation and runs the three-phase reconciliation:
// local read, optimistic publish, remote fetch and merge. The cached view is
// published before the network is touched. A load superseded by a newer one
// discards its remote result instead of overwriting the newer view.
func (s *Session) Load(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.selected = conversationID
	s.messages = nil
	s.offline = false
	s.mu.Unlock()

	_ = s.machine.Transition(loadstate.LoadingLocal)

	cached, err := s.db.ListByConversation(conversationID)
	if err != nil {
		// Degrade to remote-only; storage trouble is never fatal here.
		s.logger.Warn("local cache read failed", zap.Error(err), zap.String("conversation", conversationID))
		cached = nil
	}
	s.publish(gen, cached)
	_ = s.machine.Transition(loadstate.LocalLoaded)

	_ = s.machine.Transition(loadstate.FetchingRemote)
	fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	remoteMsgs, rerr := s.remote.ListMessages(fctx, conversationID)

	if s.stale(gen) {
		// A newer Load took over; this result must not touch the view.
		return nil
	}

	if rerr != nil {
		_ = s.machine.Transition(loadstate.RemoteFailed)
		s.setOffline(gen, true)
		s.logger.Warn("remote fetch failed, serving cached view",
			zap.Error(rerr), zap.String("conversation", conversationID), zap.Int("cached", len(cached)))
		if len(cached) == 0 {
			return fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
		}
		return nil
	}

	// Remote is authoritative for confirmed messages: write every record
	// through to the cache and replace the view with the remote list.
	// Offline placeholders stay in the store untouched; they belong to the
	// delivery queue until independently confirmed.
	view := make([]store.Message, 0, len(remoteMsgs))
	for _, rm := range remoteMsgs {
		sm := fromRemote(conversationID, rm)
		if _, perr := s.db.Put(conversationID, &sm); perr != nil {
			s.logger.Warn("cache write failed during merge", zap.Error(perr), zap.String("msg_id", sm.MsgID))
		}
		view = append(view, sm)
	}
	sort.SliceStable(view, func(i, j int) bool { return view[i].CreatedAt < view[j].CreatedAt })

	_ = s.machine.Transition(loadstate.Merged)
	s.setOffline(gen, false)
	s.publish(gen, view)
	return nil
}

// Send submits a message to the selected conversation. On remote failure a
// placeholder is synthesized, cached, and appended to the view; the caller
// gets ErrQueuedOffline rather than a delivery failure.
func (s *Session) Send(ctx context.Context, p remote.SendPayload) (store.Message, error) {
	s.mu.Lock()
	conv := s.selected
	s.mu.Unlock()
	if conv == "" {
		return store.Message{}, errors.New("no conversation selected")
	}

	fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	rm, err := s.remote.SendMessage(fctx, conv, p)
	if err == nil {
		sm := fromRemote(conv, *rm)
		if _, perr := s.db.Put(conv, &sm); perr != nil {
			s.logger.Warn("cache write failed after send", zap.Error(perr), zap.String("msg_id", sm.MsgID))
		}
		s.append(conv, sm)
		s.bus.Emit(bus.KindMessageSent, sm)
		return sm, nil
	}

	stamp := s.nextOfflineStamp(time.Now())
	sm := store.Message{
		ConversationID: conv,
		MsgID:          fmt.Sprintf("offline_%d", stamp),
		SenderID:       s.userID,
		ReceiverID:     conv,
		Body:           p.Text,
		Attachment:     p.Image,
		IsOffline:      true,
		CreatedAt:      stamp,
	}
	if _, perr := s.db.Put(conv, &sm); perr != nil {
		// The message survives only in the in-memory view; still queued
		// from the caller's perspective.
		s.logger.Error("failed to persist offline placeholder", zap.Error(perr))
	}
	s.markOffline(conv)
	s.append(conv, sm)
	s.logger.Info("message queued offline",
		zap.String("conversation", conv), zap.String("msg_id", sm.MsgID))
	s.bus.Emit(bus.KindMessageQueued, sm)
	return sm, ErrQueuedOffline
}

// Users returns the chat counterparts from the remote store.
func (s *Session) Users(ctx context.Context) ([]remote.User, error) {
	fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	return s.remote.ListUsers(fctx)
}

// ClearConversation removes one conversation's cached records. If it is the
// selected conversation the published view is reset as well.
func (s *Session) ClearConversation(conversationID string) error {
	if err := s.db.Clear(conversationID); err != nil {
		return err
	}
	s.mu.Lock()
	if s.selected == conversationID {
		s.messages = nil
	}
	s.mu.Unlock()
	s.bus.Emit(bus.KindViewUpdated, conversationID)
	return nil
}

// ClearAll removes every cached record and resets the view.
func (s *Session) ClearAll() error {
	if err := s.db.ClearAll(); err != nil {
		return err
	}
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()
	s.bus.Emit(bus.KindViewUpdated, "")
	return nil
}

// Stats reports cache totals for display.
func (s *Session) Stats() (*store.Stats, error) {
	return s.db.Stats()
}

// Messages returns a copy of the published view, ordered by created_at.
func (s *Session) Messages() []store.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// IsOffline reports whether the last remote interaction failed.
func (s *Session) IsOffline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offline
}

// Selected returns the currently selected conversation id.
func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *Session) stale(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen != s.generation
}

// publish replaces the view if gen is still the active load.
func (s *Session) publish(gen uint64, msgs []store.Message) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.messages = msgs
	conv := s.selected
	s.mu.Unlock()
	s.bus.Emit(bus.KindViewUpdated, conv)
}

// append adds one message to the view if conv is still selected.
func (s *Session) append(conv string, m store.Message) {
	s.mu.Lock()
	if s.selected != conv {
		s.mu.Unlock()
		return
	}
	s.messages = append(s.messages, m)
	s.mu.Unlock()
	s.bus.Emit(bus.KindViewUpdated, conv)
}

func (s *Session) setOffline(gen uint64, v bool) {
	s.mu.Lock()
	if gen == s.generation {
		s.offline = v
	}
	s.mu.Unlock()
}

// nextOfflineStamp returns a strictly increasing millisecond timestamp for
// placeholder ids. Two sends landing in the same millisecond must not
// collide on (conversation_id, msg_id): the upsert would swallow the first
// queued message.
func (s *Session) nextOfflineStamp(now time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms := now.UnixMilli()
	if ms <= s.lastOfflineMillis {
		ms = s.lastOfflineMillis + 1
	}
	s.lastOfflineMillis = ms
	return ms
}

func (s *Session) markOffline(conv string) {
	s.mu.Lock()
	if s.selected == conv {
		s.offline = true
	}
	s.mu.Unlock()
}

func fromRemote(conversationID string, rm remote.Message) store.Message {
	return store.Message{
		ConversationID: conversationID,
		MsgID:          rm.ID,
		SenderID:       rm.SenderID,
		ReceiverID:     rm.ReceiverID,
		Body:           rm.Text,
		Attachment:     rm.Image,
		IsOffline:      false,
		CreatedAt:      rm.CreatedAt.UnixMilli(),
	}
}
