package push

import (
	"context"
	"encoding/json"
	"time"

	"github.com/omjaiswal45/Chat-App/internal/bus"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	reconnectBase = time.Second
	reconnectMax  = 30 * time.Second
)

// frame is the wire envelope for push events.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WSSource is a websocket-backed Source with automatic reconnect.
type WSSource struct {
	url    string
	token  string
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewWSSource creates a websocket push source for the given URL.
func NewWSSource(url, token string, b *bus.Bus, logger *zap.Logger) *WSSource {
	return &WSSource{
		url:    url,
		token:  token,
		bus:    b,
		logger: logger,
	}
}

// Start begins the connect/read/reconnect loop in the background.
func (s *WSSource) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
	return nil
}

// Stop tears down the connection loop.
func (s *WSSource) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *WSSource) loop(ctx context.Context) {
	backoff := reconnectBase
	for {
		if ctx.Err() != nil {
			return
		}

		err := s.run(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("push connection lost", zap.Error(err), zap.Duration("retry_in", backoff))
		s.bus.Emit(bus.KindPushDisconnected, nil)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

func (s *WSSource) run(ctx context.Context) error {
	opts := &websocket.DialOptions{}
	if s.token != "" {
		opts.HTTPHeader = map[string][]string{"Authorization": {"Bearer " + s.token}}
	}

	conn, _, err := websocket.Dial(ctx, s.url, opts)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	s.logger.Info("push connected", zap.String("url", s.url))
	s.bus.Emit(bus.KindPushConnected, nil)

	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			return err
		}
		s.handleFrame(f)
	}
}

func (s *WSSource) handleFrame(f frame) {
	switch f.Event {
	case "newMessage":
		var evt MessageEvent
		if err := json.Unmarshal(f.Data, &evt); err != nil {
			s.logger.Warn("malformed push message", zap.Error(err))
			return
		}
		s.bus.Emit(bus.KindPushMessage, evt)
	default:
		// Unknown events (typing indicators etc.) are ignored here.
	}
}
