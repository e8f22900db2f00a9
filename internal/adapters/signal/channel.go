// Package signal is the client side of the relay protocol: it dials the
// relay over websocket and exposes typed send/receive events.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrChannelClosed = errors.New("channel closed")
)

// envelope is the wire frame shared with the relay.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Channel struct {
	conn   *websocket.Conn
	send   chan []byte
	events chan core.InboundEvent
	cancel context.CancelFunc

	// chat and typing events are throttled so a stuck UI cannot flood
	// the relay; all other events pass through.
	chatLimiter *rate.Limiter

	mu     sync.RWMutex
	closed bool
}

type Options struct {
	ChatRatePerSec float64
	ChatBurst      int
}

type joinPayload struct {
	RoomID      domain.RoomID `json:"roomId"`
	UserID      domain.UserID `json:"userId"`
	DisplayName string        `json:"displayName"`
}

// Connect dials the relay and announces the local participant.
// The caller owns the returned channel and must Close() it.
func Connect(ctx context.Context, url string, roomID domain.RoomID, identity domain.Identity, opts Options) (*Channel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	if opts.ChatRatePerSec <= 0 {
		opts.ChatRatePerSec = 2
	}
	if opts.ChatBurst <= 0 {
		opts.ChatBurst = 5
	}

	ctx, cancel := context.WithCancel(ctx)
	ch := &Channel{
		conn:        conn,
		send:        make(chan []byte, 32),
		events:      make(chan core.InboundEvent, 64),
		cancel:      cancel,
		chatLimiter: rate.NewLimiter(rate.Limit(opts.ChatRatePerSec), opts.ChatBurst),
	}

	go ch.writePump(ctx)
	go ch.readPump(ctx)

	if err := ch.Send(core.EvJoinRoom, joinPayload{
		RoomID:      roomID,
		UserID:      identity.UserID,
		DisplayName: identity.DisplayName,
	}); err != nil {
		ch.Close()
		return nil, err
	}

	log.Info().Str("module", "signal").Str("room", string(roomID)).Str("user", string(identity.UserID)).Msg("connected to relay")
	return ch, nil
}

func (c *Channel) Send(event string, v any) error {
	if isThrottled(event) && !c.chatLimiter.Allow() {
		log.Warn().Str("module", "signal").Str("event", event).Msg("throttled")
		return ErrBackpressure
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrChannelClosed
	}
	select {
	case c.send <- frame:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Channel) Events() <-chan core.InboundEvent { return c.events }

func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
	c.cancel()
}

func isThrottled(event string) bool {
	switch event {
	case core.EvChatMessage, core.EvTypingStart, core.EvTypingStop, core.EvEmojiReaction:
		return true
	}
	return false
}
