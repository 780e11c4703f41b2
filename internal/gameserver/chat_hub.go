package gameserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/corsair/internal/game/chat"
	"github.com/cory-johannsen/corsair/internal/game/session"
	"github.com/cory-johannsen/corsair/internal/ratelimit"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 4096
)

// Chat frame types.
const (
	frameHistory = "history"
	frameMessage = "message"
	frameError   = "error"
)

// chatFrame is the JSON envelope of every server-to-client chat frame.
type chatFrame struct {
	Type     string         `json:"type"`
	Message  *chat.Message  `json:"message,omitempty"`
	Messages []chat.Message `json:"messages,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// chatInbound is what clients send.
type chatInbound struct {
	Message string `json:"message"`
}

// ChatHub runs the shared chat room: history on connect, validated and throttled posts,
// persistence, then fan-out to every attached connection.
type ChatHub struct {
	store      ChatStore
	sessions   *session.Manager
	limiter    *ratelimit.Limiter
	history    int
	outboxSize int
	now        func() time.Time
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewChatHub creates a ChatHub. A nil clock selects time.Now.
//
// Precondition: store, sessions, limiter and logger must be non-nil; history must be > 0.
func NewChatHub(store ChatStore, sessions *session.Manager, limiter *ratelimit.Limiter, history, outboxSize int, clock func() time.Time, logger *zap.Logger) *ChatHub {
	if clock == nil {
		clock = time.Now
	}
	return &ChatHub{
		store:      store,
		sessions:   sessions,
		limiter:    limiter,
		history:    history,
		outboxSize: outboxSize,
		now:        clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// History returns the most recent messages, oldest first.
func (h *ChatHub) History(ctx context.Context) ([]chat.Message, error) {
	return h.store.Recent(ctx, h.history)
}

// Post validates, throttles, stores and broadcasts body from the session's active character.
//
// Postcondition: Returns the stored message, ErrNoCharacterSelected, a *RateLimitError or a
// chat validation error. Nothing is stored or broadcast on error.
func (h *ChatHub) Post(ctx context.Context, sess session.Info, body string) (chat.Message, error) {
	if !sess.HasCharacter() {
		return chat.Message{}, ErrNoCharacterSelected
	}
	msg, err := chat.New(sess.CharacterName, body, h.now())
	if err != nil {
		return chat.Message{}, err
	}
	if ok, retry := h.limiter.Allow(fmt.Sprintf("account:%d", sess.AccountID)); !ok {
		return chat.Message{}, &RateLimitError{RetryAfter: retry}
	}
	stored, err := h.store.Append(ctx, msg)
	if err != nil {
		return chat.Message{}, err
	}
	h.broadcast(chatFrame{Type: frameMessage, Message: &stored})
	return stored, nil
}

func (h *ChatHub) broadcast(f chatFrame) {
	data, err := json.Marshal(f)
	if err != nil {
		h.logger.Error("encoding chat frame", zap.Error(err))
		return
	}
	for _, o := range h.sessions.Outboxes() {
		if err := o.Push(data); err != nil && !errors.Is(err, session.ErrOutboxClosed) {
			h.logger.Warn("dropping chat frame", zap.String("conn_id", o.ConnID()), zap.Error(err))
		}
	}
}

// Serve upgrades the request to a websocket attached to sess and pumps frames until the
// client disconnects or the session ends.
func (h *ChatHub) Serve(w http.ResponseWriter, r *http.Request, sess session.Info) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	outbox := session.NewOutbox(uuid.NewString(), h.outboxSize)
	if err := h.sessions.Attach(sess.ID, outbox); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session expired"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	logger := h.logger.With(zap.String("conn_id", outbox.ConnID()), zap.Int64("account_id", sess.AccountID))
	logger.Debug("chat connected")

	history, err := h.History(r.Context())
	if err != nil {
		logger.Error("loading chat history", zap.Error(err))
		history = nil
	}
	if data, err := json.Marshal(chatFrame{Type: frameHistory, Messages: history}); err == nil {
		_ = outbox.Push(data)
	}

	done := make(chan struct{})
	go h.writePump(conn, outbox, done, logger)
	h.readPump(r.Context(), conn, outbox, sess, logger)
	h.sessions.Detach(sess.ID, outbox.ConnID())
	<-done
	logger.Debug("chat disconnected")
}

func (h *ChatHub) readPump(ctx context.Context, conn *websocket.Conn, outbox *session.Outbox, sess session.Info, logger *zap.Logger) {
	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var in chatInbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("chat read failed", zap.Error(err))
			}
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				h.reply(outbox, "invalid frame")
				continue
			}
			return
		}
		if _, err := h.Post(ctx, sess, in.Message); err != nil {
			h.reply(outbox, errorText(err))
		}
	}
}

func (h *ChatHub) reply(outbox *session.Outbox, text string) {
	if data, err := json.Marshal(chatFrame{Type: frameError, Error: text}); err == nil {
		_ = outbox.Push(data)
	}
}

func (h *ChatHub) writePump(conn *websocket.Conn, outbox *session.Outbox, done chan<- struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
		close(done)
	}()
	for {
		select {
		case frame, ok := <-outbox.Frames():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Debug("chat write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
