package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"code_duel/internal/common"
	"code_duel/internal/domain/model"
	"code_duel/internal/platform/logger"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Dispatcher receives the duel operations players send over a socket.
type Dispatcher interface {
	JoinQueue(ctx context.Context, playerID, difficulty string) error
	LeaveQueue(ctx context.Context, playerID string) error
	RunCode(ctx context.Context, playerID, matchID, code, language string) error
	SubmitCode(ctx context.Context, playerID, matchID, code, language string) (*model.Submission, error)
	CanWatch(ctx context.Context, playerID, matchID string) bool
}

// Inbound message types.
const (
	InQueueJoin        = "queue.join"
	InQueueLeave       = "queue.leave"
	InMatchRun         = "match.run"
	InMatchSubmit      = "match.submit"
	InMatchSubscribe   = "match.subscribe"
	InMatchUnsubscribe = "match.unsubscribe"
)

type Inbound struct {
	Type       string `json:"type"`
	Difficulty string `json:"difficulty,omitempty"`
	MatchID    string `json:"match_id,omitempty"`
	Code       string `json:"code,omitempty"`
	Language   string `json:"language,omitempty"`
}

type socketError struct {
	Type    string `json:"type"`
	Request string `json:"request"`
	Message string `json:"message"`
}

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

type client struct {
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

// Hub is the WebSocket endpoint. Each connection is subscribed to its owner's
// user channels and may subscribe to the matches it plays in.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*client]struct{}
	joined   map[*client][]string

	dispatcher Dispatcher
	userID     func(*http.Request) (string, bool)
	origins    []string
	bufferSize int
}

type HubOption func(*Hub)

func WithOriginPatterns(patterns ...string) HubOption {
	return func(h *Hub) { h.origins = patterns }
}

func WithSendBuffer(n int) HubOption {
	return func(h *Hub) { h.bufferSize = n }
}

func NewHub(userID func(*http.Request) (string, bool), opts ...HubOption) *Hub {
	h := &Hub{
		channels:   make(map[string]map[*client]struct{}),
		joined:     make(map[*client][]string),
		userID:     userID,
		bufferSize: 32,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Attach sets the receiver of inbound socket messages.
func (h *Hub) Attach(d Dispatcher) {
	h.mu.Lock()
	h.dispatcher = d
	h.mu.Unlock()
}

// Send delivers to sockets connected to this process.
func (h *Hub) Send(_ context.Context, channel string, payload any) error {
	env, err := NewEnvelope(channel, payload)
	if err != nil {
		return err
	}
	h.deliver(env)
	return nil
}

func (h *Hub) deliver(env Envelope) {
	raw, err := json.Marshal(env)
	if err != nil {
		logger.L().Error("hub_marshal_failed", zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.channels[env.Channel] {
		select {
		case c.send <- raw:
		default:
			logger.L().Warn("hub_send_dropped", zap.String("user_id", c.userID), zap.String("channel", env.Channel))
		}
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(r)
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authorization token required")
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		logger.L().Warn("ws_accept_failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	c := &client{conn: conn, userID: userID, send: make(chan []byte, h.bufferSize)}
	h.subscribe(c, UserChannel(userID), RunResultChannel(userID), SubmitResultChannel(userID))
	defer h.unregister(c)
	logger.L().Info("ws_connected", zap.String("user_id", userID))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go h.writeLoop(ctx, cancel, c)

	for {
		var in Inbound
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				logger.L().Debug("ws_read_failed", zap.String("user_id", userID), zap.Error(err))
			}
			break
		}
		h.handle(ctx, c, in)
	}
	conn.Close(websocket.StatusNormalClosure, "")
	logger.L().Info("ws_disconnected", zap.String("user_id", userID))
}

func (h *Hub) writeLoop(ctx context.Context, cancel context.CancelFunc, c *client) {
	defer cancel()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.send:
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, msg)
			wcancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			pctx, pcancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			pcancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *Hub) handle(ctx context.Context, c *client, in Inbound) {
	h.mu.RLock()
	d := h.dispatcher
	h.mu.RUnlock()
	if d == nil {
		h.replyError(c, in.Type, "service not ready")
		return
	}

	var err error
	switch in.Type {
	case InQueueJoin:
		err = d.JoinQueue(ctx, c.userID, in.Difficulty)
	case InQueueLeave:
		err = d.LeaveQueue(ctx, c.userID)
	case InMatchRun:
		err = d.RunCode(ctx, c.userID, in.MatchID, in.Code, in.Language)
	case InMatchSubmit:
		_, err = d.SubmitCode(ctx, c.userID, in.MatchID, in.Code, in.Language)
	case InMatchSubscribe:
		if !d.CanWatch(ctx, c.userID, in.MatchID) {
			h.replyError(c, in.Type, common.ErrNotParticipant.Error())
			return
		}
		h.subscribe(c, MatchChannel(in.MatchID))
	case InMatchUnsubscribe:
		h.unsubscribe(c, MatchChannel(in.MatchID))
	default:
		h.replyError(c, in.Type, "unknown message type")
		return
	}

	// run/submit failures already produced an error verdict on the result channel
	if err != nil && (in.Type == InQueueJoin || in.Type == InQueueLeave) {
		h.replyError(c, in.Type, err.Error())
	}
}

func (h *Hub) replyError(c *client, request, message string) {
	env, err := NewEnvelope(UserChannel(c.userID), socketError{Type: "error", Request: request, Message: message})
	if err != nil {
		return
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return
	}
	select {
	case c.send <- raw:
	default:
	}
}

func (h *Hub) subscribe(c *client, channels ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range channels {
		set, ok := h.channels[ch]
		if !ok {
			set = make(map[*client]struct{})
			h.channels[ch] = set
		}
		if _, dup := set[c]; dup {
			continue
		}
		set[c] = struct{}{}
		h.joined[c] = append(h.joined[c], ch)
	}
}

func (h *Hub) unsubscribe(c *client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c, channel)
	chans := h.joined[c]
	for i, ch := range chans {
		if ch == channel {
			h.joined[c] = append(chans[:i:i], chans[i+1:]...)
			break
		}
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.joined[c] {
		h.dropLocked(c, ch)
	}
	delete(h.joined, c)
}

func (h *Hub) dropLocked(c *client, channel string) {
	set := h.channels[channel]
	delete(set, c)
	if len(set) == 0 {
		delete(h.channels, channel)
	}
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.joined)
}

func (h *Hub) subscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}
