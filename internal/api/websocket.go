package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"bomb-arena/internal/game"
	"bomb-arena/internal/protocol"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	maxMessageSize = 512 // intents are tiny
	writeWait      = 10 * time.Second
	joinWait       = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
)

// SessionEngine is the part of the engine a websocket session drives
type SessionEngine interface {
	Join(color string, out game.Outbox) (string, error)
	Leave(id string) bool
	Move(id string, dx, dy int) bool
	PlaceBomb(id string) bool
}

// HubConfig tunes connection admission and per-session limits
type HubConfig struct {
	MaxConnections      int
	MaxConnectionsPerIP int
	IntentsPerSecond    float64 // <= 0 disables the intent limiter
	IntentBurst         int
	SendBuffer          int      // frames queued per session before it is dropped
	AllowedOrigins      []string // browser origins; see IsAllowedOrigin
}

// DefaultHubConfig returns production defaults
func DefaultHubConfig() HubConfig {
	return HubConfig{
		MaxConnections:      MaxWSConnectionsTotal,
		MaxConnectionsPerIP: MaxWSConnectionsPerIP,
		IntentsPerSecond:    30,
		IntentBurst:         60,
		SendBuffer:          256,
		AllowedOrigins:      []string{"http://localhost:*", "http://127.0.0.1:*"},
	}
}

// WebSocketHub admits websocket clients and runs one session per connection.
// Every session is an Outbox of the engine.
type WebSocketHub struct {
	engine   SessionEngine
	cfg      HubConfig
	upgrader websocket.Upgrader
	limiter  *ConnectionLimiter

	mu       sync.RWMutex
	sessions map[*session]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewWebSocketHub creates a hub. No goroutines run until a client connects.
func NewWebSocketHub(engine SessionEngine, cfg HubConfig) *WebSocketHub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultHubConfig().SendBuffer
	}
	h := &WebSocketHub{
		engine:   engine,
		cfg:      cfg,
		limiter:  NewConnectionLimiter(cfg.MaxConnections, cfg.MaxConnectionsPerIP),
		sessions: make(map[*session]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		Subprotocols:    protocol.Subprotocols(),
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if IsAllowedOrigin(origin, h.cfg.AllowedOrigins) {
				return true
			}
			log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// HandleWebSocket upgrades the request and starts the session
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}

	if ok, reason := h.limiter.Acquire(ip); !ok {
		log.Printf("⚠️ WebSocket connection rejected from %s: %s", ip, reason)
		RecordConnectionRejected(reason)
		if reason == "ws_ip_limit" {
			http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		} else {
			http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		}
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.limiter.Release(ip)
		return
	}

	s := newSession(h, conn, ip)
	if !h.register(s) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		h.limiter.Release(ip)
		return
	}

	go s.writePump()
	go s.readPump()
}

func (h *WebSocketHub) register(s *session) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.sessions[s] = struct{}{}
	h.wg.Add(1)
	count := len(h.sessions)
	h.mu.Unlock()

	log.Printf("📱 Client connected from %s via %s (%d total)", s.ip, s.codec.Name(), count)
	UpdateWSConnections(count)
	return true
}

func (h *WebSocketHub) unregister(s *session) {
	h.mu.Lock()
	delete(h.sessions, s)
	count := len(h.sessions)
	h.mu.Unlock()

	h.limiter.Release(s.ip)
	log.Printf("📱 Client disconnected (%d remaining)", count)
	UpdateWSConnections(count)
	h.wg.Done()
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close disconnects every client, removes their actors and refuses new
// connections. It returns once all sessions have finished.
func (h *WebSocketHub) Close() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.closeWith(websocket.CloseGoingAway, "server shutting down")
	}
	h.wg.Wait()
}

// session is one websocket client. The engine pushes frames into send under
// its lock; writePump is the only goroutine writing data frames.
type session struct {
	hub     *WebSocketHub
	conn    *websocket.Conn
	ip      string
	codec   protocol.Codec
	intents *rate.Limiter
	send    chan []byte

	actorID string // owned by readPump

	closeOnce   sync.Once
	closeCode   int
	closeReason string
	done        chan struct{}
	writerDone  chan struct{}
}

func newSession(h *WebSocketHub, conn *websocket.Conn, ip string) *session {
	limit := rate.Inf
	if h.cfg.IntentsPerSecond > 0 {
		limit = rate.Limit(h.cfg.IntentsPerSecond)
	}
	burst := h.cfg.IntentBurst
	if burst <= 0 {
		burst = 1
	}
	return &session{
		hub:        h,
		conn:       conn,
		ip:         ip,
		codec:      protocol.CodecFor(conn.Subprotocol()),
		intents:    rate.NewLimiter(limit, burst),
		send:       make(chan []byte, h.cfg.SendBuffer),
		closeCode:  websocket.CloseNormalClosure,
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

// SendInit implements game.Outbox
func (s *session) SendInit(actorID string, snap game.FullSnapshot) {
	s.enqueue(protocol.NewInitMessage(actorID, snap))
}

// SendDiff implements game.Outbox
func (s *session) SendDiff(diff game.Diff) {
	s.enqueue(protocol.NewDiffMessage(diff))
}

// enqueue never blocks. A client that cannot keep up is disconnected rather
// than skipped, since a missing diff would desync its replica for good.
func (s *session) enqueue(msg interface{}) {
	select {
	case <-s.done:
		return
	default:
	}

	data, err := s.codec.Encode(msg)
	if err != nil {
		log.Printf("⚠️ Encode failed for %s: %v", s.ip, err)
		return
	}

	select {
	case s.send <- data:
	default:
		log.Printf("⚠️ Dropping slow client %s (%d frames queued)", s.ip, len(s.send))
		RecordConnectionRejected("slow_consumer")
		s.closeWith(websocket.CloseTryAgainLater, "too slow")
	}
}

func (s *session) closeWith(code int, reason string) {
	s.closeOnce.Do(func() {
		s.closeCode = code
		s.closeReason = reason
		close(s.done)
	})
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		close(s.writerDone)
	}()

	frameType := websocket.TextMessage
	if s.codec.Binary() {
		frameType = websocket.BinaryMessage
	}

	for {
		select {
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(frameType, data); err != nil {
				s.closeWith(websocket.CloseAbnormalClosure, "")
				return
			}
			IncrementWSMessages()

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.closeWith(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-s.done:
			if s.closeCode != websocket.CloseAbnormalClosure {
				s.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(s.closeCode, s.closeReason),
					time.Now().Add(writeWait))
			}
			return
		}
	}
}

func (s *session) readPump() {
	defer s.finish()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(joinWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if !s.join() {
		return
	}

	for {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("📱 Read error from %s: %v", s.ip, err)
			}
			return
		}
		s.handle(data)
	}
}

// join waits for the mandatory join intent and registers the actor
func (s *session) join() bool {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return false
	}

	intent, err := s.codec.DecodeIntent(data)
	if err != nil || intent.Kind != protocol.IntentJoin {
		RecordIntent(intent.Kind.String(), "invalid")
		RecordConnectionRejected("policy")
		s.closeWith(websocket.ClosePolicyViolation, "first message must be join")
		return false
	}

	id, err := s.hub.engine.Join(intent.Color, s)
	if err != nil {
		RecordIntent(protocol.TypeJoin, "refused")
		s.closeWith(websocket.CloseTryAgainLater, err.Error())
		return false
	}
	s.actorID = id
	RecordIntent(protocol.TypeJoin, "applied")
	return true
}

// handle applies one intent. Malformed, throttled and illegal intents are
// dropped without a reply.
func (s *session) handle(data []byte) {
	if !s.intents.Allow() {
		RecordIntent("unknown", "rate_limited")
		return
	}

	intent, err := s.codec.DecodeIntent(data)
	if err != nil {
		RecordIntent("unknown", "invalid")
		return
	}

	var ok bool
	switch intent.Kind {
	case protocol.IntentMove:
		ok = s.hub.engine.Move(s.actorID, intent.DX, intent.DY)
	case protocol.IntentBomb:
		ok = s.hub.engine.PlaceBomb(s.actorID)
	case protocol.IntentJoin:
		RecordIntent(protocol.TypeJoin, "duplicate")
		return
	}

	if ok {
		RecordIntent(intent.Kind.String(), "applied")
	} else {
		RecordIntent(intent.Kind.String(), "refused")
	}
}

// finish tears the session down once the reader stops
func (s *session) finish() {
	s.closeWith(websocket.CloseNormalClosure, "")
	<-s.writerDone
	if s.actorID != "" {
		s.hub.engine.Leave(s.actorID)
	}
	s.hub.unregister(s)
}
