package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"bomb-arena/internal/protocol"

	"github.com/gorilla/websocket"
)

// ErrNoInit is returned when the server's first message is not an init
var ErrNoInit = errors.New("bot: expected init message")

const writeWait = 5 * time.Second

// Config configures one bot
type Config struct {
	URL         string // ws://host:port/ws
	Color       string
	Subprotocol string        // "json" or "msgpack"
	Interval    time.Duration // time between intents
	BombChance  float64       // probability an intent is a bomb
	Rand        *rand.Rand
	Origin      string // sent as the Origin header when set
}

// DefaultConfig returns a bot that acts four times a second
func DefaultConfig(url string) Config {
	return Config{
		URL:         url,
		Color:       "#00aaff",
		Subprotocol: protocol.SubprotocolJSON,
		Interval:    250 * time.Millisecond,
		BombChance:  0.15,
	}
}

// Bot is one connected client. After Dial a reader goroutine keeps the
// replica current; Start adds the intent dispatcher.
type Bot struct {
	cfg       Config
	conn      *websocket.Conn
	codec     protocol.Codec
	frameType int

	mu      sync.Mutex
	replica *Replica
	readErr error

	rng        *rand.Rand
	quit       chan struct{}
	startOnce  sync.Once
	stopOnce   sync.Once
	closeOnce  sync.Once
	readerDone chan struct{}
	wg         sync.WaitGroup

	sent     atomic.Uint64
	received atomic.Uint64
}

// Dial connects, joins and waits for the init message
func Dial(ctx context.Context, cfg Config) (*Bot, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig("").Interval
	}
	if cfg.Subprotocol == "" {
		cfg.Subprotocol = protocol.SubprotocolJSON
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		Subprotocols:     []string{cfg.Subprotocol},
	}
	var header http.Header
	if cfg.Origin != "" {
		header = http.Header{"Origin": []string{cfg.Origin}}
	}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("bot: dial %s: %w", cfg.URL, err)
	}

	b := &Bot{
		cfg:        cfg,
		conn:       conn,
		codec:      protocol.CodecFor(conn.Subprotocol()),
		rng:        rng,
		quit:       make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	b.frameType = websocket.TextMessage
	if b.codec.Binary() {
		b.frameType = websocket.BinaryMessage
	}

	if err := b.write(protocol.JoinMessage(cfg.Color)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bot: join: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}
	replica, err := b.readInit()
	if err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetReadDeadline(time.Time{})
	b.replica = replica

	go b.readLoop()
	return b, nil
}

func (b *Bot) readInit() (*Replica, error) {
	_, data, err := b.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("bot: read init: %w", err)
	}
	var env protocol.Envelope
	if err := b.codec.Decode(data, &env); err != nil || env.Type != protocol.TypeInit {
		return nil, ErrNoInit
	}
	var init protocol.InitMessage
	if err := b.codec.Decode(data, &init); err != nil {
		return nil, fmt.Errorf("bot: decode init: %w", err)
	}
	b.received.Add(1)
	return NewReplica(init)
}

// readLoop applies diffs until the connection closes
func (b *Bot) readLoop() {
	defer close(b.readerDone)

	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			b.mu.Lock()
			b.readErr = err
			b.mu.Unlock()
			return
		}
		b.received.Add(1)

		var env protocol.Envelope
		if err := b.codec.Decode(data, &env); err != nil || env.Type != protocol.TypeDiff {
			continue
		}
		var diff protocol.DiffMessage
		if err := b.codec.Decode(data, &diff); err != nil {
			log.Printf("⚠️ Bot %s: bad diff: %v", b.ID(), err)
			continue
		}

		b.mu.Lock()
		b.replica.Apply(diff)
		b.mu.Unlock()
	}
}

// Start begins the intent dispatcher. Only the first call does anything and
// reports true; a second dispatcher would break the single writer.
func (b *Bot) Start() bool {
	started := false
	b.startOnce.Do(func() {
		started = true
		b.wg.Add(1)
		go b.dispatcher()
	})
	return started
}

// Stop halts the dispatcher. The replica keeps following the server until
// Close.
func (b *Bot) Stop() {
	b.stopOnce.Do(func() { close(b.quit) })
	b.wg.Wait()
}

// Close stops the bot, leaves the arena and waits for the reader
func (b *Bot) Close() {
	b.Stop()
	b.closeOnce.Do(func() {
		b.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		select {
		case <-b.readerDone:
		case <-time.After(writeWait):
		}
		b.conn.Close()
		<-b.readerDone
	})
}

// Done is closed when the connection is gone
func (b *Bot) Done() <-chan struct{} {
	return b.readerDone
}

// Err returns the error that ended the reader, if any
func (b *Bot) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readErr
}

// ID returns the actor id assigned by the server
func (b *Bot) ID() string {
	return b.replica.Self
}

// Replica returns a copy of the current replica
func (b *Bot) Replica() *Replica {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.replica.Clone()
}

// Stats returns frame counters
func (b *Bot) Stats() (sent, received uint64) {
	return b.sent.Load(), b.received.Load()
}

func (b *Bot) dispatcher() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.quit:
			return
		case <-b.readerDone:
			return
		case <-ticker.C:
			msg, ok := b.nextIntent()
			if !ok {
				continue
			}
			if err := b.write(msg); err != nil {
				log.Printf("⚠️ Bot %s: write failed: %v", b.ID(), err)
				return
			}
		}
	}
}

var directions = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// nextIntent picks a bomb or a step into a walkable neighbour. Dead actors
// and boxed-in actors that roll a move stay quiet.
func (b *Bot) nextIntent() (protocol.ClientMessage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	self, ok := b.replica.Players[b.replica.Self]
	if !ok || !self.Alive {
		return protocol.ClientMessage{}, false
	}

	if b.rng.Float64() < b.cfg.BombChance {
		return protocol.BombMessage(), true
	}

	for _, i := range b.rng.Perm(len(directions)) {
		d := directions[i]
		if !b.replica.Cell(self.X+d[0], self.Y+d[1]).BlocksMovement() {
			return protocol.MoveMessage(d[0], d[1]), true
		}
	}
	return protocol.ClientMessage{}, false
}

// write is called by Dial before the reader starts and afterwards only by
// the dispatcher, so there is one writer at a time
func (b *Bot) write(msg protocol.ClientMessage) error {
	data, err := b.codec.Encode(msg)
	if err != nil {
		return err
	}
	b.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := b.conn.WriteMessage(b.frameType, data); err != nil {
		return err
	}
	b.sent.Add(1)
	return nil
}
