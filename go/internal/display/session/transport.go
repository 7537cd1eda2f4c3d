package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Frame is the wire envelope on the push channel, in both directions.
type Frame struct {
	ID    string          `json:"id,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// StatusKind classifies transport lifecycle changes.
type StatusKind int

const (
	StatusConnected StatusKind = iota
	StatusDisconnected
	StatusRetriesExhausted
	StatusFatal
)

// Status is one transport lifecycle change delivered to the session loop.
type Status struct {
	Kind StatusKind
	Err  error
}

// TransportConfig holds connection settings for the push channel.
type TransportConfig struct {
	SocketURL string
	Token     string

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration

	// Bounded reconnect: after MaxReconnects consecutive failures the
	// failure is surfaced, but a slow retry cadence keeps running so a
	// recovered backend still finds us.
	ReconnectWait time.Duration
	MaxReconnects int
	IdleRetryWait time.Duration

	MaxMessageSize int64
}

// DefaultTransportConfig returns the connection settings a display runs
// with unless configured otherwise.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     25 * time.Second,
		ReconnectWait:    2 * time.Second,
		MaxReconnects:    10,
		IdleRetryWait:    30 * time.Second,
		MaxMessageSize:   64 * 1024,
	}
}

// Transport owns the persistent duplex connection for one display session
// token: dial, the two-step room handshake, pumps, and reconnects. It
// never interprets payloads; frames go to the session loop as-is.
type Transport struct {
	cfg    TransportConfig
	clock  clockwork.Clock
	dialer *websocket.Dialer

	frames   chan Frame
	status   chan Status
	outbound chan Frame

	mu   sync.Mutex
	conn *websocket.Conn

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewTransport validates the token and prepares a transport. Nothing is
// dialed until Start.
func NewTransport(cfg TransportConfig, clock clockwork.Clock) (*Transport, error) {
	if cfg.Token == "" {
		return nil, ErrNoToken
	}
	return &Transport{
		cfg:   cfg,
		clock: clock,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		frames:   make(chan Frame, 64),
		status:   make(chan Status, 8),
		outbound: make(chan Frame, 32),
		done:     make(chan struct{}),
	}, nil
}

// Frames is the channel of inbound wire frames.
func (t *Transport) Frames() <-chan Frame { return t.frames }

// Status is the channel of transport lifecycle changes.
func (t *Transport) Status() <-chan Status { return t.status }

// Start launches the connect/reconnect loop.
func (t *Transport) Start() {
	t.wg.Add(1)
	go t.run()
}

// Stop closes the connection and ends the reconnect loop. Frames or
// responses in flight for this transport are never delivered afterwards.
func (t *Transport) Stop() {
	t.once.Do(func() {
		close(t.done)
		t.mu.Lock()
		if t.conn != nil {
			t.conn.Close()
		}
		t.mu.Unlock()
	})
	t.wg.Wait()
}

// Send queues one outbound frame. A full queue drops the frame rather
// than stall the session loop; the periodic resync bounds the damage.
func (t *Transport) Send(f Frame) {
	select {
	case t.outbound <- f:
	default:
		log.Warn().Str("event", f.Event).Msg("outbound queue full, dropping frame")
	}
}

// RequestGameData queues a full-snapshot pull for this session token.
func (t *Transport) RequestGameData() {
	data, _ := json.Marshal(map[string]string{"sessionId": t.cfg.Token})
	t.Send(Frame{
		ID:    uuid.New().String(),
		Event: "get_game_data",
		Data:  data,
	})
}

func (t *Transport) run() {
	defer t.wg.Done()

	attempts := 0
	exhausted := false

	for {
		select {
		case <-t.done:
			return
		default:
		}

		conn, err := t.connect()
		if err != nil {
			if errors.Is(err, ErrInvalidToken) {
				t.report(Status{Kind: StatusFatal, Err: err})
				return
			}

			attempts++
			log.Warn().Err(err).Int("attempt", attempts).Msg("push channel connect failed")

			if !exhausted && t.cfg.MaxReconnects > 0 && attempts >= t.cfg.MaxReconnects {
				exhausted = true
				t.report(Status{Kind: StatusRetriesExhausted, Err: ErrReconnectFailed})
			}

			wait := t.cfg.ReconnectWait
			if exhausted {
				wait = t.cfg.IdleRetryWait
			}
			if !t.sleep(wait) {
				return
			}
			continue
		}

		attempts = 0
		exhausted = false
		t.report(Status{Kind: StatusConnected})

		err = t.serve(conn)

		select {
		case <-t.done:
			return
		default:
		}

		log.Warn().Err(err).Msg("push channel lost")
		t.report(Status{Kind: StatusDisconnected, Err: err})

		if !t.sleep(t.cfg.ReconnectWait) {
			return
		}
	}
}

// connect dials and performs the two-step handshake: announce presence,
// join the token-scoped room, and wait for the room-join acknowledgment.
// Only after the ack does the session request its initial snapshot.
func (t *Transport) connect() (*websocket.Conn, error) {
	u, err := url.Parse(t.cfg.SocketURL)
	if err != nil {
		return nil, fmt.Errorf("parse socket url: %w", err)
	}
	q := u.Query()
	q.Set("s", t.cfg.Token)
	u.RawQuery = q.Encode()

	conn, _, err := t.dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial push channel: %w", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	if err := t.handshake(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (t *Transport) handshake(conn *websocket.Conn) error {
	deadline := time.Now().Add(t.cfg.HandshakeTimeout)

	announce, _ := json.Marshal(map[string]string{"sessionId": t.cfg.Token})
	join, _ := json.Marshal(map[string]string{"room": "display:" + t.cfg.Token})

	conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(Frame{Event: "display:announce", Data: announce}); err != nil {
		return fmt.Errorf("announce presence: %w", err)
	}
	if err := conn.WriteJSON(Frame{Event: "join_room", Data: join}); err != nil {
		return fmt.Errorf("join room: %w", err)
	}

	conn.SetReadDeadline(deadline)
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			return fmt.Errorf("await room join ack: %w", err)
		}
		switch f.Event {
		case "room_joined":
			return nil
		case "display:unauthorized":
			return ErrInvalidToken
		default:
			// Anything pushed before the ack is safe to ignore: the
			// initial snapshot request follows the ack and supersedes it.
		}
	}
}

// serve runs the read pump and the single writer until the connection
// dies or the transport stops.
func (t *Transport) serve(conn *websocket.Conn) error {
	connDone := make(chan struct{})
	var closeOnce sync.Once
	stop := func() { closeOnce.Do(func() { close(connDone); conn.Close() }) }
	defer stop()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer stop()
		t.writePump(conn, connDone)
	}()

	conn.SetReadLimit(t.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout))
		return nil
	})

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return fmt.Errorf("read push channel: %w", err)
			}
			return err
		}
		conn.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout))

		select {
		case t.frames <- f:
		case <-t.done:
			return nil
		}
	}
}

func (t *Transport) writePump(conn *websocket.Conn, connDone chan struct{}) {
	ticker := t.clock.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-connDone:
			return

		case f := <-t.outbound:
			conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
			if err := conn.WriteJSON(f); err != nil {
				log.Error().Err(err).Str("event", f.Event).Msg("failed to write frame")
				return
			}

		case <-ticker.Chan():
			conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Msg("failed to send ping")
				return
			}
		}
	}
}

func (t *Transport) report(st Status) {
	select {
	case t.status <- st:
	case <-t.done:
	}
}

// sleep waits using the transport clock; false means the transport
// stopped while waiting.
func (t *Transport) sleep(d time.Duration) bool {
	timer := t.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.Chan():
		return true
	case <-t.done:
		return false
	}
}
