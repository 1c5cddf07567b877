package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"pongsync/internal/net"
)

var (
	ErrRelayRejected = errors.New("relay rejected the peer")
	ErrRelayClosed   = errors.New("relay connection closed")
)

// RelayOptions identify the peer to the relay.
type RelayOptions struct {
	URL      string // ws:// or wss:// address of the relay's /ws endpoint
	Name     string
	Room     string
	Player   int
	Password string // empty skips the login request
}

type frame struct {
	kind int
	data []byte
}

// admission is the relay's answer to hello.
type admission struct {
	welcome net.WelcomeMessage
	err     error
}

// Relay carries datagrams as binary websocket frames through the relay
// server to the other peer in the same room. Frames the local side does not
// poll in time are dropped, like datagrams.
type Relay struct {
	conn    *websocket.Conn
	send    chan frame
	recv    chan []byte
	welcome chan admission
	log     logrus.FieldLogger

	paired  atomic.Bool
	dropped atomic.Uint64

	closeOnce sync.Once
	closed    chan struct{}

	// Set by DialRelay from the welcome, read-only afterwards.
	player int
	room   string
}

// DialRelay logs in if a password is set, connects, sends hello and waits
// until the relay admits the peer to its room.
func DialRelay(ctx context.Context, opts RelayOptions, log logrus.FieldLogger) (*Relay, error) {
	header := http.Header{}
	if opts.Password != "" {
		cookie, err := Login(ctx, opts)
		if err != nil {
			return nil, err
		}
		header.Add("Cookie", (&http.Cookie{Name: cookie.Name, Value: cookie.Value}).String())
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.URL, header)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", opts.URL, err)
	}

	r := &Relay{
		conn:    conn,
		send:    make(chan frame, 256),
		recv:    make(chan []byte, 256),
		welcome: make(chan admission, 1),
		closed:  make(chan struct{}),
		log:     log.WithFields(logrus.Fields{"transport": "relay", "room": opts.Room}),
	}

	go r.readPump()
	go r.writePump()

	hello := net.HelloMessage{
		Type:    net.MsgHello,
		Name:    opts.Name,
		Room:    opts.Room,
		Player:  opts.Player,
		Version: net.RelayVersion,
	}
	if err := r.sendJSON(hello); err != nil {
		r.Close()
		return nil, err
	}

	select {
	case a := <-r.welcome:
		if a.err != nil {
			r.Close()
			return nil, a.err
		}
		r.player, r.room = a.welcome.Player, a.welcome.Room
	case <-ctx.Done():
		r.Close()
		return nil, ctx.Err()
	}
	return r, nil
}

// Login exchanges the relay password for a session cookie.
func Login(ctx context.Context, opts RelayOptions) (*http.Cookie, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("relay url: %w", err)
	}
	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	default:
		u.Scheme = "http"
	}
	u.Path = "/api/login"

	body, _ := json.Marshal(map[string]string{
		"username": opts.Name,
		"password": opts.Password,
		"roomCode": opts.Room,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay login: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: login status %s", ErrRelayRejected, resp.Status)
	}
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: no session cookie", ErrRelayRejected)
}

func (r *Relay) sendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.enqueue(frame{kind: websocket.TextMessage, data: data})
}

func (r *Relay) enqueue(f frame) error {
	select {
	case <-r.closed:
		return ErrRelayClosed
	default:
	}
	select {
	case r.send <- f:
	default:
		r.dropped.Inc()
	}
	return nil
}

// Send queues one datagram. b is copied.
func (r *Relay) Send(b []byte) error {
	return r.enqueue(frame{kind: websocket.BinaryMessage, data: append([]byte(nil), b...)})
}

func (r *Relay) Poll() ([]byte, bool) {
	select {
	case b := <-r.recv:
		return b, true
	default:
		return nil, false
	}
}

// Report summarizes the relay seat and its counters for logging.
func (r *Relay) Report() logrus.Fields {
	return logrus.Fields{
		"transport": "relay",
		"room":      r.room,
		"player":    r.player,
		"paired":    r.paired.Load(),
		"dropped":   r.dropped.Load(),
	}
}

func (r *Relay) readPump() {
	defer r.Close()

	for {
		kind, message, err := r.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				r.log.WithError(err).Warn("Relay read error")
			}
			r.admit(admission{err: ErrRelayClosed})
			return
		}

		if kind == websocket.BinaryMessage {
			select {
			case r.recv <- message:
			default:
				r.dropped.Inc()
			}
			continue
		}
		r.handleControl(message)
	}
}

func (r *Relay) handleControl(message []byte) {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &base); err != nil {
		return
	}

	switch base.Type {
	case net.MsgWelcome:
		var welcome net.WelcomeMessage
		if err := json.Unmarshal(message, &welcome); err == nil {
			r.log.WithField("player", welcome.Player).Info("Joined relay room")
			r.admit(admission{welcome: welcome})
		}

	case net.MsgPaired, net.MsgLeft:
		var peer net.PeerMessage
		if err := json.Unmarshal(message, &peer); err == nil {
			r.paired.Store(peer.Connected)
			r.log.WithFields(logrus.Fields{"peer": peer.PeerName, "connected": peer.Connected}).Info("Relay peer update")
		}

	case net.MsgError:
		var msg net.ErrorMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			r.admit(admission{err: fmt.Errorf("%w: %s", ErrRelayRejected, msg.Message)})
		}
	}
}

// admit delivers the outcome of the join to DialRelay; later calls are
// ignored.
func (r *Relay) admit(a admission) {
	select {
	case r.welcome <- a:
	default:
	}
}

func (r *Relay) writePump() {
	defer r.conn.Close()

	for {
		select {
		case f := <-r.send:
			if err := r.conn.WriteMessage(f.kind, f.data); err != nil {
				return
			}
		case <-r.closed:
			r.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (r *Relay) Close() error {
	r.closeOnce.Do(func() {
		close(r.closed)
		r.log.WithField("dropped", r.dropped.Load()).Debug("Relay transport closed")
	})
	return nil
}
