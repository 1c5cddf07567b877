package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"pongsync/internal/net"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev
	},
}

type outbound struct {
	kind int
	data []byte
}

// Connection is one peer's websocket. Control messages are text frames,
// datagrams are binary frames passed through untouched.
type Connection struct {
	conn *websocket.Conn
	send chan outbound
	mm   *Matchmaking
	log  logrus.FieldLogger

	session *Session

	// Guarded by mm.mu.
	room *Room
	seat int
	name string
}

func NewConnection(conn *websocket.Conn, mm *Matchmaking, session *Session, log logrus.FieldLogger) *Connection {
	return &Connection{
		conn:    conn,
		send:    make(chan outbound, 256),
		mm:      mm,
		session: session,
		log:     log.WithField("remote", conn.RemoteAddr().String()),
	}
}

func (c *Connection) SendMessage(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.WithError(err).Error("Error marshaling message")
		return
	}
	select {
	case c.send <- outbound{kind: websocket.TextMessage, data: data}:
	default:
		c.log.Warn("Send buffer full, control message dropped")
	}
}

// SendDatagram queues data without blocking and reports whether it fit.
func (c *Connection) SendDatagram(data []byte) bool {
	select {
	case c.send <- outbound{kind: websocket.BinaryMessage, data: data}:
		return true
	default:
		return false
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.mm.Leave(c)
		close(c.send)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		kind, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("WebSocket error")
			}
			break
		}
		// Any traffic keeps the connection alive.
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		if kind == websocket.BinaryMessage {
			c.mm.Forward(c, message)
			continue
		}

		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &base); err != nil {
			continue
		}

		switch base.Type {
		case net.MsgHello:
			var hello net.HelloMessage
			if err := json.Unmarshal(message, &hello); err != nil {
				continue
			}
			if c.session != nil {
				hello.Room, hello.Name = c.session.RoomCode, c.session.PlayerName
			}
			if err := c.mm.Join(c, hello); err != nil {
				c.log.WithError(err).Warn("Join refused")
				c.SendMessage(net.ErrorMessage{Type: net.MsgError, Message: err.Error()})
			}
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(message.kind, message.data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HandleWebSocket upgrades peers onto the relay. When the session store
// requires a login, the request must carry a valid session cookie, and the
// session's room and name override whatever the hello says.
func HandleWebSocket(mm *Matchmaking, ss *SessionStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var session *Session
		if ss.Required() {
			s, ok := ss.FromRequest(r)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			session = s
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.WithError(err).Warn("WebSocket upgrade error")
			return
		}

		c := NewConnection(conn, mm, session, log)
		go c.writePump()
		go c.readPump()

		c.log.Info("Client connected")
	}
}

// HandleRooms lists the open rooms as JSON.
func HandleRooms(mm *Matchmaking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mm.Rooms())
	}
}
