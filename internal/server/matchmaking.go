package server

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"pongsync/internal/net"
)

var (
	ErrRoomFull      = errors.New("room is full")
	ErrSeatTaken     = errors.New("player seat already taken")
	ErrBadPlayer     = errors.New("player must be 0 or 1")
	ErrBadVersion    = errors.New("relay version mismatch")
	ErrRoomRequired  = errors.New("room code is required")
	ErrAlreadyJoined = errors.New("connection already has a seat")
)

// Room pairs the two participants of one lockstep session. Seat i holds the
// connection for player i.
type Room struct {
	Code      string
	Seats     [2]*Connection
	CreatedAt time.Time
}

func (r *Room) empty() bool { return r.Seats[0] == nil && r.Seats[1] == nil }

// RoomInfo is the public view of a room.
type RoomInfo struct {
	Code    string    `json:"code"`
	Players [2]string `json:"players"`
	Created time.Time `json:"created"`
}

// Matchmaking keeps the rooms, in the order they were opened, and forwards
// datagrams between the two seats of each.
type Matchmaking struct {
	rooms *orderedmap.OrderedMap[string, *Room]
	mu    sync.Mutex
	log   logrus.FieldLogger

	forwarded atomic.Uint64
	dropped   atomic.Uint64
	orphaned  atomic.Uint64
}

func NewMatchmaking(log logrus.FieldLogger) *Matchmaking {
	return &Matchmaking{
		rooms: orderedmap.NewOrderedMap[string, *Room](),
		log:   log,
	}
}

// Join seats conn in the room named by hello. The room is created on first
// use. When both seats are filled each side is told about the other.
func (m *Matchmaking) Join(conn *Connection, hello net.HelloMessage) error {
	if hello.Version != net.RelayVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrBadVersion, hello.Version, net.RelayVersion)
	}
	if hello.Room == "" {
		return ErrRoomRequired
	}
	if hello.Player != 0 && hello.Player != 1 {
		return ErrBadPlayer
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// One seat per connection: Leave frees only conn.room/conn.seat.
	if conn.room != nil {
		return fmt.Errorf("%w: room %s seat %d", ErrAlreadyJoined, conn.room.Code, conn.seat)
	}

	room, ok := m.rooms.Get(hello.Room)
	if !ok {
		room = &Room{Code: hello.Room, CreatedAt: time.Now()}
		m.rooms.Set(hello.Room, room)
		m.log.WithField("room", hello.Room).Info("Opened room")
	}
	if room.Seats[0] != nil && room.Seats[1] != nil {
		return ErrRoomFull
	}
	if room.Seats[hello.Player] != nil {
		return fmt.Errorf("%w: %d", ErrSeatTaken, hello.Player)
	}

	room.Seats[hello.Player] = conn
	conn.room, conn.seat, conn.name = room, hello.Player, hello.Name

	conn.SendMessage(net.WelcomeMessage{Type: net.MsgWelcome, Room: room.Code, Player: hello.Player})
	m.log.WithFields(logrus.Fields{"room": room.Code, "player": hello.Player, "name": hello.Name}).Info("Player joined")

	if other := room.Seats[1-hello.Player]; other != nil {
		conn.SendMessage(net.PeerMessage{Type: net.MsgPaired, Room: room.Code, PeerName: other.name, Connected: true})
		other.SendMessage(net.PeerMessage{Type: net.MsgPaired, Room: room.Code, PeerName: conn.name, Connected: true})
		m.log.WithField("room", room.Code).Info("Room paired")
	}
	return nil
}

// Forward hands a datagram from conn to the other seat of its room. Datagrams
// with nobody to receive them, or that do not fit the receiver's buffer, are
// dropped. The lock is held while queueing so the receiver cannot leave and
// close its queue underneath.
func (m *Matchmaking) Forward(conn *Connection, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var to *Connection
	if conn.room != nil {
		to = conn.room.Seats[1-conn.seat]
	}
	switch {
	case to == nil:
		m.orphaned.Inc()
	case to.SendDatagram(data):
		m.forwarded.Inc()
	default:
		m.dropped.Inc()
	}
}

// Leave frees conn's seat, tells the other seat, and closes the room once
// it is empty.
func (m *Matchmaking) Leave(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room := conn.room
	if room == nil || room.Seats[conn.seat] != conn {
		return
	}
	room.Seats[conn.seat] = nil
	conn.room = nil
	m.log.WithFields(logrus.Fields{"room": room.Code, "player": conn.seat}).Info("Player left")

	if other := room.Seats[1-conn.seat]; other != nil {
		other.SendMessage(net.PeerMessage{Type: net.MsgLeft, Room: room.Code, PeerName: conn.name, Connected: false})
	}
	if room.empty() {
		m.rooms.Delete(room.Code)
		m.log.WithField("room", room.Code).Info("Closed room")
	}
}

// Rooms lists open rooms, oldest first.
func (m *Matchmaking) Rooms() []RoomInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]RoomInfo, 0, m.rooms.Len())
	for el := m.rooms.Front(); el != nil; el = el.Next() {
		info := RoomInfo{Code: el.Key, Created: el.Value.CreatedAt}
		for i, c := range el.Value.Seats {
			if c != nil {
				info.Players[i] = c.name
			}
		}
		out = append(out, info)
	}
	return out
}

// Counters reports forwarded, dropped and orphaned datagram totals.
func (m *Matchmaking) Counters() (forwarded, dropped, orphaned uint64) {
	return m.forwarded.Load(), m.dropped.Load(), m.orphaned.Load()
}
