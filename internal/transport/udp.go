package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// maxDatagram bounds a single read. Anything longer than a packet is
// truncated here and rejected by the decoder.
const maxDatagram = 64

// UDP sends datagrams to one fixed peer address. A read pump moves inbound
// datagrams into a buffered channel so Poll never blocks.
type UDP struct {
	conn *net.UDPConn
	peer *net.UDPAddr
	recv chan []byte
	done chan struct{}
	log  logrus.FieldLogger

	dropped atomic.Uint64
	foreign atomic.Uint64
}

// DialUDP binds localPort on all interfaces and resolves the peer. Both
// failures are fatal for a session.
func DialUDP(localPort int, peerHost string, peerPort int, log logrus.FieldLogger) (*UDP, error) {
	peer, err := net.ResolveUDPAddr("udp", net.JoinHostPort(peerHost, strconv.Itoa(peerPort)))
	if err != nil {
		return nil, fmt.Errorf("resolve peer %s: %w", peerHost, err)
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: localPort})
	if err != nil {
		return nil, fmt.Errorf("bind port %d: %w", localPort, err)
	}

	u := &UDP{
		conn: conn,
		peer: peer,
		recv: make(chan []byte, 256),
		done: make(chan struct{}),
		log:  log.WithField("transport", "udp"),
	}
	go u.readPump()

	u.log.WithFields(logrus.Fields{"local": conn.LocalAddr(), "peer": peer}).Info("UDP transport ready")
	return u, nil
}

func (u *UDP) readPump() {
	defer close(u.done)
	buf := make([]byte, maxDatagram)
	for {
		n, from, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				u.log.WithError(err).Warn("UDP read failed")
			}
			return
		}
		if !from.IP.Equal(u.peer.IP) || from.Port != u.peer.Port {
			u.foreign.Inc()
			u.log.WithField("from", from).Debug("Ignoring datagram from unknown sender")
			continue
		}

		b := make([]byte, n)
		copy(b, buf[:n])
		select {
		case u.recv <- b:
		default:
			// Drop if buffer full
			u.dropped.Inc()
		}
	}
}

func (u *UDP) Send(b []byte) error {
	_, err := u.conn.WriteToUDP(b, u.peer)
	return err
}

func (u *UDP) Poll() ([]byte, bool) {
	select {
	case b := <-u.recv:
		return b, true
	default:
		return nil, false
	}
}

// Report summarizes the link and its counters for logging. dropped counts
// datagrams nobody polled in time, foreign those from other senders.
func (u *UDP) Report() logrus.Fields {
	return logrus.Fields{
		"transport": "udp",
		"local":     u.conn.LocalAddr().String(),
		"peer":      u.peer.String(),
		"dropped":   u.dropped.Load(),
		"foreign":   u.foreign.Load(),
	}
}

func (u *UDP) Close() error {
	err := u.conn.Close()
	<-u.done
	u.log.WithFields(u.Report()).Debug("UDP transport closed")
	return err
}
