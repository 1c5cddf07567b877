package lockstep

import (
	"github.com/sirupsen/logrus"

	"pongsync/internal/net"
)

// Transport is a best-effort datagram channel to the one configured peer.
// Neither method may block, and Send must not retain b.
type Transport interface {
	Send(b []byte) error
	Poll() ([]byte, bool)
}

// control receives the packets the reliability layer does not own.
type control interface {
	handleStart(p net.Packet)
	handleHash(p net.Packet)
	peerActive()
}

// Reliability moves own commands to the peer at least once and applies
// inbound commands and acknowledgements to the store.
type Reliability struct {
	store      *Store
	tr         Transport
	ctl        control
	log        logrus.FieldLogger
	stats      *Stats
	delay      int
	window     int
	retransmit bool
	buf        [net.PacketSize]byte
}

func newReliability(cfg Config, store *Store, tr Transport, ctl control, stats *Stats, log logrus.FieldLogger) *Reliability {
	return &Reliability{
		store:      store,
		tr:         tr,
		ctl:        ctl,
		log:        log,
		stats:      stats,
		delay:      cfg.Delay,
		window:     cfg.Window,
		retransmit: cfg.Retransmit,
	}
}

// Drain handles every datagram the transport already holds and returns how
// many it read.
func (r *Reliability) Drain() int {
	n := 0
	for {
		b, ok := r.tr.Poll()
		if !ok {
			return n
		}
		n++
		r.handle(b)
	}
}

func (r *Reliability) handle(b []byte) {
	pkt, err := net.Decode(b)
	if err != nil {
		r.stats.Malformed++
		r.log.WithError(err).Warn("discarding malformed datagram")
		return
	}
	r.stats.Received++

	switch pkt.Opcode {
	case net.OpCmd:
		c := pkt.Command()
		if pkt.Input > 0xff || !c.Valid() {
			r.stats.Malformed++
			r.log.WithField("epoch", pkt.Epoch).WithField("input", pkt.Input).Warn("discarding command with unknown value")
			return
		}
		if !r.store.WriteRemote(pkt.Epoch, c) {
			r.stats.Stale++
			r.log.WithField("epoch", pkt.Epoch).Debug("stale command")
		}
		// Duplicates are acked too: the first ack may have been lost.
		r.send(net.NewAck(pkt.Epoch))
		r.stats.AcksSent++
		r.ctl.peerActive()
	case net.OpAck:
		r.stats.AcksReceived++
		if !r.store.MarkAcked(pkt.Epoch) {
			r.stats.Stale++
			r.log.WithField("epoch", pkt.Epoch).Debug("stale ack")
		}
		r.ctl.peerActive()
	case net.OpStart:
		r.ctl.handleStart(pkt)
	case net.OpHash:
		r.ctl.handleHash(pkt)
	default:
		r.stats.Unknown++
		r.log.WithField("opcode", pkt.Opcode).Warn("received unknown packet from peer")
	}
}

// Submit writes the command sampled at epoch current into the slot for
// current+delay and transmits it if the slot was not already armed.
func (r *Reliability) Submit(current net.Epoch, c net.Command) bool {
	target := current.Add(r.delay)
	if !r.store.WriteOwn(target, c) {
		return false
	}
	r.send(net.NewCmd(target, c))
	r.stats.Sent++
	return true
}

// Retransmit resends the oldest unacknowledged own command among the window
// epochs starting at current. At most one packet is sent per call.
func (r *Reliability) Retransmit(current net.Epoch) (net.Epoch, bool) {
	if !r.retransmit {
		return 0, false
	}
	for i := 0; i < r.window; i++ {
		e := current.Add(i)
		slot, ok := r.store.Own(e)
		if !ok || slot.Acked {
			continue
		}
		r.send(net.NewCmd(e, slot.Command))
		r.stats.Resent++
		return e, true
	}
	return 0, false
}

// Flush sends every unacknowledged own command in [current, current+delay].
// It runs once when the handshake completes so the seeded epochs do not wait
// for the one-per-tick retransmission.
func (r *Reliability) Flush(current net.Epoch) int {
	n := 0
	for i := 0; i <= r.delay; i++ {
		e := current.Add(i)
		slot, ok := r.store.Own(e)
		if !ok || slot.Acked {
			continue
		}
		r.send(net.NewCmd(e, slot.Command))
		r.stats.Sent++
		n++
	}
	return n
}

func (r *Reliability) send(p net.Packet) {
	net.EncodeTo(r.buf[:], p)
	if err := r.tr.Send(r.buf[:]); err != nil {
		r.stats.SendErrors++
		r.log.WithError(err).WithField("opcode", p.Opcode).Debug("send failed")
	}
}
