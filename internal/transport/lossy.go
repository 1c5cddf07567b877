package transport

import (
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"pongsync/internal/lockstep"
)

// Reporter is implemented by transports that can summarize their counters.
type Reporter interface {
	Report() logrus.Fields
}

// Lossy wraps a transport and silently discards outbound datagrams the
// drop function selects. It is for exercising retransmission by hand.
type Lossy struct {
	lockstep.Transport
	drop    func(b []byte) bool
	dropped atomic.Uint64
}

func NewLossy(tr lockstep.Transport, drop func(b []byte) bool) *Lossy {
	return &Lossy{Transport: tr, drop: drop}
}

// DropEvery discards every nth outbound datagram; n <= 0 drops nothing.
func DropEvery(tr lockstep.Transport, n int) *Lossy {
	var count int
	return NewLossy(tr, func([]byte) bool {
		if n <= 0 {
			return false
		}
		count++
		return count%n == 0
	})
}

func (l *Lossy) Send(b []byte) error {
	if l.drop(b) {
		l.dropped.Inc()
		return nil
	}
	return l.Transport.Send(b)
}

// Report extends the wrapped transport's report with the datagrams discarded
// here.
func (l *Lossy) Report() logrus.Fields {
	fields := logrus.Fields{}
	if r, ok := l.Transport.(Reporter); ok {
		for k, v := range r.Report() {
			fields[k] = v
		}
	}
	fields["discarded"] = l.dropped.Load()
	return fields
}
