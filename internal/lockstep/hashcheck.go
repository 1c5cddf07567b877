package lockstep

import (
	"pongsync/internal/net"
)

const hashHistory = 8

type hashEntry struct {
	epoch      net.Epoch
	local      uint64
	remote     uint64
	haveLocal  bool
	haveRemote bool
}

// hashCheck pairs local and peer state hashes for the same epoch. Either side
// may arrive first; a checkpoint is compared once both are present.
type hashCheck struct {
	interval int
	entries  [hashHistory]hashEntry
}

func (h *hashCheck) due(e net.Epoch) bool {
	return h.interval > 0 && int(e)%h.interval == 0
}

func (h *hashCheck) entry(e net.Epoch) *hashEntry {
	en := &h.entries[(int(e)/h.interval)%hashHistory]
	if en.epoch != e {
		*en = hashEntry{epoch: e}
	}
	return en
}

// local records our hash for e. compared is true when the peer's hash was
// already known, and match tells whether they agree.
func (h *hashCheck) local(e net.Epoch, sum uint64) (compared, match bool) {
	en := h.entry(e)
	en.local, en.haveLocal = sum, true
	return h.compare(en)
}

func (h *hashCheck) remote(e net.Epoch, sum uint64) (compared, match bool) {
	if !h.due(e) {
		return false, false
	}
	en := h.entry(e)
	en.remote, en.haveRemote = sum, true
	return h.compare(en)
}

func (h *hashCheck) compare(en *hashEntry) (bool, bool) {
	if !en.haveLocal || !en.haveRemote {
		return false, false
	}
	match := en.local == en.remote
	// Clear so a duplicate HASH is not reported twice.
	*en = hashEntry{}
	return true, match
}
