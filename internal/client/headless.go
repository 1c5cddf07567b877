package client

import (
	"github.com/sirupsen/logrus"

	"pongsync/internal/game"
	"pongsync/internal/lockstep"
)

// Script is an input source for running without a window. It moves the
// paddle up for Hold polls, idles, moves down for Hold polls, idles again,
// and asks to quit after Polls samples (0 never quits).
type Script struct {
	Hold  int
	Polls int
	n     int
}

func (s *Script) PollInput() lockstep.Input {
	s.n++
	if s.Polls > 0 && s.n >= s.Polls {
		return lockstep.Input{Quit: true}
	}
	hold := s.Hold
	if hold <= 0 {
		hold = 1
	}
	switch (s.n / hold) % 4 {
	case 0:
		return lockstep.Input{Up: true}
	case 2:
		return lockstep.Input{Down: true}
	}
	return lockstep.Input{}
}

// LogPresenter logs the score whenever it changes and the full state each
// time the committed count crosses a multiple of Every.
type LogPresenter struct {
	Match *game.Match
	Sess  *lockstep.Session
	Log   logrus.FieldLogger
	Every uint64

	last      game.State
	lastEpoch uint64
	Frames    int
}

func (p *LogPresenter) Present() {
	p.Frames++
	s := p.Match.State()
	if s.Score != p.last.Score {
		p.Log.WithFields(logrus.Fields{"left": s.Score[0], "right": s.Score[1]}).Info("Score")
	}
	p.last = s

	n := p.Sess.Committed()
	if p.Every > 0 && n/p.Every != p.lastEpoch/p.Every {
		p.Log.WithFields(logrus.Fields{
			"epoch":   n,
			"ball":    s.Ball,
			"paddles": s.Paddles,
			"phase":   p.Sess.Phase(),
		}).Debug("State")
	}
	p.lastEpoch = n
}
