package game

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/zeebo/xxh3"

	"pongsync/internal/net"
)

// State is the whole simulation. It is a plain value: Step never mutates its
// argument, so two peers that feed the same commands hold identical states.
type State struct {
	Width, Height float32
	Paddles       [2]float32 // centre y of each paddle
	Ball          mgl32.Vec2
	Vel           mgl32.Vec2
	Score         [2]uint32
	Serves        uint32
	Tick          uint32
}

// Init places both paddles and the ball at the centre, serving towards
// player 1.
func Init(width, height int) State {
	w, h := float32(width), float32(height)
	return State{
		Width:   w,
		Height:  h,
		Paddles: [2]float32{h / 2, h / 2},
		Ball:    mgl32.Vec2{w / 2, h / 2},
		Vel:     serveVelocity(1, 0),
	}
}

// Step advances s by dt with cmds[p] applied to player p's paddle.
func Step(s State, cmds [2]net.Command, dt time.Duration) State {
	secs := float32(dt.Seconds())
	s.Tick++

	for p, c := range cmds {
		s.Paddles[p] = movePaddle(s.Paddles[p], c, secs, s.Height)
	}

	// Explicit float32 conversions stop the compiler fusing multiply-add,
	// which would round differently on some architectures.
	s.Ball = mgl32.Vec2{
		s.Ball.X() + float32(s.Vel.X()*secs),
		s.Ball.Y() + float32(s.Vel.Y()*secs),
	}

	switch {
	case s.Ball.Y() < BallRadius && s.Vel.Y() < 0:
		s.Ball[1] = 2*BallRadius - s.Ball.Y()
		s.Vel[1] = -s.Vel.Y()
	case s.Ball.Y() > s.Height-BallRadius && s.Vel.Y() > 0:
		s.Ball[1] = 2*(s.Height-BallRadius) - s.Ball.Y()
		s.Vel[1] = -s.Vel.Y()
	}

	for p := range s.Paddles {
		// Only a paddle the ball is travelling towards can return it.
		towards := (p == 0 && s.Vel.X() < 0) || (p == 1 && s.Vel.X() > 0)
		if towards && CircleHitsRect(s.Ball, BallRadius, PaddleRect(p, s.Width, s.Paddles[p])) {
			s.Vel = deflect(s.Vel, s.Ball.Y(), s.Paddles[p])
		}
	}

	switch {
	case s.Ball.X() < -BallRadius:
		s = scored(s, 1)
	case s.Ball.X() > s.Width+BallRadius:
		s = scored(s, 0)
	}
	return s
}

func movePaddle(y float32, c net.Command, secs, height float32) float32 {
	switch c {
	case net.CmdUp:
		y -= float32(PaddleSpeed * secs)
	case net.CmdDown:
		y += float32(PaddleSpeed * secs)
	}
	return clamp(y, PaddleHeight/2, height-PaddleHeight/2)
}

func scored(s State, p int) State {
	s.Score[p]++
	s.Serves++
	s.Ball = mgl32.Vec2{s.Width / 2, s.Height / 2}
	s.Vel = serveVelocity(1-p, s.Serves)
	return s
}

// Checksum hashes every field that affects future steps.
func Checksum(s State) uint64 {
	var b [4 * 12]byte
	fields := []float32{
		s.Width, s.Height,
		s.Paddles[0], s.Paddles[1],
		s.Ball.X(), s.Ball.Y(),
		s.Vel.X(), s.Vel.Y(),
	}
	for i, f := range fields {
		binary.BigEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	binary.BigEndian.PutUint32(b[32:], s.Score[0])
	binary.BigEndian.PutUint32(b[36:], s.Score[1])
	binary.BigEndian.PutUint32(b[40:], s.Serves)
	binary.BigEndian.PutUint32(b[44:], s.Tick)
	return xxh3.Hash(b[:])
}
