package game

import "github.com/go-gl/mathgl/mgl32"

// Court layout, in pixels of the logical screen.
const (
	PaddleWidth  = 12.0
	PaddleHeight = 80.0
	PaddleMargin = 24.0
	BallRadius   = 6.0

	// Speeds are in pixels per second.
	PaddleSpeed = 420.0
	ServeSpeed  = 300.0
	MaxSpeed    = 900.0
	SpeedUp     = 1.05
)

// Rect is an axis-aligned box with its origin at the top-left corner.
type Rect struct {
	X, Y, W, H float32
}

// PaddleRect returns the box of player p's paddle whose centre is at y.
func PaddleRect(p int, width, y float32) Rect {
	x := float32(PaddleMargin)
	if p == 1 {
		x = width - PaddleMargin - PaddleWidth
	}
	return Rect{X: x, Y: y - PaddleHeight/2, W: PaddleWidth, H: PaddleHeight}
}

// serveVelocity is the ball velocity after a point is scored. The ball
// always leaves towards the player who lost the point.
func serveVelocity(towards int, serve uint32) mgl32.Vec2 {
	vx := float32(ServeSpeed)
	if towards == 0 {
		vx = -vx
	}
	// Alternate the vertical component so rallies don't repeat exactly.
	vy := float32(ServeSpeed) / 2
	if serve%2 == 1 {
		vy = -vy
	}
	return mgl32.Vec2{vx, vy}
}
