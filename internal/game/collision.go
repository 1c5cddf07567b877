package game

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// CircleHitsRect reports whether a circle at c with radius r overlaps box.
func CircleHitsRect(c mgl32.Vec2, r float32, box Rect) bool {
	closest := mgl32.Vec2{
		clamp(c.X(), box.X, box.X+box.W),
		clamp(c.Y(), box.Y, box.Y+box.H),
	}
	d := c.Sub(closest)
	return d.Dot(d) < r*r
}

// deflect returns the ball velocity after it strikes a paddle whose centre is
// at paddleY. The further from the centre the hit, the steeper the return.
func deflect(vel mgl32.Vec2, ballY, paddleY float32) mgl32.Vec2 {
	speed := math32.Min(vel.Len()*SpeedUp, MaxSpeed)
	offset := clamp((ballY-paddleY)/(PaddleHeight/2), -1, 1)
	angle := offset * (math32.Pi / 3)

	vx := speed * math32.Cos(angle)
	if vel.X() > 0 {
		vx = -vx
	}
	return mgl32.Vec2{vx, speed * math32.Sin(angle)}
}

func clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(v, hi))
}
