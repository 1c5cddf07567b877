package client

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"pongsync/internal/game"
	"pongsync/internal/lockstep"
)

var (
	background = color.RGBA{16, 16, 24, 255}
	foreground = color.RGBA{235, 235, 235, 255}
	ownPaddle  = color.RGBA{120, 200, 255, 255}
	netColor   = color.RGBA{70, 70, 90, 255}
)

// Renderer draws a committed game state. It never advances the game.
type Renderer struct {
	player int
}

func NewRenderer(player int) *Renderer {
	return &Renderer{player: player}
}

func (r *Renderer) Draw(screen *ebiten.Image, s game.State, phase lockstep.Phase, epoch uint64) {
	screen.Fill(background)

	// Centre line
	for y := float32(0); y < s.Height; y += 24 {
		vector.DrawFilledRect(screen, s.Width/2-1, y, 2, 12, netColor, false)
	}

	for p, y := range s.Paddles {
		box := game.PaddleRect(p, s.Width, y)
		c := foreground
		if p == r.player {
			c = ownPaddle
		}
		vector.DrawFilledRect(screen, box.X, box.Y, box.W, box.H, c, false)
	}
	vector.DrawFilledCircle(screen, s.Ball.X(), s.Ball.Y(), game.BallRadius, foreground, true)

	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%d", s.Score[0]), int(s.Width/2)-40, 16)
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%d", s.Score[1]), int(s.Width/2)+32, 16)

	switch phase {
	case lockstep.Handshake:
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("waiting for player %d", 1-r.player), int(s.Width/2)-64, int(s.Height/2)+24)
	case lockstep.Running:
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("epoch %d  fps %.0f", epoch, ebiten.ActualFPS()), 8, int(s.Height)-20)
	}
}
