package client

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"pongsync/internal/game"
	"pongsync/internal/lockstep"
)

// Keyboard samples W/S or the arrow keys. Escape or Q quits.
type Keyboard struct{}

func (Keyboard) PollInput() lockstep.Input {
	return lockstep.Input{
		Up:   ebiten.IsKeyPressed(ebiten.KeyW) || ebiten.IsKeyPressed(ebiten.KeyArrowUp),
		Down: ebiten.IsKeyPressed(ebiten.KeyS) || ebiten.IsKeyPressed(ebiten.KeyArrowDown),
		Quit: ebiten.IsKeyPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyQ),
	}
}

// Window runs a session inside the ebiten game loop: Update paces the
// session, Draw shows the last committed state.
type Window struct {
	sess     *lockstep.Session
	match    *game.Match
	driver   *lockstep.Driver
	input    lockstep.InputSource
	renderer *Renderer
	width    int
	height   int
}

func NewWindow(sess *lockstep.Session, match *game.Match, width, height int) *Window {
	return &Window{
		sess:     sess,
		match:    match,
		driver:   lockstep.NewDriver(sess),
		input:    Keyboard{},
		renderer: NewRenderer(sess.Config().Player),
		width:    width,
		height:   height,
	}
}

func (w *Window) Update() error {
	in := w.input.PollInput()
	if in.Quit {
		return ebiten.Termination
	}
	w.driver.Advance(time.Now(), in.Command())
	return nil
}

func (w *Window) Draw(screen *ebiten.Image) {
	w.renderer.Draw(screen, w.match.State(), w.sess.Phase(), w.sess.Committed())
}

func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	return w.width, w.height
}

// Run opens the window and blocks until it is closed. The session is closed
// on return.
func (w *Window) Run(title string) error {
	defer w.sess.Close()

	// Update runs twice per interval so no boundary is sampled late.
	tps := int(2 * time.Second / w.sess.Config().Interval)
	ebiten.SetTPS(tps)
	ebiten.SetWindowSize(w.width, w.height)
	ebiten.SetWindowTitle(title)

	return ebiten.RunGame(w)
}
