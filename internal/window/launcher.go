package window

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"

	"github.com/dshills/orbit/internal/logging"
	"github.com/dshills/orbit/internal/plugin"
)

// noticeEvent carries a message from a background goroutine to the event
// loop.
type noticeEvent struct {
	when time.Time
	text string
}

func (e *noticeEvent) When() time.Time { return e.when }

// quitSignal is posted as interrupt data when the context is done.
type quitSignal struct{}

// Launcher is a terminal launcher listing the loaded commands. The
// goroutine calling Run owns the window state and drives the host's main
// thread.
type Launcher struct {
	State

	screen   tcell.Screen
	host     *plugin.Host
	log      *logrus.Entry
	ctx      context.Context
	selected int
	notice   string
}

// NewLauncher creates a launcher on an initialized screen.
func NewLauncher(screen tcell.Screen, host *plugin.Host, logger logrus.FieldLogger) *Launcher {
	return &Launcher{
		screen: screen,
		host:   host,
		log:    logging.WithComponent(logger, "window"),
		ctx:    context.Background(),
	}
}

// Run processes terminal events until Ctrl-C, ctx is done or the screen is
// finalized. Main thread work queued by plugins is executed between events.
func (l *Launcher) Run(ctx context.Context) error {
	l.ctx = ctx
	l.host.SetWakeHook(func() {
		_ = l.screen.PostEvent(tcell.NewEventInterrupt(nil))
	})
	defer l.host.SetWakeHook(nil)

	stop := context.AfterFunc(ctx, func() {
		_ = l.screen.PostEvent(tcell.NewEventInterrupt(quitSignal{}))
	})
	defer stop()

	l.Open()
	l.pump()
	l.draw()

	for {
		ev := l.screen.PollEvent()
		if ev == nil {
			return nil
		}
		quit := l.handle(ev)
		l.pump()
		if quit {
			return nil
		}
		l.draw()
	}
}

func (l *Launcher) pump() {
	if n := l.host.PumpMainThread(&l.State); n > 0 {
		l.log.WithField("count", n).Trace("ran main thread work")
	}
}

// handle applies one event and reports whether the launcher should exit.
func (l *Launcher) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return l.handleKey(ev)
	case *tcell.EventInterrupt:
		_, quit := ev.Data().(quitSignal)
		return quit
	case *tcell.EventResize:
		l.screen.Sync()
	case *noticeEvent:
		l.notice = ev.text
	}
	return false
}

func (l *Launcher) handleKey(ev *tcell.EventKey) bool {
	if ev.Key() == tcell.KeyCtrlC {
		return true
	}
	if !l.IsOpen() {
		if ev.Key() == tcell.KeyEnter || (ev.Key() == tcell.KeyRune && ev.Rune() == ' ') {
			l.Open()
		}
		return false
	}

	items := l.host.Registry().List()
	switch ev.Key() {
	case tcell.KeyEscape:
		l.Close()
	case tcell.KeyUp:
		if l.selected > 0 {
			l.selected--
		}
	case tcell.KeyDown:
		if l.selected < len(items)-1 {
			l.selected++
		}
	case tcell.KeyEnter:
		if l.selected < len(items) {
			l.run(items[l.selected])
		}
	}
	return false
}

// run starts ext off the main thread. Its outcome comes back as a notice.
func (l *Launcher) run(ext *plugin.Extension) {
	id := ext.ID()
	l.notice = fmt.Sprintf("running %s", id)
	ctx := context.WithoutCancel(l.ctx)
	go func() {
		text := fmt.Sprintf("%s finished", id)
		if err := l.host.Registry().RunAsync(ctx, id); err != nil {
			l.log.WithError(err).WithField("plugin", id).Warn("command failed")
			text = err.Error()
		}
		_ = l.screen.PostEvent(&noticeEvent{when: time.Now(), text: text})
	}()
}

func (l *Launcher) draw() {
	l.screen.Clear()
	if !l.IsOpen() {
		drawText(l.screen, 0, 0, tcell.StyleDefault.Dim(true), "orbit is hidden, press space to show")
		l.screen.Show()
		return
	}

	title := tcell.StyleDefault.Bold(true)
	drawText(l.screen, 0, 0, title, "orbit")

	items := l.host.Registry().List()
	if l.selected >= len(items) && len(items) > 0 {
		l.selected = len(items) - 1
	}
	for i, ext := range items {
		style := tcell.StyleDefault
		if i == l.selected {
			style = style.Reverse(true)
		}
		meta := ext.Metadata()
		line := meta.Title
		if line == "" {
			line = meta.ID
		}
		if meta.Subtitle != "" {
			line += "  " + meta.Subtitle
		}
		drawText(l.screen, 2, i+2, style, line)
	}

	_, height := l.screen.Size()
	status := l.status(len(items))
	drawText(l.screen, 0, height-1, tcell.StyleDefault.Dim(true), status)
	l.screen.Show()
}

func (l *Launcher) status(ready int) string {
	loading := 0
	for _, st := range l.host.Registry().States() {
		if !st.State.IsResolved() {
			loading++
		}
	}
	status := fmt.Sprintf("%d commands", ready)
	if loading > 0 {
		status += fmt.Sprintf(", %d loading", loading)
	}
	if l.notice != "" {
		status += " | " + l.notice
	}
	return status
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}
