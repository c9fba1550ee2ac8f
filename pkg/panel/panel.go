// Package panel is a terminal control panel for a mode controller: a clock and status
// bar, a scrolling event log, the selected mode, a mode picker and a start/stop toggle.
package panel

import (
	"context"
	"dancavallaro.com/devicectl/pkg/commands"
	"dancavallaro.com/devicectl/pkg/controller"
	"dancavallaro.com/devicectl/pkg/events"
	"github.com/gdamore/tcell/v2"
	"strings"
	"sync"
	"time"
)

const (
	maxLogLines     = 500
	refreshInterval = 250 * time.Millisecond
)

// Controller is the part of *controller.Controller the panel drives.
type Controller interface {
	State() controller.State
	Busy() bool
	Modes() []commands.Mode
	SetMode(id string) error
	Toggle() (*controller.Task, error)
}

// picker is the mode selection popup.
type picker struct {
	modes    []commands.Mode
	selected int
}

func (p *picker) prev() {
	if p.selected > 0 {
		p.selected--
	}
}

func (p *picker) next() {
	if p.selected < len(p.modes)-1 {
		p.selected++
	}
}

type Panel struct {
	ctl    Controller
	events events.Emitter
	title  string
	beep   func()

	mu     sync.Mutex
	logs   []events.LogEvent
	picker *picker
}

// New builds a panel. Warnings about rejected key presses go to emitter, which is
// normally the same event log the panel subscribes to.
func New(ctl Controller, emitter events.Emitter, title string) *Panel {
	return &Panel{ctl: ctl, events: emitter, title: title, beep: playErrorSound}
}

// Handle records an event for display. Pass it to events.Log.Subscribe.
func (p *Panel) Handle(ev events.LogEvent) {
	p.mu.Lock()
	p.logs = append(p.logs, ev)
	if len(p.logs) > maxLogLines {
		p.logs = p.logs[len(p.logs)-maxLogLines:]
	}
	p.mu.Unlock()

	if ev.Severity == events.Error {
		p.beep()
	}
}

// Run draws the panel and handles input until the user quits or ctx ends.
func (p *Panel) Run(ctx context.Context, s tcell.Screen) error {
	s.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	p.draw(s)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.draw(s)
		default:
			if s.HasPendingEvent() {
				switch ev := s.PollEvent().(type) {
				case *tcell.EventKey:
					if p.handleKey(ev.Key(), ev.Rune()) {
						return nil
					}
					p.draw(s)
				case *tcell.EventResize:
					s.Sync()
					p.draw(s)
				}
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// handleKey applies one key press and reports whether the panel should quit.
func (p *Panel) handleKey(key tcell.Key, r rune) bool {
	p.mu.Lock()
	pick := p.picker
	p.mu.Unlock()

	if pick != nil {
		p.handlePickerKey(pick, key)
		return false
	}

	switch key {
	case tcell.KeyCtrlC:
		return true
	case tcell.KeyEnter:
		p.toggle()
	case tcell.KeyRune:
		switch r {
		case 'q', 'Q':
			return true
		case 'm', 'M':
			p.openPicker()
		case ' ', 's', 'S':
			p.toggle()
		}
	}
	return false
}

func (p *Panel) handlePickerKey(pick *picker, key tcell.Key) {
	switch key {
	case tcell.KeyEsc:
		p.closePicker()
	case tcell.KeyUp:
		p.mu.Lock()
		pick.prev()
		p.mu.Unlock()
	case tcell.KeyDown, tcell.KeyTab:
		p.mu.Lock()
		pick.next()
		p.mu.Unlock()
	case tcell.KeyEnter:
		p.mu.Lock()
		id := pick.modes[pick.selected].ID
		p.mu.Unlock()
		p.closePicker()
		if id == p.ctl.State().Mode.ID {
			return
		}
		if err := p.ctl.SetMode(id); err != nil {
			p.events.Emit(events.Warn, "cannot change mode: %v", err)
		}
	}
}

func (p *Panel) openPicker() {
	state := p.ctl.State()
	if state.Running || p.ctl.Busy() {
		p.events.Emit(events.Warn, "stop %s before changing modes", state.Mode.ID)
		return
	}

	modes := p.ctl.Modes()
	pick := &picker{modes: modes}
	for i, m := range modes {
		if m.ID == state.Mode.ID {
			pick.selected = i
		}
	}
	p.mu.Lock()
	p.picker = pick
	p.mu.Unlock()
}

func (p *Panel) closePicker() {
	p.mu.Lock()
	p.picker = nil
	p.mu.Unlock()
}

func (p *Panel) toggle() {
	if _, err := p.ctl.Toggle(); err != nil {
		p.events.Emit(events.Warn, "%v", err)
	}
}

// logLine formats an event the way the log list shows it.
func logLine(ev events.LogEvent) string {
	return "[" + ev.Time.Format("15:04:05") + "] " + ev.Message
}

func logStyle(ev events.LogEvent) tcell.Style {
	style := tcell.StyleDefault.Background(tcell.ColorBlack)
	switch {
	case ev.Severity == events.Error:
		return style.Foreground(tcell.ColorRed)
	case ev.Severity == events.Warn:
		return style.Foreground(tcell.ColorOrange)
	case strings.HasPrefix(ev.Message, "data sent"):
		return style.Foreground(tcell.ColorGreen)
	}
	return style.Foreground(tcell.ColorWhite)
}
