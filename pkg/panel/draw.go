package panel

import (
	"fmt"
	"github.com/gdamore/tcell/v2"
	"time"
)

const pickerWidth = 36

func (p *Panel) draw(s tcell.Screen) {
	s.Clear()
	width, height := s.Size()
	state := p.ctl.State()
	busy := p.ctl.Busy()

	p.mu.Lock()
	logs := append(p.logs[:0:0], p.logs...)
	var pick *picker
	if p.picker != nil {
		cp := *p.picker
		pick = &cp
	}
	p.mu.Unlock()

	// Top bar: clock on the left, run state on the right
	barStyle := tcell.StyleDefault.Background(tcell.ColorDarkSlateGray).Foreground(tcell.ColorWhite).Bold(true)
	drawText(s, 0, 0, width, barStyle, fmt.Sprintf(" %s  %s", time.Now().Format("15:04:05"), p.title))
	status, statusColor := "○ IDLE", tcell.ColorGray
	switch {
	case busy:
		status, statusColor = "… SENDING", tcell.ColorOrange
	case state.Running:
		status, statusColor = "● RUNNING", tcell.ColorGreen
	}
	drawRight(s, 0, width, barStyle.Foreground(statusColor), status+" ")

	// Log list, newest at the bottom
	logTop, logBottom := 1, height-3
	visible := logBottom - logTop
	if visible > 0 {
		start := 0
		if len(logs) > visible {
			start = len(logs) - visible
		}
		row := logTop
		for _, ev := range logs[start:] {
			drawText(s, 0, row, width, logStyle(ev), logLine(ev))
			row++
		}
	}

	selStyle := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorAqua).Bold(true)
	drawText(s, 0, height-2, width, selStyle, " SELECTED: "+state.Mode.ID)

	action := "▶ START"
	if state.Running {
		action = "■ STOP"
	}
	helpStyle := tcell.StyleDefault.Background(tcell.ColorNavy).Foreground(tcell.ColorWhite)
	drawText(s, 0, height-1, width, helpStyle, fmt.Sprintf(" m: ☰ MENU | space: %s | q: Quit", action))

	if pick != nil {
		drawPicker(s, pick)
	}
	s.Show()
}

func drawPicker(s tcell.Screen, pick *picker) {
	width, height := s.Size()
	modalHeight := len(pick.modes) + 4
	modalX := (width - pickerWidth) / 2
	modalY := (height - modalHeight) / 2

	bgStyle := tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorDarkBlue)
	selectedStyle := tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorWhite).Bold(true)

	for y := modalY; y < modalY+modalHeight; y++ {
		drawText(s, modalX, y, pickerWidth, bgStyle, "")
	}
	drawText(s, modalX, modalY, pickerWidth, bgStyle.Bold(true), " Select Operation:")
	for i, m := range pick.modes {
		style := bgStyle
		prefix := "   "
		if i == pick.selected {
			style = selectedStyle
			prefix = " ▶ "
		}
		drawText(s, modalX, modalY+2+i, pickerWidth, style, prefix+m.ID)
	}
	drawText(s, modalX, modalY+modalHeight-1, pickerWidth, bgStyle, " ↑↓: Select | Enter: Confirm | Esc")
}

func drawText(s tcell.Screen, x, y, width int, style tcell.Style, text string) {
	runes := []rune(text)
	col := 0
	for i := 0; i < len(runes) && col < width; i++ {
		s.SetContent(x+col, y, runes[i], nil, style)
		col++
	}
	for col < width {
		s.SetContent(x+col, y, ' ', nil, style)
		col++
	}
}

func drawRight(s tcell.Screen, y, width int, style tcell.Style, text string) {
	runes := []rune(text)
	x := width - len(runes)
	if x < 0 {
		x = 0
	}
	for i, r := range runes {
		s.SetContent(x+i, y, r, nil, style)
	}
}
