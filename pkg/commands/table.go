// Package commands holds the static mode table: which start/stop strings each
// operating mode of the device understands.
package commands

import (
	"fmt"
	"strings"
)

// Terminator ends every command on the wire.
const Terminator = "\r\n"

// Mode is an operating profile of the device and its command pair.
type Mode struct {
	ID    string
	Start string
	Stop  string
}

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unknown mode %q", e.ID)
}

// Table is read-only once built.
type Table struct {
	modes []Mode
	byID  map[string]int
}

func NewTable(modes ...Mode) (*Table, error) {
	if len(modes) == 0 {
		return nil, fmt.Errorf("mode table is empty")
	}
	t := &Table{byID: make(map[string]int, len(modes))}
	for _, m := range modes {
		if m.ID == "" {
			return nil, fmt.Errorf("mode with empty id")
		}
		if _, dup := t.byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate mode %q", m.ID)
		}
		if err := Validate(m.Start); err != nil {
			return nil, fmt.Errorf("mode %q start: %w", m.ID, err)
		}
		if err := Validate(m.Stop); err != nil {
			return nil, fmt.Errorf("mode %q stop: %w", m.ID, err)
		}
		t.byID[m.ID] = len(t.modes)
		t.modes = append(t.modes, m)
	}
	return t, nil
}

func (t *Table) Lookup(id string) (Mode, error) {
	i, ok := t.byID[id]
	if !ok {
		return Mode{}, &NotFoundError{ID: id}
	}
	return t.modes[i], nil
}

// Modes returns the table in declaration order.
func (t *Table) Modes() []Mode {
	return append([]Mode(nil), t.modes...)
}

func (t *Table) IDs() []string {
	ids := make([]string, len(t.modes))
	for i, m := range t.modes {
		ids[i] = m.ID
	}
	return ids
}

// Validate checks a single command string: non-empty, 7-bit ASCII, and terminated by
// exactly one CRLF with nothing after it.
func Validate(cmd string) error {
	body, ok := strings.CutSuffix(cmd, Terminator)
	if !ok {
		return fmt.Errorf("command %q is not terminated by \\r\\n", cmd)
	}
	if body == "" {
		return fmt.Errorf("command is empty")
	}
	for i := 0; i < len(cmd); i++ {
		if cmd[i] > 0x7f {
			return fmt.Errorf("command %q contains non-ASCII byte 0x%02x", body, cmd[i])
		}
	}
	if strings.ContainsAny(body, "\r\n") {
		return fmt.Errorf("command %q contains an embedded line break", body)
	}
	return nil
}

// Printable strips the terminator, for log messages.
func Printable(cmd string) string {
	return strings.TrimRight(cmd, "\r\n")
}
