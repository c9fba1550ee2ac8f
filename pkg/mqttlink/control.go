package mqttlink

import (
	"bytes"
	"dancavallaro.com/devicectl/pkg/controller"
	"dancavallaro.com/devicectl/pkg/events"
	"fmt"
	"github.com/goccy/go-json"
	"strings"
)

const (
	ActionStart  = "start"
	ActionStop   = "stop"
	ActionToggle = "toggle"
	ActionMode   = "mode"
)

// ControlCommand is one remote request. Mode is only set for ActionMode.
type ControlCommand struct {
	Action string `json:"action"`
	Mode   string `json:"mode,omitempty"`
}

func (c ControlCommand) String() string {
	if c.Action == ActionMode {
		return fmt.Sprintf("%s %s", c.Action, c.Mode)
	}
	return c.Action
}

// ParseControl accepts either a JSON object ({"action":"mode","mode":"Xirgo_GSM"})
// or the plain text forms "start", "stop", "toggle" and "mode <id>".
func ParseControl(payload []byte) (ControlCommand, error) {
	payload = bytes.TrimSpace(payload)
	var cmd ControlCommand
	if bytes.HasPrefix(payload, []byte("{")) {
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return ControlCommand{}, fmt.Errorf("malformed control message: %w", err)
		}
		cmd.Action = strings.ToLower(strings.TrimSpace(cmd.Action))
		cmd.Mode = strings.TrimSpace(cmd.Mode)
	} else {
		fields := strings.Fields(string(payload))
		if len(fields) == 0 {
			return ControlCommand{}, fmt.Errorf("empty control message")
		}
		cmd.Action = strings.ToLower(fields[0])
		switch {
		case cmd.Action == ActionMode && len(fields) == 2:
			cmd.Mode = fields[1]
		case cmd.Action != ActionMode && len(fields) > 1:
			return ControlCommand{}, fmt.Errorf("%s takes no arguments", cmd.Action)
		}
	}

	switch cmd.Action {
	case ActionStart, ActionStop, ActionToggle:
		cmd.Mode = ""
	case ActionMode:
		if cmd.Mode == "" {
			return ControlCommand{}, fmt.Errorf("mode requires exactly one mode id")
		}
	default:
		return ControlCommand{}, fmt.Errorf("unknown action %q", cmd.Action)
	}
	return cmd, nil
}

type ControlHandler interface {
	Control(cmd ControlCommand)
	Invalid(topic string, message string)
}

// Controller is the part of *controller.Controller a remote can drive.
type Controller interface {
	SetMode(id string) error
	Start() (*controller.Task, error)
	Stop() (*controller.Task, error)
	Toggle() (*controller.Task, error)
}

// ControllerHandler applies remote commands to a controller. Rejected commands are
// reported as warnings; dispatch outcomes are reported by the controller itself.
type ControllerHandler struct {
	Controller Controller
	Events     events.Emitter
}

func (h ControllerHandler) Control(cmd ControlCommand) {
	var err error
	switch cmd.Action {
	case ActionMode:
		err = h.Controller.SetMode(cmd.Mode)
	case ActionStart:
		_, err = h.Controller.Start()
	case ActionStop:
		_, err = h.Controller.Stop()
	case ActionToggle:
		_, err = h.Controller.Toggle()
	}
	if err != nil {
		h.Events.Emit(events.Warn, "remote %s rejected: %v", cmd, err)
	}
}

func (h ControllerHandler) Invalid(topic string, message string) {
	h.Events.Emit(events.Warn, "invalid control message on %s: %q", topic, message)
}
