package commands

const DefaultModeID = "Xirgo_GPS"

// GSM and VBUS pairs follow the GPS pattern; only the GPS pair has been confirmed on
// hardware.
var defaultModes = []Mode{
	{ID: "Xirgo_GPS", Start: "!yde\r\n", Stop: "!ydd\r\n"},
	{ID: "Xirgo_GSM", Start: "!gde\r\n", Stop: "!gdd\r\n"},
	{ID: "Xirgo_VBUS", Start: "!vde\r\n", Stop: "!vdd\r\n"},
}

func DefaultModes() []Mode {
	return append([]Mode(nil), defaultModes...)
}

func DefaultTable() *Table {
	t, err := NewTable(defaultModes...)
	if err != nil {
		panic(err)
	}
	return t
}
