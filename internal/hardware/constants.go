package hardware

import "time"

const (
	DefaultGpioChip = 0

	DefaultLCDDevice = "/dev/lcd"

	DefaultStepperPort = "/dev/ttyACM0"
	StepperBaud        = 115200

	DefaultPixyPort = "/dev/ttyS0"
	PixyBaud        = 19200

	serialReadTimeout   = 500 * time.Millisecond
	stepperReplyTimeout = 2 * time.Second
	stepperMoveTimeout  = 30 * time.Second
)

// Digital channel names
const (
	ChannelIRLeft    = "ir_left"
	ChannelIRRight   = "ir_right"
	ChannelButtonS1  = "button_s1"
	ChannelButtonS2  = "button_s2"
	ChannelButtonS3  = "button_s3"
	ChannelIndicator = "indicator"
)

// LineMapping locates a GPIO line.
type LineMapping struct {
	Chip      int
	Line      int
	ActiveLow bool
}

// DiMappings are the default digital inputs. The IR modules and the
// push buttons pull their line low when active.
var DiMappings = map[string]LineMapping{
	ChannelIRLeft:   {Chip: 0, Line: 17, ActiveLow: true},
	ChannelIRRight:  {Chip: 0, Line: 27, ActiveLow: true},
	ChannelButtonS1: {Chip: 0, Line: 5, ActiveLow: true},
	ChannelButtonS2: {Chip: 0, Line: 6, ActiveLow: true},
	ChannelButtonS3: {Chip: 0, Line: 22, ActiveLow: true},
}

// DoMappings are the default digital outputs.
var DoMappings = map[string]LineMapping{
	ChannelIndicator: {Chip: 0, Line: 18},
}

// ButtonMask is a bitmask of pressed push buttons.
type ButtonMask uint8

const (
	ButtonS1 ButtonMask = 1 << iota
	ButtonS2
	ButtonS3
)

var buttonChannels = []struct {
	channel string
	mask    ButtonMask
}{
	{ChannelButtonS1, ButtonS1},
	{ChannelButtonS2, ButtonS2},
	{ChannelButtonS3, ButtonS3},
}
