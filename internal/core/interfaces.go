package core

import (
	"context"

	"pixybot/internal/hardware"
	"pixybot/internal/types"
	"pixybot/internal/vision"
)

// HardwareIO defines the digital I/O the controller needs.
type HardwareIO interface {
	ReadDigitalInput(channel string) (bool, error)
	WriteDigitalOutput(channel string, value bool) error
	ToggleOutput(channel string) error
	ReadButtons() (hardware.ButtonMask, error)
}

// Actuator drives the two wheel steppers.
type Actuator interface {
	SetAccel(left, right uint16) error
	Run(left, right int16) error
	MoveSync(left, right types.WheelMove) error
	Stop(brake types.BrakeMode) error
}

// VisionSensor produces observations asynchronously into a registered
// mailbox.
type VisionSensor interface {
	Open() error
	Register(mb *vision.Mailbox)
	StartTracking(ctx context.Context) error
}

// Display is the text display on the robot.
type Display interface {
	Clear() error
	Printf(format string, args ...any) error
}

// Ensure the Linux drivers satisfy the interfaces.
var (
	_ HardwareIO   = (*hardware.LinuxHardwareIO)(nil)
	_ Actuator     = (*hardware.StepperLink)(nil)
	_ VisionSensor = (*hardware.PixyUART)(nil)
	_ Display      = (*hardware.CharLCD)(nil)
)
