package types

import "fmt"

// MotorAction is the complete actuation intent for one control cycle.
// Speeds are signed, the sign encodes wheel direction.
type MotorAction struct {
	State  RobotState
	SpeedL int16
	SpeedR int16
	AccelL uint16
	AccelR uint16
}

// Reset puts the action back to the power-on defaults.
func (a *MotorAction) Reset() {
	*a = MotorAction{State: StateStartup}
}

// Equal reports whether all five fields match.
func (a MotorAction) Equal(b MotorAction) bool {
	return a.State == b.State &&
		a.SpeedL == b.SpeedL &&
		a.SpeedR == b.SpeedR &&
		a.AccelL == b.AccelL &&
		a.AccelR == b.AccelR
}

func (a MotorAction) String() string {
	return fmt.Sprintf("%s speed=(%d,%d) accel=(%d,%d)", a.State, a.SpeedL, a.SpeedR, a.AccelL, a.AccelR)
}

// FieldMask selects which MotorAction fields a Patch writes.
type FieldMask uint8

const (
	FieldState FieldMask = 1 << iota
	FieldSpeedL
	FieldSpeedR
	FieldAccelL
	FieldAccelR

	FieldSpeeds = FieldSpeedL | FieldSpeedR
	FieldAccels = FieldAccelL | FieldAccelR
	FieldAll    = FieldState | FieldSpeeds | FieldAccels
)

// Patch is a full or partial overwrite of a MotorAction. Fields outside the
// mask keep whatever an earlier writer left in them.
type Patch struct {
	Fields FieldMask
	Action MotorAction
}

// Apply writes the masked fields of p into a.
func (p Patch) Apply(a *MotorAction) {
	if p.Fields&FieldState != 0 {
		a.State = p.Action.State
	}
	if p.Fields&FieldSpeedL != 0 {
		a.SpeedL = p.Action.SpeedL
	}
	if p.Fields&FieldSpeedR != 0 {
		a.SpeedR = p.Action.SpeedR
	}
	if p.Fields&FieldAccelL != 0 {
		a.AccelL = p.Action.AccelL
	}
	if p.Fields&FieldAccelR != 0 {
		a.AccelR = p.Action.AccelR
	}
}

// Empty reports whether the patch writes nothing.
func (p Patch) Empty() bool {
	return p.Fields == 0
}
