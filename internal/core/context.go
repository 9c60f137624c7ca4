package core

import (
	"pixybot/internal/types"
	"pixybot/internal/vision"
)

// RobotContext is the state owned by the control loop: the single active
// motor action and the latest sensor snapshot. Both live for the whole
// process and are mutated in place every cycle.
type RobotContext struct {
	Action  types.MotorAction
	Sensors types.SensorSnapshot
}

// NewRobotContext returns a context with the action reset and the
// snapshot wired to mb.
func NewRobotContext(mb *vision.Mailbox) *RobotContext {
	rc := &RobotContext{}
	rc.Action.Reset()
	rc.Sensors.Vision = mb
	return rc
}
