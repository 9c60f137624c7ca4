package core

import (
	"pixybot/internal/logger"
	"pixybot/internal/messaging"
	"pixybot/internal/types"
)

// Dispatcher sends an action to the motors.
type Dispatcher interface {
	Dispatch(a types.MotorAction)
}

// ActionGate forwards an action only when it differs from the last one sent.
type ActionGate struct {
	dispatcher Dispatcher
	previous   types.MotorAction
	valid      bool
}

func NewActionGate(d Dispatcher) *ActionGate {
	g := &ActionGate{dispatcher: d, valid: true}
	g.previous.Reset()
	return g
}

// DispatchIfChanged dispatches proposed if it differs in any field from the
// previous dispatch. It reports whether it dispatched.
func (g *ActionGate) DispatchIfChanged(proposed types.MotorAction) bool {
	if g.valid && proposed.Equal(g.previous) {
		return false
	}
	g.dispatcher.Dispatch(proposed)
	g.previous = proposed
	g.valid = true
	return true
}

// Invalidate forces the next call to dispatch even when the action equals
// the previous one. A maneuver drives the wheels outside the gate and
// leaves them stopped, so an unchanged action after it (a second Avoiding
// 200/200, say) must still reach the motors.
func (g *ActionGate) Invalidate() {
	g.valid = false
}

// Previous returns the last dispatched action.
func (g *ActionGate) Previous() types.MotorAction {
	return g.previous
}

// MotorDispatcher applies actions to the actuator: accelerations first,
// then free-running speeds.
type MotorDispatcher struct {
	actuator  Actuator
	telemetry messaging.Publisher
	logger    *logger.Logger
}

func NewMotorDispatcher(act Actuator, telemetry messaging.Publisher, l *logger.Logger) *MotorDispatcher {
	return &MotorDispatcher{
		actuator:  act,
		telemetry: telemetry,
		logger:    l.WithTag("motors"),
	}
}

func (d *MotorDispatcher) Dispatch(a types.MotorAction) {
	d.logger.Debugf("Dispatch %s", a)
	if err := d.actuator.SetAccel(a.AccelL, a.AccelR); err != nil {
		d.logger.Warnf("Failed to set acceleration: %v", err)
	}
	if err := d.actuator.Run(a.SpeedL, a.SpeedR); err != nil {
		d.logger.Warnf("Failed to set speed: %v", err)
	}
	if d.telemetry != nil {
		if err := d.telemetry.PublishAction(a); err != nil {
			d.logger.Debugf("Telemetry: %v", err)
		}
	}
}
