package fsm

import "github.com/librescoot/librefsm"

// Lifecycle states of the controller process. The robot's behavioral state
// (cruising, avoiding, ...) is not modelled here; it lives in the motor
// action and is rewritten every cycle by the arbitrator.
const (
	StateInit          librefsm.StateID = "init"
	StateStarting      librefsm.StateID = "starting"
	StateWaitingButton librefsm.StateID = "waiting-button"
	StateArming        librefsm.StateID = "arming"
	StateRunning       librefsm.StateID = "running"
	StateManeuvering   librefsm.StateID = "maneuvering"
	StateFatal         librefsm.StateID = "fatal"
)

// Lifecycle events
const (
	// Bring-up
	EvVisionReady  librefsm.EventID = "vision-ready"
	EvVisionFailed librefsm.EventID = "vision-failed"

	// Operator input (S3 button or remote start command)
	EvButtonPressed librefsm.EventID = "button-pressed"

	// Timer events
	EvStartupDelayElapsed librefsm.EventID = "startup-delay-elapsed"
	EvArmDelayElapsed     librefsm.EventID = "arm-delay-elapsed"

	// Ballistic maneuvers
	EvManeuverStart librefsm.EventID = "maneuver-start"
	EvManeuverDone  librefsm.EventID = "maneuver-done"
)
