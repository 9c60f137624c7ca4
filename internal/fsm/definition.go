package fsm

import (
	"time"

	"github.com/librescoot/librefsm"
)

// Default bring-up delays
const (
	DefaultStartupDelay = 3 * time.Second
	DefaultArmDelay     = 1 * time.Second
)

// Timing holds the fixed bring-up delays.
type Timing struct {
	StartupDelay time.Duration // after "Starting..." before asking for the button
	ArmDelay     time.Duration // after the button press before the loop starts
}

// DefaultTiming returns the delays used on the robot.
func DefaultTiming() Timing {
	return Timing{
		StartupDelay: DefaultStartupDelay,
		ArmDelay:     DefaultArmDelay,
	}
}

// NewDefinition creates the controller lifecycle FSM definition.
func NewDefinition(actions Actions, timing Timing) *librefsm.Definition {
	return librefsm.NewDefinition().
		State(StateInit).
		State(StateStarting,
			librefsm.WithTimeout(timing.StartupDelay, EvStartupDelayElapsed),
			librefsm.WithOnEnter(actions.EnterStarting),
		).
		State(StateWaitingButton,
			librefsm.WithOnEnter(actions.EnterWaitingButton),
			librefsm.WithOnExit(actions.ExitWaitingButton),
		).
		State(StateArming,
			librefsm.WithTimeout(timing.ArmDelay, EvArmDelayElapsed),
		).
		State(StateRunning,
			librefsm.WithOnEnter(actions.EnterRunning),
		).
		State(StateManeuvering,
			librefsm.WithOnEnter(actions.EnterManeuvering),
			librefsm.WithOnExit(actions.ExitManeuvering),
		).
		// Terminal: no transitions leave it.
		State(StateFatal,
			librefsm.WithOnEnter(actions.EnterFatal),
		).

		// === Transitions ===

		// Bring-up
		Transition(StateInit, EvVisionReady, StateStarting).
		Transition(StateInit, EvVisionFailed, StateFatal).
		Transition(StateStarting, EvStartupDelayElapsed, StateWaitingButton).
		Transition(StateWaitingButton, EvButtonPressed, StateArming).
		Transition(StateArming, EvArmDelayElapsed, StateRunning).

		// Uninterruptible maneuvers
		Transition(StateRunning, EvManeuverStart, StateManeuvering).
		Transition(StateManeuvering, EvManeuverDone, StateRunning).

		Initial(StateInit)
}
