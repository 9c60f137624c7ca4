package fsm

import "github.com/librescoot/librefsm"

// Actions defines the callbacks the lifecycle machine drives.
// core.Robot implements this interface.
type Actions interface {
	// State entry actions
	EnterStarting(c *librefsm.Context) error
	EnterWaitingButton(c *librefsm.Context) error
	EnterRunning(c *librefsm.Context) error
	EnterManeuvering(c *librefsm.Context) error
	EnterFatal(c *librefsm.Context) error

	// State exit actions
	ExitWaitingButton(c *librefsm.Context) error
	ExitManeuvering(c *librefsm.Context) error
}
