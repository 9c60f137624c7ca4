package core

import (
	"context"
	"fmt"
	"time"

	"github.com/librescoot/librefsm"

	"pixybot/internal/fsm"
)

// Ensure Robot implements fsm.Actions
var _ fsm.Actions = (*Robot)(nil)

// buildFSM builds the lifecycle machine. It is started by Run.
func (r *Robot) buildFSM() error {
	def := fsm.NewDefinition(r, r.cfg.Timing)
	machine, err := def.Build()
	if err != nil {
		return err
	}
	r.machine = machine

	r.machine.OnStateChange(func(from, to librefsm.StateID) {
		r.logger.Infof("Lifecycle: %s -> %s", from, to)
		if r.telemetry != nil {
			if err := r.telemetry.PublishLifecycle(string(to)); err != nil {
				r.logger.Debugf("Failed to publish lifecycle: %v", err)
			}
		}
	})
	return nil
}

// startFSM starts the lifecycle machine bound to ctx
func (r *Robot) startFSM(ctx context.Context) error {
	r.runCtx = ctx
	if err := r.machine.Start(ctx); err != nil {
		return err
	}
	r.fsmStarted.Store(true)
	r.logger.Debugf("Lifecycle machine started")
	return nil
}

// sendEvent sends an event to the FSM and waits for it to be handled, or
// for the run context to end. Before Run (single-stepped cycles) it is a
// no-op.
func (r *Robot) sendEvent(event librefsm.EventID) error {
	if !r.fsmStarted.Load() {
		return nil
	}
	ctx := r.runCtx
	if err := ctx.Err(); err != nil {
		return err
	}

	// SendSync never returns once the machine has stopped.
	done := make(chan error, 1)
	go func() {
		done <- r.machine.SendSync(librefsm.Event{ID: event})
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Lifecycle returns the current lifecycle state.
func (r *Robot) Lifecycle() librefsm.StateID {
	if !r.fsmStarted.Load() {
		return fsm.StateInit
	}
	return r.machine.CurrentState()
}

// RequestStart acts like a press of the start button.
func (r *Robot) RequestStart() error {
	if !r.fsmStarted.Load() {
		return fmt.Errorf("lifecycle not started")
	}
	if r.machine.CurrentState() != fsm.StateWaitingButton {
		return fmt.Errorf("not waiting for start (state %s)", r.machine.CurrentState())
	}
	r.logger.Infof("Remote start requested")
	r.machine.Send(librefsm.Event{ID: fsm.EvButtonPressed})
	return nil
}

// === State Entry Actions ===

func (r *Robot) EnterStarting(c *librefsm.Context) error {
	r.logger.Infof("Vision sensor up, settling for %v", r.cfg.Timing.StartupDelay)
	return nil
}

func (r *Robot) EnterWaitingButton(c *librefsm.Context) error {
	r.print(pressStartText)

	stop := make(chan struct{})
	r.mu.Lock()
	r.buttonStop = stop
	r.mu.Unlock()

	go r.pollButtons(stop)
	return nil
}

func (r *Robot) EnterRunning(c *librefsm.Context) error {
	r.startOnce.Do(func() {
		close(r.started)
	})
	return nil
}

func (r *Robot) EnterManeuvering(c *librefsm.Context) error {
	r.logger.Debugf("Maneuver started")
	return nil
}

func (r *Robot) EnterFatal(c *librefsm.Context) error {
	r.logger.Errorf("Halted, restart required")
	return nil
}

// === State Exit Actions ===

func (r *Robot) ExitWaitingButton(c *librefsm.Context) error {
	r.mu.Lock()
	if r.buttonStop != nil {
		close(r.buttonStop)
		r.buttonStop = nil
	}
	r.mu.Unlock()
	return nil
}

func (r *Robot) ExitManeuvering(c *librefsm.Context) error {
	r.logger.Debugf("Maneuver finished")
	return nil
}

func (r *Robot) pollButtons(stop <-chan struct{}) {
	ticker := time.NewTicker(r.cfg.ButtonPoll)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-r.runCtx.Done():
			return
		case <-ticker.C:
			mask, err := r.io.ReadButtons()
			if err != nil {
				r.logger.Debugf("Failed to read buttons: %v", err)
				continue
			}
			if mask&r.cfg.StartButton != 0 {
				r.logger.Infof("Start button pressed")
				r.machine.Send(librefsm.Event{ID: fsm.EvButtonPressed})
				return
			}
		}
	}
}
