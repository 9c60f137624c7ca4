package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/librescoot/librefsm"
	"go.uber.org/atomic"

	"pixybot/internal/fsm"
	"pixybot/internal/hardware"
	"pixybot/internal/logger"
	"pixybot/internal/messaging"
	"pixybot/internal/types"
	"pixybot/internal/vision"
)

// ErrVisionUnavailable is returned by Run when the vision sensor cannot be
// brought up. The controller does not recover from it.
var ErrVisionUnavailable = errors.New("vision sensor unavailable")

const (
	fatalVisionText = "FATAL: Pixy failed."
	startingText    = "Starting..."
	pressStartText  = "Press S3 to begin"
	maneuverText    = "AVOIDING..."

	DefaultButtonPoll = 20 * time.Millisecond
)

// Config holds the controller tunables.
type Config struct {
	SenseInterval time.Duration
	CyclePeriod   time.Duration // 0 runs the loop back to back
	ButtonPoll    time.Duration
	StartButton   hardware.ButtonMask
	Timing        fsm.Timing
	Behaviors     []string
	Follow        FollowConfig
	VisionReadout bool // show observations on the display instead of the state
}

func DefaultConfig() Config {
	return Config{
		SenseInterval: DefaultSenseInterval,
		ButtonPoll:    DefaultButtonPoll,
		StartButton:   hardware.ButtonS3,
		Timing:        fsm.DefaultTiming(),
		Behaviors:     DefaultBehaviorOrder,
		Follow:        DefaultFollowConfig(),
	}
}

// Robot owns the control loop and everything it mutates.
type Robot struct {
	cfg    Config
	logger *logger.Logger

	io        HardwareIO
	actuator  Actuator
	vision    VisionSensor
	display   Display
	telemetry messaging.Publisher

	mailbox *vision.Mailbox
	rc      *RobotContext
	sampler *SensorSampler
	arbiter *Arbitrator
	gate    *ActionGate
	status  *StatusDisplay
	readout *VisionReadout

	machine    *librefsm.Machine
	fsmStarted atomic.Bool
	runCtx     context.Context

	mu         sync.Mutex
	buttonStop chan struct{}
	started    chan struct{}
	startOnce  sync.Once
	maneuvers  int
}

// NewRobot wires the controller. telemetry may be nil.
func NewRobot(
	cfg Config,
	io HardwareIO,
	actuator Actuator,
	vs VisionSensor,
	display Display,
	telemetry messaging.Publisher,
	l *logger.Logger,
) (*Robot, error) {
	if cfg.ButtonPoll <= 0 {
		cfg.ButtonPoll = DefaultButtonPoll
	}
	if cfg.StartButton == 0 {
		cfg.StartButton = hardware.ButtonS3
	}

	behaviors, err := BuildBehaviors(cfg.Behaviors, cfg.Follow, l)
	if err != nil {
		return nil, fmt.Errorf("failed to build behaviors: %w", err)
	}

	r := &Robot{
		cfg:       cfg,
		logger:    l,
		io:        io,
		actuator:  actuator,
		vision:    vs,
		display:   display,
		telemetry: telemetry,
		mailbox:   vision.NewMailbox(),
		started:   make(chan struct{}),
	}
	r.rc = NewRobotContext(r.mailbox)
	r.sampler = NewSensorSampler(io, cfg.SenseInterval, l)
	r.arbiter = NewArbitrator(behaviors, r, l)
	r.gate = NewActionGate(NewMotorDispatcher(actuator, telemetry, l))
	r.status = NewStatusDisplay(display, l)
	if cfg.VisionReadout {
		r.readout = NewVisionReadout(display, l)
	}
	if err := r.buildFSM(); err != nil {
		return nil, fmt.Errorf("failed to build lifecycle: %w", err)
	}
	return r, nil
}

// Run brings the robot up and runs the control loop until ctx is done.
func (r *Robot) Run(ctx context.Context) error {
	if err := r.startFSM(ctx); err != nil {
		return fmt.Errorf("failed to start lifecycle: %w", err)
	}

	if err := r.vision.Open(); err != nil {
		return r.fail(err)
	}
	r.vision.Register(r.mailbox)
	if err := r.vision.StartTracking(ctx); err != nil {
		return r.fail(err)
	}

	r.rc.Action.Reset()
	r.print(startingText)
	if err := r.sendEvent(fsm.EvVisionReady); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to enter bring-up: %w", err)
	}

	select {
	case <-r.started:
	case <-ctx.Done():
		return nil
	}

	r.logger.Infof("Control loop running, behaviors %v", r.arbiter.Order())
	return r.loop(ctx)
}

func (r *Robot) fail(cause error) error {
	r.logger.Errorf("Vision sensor failed: %v", cause)
	r.print(fatalVisionText)
	if err := r.sendEvent(fsm.EvVisionFailed); err != nil {
		r.logger.Warnf("Failed to enter fatal state: %v", err)
	}
	return fmt.Errorf("%w: %v", ErrVisionUnavailable, cause)
}

func (r *Robot) loop(ctx context.Context) error {
	if r.cfg.CyclePeriod <= 0 {
		for ctx.Err() == nil {
			r.Cycle()
		}
		return nil
	}

	ticker := time.NewTicker(r.cfg.CyclePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Cycle()
		}
	}
}

// Cycle runs one sense, arbitrate, dispatch and report pass.
func (r *Robot) Cycle() {
	r.sampler.Sample(&r.rc.Sensors)
	if r.readout != nil {
		// Before arbitration, which acknowledges the observation.
		r.readout.Peek(r.mailbox)
	}
	r.arbiter.Arbitrate(r.rc)
	r.gate.DispatchIfChanged(r.rc.Action)
	if r.readout == nil {
		r.status.OnCycle(r.rc.Action.State)
	}
}

// Action returns a copy of the active motor action.
func (r *Robot) Action() types.MotorAction {
	return r.rc.Action
}

// RunManeuver drives the wheels through m and blocks until it completes.
// Sensors are not read and nothing can interrupt it.
func (r *Robot) RunManeuver(m types.Maneuver) {
	if err := r.sendEvent(fsm.EvManeuverStart); err != nil {
		r.logger.Debugf("Maneuver start event: %v", err)
	}

	r.mu.Lock()
	r.maneuvers++
	r.mu.Unlock()

	r.print(maneuverText)
	for i, step := range m.Steps {
		var err error
		if step.Stop {
			err = r.actuator.Stop(step.Brake)
		} else {
			err = r.actuator.MoveSync(step.Left, step.Right)
		}
		if err != nil {
			r.logger.Warnf("Maneuver %s step %d failed: %v", m.Name, i, err)
		}
	}
	r.gate.Invalidate()

	if err := r.sendEvent(fsm.EvManeuverDone); err != nil {
		r.logger.Debugf("Maneuver done event: %v", err)
	}
}

// Maneuvers returns how many maneuvers have run.
func (r *Robot) Maneuvers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maneuvers
}

func (r *Robot) print(text string) {
	if err := r.display.Clear(); err != nil {
		r.logger.Warnf("Failed to clear display: %v", err)
	}
	if err := r.display.Printf("%s\n", text); err != nil {
		r.logger.Warnf("Failed to write display: %v", err)
	}
}
