package core

import (
	"fmt"
	"math"
	"time"

	"github.com/felixge/pidctrl"

	"pixybot/internal/logger"
	"pixybot/internal/types"
	"pixybot/internal/vision"
)

// Behavior names accepted by BuildBehaviors.
const (
	BehaviorCruise     = "cruise"
	BehaviorPixyFollow = "pixy-follow"
	BehaviorIRAvoid    = "ir-avoid"
)

// DefaultBehaviorOrder lists behaviors from lowest to highest priority.
var DefaultBehaviorOrder = []string{BehaviorCruise, BehaviorPixyFollow, BehaviorIRAvoid}

// Cruise and avoidance set points
const (
	CruiseSpeed = 100
	CruiseAccel = 400

	AvoidSpeed = 200
	AvoidAccel = 400

	avoidBackupSteps = 250
	avoidPivotSteps  = 150
)

// Proposal is what a behavior wants this cycle. A non-nil Maneuver runs to
// completion before Patch is applied.
type Proposal struct {
	Patch    types.Patch
	Maneuver *types.Maneuver
}

// Behavior inspects the context and optionally proposes an action.
type Behavior interface {
	Name() string
	Propose(rc *RobotContext) (Proposal, bool)
}

// Cruise drives straight ahead. It always fires.
type Cruise struct{}

func (Cruise) Name() string { return BehaviorCruise }

func (Cruise) Propose(*RobotContext) (Proposal, bool) {
	return Proposal{Patch: types.Patch{
		Fields: types.FieldAll,
		Action: types.MotorAction{
			State:  types.StateCruising,
			SpeedL: CruiseSpeed,
			SpeedR: CruiseSpeed,
			AccelL: CruiseAccel,
			AccelR: CruiseAccel,
		},
	}}, true
}

// FollowConfig tunes PixyFollow.
type FollowConfig struct {
	Signature uint16
	BaseSpeed int16
	Kp        float64
	Ki        float64
	Kd        float64
}

// DefaultFollowConfig steers purely proportionally with unit gain.
func DefaultFollowConfig() FollowConfig {
	return FollowConfig{
		Signature: 1,
		BaseSpeed: CruiseSpeed,
		Kp:        1,
	}
}

// PixyFollow steers toward a fresh vision observation.
//
// Only observations with the configured signature change the speeds; any
// other signature still claims the PixyFollowing state while leaving the
// wheels to whatever lower-priority behavior wrote them.
type PixyFollow struct {
	cfg    FollowConfig
	pid    *pidctrl.PIDController
	logger *logger.Logger
	now    func() time.Time
	last   time.Time
}

func NewPixyFollow(cfg FollowConfig, l *logger.Logger) *PixyFollow {
	pid := pidctrl.NewPIDController(cfg.Kp, cfg.Ki, cfg.Kd).
		SetOutputLimits(math.MinInt16, math.MaxInt16).
		Set(vision.FrameCenterX)
	return &PixyFollow{
		cfg:    cfg,
		pid:    pid,
		logger: l.WithTag(BehaviorPixyFollow),
		now:    time.Now,
	}
}

// steer feeds x to the controller and returns the output.
func (p *PixyFollow) steer(x uint16) float64 {
	now := p.now()
	dt := now.Sub(p.last)
	if p.last.IsZero() || dt <= 0 {
		dt = time.Millisecond
	}
	p.last = now
	return p.pid.UpdateDuration(float64(x), dt)
}

func (p *PixyFollow) Name() string { return BehaviorPixyFollow }

func (p *PixyFollow) Propose(rc *RobotContext) (Proposal, bool) {
	mb := rc.Sensors.Vision
	if mb == nil {
		return Proposal{}, false
	}
	obs, ok := mb.Observation()
	if !ok {
		return Proposal{}, false
	}

	patch := types.Patch{
		Fields: types.FieldState,
		Action: types.MotorAction{State: types.StatePixyFollowing},
	}
	if obs.Signature == p.cfg.Signature {
		// Output is setpoint - x, i.e. -Kp*dx for a pure P controller.
		turn := -int(math.Round(p.steer(obs.X)))
		patch.Fields |= types.FieldSpeeds
		patch.Action.SpeedL = clampSpeed(int(p.cfg.BaseSpeed) + turn)
		patch.Action.SpeedR = clampSpeed(int(p.cfg.BaseSpeed) - turn)
		p.logger.Debugf("Target x=%d sig=%d -> %d/%d", obs.X, obs.Signature, patch.Action.SpeedL, patch.Action.SpeedR)
	}

	mb.Ack()
	return Proposal{Patch: patch}, true
}

func clampSpeed(v int) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// IRAvoid backs away and pivots whenever an IR sensor is tripped.
type IRAvoid struct {
	logger *logger.Logger
}

func NewIRAvoid(l *logger.Logger) *IRAvoid {
	return &IRAvoid{logger: l.WithTag(BehaviorIRAvoid)}
}

func (a *IRAvoid) Name() string { return BehaviorIRAvoid }

func (a *IRAvoid) Propose(rc *RobotContext) (Proposal, bool) {
	s := &rc.Sensors
	if !s.AnyIR() {
		return Proposal{}, false
	}

	side := "right"
	switch {
	case s.LeftIR && s.RightIR:
		side = "both"
	case s.LeftIR:
		side = "left"
	}
	// Every side gets the same escape.
	a.logger.Infof("Obstacle on %s, avoiding", side)

	m := AvoidManeuver()
	return Proposal{
		Maneuver: &m,
		Patch: types.Patch{
			Fields: types.FieldAll,
			Action: types.MotorAction{
				State:  types.StateAvoiding,
				SpeedL: AvoidSpeed,
				SpeedR: AvoidSpeed,
				AccelL: AvoidAccel,
				AccelR: AvoidAccel,
			},
		},
	}, true
}

// AvoidManeuver stops, backs up and pivots left.
func AvoidManeuver() types.Maneuver {
	move := func(dir types.Direction, steps uint16) types.WheelMove {
		return types.WheelMove{Dir: dir, Steps: steps, Speed: AvoidSpeed, Accel: AvoidAccel, Brake: types.BrakeOff}
	}
	return types.Maneuver{
		Name: "avoid",
		Steps: []types.ManeuverStep{
			types.StopStep(types.BrakeOff),
			types.MoveStep(move(types.Reverse, avoidBackupSteps), move(types.Reverse, avoidBackupSteps)),
			types.MoveStep(move(types.Reverse, avoidPivotSteps), move(types.Forward, avoidPivotSteps)),
		},
	}
}

// BuildBehaviors instantiates behaviors by name, in the given order.
func BuildBehaviors(names []string, follow FollowConfig, l *logger.Logger) ([]Behavior, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no behaviors configured")
	}
	seen := make(map[string]bool, len(names))
	behaviors := make([]Behavior, 0, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("behavior %q listed twice", name)
		}
		seen[name] = true

		switch name {
		case BehaviorCruise:
			behaviors = append(behaviors, Cruise{})
		case BehaviorPixyFollow:
			behaviors = append(behaviors, NewPixyFollow(follow, l))
		case BehaviorIRAvoid:
			behaviors = append(behaviors, NewIRAvoid(l))
		default:
			return nil, fmt.Errorf("unknown behavior %q", name)
		}
	}
	return behaviors, nil
}
