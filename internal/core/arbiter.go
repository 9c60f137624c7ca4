package core

import (
	"pixybot/internal/logger"
	"pixybot/internal/types"
)

// ManeuverRunner executes a ballistic maneuver to completion.
type ManeuverRunner interface {
	RunManeuver(m types.Maneuver)
}

// Arbitrator folds behavior proposals onto the active action. Behaviors are
// ordered from lowest to highest priority; later writers win field by field.
type Arbitrator struct {
	behaviors []Behavior
	runner    ManeuverRunner
	logger    *logger.Logger
}

func NewArbitrator(behaviors []Behavior, runner ManeuverRunner, l *logger.Logger) *Arbitrator {
	return &Arbitrator{
		behaviors: behaviors,
		runner:    runner,
		logger:    l.WithTag("arbiter"),
	}
}

// Arbitrate runs every behavior once, in order. A maneuver runs at its
// behavior's position, before that behavior's patch is applied.
func (a *Arbitrator) Arbitrate(rc *RobotContext) {
	for _, b := range a.behaviors {
		p, ok := b.Propose(rc)
		if !ok {
			continue
		}
		if p.Maneuver != nil {
			if a.runner != nil {
				a.runner.RunManeuver(*p.Maneuver)
			} else {
				a.logger.Warnf("No maneuver runner, skipping %s from %s", p.Maneuver.Name, b.Name())
			}
		}
		p.Patch.Apply(&rc.Action)
	}
}

// Order returns the behavior names from lowest to highest priority.
func (a *Arbitrator) Order() []string {
	names := make([]string, len(a.behaviors))
	for i, b := range a.behaviors {
		names[i] = b.Name()
	}
	return names
}
