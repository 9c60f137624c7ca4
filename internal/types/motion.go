package types

// Direction of a single wheel during a timed move.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "rev"
	}
	return "fwd"
}

// BrakeMode applied when a move or stop completes.
type BrakeMode int

const (
	BrakeOff BrakeMode = iota
	BrakeOn
)

// WheelMove describes one side of a synchronous timed move.
type WheelMove struct {
	Dir   Direction
	Steps uint16
	Speed uint16
	Accel uint16
	Brake BrakeMode
}

// ManeuverStep is either a stop of both wheels or a paired timed move.
type ManeuverStep struct {
	Stop  bool
	Brake BrakeMode
	Left  WheelMove
	Right WheelMove
}

// StopStep stops both wheels with the given brake mode.
func StopStep(brake BrakeMode) ManeuverStep {
	return ManeuverStep{Stop: true, Brake: brake}
}

// MoveStep runs both wheels through a timed move.
func MoveStep(left, right WheelMove) ManeuverStep {
	return ManeuverStep{Left: left, Right: right}
}

// Maneuver is a ballistic sequence of steps that runs to completion without
// re-reading sensors.
type Maneuver struct {
	Name  string
	Steps []ManeuverStep
}
