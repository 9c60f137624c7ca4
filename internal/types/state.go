package types

// RobotState is the behavior that last claimed the active motor action.
type RobotState int

const (
	StateStartup RobotState = iota
	StateCruising
	StateAvoiding
	StatePixyFollowing
)

func (s RobotState) String() string {
	switch s {
	case StateStartup:
		return "startup"
	case StateCruising:
		return "cruising"
	case StateAvoiding:
		return "avoiding"
	case StatePixyFollowing:
		return "pixy-following"
	default:
		return "unknown"
	}
}

// ParseRobotState is the inverse of RobotState.String.
func ParseRobotState(s string) (RobotState, bool) {
	for _, st := range []RobotState{StateStartup, StateCruising, StateAvoiding, StatePixyFollowing} {
		if st.String() == s {
			return st, true
		}
	}
	return StateStartup, false
}
