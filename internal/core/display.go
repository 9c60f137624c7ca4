package core

import (
	"pixybot/internal/logger"
	"pixybot/internal/types"
	"pixybot/internal/vision"
)

// StatusDisplay shows the behavioral state on the LCD.
type StatusDisplay struct {
	display  Display
	previous types.RobotState
	drawn    bool
	logger   *logger.Logger
}

func NewStatusDisplay(d Display, l *logger.Logger) *StatusDisplay {
	return &StatusDisplay{display: d, logger: l.WithTag("display")}
}

func stateText(s types.RobotState) string {
	switch s {
	case types.StateStartup:
		return "Starting..."
	case types.StateCruising:
		return "Exploring..."
	case types.StateAvoiding:
		return "Avoiding..."
	case types.StatePixyFollowing:
		return "Following..."
	default:
		return "Unknown state!"
	}
}

// OnCycle redraws when the state changed since the last draw. Startup is
// redrawn every time.
func (s *StatusDisplay) OnCycle(state types.RobotState) {
	if s.drawn && state == s.previous && state != types.StateStartup {
		return
	}
	s.show(stateText(state))
	s.previous = state
	s.drawn = true
}

func (s *StatusDisplay) show(text string) {
	if err := s.display.Clear(); err != nil {
		s.logger.Warnf("Failed to clear display: %v", err)
	}
	if err := s.display.Printf("%s\n", text); err != nil {
		s.logger.Warnf("Failed to write display: %v", err)
	}
}

// VisionReadout shows the pending vision observation instead of the status
// line, for checking the camera on the bench.
type VisionReadout struct {
	display Display
	last    vision.Observation
	drawn   bool
	logger  *logger.Logger
}

func NewVisionReadout(d Display, l *logger.Logger) *VisionReadout {
	return &VisionReadout{display: d, logger: l.WithTag("readout")}
}

// Peek draws the observation waiting in mb, if it differs from the last one
// drawn. It never acknowledges the observation.
func (v *VisionReadout) Peek(mb *vision.Mailbox) {
	obs, ok := mb.Observation()
	if !ok || (v.drawn && obs == v.last) {
		return
	}
	if err := v.display.Clear(); err != nil {
		v.logger.Warnf("Failed to clear display: %v", err)
	}
	err := v.display.Printf("Cent = ( %d, %d )\nw: %d, h: %d\nsig#: %d\n",
		obs.X, obs.Y, obs.Width, obs.Height, obs.Signature)
	if err != nil {
		v.logger.Warnf("Failed to write display: %v", err)
	}
	v.last = obs
	v.drawn = true
}
