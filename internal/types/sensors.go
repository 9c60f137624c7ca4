package types

import "pixybot/internal/vision"

// SensorSnapshot holds the latest sensed state. Vision points at the
// mailbox the vision driver writes into.
type SensorSnapshot struct {
	LeftIR  bool
	RightIR bool
	Vision  *vision.Mailbox
}

// AnyIR reports whether at least one IR sensor is tripped.
func (s *SensorSnapshot) AnyIR() bool {
	return s.LeftIR || s.RightIR
}
