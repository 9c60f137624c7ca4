package core

import (
	"time"

	"pixybot/internal/hardware"
	"pixybot/internal/logger"
	"pixybot/internal/types"
)

// DefaultSenseInterval is how often the IR sensors are read.
const DefaultSenseInterval = 125 * time.Millisecond

// SensorSampler reads the IR sensors on a fixed cadence without ever
// blocking the loop.
type SensorSampler struct {
	io       HardwareIO
	interval time.Duration
	logger   *logger.Logger
	now      func() time.Time

	armed bool
	last  time.Time
}

func NewSensorSampler(io HardwareIO, interval time.Duration, l *logger.Logger) *SensorSampler {
	if interval <= 0 {
		interval = DefaultSenseInterval
	}
	return &SensorSampler{
		io:       io,
		interval: interval,
		logger:   l.WithTag("sense"),
		now:      time.Now,
	}
}

// Sample refreshes the IR fields of snap when the interval has elapsed.
// The first call only arms the timer.
func (s *SensorSampler) Sample(snap *types.SensorSnapshot) {
	now := s.now()
	if !s.armed {
		s.armed = true
		s.last = now
		s.logger.Debugf("Sense timer armed, interval %v", s.interval)
		return
	}

	elapsed := now.Sub(s.last)
	if elapsed < s.interval {
		return
	}
	// Periodic timer: stay on the interval grid, missed ticks collapse.
	s.last = s.last.Add(elapsed - elapsed%s.interval)

	if err := s.io.ToggleOutput(hardware.ChannelIndicator); err != nil {
		s.logger.Debugf("Failed to toggle indicator: %v", err)
	}

	if v, err := s.io.ReadDigitalInput(hardware.ChannelIRLeft); err != nil {
		s.logger.Warnf("Failed to read left IR: %v", err)
	} else {
		snap.LeftIR = v
	}
	if v, err := s.io.ReadDigitalInput(hardware.ChannelIRRight); err != nil {
		s.logger.Warnf("Failed to read right IR: %v", err)
	} else {
		snap.RightIR = v
	}
}
