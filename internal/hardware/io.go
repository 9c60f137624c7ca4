package hardware

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"pixybot/internal/logger"
)

// LinuxHardwareIO drives the robot's digital lines through the GPIO
// character device.
type LinuxHardwareIO struct {
	logger      *logger.Logger
	inputs      map[string]LineMapping
	outputs     map[string]LineMapping
	chips       map[int]*gpiocdev.Chip
	lines       map[string]*gpiocdev.Line
	outputState map[string]bool
	mu          sync.RWMutex
}

// NewLinuxHardwareIO creates the GPIO layer. Nil maps fall back to
// DiMappings and DoMappings.
func NewLinuxHardwareIO(l *logger.Logger, inputs, outputs map[string]LineMapping) *LinuxHardwareIO {
	if inputs == nil {
		inputs = DiMappings
	}
	if outputs == nil {
		outputs = DoMappings
	}
	return &LinuxHardwareIO{
		logger:      l.WithTag("gpio"),
		inputs:      inputs,
		outputs:     outputs,
		chips:       make(map[int]*gpiocdev.Chip),
		lines:       make(map[string]*gpiocdev.Line),
		outputState: make(map[string]bool),
	}
}

func (io *LinuxHardwareIO) chip(n int) (*gpiocdev.Chip, error) {
	if c, ok := io.chips[n]; ok {
		return c, nil
	}
	c, err := gpiocdev.NewChip(fmt.Sprintf("gpiochip%d", n))
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO chip %d: %w", n, err)
	}
	io.chips[n] = c
	return c, nil
}

func (io *LinuxHardwareIO) Initialize() error {
	io.logger.Infof("Initializing hardware IO")

	io.mu.Lock()
	defer io.mu.Unlock()

	for name, m := range io.inputs {
		chip, err := io.chip(m.Chip)
		if err != nil {
			return err
		}
		opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithConsumer("pixybot")}
		if m.ActiveLow {
			opts = append(opts, gpiocdev.AsActiveLow)
		}
		line, err := chip.RequestLine(m.Line, opts...)
		if err != nil {
			return fmt.Errorf("failed to request GPIO line %d for %s: %w", m.Line, name, err)
		}
		io.lines[name] = line
		io.logger.Infof("Configured DI %s: %s", name, m)
	}

	for name, m := range io.outputs {
		chip, err := io.chip(m.Chip)
		if err != nil {
			return err
		}
		opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0), gpiocdev.WithConsumer("pixybot")}
		if m.ActiveLow {
			opts = append(opts, gpiocdev.AsActiveLow)
		}
		line, err := chip.RequestLine(m.Line, opts...)
		if err != nil {
			return fmt.Errorf("failed to request GPIO line %d for %s: %w", m.Line, name, err)
		}
		io.lines[name] = line
		io.outputState[name] = false
		io.logger.Infof("Configured DO %s: %s", name, m)
	}

	return nil
}

func (io *LinuxHardwareIO) ReadDigitalInput(channel string) (bool, error) {
	io.mu.RLock()
	line, ok := io.lines[channel]
	_, isInput := io.inputs[channel]
	io.mu.RUnlock()

	if !ok || !isInput {
		return false, fmt.Errorf("unknown input channel: %s", channel)
	}

	val, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("failed to read DI %s: %w", channel, err)
	}
	io.logger.Debugf("Read DI %s=%d", channel, val)
	return val != 0, nil
}

func (io *LinuxHardwareIO) WriteDigitalOutput(channel string, value bool) error {
	io.mu.Lock()
	defer io.mu.Unlock()
	return io.writeLocked(channel, value)
}

func (io *LinuxHardwareIO) writeLocked(channel string, value bool) error {
	line, ok := io.lines[channel]
	if _, isOutput := io.outputs[channel]; !ok || !isOutput {
		return fmt.Errorf("unknown digital output channel: %s", channel)
	}

	if err := line.SetValue(boolToInt(value)); err != nil {
		return fmt.Errorf("failed to set DO %s=%v: %w", channel, value, err)
	}
	io.outputState[channel] = value
	io.logger.Debugf("Set DO %s=%v", channel, value)
	return nil
}

// ToggleOutput inverts the last value written to channel.
func (io *LinuxHardwareIO) ToggleOutput(channel string) error {
	io.mu.Lock()
	defer io.mu.Unlock()
	return io.writeLocked(channel, !io.outputState[channel])
}

// ReadButtons returns the mask of currently pressed buttons. Buttons that
// are not wired are reported as released.
func (io *LinuxHardwareIO) ReadButtons() (ButtonMask, error) {
	var mask ButtonMask
	for _, b := range buttonChannels {
		io.mu.RLock()
		_, wired := io.lines[b.channel]
		io.mu.RUnlock()
		if !wired {
			continue
		}
		pressed, err := io.ReadDigitalInput(b.channel)
		if err != nil {
			return mask, err
		}
		if pressed {
			mask |= b.mask
		}
	}
	return mask, nil
}

func (io *LinuxHardwareIO) Cleanup() {
	io.mu.Lock()
	defer io.mu.Unlock()

	io.logger.Infof("Cleaning up hardware resources")

	for name, line := range io.lines {
		if _, isOutput := io.outputs[name]; isOutput {
			line.SetValue(0)
		}
		line.Close()
		io.logger.Debugf("Closed GPIO line for %s", name)
	}
	io.lines = make(map[string]*gpiocdev.Line)

	for id, chip := range io.chips {
		chip.Close()
		io.logger.Debugf("Closed GPIO chip %d", id)
	}
	io.chips = make(map[int]*gpiocdev.Chip)

	io.logger.Infof("Hardware cleanup complete")
}
