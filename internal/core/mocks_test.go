package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"pixybot/internal/hardware"
	"pixybot/internal/logger"
	"pixybot/internal/types"
	"pixybot/internal/vision"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(nil, logger.LogLevelNone)
}

// Mock HardwareIO
type mockHardwareIO struct {
	mu            sync.Mutex
	digitalInputs map[string]bool
	outputs       map[string]bool
	toggles       int
	reads         int
	buttons       hardware.ButtonMask
	readErr       error
}

func newMockHardwareIO() *mockHardwareIO {
	return &mockHardwareIO{
		digitalInputs: make(map[string]bool),
		outputs:       make(map[string]bool),
	}
}

func (m *mockHardwareIO) ReadDigitalInput(channel string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.readErr != nil {
		return false, m.readErr
	}
	return m.digitalInputs[channel], nil
}

func (m *mockHardwareIO) WriteDigitalOutput(channel string, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputs[channel] = value
	return nil
}

func (m *mockHardwareIO) ToggleOutput(channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toggles++
	m.outputs[channel] = !m.outputs[channel]
	return nil
}

func (m *mockHardwareIO) ReadButtons() (hardware.ButtonMask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buttons, nil
}

func (m *mockHardwareIO) setInput(channel string, v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.digitalInputs[channel] = v
}

func (m *mockHardwareIO) setButtons(b hardware.ButtonMask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buttons = b
}

// Mock Actuator, records calls in a compact text form
type mockActuator struct {
	mu        sync.Mutex
	calls     []string
	moves     int
	moveDelay time.Duration
}

func (m *mockActuator) record(format string, args ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf(format, args...))
	return nil
}

func (m *mockActuator) SetAccel(left, right uint16) error { return m.record("accel %d %d", left, right) }
func (m *mockActuator) Run(left, right int16) error       { return m.record("run %d %d", left, right) }
func (m *mockActuator) Stop(brake types.BrakeMode) error  { return m.record("stop %d", brake) }

func (m *mockActuator) MoveSync(l, r types.WheelMove) error {
	m.mu.Lock()
	m.moves++
	delay := m.moveDelay
	m.mu.Unlock()
	time.Sleep(delay)
	return m.record("move %s %d %d %d / %s %d %d %d", l.Dir, l.Steps, l.Speed, l.Accel, r.Dir, r.Steps, r.Speed, r.Accel)
}

func (m *mockActuator) Moves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.moves
}

func (m *mockActuator) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockActuator) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Mock VisionSensor
type mockVision struct {
	mu       sync.Mutex
	openErr  error
	mailbox  *vision.Mailbox
	tracking bool
}

func (m *mockVision) Open() error { return m.openErr }

func (m *mockVision) Register(mb *vision.Mailbox) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mailbox = mb
}

func (m *mockVision) StartTracking(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracking = true
	return nil
}

// Mock Display, keeps every line printed
type mockDisplay struct {
	mu     sync.Mutex
	lines  []string
	clears int
}

func (m *mockDisplay) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	return nil
}

func (m *mockDisplay) Printf(format string, args ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, strings.TrimSuffix(fmt.Sprintf(format, args...), "\n"))
	return nil
}

func (m *mockDisplay) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lines...)
}

func (m *mockDisplay) contains(text string) bool {
	for _, l := range m.Lines() {
		if l == text {
			return true
		}
	}
	return false
}

// Mock telemetry Publisher
type mockPublisher struct {
	mu         sync.Mutex
	actions    []types.MotorAction
	lifecycles []string
}

func (m *mockPublisher) PublishAction(a types.MotorAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, a)
	return nil
}

func (m *mockPublisher) PublishLifecycle(state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lifecycles = append(m.lifecycles, state)
	return nil
}

func (m *mockPublisher) Lifecycles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lifecycles...)
}

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// waitFor polls cond until it holds or the timeout expires.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
