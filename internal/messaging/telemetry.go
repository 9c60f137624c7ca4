package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"pixybot/internal/logger"
	"pixybot/internal/types"
)

// ActionReport is the wire form of a dispatched motor action.
type ActionReport struct {
	Session   string    `json:"session"`
	State     string    `json:"state"`
	SpeedL    int16     `json:"speed_l"`
	SpeedR    int16     `json:"speed_r"`
	AccelL    uint16    `json:"accel_l"`
	AccelR    uint16    `json:"accel_r"`
	Lifecycle string    `json:"lifecycle,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// NewActionReport builds a report for a.
func NewActionReport(session string, a types.MotorAction, ts time.Time) ActionReport {
	return ActionReport{
		Session:   session,
		State:     a.State.String(),
		SpeedL:    a.SpeedL,
		SpeedR:    a.SpeedR,
		AccelL:    a.AccelL,
		AccelR:    a.AccelR,
		Timestamp: ts.UTC(),
	}
}

// Action converts the report back into a motor action.
func (r ActionReport) Action() (types.MotorAction, error) {
	st, ok := types.ParseRobotState(r.State)
	if !ok {
		return types.MotorAction{}, fmt.Errorf("unknown robot state %q", r.State)
	}
	return types.MotorAction{State: st, SpeedL: r.SpeedL, SpeedR: r.SpeedR, AccelL: r.AccelL, AccelR: r.AccelR}, nil
}

func (r ActionReport) JSON() ([]byte, error) {
	return json.Marshal(r)
}

// hashFields flattens the report into the robot hash layout.
func (r ActionReport) hashFields() map[string]any {
	return map[string]any{
		"session":          r.Session,
		"state":            r.State,
		"speed:left":       r.SpeedL,
		"speed:right":      r.SpeedR,
		"accel:left":       r.AccelL,
		"accel:right":      r.AccelR,
		"action:timestamp": r.Timestamp.Format(time.RFC3339Nano),
	}
}

// reportFromHash is the inverse of hashFields. Missing numeric fields read
// as zero.
func reportFromHash(h map[string]string) (ActionReport, error) {
	r := ActionReport{
		Session:   h["session"],
		State:     h["state"],
		Lifecycle: h["lifecycle"],
	}
	ints := []struct {
		field string
		bits  int
		dst   func(int64)
	}{
		{"speed:left", 16, func(v int64) { r.SpeedL = int16(v) }},
		{"speed:right", 16, func(v int64) { r.SpeedR = int16(v) }},
		{"accel:left", 17, func(v int64) { r.AccelL = uint16(v) }},
		{"accel:right", 17, func(v int64) { r.AccelR = uint16(v) }},
	}
	for _, f := range ints {
		s, ok := h[f.field]
		if !ok || s == "" {
			continue
		}
		v, err := strconv.ParseInt(s, 10, f.bits)
		if err != nil {
			return r, fmt.Errorf("parse %s: %w", f.field, err)
		}
		f.dst(v)
	}
	if ts, ok := h["action:timestamp"]; ok && ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return r, fmt.Errorf("parse action:timestamp: %w", err)
		}
		r.Timestamp = t
	}
	return r, nil
}

// Publisher receives controller telemetry.
type Publisher interface {
	PublishAction(a types.MotorAction) error
	PublishLifecycle(state string) error
}

// ErrPublisherClosed is returned by publishes after Close.
var ErrPublisherClosed = errors.New("telemetry publisher closed")

type telemetryMsg struct {
	action    *types.MotorAction
	lifecycle string
}

// AsyncPublisher forwards telemetry to its sinks from a background
// goroutine so the control loop never waits on the network. Messages are
// dropped when the queue is full.
type AsyncPublisher struct {
	logger *logger.Logger
	sinks  []Publisher
	queue  chan telemetryMsg
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsyncPublisher(l *logger.Logger, queueLen int, sinks ...Publisher) *AsyncPublisher {
	p := &AsyncPublisher{
		logger: l.WithTag("telemetry"),
		sinks:  sinks,
		queue:  make(chan telemetryMsg, queueLen),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for msg := range p.queue {
		for _, s := range p.sinks {
			var err error
			if msg.action != nil {
				err = s.PublishAction(*msg.action)
			} else {
				err = s.PublishLifecycle(msg.lifecycle)
			}
			if err != nil {
				p.logger.Warnf("Failed to publish telemetry: %v", err)
			}
		}
	}
}

func (p *AsyncPublisher) enqueue(msg telemetryMsg) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.queue <- msg:
		return nil
	default:
		return fmt.Errorf("telemetry queue full")
	}
}

func (p *AsyncPublisher) PublishAction(a types.MotorAction) error {
	return p.enqueue(telemetryMsg{action: &a})
}

func (p *AsyncPublisher) PublishLifecycle(state string) error {
	return p.enqueue(telemetryMsg{lifecycle: state})
}

// Close drains the queue and waits for the worker. Later publishes fail
// with ErrPublisherClosed.
func (p *AsyncPublisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	<-p.done
}
