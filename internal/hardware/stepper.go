package hardware

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"

	"pixybot/internal/logger"
	"pixybot/internal/types"
)

// StepperLink talks to the stepper driver board over a serial line.
//
// The board speaks a line protocol: one command per line, answered with
// "ok" once accepted, "done" once a synchronous move has finished, or
// "err <reason>".
type StepperLink struct {
	logger *logger.Logger
	rw     io.ReadWriter
	closer io.Closer
	r      *bufio.Reader
	mu     sync.Mutex

	// How long to keep reading through serial read timeouts. Zero gives
	// up on the first empty read.
	replyTimeout time.Duration
	moveTimeout  time.Duration
}

// OpenStepperLink opens the serial port and waits for the board's "ready"
// banner.
func OpenStepperLink(port string, baud int, l *logger.Logger) (*StepperLink, error) {
	p, err := serial.OpenPort(&serial.Config{
		Name:        port,
		Baud:        baud,
		ReadTimeout: serialReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open stepper port %s: %w", port, err)
	}

	s := NewStepperLink(p, l)
	s.closer = p
	s.replyTimeout = stepperReplyTimeout
	s.moveTimeout = stepperMoveTimeout
	if err := s.awaitReady(); err != nil {
		p.Close()
		return nil, err
	}
	s.logger.Infof("Stepper board ready on %s", port)
	return s, nil
}

// NewStepperLink wraps an already open connection.
func NewStepperLink(rw io.ReadWriter, l *logger.Logger) *StepperLink {
	return &StepperLink{
		logger: l.WithTag("stepper"),
		rw:     rw,
		r:      bufio.NewReader(rw),
	}
}

func (s *StepperLink) awaitReady() error {
	// The board resets when the port opens and may print noise first.
	for i := 0; i < 8; i++ {
		ln, err := s.readLine(s.replyTimeout)
		if err != nil {
			return fmt.Errorf("waiting for stepper banner: %w", err)
		}
		if ln == "ready" {
			return nil
		}
		s.logger.Debugf("Ignoring pre-banner line %q", ln)
	}
	return fmt.Errorf("stepper board never reported ready")
}

func (s *StepperLink) readLine(timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	var sb strings.Builder
	for {
		chunk, err := s.r.ReadString('\n')
		sb.WriteString(chunk)
		if err == nil {
			return strings.TrimSpace(sb.String()), nil
		}
		// tarm/serial reports a read timeout as io.EOF
		if !errors.Is(err, io.EOF) || !time.Now().Before(deadline) {
			return "", err
		}
	}
}

func (s *StepperLink) command(want, format string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := fmt.Sprintf(format, args...)
	s.logger.Debugf("-> %s", cmd)
	if _, err := io.WriteString(s.rw, cmd+"\n"); err != nil {
		return fmt.Errorf("write %q: %w", cmd, err)
	}

	timeout := s.replyTimeout
	if want == "done" {
		timeout = s.moveTimeout
	}
	for {
		ln, err := s.readLine(timeout)
		if err != nil {
			return fmt.Errorf("read reply to %q: %w", cmd, err)
		}
		s.logger.Debugf("<- %s", ln)
		switch {
		case ln == want:
			return nil
		case ln == "ok":
			// accepted, a synchronous move still has to report done
			continue
		case strings.HasPrefix(ln, "err"):
			return fmt.Errorf("stepper rejected %q: %s", cmd, strings.TrimSpace(strings.TrimPrefix(ln, "err")))
		default:
			return fmt.Errorf("unexpected stepper reply %q to %q", ln, cmd)
		}
	}
}

// SetAccel sets the acceleration of both wheels.
func (s *StepperLink) SetAccel(left, right uint16) error {
	return s.command("ok", "ACC %d %d", left, right)
}

// Run sets free-running speeds; the sign gives the direction.
func (s *StepperLink) Run(left, right int16) error {
	return s.command("ok", "RUN %d %d", left, right)
}

// MoveSync runs a timed move on both wheels and returns once the board
// reports both have finished.
func (s *StepperLink) MoveSync(left, right types.WheelMove) error {
	return s.command("done", "MOVE %s %s", formatWheelMove(left), formatWheelMove(right))
}

// Stop halts both wheels.
func (s *StepperLink) Stop(brake types.BrakeMode) error {
	return s.command("ok", "STOP %d", boolToInt(brake == types.BrakeOn))
}

func formatWheelMove(m types.WheelMove) string {
	return fmt.Sprintf("%s %d %d %d %d", m.Dir, m.Steps, m.Speed, m.Accel, boolToInt(m.Brake == types.BrakeOn))
}

func (s *StepperLink) Close() error {
	if s.closer == nil {
		return nil
	}
	s.Stop(types.BrakeOff)
	return s.closer.Close()
}
