package hardware

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"

	"pixybot/internal/logger"
	"pixybot/internal/vision"
)

// PixyUART reads object blocks from a Pixy camera on a serial port and
// hands the largest object of every frame to the registered mailbox.
type PixyUART struct {
	logger  *logger.Logger
	port    string
	baud    int
	conn    io.ReadCloser
	mailbox *vision.Mailbox
	dropped int
}

func NewPixyUART(port string, baud int, l *logger.Logger) *PixyUART {
	return &PixyUART{
		logger: l.WithTag("pixy"),
		port:   port,
		baud:   baud,
	}
}

// Open opens the serial port the camera is attached to.
func (p *PixyUART) Open() error {
	conn, err := serial.OpenPort(&serial.Config{
		Name:        p.port,
		Baud:        p.baud,
		ReadTimeout: serialReadTimeout,
	})
	if err != nil {
		return fmt.Errorf("open pixy port %s: %w", p.port, err)
	}
	p.conn = conn
	p.logger.Infof("Pixy opened on %s @ %d baud", p.port, p.baud)
	return nil
}

// Register sets the buffer observations are written into.
func (p *PixyUART) Register(mb *vision.Mailbox) {
	p.mailbox = mb
}

// StartTracking starts the reader goroutine. It stops when ctx is done.
func (p *PixyUART) StartTracking(ctx context.Context) error {
	if p.conn == nil {
		return errors.New("pixy not open")
	}
	if p.mailbox == nil {
		return errors.New("no observation buffer registered")
	}
	go p.track(ctx, p.conn)
	return nil
}

func (p *PixyUART) track(ctx context.Context, r io.Reader) {
	parser := NewPixyParser(bufio.NewReader(r))
	p.logger.Infof("Tracking started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Infof("Tracking stopped")
			return
		default:
		}

		block, frameStart, err := parser.Next()
		if err != nil {
			if errors.Is(err, ErrPixyChecksum) {
				p.logger.Debugf("Dropping block: %v", err)
				continue
			}
			if errors.Is(err, io.EOF) {
				// Read timeout with nothing in view.
				continue
			}
			p.logger.Warnf("Error reading pixy stream: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if !frameStart {
			continue
		}

		if !p.mailbox.Offer(block.Observation()) {
			p.dropped++
			p.logger.Debugf("Control loop busy, dropped observation (%d total)", p.dropped)
		}
	}
}

func (p *PixyUART) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
