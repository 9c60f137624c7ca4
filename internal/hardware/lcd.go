package hardware

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"pixybot/internal/logger"
)

// charlcd control characters
const (
	lcdClear = "\f"
)

// CharLCD writes text to a character LCD exposed by the kernel's
// auxdisplay driver (/dev/lcd).
type CharLCD struct {
	logger *logger.Logger
	path   string
	fd     int
	mu     sync.Mutex
}

func NewCharLCD(path string, l *logger.Logger) *CharLCD {
	return &CharLCD{
		logger: l.WithTag("lcd"),
		path:   path,
		fd:     -1,
	}
}

func (d *CharLCD) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	fd, err := unix.Open(d.path, unix.O_WRONLY|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open LCD %s: %w", d.path, err)
	}
	d.fd = fd
	d.logger.Infof("LCD opened: %s", d.path)
	return nil
}

func (d *CharLCD) write(s string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fd < 0 {
		return fmt.Errorf("LCD %s not open", d.path)
	}
	buf := []byte(s)
	for len(buf) > 0 {
		n, err := unix.Write(d.fd, buf)
		if err != nil {
			return fmt.Errorf("write LCD: %w", err)
		}
		buf = buf[n:]
	}
	return nil
}

// Clear blanks the display and homes the cursor.
func (d *CharLCD) Clear() error {
	return d.write(lcdClear)
}

func (d *CharLCD) Printf(format string, args ...any) error {
	s := fmt.Sprintf(format, args...)
	d.logger.Debugf("print %q", s)
	return d.write(s)
}

func (d *CharLCD) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}
