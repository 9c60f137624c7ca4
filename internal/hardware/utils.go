package hardware

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseLineMapping parses "chip:line" with an optional ":low" suffix for
// active-low lines, e.g. "0:17:low".
func ParseLineMapping(s string) (LineMapping, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return LineMapping{}, fmt.Errorf("invalid line mapping %q, want chip:line[:low]", s)
	}

	chip, err := strconv.Atoi(parts[0])
	if err != nil || chip < 0 {
		return LineMapping{}, fmt.Errorf("invalid chip in %q", s)
	}
	line, err := strconv.Atoi(parts[1])
	if err != nil || line < 0 {
		return LineMapping{}, fmt.Errorf("invalid line in %q", s)
	}

	m := LineMapping{Chip: chip, Line: line}
	if len(parts) == 3 {
		switch parts[2] {
		case "low":
			m.ActiveLow = true
		case "high":
		default:
			return LineMapping{}, fmt.Errorf("invalid polarity %q in %q", parts[2], s)
		}
	}
	return m, nil
}

func (m LineMapping) String() string {
	if m.ActiveLow {
		return fmt.Sprintf("%d:%d:low", m.Chip, m.Line)
	}
	return fmt.Sprintf("%d:%d", m.Chip, m.Line)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
