package intent

import (
	"fmt"
	"strings"

	"github.com/teambition/rrule-go"
)

// validateRecurrence checks every RFC 5545 recurrence line. The lines themselves are passed to
// the store untouched.
func validateRecurrence(lines []string) error {
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return fmt.Errorf("recurrence line %q has no property name", line)
		}
		// RDATE;TZID=Europe/Warsaw:... carries parameters before the colon
		property, _, _ := strings.Cut(strings.ToUpper(name), ";")
		switch property {
		case "RRULE", "EXRULE":
			if _, err := rrule.StrToROption(value); err != nil {
				return fmt.Errorf("invalid %s %q: %w", property, value, err)
			}
		case "RDATE", "EXDATE":
			if strings.TrimSpace(value) == "" {
				return fmt.Errorf("empty %s", property)
			}
		default:
			return fmt.Errorf("unsupported recurrence property %q", property)
		}
	}
	return nil
}
