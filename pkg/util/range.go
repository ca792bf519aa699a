package util

import (
	"fmt"
	"strconv"
	"strings"
)

// parseBounds parses "n" or "n-m".
func parseBounds(part string) (int, int, error) {
	if !strings.Contains(part, "-") {
		val, err := strconv.Atoi(part)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid value: %s", part)
		}
		return val, val, nil
	}

	rangeParts := strings.SplitN(part, "-", 2)
	start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid start value in range %s: %v", part, err)
	}
	end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid end value in range %s: %v", part, err)
	}
	if start > end {
		return 0, 0, fmt.Errorf("start value %d greater than end value %d in range %s", start, end, part)
	}
	return start, end, nil
}

// ValidateVLANID checks a segment VLAN id (0 to 4094).
func ValidateVLANID(vlan int) error {
	if vlan < 0 || vlan > 4094 {
		return fmt.Errorf("VLAN ID %d out of range (0-4094)", vlan)
	}
	return nil
}

// VLANSpecs validates VLAN specifications such as "100" or "200-210" and
// returns them trimmed, in the string form segment payloads carry. Ranges
// are kept as ranges rather than expanded.
func VLANSpecs(specs []string) ([]string, error) {
	var out []string
	for _, spec := range specs {
		for _, part := range strings.Split(spec, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			start, end, err := parseBounds(part)
			if err != nil {
				return nil, err
			}
			if err := ValidateVLANID(start); err != nil {
				return nil, err
			}
			if err := ValidateVLANID(end); err != nil {
				return nil, err
			}
			if start == end {
				out = append(out, strconv.Itoa(start))
			} else {
				out = append(out, fmt.Sprintf("%d-%d", start, end))
			}
		}
	}
	return out, nil
}
