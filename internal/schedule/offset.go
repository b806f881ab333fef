package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseUTCOffset turns a fixed offset such as "+03:00", "-0530" or "UTC" into a
// location. Wall-clock booking times are always interpreted in this fixed
// offset, never in the server's local zone, so there is no daylight-saving
// ambiguity (and no daylight-saving awareness either).
func ParseUTCOffset(v string) (*time.Location, error) {
	v = strings.TrimSpace(v)
	switch strings.ToUpper(v) {
	case "", "Z", "UTC", "+00:00", "-00:00":
		return time.UTC, nil
	}
	if len(v) < 2 || (v[0] != '+' && v[0] != '-') {
		return nil, fmt.Errorf("%w: utc offset %q must look like +HH:MM", ErrInvalidInput, v)
	}
	sign := 1
	if v[0] == '-' {
		sign = -1
	}
	body := strings.ReplaceAll(v[1:], ":", "")
	var hours, minutes int
	var err error
	switch len(body) {
	case 1, 2:
		hours, err = strconv.Atoi(body)
	case 4:
		hours, err = strconv.Atoi(body[:2])
		if err == nil {
			minutes, err = strconv.Atoi(body[2:])
		}
	default:
		err = fmt.Errorf("unexpected length")
	}
	if err != nil || hours > 14 || minutes > 59 {
		return nil, fmt.Errorf("%w: utc offset %q must look like +HH:MM", ErrInvalidInput, v)
	}
	seconds := sign * (hours*3600 + minutes*60)
	return time.FixedZone(FormatUTCOffset(seconds), seconds), nil
}

// FormatUTCOffset renders an offset in seconds as "+HH:MM".
func FormatUTCOffset(seconds int) string {
	sign := '+'
	if seconds < 0 {
		sign = '-'
		seconds = -seconds
	}
	return fmt.Sprintf("%c%02d:%02d", sign, seconds/3600, (seconds%3600)/60)
}
