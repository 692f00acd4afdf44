// Package timecode converts the timestamp tokens found in analysis documents
// into second offsets and back.
package timecode

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse converts "MM:SS" or "HH:MM:SS", optionally wrapped in brackets, into
// a number of seconds. Anything it cannot read yields 0.
func Parse(token string) int {
	token = strings.TrimSpace(token)
	token = strings.Trim(token, "[]()")
	token = strings.TrimSpace(token)
	if token == "" {
		return 0
	}

	parts := strings.Split(token, ":")
	var h, m, s int
	var ok bool

	switch len(parts) {
	case 2:
		if m, ok = field(parts[0]); !ok {
			return 0
		}
		if s, ok = field(parts[1]); !ok {
			return 0
		}
	case 3:
		if h, ok = field(parts[0]); !ok {
			return 0
		}
		if m, ok = field(parts[1]); !ok {
			return 0
		}
		if s, ok = field(parts[2]); !ok {
			return 0
		}
	default:
		return 0
	}

	return h*3600 + m*60 + s
}

func field(p string) (int, bool) {
	p = strings.TrimSpace(p)
	if p == "" {
		return 0, false
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Format renders seconds as MM:SS, or HH:MM:SS from one hour on.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
