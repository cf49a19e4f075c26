package registrations

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxFinishTime is the largest finish time, in seconds, the store can hold.
const MaxFinishTime = math.MaxInt32

// ValidFinishTime reports whether seconds fits the finish time column.
func ValidFinishTime(seconds int) bool {
	return seconds >= 0 && seconds <= MaxFinishTime
}

// ClockParts is the segmented hh/mm/ss form used by the admin editor.
type ClockParts struct {
	Hours   string `json:"hh"`
	Minutes string `json:"mm"`
	Seconds string `json:"ss"`
}

// FormatClock renders seconds as mm:ss, or hh:mm:ss once an hour is reached.
func FormatClock(seconds *int) string {
	if seconds == nil {
		return ""
	}
	s := *seconds
	h, m, sec := s/3600, (s%3600)/60, s%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", m, sec)
}

// SplitClock is the inverse of SecondsFromParts.
func SplitClock(seconds *int) ClockParts {
	if seconds == nil {
		return ClockParts{}
	}
	s := *seconds
	return ClockParts{
		Hours:   strconv.Itoa(s / 3600),
		Minutes: fmt.Sprintf("%02d", (s%3600)/60),
		Seconds: fmt.Sprintf("%02d", s%60),
	}
}

// SecondsFromParts combines segmented input into seconds. Minutes and seconds
// are clamped to 0..59 and missing parts count as zero. Non-numeric parts
// yield nil, as does input with every part blank.
func SecondsFromParts(p ClockParts) *int {
	hh := strings.TrimSpace(p.Hours)
	mm := strings.TrimSpace(p.Minutes)
	ss := strings.TrimSpace(p.Seconds)
	if hh == "" && mm == "" && ss == "" {
		return nil
	}

	h, ok := partValue(hh)
	if !ok || h < 0 {
		return nil
	}
	m, ok := partValue(mm)
	if !ok {
		return nil
	}
	s, ok := partValue(ss)
	if !ok {
		return nil
	}

	total := h*3600 + clamp(m, 0, 59)*60 + clamp(s, 0, 59)
	return &total
}

// ParseClock reads "mm:ss" or "hh:mm:ss". Anything else yields nil.
func ParseClock(text string) *int {
	fields := strings.Split(strings.TrimSpace(text), ":")
	if len(fields) < 2 || len(fields) > 3 {
		return nil
	}
	values := make([]int, len(fields))
	for i, f := range fields {
		if f == "" {
			return nil
		}
		v, err := strconv.Atoi(f)
		if err != nil || v < 0 {
			return nil
		}
		values[i] = v
	}

	var h, m, s int
	if len(values) == 3 {
		h, m, s = values[0], values[1], values[2]
	} else {
		m, s = values[0], values[1]
	}
	if m > 59 || s > 59 {
		return nil
	}
	total := h*3600 + m*60 + s
	return &total
}

func partValue(s string) (int, bool) {
	if s == "" {
		return 0, true
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
