package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/outfitter-dev/firewatch-sub001/internal/ferrors"
)

// ParseDuration parses the spec §6 duration grammar: Ns|Nm|Nh|Nd|Nw
// (seconds/minutes/hours/days/weeks). Zero is valid; negative numbers are
// invalid, as is any other suffix.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, &ferrors.ValidationError{Field: "duration", Msg: "empty"}
	}

	unit := s[len(s)-1]
	numPart := s[:len(s)-1]

	var unitDur time.Duration
	switch unit {
	case 's':
		unitDur = time.Second
	case 'm':
		unitDur = time.Minute
	case 'h':
		unitDur = time.Hour
	case 'd':
		unitDur = 24 * time.Hour
	case 'w':
		unitDur = 7 * 24 * time.Hour
	default:
		return 0, &ferrors.ValidationError{Field: "duration", Msg: "unknown unit in " + strconv.Quote(s)}
	}

	n, err := strconv.Atoi(strings.TrimSpace(numPart))
	if err != nil {
		return 0, &ferrors.ValidationError{Field: "duration", Msg: "invalid number in " + strconv.Quote(s)}
	}
	if n < 0 {
		return 0, &ferrors.ValidationError{Field: "duration", Msg: "negative duration not allowed: " + strconv.Quote(s)}
	}

	return time.Duration(n) * unitDur, nil
}

// ParseSince parses either a §6 duration (interpreted as "now minus N") or
// an ISO-8601 date/time, returning the absolute instant it denotes.
func ParseSince(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, &ferrors.ValidationError{Field: "since", Msg: "not a valid duration or ISO-8601 date: " + s}
}
