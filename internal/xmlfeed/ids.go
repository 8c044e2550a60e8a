package xmlfeed

import (
	"math"
	"strconv"
	"strings"
)

// CanonicalID normalizes a property id so that ids written as numbers in a
// document ("007", "+7", "7.0") compare equal to the same id supplied as a
// string elsewhere ("7"). Non-numeric ids are only trimmed.
func CanonicalID(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}

	if isDecimalInteger(s) {
		return trimInteger(s)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return s
	}
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// IDSet is an allow-list of canonical property ids.
type IDSet map[string]struct{}

// NewIDSet builds an allow-list from raw ids.
func NewIDSet(ids ...string) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set[CanonicalID(id)] = struct{}{}
	}
	return set
}

// Has reports whether id, after canonicalization, is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s[CanonicalID(id)]
	return ok
}

func isDecimalInteger(s string) bool {
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// trimInteger drops a leading plus sign and leading zeros without going
// through a fixed-width integer, so ids wider than 64 bits survive intact.
func trimInteger(s string) string {
	neg := false
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		neg = true
		s = s[1:]
	}
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0"
	}
	if neg {
		return "-" + s
	}
	return s
}
