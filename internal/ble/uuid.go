package ble

import (
	"strings"

	"github.com/google/uuid"
)

// bluetoothBase is the Bluetooth Base UUID that 16- and 32-bit short UUIDs
// are expanded onto.
const bluetoothBase = "-0000-1000-8000-00805f9b34fb"

// NormalizeUUID returns the canonical lowercase 128-bit form of s.
// Short 16- and 32-bit forms ("180d", "0x180D") are expanded onto the
// Bluetooth Base UUID. Strings that are not UUIDs are lowercased and trimmed.
func NormalizeUUID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "0x")
	switch len(s) {
	case 4:
		s = "0000" + s + bluetoothBase
	case 8:
		s = s + bluetoothBase
	}
	if u, err := uuid.Parse(s); err == nil {
		return u.String()
	}
	return s
}

// EqualUUID reports whether a and b name the same UUID, ignoring case and
// short/long form.
func EqualUUID(a, b string) bool {
	return NormalizeUUID(a) == NormalizeUUID(b)
}

// UUIDSet is a normalized set of UUIDs.
type UUIDSet map[string]struct{}

// NewUUIDSet builds a set from a single UUID or a list of UUIDs. Empty
// entries are skipped.
func NewUUIDSet(uuids ...string) UUIDSet {
	set := make(UUIDSet, len(uuids))
	for _, u := range uuids {
		if strings.TrimSpace(u) == "" {
			continue
		}
		set[NormalizeUUID(u)] = struct{}{}
	}
	return set
}

// Contains reports whether u is in the set.
func (s UUIDSet) Contains(u string) bool {
	_, ok := s[NormalizeUUID(u)]
	return ok
}

// MatchMode selects how characteristic UUIDs are compared during resolution.
type MatchMode int

const (
	// MatchExact requires the characteristic UUID to equal the wanted UUID.
	MatchExact MatchMode = iota
	// MatchSubstring accepts a characteristic whose UUID contains the wanted
	// UUID, case-insensitively.
	MatchSubstring
)

// ParseMatchMode parses "exact" or "substring". Empty means exact.
func ParseMatchMode(s string) (MatchMode, bool) {
	switch strings.ToLower(s) {
	case "", "exact":
		return MatchExact, true
	case "substring":
		return MatchSubstring, true
	}
	return MatchExact, false
}

func (m MatchMode) String() string {
	if m == MatchSubstring {
		return "substring"
	}
	return "exact"
}

// Match reports whether have matches want under mode m.
func (m MatchMode) Match(have, want string) bool {
	if m == MatchSubstring {
		return strings.Contains(strings.ToLower(have), strings.ToLower(want))
	}
	return EqualUUID(have, want)
}
