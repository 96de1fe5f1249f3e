package model

import (
	"strconv"
	"strings"
)

// Kind tells clock-in and clock-out attributes apart.
type Kind string

const (
	KindIn  Kind = "IN"
	KindOut Kind = "OUT"
)

// DefaultNamespace is the meta key namespace written by the time clock plugin.
const DefaultNamespace = "etimeclockwp"

// valueDelimiter separates the epoch from the rest of a packed clock-out value.
const valueDelimiter = "|"

// Attribute is a typed clock-in or clock-out record attached to an event.
type Attribute struct {
	Kind   Kind   `json:"kind"`
	Key    string `json:"key"`
	Suffix string `json:"suffix"`
	// Timestamp is epoch seconds. Valid is false when the stored value had
	// no numeric epoch.
	Timestamp int64  `json:"timestamp"`
	Valid     bool   `json:"valid"`
	Extra     string `json:"extra,omitempty"`
}

// MetaKeys holds the raw metadata key names for one namespace.
type MetaKeys struct {
	InPrefix  string
	OutPrefix string
	Name      string
}

// NewMetaKeys builds the key names for ns, e.g. "etimeclockwp-in_",
// "etimeclockwp-out_" and "etimeclockwp_name".
func NewMetaKeys(ns string) MetaKeys {
	return MetaKeys{
		InPrefix:  ns + "-in_",
		OutPrefix: ns + "-out_",
		Name:      ns + "_name",
	}
}

// Parse turns a raw metadata pair into an Attribute. ok is false for keys
// that are neither clock-in nor clock-out.
func (k MetaKeys) Parse(key, value string) (Attribute, bool) {
	switch {
	case strings.HasPrefix(key, k.InPrefix):
		a := Attribute{Kind: KindIn, Key: key, Suffix: strings.TrimPrefix(key, k.InPrefix)}
		a.Timestamp, a.Valid = parseEpoch(value)
		return a, true
	case strings.HasPrefix(key, k.OutPrefix):
		a := Attribute{Kind: KindOut, Key: key, Suffix: strings.TrimPrefix(key, k.OutPrefix)}
		a.Timestamp, a.Valid, a.Extra = ParseClockOutValue(value)
		return a, true
	}
	return Attribute{}, false
}

// ParseClockOutValue splits a packed clock-out value. Only the segment before
// the first "|" is read as the epoch; anything after it is returned as extra.
func ParseClockOutValue(value string) (ts int64, ok bool, extra string) {
	head, rest, _ := strings.Cut(value, valueDelimiter)
	ts, ok = parseEpoch(head)
	return ts, ok, rest
}

func parseEpoch(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ts < 0 {
		return 0, false
	}
	return ts, true
}
