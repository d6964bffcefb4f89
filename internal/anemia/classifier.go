// Package anemia maps a hemoglobin estimate (g/dL) to a severity class using
// fixed clinical thresholds. Only the Mild/Normal boundary depends on gender.
package anemia

import (
	"fmt"
	"strings"
)

// Class is an anemia severity label, ordered from most to least severe.
type Class int

const (
	Severe Class = iota
	Moderate
	Mild
	Normal
)

// Thresholds in g/dL. Each bound is the inclusive lower edge of the next
// milder class.
const (
	ModerateFloor     = 8.0
	MildFloor         = 11.0
	NormalFloorMale   = 13.0
	NormalFloorFemale = 12.0
)

func (c Class) String() string {
	switch c {
	case Severe:
		return "Severe Anemia"
	case Moderate:
		return "Moderate Anemia"
	case Mild:
		return "Mild Anemia"
	case Normal:
		return "Normal"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// Valid reports whether c is one of the four defined classes.
func (c Class) Valid() bool {
	return c >= Severe && c <= Normal
}

// MarshalText encodes the class as its label.
func (c Class) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid anemia class %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a label produced by MarshalText.
func (c *Class) UnmarshalText(text []byte) error {
	parsed, err := ParseClass(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseClass maps a label back to its Class. Matching ignores case and
// surrounding whitespace.
func ParseClass(label string) (Class, error) {
	for c := Severe; c <= Normal; c++ {
		if strings.EqualFold(strings.TrimSpace(label), c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown anemia class %q", label)
}

// Classify returns the class for hb. Gender is case-insensitive; anything
// other than "male" uses the female table. Comparisons use the raw value.
func Classify(hb float64, gender string) Class {
	normalFloor := NormalFloorFemale
	if strings.EqualFold(strings.TrimSpace(gender), "male") {
		normalFloor = NormalFloorMale
	}

	switch {
	case hb < ModerateFloor:
		return Severe
	case hb < MildFloor:
		return Moderate
	case hb < normalFloor:
		return Mild
	default:
		return Normal
	}
}
