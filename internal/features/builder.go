package features

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ErrorKind classifies a ValidationError.
type ErrorKind int

const (
	MissingField ErrorKind = iota
	TypeMismatch
	InvalidGender
)

func (k ErrorKind) String() string {
	switch k {
	case MissingField:
		return "missing_field"
	case TypeMismatch:
		return "type_mismatch"
	case InvalidGender:
		return "invalid_gender"
	default:
		return "unknown"
	}
}

// ValidationError reports a client input defect.
type ValidationError struct {
	Kind  ErrorKind
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case MissingField:
		return fmt.Sprintf("missing required field %q", e.Field)
	case InvalidGender:
		return fmt.Sprintf("field %q: unrecognized gender", e.Field)
	default:
		if e.Err != nil {
			return fmt.Sprintf("field %q: %v", e.Field, e.Err)
		}
		return fmt.Sprintf("field %q has the wrong type", e.Field)
	}
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Builder validates raw panels. The zero value is the permissive builder:
// any gender other than "male" is encoded as female.
type Builder struct {
	// Strict rejects genders other than male/female instead of falling back
	// to the female thresholds.
	Strict bool
}

// Build validates raw with the permissive builder.
func Build(raw map[string]any) (Panel, error) {
	return Builder{}.Build(raw)
}

// Build validates raw and returns the encoded panel. The first missing key in
// RequiredFields order is reported before any type checks run.
func (b Builder) Build(raw map[string]any) (Panel, error) {
	for _, key := range RequiredFields {
		if _, ok := raw[key]; !ok {
			return Panel{}, &ValidationError{Kind: MissingField, Field: key}
		}
	}

	gender, err := b.gender(raw["gender"])
	if err != nil {
		return Panel{}, err
	}

	var p Panel
	p.Gender = gender
	if gender == GenderMale {
		p.Vector[1] = 1
	}

	for i, name := range Order {
		if i == 1 {
			continue
		}
		v, err := toFloat(raw[name])
		if err != nil {
			return Panel{}, &ValidationError{Kind: TypeMismatch, Field: name, Err: err}
		}
		p.Vector[i] = v
	}

	return p, nil
}

func (b Builder) gender(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", &ValidationError{
			Kind:  TypeMismatch,
			Field: "gender",
			Err:   fmt.Errorf("expected string, got %T", v),
		}
	}

	g := NormalizeGender(s)
	if g == GenderMale || g == GenderFemale {
		return g, nil
	}
	if b.Strict {
		return "", &ValidationError{Kind: InvalidGender, Field: "gender"}
	}
	return g, nil
}

// NormalizeGender trims and lower-cases a gender string.
func NormalizeGender(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("expected number, got null")
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}
