package features

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRaw() map[string]any {
	return map[string]any{
		"age":            30.0,
		"gender":         "female",
		"platelet_count": 250.0,
		"wbc":            6.0,
		"rbc":            4.5,
		"mcv":            90.0,
		"mch":            30.0,
		"mchc":           33.0,
	}
}

func TestBuild_VectorOrder(t *testing.T) {
	raw := validRaw()
	raw["gender"] = "male"

	p, err := Build(raw)
	require.NoError(t, err)

	assert.Equal(t, Vector{30, 1, 250, 6, 4.5, 90, 30, 33}, p.Vector)
	assert.Equal(t, "male", p.Gender)
	assert.True(t, p.Male())
}

func TestBuild_MissingField(t *testing.T) {
	for _, field := range RequiredFields {
		t.Run(field, func(t *testing.T) {
			raw := validRaw()
			delete(raw, field)

			_, err := Build(raw)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, MissingField, verr.Kind)
			assert.Equal(t, field, verr.Field)
		})
	}
}

func TestBuild_MissingReportedBeforeTypeMismatch(t *testing.T) {
	raw := validRaw()
	raw["age"] = "not a number"
	delete(raw, "mchc")

	_, err := Build(raw)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, MissingField, verr.Kind)
	assert.Equal(t, "mchc", verr.Field)
}

func TestBuild_TypeMismatch(t *testing.T) {
	testCases := []struct {
		name  string
		field string
		value any
	}{
		{"unparsable string", "wbc", "six"},
		{"bool", "rbc", true},
		{"null", "mcv", nil},
		{"object", "mch", map[string]any{"v": 1}},
		{"array", "platelet_count", []any{1.0}},
		{"non-string gender", "gender", 1.0},
		{"null gender", "gender", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			raw := validRaw()
			raw[tc.field] = tc.value

			_, err := Build(raw)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, TypeMismatch, verr.Kind)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestBuild_NumericCoercion(t *testing.T) {
	raw := validRaw()
	raw["age"] = "42"
	raw["platelet_count"] = json.Number("310.5")
	raw["wbc"] = 7
	raw["rbc"] = int64(5)
	raw["mcv"] = float32(88)

	p, err := Build(raw)
	require.NoError(t, err)

	assert.Equal(t, 42.0, p.Vector[0])
	assert.Equal(t, 310.5, p.Vector[2])
	assert.Equal(t, 7.0, p.Vector[3])
	assert.Equal(t, 5.0, p.Vector[4])
	assert.Equal(t, 88.0, p.Vector[5])
}

func TestBuild_OutOfRangePassesThrough(t *testing.T) {
	raw := validRaw()
	raw["age"] = -5.0
	raw["platelet_count"] = 1e9

	p, err := Build(raw)
	require.NoError(t, err)
	assert.Equal(t, -5.0, p.Vector[0])
	assert.Equal(t, 1e9, p.Vector[2])
}

func TestBuild_GenderCaseInsensitive(t *testing.T) {
	for _, g := range []string{"male", "MALE", "Male", "  mAlE "} {
		raw := validRaw()
		raw["gender"] = g

		p, err := Build(raw)
		require.NoError(t, err, g)
		assert.Equal(t, 1.0, p.Vector[1], g)
		assert.Equal(t, GenderMale, p.Gender, g)
	}
}

// Unknown genders are encoded as female. This is a deliberate permissive
// fallback; Builder.Strict turns it into a validation failure.
func TestBuild_UnknownGenderFallsBackToFemale(t *testing.T) {
	for _, g := range []string{"other", "", "m", "unknown"} {
		raw := validRaw()
		raw["gender"] = g

		p, err := Build(raw)
		require.NoError(t, err, g)
		assert.Equal(t, 0.0, p.Vector[1], g)
		assert.False(t, p.Male(), g)
	}
}

func TestBuilder_StrictRejectsUnknownGender(t *testing.T) {
	b := Builder{Strict: true}

	raw := validRaw()
	raw["gender"] = "other"
	_, err := b.Build(raw)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, InvalidGender, verr.Kind)

	raw["gender"] = "FEMALE"
	p, err := b.Build(raw)
	require.NoError(t, err)
	assert.Equal(t, GenderFemale, p.Gender)
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	raw := validRaw()
	raw["gender"] = " MALE "
	before := len(raw)

	_, err := Build(raw)
	require.NoError(t, err)
	assert.Equal(t, before, len(raw))
	assert.Equal(t, " MALE ", raw["gender"])
}

func TestVector_SliceIsCopy(t *testing.T) {
	v := Vector{1, 2, 3, 4, 5, 6, 7, 8}
	s := v.Slice()
	s[0] = 100

	assert.Equal(t, 1.0, v[0])
	assert.Len(t, s, NumFeatures)
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "missing_field", MissingField.String())
	assert.Equal(t, "type_mismatch", TypeMismatch.String())
	assert.Equal(t, "invalid_gender", InvalidGender.String())
}
