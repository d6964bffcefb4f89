// Package features turns a raw blood-panel payload into the fixed-order numeric
// vector consumed by the scaler and regressor.
//
// The vector layout is part of the model contract: artifacts are fit against
// exactly this order, and the model loader refuses artifacts that declare a
// different one.
package features

// NumFeatures is the length of a feature vector.
const NumFeatures = 8

// Gender values after normalization.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Order lists the vector positions by name.
var Order = [NumFeatures]string{
	"age",
	"gender_encoded",
	"platelet_count",
	"wbc",
	"rbc",
	"mcv",
	"mch",
	"mchc",
}

// RequiredFields are the raw input keys, in the order they are checked.
var RequiredFields = [NumFeatures]string{
	"age",
	"gender",
	"platelet_count",
	"wbc",
	"rbc",
	"mcv",
	"mch",
	"mchc",
}

// Vector is an immutable feature vector: [age, gender_encoded, platelet_count,
// wbc, rbc, mcv, mch, mchc].
type Vector [NumFeatures]float64

// Slice returns a fresh copy of the vector as a slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, NumFeatures)
	copy(out, v[:])
	return out
}

// Panel is the builder output: the numeric vector plus the normalized gender
// string, which the classifier needs in its original form.
type Panel struct {
	Vector Vector
	Gender string
}

// Male reports whether the panel was encoded as male.
func (p Panel) Male() bool {
	return p.Vector[1] == 1
}
