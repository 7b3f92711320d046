package imu

// Sample is one accelerometer reading in units of g, already bias corrected
// and remapped to the device frame. T is a spare slot carried through untouched.
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	T float64 `json:"t,omitempty"`
}

// Vec returns the three spatial axes as a vector.
func (s Sample) Vec() [3]float64 {
	return [3]float64{s.X, s.Y, s.Z}
}

// FromVec builds a Sample from a three-axis vector.
func FromVec(v [3]float64) Sample {
	return Sample{X: v[0], Y: v[1], Z: v[2]}
}

// AccelRaw represents a single raw accelerometer sample in device codes.
type AccelRaw struct {
	Source string `json:"source"` // "imu", "serial", "mock"

	Ax int16 `json:"ax"`
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`
}

// Source is anything that can hand the engine one sample per timestep.
type Source interface {
	Next() (Sample, error)
}

// RawSource returns a raw reading on demand. The offset calibration
// procedure runs against this contract.
type RawSource interface {
	ReadRaw() (AccelRaw, error)
}

// Bias is the static offset of each axis, in g.
type Bias struct {
	X float64
	Y float64
	Z float64
}

// Apply converts raw codes to g and removes the bias.
func (b Bias) Apply(raw AccelRaw, codesPerG float64) Sample {
	return Sample{
		X: float64(raw.Ax)/codesPerG - b.X,
		Y: float64(raw.Ay)/codesPerG - b.Y,
		Z: float64(raw.Az)/codesPerG - b.Z,
	}
}
