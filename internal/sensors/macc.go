package sensors

import (
	nmea "github.com/adrianmo/go-nmea"
)

// TypeMACC is the sentence type of proprietary accelerometer sentences,
// "$PMACC,<x>,<y>,<z>*CS" with each axis in g.
const TypeMACC = "MACC"

// MACC is one accelerometer reading sent by the sensor board.
type MACC struct {
	nmea.BaseSentence
	X float64
	Y float64
	Z float64
}

func init() {
	nmea.MustRegisterParser(TypeMACC, func(s nmea.BaseSentence) (nmea.Sentence, error) {
		p := nmea.NewParser(s)
		p.AssertType(TypeMACC)
		m := MACC{
			BaseSentence: s,
			X:            p.Float64(0, "x"),
			Y:            p.Float64(1, "y"),
			Z:            p.Float64(2, "z"),
		}
		return m, p.Err()
	})
}
