package model

// Measurement is the outcome of one power capture on the bench instrument.
// MeanAmps is the pass/fail metric; Raw carries the full instrument output
// for the report's diagnostic section.
type Measurement struct {
	MeanAmps float64
	MinAmps  float64
	MaxAmps  float64
	Raw      string
}
