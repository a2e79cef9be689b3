package encoder

import "math"

func mathFloatBits(v float32) uint32   { return math.Float32bits(v) }
func floatFromBits(b uint32) float32   { return math.Float32frombits(b) }
