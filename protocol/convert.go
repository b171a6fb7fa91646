package protocol

import "math"

// Unit conversions between engineering units and controller register
// values. These must stay bit-for-bit stable: generated jobs depend on
// identical register values across runs.

// SpeedToUnits converts a speed in mm/s into controller speed units
// for a galvo scaled at unitsPerMM, clamped to 16 bits.
func SpeedToUnits(speed, unitsPerMM float64) uint16 {
	v := math.Round(speed * unitsPerMM / 1000.0)
	if v < 0 {
		return 0
	}
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}

// FrequencyToPeriod converts a q-switch frequency in kHz into the
// period register value. Non-positive frequencies clamp to the longest
// representable period.
func FrequencyToPeriod(kHz float64) uint16 {
	if kHz <= 0 {
		return 0xFFFF
	}
	return uint16(int64(math.Round(20000.0/kHz)) & 0xFFFF)
}

// PowerToDAC converts a power percentage (0-100) into the 12-bit DAC
// register value.
func PowerToDAC(percent float64) uint16 {
	return uint16(math.Round(percent * 0xFFF / 100.0))
}
