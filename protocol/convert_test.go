package protocol

import "testing"

func TestSpeedToUnits(t *testing.T) {
	unitsPerMM := 0xFFFF / 150.0

	tests := []struct {
		speed    float64
		expected uint16
	}{
		{0, 0},
		{100, 44},    // round(100 * 436.9 / 1000)
		{1000, 437},  // round(1000 * 436.9 / 1000)
		{2000, 874},
		{1e9, 0xFFFF}, // clamped
	}

	for _, test := range tests {
		got := SpeedToUnits(test.speed, unitsPerMM)
		if got != test.expected {
			t.Errorf("SpeedToUnits(%g): expected %d, got %d", test.speed, test.expected, got)
		}
	}
}

func TestFrequencyToPeriod(t *testing.T) {
	tests := []struct {
		kHz      float64
		expected uint16
	}{
		{20, 1000},
		{30, 667},
		{50, 400},
		{100, 200},
		{0.1, 0x0D40}, // 200000 & 0xFFFF
		{0, 0xFFFF},
		{-5, 0xFFFF},
	}

	for _, test := range tests {
		got := FrequencyToPeriod(test.kHz)
		if got != test.expected {
			t.Errorf("FrequencyToPeriod(%g): expected %d, got %d", test.kHz, test.expected, got)
		}
	}
}

func TestPowerToDAC(t *testing.T) {
	tests := []struct {
		percent  float64
		expected uint16
	}{
		{0, 0},
		{50, 2048},  // round(50 * 4095 / 100)
		{75, 3071},  // round(3071.25)
		{100, 4095},
	}

	for _, test := range tests {
		got := PowerToDAC(test.percent)
		if got != test.expected {
			t.Errorf("PowerToDAC(%g): expected %d, got %d", test.percent, test.expected, got)
		}
	}
}
