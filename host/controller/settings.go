package controller

// Settings is the device configuration consumed from an externally
// supplied mapping. Every recognized key of the mapping form is an
// explicit field here; loading and persistence live outside the driver.
type Settings struct {
	Speed      float64 // mark speed, mm/s ("speed")
	Power      float64 // laser power, percent ("power")
	Frequency  float64 // q-switch frequency, kHz ("frequency")
	RapidSpeed float64 // beam-off travel speed, mm/s ("rapid_speed")
	PulseWidth float64 // fiber pulse width, ns ("pulse_width")

	TimingEnabled bool    // apply explicit delay timing ("timing_enabled")
	DelayLaserOn  float64 // µs ("delay_laser_on")
	DelayLaserOff float64 // µs ("delay_laser_off")
	DelayJump     float64 // µs ("delay_jump")
	DelayPolygon  float64 // µs ("delay_polygon")

	WobbleEnabled  bool    // ("wobble_enabled")
	WobbleRadius   float64 // mm ("wobble_radius")
	WobbleInterval float64 // mm ("wobble_interval")
	WobbleType     string  // circle, sine, sawtooth ("wobble_type")
	WobbleSpeed    float64 // phase advance multiplier ("wobble_speed")

	CorrectionFile string // calibration table path, parsed externally ("correction_file")

	LensSize float64 // scan field width, mm ("lens_size")
	Mock     bool    // use the simulated transport ("mock")
}

// DefaultSettings returns the defaults for a 150mm-field fiber source.
func DefaultSettings() *Settings {
	return &Settings{
		Speed:          100.0,
		Power:          50.0,
		Frequency:      30.0,
		RapidSpeed:     2000.0,
		PulseWidth:     4.0,
		DelayLaserOn:   100.0,
		DelayLaserOff:  100.0,
		DelayJump:      200.0,
		DelayPolygon:   100.0,
		WobbleRadius:   0.5,
		WobbleInterval: 0.05,
		WobbleType:     "circle",
		WobbleSpeed:    1.0,
		LensSize:       150.0,
	}
}

// UnitsPerMM is the galvo scale for the configured scan field.
func (s *Settings) UnitsPerMM() float64 {
	return 0xFFFF / s.LensSize
}

// Apply overlays values from an external settings mapping. Unrecognized
// keys are ignored; recognized keys with unusable types keep their
// previous value.
func (s *Settings) Apply(m map[string]any) {
	for key, v := range m {
		switch key {
		case "speed":
			setFloat(&s.Speed, v)
		case "power":
			setFloat(&s.Power, v)
		case "frequency":
			setFloat(&s.Frequency, v)
		case "rapid_speed":
			setFloat(&s.RapidSpeed, v)
		case "pulse_width":
			setFloat(&s.PulseWidth, v)
		case "timing_enabled":
			setBool(&s.TimingEnabled, v)
		case "delay_laser_on":
			setFloat(&s.DelayLaserOn, v)
		case "delay_laser_off":
			setFloat(&s.DelayLaserOff, v)
		case "delay_jump":
			setFloat(&s.DelayJump, v)
		case "delay_polygon":
			setFloat(&s.DelayPolygon, v)
		case "wobble_enabled":
			setBool(&s.WobbleEnabled, v)
		case "wobble_radius":
			setFloat(&s.WobbleRadius, v)
		case "wobble_interval":
			setFloat(&s.WobbleInterval, v)
		case "wobble_type":
			setString(&s.WobbleType, v)
		case "wobble_speed":
			setFloat(&s.WobbleSpeed, v)
		case "correction_file":
			setString(&s.CorrectionFile, v)
		case "lens_size":
			setFloat(&s.LensSize, v)
		case "mock":
			setBool(&s.Mock, v)
		}
	}
}

func setFloat(dst *float64, v any) {
	switch x := v.(type) {
	case float64:
		*dst = x
	case float32:
		*dst = float64(x)
	case int:
		*dst = float64(x)
	case int64:
		*dst = float64(x)
	case uint16:
		*dst = float64(x)
	}
}

func setBool(dst *bool, v any) {
	if x, ok := v.(bool); ok {
		*dst = x
	}
}

func setString(dst *string, v any) {
	if x, ok := v.(string); ok {
		*dst = x
	}
}
