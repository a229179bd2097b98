package telemetry

import "encoding/json"

// Frame is one structured sensor sample extracted from a group of raw
// telemetry lines. Every field is optional: a nil pointer (or empty string,
// or absent map key) means the stream did not carry a recognizable value for
// it. Frames are immutable once extraction returns them.
type Frame struct {
	TemperatureC   *float64
	CapacitiveRaw  *float64
	PhotodiodeRaw  *float64
	HallRaw        *float64
	IntensityPct   *float64
	VibrationState string

	// Extra holds values from "label: value" lines that no dedicated rule
	// recognized, keyed by the normalized label.
	Extra map[string]any
}

// Empty reports whether no field at all was populated. Empty frames are
// never broadcast.
func (f Frame) Empty() bool {
	return f.TemperatureC == nil &&
		f.CapacitiveRaw == nil &&
		f.PhotodiodeRaw == nil &&
		f.HallRaw == nil &&
		f.IntensityPct == nil &&
		f.VibrationState == "" &&
		len(f.Extra) == 0
}

// MarshalJSON flattens the frame into a single JSON object: named fields
// under their wire keys, fallback keys at top level. Named fields win when a
// fallback key collides with a wire key.
func (f Frame) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(f.Extra)+6)
	for k, v := range f.Extra {
		m[k] = v
	}
	if f.TemperatureC != nil {
		m["temperatureC"] = *f.TemperatureC
	}
	if f.CapacitiveRaw != nil {
		m["capacitiveRaw"] = *f.CapacitiveRaw
	}
	if f.PhotodiodeRaw != nil {
		m["photodiodeRaw"] = *f.PhotodiodeRaw
	}
	if f.HallRaw != nil {
		m["hallRaw"] = *f.HallRaw
	}
	if f.IntensityPct != nil {
		m["intensityPct"] = *f.IntensityPct
	}
	if f.VibrationState != "" {
		m["vibrationState"] = f.VibrationState
	}
	return json.Marshal(m)
}
