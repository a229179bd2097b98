package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func num(t *testing.T, p *float64) float64 {
	t.Helper()
	require.NotNil(t, p)
	return *p
}

func TestExtractFullReadout(t *testing.T) {
	lines := []string{
		"Temperature (C): 24.40",
		"Capacitive raw (touchRead): 732",
		"Photodiode raw (0-4095): 86",
		"Hall raw (0-4095): 4095  Intensity%: 0",
		"VIBRATION: NORMAL",
	}

	f, ok := Extract(lines)
	require.True(t, ok)
	require.Equal(t, 24.40, num(t, f.TemperatureC))
	require.Equal(t, 732.0, num(t, f.CapacitiveRaw))
	require.Equal(t, 86.0, num(t, f.PhotodiodeRaw))
	require.Equal(t, 4095.0, num(t, f.HallRaw))
	require.Equal(t, 0.0, num(t, f.IntensityPct))
	require.Equal(t, "VIBRATION: NORMAL", f.VibrationState)
}

func TestExtractIsIdempotent(t *testing.T) {
	lines := []string{
		"Temperature (C): 21.5",
		"Hall raw (0-4095): 2048",
		"Supply rail (mV): 3300",
	}
	first, ok1 := Extract(lines)
	second, ok2 := Extract(lines)
	require.Equal(t, ok1, ok2)
	require.Equal(t, first, second)
	// The input slice must come back untouched.
	require.Equal(t, "Temperature (C): 21.5", lines[0])
}

func TestHallLineCarriesIntensity(t *testing.T) {
	// The intensity must not shadow the hall reading or vice versa.
	f, ok := Extract([]string{"Hall Raw (0-4095): 4095  Intensity%: 0"})
	require.True(t, ok)
	require.Equal(t, 4095.0, num(t, f.HallRaw))
	require.Equal(t, 0.0, num(t, f.IntensityPct))
}

func TestHallLineTrailingIntensityWithoutLabel(t *testing.T) {
	f, ok := Extract([]string{"Hall raw: 2048 37"})
	require.True(t, ok)
	require.Equal(t, 2048.0, num(t, f.HallRaw))
	require.Equal(t, 37.0, num(t, f.IntensityPct))
}

func TestHallLineAloneSetsNoIntensity(t *testing.T) {
	// "(0-4095)" plus the reading yields several numeric tokens, but the
	// last one equals the hall value, so no intensity is invented.
	f, ok := Extract([]string{"Hall raw (0-4095): 4095"})
	require.True(t, ok)
	require.Equal(t, 4095.0, num(t, f.HallRaw))
	require.Nil(t, f.IntensityPct)
}

func TestParentheticalRangeIsNotTheReading(t *testing.T) {
	f, ok := Extract([]string{"Photodiode raw (0-4095): 86"})
	require.True(t, ok)
	require.Equal(t, 86.0, num(t, f.PhotodiodeRaw))
}

func TestNumberWithoutColonUsesLastToken(t *testing.T) {
	f, ok := Extract([]string{"Temperature 24.4"})
	require.True(t, ok)
	require.Equal(t, 24.4, num(t, f.TemperatureC))
}

func TestMissingNumberLeavesFieldUnset(t *testing.T) {
	f, ok := Extract([]string{
		"Temperature (C): n/a",
		"Photodiode raw (0-4095): 86",
	})
	require.True(t, ok)
	require.Nil(t, f.TemperatureC)
	require.Equal(t, 86.0, num(t, f.PhotodiodeRaw))
}

func TestFirstValueWins(t *testing.T) {
	f, ok := Extract([]string{
		"Temperature (C): 24.4",
		"Temperature (C): 99.9",
	})
	require.True(t, ok)
	require.Equal(t, 24.4, num(t, f.TemperatureC))
}

func TestFallbackKeyNormalization(t *testing.T) {
	f, ok := Extract([]string{
		"Supply rail (mV): 3300",
		"Status note: all good",
	})
	require.True(t, ok)
	require.Equal(t, 3300.0, f.Extra["supply_rail_mv"])
	require.Equal(t, "all good", f.Extra["status_note"])
}

func TestBareNumberSlotFill(t *testing.T) {
	f, ok := Extract([]string{"24.4", "732", "86"})
	require.True(t, ok)
	require.Equal(t, 24.4, num(t, f.TemperatureC))
	require.Equal(t, 732.0, num(t, f.CapacitiveRaw))
	require.Equal(t, 86.0, num(t, f.PhotodiodeRaw))
	require.Nil(t, f.HallRaw)
}

func TestBareNumberIgnoredWhenSlotsFull(t *testing.T) {
	f, ok := Extract([]string{
		"Temperature: 1",
		"Capacitive: 2",
		"Photodiode: 3",
		"Hall: 4",
		"Intensity: 5",
		"99",
	})
	require.True(t, ok)
	require.Equal(t, 1.0, num(t, f.TemperatureC))
	require.Equal(t, 5.0, num(t, f.IntensityPct))
}

func TestNoRecognizableFieldsMeansNoFrame(t *testing.T) {
	_, ok := Extract([]string{"   ", "", "\t"})
	require.False(t, ok)

	_, ok = Extract(nil)
	require.False(t, ok)

	_, ok = Extract([]string{"???", "noise without structure"})
	require.False(t, ok)
}

func TestVibrationLineStoredVerbatim(t *testing.T) {
	f, ok := Extract([]string{"  VIBRATION: DETECTED!  "})
	require.True(t, ok)
	require.Equal(t, "VIBRATION: DETECTED!", f.VibrationState)
	// The vibration rule must win over the generic "label: value" rule.
	require.Empty(t, f.Extra)
}

func TestTemperatureMatchesOnLabelOnly(t *testing.T) {
	f, ok := Extract([]string{
		"Temperature (C): 24.40",
		"Temp: 21.5",
		"Temperature 19.0",
	})
	require.True(t, ok)
	require.Equal(t, 24.40, num(t, f.TemperatureC))
	require.Empty(t, f.Extra)
}

func TestIncidentalTempSubstringFallsToFallback(t *testing.T) {
	// "Attempts" contains "temp" but is not a temperature label.
	f, ok := Extract([]string{"Attempts: 3"})
	require.True(t, ok)
	require.Nil(t, f.TemperatureC)
	require.Equal(t, 3.0, f.Extra["attempts"])
}
