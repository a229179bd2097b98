package telemetry

import (
	"regexp"
	"strconv"
	"strings"
)

// The firmware prints operator-readable readouts whose exact wording drifts
// between revisions ("Temperature (C): 24.40", "Temp: 24.4", a bare number
// on its own line). Extraction is an ordered table of rules; for each line
// the first rule whose predicate matches wins, and later rules never touch
// it. The predicates are label substrings, so the rules are mutually
// exclusive in practice.
//
// Note: Extract is pure. It never mutates or retains the input slice, so
// callers may hand it a live buffer snapshot.

type rule struct {
	name  string
	match func(lower string) bool
	apply func(f *Frame, line, lower string)
}

var rules = []rule{
	{
		// Matching on the label only keeps incidental "temp" substrings
		// ("Attempts: 3") out of the temperature slot.
		name:  "temperature",
		match: func(l string) bool { return labelHasPrefix(l, "temp") },
		apply: func(f *Frame, line, _ string) { setNumber(&f.TemperatureC, line) },
	},
	{
		name: "capacitive",
		match: func(l string) bool {
			return strings.Contains(l, "capacitive") || strings.Contains(l, "touchread")
		},
		apply: func(f *Frame, line, _ string) { setNumber(&f.CapacitiveRaw, line) },
	},
	{
		name:  "photodiode",
		match: func(l string) bool { return strings.Contains(l, "photo") },
		apply: func(f *Frame, line, _ string) { setNumber(&f.PhotodiodeRaw, line) },
	},
	{
		name:  "hall",
		match: func(l string) bool { return strings.Contains(l, "hall") },
		apply: extractHall,
	},
	{
		name:  "intensity",
		match: func(l string) bool { return strings.Contains(l, "intensity") },
		apply: func(f *Frame, line, _ string) { setNumber(&f.IntensityPct, line) },
	},
	{
		name:  "vibration",
		match: func(l string) bool { return strings.Contains(l, "vibration") },
		apply: func(f *Frame, line, _ string) {
			if f.VibrationState == "" {
				f.VibrationState = strings.TrimSpace(line)
			}
		},
	},
	{
		name:  "fallback",
		match: func(l string) bool { return strings.Contains(l, ":") },
		apply: extractFallback,
	},
	{
		name:  "bare-number",
		match: isBareNumber,
		apply: extractBareNumber,
	},
}

// Extract maps one frame's worth of raw lines onto a Frame. The second
// return value is false when nothing recognizable was found; such a result
// must not be broadcast.
func Extract(lines []string) (Frame, bool) {
	var f Frame
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, r := range rules {
			if r.match(lower) {
				r.apply(&f, line, lower)
				break
			}
		}
	}
	return f, !f.Empty()
}

// labelHasPrefix reports whether the label part of the line, the text before
// the first colon (or the whole line without one), starts with prefix.
func labelHasPrefix(lower, prefix string) bool {
	label, _, _ := strings.Cut(lower, ":")
	return strings.HasPrefix(strings.TrimSpace(label), prefix)
}

var (
	// "... : 24.40" matches a number directly following a colon. The reading
	// always follows the last labeled colon, which skips numbers embedded
	// in parenthetical range annotations like "(0-4095)".
	colonNumberRe = regexp.MustCompile(`:\s*([-+]?[0-9]+(?:\.[0-9]+)?)`)
	numberRe      = regexp.MustCompile(`[-+]?[0-9]+(?:\.[0-9]+)?`)
	bareNumberRe  = regexp.MustCompile(`^[-+]?[0-9]+(?:\.[0-9]+)?$`)
)

// extractNumber implements the "colon-first, else last token" primitive: the
// number after the final colon if any colon is followed by one, otherwise
// the last numeric token on the line. A token that fails to parse counts as
// absent, never as zero.
func extractNumber(line string) (float64, bool) {
	if ms := colonNumberRe.FindAllStringSubmatch(line, -1); len(ms) > 0 {
		return parseNumber(ms[len(ms)-1][1])
	}
	if ts := numberRe.FindAllString(line, -1); len(ts) > 0 {
		return parseNumber(ts[len(ts)-1])
	}
	return 0, false
}

func parseNumber(tok string) (float64, bool) {
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// setNumber extracts a number from the line and assigns it to the field,
// unless an earlier line in the same frame already populated it.
func setNumber(field **float64, line string) {
	if *field != nil {
		return
	}
	if v, ok := extractNumber(line); ok {
		*field = &v
	}
}

// extractHall handles the firmware variant that packs the intensity reading
// onto the hall line ("Hall raw (0-4095): 4095  Intensity%: 0"). The line is
// split at the intensity label so each half is extracted independently;
// without a label, a trailing numeric token distinct from the hall value is
// taken as the intensity.
func extractHall(f *Frame, line, lower string) {
	hallPart := line
	intensityPart := ""
	if idx := strings.Index(lower, "intensity"); idx >= 0 {
		hallPart, intensityPart = line[:idx], line[idx:]
	}

	hall, hallOK := extractNumber(hallPart)
	if hallOK && f.HallRaw == nil {
		f.HallRaw = &hall
	}

	if intensityPart != "" {
		setNumber(&f.IntensityPct, intensityPart)
		return
	}
	if ts := numberRe.FindAllString(line, -1); len(ts) >= 2 {
		if v, ok := parseNumber(ts[len(ts)-1]); ok && (!hallOK || v != hall) {
			if f.IntensityPct == nil {
				f.IntensityPct = &v
			}
		}
	}
}

// extractFallback turns an unrecognized "label: value" line into an entry in
// the fallback map. Numeric values are stored as numbers, everything else as
// the raw trimmed string. Lines whose label or value is empty are ignored.
func extractFallback(f *Frame, line, _ string) {
	label, value, _ := strings.Cut(line, ":")
	key := normalizeKey(label)
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return
	}
	if f.Extra == nil {
		f.Extra = make(map[string]any)
	}
	if _, taken := f.Extra[key]; taken {
		return
	}
	if v, err := strconv.ParseFloat(value, 64); err == nil {
		f.Extra[key] = v
	} else {
		f.Extra[key] = value
	}
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeKey lowercases a free-text label and collapses every run of
// non-alphanumeric characters to a single underscore:
// "Supply rail (mV)" -> "supply_rail_mv".
func normalizeKey(label string) string {
	key := nonAlnumRe.ReplaceAllString(strings.ToLower(label), "_")
	return strings.Trim(key, "_")
}

// extractBareNumber slot-fills a lone number into the first still-empty
// named field, in readout order. Once every slot is taken the line is
// ignored.
func extractBareNumber(f *Frame, line, _ string) {
	v, ok := parseNumber(strings.TrimSpace(line))
	if !ok {
		return
	}
	for _, slot := range []**float64{
		&f.TemperatureC, &f.CapacitiveRaw, &f.PhotodiodeRaw, &f.HallRaw, &f.IntensityPct,
	} {
		if *slot == nil {
			value := v
			*slot = &value
			return
		}
	}
}

func isBareNumber(lower string) bool {
	return bareNumberRe.MatchString(strings.TrimSpace(lower))
}
