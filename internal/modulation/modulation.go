// Package modulation detects inline voice-modulation markers in normalized
// text — parenthetical whispers, bracket tags, and emphasis markup — strips
// them from the surface form before chunking, and records the speed/volume/
// pitch/voice-blend adjustment each stripped span implies so the
// orchestrator can apply it to whichever chunk(s) the span falls within.
package modulation

import (
	"regexp"
	"strings"
)

// Tone classifies the kind of modulation a marker requests.
type Tone string

const (
	ToneWhisper     Tone = "whisper"
	ToneDeepWhisper Tone = "deep_whisper"
	ToneAside       Tone = "aside"
	ToneSoft        Tone = "soft"
	ToneLoud        Tone = "loud"
	ToneFast        Tone = "fast"
	ToneSlow        Tone = "slow"
	ToneStrong      Tone = "strong"
	ToneEmphasis    Tone = "emphasis"
	ToneQuoted      Tone = "quoted"
)

// Modulation is the synthesis-parameter adjustment one detected marker
// implies. VolumeMult and SpeedMult are multipliers against a chunk's base
// parameters; PitchAdjust is an additive delta. BlendVoice/BlendRatio
// request a weighted blend toward another voice; BlendVoice is empty when
// the marker carries no voice-blend intent (emphasis, quoted text) or
// whisper blending was not configured.
type Modulation struct {
	Tone        Tone
	VolumeMult  float64
	SpeedMult   float64
	PitchAdjust float64
	BlendVoice  string
	BlendRatio  float64
}

// Segment is one detected span in the string Strip returned: [Start,End)
// byte offsets with the Modulation that applies across that span.
type Segment struct {
	Start int
	End   int
	Mod   Modulation
}

// masterRE matches every marker type in priority order: nested parens before
// single parens (so "((x))" isn't consumed as a single-paren match first),
// explicit bracket tags, single parens, bold before plain emphasis, then
// quotes. Go's RE2 engine prefers the earliest-listed alternative that
// matches at a given starting position, which is what makes the ordering
// below do the right thing without backtracking.
var masterRE = regexp.MustCompile(
	`\(\(([^()]+)\)\)` + // 1: nested parens -> deep whisper
		`|\[whisper\]([^\[\]]+)\[/whisper\]` + // 2: explicit whisper tag
		`|\[soft\]([^\[\]]+)\[/soft\]` + // 3
		`|\[loud\]([^\[\]]+)\[/loud\]` + // 4
		`|\[fast\]([^\[\]]+)\[/fast\]` + // 5
		`|\[slow\]([^\[\]]+)\[/slow\]` + // 6
		`|\[aside\]([^\[\]]+)\[/aside\]` + // 7
		`|\(([^()]+)\)` + // 8: single parens -> whisper
		`|\*\*([^*]+)\*\*` + // 9: bold -> strong emphasis
		`|\*([^*]+)\*` + // 10: plain emphasis
		`|"([^"]+)"`, // 11: quoted
)

const markerGroups = 11

// Strip scans text for modulation markers, removes the marker delimiters
// (keeping the text inside them), and returns the resulting string plus the
// segments describing where each marker's modulation applies in that
// string. whisperVoice is the voice blended toward for whisper-family
// markers; an empty value leaves BlendVoice unset on every segment so
// callers can skip the blend step entirely.
func Strip(text, whisperVoice string) (string, []Segment) {
	matches := masterRE.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var out strings.Builder
	segments := make([]Segment, 0, len(matches))
	last := 0

	for _, m := range matches {
		out.WriteString(text[last:m[0]])

		inner, mod := classify(text, m, whisperVoice)
		start := out.Len()
		out.WriteString(inner)
		segments = append(segments, Segment{Start: start, End: out.Len(), Mod: mod})

		last = m[1]
	}
	out.WriteString(text[last:])

	return out.String(), segments
}

// classify returns the inner text captured by whichever group of masterRE
// matched, and the Modulation for that marker type.
func classify(text string, m []int, whisperVoice string) (string, Modulation) {
	for g := 1; g <= markerGroups; g++ {
		s, e := m[2*g], m[2*g+1]
		if s == -1 {
			continue
		}
		return text[s:e], modulationFor(g, whisperVoice)
	}
	return text[m[0]:m[1]], Modulation{}
}

func modulationFor(group int, whisperVoice string) Modulation {
	var mod Modulation
	switch group {
	case 1: // nested parens
		mod = Modulation{Tone: ToneDeepWhisper, VolumeMult: 0.4, SpeedMult: 0.8, PitchAdjust: -0.2, BlendVoice: whisperVoice, BlendRatio: 0.9}
	case 2: // [whisper]
		mod = Modulation{Tone: ToneWhisper, VolumeMult: 0.5, SpeedMult: 0.85, PitchAdjust: -0.15, BlendVoice: whisperVoice, BlendRatio: 0.8}
	case 3: // [soft]
		mod = Modulation{Tone: ToneSoft, VolumeMult: 0.8, SpeedMult: 0.95, PitchAdjust: -0.05}
	case 4: // [loud]
		mod = Modulation{Tone: ToneLoud, VolumeMult: 1.4, SpeedMult: 1.05, PitchAdjust: 0.1}
	case 5: // [fast]
		mod = Modulation{Tone: ToneFast, VolumeMult: 1.0, SpeedMult: 1.3}
	case 6: // [slow]
		mod = Modulation{Tone: ToneSlow, VolumeMult: 1.0, SpeedMult: 0.7}
	case 7: // [aside]
		mod = Modulation{Tone: ToneAside, VolumeMult: 0.7, SpeedMult: 0.9, PitchAdjust: -0.08, BlendVoice: whisperVoice, BlendRatio: 0.6}
	case 8: // single parens
		mod = Modulation{Tone: ToneWhisper, VolumeMult: 0.55, SpeedMult: 0.85, PitchAdjust: -0.15, BlendVoice: whisperVoice, BlendRatio: 0.8}
	case 9: // **bold**
		mod = Modulation{Tone: ToneStrong, VolumeMult: 1.3, SpeedMult: 0.9, PitchAdjust: 0.1}
	case 10: // *emphasis*
		mod = Modulation{Tone: ToneEmphasis, VolumeMult: 1.2, SpeedMult: 0.95, PitchAdjust: 0.05}
	case 11: // "quoted"
		mod = Modulation{Tone: ToneQuoted, VolumeMult: 1.1, SpeedMult: 1.0, PitchAdjust: 0.02}
	}

	if mod.BlendVoice == "" {
		mod.BlendRatio = 0
	}
	return mod
}

// Overlapping returns the modulation of the first segment overlapping the
// half-open range [start,end), if any. Chunk ranges and segment ranges both
// index into the same stripped string, so plain interval overlap applies.
func Overlapping(segments []Segment, start, end int) (Modulation, bool) {
	for _, seg := range segments {
		if seg.Start < end && start < seg.End {
			return seg.Mod, true
		}
	}
	return Modulation{}, false
}
