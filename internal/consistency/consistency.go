// Package consistency tracks session-scoped prosody drift across chunks and
// emits small parameter deltas the scheduler composes with a request's base
// synthesis parameters. It never touches the voice embedding itself.
package consistency

import "strings"

// Deltas are additive adjustments to the base synthesis parameters for one
// chunk. A zero Deltas value is a no-op.
type Deltas struct {
	Pitch               float64
	IntonationVariation float64
	SpeechRate          float64
	InitialPause        float64
	FinalPause          float64
	Emphasis            float64
}

// Manager tracks one generation session's drift state. It is not safe for
// concurrent use by multiple goroutines without external synchronization;
// core's per-chunk synthesis function serializes its calls in chunk-ordinal
// order regardless of scheduling mode.
type Manager struct {
	decay      float64
	seenFirst  bool
	chunkCount int
	drift      Deltas
}

// DefaultDecay is the fraction of the running drift sum retained between
// chunks; the rest is negated back out to prevent cumulative drift.
const DefaultDecay = 0.7

// New builds a Manager with DefaultDecay.
func New() *Manager {
	return &Manager{decay: DefaultDecay}
}

// NewWithDecay builds a Manager with an explicit decay fraction in [0,1].
func NewWithDecay(decay float64) *Manager {
	if decay < 0 {
		decay = 0
	}
	if decay > 1 {
		decay = 1
	}
	return &Manager{decay: decay}
}

// Adjust returns the parameter deltas for the chunk at the given ordinal,
// given the chunk's text, whether it is the last chunk in the session, and
// whether it immediately follows overlap text prepended by the chunker.
// Calls must be made in ascending ordinal order; Adjust maintains the
// running drift-compensation state between calls.
func (m *Manager) Adjust(text string, ordinal int, isLast bool, followsOverlap bool) Deltas {
	if !m.seenFirst {
		m.seenFirst = true
		m.chunkCount++
		return Deltas{}
	}
	m.chunkCount++

	var d Deltas

	if isLast {
		d.Pitch -= 0.05
		d.IntonationVariation -= 0.1
		d.FinalPause += 0.15
	}

	trimmed := strings.TrimSpace(text)
	if !isLast && strings.HasSuffix(trimmed, "?") {
		d.IntonationVariation += 0.2
	}
	if !isLast && strings.HasSuffix(trimmed, "!") {
		d.Emphasis += 0.3
	}

	if followsOverlap {
		d.SpeechRate += 0.05
		d.InitialPause -= 0.05
	}

	d = m.compensateDrift(d)

	return d
}

// compensateDrift folds the newly-proposed delta into the running drift sum,
// decays the sum, and subtracts the decayed remainder back out of the
// returned delta so the long-run average adjustment trends toward zero.
func (m *Manager) compensateDrift(d Deltas) Deltas {
	m.drift = addDeltas(m.drift, d)

	negated := scaleDeltas(m.drift, -(1 - m.decay))
	out := addDeltas(d, negated)

	m.drift = scaleDeltas(m.drift, m.decay)

	return out
}

func addDeltas(a, b Deltas) Deltas {
	return Deltas{
		Pitch:               a.Pitch + b.Pitch,
		IntonationVariation: a.IntonationVariation + b.IntonationVariation,
		SpeechRate:          a.SpeechRate + b.SpeechRate,
		InitialPause:        a.InitialPause + b.InitialPause,
		FinalPause:          a.FinalPause + b.FinalPause,
		Emphasis:            a.Emphasis + b.Emphasis,
	}
}

func scaleDeltas(a Deltas, s float64) Deltas {
	return Deltas{
		Pitch:               a.Pitch * s,
		IntonationVariation: a.IntonationVariation * s,
		SpeechRate:          a.SpeechRate * s,
		InitialPause:        a.InitialPause * s,
		FinalPause:          a.FinalPause * s,
		Emphasis:            a.Emphasis * s,
	}
}
