// Package beep synthesizes the short cue sounds played on session
// transitions.
package beep

import (
	"math"
	"sync"
	"sync/atomic"
)

type Tone int

const (
	Start Tone = iota
	End
	Error
	Tick
	Success
	numTones
)

var disabled atomic.Bool

func Disable() { disabled.Store(true) }

const (
	sampleRate = 44100

	// Start beep: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End beep: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Error beep: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30

	// Tick: quiet blip every few seconds while recording
	tickFreq   = 1800
	tickVolume = 0.15
	tickDecay  = 120

	// Success: rising two-note chirp
	successLow    = 880
	successHigh   = 1320
	successVolume = 0.4
	successDecay  = 45
)

var (
	tones     [numTones][]int16
	toneOnce  sync.Once
	soundOnce sync.Once
)

func buildTones() {
	tones[Start] = generateTick(sampleRate, startFreq, 0.03, startVolume, startDecay)
	tones[End] = generateTick(sampleRate, endFreq, 0.05, endVolume, endDecay)
	tones[Error] = generateDoubleBeep(sampleRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay)
	tones[Tick] = generateTick(sampleRate, tickFreq, 0.02, tickVolume, tickDecay)
	tones[Success] = append(
		generateTick(sampleRate, successLow, 0.06, successVolume, successDecay),
		generateTick(sampleRate, successHigh, 0.08, successVolume, successDecay)...)
	for i := range tones {
		tones[i] = append(tones[i], make([]int16, int(sampleRate*tailPad.Seconds()))...)
	}
}

// Samples returns the mono PCM for t at 44.1 kHz.
func Samples(t Tone) []int16 {
	toneOnce.Do(buildTones)
	if t < 0 || t >= numTones {
		return nil
	}
	return tones[t]
}

func Init() {
	soundOnce.Do(initSound)
}

// Play sounds t without blocking the caller.
func Play(t Tone) {
	if disabled.Load() {
		return
	}
	samples := Samples(t)
	if len(samples) == 0 {
		return
	}
	soundOnce.Do(initSound)
	play(samples)
}

func PlayStart()   { Play(Start) }
func PlayEnd()     { Play(End) }
func PlayError()   { Play(Error) }
func PlayTick()    { Play(Tick) }
func PlaySuccess() { Play(Success) }

func generateTick(sampleRate int, freq float64, duration float64, volume float64, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := range n {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func generateDoubleBeep(sampleRate int, freq float64, beepDur float64, gapDur float64, volume float64, decay float64) []int16 {
	beep := generateTick(sampleRate, freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(sampleRate)*gapDur))
	result := make([]int16, 0, len(beep)*2+len(gap))
	result = append(result, beep...)
	result = append(result, gap...)
	result = append(result, beep...)
	return result
}
