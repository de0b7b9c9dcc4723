package metronome

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Click sound parameters.
const (
	AccentFreq  = 1000.0
	AccentGain  = 0.5
	NormalFreq  = 800.0
	NormalGain  = 0.3
	ClickLength = 0.1
	DecayFloor  = 0.001

	bitDepth = 16
)

// ClickTrack describes a rendered metronome pattern.
type ClickTrack struct {
	BPM         int
	Bars        int
	BeatsPerBar int
	SampleRate  int
}

func (c ClickTrack) validate() error {
	if err := checkBPM(c.BPM); err != nil {
		return err
	}
	if c.Bars <= 0 {
		return fmt.Errorf("%w: bars must be positive, got %d", ErrInvalidLength, c.Bars)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidLength, c.SampleRate)
	}
	return nil
}

func (c ClickTrack) beatsPerBar() int {
	if c.BeatsPerBar <= 0 {
		return DefaultBeatsPerBar
	}
	return c.BeatsPerBar
}

// Beats is the total number of clicks in the track.
func (c ClickTrack) Beats() int {
	return c.Bars * c.beatsPerBar()
}

// SamplesPerBeat is the beat length in samples, rounded to the nearest sample.
func (c ClickTrack) SamplesPerBeat() int {
	return int(math.Round(60.0 / float64(c.BPM) * float64(c.SampleRate)))
}

// RenderClicks renders the click pattern as mono samples in [-1, 1]. Each
// click is a sine burst whose envelope decays exponentially from its gain to
// DecayFloor over ClickLength seconds.
func RenderClicks(c ClickTrack) ([]float64, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	perBeat := c.SamplesPerBeat()
	samples := make([]float64, perBeat*c.Beats())
	clickLen := min(int(ClickLength*float64(c.SampleRate)), perBeat)
	decay := math.Log(DecayFloor) / ClickLength
	bpb := c.beatsPerBar()

	for beat := 0; beat < c.Beats(); beat++ {
		freq, gain := NormalFreq, NormalGain
		if beat%bpb == 0 {
			freq, gain = AccentFreq, AccentGain
		}
		offset := beat * perBeat
		for i := 0; i < clickLen; i++ {
			t := float64(i) / float64(c.SampleRate)
			samples[offset+i] = gain * math.Exp(decay*t) * math.Sin(2*math.Pi*freq*t)
		}
	}
	return samples, nil
}

// WriteWAV encodes mono samples as 16-bit PCM.
func WriteWAV(w io.WriteSeeker, samples []float64, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidLength, sampleRate)
	}

	enc := wav.NewEncoder(w, sampleRate, bitDepth, 1, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: bitDepth,
	}
	for i, s := range samples {
		s = max(-1, min(1, s))
		buf.Data[i] = int(math.Round(s * 32767))
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encoding wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing wav: %w", err)
	}
	return nil
}

// ReadWAV decodes a PCM WAV file and returns mono samples normalized to
// [-1, 1] along with the sample rate. Multi-channel input is averaged.
func ReadWAV(r io.ReadSeeker) ([]float64, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, errors.New("not a valid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decoding pcm: %w", err)
	}
	depth := int(dec.BitDepth)
	if depth == 0 {
		return nil, 0, errors.New("unknown bit depth")
	}
	channels := buf.Format.NumChannels
	if channels <= 0 {
		return nil, 0, errors.New("unknown channel count")
	}

	scale := 1.0 / math.Pow(2, float64(depth-1))
	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch])
		}
		out[i] = sum / float64(channels) * scale
	}
	return out, buf.Format.SampleRate, nil
}

// VerifyWAV reads a rendered click track back and checks its sample rate,
// its length and that every beat carries a click of the right loudness.
func VerifyWAV(r io.ReadSeeker, c ClickTrack) error {
	if err := c.validate(); err != nil {
		return err
	}
	samples, rate, err := ReadWAV(r)
	if err != nil {
		return err
	}
	if rate != c.SampleRate {
		return fmt.Errorf("%w: sample rate %d, want %d", ErrMismatch, rate, c.SampleRate)
	}
	perBeat := c.SamplesPerBeat()
	if want := perBeat * c.Beats(); len(samples) != want {
		return fmt.Errorf("%w: %d samples, want %d", ErrMismatch, len(samples), want)
	}

	threshold := (AccentGain + NormalGain) / 2
	clickLen := min(int(ClickLength*float64(c.SampleRate)), perBeat)
	for beat := 0; beat < c.Beats(); beat++ {
		var peak float64
		for _, s := range samples[beat*perBeat : beat*perBeat+clickLen] {
			peak = max(peak, math.Abs(s))
		}
		accent := beat%c.beatsPerBar() == 0
		switch {
		case accent && peak < threshold:
			return fmt.Errorf("%w: beat %d accent peak %.3f", ErrMismatch, beat+1, peak)
		case !accent && (peak < NormalGain/2 || peak >= threshold):
			return fmt.Errorf("%w: beat %d click peak %.3f", ErrMismatch, beat+1, peak)
		}
	}
	return nil
}
