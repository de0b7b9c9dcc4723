package metronome

import (
	"fmt"
	"io"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// General MIDI percussion mapping for the click.
const (
	DrumChannel = 9
	AccentKey   = 76 // hi wood block
	NormalKey   = 77 // low wood block

	AccentVelocity = 127
	NormalVelocity = 90

	TicksPerQuarter = 960
	clickTicks      = TicksPerQuarter / 8
)

// BuildSMF returns the click pattern as a two-track Standard MIDI File: a
// tempo track carrying the tempo and meter, and a drum track with the clicks.
func BuildSMF(c ClickTrack) (*smf.SMF, error) {
	c.SampleRate = 1
	if err := c.validate(); err != nil {
		return nil, err
	}
	bpb := c.beatsPerBar()

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	var meta smf.Track
	meta.Add(0, smf.MetaMeter(uint8(bpb), 4)) //nolint:gosec // beats per bar is small
	meta.Add(0, smf.MetaTempo(float64(c.BPM)))
	meta.Close(0)
	if err := sm.Add(meta); err != nil {
		return nil, fmt.Errorf("adding tempo track: %w", err)
	}

	var clicks smf.Track
	clicks.Add(0, smf.MetaTrackSequenceName("Click"))
	var delta uint32
	for beat := 0; beat < c.Beats(); beat++ {
		key, vel := uint8(NormalKey), uint8(NormalVelocity)
		if beat%bpb == 0 {
			key, vel = AccentKey, AccentVelocity
		}
		clicks.Add(delta, midi.NoteOn(DrumChannel, key, vel))
		clicks.Add(clickTicks, midi.NoteOff(DrumChannel, key))
		delta = TicksPerQuarter - clickTicks
	}
	clicks.Close(delta)
	if err := sm.Add(clicks); err != nil {
		return nil, fmt.Errorf("adding click track: %w", err)
	}
	return sm, nil
}

// WriteSMF writes the click pattern as a Standard MIDI File.
func WriteSMF(w io.Writer, c ClickTrack) error {
	sm, err := BuildSMF(c)
	if err != nil {
		return err
	}
	if _, err := sm.WriteTo(w); err != nil {
		return fmt.Errorf("writing midi file: %w", err)
	}
	return nil
}
