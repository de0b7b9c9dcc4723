//go:build rtmidi && cgo && !js

package midiclock

// The rtmidi driver needs a working system MIDI stack at init time, so it is
// only linked into binaries built with -tags rtmidi.
import (
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)
