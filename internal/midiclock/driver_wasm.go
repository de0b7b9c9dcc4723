//go:build js && wasm

package midiclock

import (
	_ "gitlab.com/gomidi/midi/v2/drivers/webmididrv"
)
