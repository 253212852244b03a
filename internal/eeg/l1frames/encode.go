package l1frames

import (
	"encoding/hex"
	"strconv"

	"github.com/synapse-data/gaze.report/internal/eeg"
)

// HeaderFor returns the wire header byte for a channel. Unknown channels
// get 0x00, which round-trips back to eeg.ChannelUnknown.
func HeaderFor(ch eeg.Channel) byte {
	switch ch {
	case eeg.ChannelAF3:
		return HeaderAF3
	case eeg.ChannelAF4:
		return HeaderAF4
	case eeg.ChannelPPG:
		return HeaderPPG
	default:
		return 0x00
	}
}

// EncodeFrame builds a wire frame for the given header byte and value. Used
// by the mock transport and fixture tooling; the headset firmware produces
// the same layout.
func EncodeFrame(header byte, value int64) []byte {
	payload := strconv.FormatInt(value, 10)
	frame := make([]byte, 0, len(payload)+2)
	frame = append(frame, header)
	frame = append(frame, payload...)
	frame = append(frame, Terminator)
	return frame
}

// EncodeFrameHex builds a frame and hex-encodes it the way the transport
// layer delivers notifications.
func EncodeFrameHex(header byte, value int64) string {
	return hex.EncodeToString(EncodeFrame(header, value))
}
