// Package audio reassembles sequenced PCM fragments into playable WAV units
// and plays them one after another.
package audio

import "time"

// Format describes raw PCM samples.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultFormat is what the chat backend synthesizes: 24kHz mono 16-bit
// little endian.
var DefaultFormat = Format{
	SampleRate:    24000,
	Channels:      1,
	BitsPerSample: 16,
}

// BlockAlign is the size in bytes of one frame across all channels.
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// ByteRate is the number of bytes per second of audio.
func (f Format) ByteRate() int {
	return f.SampleRate * f.BlockAlign()
}

// BytesFor returns the byte count for d of audio, rounded down to a whole
// frame.
func (f Format) BytesFor(d time.Duration) int {
	n := int(int64(f.ByteRate()) * int64(d) / int64(time.Second))
	return n - n%f.BlockAlign()
}

// DurationOf returns how long n bytes of PCM play for.
func (f Format) DurationOf(n int) time.Duration {
	if f.ByteRate() == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(f.ByteRate()))
}
