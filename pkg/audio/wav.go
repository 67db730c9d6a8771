package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// WAVHeaderSize is the size of the canonical PCM RIFF/WAVE header.
const WAVHeaderSize = 44

// WAVHeader is the decoded canonical header of a PCM WAV container.
type WAVHeader struct {
	Format   Format
	DataSize int
}

// EncodeWAV wraps pcm in a minimal RIFF/WAVE container.
func EncodeWAV(pcm []byte, f Format) []byte {
	dataSize := len(pcm)

	out := make([]byte, WAVHeaderSize+dataSize)

	// RIFF header
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataSize))
	copy(out[8:12], "WAVE")

	// fmt subchunk
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(f.ByteRate()))
	binary.LittleEndian.PutUint16(out[32:34], uint16(f.BlockAlign()))
	binary.LittleEndian.PutUint16(out[34:36], uint16(f.BitsPerSample))

	// data subchunk
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))
	copy(out[WAVHeaderSize:], pcm)

	return out
}

// ParseWAVHeader reads the canonical 44 byte header written by EncodeWAV.
// Containers with extra chunks before "data" are rejected.
func ParseWAVHeader(b []byte) (WAVHeader, error) {
	if len(b) < WAVHeaderSize {
		return WAVHeader{}, fmt.Errorf("wav header too short: %d bytes", len(b))
	}
	if !bytes.Equal(b[0:4], []byte("RIFF")) || !bytes.Equal(b[8:12], []byte("WAVE")) {
		return WAVHeader{}, fmt.Errorf("not a RIFF/WAVE container")
	}
	if !bytes.Equal(b[12:16], []byte("fmt ")) || !bytes.Equal(b[36:40], []byte("data")) {
		return WAVHeader{}, fmt.Errorf("unexpected wav chunk layout")
	}
	if tag := binary.LittleEndian.Uint16(b[20:22]); tag != 1 {
		return WAVHeader{}, fmt.Errorf("unsupported wav format tag %d", tag)
	}

	h := WAVHeader{
		Format: Format{
			Channels:      int(binary.LittleEndian.Uint16(b[22:24])),
			SampleRate:    int(binary.LittleEndian.Uint32(b[24:28])),
			BitsPerSample: int(binary.LittleEndian.Uint16(b[34:36])),
		},
		DataSize: int(binary.LittleEndian.Uint32(b[40:44])),
	}
	if h.DataSize > len(b)-WAVHeaderSize {
		return WAVHeader{}, fmt.Errorf("wav data size %d exceeds container", h.DataSize)
	}

	return h, nil
}
