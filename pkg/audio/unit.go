package audio

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Unit is one independently playable WAV container.
type Unit struct {
	ID       string
	Samples  int
	Duration time.Duration

	mu  sync.Mutex
	wav []byte
}

// NewUnit wraps pcm in a WAV container.
func NewUnit(pcm []byte, f Format) *Unit {
	return &Unit{
		ID:       uuid.NewString(),
		Samples:  len(pcm) / f.BlockAlign(),
		Duration: f.DurationOf(len(pcm)),
		wav:      EncodeWAV(pcm, f),
	}
}

// Bytes returns the WAV container, or nil once the unit was released.
func (u *Unit) Bytes() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.wav
}

// Released reports whether the backing bytes were dropped.
func (u *Unit) Released() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.wav == nil
}

// Release drops the backing bytes.
func (u *Unit) Release() {
	u.mu.Lock()
	u.wav = nil
	u.mu.Unlock()
}
