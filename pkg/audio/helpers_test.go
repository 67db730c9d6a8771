package audio_test

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"sync"

	"github.com/papercomputeco/murmur/pkg/audio"
)

// pcm encodes samples as 16-bit little endian.
func pcm(samples ...int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

func b64(samples ...int16) string {
	return base64.StdEncoding.EncodeToString(pcm(samples...))
}

func samplesOf(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}

// fakePlayer records the PCM of every unit it plays. When block is set,
// Play waits on it or on cancellation.
type fakePlayer struct {
	mu        sync.Mutex
	block     chan struct{}
	failOn    map[int]error
	calls     int
	played    [][]int16
	units     []*audio.Unit
	cancelled int
	paused    bool
	muted     bool
}

func (p *fakePlayer) Play(ctx context.Context, u *audio.Unit) error {
	p.mu.Lock()
	idx := p.calls
	p.calls++
	p.units = append(p.units, u)
	block := p.block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			p.mu.Lock()
			p.cancelled++
			p.mu.Unlock()
			return ctx.Err()
		}
	}

	h, err := audio.ParseWAVHeader(u.Bytes())
	if err != nil {
		return err
	}
	data := u.Bytes()[audio.WAVHeaderSize : audio.WAVHeaderSize+h.DataSize]

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failOn[idx]; err != nil {
		return err
	}
	p.played = append(p.played, samplesOf(data))
	return nil
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
}

func (p *fakePlayer) Resume() {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
}

func (p *fakePlayer) SetMuted(muted bool) {
	p.mu.Lock()
	p.muted = muted
	p.mu.Unlock()
}

func (p *fakePlayer) Played() [][]int16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]int16(nil), p.played...)
}

// Flat is every played sample in playback order.
func (p *fakePlayer) Flat() []int16 {
	var out []int16
	for _, u := range p.Played() {
		out = append(out, u...)
	}
	return out
}

func (p *fakePlayer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *fakePlayer) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *fakePlayer) Cancelled() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelled
}

func (p *fakePlayer) Unit(i int) *audio.Unit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.units[i]
}

func encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
