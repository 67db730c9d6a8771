package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DefaultFramesPerBuffer is the number of samples handed to a FrameWriter
// per write.
const DefaultFramesPerBuffer = 1024

// Player plays one unit at a time. Play blocks until the unit finished or
// ctx is cancelled. Pause, Resume and SetMuted may be called from any
// goroutine while Play runs; the engine calls them with its lock held, so
// they must not block.
type Player interface {
	Play(ctx context.Context, u *Unit) error
	Pause()
	Resume()
	SetMuted(muted bool)
}

// FrameWriter is a blocking sink of interleaved 16-bit samples, typically a
// sound card stream.
type FrameWriter interface {
	WriteFrame(samples []int16) error
}

// StreamPlayer plays WAV units through a FrameWriter.
type StreamPlayer struct {
	out             FrameWriter
	framesPerBuffer int

	// playMu serializes Play so a cancelled unit finishes its last write
	// before the next unit starts.
	playMu sync.Mutex

	mu     sync.Mutex
	resume chan struct{}

	muted atomic.Bool
}

// NewStreamPlayer creates a StreamPlayer writing framesPerBuffer samples
// per write. A non-positive value selects DefaultFramesPerBuffer.
func NewStreamPlayer(out FrameWriter, framesPerBuffer int) *StreamPlayer {
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}
	return &StreamPlayer{
		out:             out,
		framesPerBuffer: framesPerBuffer,
	}
}

// Play decodes u and writes it frame by frame.
func (p *StreamPlayer) Play(ctx context.Context, u *Unit) error {
	p.playMu.Lock()
	defer p.playMu.Unlock()

	data := u.Bytes()
	if data == nil {
		return errors.New("unit already released")
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return errors.New("invalid wav container")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return fmt.Errorf("decoding wav: %w", err)
	}
	if dec.BitDepth != 16 {
		return fmt.Errorf("unsupported bit depth %d", dec.BitDepth)
	}

	return p.write(ctx, buf)
}

// write hands buf to the output framesPerBuffer samples at a time, honouring
// pause and mute between writes.
func (p *StreamPlayer) write(ctx context.Context, buf *goaudio.IntBuffer) error {
	frame := make([]int16, p.framesPerBuffer)
	samples := buf.Data

	for off := 0; off < len(samples); off += p.framesPerBuffer {
		if err := p.waitWhilePaused(ctx); err != nil {
			return err
		}

		end := min(off+p.framesPerBuffer, len(samples))
		n := end - off
		if p.muted.Load() {
			clear(frame[:n])
		} else {
			for i, s := range samples[off:end] {
				frame[i] = int16(s)
			}
		}

		if err := p.out.WriteFrame(frame[:n]); err != nil {
			return fmt.Errorf("writing frame: %w", err)
		}
	}

	return ctx.Err()
}

func (p *StreamPlayer) waitWhilePaused(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		p.mu.Lock()
		resume := p.resume
		p.mu.Unlock()

		if resume == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-resume:
		}
	}
}

// Pause blocks the playing unit before its next frame.
func (p *StreamPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resume == nil {
		p.resume = make(chan struct{})
	}
}

// Resume unblocks a paused unit.
func (p *StreamPlayer) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resume != nil {
		close(p.resume)
		p.resume = nil
	}
}

// SetMuted writes silence in place of samples while muted.
func (p *StreamPlayer) SetMuted(muted bool) {
	p.muted.Store(muted)
}

// NopPlayer discards audio. It is used when no speaker backend is built in.
type NopPlayer struct{}

func (NopPlayer) Play(ctx context.Context, _ *Unit) error { return ctx.Err() }
func (NopPlayer) Pause()                                  {}
func (NopPlayer) Resume()                                 {}
func (NopPlayer) SetMuted(bool)                           {}
