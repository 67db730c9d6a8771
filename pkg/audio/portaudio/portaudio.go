//go:build portaudio

// Package portaudio writes audio frames to the default output device.
package portaudio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/papercomputeco/murmur/pkg/audio"
)

// Output is an audio.FrameWriter over a blocking portaudio stream.
type Output struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	buffer []int16
}

// Open initializes portaudio and starts a default output stream for f.
func Open(f audio.Format, framesPerBuffer int) (*Output, error) {
	if f.BitsPerSample != 16 {
		return nil, fmt.Errorf("portaudio output supports 16-bit samples, got %d", f.BitsPerSample)
	}
	if framesPerBuffer <= 0 {
		framesPerBuffer = audio.DefaultFramesPerBuffer
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}

	o := &Output{
		buffer: make([]int16, framesPerBuffer*f.Channels),
	}

	stream, err := portaudio.OpenDefaultStream(0, f.Channels, float64(f.SampleRate), framesPerBuffer, o.buffer)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("opening output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("starting output stream: %w", err)
	}
	o.stream = stream

	return o, nil
}

// WriteFrame blocks until samples were handed to the device. Short frames
// are padded with silence.
func (o *Output) WriteFrame(samples []int16) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for len(samples) > 0 {
		n := copy(o.buffer, samples)
		clear(o.buffer[n:])
		samples = samples[n:]

		// underflow only means the device waited on us
		if err := o.stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			return err
		}
	}
	return nil
}

// Close stops the stream and releases portaudio.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.stream.Stop(); err != nil {
		return err
	}
	if err := o.stream.Close(); err != nil {
		return err
	}
	return portaudio.Terminate()
}
