//go:build portaudio

package chatcmder

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/murmur/pkg/audio"
	"github.com/papercomputeco/murmur/pkg/audio/portaudio"
	"github.com/papercomputeco/murmur/pkg/config"
)

// newPlayer opens the default output device unless speech is disabled.
func newPlayer(cfg config.AudioConfig, f audio.Format, tts bool, log *slog.Logger) (audio.Player, func() error, error) {
	if !tts || cfg.Output != "speaker" {
		return audio.NopPlayer{}, func() error { return nil }, nil
	}

	out, err := portaudio.Open(f, audio.DefaultFramesPerBuffer)
	if err != nil {
		return nil, nil, fmt.Errorf("opening speaker: %w", err)
	}
	log.Debug("speaker opened", "sample_rate", f.SampleRate, "channels", f.Channels)

	return audio.NewStreamPlayer(out, audio.DefaultFramesPerBuffer), out.Close, nil
}
