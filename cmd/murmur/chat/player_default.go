//go:build !portaudio

package chatcmder

import (
	"log/slog"

	"github.com/papercomputeco/murmur/pkg/audio"
	"github.com/papercomputeco/murmur/pkg/config"
)

// newPlayer returns a silent player. Speaker output requires building with
// the portaudio tag.
func newPlayer(cfg config.AudioConfig, _ audio.Format, tts bool, log *slog.Logger) (audio.Player, func() error, error) {
	if tts && cfg.Output == "speaker" {
		log.Warn("built without portaudio support, speech will not be played (rebuild with -tags portaudio)")
	}
	return audio.NopPlayer{}, func() error { return nil }, nil
}
