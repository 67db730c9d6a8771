package server

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/papercomputeco/murmur/pkg/audio"
)

const (
	toneHz        = 440.0
	toneAmplitude = 0.2
	perWordAudio  = 120 * time.Millisecond
	maxAudio      = 4 * time.Second
	markerChunk   = 5
)

// event is one outbound SSE event.
type event struct {
	Type string
	Data map[string]any
}

// script is the scripted reply to one request.
type script struct {
	answer      string
	suggestions []string
	fail        bool
}

func newScript(query string) script {
	q := strings.TrimSpace(query)
	if strings.HasPrefix(q, "!error") {
		return script{answer: "Let me think about", fail: true}
	}

	return script{
		answer: fmt.Sprintf("You asked: %s. This is a scripted reply from the murmur mock server, "+
			"streamed token by token with synthesized speech.", q),
		suggestions: []string{"Tell me more", "Ask something else", "What can you do?"},
	}
}

// marker renders the trailing suggestions marker.
func (s script) marker() string {
	if len(s.suggestions) == 0 {
		return ""
	}
	return " [SUGGESTIONS: " + strings.Join(s.suggestions, " | ") + "]"
}

// tokens splits the answer into word tokens and the marker into short
// pieces so clients see it arrive split across events.
func (s script) tokens() []string {
	var out []string
	words := strings.SplitAfter(s.answer, " ")
	for _, w := range words {
		if w != "" {
			out = append(out, w)
		}
	}

	m := s.marker()
	for len(m) > 0 {
		n := min(markerChunk, len(m))
		out = append(out, m[:n])
		m = m[n:]
	}
	return out
}

// fragments synthesizes a sine tone sized to the answer and cuts it into
// base64 fragments tagged with their generation sequence, then reorders
// them within shuffle windows.
func (s script) fragments(cfg Config, rng *rand.Rand) []event {
	pcm := tone(cfg.Format, s.audioDuration())

	size := cfg.Format.BytesFor(cfg.FragmentDuration)
	if size <= 0 {
		size = len(pcm)
	}

	var out []event
	for seq := 0; len(pcm) > 0; seq++ {
		n := min(size, len(pcm))
		out = append(out, event{Type: "audio-chunk", Data: map[string]any{
			"sequence": seq,
			"payload":  base64.StdEncoding.EncodeToString(pcm[:n]),
		}})
		pcm = pcm[n:]
	}

	if cfg.ShuffleWindow > 1 {
		for i := 0; i < len(out); i += cfg.ShuffleWindow {
			w := out[i:min(i+cfg.ShuffleWindow, len(out))]
			rng.Shuffle(len(w), func(a, b int) { w[a], w[b] = w[b], w[a] })
		}
	}
	return out
}

// audioDuration scales speech length with the answer word count.
func (s script) audioDuration() time.Duration {
	words := len(strings.Fields(s.answer))
	return min(time.Duration(words)*perWordAudio, maxAudio)
}

// tone renders d of a 16-bit little-endian sine wave in f.
func tone(f audio.Format, d time.Duration) []byte {
	frames := f.BytesFor(d) / f.BlockAlign()
	out := make([]byte, 0, frames*f.BlockAlign())
	for i := range frames {
		v := int16(toneAmplitude * math.MaxInt16 *
			math.Sin(2*math.Pi*toneHz*float64(i)/float64(f.SampleRate)))
		for range f.Channels {
			out = binary.LittleEndian.AppendUint16(out, uint16(v))
		}
	}
	return out
}

// events interleaves tokens and audio fragments and appends the closing
// events.
func (s script) events(cfg Config, sessionID string, tts bool, rng *rand.Rand) []event {
	tokens := s.tokens()

	var audioEvents []event
	if tts && !s.fail {
		audioEvents = s.fragments(cfg, rng)
	}

	var out []event
	for i, t := range tokens {
		out = append(out, event{Type: "text-token", Data: map[string]any{"text": t}})
		if i < len(audioEvents) {
			out = append(out, audioEvents[i])
		}
	}
	if len(audioEvents) > len(tokens) {
		out = append(out, audioEvents[len(tokens):]...)
	}

	if s.fail {
		return append(out, event{Type: "error", Data: map[string]any{
			"message": "mock upstream failure",
			"code":    "mock_error",
		}})
	}

	out = append(out, event{Type: "metadata", Data: map[string]any{
		"metadata": map[string]any{"model": "murmur-mock", "sessionId": sessionID},
	}})
	return append(out, event{Type: "done", Data: map[string]any{
		"fullAnswer": s.answer + s.marker(),
		"metrics":    map[string]any{"tokens": len(tokens)},
	}})
}
