package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/papercomputeco/murmur/pkg/sse"
)

// envelope is the superset of all payload shapes. Kind-specific validation
// happens in Decode.
type envelope struct {
	Type        string          `json:"type"`
	Text        *string         `json:"text"`
	Token       *string         `json:"token"`
	Sequence    *int            `json:"sequence"`
	Payload     *string         `json:"payload"`
	Suggestions []string        `json:"suggestions"`
	Metadata    json.RawMessage `json:"metadata"`
	FullAnswer  string          `json:"fullAnswer"`
	Metrics     map[string]any  `json:"metrics"`
	Message     string          `json:"message"`
	Code        json.RawMessage `json:"code"`
}

// Decode turns one framed SSE event into a typed Event. The discriminator is
// the SSE event type, or the JSON "type" member when the SSE type is absent.
// Any failure is returned as a *ProtocolError.
func Decode(ev *sse.Event) (Event, error) {
	if ev == nil {
		return nil, &ProtocolError{Err: errors.New("nil event")}
	}

	// an event with no data line carries an empty payload
	data := ev.Data
	if strings.TrimSpace(data) == "" {
		data = "{}"
	}

	var env envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return nil, &ProtocolError{Kind: Kind(ev.Type), Err: fmt.Errorf("decoding payload: %w", err)}
	}

	kind := Kind(ev.Type)
	if kind == "" || kind == "message" {
		kind = Kind(env.Type)
	}

	switch kind {
	case KindTextToken:
		switch {
		case env.Text != nil:
			return TextToken{Text: *env.Text}, nil
		case env.Token != nil:
			return TextToken{Text: *env.Token}, nil
		}
		return nil, &ProtocolError{Kind: kind, Err: errors.New("missing text")}

	case KindAudioChunk:
		if env.Sequence == nil {
			return nil, &ProtocolError{Kind: kind, Err: errors.New("missing sequence")}
		}
		if *env.Sequence < 0 {
			return nil, &ProtocolError{Kind: kind, Err: fmt.Errorf("negative sequence %d", *env.Sequence)}
		}
		if env.Payload == nil {
			return nil, &ProtocolError{Kind: kind, Err: errors.New("missing payload")}
		}
		return AudioChunk{Sequence: *env.Sequence, Payload: *env.Payload}, nil

	case KindSuggestions:
		return Suggestions{Items: env.Suggestions}, nil

	case KindMetadata:
		values, err := decodeMetadata(data, env.Metadata)
		if err != nil {
			return nil, &ProtocolError{Kind: kind, Err: err}
		}
		return Metadata{Values: values}, nil

	case KindDone:
		return Done{FullAnswer: env.FullAnswer, Metrics: env.Metrics}, nil

	case KindError:
		return ServerError{Message: env.Message, Code: decodeCode(env.Code)}, nil

	case "":
		return nil, &ProtocolError{Err: errors.New("missing event discriminator")}
	}

	return nil, &ProtocolError{Kind: kind, Err: errors.New("unknown event kind")}
}

// decodeMetadata unwraps a "metadata" member when present, otherwise the
// whole payload minus the discriminator is the metadata.
func decodeMetadata(raw string, nested json.RawMessage) (map[string]any, error) {
	values := map[string]any{}
	if len(nested) > 0 && string(nested) != "null" {
		if err := json.Unmarshal(nested, &values); err != nil {
			return nil, fmt.Errorf("decoding metadata: %w", err)
		}
		return values, nil
	}

	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	delete(values, "type")
	return values, nil
}

// decodeCode accepts both string and numeric error codes.
func decodeCode(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
