// Package protocol defines the wire envelope exchanged over room WebSockets
// and its MessagePack codec.
//
// Every message, in either direction, is a single binary frame holding one
// [Envelope]: a type discriminator plus a free-form payload map. MessagePack
// keeps byte payloads intact (audio_data is never re-interpreted as text) and
// is self-describing, so browser and script clients interoperate without a
// schema exchange.
package protocol

import (
	"fmt"

	"github.com/voxhall/voxhall/pkg/audio"
)

// Tag is the envelope type discriminator.
type Tag string

// The full tag set. The server emits audio_stream, room_info, system, and
// error; it accepts audio_stream and leave_room and logs the rest.
const (
	TagAuth        Tag = "auth"
	TagJoinRoom    Tag = "join_room"
	TagLeaveRoom   Tag = "leave_room"
	TagRoomInfo    Tag = "room_info"
	TagError       Tag = "error"
	TagSystem      Tag = "system"
	TagAudioStream Tag = "audio_stream"
	TagAIRequest   Tag = "ai_request"
	TagAIResponse  Tag = "ai_response"
)

// IsValid reports whether t is a recognised envelope tag.
func (t Tag) IsValid() bool {
	switch t {
	case TagAuth, TagJoinRoom, TagLeaveRoom, TagRoomInfo, TagError,
		TagSystem, TagAudioStream, TagAIRequest, TagAIResponse:
		return true
	}
	return false
}

// Envelope is the typed wire message wrapping all room traffic.
type Envelope struct {
	Type    Tag            `msgpack:"type"`
	Payload map[string]any `msgpack:"payload"`
}

// AudioPayload is the decoded payload of a [TagAudioStream] envelope.
type AudioPayload struct {
	// ParticipantID identifies the sender the frame is attributed to.
	ParticipantID string

	// AudioData is the opaque frame payload.
	AudioData []byte

	// TimestampMs is the sender-side capture timestamp in milliseconds.
	TimestampMs uint64

	// Codec names the payload encoding: "" or "pcm" for raw little-endian
	// int16 PCM, "opus" for Opus packets.
	Codec string
}

// Frame converts the payload into an [audio.Frame].
func (p AudioPayload) Frame() audio.Frame {
	return audio.Frame{
		Data:        p.AudioData,
		TimestampMs: p.TimestampMs,
		DurationMs:  audio.DefaultFrameDurationMs,
	}
}

// NewAudio builds an audio_stream envelope attributed to participantID.
// codec may be empty for raw PCM.
func NewAudio(participantID string, data []byte, timestampMs uint64, codec string) *Envelope {
	payload := map[string]any{
		"participant_id": participantID,
		"audio_data":     data,
		"timestamp":      timestampMs,
	}
	if codec != "" {
		payload["codec"] = codec
	}
	return &Envelope{Type: TagAudioStream, Payload: payload}
}

// NewSystem builds a system notification envelope.
func NewSystem(message string) *Envelope {
	return &Envelope{Type: TagSystem, Payload: map[string]any{"message": message}}
}

// NewError builds an error envelope.
func NewError(message string) *Envelope {
	return &Envelope{Type: TagError, Payload: map[string]any{"message": message}}
}

// ParticipantInfo is one room member entry in a room_info envelope.
type ParticipantInfo struct {
	ID      string `msgpack:"id"`
	Name    string `msgpack:"name"`
	IsAgent bool   `msgpack:"is_agent"`
}

// NewRoomInfo builds a room_info envelope listing the current members of a
// room. Sent to a participant right after it joins. version is the room's
// membership generation; clients compare versions to detect a stale listing.
func NewRoomInfo(roomID string, version uint64, members []ParticipantInfo) *Envelope {
	list := make([]any, 0, len(members))
	for _, m := range members {
		list = append(list, map[string]any{
			"id":       m.ID,
			"name":     m.Name,
			"is_agent": m.IsAgent,
		})
	}
	return &Envelope{Type: TagRoomInfo, Payload: map[string]any{
		"room_id":      roomID,
		"version":      version,
		"participants": list,
	}}
}

// Audio extracts the audio payload from an audio_stream envelope. MessagePack
// decodes integers into the narrowest type that fits, so the accessor coerces
// rather than type-asserts.
func (e *Envelope) Audio() (AudioPayload, error) {
	if e.Type != TagAudioStream {
		return AudioPayload{}, fmt.Errorf("protocol: envelope type %q is not audio_stream", e.Type)
	}
	p := AudioPayload{
		ParticipantID: payloadString(e.Payload, "participant_id"),
		AudioData:     payloadBytes(e.Payload, "audio_data"),
		TimestampMs:   payloadUint64(e.Payload, "timestamp"),
		Codec:         payloadString(e.Payload, "codec"),
	}
	if p.AudioData == nil {
		return AudioPayload{}, fmt.Errorf("protocol: audio_stream payload has no audio_data")
	}
	return p, nil
}

// Message extracts the "message" field of a system or error envelope.
func (e *Envelope) Message() string {
	return payloadString(e.Payload, "message")
}

// Version extracts the membership generation of a room_info envelope. Zero
// when the field is absent.
func (e *Envelope) Version() uint64 {
	return payloadUint64(e.Payload, "version")
}

// ── payload coercion helpers ──────────────────────────────────────────────────

func payloadString(p map[string]any, key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

func payloadBytes(p map[string]any, key string) []byte {
	switch v := p[key].(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	}
	return nil
}

func payloadUint64(p map[string]any, key string) uint64 {
	switch v := p[key].(type) {
	case uint64:
		return v
	case int64:
		if v < 0 {
			return 0
		}
		return uint64(v)
	case int:
		if v < 0 {
			return 0
		}
		return uint64(v)
	case uint:
		return uint64(v)
	case int8:
		return uint64(max(v, 0))
	case uint8:
		return uint64(v)
	case int16:
		return uint64(max(v, 0))
	case uint16:
		return uint64(v)
	case int32:
		return uint64(max(v, 0))
	case uint32:
		return uint64(v)
	case float64:
		if v < 0 {
			return 0
		}
		return uint64(v)
	}
	return 0
}
