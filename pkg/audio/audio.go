// Package audio defines the audio frame value and the helpers that operate on
// raw PCM: the jitter buffer, the Opus codec wrapper, and sample conversion.
// Frames are the atomic unit of audio transport — published by clients,
// fanned out by the room fabric, and consumed by agent pipelines.
package audio

// Default stream parameters. Clients may negotiate different values but every
// built-in pipeline stage assumes this format.
const (
	// DefaultSampleRate is the PCM sample rate in Hz.
	DefaultSampleRate = 16000

	// DefaultFrameDurationMs is the nominal duration of one frame.
	DefaultFrameDurationMs = 20

	// SynthFrameBytes is the payload size of frames produced by TTS stages:
	// raw little-endian int16 PCM chunked into 320-byte slices.
	SynthFrameBytes = 320
)

// Frame represents a single frame of audio flowing through the room fabric.
// The payload is opaque to the fan-out path; only pipeline stages interpret it.
type Frame struct {
	// Data is the audio payload. Raw little-endian int16 PCM unless the wire
	// envelope declared another codec.
	Data []byte

	// TimestampMs marks when the frame was captured, in milliseconds since an
	// epoch chosen by the sender. Only the relative ordering matters.
	TimestampMs uint64

	// DurationMs is the frame duration. Zero means [DefaultFrameDurationMs].
	DurationMs uint16
}

// Int16sToBytes converts a slice of int16 PCM samples to little-endian bytes.
func Int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// BytesToInt16s converts little-endian bytes to a slice of int16 PCM samples.
func BytesToInt16s(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}
