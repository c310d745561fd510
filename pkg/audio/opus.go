package audio

import (
	"fmt"

	"layeh.com/gopus"
)

// opusFrameSize is the number of samples per channel in one 20 ms frame at the
// default sample rate.
const opusFrameSize = DefaultSampleRate * DefaultFrameDurationMs / 1000 // 320

// OpusDecoder wraps a gopus Opus decoder for a single sender stream.
// Each sender needs its own decoder to keep decoder state consistent across
// consecutive packets. Not safe for concurrent use.
type OpusDecoder struct {
	dec *gopus.Decoder
}

// NewOpusDecoder creates a decoder for 16 kHz mono streams.
func NewOpusDecoder() (*OpusDecoder, error) {
	dec, err := gopus.NewDecoder(DefaultSampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder: %w", err)
	}
	return &OpusDecoder{dec: dec}, nil
}

// Decode decodes an Opus packet into little-endian int16 PCM bytes.
func (d *OpusDecoder) Decode(packet []byte) ([]byte, error) {
	pcm, err := d.dec.Decode(packet, opusFrameSize, false)
	if err != nil {
		return nil, fmt.Errorf("audio: opus decode: %w", err)
	}
	return Int16sToBytes(pcm), nil
}

// OpusEncoder wraps a gopus Opus encoder for an outbound stream.
// Not safe for concurrent use.
type OpusEncoder struct {
	enc *gopus.Encoder
}

// NewOpusEncoder creates an encoder for 16 kHz mono streams.
func NewOpusEncoder() (*OpusEncoder, error) {
	enc, err := gopus.NewEncoder(DefaultSampleRate, 1, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus encoder: %w", err)
	}
	return &OpusEncoder{enc: enc}, nil
}

// Encode encodes one frame of little-endian int16 PCM bytes into an Opus
// packet. The input must contain exactly one frame of samples.
func (e *OpusEncoder) Encode(pcmBytes []byte) ([]byte, error) {
	packet, err := e.enc.Encode(BytesToInt16s(pcmBytes), opusFrameSize, len(pcmBytes))
	if err != nil {
		return nil, fmt.Errorf("audio: opus encode: %w", err)
	}
	return packet, nil
}
