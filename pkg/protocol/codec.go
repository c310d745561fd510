package protocol

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// MaxEnvelopeBytes is the largest encoded envelope the codec accepts.
const MaxEnvelopeBytes = 1 << 20

// Decode error taxonomy. [ErrTooLarge] is the only decode failure that closes
// the connection; every other failure drops the frame and keeps the socket.
var (
	// ErrUnknownType marks an envelope whose type discriminator is not in the
	// recognised tag set.
	ErrUnknownType = errors.New("protocol: unknown envelope type")

	// ErrMalformed marks a frame that is not a MessagePack map in the
	// expected envelope shape.
	ErrMalformed = errors.New("protocol: malformed envelope")

	// ErrTooLarge marks a frame exceeding [MaxEnvelopeBytes].
	ErrTooLarge = errors.New("protocol: envelope exceeds size limit")
)

// Encode serialises an envelope to its MessagePack wire form.
func Encode(e *Envelope) ([]byte, error) {
	data, err := msgpack.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %q envelope: %w", e.Type, err)
	}
	return data, nil
}

// Decode parses a wire frame back into an envelope. Byte payloads survive the
// round trip as []byte; integers come back in whatever width MessagePack
// chose, which the payload accessors normalise.
func Decode(data []byte) (*Envelope, error) {
	if len(data) > MaxEnvelopeBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	var e Envelope
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if e.Type == "" {
		return nil, fmt.Errorf("%w: missing type discriminator", ErrMalformed)
	}
	if !e.Type.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
	return &e, nil
}
