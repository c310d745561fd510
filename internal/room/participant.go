// Package room implements the room fabric: participants, per-room membership,
// and the [Manager] that owns join/leave, frame fan-out, and agent lifecycle.
package room

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/voxhall/voxhall/pkg/protocol"
)

// Delivery errors. [ErrSendBufferFull] counts toward a human participant's
// eviction threshold; a full agent queue is a silent drop by design.
var (
	ErrSendBufferFull    = errors.New("room: participant send buffer is full")
	ErrParticipantClosed = errors.New("room: participant is closed")
)

// Participant is the polymorphic room endpoint. Two shapes exist: [Human],
// backed by a WebSocket, and [Virtual], backed by a bounded agent queue.
// Both delivery methods must be fast and non-blocking; the fan-out loop calls
// them sequentially per room so that each receiver observes frames from any
// one sender in send order.
type Participant interface {
	// ID is the process-unique participant id minted at join time.
	ID() string

	// Name is the display name announced to the room.
	Name() string

	// DeliverAudio hands an already-encoded audio_stream envelope to the
	// participant. The fan-out path never decodes it; humans relay the bytes
	// to their socket, agents enqueue them for their pipeline.
	DeliverAudio(raw []byte) error

	// DeliverControl hands a control envelope (system, room_info, error) to
	// the participant. Control and audio share the participant's outbound
	// channel, so announcements cannot overtake earlier frames.
	DeliverControl(env *protocol.Envelope) error

	// IsAgent reports whether this participant is a synthetic agent.
	IsAgent() bool

	// Close releases the participant's resources. Idempotent.
	Close() error
}

// ─── Human ────────────────────────────────────────────────────────────────────

// humanBufferDepth is the outbound channel capacity per human participant.
// The channel absorbs fan-out bursts; sustained overflow surfaces as
// [ErrSendBufferFull] and eventually eviction.
const humanBufferDepth = 256

// Human is a socket-backed participant. Deliveries enqueue encoded envelopes
// onto a bounded outbound channel; a single writer goroutine owned by the
// ingress handler drains [Human.Outbound] onto the WebSocket, so socket I/O
// never runs under a room lock.
type Human struct {
	id   string
	name string

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewHuman creates a human participant with the given id and display name.
func NewHuman(id, name string) *Human {
	return &Human{
		id:   id,
		name: name,
		out:  make(chan []byte, humanBufferDepth),
		done: make(chan struct{}),
	}
}

func (h *Human) ID() string    { return h.id }
func (h *Human) Name() string  { return h.name }
func (h *Human) IsAgent() bool { return false }

// Outbound returns the channel of encoded envelopes to write to the socket.
// It is never closed; the writer selects on it together with [Human.Done].
func (h *Human) Outbound() <-chan []byte { return h.out }

// Done is closed when the participant is closed.
func (h *Human) Done() <-chan struct{} { return h.done }

// DeliverAudio enqueues an encoded audio envelope for the socket writer.
func (h *Human) DeliverAudio(raw []byte) error {
	return h.enqueue(raw)
}

// DeliverControl encodes env and enqueues it behind any pending audio.
func (h *Human) DeliverControl(env *protocol.Envelope) error {
	raw, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	return h.enqueue(raw)
}

func (h *Human) enqueue(raw []byte) error {
	select {
	case <-h.done:
		return ErrParticipantClosed
	default:
	}
	select {
	case h.out <- raw:
		return nil
	case <-h.done:
		return ErrParticipantClosed
	default:
		return ErrSendBufferFull
	}
}

// Close marks the participant closed. The ingress handler observes
// [Human.Done] and closes the socket itself.
func (h *Human) Close() error {
	h.closeOnce.Do(func() { close(h.done) })
	return nil
}

// ─── Virtual ──────────────────────────────────────────────────────────────────

// DefaultAgentQueueDepth is the bounded input queue size per agent.
const DefaultAgentQueueDepth = 128

// Virtual is the in-room handle of an agent. Deliveries enqueue the encoded
// envelopes onto a bounded queue that the agent's source loop drains and
// re-decodes. When the queue is full the frame is dropped and counted; agent
// overload must never stall the fan-out path.
type Virtual struct {
	id   string
	name string

	// mu orders deliveries against Close so the queue is never written to
	// after it has been closed.
	mu      sync.RWMutex
	closed  bool
	queue   chan []byte
	dropped atomic.Uint64

	// onDrop, when set, runs once per dropped delivery. Set before the
	// participant is shared with the room; not synchronised afterwards.
	onDrop func()
}

// NewVirtual creates an agent participant with a queue of the given depth.
// A non-positive depth falls back to [DefaultAgentQueueDepth].
func NewVirtual(id, name string, depth int) *Virtual {
	if depth <= 0 {
		depth = DefaultAgentQueueDepth
	}
	return &Virtual{
		id:    id,
		name:  name,
		queue: make(chan []byte, depth),
	}
}

func (v *Virtual) ID() string    { return v.id }
func (v *Virtual) Name() string  { return v.name }
func (v *Virtual) IsAgent() bool { return true }

// Queue returns the agent's input queue. The channel is closed by
// [Virtual.Close]; the agent source loop treats that as end of input.
func (v *Virtual) Queue() <-chan []byte { return v.queue }

// Dropped returns how many deliveries were discarded because the queue was
// full.
func (v *Virtual) Dropped() uint64 { return v.dropped.Load() }

// SetDropHook registers fn to run on every dropped delivery. The manager uses
// it to publish a drop metric. Must be called before the participant joins a
// room.
func (v *Virtual) SetDropHook(fn func()) { v.onDrop = fn }

// DeliverAudio enqueues an encoded envelope, dropping it when the queue is
// full. A drop is not a delivery failure; it returns nil.
func (v *Virtual) DeliverAudio(raw []byte) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return ErrParticipantClosed
	}
	select {
	case v.queue <- raw:
		return nil
	default:
		v.dropped.Add(1)
		if v.onDrop != nil {
			v.onDrop()
		}
		return nil
	}
}

// DeliverControl enqueues the encoded control envelope on the same queue as
// audio; the agent source loop discards non-audio envelopes after decoding.
func (v *Virtual) DeliverControl(env *protocol.Envelope) error {
	raw, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	return v.DeliverAudio(raw)
}

// Close closes the queue, ending the agent's input stream. Idempotent.
func (v *Virtual) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.closed {
		v.closed = true
		close(v.queue)
	}
	return nil
}

// Compile-time interface checks.
var (
	_ Participant = (*Human)(nil)
	_ Participant = (*Virtual)(nil)
)
