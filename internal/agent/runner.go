package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxhall/voxhall/internal/room"
	"github.com/voxhall/voxhall/pkg/audio"
	"github.com/voxhall/voxhall/pkg/protocol"
)

// DefaultWatchdogTimeout is how long an agent may hold received input
// without yielding any output before it is torn down. An agent with no
// pending input is never considered stalled, however long the room stays
// quiet.
const DefaultWatchdogTimeout = 30 * time.Second

// jitterHoldFrames is how many frames the source loop buffers before
// releasing, giving late frames one frame-time to land in order.
const jitterHoldFrames = 2

// Runner adapts agents onto room queues. It implements [room.AgentLauncher]:
// for each launched agent it runs a source loop (queue → envelope → frame), a
// sink loop (frame → envelope → broadcast), and a stall watchdog on one
// errgroup. Whatever ends the group, the agent leaves its room.
type Runner struct {
	manager  *room.Manager
	registry *Registry
	watchdog time.Duration
}

// RunnerOption configures a [Runner].
type RunnerOption func(*Runner)

// WithWatchdogTimeout overrides [DefaultWatchdogTimeout]. A non-positive
// value disables the watchdog.
func WithWatchdogTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.watchdog = d }
}

// NewRunner creates a runner that broadcasts through m and builds agents from
// reg.
func NewRunner(m *room.Manager, reg *Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		manager:  m,
		registry: reg,
		watchdog: DefaultWatchdogTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Launch builds the named agent and starts its loops. The returned stop
// function cancels them; it is idempotent and returns without waiting.
func (r *Runner) Launch(ctx context.Context, roomID, agentName string, vp *room.Virtual) (func(), error) {
	ag, err := r.registry.Build(agentName)
	if err != nil {
		return nil, fmt.Errorf("agent: build %q: %w", agentName, err)
	}

	runCtx, cancel := context.WithCancel(ctx)

	frames := make(chan audio.Frame, 32)
	out, err := ag.ProcessAudioStream(runCtx, frames)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("agent: start %q: %w", agentName, err)
	}

	// awaiting holds the arrival time of the oldest input frame still
	// unanswered by any output, zero when nothing is pending. Input arms it
	// once, output clears it; the watchdog only measures armed time.
	var awaiting atomic.Int64
	noteInput := func() { awaiting.CompareAndSwap(0, time.Now().UnixNano()) }
	noteOutput := func() { awaiting.Store(0) }

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return r.sourceLoop(gctx, vp, frames, noteInput) })
	g.Go(func() error { return r.sinkLoop(gctx, roomID, vp.ID(), out, noteOutput) })
	if r.watchdog > 0 {
		g.Go(func() error { return r.watchdogLoop(gctx, &awaiting) })
	}

	go func() {
		err := g.Wait()
		cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("agent loop ended",
				"room", roomID, "agent", agentName, "participant", vp.ID(), "err", err)
		}
		if dropped := vp.Dropped(); dropped > 0 {
			slog.Info("agent dropped frames on a full queue",
				"room", roomID, "participant", vp.ID(), "dropped", dropped)
		}
		r.manager.Leave(context.Background(), roomID, vp.ID())
	}()

	return cancel, nil
}

// sourceLoop drains the agent's envelope queue into decoded frames. Non-audio
// envelopes and undecodable frames are discarded. Frames pass through a small
// jitter buffer so slightly late frames still reach the pipeline in timestamp
// order; Opus payloads are decoded per sender before buffering.
func (r *Runner) sourceLoop(ctx context.Context, vp *room.Virtual, frames chan<- audio.Frame, noteInput func()) error {
	defer close(frames)

	jb := audio.NewJitterBuffer(
		jitterHoldFrames*audio.DefaultFrameDurationMs, audio.DefaultFrameDurationMs)
	decoders := make(map[string]*audio.OpusDecoder)

	emit := func(f audio.Frame) bool {
		select {
		case frames <- f:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-vp.Queue():
			if !ok {
				// Input stream over: flush whatever the jitter buffer holds.
				for {
					f, ok := jb.Pop()
					if !ok {
						return nil
					}
					if !emit(f) {
						return nil
					}
				}
			}
			env, err := protocol.Decode(raw)
			if err != nil {
				slog.Debug("agent discarding undecodable envelope",
					"participant", vp.ID(), "err", err)
				continue
			}
			if env.Type != protocol.TagAudioStream {
				continue
			}
			payload, err := env.Audio()
			if err != nil {
				continue
			}

			f := payload.Frame()
			if payload.Codec == "opus" {
				dec := decoders[payload.ParticipantID]
				if dec == nil {
					if dec, err = audio.NewOpusDecoder(); err != nil {
						slog.Warn("opus decoder init failed",
							"participant", vp.ID(), "err", err)
						continue
					}
					decoders[payload.ParticipantID] = dec
				}
				pcm, err := dec.Decode(payload.AudioData)
				if err != nil {
					slog.Warn("opus decode failed",
						"sender", payload.ParticipantID, "err", err)
					continue
				}
				f.Data = pcm
			}

			noteInput()
			jb.Push(f)
			// Hold a short reordering window while more envelopes are
			// pending; flush completely once the queue goes idle so a burst's
			// tail is never stranded.
			for jb.Len() > 0 && (len(vp.Queue()) == 0 || jb.Len() > jitterHoldFrames) {
				f, ok := jb.Pop()
				if !ok {
					break
				}
				if !emit(f) {
					return nil
				}
			}
		}
	}
}

// sinkLoop encodes agent output frames under the agent's id and broadcasts
// them. The loop ends when the agent closes its output.
func (r *Runner) sinkLoop(ctx context.Context, roomID, agentID string, out <-chan audio.Frame, noteOutput func()) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-out:
			if !ok {
				return nil
			}
			noteOutput()
			env := protocol.NewAudio(agentID, f.Data, f.TimestampMs, "")
			raw, err := protocol.Encode(env)
			if err != nil {
				return fmt.Errorf("agent: encode output frame: %w", err)
			}
			r.manager.BroadcastAudio(ctx, roomID, agentID, env, raw)
		}
	}
}

// watchdogLoop tears the agent down when input has been pending for the
// configured timeout without the agent yielding any output. It never fires
// while awaiting is zero, so an agent in a silent room stays attached.
func (r *Runner) watchdogLoop(ctx context.Context, awaiting *atomic.Int64) error {
	interval := r.watchdog / 4
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			since := awaiting.Load()
			if since == 0 {
				continue
			}
			if pending := time.Since(time.Unix(0, since)); pending >= r.watchdog {
				return fmt.Errorf("agent: no output within %s of input",
					pending.Round(time.Millisecond))
			}
		}
	}
}

// Compile-time interface check.
var _ room.AgentLauncher = (*Runner)(nil)
