package room

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/voxhall/voxhall/internal/observe"
	"github.com/voxhall/voxhall/pkg/protocol"
)

// AutoAgentPrefix marks rooms that attach an agent when the first human
// joins. This prefix rule is the only automatic attachment mechanism; all
// explicit attachment goes through [Manager.AddAgent].
const AutoAgentPrefix = "ai-"

// deliveryFailureLimit is how many consecutive delivery failures a
// participant may accumulate before it is evicted.
const deliveryFailureLimit = 3

// ErrNoLauncher is returned by AddAgent when no [AgentLauncher] is wired.
var ErrNoLauncher = errors.New("room: no agent launcher configured")

// Recorder persists raw audio per (room, sender) stream. Implementations own
// their locks; the manager holds none while calling them, and treats every
// error as best-effort.
type Recorder interface {
	LogAudio(roomID, senderID string, pcm []byte) error
	CloseSession(roomID, senderID string) error
}

// AgentLauncher starts the processing loop behind a [Virtual] participant.
// The returned stop function cancels the loop; it must be idempotent and must
// not block on the loop's completion.
type AgentLauncher interface {
	Launch(ctx context.Context, roomID, agentName string, vp *Virtual) (stop func(), err error)
}

// agentTask is the handle of one live agent loop.
type agentTask struct {
	roomID string
	stop   func()
}

// Manager is the registry of rooms. It owns join/leave, frame fan-out, and
// the lifecycle of embedded agents. The manager lock covers only the room map
// and the agent task table; it is never held across delivery or I/O.
type Manager struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	tasks    map[string]*agentTask
	failures map[string]int

	baseCtx    context.Context
	cancel     context.CancelFunc
	recorder   Recorder
	launcher   AgentLauncher
	metrics    *observe.Metrics
	queueDepth int
}

// ManagerOption configures a [Manager].
type ManagerOption func(*Manager)

// WithRecorder wires the audio recorder called on every broadcast frame.
func WithRecorder(r Recorder) ManagerOption {
	return func(m *Manager) { m.recorder = r }
}

// WithMetrics overrides the metrics instance; tests use this to avoid
// polluting the global meter provider.
func WithMetrics(met *observe.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = met }
}

// WithAgentQueueDepth overrides [DefaultAgentQueueDepth] for new agents.
func WithAgentQueueDepth(depth int) ManagerOption {
	return func(m *Manager) { m.queueDepth = depth }
}

// NewManager creates a room manager. ctx bounds the lifetime of every agent
// loop the manager spawns; [Manager.Shutdown] cancels it.
func NewManager(ctx context.Context, opts ...ManagerOption) *Manager {
	baseCtx, cancel := context.WithCancel(ctx)
	m := &Manager{
		rooms:      make(map[string]*Room),
		tasks:      make(map[string]*agentTask),
		failures:   make(map[string]int),
		baseCtx:    baseCtx,
		cancel:     cancel,
		queueDepth: DefaultAgentQueueDepth,
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// SetLauncher wires the agent launcher. Called once during startup; the
// launcher itself needs the manager for broadcasting, hence the two-step
// construction.
func (m *Manager) SetLauncher(l AgentLauncher) { m.launcher = l }

// room returns the named room or nil.
func (m *Manager) room(roomID string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms[roomID]
}

// RoomCount returns the number of live rooms.
func (m *Manager) RoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// ─── Join / Leave ─────────────────────────────────────────────────────────────

// Join adds p to roomID, creating the room on first join. Other members are
// notified with a system envelope and p receives a room_info envelope listing
// the membership. A duplicate participant id replaces the prior entry, which
// is closed first.
//
// When the first human joins a room with the [AutoAgentPrefix], exactly one
// agent is attached: the mock conversation agent when the room id contains
// "mock", the echo agent otherwise.
func (m *Manager) Join(ctx context.Context, roomID string, p Participant) error {
	m.mu.Lock()
	rm, ok := m.rooms[roomID]
	if !ok {
		rm = NewRoom(roomID)
		m.rooms[roomID] = rm
		m.metrics.ActiveRooms.Add(ctx, 1)
	}
	m.mu.Unlock()

	// Membership change and the auto-agent decision happen atomically under
	// the room lock; the agent itself is spawned after release.
	gen, replaced, humans, agents := rm.addWithCounts(p)

	spawnAgent := strings.HasPrefix(roomID, AutoAgentPrefix) &&
		!p.IsAgent() && humans == 1 && agents == 0

	if replaced != nil {
		slog.Warn("duplicate join replaces prior participant",
			"room", roomID, "participant", p.ID())
		m.dropAgentTask(replaced.ID())
		_ = replaced.Close()
	} else {
		m.metrics.ActiveParticipants.Add(ctx, 1)
	}

	slog.Info("participant joined",
		"room", roomID, "participant", p.ID(), "name", p.Name(), "generation", gen)

	m.BroadcastControl(ctx, roomID, protocol.NewSystem(p.Name()+" has joined"), p.ID())

	if err := p.DeliverControl(roomInfo(rm)); err != nil {
		slog.Warn("room info delivery failed",
			"room", roomID, "participant", p.ID(), "err", err)
	}

	if spawnAgent {
		agentName := "echo"
		if strings.Contains(roomID, "mock") {
			agentName = "mock-conversation"
		}
		if _, err := m.AddAgent(ctx, roomID, agentName); err != nil {
			slog.Error("auto agent attach failed",
				"room", roomID, "agent", agentName, "err", err)
		}
	}
	return nil
}

// Leave removes the participant from the room, closing it and cancelling its
// agent task if it has one. Remaining humans are notified; when the last
// human leaves, every remaining agent is cancelled and the room is destroyed.
// Leaving twice, or leaving an unknown room, is a no-op.
func (m *Manager) Leave(ctx context.Context, roomID, participantID string) {
	m.leave(ctx, roomID, participantID, nil)
}

// LeaveParticipant is Leave restricted to the given instance: it no-ops when
// the room's entry for the id is a different participant. Connection handlers
// use it so that a replaced connection's deferred cleanup cannot remove its
// successor.
func (m *Manager) LeaveParticipant(ctx context.Context, roomID string, p Participant) {
	m.leave(ctx, roomID, p.ID(), p)
}

func (m *Manager) leave(ctx context.Context, roomID, participantID string, expect Participant) {
	rm := m.room(roomID)
	if rm == nil {
		return
	}
	p := rm.removeMatching(participantID, expect)
	if p == nil {
		return
	}

	m.dropAgentTask(participantID)
	m.clearFailures(participantID)
	_ = p.Close()
	m.metrics.ActiveParticipants.Add(ctx, -1)

	if m.recorder != nil {
		if err := m.recorder.CloseSession(roomID, participantID); err != nil {
			slog.Warn("recorder close failed",
				"room", roomID, "participant", participantID, "err", err)
		}
	}

	slog.Info("participant left", "room", roomID, "participant", participantID)

	if rm.EmptyOfHumans() {
		m.destroyRoom(ctx, roomID, rm)
		return
	}
	m.BroadcastControl(ctx, roomID, protocol.NewSystem(p.Name()+" has left"), participantID)
}

// destroyRoom cancels every remaining agent and removes the room. The final
// leave is not announced to the agents; they are being torn down anyway.
func (m *Manager) destroyRoom(ctx context.Context, roomID string, rm *Room) {
	m.mu.Lock()
	delete(m.rooms, roomID)
	m.mu.Unlock()

	for _, p := range rm.Snapshot() {
		rm.Remove(p.ID())
		m.dropAgentTask(p.ID())
		m.clearFailures(p.ID())
		_ = p.Close()
		m.metrics.ActiveParticipants.Add(ctx, -1)
		if p.IsAgent() {
			m.metrics.ActiveAgents.Add(ctx, -1)
		}
	}
	m.metrics.ActiveRooms.Add(ctx, -1)
	slog.Info("room destroyed", "room", roomID)
}

// ─── Broadcast ────────────────────────────────────────────────────────────────

// BroadcastAudio fans an encoded audio envelope out to every participant in
// the room except the sender. raw is the wire form handed to each receiver
// unchanged; env is the decoded envelope the caller already holds, used only
// for the recorder. Per-recipient failures are counted and never interrupt
// delivery to the rest; a participant that fails three consecutive times is
// evicted after the fan-out completes.
func (m *Manager) BroadcastAudio(ctx context.Context, roomID, senderID string, env *protocol.Envelope, raw []byte) {
	rm := m.room(roomID)
	if rm == nil {
		// Frame for a destroyed room: a no-op, not an error.
		return
	}
	start := time.Now()

	var evict []string
	for _, p := range rm.Snapshot() {
		if p.ID() == senderID {
			continue
		}
		if err := p.DeliverAudio(raw); err != nil {
			observe.Logger(ctx).Warn("audio delivery failed",
				"room", roomID, "participant", p.ID(), "sender", senderID, "err", err)
			m.metrics.RecordDeliveryFailure(ctx, roomID)
			if m.noteFailure(p.ID()) >= deliveryFailureLimit {
				evict = append(evict, p.ID())
			}
			continue
		}
		m.clearFailures(p.ID())
		m.metrics.FramesForwarded.Add(ctx, 1)
	}
	m.metrics.FanoutDuration.Record(ctx, time.Since(start).Seconds())

	for _, id := range evict {
		observe.Logger(ctx).Warn("evicting participant after repeated delivery failures",
			"room", roomID, "participant", id)
		m.Leave(ctx, roomID, id)
	}

	if m.recorder != nil && env != nil {
		if payload, err := env.Audio(); err == nil {
			if err := m.recorder.LogAudio(roomID, senderID, payload.AudioData); err != nil {
				slog.Warn("recorder write failed",
					"room", roomID, "participant", senderID, "err", err)
			}
		}
	}
}

// BroadcastControl fans a control envelope out to every participant except
// excludeID (empty means everyone). Same failure discipline as audio.
func (m *Manager) BroadcastControl(ctx context.Context, roomID string, env *protocol.Envelope, excludeID string) {
	rm := m.room(roomID)
	if rm == nil {
		return
	}
	var evict []string
	for _, p := range rm.Snapshot() {
		if p.ID() == excludeID {
			continue
		}
		if err := p.DeliverControl(env); err != nil {
			observe.Logger(ctx).Warn("control delivery failed",
				"room", roomID, "participant", p.ID(), "type", env.Type, "err", err)
			m.metrics.RecordDeliveryFailure(ctx, roomID)
			if m.noteFailure(p.ID()) >= deliveryFailureLimit {
				evict = append(evict, p.ID())
			}
			continue
		}
		m.clearFailures(p.ID())
	}
	for _, id := range evict {
		m.Leave(ctx, roomID, id)
	}
}

// ─── Agents ───────────────────────────────────────────────────────────────────

// AddAgent attaches the named agent to an existing room: it mints an
// agent-<random6> participant id, joins a [Virtual] participant bound to a
// bounded input queue, and launches the agent loop. A launch failure rolls
// the partial join back.
func (m *Manager) AddAgent(ctx context.Context, roomID, agentName string) (string, error) {
	if m.launcher == nil {
		return "", ErrNoLauncher
	}
	rm := m.room(roomID)
	if rm == nil {
		return "", fmt.Errorf("room: add agent: room %q does not exist", roomID)
	}

	id := "agent-" + randomSuffix()
	vp := NewVirtual(id, "AI-"+agentName, m.queueDepth)
	vp.SetDropHook(func() { m.metrics.RecordFrameDrop(m.baseCtx, "queue_full") })
	rm.Add(vp)

	stop, err := m.launcher.Launch(m.baseCtx, roomID, agentName, vp)
	if err != nil {
		rm.Remove(id)
		_ = vp.Close()
		return "", fmt.Errorf("room: launch agent %q in %q: %w", agentName, roomID, err)
	}

	m.mu.Lock()
	if rm.Get(id) != nil {
		m.tasks[id] = &agentTask{roomID: roomID, stop: stop}
		stop = nil
	}
	m.mu.Unlock()
	if stop != nil {
		// The agent already left between launch and registration.
		stop()
		return id, nil
	}

	m.metrics.ActiveParticipants.Add(ctx, 1)
	m.metrics.ActiveAgents.Add(ctx, 1)
	slog.Info("agent attached", "room", roomID, "agent", agentName, "participant", id)

	m.BroadcastControl(ctx, roomID, protocol.NewSystem(vp.Name()+" has joined"), id)
	return id, nil
}

// dropAgentTask cancels and forgets the agent task for participantID, if any.
func (m *Manager) dropAgentTask(participantID string) {
	m.mu.Lock()
	task := m.tasks[participantID]
	delete(m.tasks, participantID)
	m.mu.Unlock()
	if task != nil {
		task.stop()
	}
}

// Shutdown cancels every agent loop, closes every participant, and clears the
// room map.
func (m *Manager) Shutdown(ctx context.Context) {
	m.cancel()

	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, rm := range m.rooms {
		rooms = append(rooms, rm)
	}
	m.rooms = make(map[string]*Room)
	tasks := m.tasks
	m.tasks = make(map[string]*agentTask)
	m.mu.Unlock()

	for _, task := range tasks {
		task.stop()
	}
	for _, rm := range rooms {
		for _, p := range rm.Snapshot() {
			rm.Remove(p.ID())
			_ = p.Close()
		}
	}
	slog.Info("room manager stopped", "rooms_closed", len(rooms))
}

// ─── helpers ──────────────────────────────────────────────────────────────────

// noteFailure increments and returns the consecutive failure count.
func (m *Manager) noteFailure(participantID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[participantID]++
	return m.failures[participantID]
}

func (m *Manager) clearFailures(participantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, participantID)
}

// roomInfo builds the membership listing sent to a joining participant,
// versioned with the room generation it was taken at.
func roomInfo(rm *Room) *protocol.Envelope {
	members, gen := rm.SnapshotWithGeneration()
	infos := make([]protocol.ParticipantInfo, 0, len(members))
	for _, p := range members {
		infos = append(infos, protocol.ParticipantInfo{
			ID:      p.ID(),
			Name:    p.Name(),
			IsAgent: p.IsAgent(),
		})
	}
	return protocol.NewRoomInfo(rm.ID(), gen, infos)
}

// randomSuffix returns six hex characters from a CSPRNG.
func randomSuffix() string {
	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand only fails when the platform entropy source is broken.
		panic("room: entropy source unavailable: " + err.Error())
	}
	return hex.EncodeToString(b[:])
}
