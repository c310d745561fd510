package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/voxhall/voxhall/internal/observe"
	"github.com/voxhall/voxhall/internal/room"
	"github.com/voxhall/voxhall/pkg/protocol"
)

// writeTimeout bounds a single outbound socket write. A peer that cannot
// drain within this window fails the write; repeated failures evict it.
const writeTimeout = 5 * time.Second

// handleSocket is the room ingress: it upgrades the connection, joins a Human
// participant, relays its outbound channel onto the socket, and pumps inbound
// envelopes into the room until the client leaves or the socket dies.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")
	username := r.PathValue("username")
	if roomID == "" || username == "" {
		http.Error(w, "room_id and username are required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("websocket accept failed", "room", roomID, "err", err)
		return
	}
	// The codec enforces the envelope limit and picks the close code; the
	// socket limit is a slightly larger backstop against unbounded buffering.
	conn.SetReadLimit(protocol.MaxEnvelopeBytes + 512)

	pid := mintParticipantID(username)
	human := room.NewHuman(pid, username)
	ctx := r.Context()

	// The participant always leaves, read-loop panics included.
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("ingress handler panic",
				"room", roomID, "participant", pid, "panic", rec)
		}
		s.manager.LeaveParticipant(context.Background(), roomID, human)
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	go s.writeLoop(ctx, conn, human)

	if err := s.manager.Join(ctx, roomID, human); err != nil {
		slog.Error("join failed", "room", roomID, "participant", pid, "err", err)
		return
	}

	slog.Info("connection opened", "room", roomID, "participant", pid, "name", username)
	s.readLoop(ctx, conn, roomID, pid)
	slog.Info("connection closed", "room", roomID, "participant", pid)
}

// readLoop pumps inbound frames until the socket closes, the client sends
// leave_room, or an oversized envelope forces a close. Undecodable envelopes
// drop the frame, not the connection. Audio frames are stamped with the
// minted participant id before fan-out, so receivers always see the server's
// attribution and a client cannot speak as someone else.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, roomID, pid string) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageBinary {
			// Text frames are reserved.
			continue
		}

		env, err := protocol.Decode(data)
		if err != nil {
			if errors.Is(err, protocol.ErrTooLarge) {
				observe.Logger(ctx).Warn("closing connection on oversized envelope",
					"room", roomID, "participant", pid, "bytes", len(data))
				_ = conn.Close(websocket.StatusMessageTooBig, "envelope exceeds 1 MiB")
				return
			}
			observe.Logger(ctx).Debug("dropping undecodable envelope",
				"room", roomID, "participant", pid, "err", err)
			continue
		}

		switch env.Type {
		case protocol.TagAudioStream:
			payload, err := env.Audio()
			if err != nil {
				observe.Logger(ctx).Debug("dropping audio envelope without audio_data",
					"room", roomID, "participant", pid, "err", err)
				continue
			}
			// Re-encode once under the server's attribution; the same stamped
			// bytes then fan out to every receiver unchanged.
			if payload.ParticipantID != pid {
				env.Payload["participant_id"] = pid
				if data, err = protocol.Encode(env); err != nil {
					observe.Logger(ctx).Warn("re-stamping audio envelope failed",
						"room", roomID, "participant", pid, "err", err)
					continue
				}
			}
			s.manager.BroadcastAudio(ctx, roomID, pid, env, data)
		case protocol.TagLeaveRoom:
			return
		default:
			slog.Debug("ignoring control envelope",
				"room", roomID, "participant", pid, "type", env.Type)
		}
	}
}

// writeLoop drains the participant's outbound channel onto the socket. It
// ends when the participant is closed, the request context ends, or a write
// fails; a failed socket surfaces to the read loop as a read error.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, human *room.Human) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-human.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "session closed")
			return
		case raw := <-human.Outbound():
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageBinary, raw)
			cancel()
			if err != nil {
				_ = conn.Close(websocket.StatusAbnormalClosure, "write failed")
				return
			}
		}
	}
}

// mintParticipantID builds a process-unique participant id that keeps the
// username readable in logs.
func mintParticipantID(username string) string {
	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("server: entropy source unavailable: " + err.Error())
	}
	return username + "-" + hex.EncodeToString(b[:])
}
