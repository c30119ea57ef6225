package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/dyluth/corkboard/internal/session"
	"github.com/dyluth/corkboard/pkg/board"
)

// outboundBuffer is the per-connection frame queue size. A client that cannot
// drain this many frames is disconnected and expected to reconnect for a
// fresh snapshot, rather than silently missing events.
const outboundBuffer = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleBoardWS runs one collaboration connection: it synchronizes a session
// on the requested board, pushes a snapshot frame followed by live event
// frames, and services mutation requests from the client.
func (s *Server) handleBoardWS(writer http.ResponseWriter, request *http.Request) {
	boardID := mux.Vars(request)["board"]

	client, err := s.boardClient(boardID)
	if err != nil {
		slog.Error("failed to open board", "board", boardID, "err", err)
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(writer, request, nil)
	if err != nil {
		slog.Error("failed to upgrade", "board", boardID, "err", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.New().String()
	sess := session.NewSyncSession(client, sessionID)
	optimistic := session.NewOptimisticManager(sess, s.boardCfg.MutationTimeout)

	outbound := make(chan *Frame, outboundBuffer)
	sess.OnChange(func(event *board.ChangeEvent) {
		select {
		case outbound <- &Frame{Type: FrameEvent, Event: event}:
		default:
			// Queue full: kill the connection so the client resynchronizes
			// instead of acting on a silently incomplete stream.
			slog.Warn("disconnecting slow client", "board", boardID, "session", sessionID)
			_ = conn.Close()
		}
	})

	if err := sess.Start(request.Context()); err != nil {
		slog.Error("failed to start session", "board", boardID, "err", err)
		return
	}

	var writerWG sync.WaitGroup
	writerWG.Add(1)
	go func() {
		defer writerWG.Done()
		for frame := range outbound {
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}()

	outbound <- &Frame{Type: FrameSnapshot, SessionID: sessionID, Items: sess.Items()}

	slog.Info("session connected", "board", boardID, "session", sessionID)

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			break
		}

		result := s.handleRequest(request.Context(), sess, optimistic, &req)
		select {
		case outbound <- &Frame{Type: FrameResult, Result: result}:
		case <-request.Context().Done():
		}
	}

	// Stop before closing outbound: no notify callback runs after Stop
	// returns, so the writer drains and exits cleanly.
	sess.Stop()
	close(outbound)
	writerWG.Wait()

	slog.Info("session disconnected", "board", boardID, "session", sessionID)
}

// handleRequest dispatches one client request and converts the outcome into a
// result frame. Mutation failures are reported, never fatal to the
// connection.
func (s *Server) handleRequest(ctx context.Context, sess *session.SyncSession, optimistic *session.OptimisticManager, req *Request) *Result {
	result := &Result{RequestID: req.RequestID, Status: string(session.MutationConfirmed)}

	fail := func(status session.MutationStatus, err error) *Result {
		result.Status = string(status)
		result.Error = err.Error()
		return result
	}

	switch req.Action {
	case ActionCreate:
		if req.X == nil || req.Y == nil {
			return fail(session.MutationRejected, fmt.Errorf("create requires x and y"))
		}
		item := &board.Item{X: *req.X, Y: *req.Y}
		if req.Content != nil {
			item.Content = *req.Content
		}
		if req.Metadata != nil {
			item.Metadata = *req.Metadata
		}
		if err := sess.Client().CreateItem(ctx, item); err != nil {
			return fail(session.MutationRejected, err)
		}
		result.Item = item

	case ActionMove:
		if req.X == nil || req.Y == nil {
			return fail(session.MutationRejected, fmt.Errorf("move requires x and y"))
		}
		item, mutation, err := optimistic.MoveItem(ctx, req.ItemID, *req.X, *req.Y)
		if err != nil {
			status := session.MutationRejected
			if mutation != nil {
				status = mutation.Status
			}
			return fail(status, err)
		}
		result.Item = item

	case ActionEdit:
		patch := board.ContentPatch{Content: req.Content, Metadata: req.Metadata}
		item, mutation, err := optimistic.EditContent(ctx, req.ItemID, patch)
		if err != nil {
			status := session.MutationRejected
			if mutation != nil {
				status = mutation.Status
			}
			return fail(status, err)
		}
		result.Item = item

	case ActionDelete:
		if err := sess.Client().DeleteItem(ctx, req.ItemID); err != nil {
			return fail(session.MutationRejected, err)
		}

	case ActionLock:
		if _, err := sess.Client().AcquireLock(ctx, req.ItemID, sess.SessionID(), s.boardCfg.LockTTL); err != nil {
			return fail(session.MutationRejected, err)
		}

	case ActionUnlock:
		if err := sess.Client().ReleaseLock(ctx, req.ItemID, sess.SessionID()); err != nil {
			return fail(session.MutationRejected, err)
		}

	default:
		return fail(session.MutationRejected, fmt.Errorf("unknown action %q", req.Action))
	}

	return result
}
