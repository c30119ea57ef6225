// Package server implements the corkboard transport daemon: an HTTP server
// exposing board snapshots over REST and live collaboration over websockets.
// Each websocket connection gets its own synchronized session, so the daemon
// can serve many boards and many clients from one process.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/dyluth/corkboard/internal/config"
	"github.com/dyluth/corkboard/pkg/board"
)

// Server routes board traffic to per-board store clients.
type Server struct {
	redisOpts *redis.Options
	boardCfg  config.BoardConfig

	mu      sync.Mutex
	clients map[string]*board.Client
}

// New creates a server. Store clients are created lazily, one per board, on
// first request for that board.
func New(redisOpts *redis.Options, boardCfg config.BoardConfig) *Server {
	return &Server{
		redisOpts: redisOpts,
		boardCfg:  boardCfg,
		clients:   make(map[string]*board.Client),
	}
}

// Router builds the HTTP routing table:
//
//	GET /healthz                 liveness and Redis reachability
//	GET /boards/{board}/items    JSON snapshot of a board
//	GET /boards/{board}/ws       websocket collaboration endpoint
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			slog.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})

	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(s.handleHealthz)
	r.Methods(http.MethodGet).Path("/boards/{board}/items").HandlerFunc(s.handleListItems)
	r.Methods(http.MethodGet).Path("/boards/{board}/ws").HandlerFunc(s.handleBoardWS)
	return r
}

// Close releases every board client the server has opened.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for boardID, client := range s.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.clients, boardID)
	}
	return firstErr
}

// RunLockSweeper periodically releases expired edit locks on every board the
// server has opened, so an abandoned drag never wedges an item. Blocks until
// the context is cancelled.
func (s *Server) RunLockSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, client := range s.openClients() {
				swept, err := client.SweepExpiredLocks(ctx)
				if err != nil {
					slog.Error("lock sweep failed", "board", client.BoardID(), "err", err)
				} else if swept > 0 {
					slog.Info("swept expired locks", "board", client.BoardID(), "count", swept)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) openClients() []*board.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := make([]*board.Client, 0, len(s.clients))
	for _, client := range s.clients {
		clients = append(clients, client)
	}
	return clients
}

// boardClient returns the cached store client for a board, creating it on
// first use.
func (s *Server) boardClient(boardID string) (*board.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client, ok := s.clients[boardID]; ok {
		return client, nil
	}

	client, err := board.NewClient(s.redisOpts, boardID)
	if err != nil {
		return nil, err
	}
	s.clients[boardID] = client
	return client, nil
}

func (s *Server) handleHealthz(writer http.ResponseWriter, request *http.Request) {
	client, err := s.boardClient("system")
	if err == nil {
		err = client.Ping(request.Context())
	}
	if err != nil {
		slog.Error("health check failed", "err", err)
		writer.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	writer.WriteHeader(http.StatusOK)
	_, _ = writer.Write([]byte("ok\n"))
}

func (s *Server) handleListItems(writer http.ResponseWriter, request *http.Request) {
	boardID := mux.Vars(request)["board"]

	client, err := s.boardClient(boardID)
	if err != nil {
		slog.Error("failed to open board", "board", boardID, "err", err)
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}

	items, err := client.Snapshot(request.Context())
	if err != nil {
		slog.Error("failed to snapshot board", "board", boardID, "err", err)
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []*board.Item{}
	}

	writer.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(writer).Encode(map[string]any{
		"board": boardID,
		"items": items,
	}); err != nil {
		slog.Error("failed to write snapshot response", "board", boardID, "err", err)
	}
}
