// internal/handlers/server.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/codenames/internal/middleware"
	"github.com/jason-s-yu/codenames/internal/orchestrator"
)

// Server bundles the HTTP surface: game management routes plus the
// per-game websocket endpoint.
type Server struct {
	Orch *orchestrator.Orchestrator
	Hub  *Hub
	Log  *logrus.Logger
}

func NewServer(orch *orchestrator.Orchestrator, hub *Hub, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{Orch: orch, Hub: hub, Log: log}
}

// Router wires all routes behind the logging middleware.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/game/create", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleCreateGame(w, r)
	})
	mux.HandleFunc("/game/list", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleListGames(w, r)
	})
	mux.HandleFunc("/game/state/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleGameState(w, r)
	})
	mux.HandleFunc("/game/history/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleGameHistory(w, r)
	})
	mux.HandleFunc("/game/action/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleAction(w, r)
	})
	mux.HandleFunc("/game/archive/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleArchiveGame(w, r)
	})
	mux.HandleFunc("/ai/drain", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleDrain(w, r)
	})
	if s.Hub != nil {
		mux.Handle("/game/ws/", GameWSHandler(s.Log, s.Orch, s.Hub))
	}

	return middleware.LogMiddleware(s.Log)(mux)
}

// pathID extracts the trailing path segment after the given prefix.
func pathID(path, prefix string) string {
	rest := strings.TrimPrefix(path, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
