// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/codenames/internal/auth"
	"github.com/jason-s-yu/codenames/internal/middleware"
	"github.com/jason-s-yu/codenames/internal/models"
	"github.com/jason-s-yu/codenames/internal/orchestrator"
)

const wsWriteTimeout = 5 * time.Second

// wsClient is one live subscription to a game's event stream.
type wsClient struct {
	conn      *websocket.Conn
	playerID  uuid.UUID
	spymaster bool
}

// Hub fans orchestrator events out to websocket subscribers, redacting the
// board per viewer. It satisfies orchestrator.EventSink; writes that fail or
// stall past the timeout drop the client rather than block gameplay.
type Hub struct {
	log *logrus.Logger

	mu    sync.RWMutex
	games map[uuid.UUID]map[*wsClient]struct{}
}

var _ orchestrator.EventSink = (*Hub)(nil)

func NewHub(log *logrus.Logger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{log: log, games: make(map[uuid.UUID]map[*wsClient]struct{})}
}

func (h *Hub) register(gameID uuid.UUID, c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.games[gameID]
	if !ok {
		clients = make(map[*wsClient]struct{})
		h.games[gameID] = clients
	}
	clients[c] = struct{}{}
}

func (h *Hub) unregister(gameID uuid.UUID, c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.games[gameID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.games, gameID)
		}
	}
}

// broadcast sends the frame produced by build to every subscriber of the
// game. build runs per client so frames can differ by viewer.
func (h *Hub) broadcast(gameID uuid.UUID, build func(c *wsClient) interface{}) {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.games[gameID]))
	for c := range h.games[gameID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		data, err := json.Marshal(build(c))
		if err != nil {
			h.log.WithError(err).Error("ws frame marshal failed")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
		err = c.conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			h.log.WithField("game_id", gameID).Debug("dropping stalled ws client")
			c.conn.Close(websocket.StatusPolicyViolation, "write timeout")
			h.unregister(gameID, c)
		}
	}
}

func (h *Hub) OnGameStateUpdate(gameID uuid.UUID, g *models.Game) {
	h.broadcast(gameID, func(c *wsClient) interface{} {
		return map[string]interface{}{
			"type":  "gameStateUpdate",
			"state": g.State.Redacted(c.spymaster || g.Status != models.StatusActive),
		}
	})
}

func (h *Hub) OnAIThinking(gameID, playerID uuid.UUID, name string) {
	h.broadcast(gameID, func(*wsClient) interface{} {
		return map[string]interface{}{"type": "aiThinking", "playerId": playerID, "playerName": name}
	})
}

func (h *Hub) OnAIMoveComplete(gameID, playerID uuid.UUID, action models.Action) {
	h.broadcast(gameID, func(*wsClient) interface{} {
		return map[string]interface{}{"type": "aiMoveComplete", "playerId": playerID, "action": action}
	})
}

func (h *Hub) OnGameEnded(gameID uuid.UUID, winner models.Team) {
	h.broadcast(gameID, func(*wsClient) interface{} {
		return map[string]interface{}{"type": "gameEnded", "winner": winner}
	})
}

func (h *Hub) OnGameError(gameID uuid.UUID, message string) {
	h.broadcast(gameID, func(*wsClient) interface{} {
		return map[string]interface{}{"type": "gameError", "message": message}
	})
}

// GameWSHandler upgrades /game/ws/{game_id} connections, authenticates the
// seat token, and subscribes the client to the game's event stream. Actions
// are submitted over HTTP; the socket is a one-way feed plus an initial
// state frame.
func GameWSHandler(logger *logrus.Logger, orch *orchestrator.Orchestrator, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID, err := uuid.Parse(pathID(r.URL.Path, "/game/ws/"))
		if err != nil {
			http.Error(w, "invalid game id (/game/ws/{game_id})", http.StatusBadRequest)
			return
		}

		token := extractToken(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		claims, err := auth.AuthenticateSeatToken(token)
		if err != nil || claims.GameID != gameID {
			http.Error(w, "invalid seat token", http.StatusForbidden)
			return
		}

		g, players, err := orch.GetGame(r.Context(), gameID)
		if err != nil {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}
		var seat *models.Player
		for _, p := range players {
			if p.ID == claims.PlayerID {
				seat = p
			}
		}
		if seat == nil {
			http.Error(w, "you are not a player in this game", http.StatusForbidden)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"game"},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for game %s: %v", gameID, err)
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		client := &wsClient{
			conn:      c,
			playerID:  seat.ID,
			spymaster: seat.Role == models.RoleSpymaster,
		}
		hub.register(gameID, client)
		defer hub.unregister(gameID, client)

		// Initial snapshot so the client does not need a separate fetch.
		initial := map[string]interface{}{
			"type":  "gameStateUpdate",
			"state": g.State.Redacted(client.spymaster || g.Status != models.StatusActive),
		}
		if data, err := json.Marshal(initial); err == nil {
			ctx, cancel := context.WithTimeout(r.Context(), wsWriteTimeout)
			c.Write(ctx, websocket.MessageText, data)
			cancel()
		}

		// Drain inbound frames until the peer goes away. Clients have
		// nothing meaningful to send here.
		var readErr error
		for {
			if _, _, readErr = c.Read(r.Context()); readErr != nil {
				break
			}
		}
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
		c.Close(websocket.StatusNormalClosure, "bye")
	}
}
