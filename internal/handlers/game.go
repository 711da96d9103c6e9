// internal/handlers/game.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/jason-s-yu/codenames/internal/auth"
	"github.com/jason-s-yu/codenames/internal/game"
	"github.com/jason-s-yu/codenames/internal/models"
	"github.com/jason-s-yu/codenames/internal/orchestrator"
	"github.com/jason-s-yu/codenames/internal/store"
)

// seatView is one seat in a create-game response, including the token the
// seat holder uses for subsequent requests. Tokens are only minted for human
// seats; automated seats act server-side.
type seatView struct {
	Player *models.Player `json:"player"`
	Token  string         `json:"token,omitempty"`
}

type createGameResponse struct {
	GameID uuid.UUID         `json:"gameId"`
	State  *models.GameState `json:"state"`
	Seats  []seatView        `json:"seats"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	g, players, err := s.Orch.CreateGame(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := createGameResponse{GameID: g.ID, State: g.State.Redacted(false), Seats: make([]seatView, 0, len(players))}
	for _, p := range players {
		view := seatView{Player: p}
		if !p.IsAutomated() {
			token, err := auth.CreateSeatToken(p.ID, g.ID)
			if err != nil {
				s.Log.WithError(err).Error("seat token mint failed")
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			view.Token = token
		}
		resp.Seats = append(resp.Seats, view)
	}

	writeJSON(w, http.StatusCreated, resp)
}

// stateResponse is the per-viewer game snapshot.
type stateResponse struct {
	Game    *models.Game     `json:"game"`
	Players []*models.Player `json:"players"`
}

// handleGameState returns the game from the caller's perspective. A valid
// seat token for a spymaster seat sees the full key card; everyone else gets
// the redacted board. Completed games are fully visible to all.
func (s *Server) handleGameState(w http.ResponseWriter, r *http.Request) {
	gameID, err := uuid.Parse(pathID(r.URL.Path, "/game/state/"))
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}

	g, players, err := s.Orch.GetGame(r.Context(), gameID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	spymasterView := g.Status != models.StatusActive
	if claims, err := auth.AuthenticateSeatToken(extractToken(r)); err == nil && claims.GameID == gameID {
		for _, p := range players {
			if p.ID == claims.PlayerID && p.Role == models.RoleSpymaster {
				spymasterView = true
			}
		}
	}

	view := g.Clone()
	view.State = g.State.Redacted(spymasterView)
	writeJSON(w, http.StatusOK, stateResponse{Game: view, Players: players})
}

func (s *Server) handleGameHistory(w http.ResponseWriter, r *http.Request) {
	gameID, err := uuid.Parse(pathID(r.URL.Path, "/game/history/"))
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	history, err := s.Orch.GetHistory(r.Context(), gameID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"actions": history})
}

// actionResponse mirrors the engine's discriminated result on the wire.
type actionResponse struct {
	Success  bool              `json:"success"`
	Error    *game.RuleError   `json:"error,omitempty"`
	GameOver bool              `json:"gameOver,omitempty"`
	State    *models.GameState `json:"state,omitempty"`
}

// handleAction applies one action for the authenticated seat. Rule
// violations come back as a 200 with success=false; only infrastructure
// failures produce 5xx.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	gameID, err := uuid.Parse(pathID(r.URL.Path, "/game/action/"))
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}

	claims, err := auth.AuthenticateSeatToken(extractToken(r))
	if err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}
	if claims.GameID != gameID {
		http.Error(w, "token is for a different game", http.StatusForbidden)
		return
	}

	var action models.Action
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		http.Error(w, "invalid action body", http.StatusBadRequest)
		return
	}

	res, err := s.Orch.TakeAction(r.Context(), gameID, claims.PlayerID, action)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	resp := actionResponse{Success: res.Success, GameOver: res.GameOver}
	if res.Error != nil {
		resp.Error = res.Error
	}
	if res.State != nil {
		// Action submitters are operatives or spymasters; operatives must
		// not learn the key card from the response.
		spymaster := false
		_, players, err := s.Orch.GetGame(r.Context(), gameID)
		if err == nil {
			for _, p := range players {
				if p.ID == claims.PlayerID && p.Role == models.RoleSpymaster {
					spymaster = true
				}
			}
		}
		resp.State = res.State.Redacted(spymaster || res.GameOver)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.Orch.ListActiveGames(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	views := make([]*models.Game, 0, len(games))
	for _, g := range games {
		view := g.Clone()
		view.State = g.State.Redacted(g.Status != models.StatusActive)
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"games": views})
}

func (s *Server) handleArchiveGame(w http.ResponseWriter, r *http.Request) {
	gameID, err := uuid.Parse(pathID(r.URL.Path, "/game/archive/"))
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	if err := s.Orch.ArchiveGame(r.Context(), gameID); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDrain manually kicks the claim-and-execute loop. The scheduled
// poller makes this redundant in steady state; it exists for operators and
// tests.
func (s *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	go s.Orch.Drain(context.WithoutCancel(r.Context()))
	w.WriteHeader(http.StatusAccepted)
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
