// internal/handlers/game_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/codenames/internal/auth"
	"github.com/jason-s-yu/codenames/internal/memstore"
	"github.com/jason-s-yu/codenames/internal/models"
	"github.com/jason-s-yu/codenames/internal/orchestrator"
)

func testWords(n int) []string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("pool%03d", i)
	}
	return words
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	auth.Init()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	orch, err := orchestrator.New(orchestrator.Config{
		Store:    memstore.New(),
		WordPool: testWords(30),
		Logger:   log,
	})
	require.NoError(t, err)

	srv := NewServer(orch, NewHub(log), log)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func createGame(t *testing.T, ts *httptest.Server) createGameResponse {
	t.Helper()
	req := orchestrator.CreateGameRequest{StartingTeam: models.TeamRed}
	for _, team := range []models.Team{models.TeamRed, models.TeamBlue} {
		for _, role := range []models.PlayerRole{models.RoleSpymaster, models.RoleOperative} {
			req.Seats = append(req.Seats, orchestrator.SeatSpec{Kind: models.KindHuman, Team: team, Role: role})
		}
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/game/create", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out createGameResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func seatToken(t *testing.T, game createGameResponse, team models.Team, role models.PlayerRole) string {
	t.Helper()
	for _, s := range game.Seats {
		if s.Player.Team == team && s.Player.Role == role {
			require.NotEmpty(t, s.Token, "human seats get tokens")
			return s.Token
		}
	}
	t.Fatalf("no %s %s seat", team, role)
	return ""
}

func TestCreateGameHandler(t *testing.T) {
	_, ts := newTestServer(t)
	game := createGame(t, ts)

	assert.Len(t, game.Seats, 4)
	require.Len(t, game.State.Cards, models.BoardSize)
	for _, c := range game.State.Cards {
		assert.Empty(t, c.Role, "create response never leaks the key card")
	}
}

func TestGameStatePerspectives(t *testing.T) {
	_, ts := newTestServer(t)
	game := createGame(t, ts)

	// Anonymous view: redacted.
	resp, err := http.Get(ts.URL + "/game/state/" + game.GameID.String())
	require.NoError(t, err)
	var anon stateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&anon))
	resp.Body.Close()
	for _, c := range anon.Game.State.Cards {
		assert.Empty(t, c.Role)
	}

	// Spymaster view: full key card.
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/game/state/"+game.GameID.String(), nil)
	req.Header.Set("Authorization", "Bearer "+seatToken(t, game, models.TeamRed, models.RoleSpymaster))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	var spy stateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&spy))
	resp.Body.Close()
	for _, c := range spy.Game.State.Cards {
		assert.NotEmpty(t, c.Role)
	}
}

func postAction(t *testing.T, ts *httptest.Server, gameID, token string, action models.Action) (*http.Response, actionResponse) {
	t.Helper()
	body, err := json.Marshal(action)
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/game/action/"+gameID, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out actionResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestActionFlow(t *testing.T) {
	_, ts := newTestServer(t)
	game := createGame(t, ts)
	id := game.GameID.String()

	spyToken := seatToken(t, game, models.TeamRed, models.RoleSpymaster)
	opToken := seatToken(t, game, models.TeamRed, models.RoleOperative)

	// Guessing before any clue is a rule violation, not an HTTP error.
	resp, out := postAction(t, ts, id, opToken, models.NewGuessAction(0))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.False(t, out.Success)
	require.NotNil(t, out.Error)

	resp, out = postAction(t, ts, id, spyToken, models.NewClueAction("ocean", 2))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, out.Success)
	require.NotNil(t, out.State)
	assert.Equal(t, models.PhaseGuessing, out.State.CurrentPhase)

	resp, out = postAction(t, ts, id, opToken, models.NewGuessAction(3))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, out.Success)
	assert.True(t, out.State.Cards[3].Revealed)

	// History now contains both committed actions.
	histResp, err := http.Get(ts.URL + "/game/history/" + id)
	require.NoError(t, err)
	defer histResp.Body.Close()
	var hist struct {
		Actions []models.GameAction `json:"actions"`
	}
	require.NoError(t, json.NewDecoder(histResp.Body).Decode(&hist))
	assert.Len(t, hist.Actions, 2)
}

func TestActionAuthChecks(t *testing.T) {
	_, ts := newTestServer(t)
	game := createGame(t, ts)
	other := createGame(t, ts)
	id := game.GameID.String()

	body, _ := json.Marshal(models.NewClueAction("ocean", 1))

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/game/action/"+id, bytes.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "missing token")

	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/game/action/"+id, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+seatToken(t, other, models.TeamRed, models.RoleSpymaster))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "token minted for another game")
}

func TestStateNotFound(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/game/state/00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
