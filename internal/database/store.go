package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jason-s-yu/codenames/internal/models"
	"github.com/jason-s-yu/codenames/internal/store"
)

// Store is the pgx-backed store.Store. All aggregate writes go through
// UpdateGame, which locks the game row for the duration of the transaction;
// the claim flag is flipped with a conditional UPDATE so the CAS is valid
// across processes.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const gameColumns = `id, status, archived, needs_ai_move, game_state, label, winner, started_at, completed_at, updated_at`

func (s *Store) CreateGame(ctx context.Context, g *models.Game, players []*models.Player) error {
	stateJSON, err := json.Marshal(g.State)
	if err != nil {
		return fmt.Errorf("marshal game state: %w", err)
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO games (id, status, archived, needs_ai_move, game_state, label, winner, started_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		`
		if _, err := tx.Exec(ctx, q, g.ID, g.Status, g.Archived, g.NeedsAIMove, stateJSON, nullable(g.Label), nullable(string(g.Winner))); err != nil {
			return err
		}
		for _, p := range players {
			var optsJSON []byte
			if p.PolicyOptions != nil {
				if optsJSON, err = json.Marshal(p.PolicyOptions); err != nil {
					return fmt.Errorf("marshal policy options: %w", err)
				}
			}
			pq := `
				INSERT INTO game_players (id, game_id, name, kind, team, role, policy_ref, policy_options)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`
			if _, err := tx.Exec(ctx, pq, p.ID, g.ID, p.Name, p.Kind, p.Team, p.Role, nullable(p.PolicyRef), optsJSON); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id)
	return scanGame(row)
}

func (s *Store) GetPlayers(ctx context.Context, gameID uuid.UUID) ([]*models.Player, error) {
	q := `
		SELECT id, game_id, name, kind, team, role, policy_ref, policy_options
		FROM game_players
		WHERE game_id = $1
		ORDER BY team, role
	`
	rows, err := s.pool.Query(ctx, q, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (s *Store) GetActions(ctx context.Context, gameID uuid.UUID) ([]models.GameAction, error) {
	return s.loadActions(ctx, s.pool, gameID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *Store) loadActions(ctx context.Context, q querier, gameID uuid.UUID) ([]models.GameAction, error) {
	query := `
		SELECT id, game_id, player_id, team, action_data, ts
		FROM game_actions
		WHERE game_id = $1
		ORDER BY id
	`
	rows, err := q.Query(ctx, query, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []models.GameAction
	for rows.Next() {
		var a models.GameAction
		var actionJSON []byte
		if err := rows.Scan(&a.ID, &a.GameID, &a.PlayerID, &a.Team, &actionJSON, &a.Timestamp); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(actionJSON, &a.Action); err != nil {
			return nil, fmt.Errorf("decode action %d: %w", a.ID, err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func (s *Store) UpdateGame(ctx context.Context, id uuid.UUID, fn store.ApplyFunc) (*models.Game, error) {
	var updated *models.Game
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1 FOR UPDATE`, id)
		g, err := scanGame(row)
		if err != nil {
			return err
		}

		playerRows, err := tx.Query(ctx, `
			SELECT id, game_id, name, kind, team, role, policy_ref, policy_options
			FROM game_players WHERE game_id = $1 ORDER BY team, role
		`, id)
		if err != nil {
			return err
		}
		var players []*models.Player
		for playerRows.Next() {
			p, err := scanPlayer(playerRows)
			if err != nil {
				playerRows.Close()
				return err
			}
			players = append(players, p)
		}
		playerRows.Close()
		if err := playerRows.Err(); err != nil {
			return err
		}

		history, err := s.loadActions(ctx, tx, id)
		if err != nil {
			return err
		}

		res, err := fn(g, players, history)
		if err != nil {
			return err
		}
		if res == nil {
			updated = g
			return nil
		}

		for _, a := range res.Actions {
			actionJSON, err := json.Marshal(a.Action)
			if err != nil {
				return fmt.Errorf("marshal action: %w", err)
			}
			aq := `
				INSERT INTO game_actions (game_id, player_id, team, action_data, ts)
				VALUES ($1, $2, $3, $4, $5)
			`
			if _, err := tx.Exec(ctx, aq, a.GameID, a.PlayerID, a.Team, actionJSON, a.Timestamp); err != nil {
				return err
			}
		}
		if err := insertEvents(ctx, tx, res.Events); err != nil {
			return err
		}

		if res.Game != nil {
			stateJSON, err := json.Marshal(res.Game.State)
			if err != nil {
				return fmt.Errorf("marshal game state: %w", err)
			}
			uq := `
				UPDATE games
				SET status = $2, archived = $3, needs_ai_move = $4, game_state = $5,
				    winner = $6, completed_at = $7, updated_at = NOW()
				WHERE id = $1
			`
			if _, err := tx.Exec(ctx, uq, id, res.Game.Status, res.Game.Archived, res.Game.NeedsAIMove,
				stateJSON, nullable(string(res.Game.Winner)), res.Game.CompletedAt); err != nil {
				return err
			}
			updated = res.Game
		} else {
			updated = g
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) SetNeedsAIMove(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE games SET needs_ai_move = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) OldestPendingGame(ctx context.Context) (uuid.UUID, error) {
	q := `
		SELECT id FROM games
		WHERE needs_ai_move = TRUE AND status = 'active' AND archived = FALSE
		ORDER BY updated_at ASC
		LIMIT 1
	`
	var id uuid.UUID
	if err := s.pool.QueryRow(ctx, q).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, store.ErrNoPending
		}
		return uuid.Nil, err
	}
	return id, nil
}

func (s *Store) ClaimPendingMove(ctx context.Context, id uuid.UUID) (bool, error) {
	// The conditional write is the whole claim protocol: zero rows affected
	// means another worker got there first.
	q := `UPDATE games SET needs_ai_move = FALSE WHERE id = $1 AND needs_ai_move = TRUE`
	tag, err := s.pool.Exec(ctx, q)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) StalledGames(ctx context.Context, olderThan time.Duration) ([]uuid.UUID, error) {
	q := `
		SELECT id FROM games
		WHERE status = 'active' AND archived = FALSE AND needs_ai_move = FALSE
		  AND updated_at < NOW() - $1::interval
	`
	rows, err := s.pool.Query(ctx, q, fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) ListActiveGames(ctx context.Context) ([]*models.Game, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+gameColumns+` FROM games WHERE archived = FALSE ORDER BY started_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []*models.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (s *Store) ArchiveGame(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE games SET archived = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AppendEvents(ctx context.Context, events []models.GameEvent) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return insertEvents(ctx, tx, events)
	})
}

// MarkAbandoned flips an active game to abandoned. Used by the historian's
// inactivity sweep.
func (s *Store) MarkAbandoned(ctx context.Context, id uuid.UUID) error {
	q := `
		UPDATE games
		SET status = 'abandoned', completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`
	_, err := s.pool.Exec(ctx, q, id)
	return err
}

func insertEvents(ctx context.Context, tx pgx.Tx, events []models.GameEvent) error {
	for _, ev := range events {
		q := `
			INSERT INTO game_events (game_id, player_id, team, kind, reason, detail, ts)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		if _, err := tx.Exec(ctx, q, ev.GameID, ev.PlayerID, nullable(string(ev.Team)),
			ev.Kind, nullable(string(ev.Reason)), nullable(ev.Detail), ev.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*models.Game, error) {
	var g models.Game
	var stateJSON []byte
	var label, winner *string
	if err := row.Scan(&g.ID, &g.Status, &g.Archived, &g.NeedsAIMove, &stateJSON,
		&label, &winner, &g.StartedAt, &g.CompletedAt, &g.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(stateJSON, &g.State); err != nil {
		return nil, fmt.Errorf("decode game state for %s: %w", g.ID, err)
	}
	if label != nil {
		g.Label = *label
	}
	if winner != nil {
		g.Winner = models.Team(*winner)
	}
	return &g, nil
}

func scanPlayer(row rowScanner) (*models.Player, error) {
	var p models.Player
	var policyRef *string
	var optsJSON []byte
	if err := row.Scan(&p.ID, &p.GameID, &p.Name, &p.Kind, &p.Team, &p.Role, &policyRef, &optsJSON); err != nil {
		return nil, err
	}
	if policyRef != nil {
		p.PolicyRef = *policyRef
	}
	if len(optsJSON) > 0 {
		var opts models.PolicyOptions
		if err := json.Unmarshal(optsJSON, &opts); err != nil {
			return nil, fmt.Errorf("decode policy options for %s: %w", p.ID, err)
		}
		p.PolicyOptions = &opts
	}
	return &p, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
