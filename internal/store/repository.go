package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Ikram11215/puissance4game/internal/board"
	"github.com/Ikram11215/puissance4game/internal/match"
	"github.com/Ikram11215/puissance4game/internal/obslog"
	"github.com/Ikram11215/puissance4game/internal/rating"
)

// Repository is the durable side of the match subsystem: games keyed by a
// unique room id, user rating counters applied transactionally per
// finished match.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CreateGame inserts the shell record for a freshly created room.
func (r *Repository) CreateGame(ctx context.Context, roomID string, redPlayerID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO games (room_id, red_player_id, status) VALUES ($1, $2, 'waiting')`,
		roomID, redPlayerID)
	return err
}

// SetYellowPlayer records the second seat.
func (r *Repository) SetYellowPlayer(ctx context.Context, roomID string, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE games SET yellow_player_id = $2 WHERE room_id = $1`,
		roomID, userID)
	return err
}

// MarkPlaying flips the record to playing when both seats turn ready.
func (r *Repository) MarkPlaying(ctx context.Context, roomID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE games SET status = 'playing', started_at = now() WHERE room_id = $1`,
		roomID)
	return err
}

// RestartGame resets the record for a rematch on the same room id.
func (r *Repository) RestartGame(ctx context.Context, roomID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE games SET status = 'playing', winner = NULL, started_at = now(), finished_at = NULL
		 WHERE room_id = $1`,
		roomID)
	return err
}

// ApplyResult finishes the game and applies rating deltas in one
// transaction, so no participant can observe a finished game whose
// rating update has not been committed.
func (r *Repository) ApplyResult(ctx context.Context, roomID string, winner board.Verdict) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var redID int64
	var yellowID sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT red_player_id, yellow_player_id FROM games WHERE room_id = $1 FOR UPDATE`,
		roomID).Scan(&redID, &yellowID)
	if err != nil {
		return fmt.Errorf("load game %s: %w", roomID, err)
	}

	if yellowID.Valid {
		if err := r.applyRatings(ctx, tx, winner, redID, yellowID.Int64); err != nil {
			return err
		}
	} else {
		obslog.L().Warn("result_without_opponent", zap.String("room_id", roomID))
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE games SET status = 'finished', winner = $2, finished_at = now() WHERE room_id = $1`,
		roomID, string(winner))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repository) applyRatings(ctx context.Context, tx *sql.Tx, winner board.Verdict, redID, yellowID int64) error {
	redElo, err := eloOf(ctx, tx, redID)
	if err != nil {
		return err
	}
	yellowElo, err := eloOf(ctx, tx, yellowID)
	if err != nil {
		return err
	}

	if winner == board.VerdictDraw {
		// red is the first-listed seat for the draw derivation
		redDelta, yellowDelta := rating.Draw(redElo, yellowElo)
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET draws = draws + 1, elo = elo + $2 WHERE id = $1`,
			redID, redDelta); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET draws = draws + 1, elo = elo + $2 WHERE id = $1`,
			yellowID, yellowDelta)
		return err
	}

	winnerID, loserID := redID, yellowID
	winnerElo, loserElo := redElo, yellowElo
	if winner == board.VerdictYellow {
		winnerID, loserID = yellowID, redID
		winnerElo, loserElo = yellowElo, redElo
	}
	winnerDelta, loserDelta := rating.Decisive(winnerElo, loserElo)

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET wins = wins + 1, elo = elo + $2 WHERE id = $1`,
		winnerID, winnerDelta); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE users SET losses = losses + 1, elo = elo + $2 WHERE id = $1`,
		loserID, loserDelta)
	return err
}

func eloOf(ctx context.Context, tx *sql.Tx, userID int64) (int, error) {
	var elo int
	if err := tx.QueryRowContext(ctx, `SELECT elo FROM users WHERE id = $1`, userID).Scan(&elo); err != nil {
		return 0, fmt.Errorf("load user %d: %w", userID, err)
	}
	return elo, nil
}

// GetGame loads the durable record for rehydration; (nil, nil) when the
// room id is unknown.
func (r *Repository) GetGame(ctx context.Context, roomID string) (*match.PersistedGame, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT g.room_id, g.red_player_id, ru.pseudo, g.yellow_player_id, yu.pseudo,
		        g.status, g.winner, g.created_at
		 FROM games g
		 JOIN users ru ON ru.id = g.red_player_id
		 LEFT JOIN users yu ON yu.id = g.yellow_player_id
		 WHERE g.room_id = $1`,
		roomID)

	var pg match.PersistedGame
	var yellowID sql.NullInt64
	var yellowPseudo sql.NullString
	var status string
	var winner sql.NullString
	err := row.Scan(&pg.RoomID, &pg.RedPlayerID, &pg.RedPseudo, &yellowID, &yellowPseudo,
		&status, &winner, &pg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if yellowID.Valid {
		id := yellowID.Int64
		pg.YellowPlayerID = &id
		pg.YellowPseudo = yellowPseudo.String
	}
	pg.Status = match.Status(status)
	if winner.Valid {
		pg.Winner = board.Verdict(winner.String)
	}
	return &pg, nil
}

// User is one leaderboard row.
type User struct {
	ID     int64  `json:"id"`
	Pseudo string `json:"pseudo"`
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`
	Draws  int    `json:"draws"`
	Elo    int    `json:"elo"`
}

// Leaderboard returns users ordered by rating.
func (r *Repository) Leaderboard(ctx context.Context, limit int) ([]User, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, pseudo, wins, losses, draws, elo FROM users ORDER BY elo DESC, pseudo ASC LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Pseudo, &u.Wins, &u.Losses, &u.Draws, &u.Elo); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// GameSummary is one finished-game history row.
type GameSummary struct {
	RoomID       string     `json:"roomId"`
	RedPseudo    string     `json:"redPseudo"`
	YellowPseudo string     `json:"yellowPseudo,omitempty"`
	Winner       string     `json:"winner,omitempty"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

// HistoryByUser returns the user's finished games, most recent first.
func (r *Repository) HistoryByUser(ctx context.Context, userID int64, limit int) ([]GameSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT g.room_id, ru.pseudo, COALESCE(yu.pseudo, ''), COALESCE(g.winner, ''),
		        g.started_at, g.finished_at
		 FROM games g
		 JOIN users ru ON ru.id = g.red_player_id
		 LEFT JOIN users yu ON yu.id = g.yellow_player_id
		 WHERE g.status = 'finished' AND (g.red_player_id = $1 OR g.yellow_player_id = $1)
		 ORDER BY g.finished_at DESC NULLS LAST
		 LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GameSummary
	for rows.Next() {
		var g GameSummary
		var started, finished sql.NullTime
		if err := rows.Scan(&g.RoomID, &g.RedPseudo, &g.YellowPseudo, &g.Winner, &started, &finished); err != nil {
			return nil, err
		}
		if started.Valid {
			t := started.Time
			g.StartedAt = &t
		}
		if finished.Valid {
			t := finished.Time
			g.FinishedAt = &t
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
