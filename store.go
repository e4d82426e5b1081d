package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoundRecord is one completed round of a finished game.
type RoundRecord struct {
	Question   string
	Answer1    string
	Answer2    string
	IsMatch    bool
	ResultText string
}

// CompletedGame is the durable summary written once per finished game.
type CompletedGame struct {
	UserA  string
	UserB  string
	Theme  string
	Rounds []RoundRecord
}

// GameStore records finished games. Writes are fire-and-forget from
// the room's perspective; failures are logged by the caller and never
// reach clients.
type GameStore interface {
	RecordCompletedGame(ctx context.Context, game CompletedGame) error
}

// postgresStore keeps one partner_relations row per player pair, with
// games_played, a daily streak, and per-round history rows.
type postgresStore struct {
	pool *pgxpool.Pool
}

func newPostgresStore(pool *pgxpool.Pool) *postgresStore {
	return &postgresStore{pool: pool}
}

func (s *postgresStore) RecordCompletedGame(ctx context.Context, game CompletedGame) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning game record transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	relationID, lastPlayed, streak, err := s.upsertRelation(ctx, tx, game.UserA, game.UserB)
	if err != nil {
		return err
	}

	streak = nextStreak(streak, lastPlayed, time.Now())

	_, err = tx.Exec(ctx,
		`UPDATE partner_relations
		 SET games_played = games_played + 1, streak = $2, last_played = now()
		 WHERE id = $1`,
		relationID, streak)
	if err != nil {
		return fmt.Errorf("updating partner relation: %w", err)
	}

	for _, round := range game.Rounds {
		_, err = tx.Exec(ctx,
			`INSERT INTO game_history (relation_id, question, answer_a, answer_b, matched, result_text, theme, played_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
			relationID, round.Question, round.Answer1, round.Answer2, round.IsMatch, round.ResultText, game.Theme)
		if err != nil {
			return fmt.Errorf("inserting game history row: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing game record: %w", err)
	}

	return nil
}

// upsertRelation finds the relation for a pair in either order,
// creating it if absent.
func (s *postgresStore) upsertRelation(ctx context.Context, tx pgx.Tx, userA, userB string) (int64, *time.Time, int, error) {
	var (
		id         int64
		lastPlayed *time.Time
		streak     int
	)

	err := tx.QueryRow(ctx,
		`SELECT id, last_played, streak FROM partner_relations
		 WHERE (user_a = $1 AND user_b = $2) OR (user_a = $2 AND user_b = $1)`,
		userA, userB).Scan(&id, &lastPlayed, &streak)
	if err == nil {
		return id, lastPlayed, streak, nil
	}
	if err != pgx.ErrNoRows {
		return 0, nil, 0, fmt.Errorf("looking up partner relation: %w", err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO partner_relations (user_a, user_b, games_played, streak)
		 VALUES ($1, $2, 0, 0) RETURNING id`,
		userA, userB).Scan(&id)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("creating partner relation: %w", err)
	}

	return id, nil, 0, nil
}

// nextStreak advances the daily streak: consecutive calendar days
// extend it, a gap resets it to 1.
func nextStreak(streak int, lastPlayed *time.Time, now time.Time) int {
	if lastPlayed == nil {
		return 1
	}

	last := lastPlayed.Local()
	lastDay := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.Local)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)

	switch days := int(today.Sub(lastDay).Hours() / 24); {
	case days == 0:
		if streak < 1 {
			return 1
		}
		return streak
	case days == 1:
		return streak + 1
	default:
		return 1
	}
}
