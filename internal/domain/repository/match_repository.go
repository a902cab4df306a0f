package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"code_duel/internal/common"
	"code_duel/internal/domain/model"
)

type MatchRepository interface {
	Create(ctx context.Context, tx *sql.Tx, match *model.Match) error
	FindByID(ctx context.Context, id string) (*model.Match, error)
	// Complete persists a completed match only if it is still ONGOING in
	// storage. It returns common.ErrMatchCompleted when another writer won.
	Complete(ctx context.Context, tx *sql.Tx, match *model.Match) error
	// ListByPlayer returns the player's matches, newest first.
	ListByPlayer(ctx context.Context, playerID string, limit int) ([]model.Match, error)
}

type pgMatchRepository struct {
	db *sql.DB
}

func NewPgMatchRepository(db *sql.DB) MatchRepository {
	return &pgMatchRepository{db: db}
}

const matchColumns = `id, player1_id, player2_id, problem_id, problem_title, difficulty, status,
	time_limit_seconds, start_time, end_time, winner_id, player1_rating_delta, player2_rating_delta`

func (r *pgMatchRepository) Create(ctx context.Context, tx *sql.Tx, m *model.Match) error {
	query := `INSERT INTO matches (id, player1_id, player2_id, problem_id, problem_title, difficulty, status, time_limit_seconds, start_time)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := pick(r.db, tx).ExecContext(ctx, query,
		m.ID, m.Player1ID, m.Player2ID, m.ProblemID, m.ProblemTitle, m.Difficulty, m.Status, m.TimeLimitSeconds, m.StartTime,
	)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("match %s already exists: %w", m.ID, common.ErrConflict)
		}
		return fmt.Errorf("pgMatchRepository.Create: %w", err)
	}
	return nil
}

func (r *pgMatchRepository) FindByID(ctx context.Context, id string) (*model.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	m, err := scanMatch(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgMatchRepository.FindByID: %w", err)
	}
	return m, nil
}

func (r *pgMatchRepository) Complete(ctx context.Context, tx *sql.Tx, m *model.Match) error {
	query := `UPDATE matches
	          SET status = $2, winner_id = $3, end_time = $4, player1_rating_delta = $5, player2_rating_delta = $6
	          WHERE id = $1 AND status = $7`
	res, err := pick(r.db, tx).ExecContext(ctx, query,
		m.ID, model.MatchCompleted, m.WinnerID, m.EndTime, m.Player1RatingDelta, m.Player2RatingDelta, model.MatchOngoing,
	)
	if err != nil {
		return fmt.Errorf("pgMatchRepository.Complete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgMatchRepository.Complete rows: %w", err)
	}
	if n == 0 {
		return common.ErrMatchCompleted
	}
	return nil
}

func (r *pgMatchRepository) ListByPlayer(ctx context.Context, playerID string, limit int) ([]model.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches
	          WHERE player1_id = $1 OR player2_id = $1
	          ORDER BY start_time DESC
	          LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("pgMatchRepository.ListByPlayer: %w", err)
	}
	defer rows.Close()

	var matches []model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("pgMatchRepository.ListByPlayer scan: %w", err)
		}
		matches = append(matches, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgMatchRepository.ListByPlayer rows.Err: %w", err)
	}
	return matches, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(s rowScanner) (*model.Match, error) {
	m := &model.Match{}
	var (
		endTime    sql.NullTime
		winnerID   sql.NullString
		delta1     sql.NullInt64
		delta2     sql.NullInt64
		difficulty string
		status     string
	)
	err := s.Scan(&m.ID, &m.Player1ID, &m.Player2ID, &m.ProblemID, &m.ProblemTitle, &difficulty, &status,
		&m.TimeLimitSeconds, &m.StartTime, &endTime, &winnerID, &delta1, &delta2)
	if err != nil {
		return nil, err
	}
	m.Difficulty = model.Difficulty(difficulty)
	m.Status = model.MatchStatus(status)
	if endTime.Valid {
		m.EndTime = &endTime.Time
	}
	if winnerID.Valid {
		m.WinnerID = &winnerID.String
	}
	if delta1.Valid {
		d := int(delta1.Int64)
		m.Player1RatingDelta = &d
	}
	if delta2.Valid {
		d := int(delta2.Int64)
		m.Player2RatingDelta = &d
	}
	return m, nil
}
