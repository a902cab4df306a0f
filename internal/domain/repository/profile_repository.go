package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"code_duel/internal/common"
	"code_duel/internal/domain/model"
)

type ProfileRepository interface {
	Create(ctx context.Context, tx *sql.Tx, profile *model.Profile) error
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)
	// Update stores the user-editable fields; match aggregates are untouched.
	Update(ctx context.Context, tx *sql.Tx, profile *model.Profile) error
	// ApplyResult adds one finished match to the player's aggregates, creating
	// the profile when it does not exist yet.
	ApplyResult(ctx context.Context, tx *sql.Tx, userID string, delta int, won bool) error
	// Top lists profiles by rating, then wins.
	Top(ctx context.Context, limit int) ([]model.Profile, error)
}

type pgProfileRepository struct {
	db *sql.DB
}

func NewPgProfileRepository(db *sql.DB) ProfileRepository {
	return &pgProfileRepository{db: db}
}

func (r *pgProfileRepository) Create(ctx context.Context, tx *sql.Tx, p *model.Profile) error {
	query := `INSERT INTO profiles (user_id, username, rating, total_matches, wins, losses,
	                                  bio, avatar, leetcode_username, codechef_username, codeforces_handle)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	          RETURNING created_at, updated_at`
	err := pick(r.db, tx).QueryRowContext(ctx, query, p.UserID, p.Username, p.Rating, p.TotalMatches, p.Wins, p.Losses,
		p.Bio, p.Avatar, p.LeetcodeUsername, p.CodechefUsername, p.CodeforcesHandle).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("profile for user %s already exists: %w", p.UserID, common.ErrConflict)
		}
		return fmt.Errorf("pgProfileRepository.Create: %w", err)
	}
	return nil
}

func (r *pgProfileRepository) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	query := `SELECT user_id, username, rating, total_matches, wins, losses,
	                 bio, avatar, leetcode_username, codechef_username, codeforces_handle, created_at, updated_at
	          FROM profiles WHERE user_id = $1`
	p := &model.Profile{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID, &p.Username, &p.Rating, &p.TotalMatches, &p.Wins, &p.Losses,
		&p.Bio, &p.Avatar, &p.LeetcodeUsername, &p.CodechefUsername, &p.CodeforcesHandle, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProfileRepository.FindByUserID: %w", err)
	}
	return p, nil
}

func (r *pgProfileRepository) Update(ctx context.Context, tx *sql.Tx, p *model.Profile) error {
	query := `UPDATE profiles SET bio = $2, avatar = $3, leetcode_username = $4, codechef_username = $5,
	              codeforces_handle = $6, updated_at = CURRENT_TIMESTAMP
	          WHERE user_id = $1
	          RETURNING updated_at`
	err := pick(r.db, tx).QueryRowContext(ctx, query, p.UserID, p.Bio, p.Avatar, p.LeetcodeUsername, p.CodechefUsername, p.CodeforcesHandle).
		Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		return fmt.Errorf("pgProfileRepository.Update: %w", err)
	}
	return nil
}

func (r *pgProfileRepository) ApplyResult(ctx context.Context, tx *sql.Tx, userID string, delta int, won bool) error {
	win, loss := 0, 1
	if won {
		win, loss = 1, 0
	}
	// Single statement so concurrent completions of different matches never lose an update.
	query := `INSERT INTO profiles (user_id, rating, total_matches, wins, losses)
	          VALUES ($1, $2 + $3, 1, $4, $5)
	          ON CONFLICT (user_id) DO UPDATE SET
	              rating        = profiles.rating + $3,
	              total_matches = profiles.total_matches + 1,
	              wins          = profiles.wins + $4,
	              losses        = profiles.losses + $5,
	              updated_at    = CURRENT_TIMESTAMP`
	if _, err := pick(r.db, tx).ExecContext(ctx, query, userID, model.DefaultRating, delta, win, loss); err != nil {
		return fmt.Errorf("pgProfileRepository.ApplyResult: %w", err)
	}
	return nil
}

func (r *pgProfileRepository) Top(ctx context.Context, limit int) ([]model.Profile, error) {
	query := `SELECT p.user_id, COALESCE(NULLIF(p.username, ''), u.username, p.user_id),
	                 p.rating, p.total_matches, p.wins, p.losses, p.bio, p.avatar,
	                 p.leetcode_username, p.codechef_username, p.codeforces_handle, p.created_at, p.updated_at
	          FROM profiles p
	          LEFT JOIN users u ON u.id = p.user_id
	          ORDER BY p.rating DESC, p.wins DESC, p.user_id
	          LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pgProfileRepository.Top: %w", err)
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(&p.UserID, &p.Username, &p.Rating, &p.TotalMatches, &p.Wins, &p.Losses, &p.Bio, &p.Avatar,
			&p.LeetcodeUsername, &p.CodechefUsername, &p.CodeforcesHandle, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pgProfileRepository.Top scan: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProfileRepository.Top rows.Err: %w", err)
	}
	return profiles, nil
}
