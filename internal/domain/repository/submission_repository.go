package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"code_duel/internal/common"
	"code_duel/internal/domain/model"
)

type SubmissionRepository interface {
	Create(ctx context.Context, tx *sql.Tx, sub *model.Submission) error
	// UpdateResult writes the judging fields of a PENDING submission. A
	// submission that already has a verdict is left untouched and
	// common.ErrConflict is returned.
	UpdateResult(ctx context.Context, tx *sql.Tx, sub *model.Submission) error
	FindByID(ctx context.Context, id string) (*model.Submission, error)
	// ListByMatchAndUser returns the user's submissions for a match, newest first.
	ListByMatchAndUser(ctx context.Context, matchID, userID string) ([]model.Submission, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

const submissionColumns = `id, user_id, match_id, problem_id, code, language, status,
	test_cases_passed, test_cases_total, execution_output, submitted_at, updated_at`

func (r *pgSubmissionRepository) Create(ctx context.Context, tx *sql.Tx, s *model.Submission) error {
	query := `INSERT INTO submissions (id, user_id, match_id, problem_id, code, language, status, test_cases_passed, test_cases_total)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          RETURNING submitted_at, updated_at`
	err := pick(r.db, tx).QueryRowContext(ctx, query,
		s.ID, s.UserID, s.MatchID, s.ProblemID, s.Code, s.Language, s.Status, s.TestCasesPassed, s.TestCasesTotal,
	).Scan(&s.SubmittedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.Create: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) UpdateResult(ctx context.Context, tx *sql.Tx, s *model.Submission) error {
	query := `UPDATE submissions
	          SET status = $2, test_cases_passed = $3, test_cases_total = $4, execution_output = $5, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $1 AND status = $6`
	var output any
	if len(s.ExecutionOutput) > 0 {
		output = []byte(s.ExecutionOutput)
	}
	res, err := pick(r.db, tx).ExecContext(ctx, query,
		s.ID, s.Status, s.TestCasesPassed, s.TestCasesTotal, output, model.SubmissionPending,
	)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.UpdateResult: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.UpdateResult rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("submission %s is not pending: %w", s.ID, common.ErrConflict)
	}
	return nil
}

func (r *pgSubmissionRepository) FindByID(ctx context.Context, id string) (*model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	s, err := scanSubmission(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.FindByID: %w", err)
	}
	return s, nil
}

func (r *pgSubmissionRepository) ListByMatchAndUser(ctx context.Context, matchID, userID string) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions
	          WHERE match_id = $1 AND user_id = $2
	          ORDER BY submitted_at DESC`
	rows, err := r.db.QueryContext(ctx, query, matchID, userID)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListByMatchAndUser: %w", err)
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.ListByMatchAndUser scan: %w", err)
		}
		subs = append(subs, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListByMatchAndUser rows.Err: %w", err)
	}
	return subs, nil
}

func scanSubmission(sc rowScanner) (*model.Submission, error) {
	s := &model.Submission{}
	var (
		status string
		output []byte
	)
	err := sc.Scan(&s.ID, &s.UserID, &s.MatchID, &s.ProblemID, &s.Code, &s.Language, &status,
		&s.TestCasesPassed, &s.TestCasesTotal, &output, &s.SubmittedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = model.SubmissionStatus(status)
	if len(output) > 0 {
		s.ExecutionOutput = output
	}
	return s, nil
}
