package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"code_duel/internal/common"
	"code_duel/internal/domain/model"
)

type ProblemRepository interface {
	CreateProblem(ctx context.Context, tx *sql.Tx, problem *model.Problem) error
	UpdateProblemStatus(ctx context.Context, tx *sql.Tx, problemID string, status model.ProblemStatus) error
	FindProblemByID(ctx context.Context, id string) (*model.Problem, error)
	FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error)
	// ListProblems filters on difficulty and status when they are non-empty.
	ListProblems(ctx context.Context, limit, offset int, difficulty model.Difficulty, status model.ProblemStatus) ([]model.Problem, int, error)
	// RandomPublished picks one published problem of the difficulty.
	RandomPublished(ctx context.Context, difficulty model.Difficulty) (*model.Problem, error)

	AddExamplesToProblem(ctx context.Context, tx *sql.Tx, problemID string, examples []model.Example) error
	GetExamplesByProblemID(ctx context.Context, problemID string) ([]model.Example, error)

	AddTestCasesToProblem(ctx context.Context, tx *sql.Tx, problemID string, testCases []model.TestCase) error
	GetTestCasesByProblemID(ctx context.Context, problemID string) ([]model.TestCase, error) // For judging/admin
}

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

const problemColumns = `id, title, slug, description, difficulty, status, constraints_text, starter_code, source_url,
	solution_code, solution_language, created_by, created_at, updated_at`

func (r *pgProblemRepository) CreateProblem(ctx context.Context, tx *sql.Tx, p *model.Problem) error {
	starter, err := json.Marshal(p.StarterCode)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.CreateProblem starter code: %w", err)
	}
	if p.StarterCode == nil {
		starter = []byte("{}")
	}
	query := `INSERT INTO problems (id, title, slug, description, difficulty, status, constraints_text, starter_code, source_url, solution_code, solution_language, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	          RETURNING created_at, updated_at`
	err = pick(r.db, tx).QueryRowContext(ctx, query,
		p.ID, p.Title, p.Slug, p.Description, p.Difficulty, p.Status, p.Constraints, starter, p.URL,
		p.SolutionCode, p.SolutionLanguage, p.CreatedByID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) { // Unique constraint for slug
			return fmt.Errorf("problem with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgProblemRepository.CreateProblem: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) UpdateProblemStatus(ctx context.Context, tx *sql.Tx, problemID string, status model.ProblemStatus) error {
	query := `UPDATE problems SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	res, err := pick(r.db, tx).ExecContext(ctx, query, status, problemID)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.UpdateProblemStatus: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgProblemRepository) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	return r.findOne(ctx, "FindProblemByID", `SELECT `+problemColumns+` FROM problems WHERE id = $1`, id)
}

func (r *pgProblemRepository) FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error) {
	return r.findOne(ctx, "FindProblemBySlug", `SELECT `+problemColumns+` FROM problems WHERE slug = $1`, slug)
}

func (r *pgProblemRepository) RandomPublished(ctx context.Context, difficulty model.Difficulty) (*model.Problem, error) {
	query := `SELECT ` + problemColumns + ` FROM problems
	          WHERE difficulty = $1 AND status = $2
	          ORDER BY random() LIMIT 1`
	p, err := scanProblem(r.db.QueryRowContext(ctx, query, difficulty, model.StatusPublished))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no published %s problem: %w", difficulty, common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgProblemRepository.RandomPublished: %w", err)
	}
	return p, nil
}

func (r *pgProblemRepository) findOne(ctx context.Context, op, query, arg string) (*model.Problem, error) {
	p, err := scanProblem(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.%s: %w", op, err)
	}
	return p, nil
}

func (r *pgProblemRepository) ListProblems(ctx context.Context, limit, offset int, difficulty model.Difficulty, status model.ProblemStatus) ([]model.Problem, int, error) {
	var conditions []string
	var args []any
	argID := 1

	if difficulty != "" {
		conditions = append(conditions, fmt.Sprintf("difficulty = $%d", argID))
		args = append(args, difficulty)
		argID++
	}
	if status != "" { // e.g. only "Published" for users
		conditions = append(conditions, fmt.Sprintf("status = $%d", argID))
		args = append(args, status)
		argID++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM problems`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems count: %w", err)
	}

	query := `SELECT ` + problemColumns + ` FROM problems` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems query: %w", err)
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems scan: %w", err)
		}
		problems = append(problems, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems rows.Err: %w", err)
	}
	return problems, total, nil
}

func (r *pgProblemRepository) AddExamplesToProblem(ctx context.Context, tx *sql.Tx, problemID string, examples []model.Example) error {
	query := `INSERT INTO problem_examples (id, problem_id, input, expected_output, explanation, sort_order) VALUES ($1, $2, $3, $4, $5, $6)`
	for i, ex := range examples {
		ex.SortOrder = i + 1 // Auto-assign sort order
		if _, err := pick(r.db, tx).ExecContext(ctx, query, ex.ID, problemID, ex.Input, ex.ExpectedOutput, ex.Explanation, ex.SortOrder); err != nil {
			return fmt.Errorf("pgProblemRepository.AddExamplesToProblem exec for example %s: %w", ex.ID, err)
		}
	}
	return nil
}

func (r *pgProblemRepository) GetExamplesByProblemID(ctx context.Context, problemID string) ([]model.Example, error) {
	query := `SELECT id, problem_id, input, expected_output, explanation, sort_order
	          FROM problem_examples WHERE problem_id = $1 ORDER BY sort_order ASC`
	rows, err := r.db.QueryContext(ctx, query, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetExamplesByProblemID query: %w", err)
	}
	defer rows.Close()

	var examples []model.Example
	for rows.Next() {
		var ex model.Example
		if err := rows.Scan(&ex.ID, &ex.ProblemID, &ex.Input, &ex.ExpectedOutput, &ex.Explanation, &ex.SortOrder); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.GetExamplesByProblemID scan: %w", err)
		}
		examples = append(examples, ex)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetExamplesByProblemID rows.Err: %w", err)
	}
	return examples, nil
}

func (r *pgProblemRepository) AddTestCasesToProblem(ctx context.Context, tx *sql.Tx, problemID string, testCases []model.TestCase) error {
	query := `INSERT INTO test_cases (id, problem_id, input, expected_output, is_hidden, sort_order) VALUES ($1, $2, $3, $4, $5, $6)`
	for i, tc := range testCases {
		tc.SortOrder = i + 1
		if _, err := pick(r.db, tx).ExecContext(ctx, query, tc.ID, problemID, tc.Input, tc.ExpectedOutput, tc.IsHidden, tc.SortOrder); err != nil {
			return fmt.Errorf("pgProblemRepository.AddTestCasesToProblem exec for test case %s: %w", tc.ID, err)
		}
	}
	return nil
}

func (r *pgProblemRepository) GetTestCasesByProblemID(ctx context.Context, problemID string) ([]model.TestCase, error) {
	query := `SELECT id, problem_id, input, expected_output, is_hidden, sort_order
	          FROM test_cases WHERE problem_id = $1 ORDER BY sort_order ASC`
	rows, err := r.db.QueryContext(ctx, query, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetTestCasesByProblemID query: %w", err)
	}
	defer rows.Close()

	var cases []model.TestCase
	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.ID, &tc.ProblemID, &tc.Input, &tc.ExpectedOutput, &tc.IsHidden, &tc.SortOrder); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.GetTestCasesByProblemID scan: %w", err)
		}
		cases = append(cases, tc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetTestCasesByProblemID rows.Err: %w", err)
	}
	return cases, nil
}

func scanProblem(s rowScanner) (*model.Problem, error) {
	p := &model.Problem{}
	var (
		difficulty, status string
		starter            []byte
	)
	err := s.Scan(&p.ID, &p.Title, &p.Slug, &p.Description, &difficulty, &status, &p.Constraints, &starter, &p.URL,
		&p.SolutionCode, &p.SolutionLanguage, &p.CreatedByID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Difficulty = model.Difficulty(difficulty)
	p.Status = model.ProblemStatus(status)
	if len(starter) > 0 {
		if err := json.Unmarshal(starter, &p.StarterCode); err != nil {
			return nil, fmt.Errorf("starter code: %w", err)
		}
	}
	return p, nil
}
