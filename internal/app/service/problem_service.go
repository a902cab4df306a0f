package service

import (
	"context"
	"database/sql"
	"strings"

	"code_duel/internal/app/judge"
	"code_duel/internal/app/worker"
	"code_duel/internal/common"
	"code_duel/internal/domain/model"
	"code_duel/internal/domain/repository"
	"code_duel/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/gosimple/slug" // For slug generation
	"go.uber.org/zap"
)

type ProblemService struct {
	problemRepo repository.ProblemRepository
	evaluator   *judge.Evaluator // For validating reference solutions
	pool        *worker.Pool
	db          *sql.DB // For transactions, nil in memory mode
}

func NewProblemService(
	problemRepo repository.ProblemRepository,
	evaluator *judge.Evaluator,
	pool *worker.Pool,
	db *sql.DB,
) *ProblemService {
	return &ProblemService{
		problemRepo: problemRepo,
		evaluator:   evaluator,
		pool:        pool,
		db:          db,
	}
}

type CreateProblemRequest struct {
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Difficulty       string            `json:"difficulty"`
	Constraints      string            `json:"constraints"`
	URL              string            `json:"url"`
	StarterCode      map[string]string `json:"starter_code"`
	SolutionCode     string            `json:"solution_code"`
	SolutionLanguage string            `json:"solution_language"`
	Examples         []model.Example   `json:"examples"`
	TestCases        []model.TestCase  `json:"test_cases"` // Hidden ones
}

// CreateProblem stores the problem with its examples and tests. With a reference
// solution the problem waits in PendingValidation until the solution has been
// judged; without one it is published at once.
func (s *ProblemService) CreateProblem(ctx context.Context, userID string, req CreateProblemRequest) (*model.Problem, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.Description == "" || len(req.TestCases) == 0 {
		return nil, common.Errorf("missing required fields for problem creation: %w", common.ErrBadRequest)
	}
	difficulty := model.ParseDifficulty(req.Difficulty, model.DifficultyMedium)
	if !difficulty.Known() {
		return nil, common.Errorf("unknown difficulty %q: %w", req.Difficulty, common.ErrValidation)
	}
	hasSolution := strings.TrimSpace(req.SolutionCode) != ""
	if hasSolution && !judge.SupportedLanguage(req.SolutionLanguage) {
		return nil, common.Errorf("unsupported solution language %q: %w", req.SolutionLanguage, common.ErrValidation)
	}

	problem := &model.Problem{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Slug:        slug.Make(req.Title), // unique constraint reports duplicates as ErrConflict
		Description: req.Description,
		Difficulty:  difficulty,
		Status:      model.StatusPublished,
		Constraints: req.Constraints,
		StarterCode: req.StarterCode,
		URL:         req.URL,
		CreatedByID: &userID,
	}
	if hasSolution {
		problem.Status = model.StatusPendingValidation
		problem.SolutionCode = &req.SolutionCode
		problem.SolutionLanguage = &req.SolutionLanguage
	}

	for i := range req.Examples { // Ensure examples have UUIDs if not provided
		if req.Examples[i].ID == "" {
			req.Examples[i].ID = uuid.NewString()
		}
		req.Examples[i].ProblemID = problem.ID
	}
	for i := range req.TestCases { // Ensure test cases have UUIDs
		if req.TestCases[i].ID == "" {
			req.TestCases[i].ID = uuid.NewString()
		}
		req.TestCases[i].ProblemID = problem.ID
	}

	err := repository.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.problemRepo.CreateProblem(ctx, tx, problem); err != nil {
			return common.Errorf("failed to create problem in DB: %w", err)
		}
		if err := s.problemRepo.AddExamplesToProblem(ctx, tx, problem.ID, req.Examples); err != nil {
			return common.Errorf("failed to add examples to problem: %w", err)
		}
		if err := s.problemRepo.AddTestCasesToProblem(ctx, tx, problem.ID, req.TestCases); err != nil {
			return common.Errorf("failed to add test cases to problem: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.L().Info("problem_created",
		zap.String("problem_id", problem.ID),
		zap.String("slug", problem.Slug),
		zap.String("status", string(problem.Status)),
	)

	if hasSolution {
		cases := append([]model.TestCase(nil), req.TestCases...)
		if err := s.pool.Submit(func(ctx context.Context) { s.validate(ctx, problem.ID, req.SolutionCode, req.SolutionLanguage, cases) }); err != nil {
			// Problem stays PendingValidation; an admin can resubmit.
			logger.L().Error("problem_validation_not_scheduled", zap.String("problem_id", problem.ID), zap.Error(err))
		}
	}

	problem.Examples = req.Examples   // Populate for response
	problem.TestCases = req.TestCases // Populate for response (admin view)
	return problem, nil
}

// validate judges the reference solution: ACCEPTED publishes, anything else rejects.
// A cancelled run leaves the problem PendingValidation rather than rejecting it.
func (s *ProblemService) validate(ctx context.Context, problemID, code, language string, cases []model.TestCase) {
	if ctx.Err() != nil {
		logger.L().Warn("problem_validation_cancelled", zap.String("problem_id", problemID))
		return
	}
	v := s.evaluator.Evaluate(ctx, code, language, cases)
	if ctx.Err() != nil {
		logger.L().Warn("problem_validation_cancelled", zap.String("problem_id", problemID))
		return
	}
	status := model.StatusRejected
	if v.Status == model.VerdictAccepted {
		status = model.StatusPublished
	}
	if err := s.problemRepo.UpdateProblemStatus(ctx, nil, problemID, status); err != nil {
		logger.L().Error("problem_status_update_failed", zap.String("problem_id", problemID), zap.Error(err))
		return
	}
	logger.L().Info("problem_validated",
		zap.String("problem_id", problemID),
		zap.String("verdict", string(v.Status)),
		zap.String("status", string(status)),
		zap.Int("passed", v.Passed),
		zap.Int("total", v.Total),
	)
}

func (s *ProblemService) GetProblemDetails(ctx context.Context, problemSlug string, userRole string) (*model.Problem, error) {
	problem, err := s.problemRepo.FindProblemBySlug(ctx, problemSlug)
	if err != nil {
		return nil, err // common.ErrNotFound or other errors
	}

	// Filter problem content based on status and user role
	if problem.Status != model.StatusPublished && userRole != model.RoleAdmin {
		return nil, common.ErrNotFound // Treat non-published as not found for regular users
	}

	examples, err := s.problemRepo.GetExamplesByProblemID(ctx, problem.ID)
	if err != nil {
		logger.L().Warn("problem_examples_failed", zap.String("problem_id", problem.ID), zap.Error(err))
		// Continue, but examples will be missing
	}
	problem.Examples = examples

	if userRole == model.RoleAdmin {
		testCases, err := s.problemRepo.GetTestCasesByProblemID(ctx, problem.ID)
		if err != nil {
			logger.L().Warn("problem_test_cases_failed", zap.String("problem_id", problem.ID), zap.Error(err))
		}
		problem.TestCases = testCases
	} else {
		// Regular users don't see solution code or hidden test cases
		problem.SolutionCode = nil
		problem.SolutionLanguage = nil
		problem.TestCases = nil
	}
	return problem, nil
}

func (s *ProblemService) ListProblems(ctx context.Context, page, pageSize int, difficulty string, userRole string) ([]model.Problem, int, error) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize
	if offset < 0 {
		offset = 0
	}

	// For regular users, only show Published problems
	statusFilter := model.StatusPublished
	if userRole == model.RoleAdmin {
		statusFilter = "" // Admin can see all statuses
	}

	problems, total, err := s.problemRepo.ListProblems(ctx, pageSize, offset, model.ParseDifficulty(difficulty, ""), statusFilter)
	if err != nil {
		return nil, 0, err
	}
	if userRole != model.RoleAdmin {
		for i := range problems {
			problems[i].SolutionCode = nil
			problems[i].SolutionLanguage = nil
		}
	}
	return problems, total, nil
}
