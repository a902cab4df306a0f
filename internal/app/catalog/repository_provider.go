package catalog

import (
	"context"
	"fmt"

	"code_duel/internal/domain/model"
	"code_duel/internal/domain/repository"
)

// RepositoryProvider serves published problems stored through a ProblemRepository.
type RepositoryProvider struct {
	problems repository.ProblemRepository
}

func NewRepositoryProvider(problems repository.ProblemRepository) *RepositoryProvider {
	return &RepositoryProvider{problems: problems}
}

func (p *RepositoryProvider) RandomProblem(ctx context.Context, difficulty model.Difficulty) (*model.Problem, []model.TestCase, error) {
	problem, err := p.problems.RandomPublished(ctx, difficulty)
	if err != nil {
		return nil, nil, err
	}
	return p.withDetails(ctx, problem)
}

func (p *RepositoryProvider) Problem(ctx context.Context, id string) (*model.Problem, []model.TestCase, error) {
	problem, err := p.problems.FindProblemByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return p.withDetails(ctx, problem)
}

func (p *RepositoryProvider) withDetails(ctx context.Context, problem *model.Problem) (*model.Problem, []model.TestCase, error) {
	if problem.Difficulty == "" {
		problem.Difficulty = model.DifficultyMedium
	}
	examples, err := p.problems.GetExamplesByProblemID(ctx, problem.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("examples for %s: %w", problem.ID, err)
	}
	cases, err := p.problems.GetTestCasesByProblemID(ctx, problem.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("test cases for %s: %w", problem.ID, err)
	}
	problem.Examples = examples
	return problem, cases, nil
}

var (
	_ Provider = (*Catalog)(nil)
	_ Provider = (*RepositoryProvider)(nil)
)
