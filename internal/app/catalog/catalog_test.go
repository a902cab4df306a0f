package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"code_duel/internal/common"
	"code_duel/internal/domain/model"
	"code_duel/internal/domain/repository"
)

func TestEmbeddedCatalogCoversEveryDifficulty(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, d := range []model.Difficulty{model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard} {
		if c.Len(d) == 0 {
			t.Fatalf("no %s problems", d)
		}
		p, cases, err := c.RandomProblem(context.Background(), d)
		if err != nil {
			t.Fatalf("RandomProblem(%s): %v", d, err)
		}
		if p.Difficulty != d || len(cases) == 0 || p.Status != model.StatusPublished {
			t.Fatalf("problem %+v with %d cases", p, len(cases))
		}
	}
}

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte(`
problems:
  - title: Hello World
    test_cases:
      - input: ""
        output: "hello"
      - input: "x"
        output: "y"
        hidden: false
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	p, cases, err := c.Problem(context.Background(), "hello-world")
	if err != nil {
		t.Fatalf("Problem: %v", err)
	}
	if p.Difficulty != model.DifficultyMedium || p.Slug != "hello-world" {
		t.Fatalf("defaults not applied: %+v", p)
	}
	if !cases[0].IsHidden || cases[1].IsHidden || cases[1].SortOrder != 2 {
		t.Fatalf("cases = %+v", cases)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	if _, err := Parse([]byte("problems:\n  - description: no title\n")); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("missing title err = %v", err)
	}
	dup := "problems:\n  - {id: a, title: One}\n  - {id: a, title: Two}\n"
	if _, err := Parse([]byte(dup)); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("duplicate id err = %v", err)
	}
	if _, err := Parse([]byte("problems: [")); err == nil {
		t.Fatalf("malformed yaml accepted")
	}
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "problems.yaml")
	os.WriteFile(path, []byte("problems:\n  - {id: only, title: Only One, difficulty: hard}\n"), 0o600)

	c, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Len(model.DifficultyHard) != 1 || c.Len(model.DifficultyEasy) != 0 {
		t.Fatalf("file override not used")
	}
	if _, _, err := c.RandomProblem(context.Background(), model.DifficultyEasy); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("empty bucket err = %v", err)
	}
}

func TestCloneIsolation(t *testing.T) {
	c, _ := New("")
	p, cases, _ := c.RandomProblem(context.Background(), model.DifficultyEasy)
	p.Title = "mutated"
	cases[0].ExpectedOutput = "mutated"

	again, againCases, _ := c.Problem(context.Background(), p.ID)
	if again.Title == "mutated" || againCases[0].ExpectedOutput == "mutated" {
		t.Fatalf("catalog entry was mutated through a returned copy")
	}
}

func TestRepositoryProvider(t *testing.T) {
	ctx := context.Background()
	problems := repository.NewMemoryStore().Problems()
	problems.CreateProblem(ctx, nil, &model.Problem{ID: "p1", Slug: "p1", Title: "P1", Difficulty: model.DifficultyEasy, Status: model.StatusPublished})
	problems.CreateProblem(ctx, nil, &model.Problem{ID: "p2", Slug: "p2", Title: "P2", Difficulty: model.DifficultyEasy, Status: model.StatusRejected})
	problems.AddTestCasesToProblem(ctx, nil, "p1", []model.TestCase{{ID: "t1", Input: "1", ExpectedOutput: "1"}})

	provider := NewRepositoryProvider(problems)
	p, cases, err := provider.RandomProblem(ctx, model.DifficultyEasy)
	if err != nil || p.ID != "p1" || len(cases) != 1 {
		t.Fatalf("RandomProblem = %+v %v %v", p, cases, err)
	}
	if _, _, err := provider.RandomProblem(ctx, model.DifficultyHard); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("empty difficulty err = %v", err)
	}
	if _, _, err := provider.Problem(ctx, "nope"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("unknown id err = %v", err)
	}
}
