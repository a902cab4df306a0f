package catalog

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"strings"
	"sync"

	"code_duel/internal/common"
	"code_duel/internal/domain/model"

	"github.com/gosimple/slug"
	yaml "gopkg.in/yaml.v3"
)

//go:embed problems.yaml
var defaultFiles embed.FS

// Provider supplies duel problems together with their test cases.
type Provider interface {
	RandomProblem(ctx context.Context, difficulty model.Difficulty) (*model.Problem, []model.TestCase, error)
	Problem(ctx context.Context, id string) (*model.Problem, []model.TestCase, error)
}

type fileProblem struct {
	ID          string            `yaml:"id"`
	Title       string            `yaml:"title"`
	Difficulty  string            `yaml:"difficulty"`
	Description string            `yaml:"description"`
	Constraints string            `yaml:"constraints"`
	URL         string            `yaml:"url"`
	StarterCode map[string]string `yaml:"starter_code"`
	Examples    []struct {
		Input       string  `yaml:"input"`
		Output      *string `yaml:"output"`
		Explanation *string `yaml:"explanation"`
	} `yaml:"examples"`
	TestCases []struct {
		Input  string `yaml:"input"`
		Output string `yaml:"output"`
		Hidden *bool  `yaml:"hidden"`
	} `yaml:"test_cases"`
}

type entry struct {
	problem model.Problem
	cases   []model.TestCase
}

// Catalog serves problems from YAML: the embedded defaults, or a file given at startup.
type Catalog struct {
	mu     sync.RWMutex
	byID   map[string]*entry
	byDiff map[model.Difficulty][]*entry
}

// New loads the embedded problem set, or the file at path when it is non-empty.
func New(path string) (*Catalog, error) {
	var (
		raw []byte
		err error
	)
	if strings.TrimSpace(path) != "" {
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read problem catalog %s: %w", path, err)
		}
	} else {
		raw, err = fs.ReadFile(defaultFiles, "problems.yaml")
		if err != nil {
			return nil, fmt.Errorf("read embedded problems: %w", err)
		}
	}
	return Parse(raw)
}

// Parse builds a catalog from YAML. A missing difficulty becomes MEDIUM and a
// missing id becomes the title's slug.
func Parse(raw []byte) (*Catalog, error) {
	var doc struct {
		Problems []fileProblem `yaml:"problems"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse problem catalog: %w", err)
	}

	c := &Catalog{
		byID:   make(map[string]*entry),
		byDiff: make(map[model.Difficulty][]*entry),
	}
	for i, fp := range doc.Problems {
		if strings.TrimSpace(fp.Title) == "" {
			return nil, fmt.Errorf("problem #%d: title is required: %w", i+1, common.ErrValidation)
		}
		e := build(fp)
		if _, dup := c.byID[e.problem.ID]; dup {
			return nil, fmt.Errorf("duplicate problem id %q: %w", e.problem.ID, common.ErrValidation)
		}
		c.byID[e.problem.ID] = e
		c.byDiff[e.problem.Difficulty] = append(c.byDiff[e.problem.Difficulty], e)
	}
	return c, nil
}

func build(fp fileProblem) *entry {
	s := slug.Make(fp.Title)
	id := strings.TrimSpace(fp.ID)
	if id == "" {
		id = s
	}
	p := model.Problem{
		ID:          id,
		Title:       fp.Title,
		Slug:        s,
		Description: strings.TrimSpace(fp.Description),
		Difficulty:  model.ParseDifficulty(fp.Difficulty, model.DifficultyMedium),
		Status:      model.StatusPublished,
		Constraints: fp.Constraints,
		StarterCode: fp.StarterCode,
		URL:         fp.URL,
	}
	for i, ex := range fp.Examples {
		p.Examples = append(p.Examples, model.Example{
			ID:             fmt.Sprintf("%s-ex-%d", id, i+1),
			ProblemID:      id,
			Input:          ex.Input,
			ExpectedOutput: ex.Output,
			Explanation:    ex.Explanation,
			SortOrder:      i + 1,
		})
	}
	cases := make([]model.TestCase, 0, len(fp.TestCases))
	for i, tc := range fp.TestCases {
		hidden := true
		if tc.Hidden != nil {
			hidden = *tc.Hidden
		}
		cases = append(cases, model.TestCase{
			ID:             fmt.Sprintf("%s-tc-%d", id, i+1),
			ProblemID:      id,
			Input:          tc.Input,
			ExpectedOutput: tc.Output,
			IsHidden:       hidden,
			SortOrder:      i + 1,
		})
	}
	return &entry{problem: p, cases: cases}
}

func (c *Catalog) RandomProblem(_ context.Context, difficulty model.Difficulty) (*model.Problem, []model.TestCase, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pool := c.byDiff[difficulty]
	if len(pool) == 0 {
		return nil, nil, fmt.Errorf("no %s problem in catalog: %w", difficulty, common.ErrNotFound)
	}
	p, cases := pool[rand.IntN(len(pool))].clone()
	return p, cases, nil
}

func (c *Catalog) Problem(_ context.Context, id string) (*model.Problem, []model.TestCase, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byID[id]
	if !ok {
		return nil, nil, common.ErrNotFound
	}
	p, cases := e.clone()
	return p, cases, nil
}

// Len returns the number of problems per difficulty.
func (c *Catalog) Len(difficulty model.Difficulty) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byDiff[difficulty])
}

func (e *entry) clone() (*model.Problem, []model.TestCase) {
	p := e.problem
	p.Examples = append([]model.Example(nil), e.problem.Examples...)
	return &p, append([]model.TestCase(nil), e.cases...)
}
