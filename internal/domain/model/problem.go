package model

import (
	"strings"
	"time"
)

type Difficulty string
type ProblemStatus string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"

	StatusDraft             ProblemStatus = "Draft"
	StatusPendingValidation ProblemStatus = "PendingValidation"
	StatusPublished         ProblemStatus = "Published"
	StatusRejected          ProblemStatus = "Rejected"
)

// ParseDifficulty upper-cases s. Blank input yields fallback. Unknown values are
// kept as-is so callers can still bucket on them.
func ParseDifficulty(s string, fallback Difficulty) Difficulty {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return fallback
	}
	return Difficulty(s)
}

func (d Difficulty) Known() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

type Problem struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	Slug             string            `json:"slug"`
	Description      string            `json:"description"`
	Difficulty       Difficulty        `json:"difficulty"`
	Status           ProblemStatus     `json:"status"`
	Constraints      string            `json:"constraints,omitempty"`
	StarterCode      map[string]string `json:"starter_code,omitempty"` // language -> snippet
	URL              string            `json:"url,omitempty"`
	SolutionCode     *string           `json:"solution_code,omitempty"` // Admin only view
	SolutionLanguage *string           `json:"solution_language,omitempty"`
	CreatedByID      *string           `json:"created_by_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	Examples         []Example         `json:"examples,omitempty"`   // Public test cases
	TestCases        []TestCase        `json:"test_cases,omitempty"` // Hidden test cases (admin only view)
}

type Example struct {
	ID             string  `json:"id"`
	ProblemID      string  `json:"problem_id"`
	Input          string  `json:"input"`
	ExpectedOutput *string `json:"expected_output,omitempty"`
	Explanation    *string `json:"explanation,omitempty"`
	SortOrder      int     `json:"sort_order"`
}

type TestCase struct {
	ID             string `json:"id"`
	ProblemID      string `json:"problem_id"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	IsHidden       bool   `json:"is_hidden"`
	SortOrder      int    `json:"sort_order"`
}
