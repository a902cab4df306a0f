package model

import (
	"encoding/json"
	"time"
)

type SubmissionStatus string

const (
	SubmissionPending           SubmissionStatus = "PENDING"
	SubmissionAccepted          SubmissionStatus = "ACCEPTED"
	SubmissionWrong             SubmissionStatus = "WRONG"
	SubmissionCompilationError  SubmissionStatus = "COMPILATION_ERROR"
	SubmissionRuntimeError      SubmissionStatus = "RUNTIME_ERROR"
	SubmissionTimeLimitExceeded SubmissionStatus = "TIME_LIMIT_EXCEEDED"
)

// Terminal reports whether the status is final. Only PENDING is not.
func (s SubmissionStatus) Terminal() bool { return s != SubmissionPending }

// Submission is one submit attempt. Code, language, match and problem are fixed at
// creation; only the judging fields change, once.
type Submission struct {
	ID              string           `json:"id"`
	UserID          string           `json:"user_id"`
	MatchID         string           `json:"match_id"`
	ProblemID       string           `json:"problem_id"`
	Code            string           `json:"code"`
	Language        string           `json:"language"`
	Status          SubmissionStatus `json:"status"`
	TestCasesPassed int              `json:"test_cases_passed"`
	TestCasesTotal  int              `json:"test_cases_total"`
	ExecutionOutput json.RawMessage  `json:"execution_output,omitempty"`
	SubmittedAt     time.Time        `json:"submitted_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}
