package model

// VerdictStatus is the judging outcome for one case or a whole suite.
type VerdictStatus string

const (
	VerdictAccepted          VerdictStatus = "ACCEPTED"
	VerdictWrongAnswer       VerdictStatus = "WRONG_ANSWER"
	VerdictRuntimeError      VerdictStatus = "RUNTIME_ERROR"
	VerdictTimeLimitExceeded VerdictStatus = "TIME_LIMIT_EXCEEDED"
	VerdictCompilationError  VerdictStatus = "COMPILATION_ERROR"
	// VerdictError marks an execution that never produced a result (sandbox
	// unreachable, malformed reply) or a request that could not be judged.
	VerdictError VerdictStatus = "ERROR"
)

func (s VerdictStatus) severity() int {
	switch s {
	case VerdictWrongAnswer:
		return 1
	case VerdictRuntimeError, VerdictError:
		return 2
	case VerdictTimeLimitExceeded:
		return 3
	case VerdictCompilationError:
		return 4
	default:
		return 0
	}
}

// Worst returns the more severe of a and b:
// COMPILATION_ERROR > TIME_LIMIT_EXCEEDED > RUNTIME_ERROR > WRONG_ANSWER > ACCEPTED.
// ERROR ranks with RUNTIME_ERROR and is folded into it.
//
// The order is strict even where the per-case description reads otherwise: a
// suite with one wrong answer and a later crash reports RUNTIME_ERROR, not
// the WRONG_ANSWER it had already recorded.
func Worst(a, b VerdictStatus) VerdictStatus {
	if a == VerdictError {
		a = VerdictRuntimeError
	}
	if b == VerdictError {
		b = VerdictRuntimeError
	}
	if b.severity() > a.severity() {
		return b
	}
	return a
}

// SubmissionStatus maps a suite verdict onto the persisted submission status.
func (s VerdictStatus) SubmissionStatus() SubmissionStatus {
	switch s {
	case VerdictAccepted:
		return SubmissionAccepted
	case VerdictWrongAnswer:
		return SubmissionWrong
	case VerdictCompilationError:
		return SubmissionCompilationError
	case VerdictTimeLimitExceeded:
		return SubmissionTimeLimitExceeded
	default:
		return SubmissionRuntimeError
	}
}

type TestResult struct {
	Input    string        `json:"input"`
	Expected string        `json:"expected"`
	Actual   string        `json:"actual"`
	Passed   bool          `json:"passed"`
	Status   VerdictStatus `json:"status"`
}

type Verdict struct {
	Status       VerdictStatus `json:"status"`
	Results      []TestResult  `json:"results"`
	CompileError *string       `json:"compile_error,omitempty"`
	Passed       int           `json:"passed"`
	Total        int           `json:"total"`
	Message      string        `json:"message,omitempty"`
}

// ErrorVerdict is the terminal reply for a run or submit that could not be judged.
func ErrorVerdict(message string) *Verdict {
	return &Verdict{Status: VerdictError, Results: []TestResult{}, Message: message}
}

// ExecutionResult is one sandbox run.
type ExecutionResult struct {
	Stdout       string `json:"stdout"`
	Stderr       string `json:"stderr"`
	ExitCode     int    `json:"exit_code"`
	TimedOut     bool   `json:"timed_out"`
	CompileError bool   `json:"compile_error,omitempty"`
}
