package judge

import (
	"context"
	"strings"

	"code_duel/internal/domain/model"
)

const compilationErrorText = "Compilation Error"

// Evaluator runs a submission over a problem's test cases in order.
type Evaluator struct {
	adapter *Adapter
}

func NewEvaluator(adapter *Adapter) *Evaluator {
	return &Evaluator{adapter: adapter}
}

// Evaluate never fails: every sandbox problem is folded into the verdict.
// An empty case list yields ACCEPTED with 0/0.
func (e *Evaluator) Evaluate(ctx context.Context, code, language string, cases []model.TestCase) *model.Verdict {
	v := &model.Verdict{
		Status:  model.VerdictAccepted,
		Results: make([]model.TestResult, 0, len(cases)),
		Total:   len(cases),
	}

	for i, tc := range cases {
		run := e.adapter.Run(ctx, code, language, tc.Input)
		result := model.TestResult{Input: tc.Input, Expected: tc.ExpectedOutput}

		switch run.Outcome {
		case OutcomeCompileError:
			msg := run.Message
			v.CompileError = &msg
			v.Status = model.VerdictCompilationError
			result.Actual = compilationErrorText + ": " + msg
			result.Status = model.VerdictCompilationError
			v.Results = append(v.Results, result)
			// Nothing else would compile either.
			for _, rest := range cases[i+1:] {
				v.Results = append(v.Results, model.TestResult{
					Input:    rest.Input,
					Expected: rest.ExpectedOutput,
					Actual:   compilationErrorText,
					Status:   model.VerdictCompilationError,
				})
			}
			return v

		case OutcomeTimedOut:
			result.Actual = "Time Limit Exceeded"
			result.Status = model.VerdictTimeLimitExceeded

		case OutcomeRuntimeError:
			result.Actual = "Runtime Error: " + run.Message
			result.Status = model.VerdictRuntimeError

		case OutcomeExecutionError:
			result.Actual = run.Message
			result.Status = model.VerdictError

		default:
			result.Actual = strings.TrimSpace(run.Result.Stdout)
			result.Passed = OutputsEqual(result.Actual, tc.ExpectedOutput)
			if result.Passed {
				v.Passed++
				result.Status = model.VerdictAccepted
			} else {
				result.Status = model.VerdictWrongAnswer
			}
		}

		v.Status = model.Worst(v.Status, result.Status)
		v.Results = append(v.Results, result)
	}

	if v.Total > 0 && v.Passed == v.Total {
		v.Status = model.VerdictAccepted
	}
	return v
}
