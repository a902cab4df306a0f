package judge

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"code_duel/internal/domain/model"
)

type fakeSandbox struct {
	calls atomic.Int32
	fn    func(ctx context.Context, code, language, stdin string) (*model.ExecutionResult, error)
}

func (f *fakeSandbox) Execute(ctx context.Context, code, language, stdin string) (*model.ExecutionResult, error) {
	f.calls.Add(1)
	return f.fn(ctx, code, language, stdin)
}

// echoSandbox prints stdin back unless a per-input override is set.
func echoSandbox(overrides map[string]*model.ExecutionResult) *fakeSandbox {
	return &fakeSandbox{fn: func(_ context.Context, _, _, stdin string) (*model.ExecutionResult, error) {
		if res, ok := overrides[stdin]; ok {
			return res, nil
		}
		return &model.ExecutionResult{Stdout: stdin + "\n"}, nil
	}}
}

func cases(pairs ...string) []model.TestCase {
	out := make([]model.TestCase, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.TestCase{Input: pairs[i], ExpectedOutput: pairs[i+1]})
	}
	return out
}

func TestEvaluateMixedWrongAnswer(t *testing.T) {
	ev := NewEvaluator(NewAdapter(echoSandbox(nil), time.Second))
	v := ev.Evaluate(context.Background(), "code", "python", cases("1", "1", "2", "3", "[1, 2]", "[1,2]"))

	if v.Status != model.VerdictWrongAnswer {
		t.Fatalf("status = %s, want WRONG_ANSWER", v.Status)
	}
	if v.Passed != 2 || v.Total != 3 {
		t.Fatalf("passed/total = %d/%d, want 2/3", v.Passed, v.Total)
	}
	if v.Results[1].Passed || !v.Results[0].Passed || !v.Results[2].Passed {
		t.Fatalf("unexpected per-case results: %+v", v.Results)
	}
}

func TestEvaluateCompileErrorShortCircuits(t *testing.T) {
	sb := &fakeSandbox{fn: func(context.Context, string, string, string) (*model.ExecutionResult, error) {
		return &model.ExecutionResult{Stderr: "main.cpp:1:1: error: expected ';'", ExitCode: 1}, nil
	}}
	ev := NewEvaluator(NewAdapter(sb, time.Second))
	v := ev.Evaluate(context.Background(), "int main(", "cpp", cases("1", "1", "2", "2", "3", "3"))

	if got := sb.calls.Load(); got != 1 {
		t.Fatalf("sandbox called %d times, want 1", got)
	}
	if v.Status != model.VerdictCompilationError || v.CompileError == nil {
		t.Fatalf("status = %s compileError=%v", v.Status, v.CompileError)
	}
	if len(v.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(v.Results))
	}
	for i, r := range v.Results {
		if r.Status != model.VerdictCompilationError || r.Passed {
			t.Fatalf("case %d = %+v", i, r)
		}
	}
	if !strings.HasPrefix(v.Results[0].Actual, "Compilation Error: ") || v.Results[2].Actual != "Compilation Error" {
		t.Fatalf("unexpected compile texts: %q / %q", v.Results[0].Actual, v.Results[2].Actual)
	}
}

func TestEvaluateTimeoutContinues(t *testing.T) {
	sb := echoSandbox(map[string]*model.ExecutionResult{"slow": {TimedOut: true}})
	ev := NewEvaluator(NewAdapter(sb, time.Second))
	v := ev.Evaluate(context.Background(), "code", "python", cases("slow", "x", "2", "2"))

	if sb.calls.Load() != 2 {
		t.Fatalf("expected both cases to run, got %d calls", sb.calls.Load())
	}
	if v.Status != model.VerdictTimeLimitExceeded || v.Passed != 1 {
		t.Fatalf("status=%s passed=%d", v.Status, v.Passed)
	}
}

func TestEvaluateRuntimeOutranksWrongAnswer(t *testing.T) {
	sb := echoSandbox(map[string]*model.ExecutionResult{
		"boom": {Stderr: "Traceback (most recent call last):\nZeroDivisionError: division by zero", ExitCode: 1},
	})
	ev := NewEvaluator(NewAdapter(sb, time.Second))
	v := ev.Evaluate(context.Background(), "code", "python", cases("1", "2", "boom", "0"))

	if v.Status != model.VerdictRuntimeError {
		t.Fatalf("status = %s, want RUNTIME_ERROR", v.Status)
	}
	if !strings.HasPrefix(v.Results[1].Actual, "Runtime Error: ") {
		t.Fatalf("actual = %q", v.Results[1].Actual)
	}
}

func TestEvaluateSandboxFailureIsRuntimeError(t *testing.T) {
	sb := &fakeSandbox{fn: func(context.Context, string, string, string) (*model.ExecutionResult, error) {
		return nil, errors.New("connection refused")
	}}
	ev := NewEvaluator(NewAdapter(sb, time.Second))
	v := ev.Evaluate(context.Background(), "code", "python", cases("1", "1"))

	if v.Status != model.VerdictRuntimeError {
		t.Fatalf("status = %s, want RUNTIME_ERROR", v.Status)
	}
	if v.Results[0].Status != model.VerdictError || !strings.Contains(v.Results[0].Actual, "connection refused") {
		t.Fatalf("case = %+v", v.Results[0])
	}
}

func TestEvaluateSandboxPanicIsContained(t *testing.T) {
	sb := &fakeSandbox{fn: func(context.Context, string, string, string) (*model.ExecutionResult, error) {
		panic("malformed")
	}}
	v := NewEvaluator(NewAdapter(sb, time.Second)).Evaluate(context.Background(), "c", "cpp", cases("1", "1"))
	if v.Status != model.VerdictRuntimeError {
		t.Fatalf("status = %s", v.Status)
	}
}

func TestEvaluateAllPassAndEmpty(t *testing.T) {
	ev := NewEvaluator(NewAdapter(echoSandbox(nil), time.Second))
	v := ev.Evaluate(context.Background(), "code", "python", cases("5", "5", "[1,2]", "[1, 2]"))
	if v.Status != model.VerdictAccepted || v.Passed != 2 {
		t.Fatalf("status=%s passed=%d", v.Status, v.Passed)
	}

	empty := ev.Evaluate(context.Background(), "code", "python", nil)
	if empty.Status != model.VerdictAccepted || empty.Total != 0 {
		t.Fatalf("empty suite = %+v", empty)
	}
}

func TestAdapterOwnDeadlineIsTimeLimit(t *testing.T) {
	sb := &fakeSandbox{fn: func(ctx context.Context, _, _, _ string) (*model.ExecutionResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	run := NewAdapter(sb, 20*time.Millisecond).Run(context.Background(), "c", "cpp", "")
	if run.Outcome != OutcomeTimedOut {
		t.Fatalf("outcome = %s, want timed_out", run.Outcome)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		language string
		res      model.ExecutionResult
		want     Outcome
	}{
		{"ok", "cpp", model.ExecutionResult{Stdout: "1"}, OutcomeCompleted},
		{"flagged compile", "python", model.ExecutionResult{CompileError: true, Stderr: "x"}, OutcomeCompileError},
		{"gcc message", "cpp", model.ExecutionResult{ExitCode: 1, Stderr: "a.cpp:2: error: boom"}, OutcomeCompileError},
		{"syntax error", "python", model.ExecutionResult{ExitCode: 1, Stderr: "SyntaxError: invalid syntax"}, OutcomeCompileError},
		{"runtime", "cpp", model.ExecutionResult{ExitCode: 139, Stderr: "Segmentation fault"}, OutcomeRuntimeError},
		{"nonzero without stderr", "cpp", model.ExecutionResult{ExitCode: 1}, OutcomeCompleted},
		{"timeout wins", "cpp", model.ExecutionResult{TimedOut: true, ExitCode: 1, Stderr: "error: x"}, OutcomeTimedOut},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.res
			if got := Classify(tt.language, &res).Outcome; got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPrepareSourceJava(t *testing.T) {
	bare := PrepareSource(`System.out.println("hi");`, "java")
	if !strings.Contains(bare, "public class Main") || !strings.Contains(bare, "public static void main(String[] args)") {
		t.Fatalf("bare statements not wrapped:\n%s", bare)
	}

	mainOnly := PrepareSource("public static void main(String[] a) { }", "java")
	if strings.Count(mainOnly, "static void main") != 1 || !strings.HasPrefix(mainOnly, "public class Main {") {
		t.Fatalf("main method not wrapped once:\n%s", mainOnly)
	}

	full := "public class Solution { public static void main(String[] a) {} }"
	if got := PrepareSource(full, "Java"); got != full {
		t.Fatalf("complete class should be unchanged, got:\n%s", got)
	}

	if got := PrepareSource("print(1)", "python"); got != "print(1)" {
		t.Fatalf("python source changed: %q", got)
	}
}
