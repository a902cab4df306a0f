package judge

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"code_duel/internal/domain/model"
	"code_duel/internal/platform/logger"

	"go.uber.org/zap"
)

// Outcome classifies a single sandbox run.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeCompileError
	OutcomeTimedOut
	OutcomeRuntimeError
	// OutcomeExecutionError means the sandbox never produced a result.
	OutcomeExecutionError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCompileError:
		return "compile_error"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeRuntimeError:
		return "runtime_error"
	case OutcomeExecutionError:
		return "execution_error"
	}
	return "unknown"
}

type Run struct {
	Outcome Outcome
	Result  *model.ExecutionResult
	// Message carries compiler output, stderr, or the execution failure.
	Message string
}

// Adapter gives every sandbox call its own deadline and classifies the result.
type Adapter struct {
	sandbox Sandbox
	timeout time.Duration
}

func NewAdapter(sandbox Sandbox, timeout time.Duration) *Adapter {
	return &Adapter{sandbox: sandbox, timeout: timeout}
}

func (a *Adapter) Run(ctx context.Context, code, language, stdin string) (run Run) {
	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("sandbox_panic", zap.Any("panic", r), zap.String("language", language))
			run = Run{Outcome: OutcomeExecutionError, Message: fmt.Sprintf("Execution failed: %v", r)}
		}
	}()

	runCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	res, err := a.sandbox.Execute(runCtx, PrepareSource(code, language), language, stdin)
	if err != nil {
		// Our own deadline firing is a time limit, not an infrastructure failure.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return Run{Outcome: OutcomeTimedOut, Result: &model.ExecutionResult{TimedOut: true, ExitCode: -1}}
		}
		return Run{Outcome: OutcomeExecutionError, Message: "Execution failed: " + err.Error()}
	}
	if res == nil {
		return Run{Outcome: OutcomeExecutionError, Message: "Execution failed: empty sandbox response"}
	}
	return Classify(language, res)
}

// Classify decides the outcome of a finished run.
func Classify(language string, res *model.ExecutionResult) Run {
	switch {
	case res.TimedOut:
		return Run{Outcome: OutcomeTimedOut, Result: res}
	case res.CompileError || (res.ExitCode != 0 && LooksLikeCompileError(language, res.Stderr)):
		return Run{Outcome: OutcomeCompileError, Result: res, Message: res.Stderr}
	case res.ExitCode != 0 && res.Stderr != "":
		return Run{Outcome: OutcomeRuntimeError, Result: res, Message: res.Stderr}
	default:
		return Run{Outcome: OutcomeCompleted, Result: res}
	}
}

// LooksLikeCompileError applies the compiler-message heuristics used for
// sandboxes that report compiler and program output on one stream.
func LooksLikeCompileError(language, output string) bool {
	if output == "" {
		return false
	}
	hasError := strings.Contains(output, "error:")
	switch {
	case hasError && !strings.Contains(output, "runtime error"):
		return true
	case strings.Contains(output, "compilation terminated"):
		return true
	case strings.Contains(output, "SyntaxError"):
		return true
	case strings.EqualFold(language, "java") && hasError:
		return true
	}
	return false
}

var (
	javaTypeDecl   = regexp.MustCompile(`\b(class|interface|enum)\s+\w+`)
	javaMainMethod = regexp.MustCompile(`public\s+static\s+void\s+main\s*\(`)
)

// PrepareSource wraps bare Java statements or a lone main method in a Main class.
// Other languages pass through unchanged.
func PrepareSource(code, language string) string {
	if !strings.EqualFold(language, "java") {
		return code
	}
	trimmed := strings.TrimSpace(code)
	hasType := javaTypeDecl.MatchString(trimmed)
	hasMain := javaMainMethod.MatchString(trimmed)

	switch {
	case hasType:
		return trimmed
	case hasMain:
		return "public class Main {\n    " + trimmed + "\n}"
	default:
		return "public class Main {\n" +
			"    public static void main(String[] args) {\n" +
			"        " + trimmed + "\n" +
			"    }\n" +
			"}"
	}
}
