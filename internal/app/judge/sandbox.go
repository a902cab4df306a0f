package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"code_duel/internal/common"
	"code_duel/internal/domain/model"

	"github.com/valyala/fasthttp"
)

// Sandbox compiles and runs untrusted code.
type Sandbox interface {
	Execute(ctx context.Context, code, language, stdin string) (*model.ExecutionResult, error)
}

type languageSpec struct {
	name         string
	versionIndex string
}

var languages = map[string]languageSpec{
	"cpp":        {"cpp17", "0"},
	"python":     {"python3", "4"},
	"java":       {"java", "4"},
	"javascript": {"nodejs", "4"},
}

// SupportedLanguage reports whether language has a sandbox mapping.
func SupportedLanguage(language string) bool {
	_, ok := languages[strings.ToLower(language)]
	return ok
}

func resolveLanguage(language string) languageSpec {
	if spec, ok := languages[strings.ToLower(language)]; ok {
		return spec
	}
	return languages["cpp"]
}

// HTTPSandbox talks to a JDoodle-compatible execute endpoint.
type HTTPSandbox struct {
	url          string
	clientID     string
	clientSecret string
	http         *fasthttp.Client
	timeout      time.Duration
}

type SandboxOption func(*HTTPSandbox)

func WithTimeout(d time.Duration) SandboxOption {
	return func(s *HTTPSandbox) { s.timeout = d }
}

func WithCredentials(clientID, clientSecret string) SandboxOption {
	return func(s *HTTPSandbox) { s.clientID, s.clientSecret = clientID, clientSecret }
}

func WithMaxConnsPerHost(n int) SandboxOption {
	return func(s *HTTPSandbox) { s.http.MaxConnsPerHost = n }
}

func NewHTTPSandbox(url string, opts ...SandboxOption) *HTTPSandbox {
	s := &HTTPSandbox{
		url:     url,
		http:    &fasthttp.Client{ReadTimeout: 30 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type executeRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	Script       string `json:"script"`
	Language     string `json:"language"`
	VersionIndex string `json:"versionIndex"`
	Stdin        string `json:"stdin,omitempty"`
}

type executeResponse struct {
	Output     string `json:"output"`
	StatusCode int    `json:"statusCode"`
}

func (s *HTTPSandbox) Execute(ctx context.Context, code, language, stdin string) (*model.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	spec := resolveLanguage(language)
	payload, err := json.Marshal(executeRequest{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Script:       code,
		Language:     spec.name,
		VersionIndex: spec.versionIndex,
		Stdin:        stdin,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal sandbox request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(s.url)
	req.Header.SetContentType("application/json")
	req.SetBody(payload)

	if err := s.http.DoDeadline(req, resp, s.deadline(ctx)); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			return &model.ExecutionResult{TimedOut: true, ExitCode: -1}, nil
		}
		return nil, fmt.Errorf("sandbox request: %v: %w", err, common.ErrServiceUnavailable)
	}

	if status := resp.StatusCode(); status != fasthttp.StatusOK {
		return nil, fmt.Errorf("sandbox error: status=%d body=%s: %w",
			status, truncate(string(resp.Body()), 256), common.ErrServiceUnavailable)
	}

	var out executeResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode sandbox response: %w", err)
	}
	return interpret(language, out), nil
}

// interpret splits the single output stream into stdout or stderr.
func interpret(language string, out executeResponse) *model.ExecutionResult {
	failed := out.StatusCode != fasthttp.StatusOK
	res := &model.ExecutionResult{Stdout: out.Output}
	if failed {
		res.ExitCode = 1
	}
	switch {
	case LooksLikeCompileError(language, out.Output):
		res.CompileError = true
		res.Stderr, res.Stdout = out.Output, ""
	case failed:
		res.Stderr, res.Stdout = out.Output, ""
	}
	return res
}

func (s *HTTPSandbox) deadline(ctx context.Context) time.Time {
	own := time.Now().Add(s.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(own) {
		return dl
	}
	return own
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
