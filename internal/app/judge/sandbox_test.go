package judge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"code_duel/internal/common"
)

func newJDoodle(t *testing.T, handler func(req executeRequest) (int, any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req executeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		status, body := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPSandboxSuccess(t *testing.T) {
	var got executeRequest
	srv := newJDoodle(t, func(req executeRequest) (int, any) {
		got = req
		return http.StatusOK, map[string]any{"output": "42\n", "statusCode": 200, "memory": "1024", "cpuTime": "0.01"}
	})

	sb := NewHTTPSandbox(srv.URL, WithCredentials("id", "secret"), WithTimeout(2*time.Second))
	res, err := sb.Execute(context.Background(), "print(42)", "python", "in")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Stdout != "42\n" || res.ExitCode != 0 || res.CompileError {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got.Language != "python3" || got.VersionIndex != "4" || got.ClientID != "id" || got.Stdin != "in" {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestHTTPSandboxUnknownLanguageFallsBackToCpp(t *testing.T) {
	var got executeRequest
	srv := newJDoodle(t, func(req executeRequest) (int, any) {
		got = req
		return http.StatusOK, map[string]any{"output": "", "statusCode": 200}
	})
	if _, err := NewHTTPSandbox(srv.URL).Execute(context.Background(), "x", "brainfuck", ""); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got.Language != "cpp17" || got.VersionIndex != "0" {
		t.Fatalf("fallback = %s/%s", got.Language, got.VersionIndex)
	}
}

func TestHTTPSandboxCompileAndRuntime(t *testing.T) {
	srv := newJDoodle(t, func(req executeRequest) (int, any) {
		if req.Stdin == "compile" {
			return http.StatusOK, map[string]any{"output": "jdoodle.cpp:3:5: error: 'x' was not declared", "statusCode": 200}
		}
		return http.StatusOK, map[string]any{"output": "Exception in thread main", "statusCode": 1}
	})
	sb := NewHTTPSandbox(srv.URL)

	res, err := sb.Execute(context.Background(), "x", "cpp", "compile")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.CompileError || res.Stdout != "" || Classify("cpp", res).Outcome != OutcomeCompileError {
		t.Fatalf("compile result = %+v", res)
	}

	res, err = sb.Execute(context.Background(), "x", "cpp", "run")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ExitCode != 1 || res.Stderr == "" || Classify("cpp", res).Outcome != OutcomeRuntimeError {
		t.Fatalf("runtime result = %+v", res)
	}
}

func TestHTTPSandboxHTTPErrorIsUnavailable(t *testing.T) {
	srv := newJDoodle(t, func(executeRequest) (int, any) {
		return http.StatusTooManyRequests, map[string]any{"error": "daily limit"}
	})
	_, err := NewHTTPSandbox(srv.URL).Execute(context.Background(), "x", "cpp", "")
	if !errors.Is(err, common.ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}
}

func TestHTTPSandboxTimeout(t *testing.T) {
	srv := newJDoodle(t, func(executeRequest) (int, any) {
		time.Sleep(300 * time.Millisecond)
		return http.StatusOK, map[string]any{"output": "late", "statusCode": 200}
	})
	res, err := NewHTTPSandbox(srv.URL, WithTimeout(50*time.Millisecond)).Execute(context.Background(), "x", "cpp", "")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.TimedOut {
		t.Fatalf("expected timed out result, got %+v", res)
	}
}
