package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("builder", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			Fatal().
			WithContext("file", "assetpipe.yaml").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if !err.IsFatal() {
			t.Error("expected fatal severity")
		}
		if file, ok := err.Context().GetString("file"); !ok || file != "assetpipe.yaml" {
			t.Errorf("expected context file=assetpipe.yaml, got %q", file)
		}
	})

	t.Run("wrapped chain", func(t *testing.T) {
		cause := stderrors.New("disk full")
		err := fmt.Errorf("outer: %w", WrapError(cause, CategoryFileSystem, "write manifest").Build())

		if !HasCategory(err, CategoryFileSystem) {
			t.Error("expected filesystem category through wrapping")
		}
		if !stderrors.Is(err, cause) {
			t.Error("expected cause to be reachable")
		}
		if GetCategory(stderrors.New("plain")) != CategoryInternal {
			t.Error("unclassified errors default to internal")
		}
	})
}

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, 0},
		{"validation", ValidationError("bad target").Build(), 2},
		{"config", ConfigError("bad yaml").Build(), 7},
		{"build", BuildError("build failed").Build(), 11},
		{"tool", NewError(CategoryTool, "sass failed").Build(), 11},
		{"runtime", RuntimeError("server crashed").Build(), 12},
		{"unclassified", stderrors.New("unknown"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_Report(t *testing.T) {
	var logs, out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	adapter := NewCLIErrorAdapter(false, logger)

	err := WrapError(stderrors.New("exit status 1"), CategoryBuild, "target build failed").
		WithContext("target", "build").
		Build()
	code := adapter.Report(&out, err)

	if code != 11 {
		t.Errorf("expected exit code 11, got %d", code)
	}
	if got := out.String(); got != "Error: target build failed: exit status 1\n" {
		t.Errorf("unexpected message %q", got)
	}
	if !bytes.Contains(logs.Bytes(), []byte("target=build")) {
		t.Errorf("expected context in log output, got %q", logs.String())
	}
}

func TestHTTPErrorAdapter(t *testing.T) {
	adapter := NewHTTPErrorAdapter(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	adapter.WriteErrorResponse(rec, req, NewError(CategoryServer, "upstream unavailable").Build())

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"code":"server"`)) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}
