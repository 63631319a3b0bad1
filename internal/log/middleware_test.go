package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func bufferLogger(buf *bytes.Buffer) *Logger {
	return New(Config{
		Component: ComponentHTTP,
		Handler:   slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestMiddlewareChainScopesLogger(t *testing.T) {
	var buf bytes.Buffer
	chain := Middleware(bufferLogger(&buf))(
		RequestIDMiddleware(func(*http.Request) string { return "req-42" })(
			ComponentMiddleware(ComponentBackend)(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					FromContext(r.Context()).InfoContext(r.Context(), "handled")
				}))))

	chain.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	out := buf.String()
	for _, want := range []string{`"msg":"handled"`, `"request_id":"req-42"`, `"component":"backend"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log line missing %s: %s", want, out)
		}
	}
}

func TestFromContextOr(t *testing.T) {
	fallback := Discard()
	if got := FromContextOr(context.Background(), fallback); got != fallback {
		t.Fatalf("expected fallback without a scoped logger")
	}

	scoped := Discard().WithComponent(ComponentHTTP)
	ctx := context.WithValue(context.Background(), LoggerContextKey, scoped)
	if got := FromContextOr(ctx, fallback); got != scoped {
		t.Fatalf("expected the scoped logger")
	}
	if got := FromContext(context.Background()); got.Component() != "unknown" {
		t.Fatalf("expected default logger, got component %q", got.Component())
	}
}
