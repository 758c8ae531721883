package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// driveRequest runs one request through RequestLogger with a handler that
// writes the given status, returning the captured logs, the recorder, and
// the request ID the handler saw in its context.
func driveRequest(t *testing.T, status int, mutate func(*http.Request)) (*observer.ObservedLogs, *httptest.ResponseRecorder, string) {
	t.Helper()

	core, logs := observer.New(zap.DebugLevel)
	var ctxID string
	handler := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = GetRequestID(r.Context())
		w.WriteHeader(status)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/kpi/efficiency", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return logs, rec, ctxID
}

func TestRequestLogger_LevelTracksStatus(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		wantLevel   zapcore.Level
		wantMessage string
	}{
		{"success logs at debug", http.StatusOK, zap.DebugLevel, "HTTP request"},
		{"redirect logs at debug", http.StatusFound, zap.DebugLevel, "HTTP request"},
		{"client error logs at warn", http.StatusNotFound, zap.WarnLevel, "HTTP request failed"},
		{"forbidden logs at warn", http.StatusForbidden, zap.WarnLevel, "HTTP request failed"},
		{"server error logs at warn", http.StatusInternalServerError, zap.WarnLevel, "HTTP request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs, _, _ := driveRequest(t, tt.status, nil)
			if logs.Len() != 1 {
				t.Fatalf("expected 1 log entry, got %d", logs.Len())
			}

			entry := logs.All()[0]
			if entry.Level != tt.wantLevel {
				t.Errorf("status %d: expected level %v, got %v", tt.status, tt.wantLevel, entry.Level)
			}
			if entry.Message != tt.wantMessage {
				t.Errorf("status %d: expected message %q, got %q", tt.status, tt.wantMessage, entry.Message)
			}
			if got := entry.ContextMap()["status"]; got != int64(tt.status) {
				t.Errorf("expected logged status %d, got %v", tt.status, got)
			}
		})
	}
}

func TestRequestLogger_LogsRequestShape(t *testing.T) {
	logs, _, _ := driveRequest(t, http.StatusOK, nil)

	fields := logs.All()[0].ContextMap()
	if fields["method"] != http.MethodGet {
		t.Errorf("expected method field, got %v", fields["method"])
	}
	if fields["path"] != "/api/kpi/efficiency" {
		t.Errorf("expected path field, got %v", fields["path"])
	}
	for _, key := range []string{"duration", "remote_addr", "request_id"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("expected %s field in log entry", key)
		}
	}
}

func TestRequestLogger_RequestID(t *testing.T) {
	t.Run("generated when absent", func(t *testing.T) {
		logs, rec, ctxID := driveRequest(t, http.StatusOK, nil)

		if ctxID == "" {
			t.Fatal("expected a request ID in the handler context")
		}
		if got := rec.Header().Get(RequestIDHeader); got != ctxID {
			t.Errorf("response header %q should echo the context ID %q", got, ctxID)
		}
		if got := logs.All()[0].ContextMap()["request_id"]; got != ctxID {
			t.Errorf("logged request_id %v should match context ID %q", got, ctxID)
		}
	})

	t.Run("caller-supplied ID is kept", func(t *testing.T) {
		_, rec, ctxID := driveRequest(t, http.StatusOK, func(req *http.Request) {
			req.Header.Set(RequestIDHeader, "caller-supplied-id")
		})

		if ctxID != "caller-supplied-id" {
			t.Errorf("expected caller-supplied request ID, got %q", ctxID)
		}
		if got := rec.Header().Get(RequestIDHeader); got != "caller-supplied-id" {
			t.Errorf("expected header to echo caller ID, got %q", got)
		}
	})
}

func TestRequestLogger_NilLoggerPassesThrough(t *testing.T) {
	called := false
	handler := RequestLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !called {
		t.Error("expected the wrapped handler to run without a logger")
	}
}

func TestResponseWriter_StatusCapture(t *testing.T) {
	t.Run("repeated WriteHeader keeps the first status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

		rw.WriteHeader(http.StatusCreated)
		rw.WriteHeader(http.StatusInternalServerError)

		if rw.statusCode != http.StatusCreated {
			t.Errorf("expected captured status %d, got %d", http.StatusCreated, rw.statusCode)
		}
		if rec.Code != http.StatusCreated {
			t.Errorf("expected recorded status %d, got %d", http.StatusCreated, rec.Code)
		}
	})

	t.Run("Write implies 200", func(t *testing.T) {
		rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}

		if _, err := rw.Write([]byte("hello")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !rw.headerWritten || rw.statusCode != http.StatusOK {
			t.Errorf("expected implicit 200, got written=%v status=%d", rw.headerWritten, rw.statusCode)
		}
	})

	t.Run("explicit status survives a later Write", func(t *testing.T) {
		rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}

		rw.WriteHeader(http.StatusAccepted)
		if _, err := rw.Write([]byte("hello")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rw.statusCode != http.StatusAccepted {
			t.Errorf("expected status %d, got %d", http.StatusAccepted, rw.statusCode)
		}
	})
}

func TestRequestLogger_HandlerDoubleWriteHeader(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	handler := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got := logs.All()[0].ContextMap()["status"]; got != int64(http.StatusBadRequest) {
		t.Errorf("expected first status %d to win, got %v", http.StatusBadRequest, got)
	}
}
