package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ecovolt/pkg/client"
	"ecovolt/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func serve(t *testing.T, db Pinger, path string) (int, HealthResponse) {
	t.Helper()
	router := httprouter.New()
	NewHealthHandler(db, logger.Discard()).RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, resp
}

func TestHealth_AlwaysOK(t *testing.T) {
	code, resp := serve(t, pingFunc(func(context.Context) error {
		return errors.New("down")
	}), "/health")

	if code != http.StatusOK || resp.Status != "ok" {
		t.Errorf("expected ok, got %d %+v", code, resp)
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name     string
		db       Pinger
		wantCode int
		wantDB   string
	}{
		{"memory backend", client.NewClient(), http.StatusOK, "ok"},
		{"mongo up", pingFunc(func(context.Context) error { return nil }), http.StatusOK, "ok"},
		{"mongo down", pingFunc(func(context.Context) error { return errors.New("no primary") }), http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := serve(t, tt.db, "/ready")
			if code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, code)
			}
			if resp.Database != tt.wantDB {
				t.Errorf("expected database %q, got %q", tt.wantDB, resp.Database)
			}
		})
	}
}
