package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"peerprep/interview/internal/config"
	"peerprep/interview/internal/handlers"
	"peerprep/interview/internal/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:                "0",
		AppEnv:              "test",
		PrincipalSQLitePath: filepath.Join(t.TempDir(), "principals.db"),
		JWTSecret:           "main-test-secret",
		BcryptCost:          4,
		ChannelQueue:        config.QueueInline,
		CORSOrigins:         []string{"http://localhost:3000"},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()
	a, err := newApp(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.start(ctx, zap.NewNop())
	t.Cleanup(func() {
		cancel()
		a.stop(context.Background())
	})
	return a
}

func TestNewAppInMemory(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /healthz, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	a.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /readyz, got %d: %s", rec.Code, rec.Body.String())
	}
	var ready handlers.ReadinessResponse
	if err := json.NewDecoder(rec.Body).Decode(&ready); err != nil {
		t.Fatalf("decode readiness: %v", err)
	}
	if _, ok := ready.Checks["principals"]; !ok {
		t.Fatalf("expected principals check, got %v", ready.Checks)
	}

	rec = httptest.NewRecorder()
	a.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
}

func TestNewAppCreatesSessionWithBearer(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice", "name": "Alice"}).
		SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{"problem":"Two Sum","difficulty":"Easy"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.SessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Session.Host != "alice" || resp.Session.IsProtected {
		t.Fatalf("unexpected session: %+v", resp.Session)
	}
	if resp.Session.HostProfile == nil || resp.Session.HostProfile.Name != "Alice" {
		t.Fatalf("expected provisioned host profile, got %+v", resp.Session.HostProfile)
	}
}

func TestNewAppWithRedisQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisAddr = mr.Addr()
	cfg.ChannelQueue = config.QueueRedis

	a := newTestApp(t, cfg)
	if a.worker == nil {
		t.Fatal("expected redis worker to be configured")
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /readyz, got %d: %s", rec.Code, rec.Body.String())
	}
}
