package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/evanschultz/reeldesk/internal/adapters/server/common"
	"github.com/evanschultz/reeldesk/internal/adapters/storage/sqlite"
	"github.com/evanschultz/reeldesk/internal/app"
)

func newTestDeps(t *testing.T) Dependencies {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	store := app.NewStore(repo, app.StoreConfig{})
	seq := 0
	svc := app.NewService(repo, func() string {
		seq++
		return fmt.Sprintf("s%d", seq)
	}, nil, app.ServiceConfig{Invalidator: store})
	adapter := common.NewAppServiceAdapter(svc, store, common.AdapterConfig{})
	return Dependencies{Collections: adapter, Feed: adapter}
}

func TestNormalizeConfig(t *testing.T) {
	cfg, err := normalizeConfig(Config{APIEndpoint: "api/", MCPEndpoint: " /tools/mcp/ "})
	if err != nil {
		t.Fatalf("normalizeConfig() error = %v", err)
	}
	if cfg.HTTPBind != defaultBindAddress || cfg.ServerName != "reeldesk" || cfg.ServerVersion != "dev" {
		t.Fatalf("unexpected defaults %#v", cfg)
	}
	if cfg.APIEndpoint != "/api" || cfg.MCPEndpoint != "/tools/mcp" {
		t.Fatalf("unexpected endpoints %#v", cfg)
	}
	if got := normalizeEndpoint("/", "/api/v1"); got != "/api/v1" {
		t.Fatalf("normalizeEndpoint(/) = %q, want fallback", got)
	}
	if _, err := normalizeConfig(Config{APIEndpoint: "/x", MCPEndpoint: "x/"}); err == nil {
		t.Fatal("expected endpoint collision error")
	}
}

func TestNewHandlerRequiresCollections(t *testing.T) {
	if _, _, err := NewHandler(Config{}, Dependencies{}); err == nil {
		t.Fatal("NewHandler() error = nil, want missing dependency error")
	}
}

func TestNewHandlerRoutes(t *testing.T) {
	deps := newTestDeps(t)
	handler, cfg, err := NewHandler(Config{}, deps)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	for _, path := range []string{"/healthz", "/readyz", cfg.APIEndpoint + "/collections", cfg.APIEndpoint + "/collections/media/items"} {
		resp, err := srv.Client().Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}

	resp, err := srv.Client().Post(srv.URL+cfg.MCPEndpoint, "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	if err != nil {
		t.Fatalf("POST mcp error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"id":1`) {
		t.Fatalf("mcp ping status = %d body = %s", resp.StatusCode, body)
	}
}

func TestReadinessReportsStoreFailure(t *testing.T) {
	deps := newTestDeps(t)
	deps.Ready = func(context.Context) error { return errors.New("redis down") }
	handler, _, err := NewHandler(Config{}, deps)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503", rec.Code)
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", rec.Code)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{HTTPBind: addr}, newTestDeps(t))
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
