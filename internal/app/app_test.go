package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/intrascribe/intrascribe/internal/app"
	"github.com/intrascribe/intrascribe/internal/config"
	regmock "github.com/intrascribe/intrascribe/internal/registry/mock"
	mediamock "github.com/intrascribe/intrascribe/pkg/media/mock"
	objmock "github.com/intrascribe/intrascribe/pkg/objectstore/mock"
	diarizemock "github.com/intrascribe/intrascribe/pkg/provider/diarize/mock"
	sttmock "github.com/intrascribe/intrascribe/pkg/provider/stt/mock"
)

// newTestApp wires an App against miniredis and mocks for everything that
// would otherwise need a network.
func newTestApp(t *testing.T) *app.App {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Store.RedisAddr = mr.Addr()
	cfg.Server.ServiceToken = "test-token"

	a, err := app.New(t.Context(), cfg,
		app.WithRegistry(regmock.New()),
		app.WithObjectStore(objmock.New()),
		app.WithMediaRouter(mediamock.New()),
		app.WithSTT(&sttmock.Client{}),
		app.WithDiarize(&diarizemock.Client{}),
	)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Shutdown(ctx); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})
	return a
}

func TestNew_WiresHTTPSurface(t *testing.T) {
	a := newTestApp(t)
	ts := httptest.NewServer(a.Handler())
	defer ts.Close()

	body, _ := json.Marshal(map[string]string{"title": "retro"})
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/sessions", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-User-ID", "alice")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var created map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created["status"] != "created" {
		t.Errorf("session status = %v, want created", created["status"])
	}
}

func TestNew_HealthAndMetricsEndpoints(t *testing.T) {
	a := newTestApp(t)
	ts := httptest.NewServer(a.Handler())
	defer ts.Close()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	a := newTestApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancel")
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}
