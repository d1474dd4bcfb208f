package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sentinelstack/device-sentinel/internal/config"
	"github.com/sentinelstack/device-sentinel/internal/services"
)

type stubProvider struct {
	status services.Status
}

func (p *stubProvider) Status() services.Status { return p.status }

func startTestServer(t *testing.T, provider StatusProvider) *Server {
	t.Helper()
	srv, err := NewServer(config.ServerConfig{Address: "127.0.0.1:0"}, provider)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			t.Errorf("serve: %v", err)
		}
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv
}

func TestHealthEndpoint(t *testing.T) {
	srv := startTestServer(t, &stubProvider{})

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", srv.Addr()))
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("healthz body = %v", body)
	}
}

func TestStatusEndpoint(t *testing.T) {
	provider := &stubProvider{status: services.Status{
		Mode:          "watch",
		Device:        "nrf5340-dk",
		Sessions:      3,
		AlertsEmitted: 7,
	}}
	srv := startTestServer(t, provider)

	resp, err := http.Get(fmt.Sprintf("http://%s/status", srv.Addr()))
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()

	var got services.Status
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Device != "nrf5340-dk" || got.Sessions != 3 || got.AlertsEmitted != 7 {
		t.Fatalf("status = %+v", got)
	}
}

func TestStatusWithoutProvider(t *testing.T) {
	rec := httptest.NewRecorder()
	statusHandler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status without provider = %d, want 503", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := startTestServer(t, &stubProvider{})

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", srv.Addr()))
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
}
