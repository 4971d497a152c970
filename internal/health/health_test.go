// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticChecker struct {
	name   string
	result CheckResult
}

func (c staticChecker) Name() string                        { return c.name }
func (c staticChecker) Check(_ context.Context) CheckResult { return c.result }

func TestHealthAlwaysHealthyWithoutVerbose(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(staticChecker{"db", CheckResult{Status: StatusUnhealthy, Error: "down"}})

	resp := m.Health(context.Background(), false)
	if resp.Status != StatusHealthy {
		t.Errorf("liveness status = %s, want healthy", resp.Status)
	}
	if resp.Checks != nil {
		t.Error("non-verbose health must not run checkers")
	}
}

func TestHealthVerboseAggregates(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(staticChecker{"db", CheckResult{Status: StatusHealthy}})
	m.RegisterChecker(staticChecker{"redis", CheckResult{Status: StatusDegraded, Message: "slow"}})

	resp := m.Health(context.Background(), true)
	if resp.Status != StatusDegraded {
		t.Errorf("status = %s, want degraded", resp.Status)
	}
	if len(resp.Checks) != 2 {
		t.Errorf("got %d checks, want 2", len(resp.Checks))
	}
}

func TestReadyFailsOnUnhealthyChecker(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(staticChecker{"db", CheckResult{Status: StatusUnhealthy, Error: "down"}})

	resp := m.Ready(context.Background())
	if resp.Ready {
		t.Error("unhealthy checker must fail readiness")
	}
	if resp.Status != StatusUnhealthy {
		t.Errorf("status = %s, want unhealthy", resp.Status)
	}
}

func TestReadyNoCheckersIsReady(t *testing.T) {
	m := NewManager("test")
	if resp := m.Ready(context.Background()); !resp.Ready {
		t.Error("manager without checkers must be ready")
	}
}

func TestReadyHandlerStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		result CheckResult
		want   int
	}{
		{"healthy", CheckResult{Status: StatusHealthy}, http.StatusOK},
		{"degraded", CheckResult{Status: StatusDegraded}, http.StatusOK},
		{"unhealthy", CheckResult{Status: StatusUnhealthy}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("test")
			m.RegisterChecker(staticChecker{"db", tt.result})

			req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
			w := httptest.NewRecorder()
			m.ReadyHandler()(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			var resp ReadinessResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid JSON body: %v", err)
			}
		})
	}
}

func TestHealthHandlerVersion(t *testing.T) {
	m := NewManager("v1.2.3")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	m.HealthHandler()(w, req)

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if resp.Version != "v1.2.3" {
		t.Errorf("version = %q", resp.Version)
	}
}

func TestPingChecker(t *testing.T) {
	ok := NewPingChecker("db", PingerFunc(func(ctx context.Context) error { return nil }))
	if res := ok.Check(context.Background()); res.Status != StatusHealthy {
		t.Errorf("status = %s, want healthy", res.Status)
	}

	down := NewPingChecker("db", PingerFunc(func(ctx context.Context) error { return errors.New("refused") }))
	if res := down.Check(context.Background()); res.Status != StatusUnhealthy {
		t.Errorf("status = %s, want unhealthy", res.Status)
	}
}
