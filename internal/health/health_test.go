package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxway/voxway/internal/modules"
	"github.com/voxway/voxway/pkg/capability"
	llmmock "github.com/voxway/voxway/pkg/capability/llm/mock"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHealthz_AlwaysOK(t *testing.T) {
	t.Parallel()
	h := New(func() int { return 3 })

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["sessions"] != float64(3) {
		t.Errorf("sessions = %v, want 3", body["sessions"])
	}
}

func TestReadyz_AllChecksPass(t *testing.T) {
	t.Parallel()
	h := New(nil,
		Checker{Name: "a", Check: func(context.Context) error { return nil }},
		Checker{Name: "b", Check: func(context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	checks := body["checks"].(map[string]any)
	if checks["a"] != "ok" || checks["b"] != "ok" {
		t.Errorf("checks = %v", checks)
	}
}

func TestReadyz_FailingCheck(t *testing.T) {
	t.Parallel()
	h := New(nil,
		Checker{Name: "good", Check: func(context.Context) error { return nil }},
		Checker{Name: "bad", Check: func(context.Context) error { return errors.New("backend unreachable") }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "fail" {
		t.Errorf("status field = %v, want fail", body["status"])
	}
	checks := body["checks"].(map[string]any)
	if checks["good"] != "ok" {
		t.Errorf("good check = %v", checks["good"])
	}
	if checks["bad"] != "fail: backend unreachable" {
		t.Errorf("bad check = %v", checks["bad"])
	}
}

func TestModulesChecker(t *testing.T) {
	t.Parallel()
	reg := modules.NewRegistry()
	if err := reg.Register(capability.RoleLLM, "mock", &llmmock.Provider{}); err != nil {
		t.Fatal(err)
	}

	check := ModulesChecker(reg)
	if err := check.Check(context.Background()); err == nil {
		t.Error("module without Setup should fail the readiness check")
	}

	if err := reg.SetupAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := check.Check(context.Background()); err != nil {
		t.Errorf("ready module failed the check: %v", err)
	}
}

func TestRegister_Routes(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	New(func() int { return 0 }).Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}
