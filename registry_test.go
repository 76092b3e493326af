package httpchain_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/httpchain"
	"github.com/adamwoolhether/httpchain/client"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	c, err := httpchain.NewClient()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	reg := httpchain.NewRegistry()
	if err := reg.Register("api", c, client.Scope{BaseURL: "https://api.example.com"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := reg.Register("api", c, client.Scope{}); !errors.Is(err, httpchain.ErrDuplicateClient) {
		t.Errorf("expected ErrDuplicateClient, got: %v", err)
	}
	if err := reg.Register("", c, client.Scope{}); err == nil {
		t.Error("expected error for empty name")
	}
	if err := reg.Register("nil", nil, client.Scope{}); err == nil {
		t.Error("expected error for nil client")
	}

	got, err := reg.Client("api")
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if got != c {
		t.Error("expected the registered client")
	}

	if _, err := reg.Request("absent"); !errors.Is(err, client.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}

	if diff := cmp.Diff([]string{"api"}, reg.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_Context(t *testing.T) {
	if _, ok := httpchain.FromContext(t.Context()); ok {
		t.Fatal("expected no registry in a bare context")
	}

	reg := httpchain.NewRegistry()
	ctx := httpchain.WithRegistry(t.Context(), reg)

	got, ok := httpchain.FromContext(ctx)
	if !ok || got != reg {
		t.Error("expected registry from context")
	}
}

func TestLoadRegistry(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("X-Team", r.Header.Get("X-Team"))
		w.Header().Set("X-Agent", r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, r.URL.Path)
	}))
	defer ts.Close()

	yamlContent := `
clients:
  billing:
    base_url: ` + ts.URL + `/v2
    timeout: 2s
    headers:
      X-Team: payments
    retry:
      attempts: 2
      delay: 1ms
    user_agent: billing-sync/1.0
    throttle:
      rps: 100
      burst: 10
`
	path := filepath.Join(t.TempDir(), "clients.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	reg, err := httpchain.LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}

	req, err := reg.Request("billing")
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	resp, err := req.To("/invoices").Get(t.Context())
	if err != nil {
		t.Fatalf("expected retry to recover, got: %v", err)
	}

	text, _ := resp.Text()
	team, _ := resp.Header("X-Team")
	agent, _ := resp.Header("X-Agent")

	want := []string{"/v2/invoices", "payments", "billing-sync/1.0"}
	if diff := cmp.Diff(want, []string{text, team, agent}); diff != "" {
		t.Errorf("profile not applied (-want +got):\n%s", diff)
	}

	if got := hits.Load(); got != 2 {
		t.Errorf("expected 2 dispatches, got %d", got)
	}
}

func TestLoadRegistry_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.yaml")
	if err := os.WriteFile(path, []byte("clients:\n  api:\n    http2: maybe\n"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	if _, err := httpchain.LoadRegistry(path); err == nil {
		t.Fatal("expected validation error")
	}
}
