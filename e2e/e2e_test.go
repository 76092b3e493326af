//go:build integration

package e2e_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"gocloud.dev/blob/fileblob"

	"github.com/adamwoolhether/httpchain"
	"github.com/adamwoolhether/httpchain/client"
)

// -------------------------------------------------------------------------
// Types
// -------------------------------------------------------------------------

type user struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   int    `json:"age"`
}

const downloadBody = "hello, this is test download content!"

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

func newTestApp(t *testing.T) (string, *atomic.Int32) {
	t.Helper()

	var flaky atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /users", func(w http.ResponseWriter, r *http.Request) {
		var u user
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(u)
	})
	mux.HandleFunc("GET /users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":%q,"tenant":%q}`, r.PathValue("id"), r.Header.Get("X-Tenant"))
	})
	mux.HandleFunc("GET /flaky", func(w http.ResponseWriter, r *http.Request) {
		if flaky.Add(1)%3 != 0 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, "finally")
	})
	mux.HandleFunc("GET /download", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(downloadBody)))
		_, _ = io.WriteString(w, downloadBody)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv.URL, &flaky
}

func newRegistry(t *testing.T, baseURL string) *httpchain.Registry {
	t.Helper()

	profiles := `
clients:
  users:
    base_url: ` + baseURL + `
    headers:
      X-Tenant: acme
    retry:
      attempts: 3
      delay: 1ms
    request_id: true
    max_in_flight: 2
`
	path := filepath.Join(t.TempDir(), "clients.yaml")
	if err := os.WriteFile(path, []byte(profiles), 0644); err != nil {
		t.Fatalf("writing profiles: %v", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	reg, err := httpchain.LoadRegistry(path, client.WithLogger(log))
	if err != nil {
		t.Fatalf("loading registry: %v", err)
	}

	return reg
}

func request(t *testing.T, reg *httpchain.Registry) *client.Request {
	t.Helper()

	req, err := reg.Request("users")
	if err != nil {
		t.Fatalf("registry request: %v", err)
	}

	return req
}

// -------------------------------------------------------------------------
// Tests
// -------------------------------------------------------------------------

func TestE2E_JSONRoundTrip(t *testing.T) {
	baseURL, _ := newTestApp(t)
	reg := newRegistry(t, baseURL)

	sent := user{Name: "Alice", Email: "alice@test.com", Age: 30}

	resp, err := request(t, reg).To("/users").Post(t.Context(), sent)
	if err != nil {
		t.Fatalf("executing request: %v", err)
	}

	if code, _ := resp.Status(); code != http.StatusCreated {
		t.Errorf("status = %d, want %d", code, http.StatusCreated)
	}

	var got user
	if err := resp.JSON(&got); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if got != sent {
		t.Errorf("round-trip mismatch:\n  got:  %+v\n  want: %+v", got, sent)
	}
}

func TestE2E_RetryThroughProfile(t *testing.T) {
	baseURL, flaky := newTestApp(t)
	reg := newRegistry(t, baseURL)

	resp, err := request(t, reg).To("/flaky").Get(t.Context())
	if err != nil {
		t.Fatalf("executing request: %v", err)
	}

	if text, _ := resp.Text(); text != "finally" {
		t.Errorf("body = %q, want %q", text, "finally")
	}
	if got := flaky.Load(); got != 3 {
		t.Errorf("dispatches = %d, want 3", got)
	}
}

func TestE2E_AsyncFanOut(t *testing.T) {
	baseURL, _ := newTestApp(t)
	reg := newRegistry(t, baseURL)

	req := request(t, reg).Async(true)
	for i := range 5 {
		if _, err := req.To("/users/" + strconv.Itoa(i)).Get(t.Context()); err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
	}

	results := req.Wait(true)
	if len(results) != 5 {
		t.Fatalf("results = %d, want 5", len(results))
	}

	for i, res := range results {
		if res.Err != nil {
			t.Fatalf("result %d: %v", i, res.Err)
		}
		obj := res.Value.(map[string]any)
		if obj["id"] != strconv.Itoa(i) || obj["tenant"] != "acme" {
			t.Errorf("result %d = %v", i, obj)
		}
	}
}

func TestE2E_NotFoundIsNotAnError(t *testing.T) {
	baseURL, _ := newTestApp(t)
	reg := newRegistry(t, baseURL)

	resp, err := request(t, reg).To("/nowhere").Get(t.Context())
	if err != nil {
		t.Fatalf("executing request: %v", err)
	}

	if failed, _ := resp.ClientError(); !failed {
		t.Error("expected client error classification")
	}
}

func TestE2E_FileDownload(t *testing.T) {
	baseURL, _ := newTestApp(t)
	reg := newRegistry(t, baseURL)

	destPath := filepath.Join(t.TempDir(), "downloaded.bin")

	if err := request(t, reg).To("/download").Download(t.Context(), destPath); err != nil {
		t.Fatalf("downloading: %v", err)
	}

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(got) != downloadBody {
		t.Errorf("file content = %q, want %q", string(got), downloadBody)
	}

	err = request(t, reg).To("/nowhere").Download(t.Context(), filepath.Join(t.TempDir(), "never.bin"))
	if !errors.Is(err, client.ErrClientError) {
		t.Errorf("expected client error, got: %v", err)
	}
}

func TestE2E_BucketDownload(t *testing.T) {
	baseURL, _ := newTestApp(t)
	reg := newRegistry(t, baseURL)

	bucket, err := fileblob.OpenBucket(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("opening bucket: %v", err)
	}
	defer bucket.Close()

	if err := request(t, reg).To("/download").DownloadToBucket(t.Context(), bucket, "files/downloaded.bin"); err != nil {
		t.Fatalf("downloading: %v", err)
	}

	got, err := bucket.ReadAll(t.Context(), "files/downloaded.bin")
	if err != nil {
		t.Fatalf("reading object: %v", err)
	}
	if string(got) != downloadBody {
		t.Errorf("object content = %q, want %q", string(got), downloadBody)
	}
}
