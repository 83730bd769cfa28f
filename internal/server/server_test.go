package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/giantswarm/micrologger/microloggertest"
	"github.com/google/go-cmp/cmp"

	"github.com/studiowebux/k6ui/internal/history"
	"github.com/studiowebux/k6ui/internal/k6"
	"github.com/studiowebux/k6ui/internal/loadtest"
	"github.com/studiowebux/k6ui/internal/script"
	"github.com/studiowebux/k6ui/internal/service"
	"github.com/studiowebux/k6ui/internal/summary"
)

type fakeLocator struct {
	path string
	err  error
}

func (f fakeLocator) Locate(ctx context.Context) (string, error) {
	return f.path, f.err
}

type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	out     *k6.Output
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, binary, scriptPath string, progress io.Writer) (*k6.Output, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if progress != nil && f.out != nil {
		io.WriteString(progress, f.out.Stdout)
	}
	return f.out, f.err
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.NewStore(filepath.Join(t.TempDir(), "k6ui.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, status := range []history.Status{history.StatusCompleted, history.StatusFailed} {
		run := &history.Run{
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Config: loadtest.Config{
				TargetURL:    "https://example.com",
				VirtualUsers: 1,
				Duration:     "5s",
				Method:       "GET",
				CallType:     loadtest.CallTypeSimultaneous,
			},
			Script: "export default function () {}",
		}
		if err := store.Create(run); err != nil {
			t.Fatal(err)
		}
		run.Status = status
		if err := store.Complete(run); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

type testEnv struct {
	server    *Server
	runner    *fakeRunner
	scriptDir string
}

func newTestEnv(t *testing.T, runner *fakeRunner, store RunStore, maxRuns int) *testEnv {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "scripts")
	logger := microloggertest.New()

	svc, err := service.New(service.Config{
		Logger:            logger,
		Locator:           fakeLocator{path: "/usr/local/bin/k6"},
		Runner:            runner,
		Scripts:           script.NewGenerator(dir),
		MaxConcurrentRuns: maxRuns,
	})
	if err != nil {
		t.Fatal(err)
	}

	s, err := New(Config{
		Logger:     logger,
		Service:    svc,
		History:    store,
		Locator:    fakeLocator{path: "/usr/local/bin/k6"},
		CORSOrigin: "*",
	})
	if err != nil {
		t.Fatal(err)
	}

	return &testEnv{server: s, runner: runner, scriptDir: dir}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) scriptCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(e.scriptDir)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body %q is not JSON: %v", rec.Body.String(), err)
	}
	return resp.Error
}

const validBody = `{"targetUrl":"https://example.com/health","virtualUsers":5,"duration":"5s","method":"GET","callType":"simultaneous"}`

func TestLoadTest_Success(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{out: &k6.Output{Stdout: "http_reqs: 120\n"}}, nil, 0)

	rec := env.do(t, http.MethodPost, "/api/load-test", validBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result loadtest.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}

	reqs := 120
	if diff := cmp.Diff(summary.Metrics{HTTPReqs: &reqs}, result.Metrics); diff != "" {
		t.Errorf("metrics mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(result.Script, `"https://example.com/health"`) {
		t.Errorf("script does not contain target URL:\n%s", result.Script)
	}
	if result.RawOutput != "http_reqs: 120\n" {
		t.Errorf("rawOutput = %q", result.RawOutput)
	}

	var raw map[string]json.RawMessage
	json.Unmarshal(rec.Body.Bytes(), &raw)
	for _, key := range []string{"summary", "metrics", "rawOutput", "script"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("response is missing %q", key)
		}
	}
}

func TestLoadTest_BadRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "gradual without ramp up",
			body:    `{"targetUrl":"https://example.com","virtualUsers":5,"duration":"5s","method":"GET","callType":"gradual"}`,
			wantErr: "rampUp",
		},
		{
			name:    "missing fields",
			body:    `{"method":"GET"}`,
			wantErr: "required",
		},
		{
			name:    "malformed headers",
			body:    `{"targetUrl":"https://example.com","virtualUsers":5,"duration":"5s","method":"GET","callType":"simultaneous","headers":"{nope"}`,
			wantErr: "headers",
		},
		{
			name:    "malformed body",
			body:    `{"targetUrl":"https://example.com","virtualUsers":5,"duration":"5s","method":"POST","callType":"simultaneous","body":"[1,"}`,
			wantErr: "body",
		},
		{
			name:    "not json",
			body:    `targetUrl=https://example.com`,
			wantErr: "invalid request body",
		},
		{
			name:    "unknown method",
			body:    `{"targetUrl":"https://example.com","virtualUsers":5,"duration":"5s","method":"TRACE","callType":"simultaneous"}`,
			wantErr: "method",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &fakeRunner{out: &k6.Output{}}, nil, 0)

			rec := env.do(t, http.MethodPost, "/api/load-test", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
			}
			if msg := decodeError(t, rec); !strings.Contains(msg, tt.wantErr) {
				t.Errorf("error = %q, want it to mention %q", msg, tt.wantErr)
			}
			if env.runner.callCount() != 0 {
				t.Error("k6 must not run for a bad request")
			}
			if n := env.scriptCount(t); n != 0 {
				t.Errorf("%d script files written for a bad request", n)
			}
		})
	}
}

func TestLoadTest_ExecutionFailure(t *testing.T) {
	runner := &fakeRunner{
		out: &k6.Output{Stderr: "ERRO boom\n", ExitCode: 107},
		err: errors.New("k6 exited with code 107\nERRO boom"),
	}
	env := newTestEnv(t, runner, nil, 0)

	rec := env.do(t, http.MethodPost, "/api/load-test", validBody)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if msg := decodeError(t, rec); !strings.Contains(msg, "ERRO boom") {
		t.Errorf("error = %q, want stderr included", msg)
	}
}

func TestLoadTest_TooManyRuns(t *testing.T) {
	runner := &fakeRunner{
		out:     &k6.Output{Stdout: "ok"},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	env := newTestEnv(t, runner, nil, 1)

	done := make(chan int, 1)
	go func() {
		done <- env.do(t, http.MethodPost, "/api/load-test", validBody).Code
	}()

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first run did not start")
	}

	rec := env.do(t, http.MethodPost, "/api/load-test", validBody)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}

	close(runner.release)
	if code := <-done; code != http.StatusOK {
		t.Errorf("first run status = %d, want 200", code)
	}
}

func TestScriptPreview(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{}, nil, 0)

	rec := env.do(t, http.MethodPost, "/api/script", validBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp scriptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.Script, "http.get(url, params)") {
		t.Errorf("unexpected script:\n%s", resp.Script)
	}
	if env.scriptCount(t) != 0 {
		t.Error("preview must not write scripts")
	}
}

func TestRuns(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{}, newTestStore(t), 0)

	rec := env.do(t, http.MethodGet, "/api/runs?limit=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var runs []history.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != 2 || runs[0].Status != history.StatusFailed {
		t.Errorf("list = %+v, want only run 2", runs)
	}

	tests := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodGet, "/api/runs?limit=zero", http.StatusBadRequest},
		{http.MethodGet, "/api/runs/1", http.StatusOK},
		{http.MethodGet, "/api/runs/9", http.StatusNotFound},
		{http.MethodGet, "/api/runs/abc", http.StatusBadRequest},
		{http.MethodDelete, "/api/runs/1", http.StatusNoContent},
		{http.MethodGet, "/api/runs/1", http.StatusNotFound},
		{http.MethodDelete, "/api/runs/1", http.StatusNotFound},
	}
	for _, tt := range tests {
		if rec := env.do(t, tt.method, tt.target, ""); rec.Code != tt.want {
			t.Errorf("%s %s status = %d, want %d", tt.method, tt.target, rec.Code, tt.want)
		}
	}
}

func TestRuns_HistoryDisabled(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{}, nil, 0)

	for _, target := range []string{"/api/runs", "/api/runs/1"} {
		if rec := env.do(t, http.MethodGet, target, ""); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", target, rec.Code)
		}
	}
}

func TestHealthzAndGlossary(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{}, nil, 0)

	rec := env.do(t, http.MethodGet, "/healthz", "")
	if diff := cmp.Diff(`{"status":"ok","k6":"/usr/local/bin/k6"}`, strings.TrimSpace(rec.Body.String())); diff != "" {
		t.Errorf("healthz mismatch (-want +got):\n%s", diff)
	}

	rec = env.do(t, http.MethodGet, "/api/glossary?q=http_reqs", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"http_reqs"`) {
		t.Errorf("glossary status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{}, nil, 0)

	rec := env.do(t, http.MethodOptions, "/api/load-test", "")
	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestServe_Shutdown(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{}, nil, 0)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(ctx, listener) }()

	resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(ShutdownGracePeriod):
		t.Fatal("server did not shut down")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(Config{}); !IsInvalidConfig(err) {
		t.Errorf("expected invalid config error, got %v", err)
	}
}
