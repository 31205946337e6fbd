package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fileplacer/internal/audit"
	"fileplacer/internal/llm"
	"fileplacer/internal/placement"
	"fileplacer/internal/reportstore"
)

type stubScanner struct {
	verdicts []placement.Verdict
	err      error

	mu  sync.Mutex
	got audit.Request
}

func (s *stubScanner) request() audit.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.got
}

func (s *stubScanner) Scan(ctx context.Context, req audit.Request, obs placement.Observer) (reportstore.StoredReport, error) {
	s.mu.Lock()
	s.got = req
	s.mu.Unlock()
	for i, v := range s.verdicts {
		if obs != nil {
			obs(placement.ScanEvent{Index: i, Total: len(s.verdicts), Verdict: v})
		}
	}
	if s.err != nil {
		return reportstore.StoredReport{}, s.err
	}
	return reportstore.StoredReport{
		ID:     "0190b1f0-0000-7000-8000-000000000001",
		Model:  "fake",
		Report: placement.Aggregate("shop", s.verdicts),
	}, nil
}

func newTestServer(t *testing.T, sc Scanner, store reportstore.Store) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewMux(NewHandler(sc, store, zaptest.NewLogger(t)), []string{"http://localhost:3000"}))
	t.Cleanup(srv.Close)
	return srv
}

func postScan(t *testing.T, srv *httptest.Server, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/v1/scans", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHandleScan(t *testing.T) {
	sc := &stubScanner{verdicts: []placement.Verdict{{FilePath: "a.js"}}}
	srv := newTestServer(t, sc, nil)

	resp, out := postScan(t, srv, `{"repo_url":"https://github.com/acme/shop","branch":"main","max_files":20}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "0190b1f0-0000-7000-8000-000000000001", out["id"])
	report := out["report"].(map[string]any)
	assert.Equal(t, "shop", report["repository_root"])
	assert.EqualValues(t, 1, report["files_checked"])
	assert.Equal(t, audit.Request{RepoURL: "https://github.com/acme/shop", Branch: "main", MaxFiles: 20}, sc.request())
}

func TestHandleScanErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
		file   string
	}{
		{"bad json", `{`, nil, http.StatusBadRequest, "invalid_argument", ""},
		{"unknown field", `{"repo":"x"}`, nil, http.StatusBadRequest, "invalid_argument", ""},
		{"no source", `{}`, placement.ErrNoSource, http.StatusBadRequest, "invalid_argument", ""},
		{"missing key", `{"repo_path":"x"}`, placement.ErrMissingCredential, http.StatusInternalServerError, "misconfigured", ""},
		{
			"service failure", `{"repo_path":"x"}`,
			&placement.AdjudicationError{Path: "src/b.js", Err: errors.New("503")},
			http.StatusBadGateway, "service_unavailable", "src/b.js",
		},
		{"other", `{"repo_path":"x"}`, errors.New("disk full"), http.StatusInternalServerError, "internal", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &stubScanner{err: tt.err}, nil)
			resp, out := postScan(t, srv, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, out["code"])
			if tt.file != "" {
				assert.Equal(t, tt.file, out["file"])
			}
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestHandleGetAndList(t *testing.T) {
	store := reportstore.NewMemoryStore()
	id := reportstore.NewID()
	require.NoError(t, store.Put(context.Background(), reportstore.StoredReport{ID: id, Report: placement.Aggregate("shop", nil)}))
	srv := newTestServer(t, &stubScanner{}, store)

	resp, err := http.Get(srv.URL + "/v1/scans/" + id)
	require.NoError(t, err)
	var got reportstore.StoredReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "shop", got.Report.RepositoryRoot)

	resp, err = http.Get(srv.URL + "/v1/scans/" + reportstore.NewID())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/scans/not-a-uuid")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/scans")
	require.NoError(t, err)
	var list map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	assert.Equal(t, []string{id}, list["ids"])
}

func TestHandleGetWithoutStore(t *testing.T) {
	srv := newTestServer(t, &stubScanner{}, nil)
	resp, err := http.Get(srv.URL + "/v1/scans/" + reportstore.NewID())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/scans")
	require.NoError(t, err)
	var list map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	assert.Equal(t, []string{}, list["ids"])
}

func TestCORSAllowlist(t *testing.T) {
	srv := newTestServer(t, &stubScanner{}, nil)
	for origin, want := range map[string]string{
		"http://localhost:3000": "http://localhost:3000",
		"https://evil.example":  "",
	} {
		req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/v1/scans", nil)
		req.Header.Set("Origin", origin)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, resp.Header.Get("Access-Control-Allow-Origin"), origin)
		assert.Empty(t, resp.Header.Get("Access-Control-Allow-Credentials"), origin)
	}
}

func TestHandleScanRequiresJSON(t *testing.T) {
	sc := &stubScanner{}
	srv := newTestServer(t, sc, nil)
	resp, err := http.Post(srv.URL+"/v1/scans", "text/plain", strings.NewReader(`{"repo_path":"x"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	assert.Equal(t, audit.Request{}, sc.request())
}

func TestScanRejectsPathOutsideReposDir(t *testing.T) {
	outside := filepath.Join(t.TempDir(), "secrets")
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "id_rsa.txt"), []byte("PRIVATE KEY"), 0o600))

	fake := llm.NewFakeClient()
	sc := audit.New(placement.NewAdjudicator(fake, nil), placement.ScanOptions{Model: "fake"}, nil, zaptest.NewLogger(t))
	sc.ReposDir = t.TempDir()
	srv := newTestServer(t, sc, nil)

	body, _ := json.Marshal(audit.Request{RepoPath: outside})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/scans", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://evil.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_argument", out.Code)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, fake.Requests())
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubScanner{}, nil)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func dialWatch(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/scans/watch?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readAll(t *testing.T, conn *websocket.Conn) []watchMessage {
	t.Helper()
	var msgs []watchMessage
	for {
		var m watchMessage
		if err := conn.ReadJSON(&m); err != nil {
			return msgs
		}
		msgs = append(msgs, m)
	}
}

func TestHandleWatchStreamsProgress(t *testing.T) {
	sc := &stubScanner{verdicts: []placement.Verdict{{FilePath: "a.js"}, {FilePath: "b.js", IsMisplaced: true}}}
	srv := newTestServer(t, sc, nil)
	conn := dialWatch(t, srv, "repo_path=/srv/shop&max_files=10&include_hidden=true")

	msgs := readAll(t, conn)
	require.Len(t, msgs, 3)
	assert.Equal(t, "progress", msgs[0].Type)
	assert.Equal(t, "a.js", msgs[0].Verdict.FilePath)
	assert.Equal(t, 2, msgs[1].Total)
	assert.Equal(t, "report", msgs[2].Type)
	assert.Equal(t, 1, msgs[2].Report.Report.MisplacedCount)

	got := sc.request()
	assert.Equal(t, "/srv/shop", got.RepoPath)
	assert.Equal(t, 10, got.MaxFiles)
	require.NotNil(t, got.IncludeHidden)
	assert.True(t, *got.IncludeHidden)
}

func TestHandleWatchError(t *testing.T) {
	sc := &stubScanner{err: &placement.AdjudicationError{Path: "src/x.js", Err: errors.New("timeout")}}
	srv := newTestServer(t, sc, nil)
	msgs := readAll(t, dialWatch(t, srv, "repo_url=https://github.com/acme/shop"))
	require.Len(t, msgs, 1)
	assert.Equal(t, "error", msgs[0].Type)
	assert.Equal(t, "service_unavailable", msgs[0].Code)
	assert.Equal(t, "src/x.js", msgs[0].File)
}

func TestHandleWatchRejectsBeforeUpgrade(t *testing.T) {
	srv := newTestServer(t, &stubScanner{}, nil)
	for _, q := range []string{"", "repo_path=x&max_files=lots", "repo_path=x&include_hidden=perhaps"} {
		resp, err := http.Get(srv.URL + "/v1/scans/watch?" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestHandleWatchChecksOrigin(t *testing.T) {
	srv := newTestServer(t, &stubScanner{}, nil)
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/scans/watch?repo_path=x"

	_, resp, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	for _, origin := range []string{"http://localhost:3000", srv.URL} {
		conn, _, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": {origin}})
		require.NoError(t, err, origin)
		readAll(t, conn)
		conn.Close()
	}
}

type blockingScanner struct {
	started chan struct{}
	result  chan error
}

func (b *blockingScanner) Scan(ctx context.Context, _ audit.Request, _ placement.Observer) (reportstore.StoredReport, error) {
	close(b.started)
	<-ctx.Done()
	b.result <- ctx.Err()
	return reportstore.StoredReport{}, ctx.Err()
}

func TestShutdownCancelsInFlightScan(t *testing.T) {
	sc := &blockingScanner{started: make(chan struct{}), result: make(chan error, 1)}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	srv := New(ln.Addr().String(), NewMux(NewHandler(sc, nil, logger), nil), logger)
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	type reply struct {
		status int
		code   string
		err    error
	}
	replies := make(chan reply, 1)
	go func() {
		resp, err := http.Post("http://"+ln.Addr().String()+"/v1/scans", "application/json", strings.NewReader(`{"repo_path":"x"}`))
		if err != nil {
			replies <- reply{err: err}
			return
		}
		defer resp.Body.Close()
		var body errorBody
		_ = json.NewDecoder(resp.Body).Decode(&body)
		replies <- reply{status: resp.StatusCode, code: body.Code}
	}()

	select {
	case <-sc.started:
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, srv.Shutdown(ctx))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.ErrorIs(t, <-sc.result, context.Canceled)
	require.NoError(t, <-served)

	got := <-replies
	require.NoError(t, got.err)
	assert.Equal(t, http.StatusServiceUnavailable, got.status)
	assert.Equal(t, "canceled", got.code)
}

func TestScanEndToEnd(t *testing.T) {
	repos := t.TempDir()
	root := filepath.Join(repos, "shop")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "Button.jsx"), []byte("import React from 'react'"), 0o644))

	store := reportstore.NewMemoryStore()
	logger := zaptest.NewLogger(t)
	sc := audit.New(placement.NewAdjudicator(llm.NewFakeClient(), nil), placement.ScanOptions{Model: "fake"}, store, logger)
	sc.ReposDir = repos
	srv := newTestServer(t, sc, store)

	body, _ := json.Marshal(audit.Request{RepoPath: "shop"})
	resp, out := postScan(t, srv, string(body))
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	id := out["id"].(string)

	resp, err := http.Get(srv.URL + "/v1/scans/" + id)
	require.NoError(t, err)
	var got reportstore.StoredReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()
	assert.Equal(t, "shop", got.Report.RepositoryRoot)
	assert.Equal(t, 1, got.Report.FilesChecked)
	assert.Equal(t, "src/Button.jsx", got.Report.Details[0].FilePath)
}
