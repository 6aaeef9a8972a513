package serve

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everydev1618/swarm"
	"github.com/everydev1618/swarm/dsl"
	"github.com/everydev1618/swarm/store"
)

const markProgram = `
Action mark(n) { put n to #mark#; }
Agent drone { mark; }
Task t({d[s~e]}) { init {} goal { $ 1 } routine { order d[s~e] { mark(id); } } }
Main { Agent drone 2; t({drone[0~2]}); }
`

const endlessProgram = `
Import sys;
Action a() {}
Agent drone { a; }
Task forever({d[s~e]}) { init {} goal {} routine { sys.sleep(5); } }
Main { Agent drone 1; forever({drone[0~1]}); }
`

func testRun(ctx context.Context, src string, opts ...dsl.InterpreterOption) (*dsl.Interpreter, error) {
	base := []dsl.InterpreterOption{dsl.WithLibraries(swarm.DefaultLibraries(io.Discard))}
	return dsl.Run(ctx, src, append(base, opts...)...)
}

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "swarm.db"))
	require.NoError(t, err)
	require.NoError(t, st.Init())

	s := New(st, testRun, cfg)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Shutdown()
		st.Close()
	})
	return s, ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func startRun(t *testing.T, ts *httptest.Server, src string) RunResponse {
	t.Helper()
	resp := postJSON(t, ts.URL+"/api/runs", RunRequest{Name: "mission.swarm", Source: src})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	return decode[RunResponse](t, resp)
}

func waitFinished(t *testing.T, ts *httptest.Server, runID string) RunResponse {
	t.Helper()
	var run RunResponse
	require.Eventually(t, func() bool {
		resp, err := http.Get(ts.URL + "/api/runs/" + runID)
		if err != nil {
			return false
		}
		run = decode[RunResponse](t, resp)
		return run.Status != store.StatusRunning && !run.Active
	}, 5*time.Second, 10*time.Millisecond)
	return run
}

func TestStartRunRecordsOutcome(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	started := startRun(t, ts, markProgram)
	assert.NotEmpty(t, started.RunID)
	assert.Equal(t, "mission.swarm", started.Program)

	run := waitFinished(t, ts, started.RunID)
	assert.Equal(t, store.StatusCompleted, run.Status)
	assert.NotNil(t, run.FinishedAt)

	resp, err := http.Get(ts.URL + "/api/runs/" + started.RunID + "/events")
	require.NoError(t, err)
	events := decode[[]store.RunEvent](t, resp)
	require.NotEmpty(t, events)
	assert.Equal(t, string(swarm.EventStarted), events[0].Type)
	assert.Equal(t, "Main", events[0].Procedure)

	resp, err = http.Get(ts.URL + "/api/runs/" + started.RunID + "/knowledge")
	require.NoError(t, err)
	values := decode[map[string]any](t, resp)
	assert.Contains(t, values, "mark")

	resp, err = http.Get(ts.URL + "/api/runs")
	require.NoError(t, err)
	runs := decode[[]RunResponse](t, resp)
	require.Len(t, runs, 1)
	assert.Equal(t, started.RunID, runs[0].RunID)
}

func TestStartRunRecordsFailure(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	started := startRun(t, ts, "Main {")
	run := waitFinished(t, ts, started.RunID)
	assert.Equal(t, store.StatusFailed, run.Status)
	assert.Contains(t, run.Error, "UNEXPECTED_TOKEN")

	resp, err := http.Get(ts.URL + "/api/runs/" + started.RunID + "/knowledge")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartRunBadRequests(t *testing.T) {
	_, ts := newTestServer(t, Config{MaxSourceBytes: 64})

	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"empty source", `{"name":"x"}`},
		{"too large", `{"source":"` + strings.Repeat("a", 128) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/runs", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestCancelRun(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	started := startRun(t, ts, endlessProgram)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/runs/"+started.RunID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	run := waitFinished(t, ts, started.RunID)
	assert.Equal(t, store.StatusFailed, run.Status)

	// A finished run cannot be cancelled again.
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRunTimeout(t *testing.T) {
	_, ts := newTestServer(t, Config{RunTimeout: 50 * time.Millisecond})

	started := startRun(t, ts, endlessProgram)
	run := waitFinished(t, ts, started.RunID)
	assert.Equal(t, store.StatusFailed, run.Status)
}

func TestUnknownRun(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	for _, path := range []string{"/api/runs/nope", "/api/runs/nope/events", "/api/runs/nope/knowledge"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/runs/nope", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCheck(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp := postJSON(t, ts.URL+"/api/check", CheckRequest{Source: markProgram})
	ok := decode[CheckResponse](t, resp)
	assert.True(t, ok.OK)
	assert.Contains(t, ok.Formatted, "Agent drone")

	resp = postJSON(t, ts.URL+"/api/check", CheckRequest{Source: "Action a() {}\nAgent d { a; }\nMain { Agent q 2; }"})
	bad := decode[CheckResponse](t, resp)
	assert.False(t, bad.OK)
	require.NotNil(t, bad.Diagnostic)
	assert.Equal(t, string(dsl.StageSemantic), bad.Diagnostic.Stage)
	assert.Equal(t, string(dsl.IDNotFound), bad.Diagnostic.Code)
	assert.Equal(t, 3, bad.Diagnostic.Line)
}

func TestStats(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	waitFinished(t, ts, startRun(t, ts, markProgram).RunID)

	resp, err := http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	stats := decode[StatsResponse](t, resp)
	assert.Equal(t, 1, stats.Runs)
	assert.Equal(t, 1, stats.Snapshots)
	assert.Positive(t, stats.Events)
	assert.Zero(t, stats.ActiveRuns)
}

func TestSSEStreamsRunEvents(t *testing.T) {
	s, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/api/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, ": connected", lines.Text())

	// The subscription exists once the connected comment is flushed.
	require.Eventually(t, func() bool {
		return s.broker.Subscribers() == 1
	}, time.Second, 5*time.Millisecond)

	started := startRun(t, ts, markProgram)

	var got []string
	for len(got) < 2 && lines.Scan() {
		line := lines.Text()
		if strings.HasPrefix(line, "data: ") {
			var e swarm.Event
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e))
			assert.Equal(t, started.RunID, e.RunID)
			got = append(got, string(e.Type)+":"+e.Procedure)
		}
	}
	assert.Equal(t, []string{"started:Main", "started:t"}, got)
}

func TestSSEFiltersByRun(t *testing.T) {
	s, ts := newTestServer(t, Config{Heartbeat: 20 * time.Millisecond})

	resp, err := http.Get(ts.URL + "/api/events?run=other")
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	require.Eventually(t, func() bool { return s.broker.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	waitFinished(t, ts, startRun(t, ts, markProgram).RunID)

	heartbeats := 0
	for heartbeats < 2 && lines.Scan() {
		line := lines.Text()
		assert.False(t, strings.HasPrefix(line, "data: "), "event of another run delivered: %s", line)
		if strings.HasPrefix(line, ": heartbeat") {
			assert.Equal(t, ": heartbeat dropped=0", line)
			heartbeats++
		}
	}
	assert.Equal(t, 2, heartbeats)
}
