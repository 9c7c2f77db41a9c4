package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodeflow"
	"nodeflow/runlog"
)

const demoFlow = `
node btn = buttonNode
node check = ifStatementNode var1=5 operator=">" var2=3
node yes = loggerNode logLabel="Condition met"
node no = loggerNode logLabel="Condition failed"
connect btn.trigger -> check.trigger
connect check.true -> yes.logData
connect check.false -> no.logData
start btn
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRunCommand(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	path := writeFile(t, "demo.flow", demoFlow)
	history := filepath.Join(t.TempDir(), "history.json")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), &stdout, &stderr, []string{"run", "-log-level", "error", "-history", history, path})
	require.NoError(t, err, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "Flow execution completed successfully.")
	assert.Contains(t, out, "[yes] Condition met:")
	assert.NotContains(t, out, "[no] Condition failed:")
	assert.Contains(t, out, "COMPLETED")

	_, err = os.Stat(history)
	assert.NoError(t, err, "history file is written")
}

func TestRunCommandJSON(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	path := writeFile(t, "demo.flow", demoFlow)

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), &stdout, &stderr, []string{"run", "-json", "-log-level", "error", path}))

	var rec runlog.Record
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rec))
	assert.Equal(t, nodeflow.StatusCompleted, rec.Status)
	assert.Equal(t, "demo", rec.FlowID)
	assert.Contains(t, rec.Outputs, "check")
}

func TestRunCommandFailedFlowExitsOne(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	path := writeFile(t, "nostart.json", `{"startNodeId":"","nodes":[{"id":"a","type":"buttonNode"}],"edges":[]}`)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), &stdout, &stderr, []string{"run", "-log-level", "error", path})

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, stdout.String(), "Error: Flow execution requires a startNodeId.")
}

func TestRunCommandFlowWithoutStartFails(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	path := writeFile(t, "nostart.flow", "node btn = buttonNode\nnode log = loggerNode\nconnect btn.trigger -> log.logData\n")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), &stdout, &stderr, []string{"run", "-log-level", "error", path})

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, stdout.String(), "Error: Flow execution requires a startNodeId.")
	assert.NotContains(t, stdout.String(), "ButtonNode 'btn'")
}

func TestRunUsageErrors(t *testing.T) {
	tests := map[string][]string{
		"no command":      nil,
		"unknown command": {"explode"},
		"missing file":    {"run"},
		"bad log format":  {"run", "-log-format", "xml", "x.flow"},
		"bad flag":        {"run", "-nope"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), &stdout, &stderr, args)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}

func TestNodesCommand(t *testing.T) {
	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), &stdout, &stdout, []string{"nodes"}))
	for _, tag := range nodeflow.BuiltinTypes() {
		assert.Contains(t, stdout.String(), string(tag))
	}

	stdout.Reset()
	require.NoError(t, run(context.Background(), &stdout, &stdout, []string{"nodes", "-json"}))
	var defs []nodeflow.TypeDefinition
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &defs))
	assert.Len(t, defs, len(nodeflow.BuiltinTypes()))
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	var stderr bytes.Buffer
	e, err := newEngine(context.Background(), &commonFlags{logLevel: "error", logFormat: "text"}, &stderr)
	require.NoError(t, err)
	t.Cleanup(func() { e.close(context.Background()) })

	ts := httptest.NewServer(newServer(e).routes())
	t.Cleanup(ts.Close)
	return ts
}

func TestServerRunAndHistory(t *testing.T) {
	ts := newTestServer(t)

	body := `{
	  "flowId": "demo",
	  "startNodeId": "v",
	  "nodes": [
	    {"id": "v", "type": "variableNode", "data": {"value": "hello"}},
	    {"id": "out", "type": "outputNode", "data": {}}
	  ],
	  "edges": [{"source": "v", "sourceHandle": "value", "target": "out", "targetHandle": "content"}]
	}`
	resp, err := http.Post(ts.URL+"/api/run", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec runlog.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, nodeflow.StatusCompleted, rec.Status)

	var live map[string]any
	getJSON(t, ts.URL+"/api/runs/"+rec.RunID+"/live", &live)
	assert.Equal(t, map[string]any{"out": "hello"}, live)

	var runs struct {
		Runs []string `json:"runs"`
	}
	getJSON(t, ts.URL+"/api/runs", &runs)
	assert.Equal(t, []string{rec.RunID}, runs.Runs)

	var got runlog.Record
	getJSON(t, ts.URL+"/api/runs/"+rec.RunID, &got)
	assert.Equal(t, rec.RunID, got.RunID)

	var events []map[string]any
	getJSON(t, ts.URL+"/api/runs/"+rec.RunID+"/events", &events)
	require.NotEmpty(t, events)
	assert.Equal(t, "flow_start", events[0]["type"])

	for _, path := range []string{"/api/runs/nope", "/api/runs/nope/live", "/api/runs/nope/events"} {
		missing, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		missing.Body.Close()
		assert.Equal(t, http.StatusNotFound, missing.StatusCode, path)
	}
}

func postRun(ts *httptest.Server, value string) (runlog.Record, error) {
	body := fmt.Sprintf(`{
	  "startNodeId": "v",
	  "nodes": [
	    {"id": "v", "type": "variableNode", "data": {"value": %q}},
	    {"id": "wait", "type": "delayNode", "data": {"delayMs": 30}},
	    {"id": "out", "type": "outputNode", "data": {}},
	    {"id": "late", "type": "outputNode", "data": {}}
	  ],
	  "edges": [
	    {"source": "v", "sourceHandle": "value", "target": "out", "targetHandle": "content"},
	    {"source": "v", "sourceHandle": "value", "target": "wait", "targetHandle": "signalIn"},
	    {"source": "wait", "sourceHandle": "signalOut", "target": "late", "targetHandle": "content"}
	  ]
	}`, value)
	resp, err := http.Post(ts.URL+"/api/run", "application/json", strings.NewReader(body))
	if err != nil {
		return runlog.Record{}, err
	}
	defer resp.Body.Close()
	var rec runlog.Record
	err = json.NewDecoder(resp.Body).Decode(&rec)
	return rec, err
}

func TestServerParallelRunsKeepSeparateState(t *testing.T) {
	ts := newTestServer(t)

	values := []string{"first", "second"}
	records := make([]runlog.Record, len(values))
	errs := make([]error, len(values))
	var wg sync.WaitGroup
	for i, v := range values {
		wg.Add(1)
		go func() {
			defer wg.Done()
			records[i], errs[i] = postRun(ts, v)
		}()
	}
	wg.Wait()

	for i, v := range values {
		require.NoError(t, errs[i])
		rec := records[i]
		require.Equal(t, nodeflow.StatusCompleted, rec.Status)

		var live map[string]any
		getJSON(t, ts.URL+"/api/runs/"+rec.RunID+"/live", &live)
		assert.Equal(t, map[string]any{"out": v, "late": true}, live)

		var events []map[string]any
		getJSON(t, ts.URL+"/api/runs/"+rec.RunID+"/events", &events)
		require.NotEmpty(t, events)
		for _, e := range events {
			assert.Equal(t, rec.RunID, e["runId"])
		}
	}
	assert.NotEqual(t, records[0].RunID, records[1].RunID)
}

func TestServerRejectsBadJSON(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/api/run", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServerNodes(t *testing.T) {
	ts := newTestServer(t)
	var defs []nodeflow.TypeDefinition
	getJSON(t, ts.URL+"/api/nodes", &defs)
	assert.Len(t, defs, len(nodeflow.BuiltinTypes()))
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}
