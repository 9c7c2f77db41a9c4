package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"nodeflow"
	"nodeflow/graphfile"
	"nodeflow/nodes"
	"nodeflow/runlog"
)

func runCommand(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	fs := flag.NewFlagSet("nodeflow run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	asJSON := fs.Bool("json", false, "Print the run record as JSON instead of the log.")
	start := fs.String("start", "", "Start node id, overriding the one in the file.")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), "\nUsage:\n  nodeflow run [options] GRAPH_FILE\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}
	if err := common.validate(); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return &ExitError{Code: 2, Message: "run expects exactly one graph file"}
	}
	path := fs.Arg(0)

	g, err := graphfile.Load(path)
	if err != nil {
		return err
	}
	if *start != "" {
		g.StartNodeID = *start
	}

	e, err := newEngine(ctx, &common, stderr)
	if err != nil {
		return err
	}
	defer e.close(context.WithoutCancel(ctx))

	flowID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	rec, err := e.execute(ctx, flowID, g)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rec); err != nil {
			return err
		}
	} else {
		printLogs(stdout, rec.Logs)
		fmt.Fprintf(stdout, "\nrun %s %s in %s\n", rec.RunID, rec.Status, rec.Duration().Round(time.Millisecond))
	}

	if rec.Status == nodeflow.StatusFailed {
		return &ExitError{Code: 1, Message: "flow failed: " + rec.Error}
	}
	return nil
}

func printLogs(w io.Writer, logs []nodeflow.LogEntry) {
	for _, entry := range logs {
		line := entry.Time.Format("15:04:05.000") + " "
		if entry.NodeID != "" {
			line += "[" + entry.NodeID + "] "
		}
		line += entry.Message
		if entry.Payload != nil {
			if data, err := json.Marshal(entry.Payload); err == nil {
				line += " " + string(data)
			}
		}
		fmt.Fprintln(w, line)
	}
}

func nodesCommand(stdout io.Writer, args []string) error {
	fs := flag.NewFlagSet("nodeflow nodes", flag.ContinueOnError)
	fs.SetOutput(stdout)
	asJSON := fs.Bool("json", false, "Print the full definitions as JSON.")
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}

	defs := nodes.Definitions()
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(defs)
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tCATEGORY\tINPUTS\tOUTPUTS\tDESCRIPTION")
	for _, def := range defs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", def.Type, def.Category, socketNames(def.Inputs), socketNames(def.Outputs), def.Description)
	}
	return tw.Flush()
}

func socketNames(sockets []nodeflow.Socket) string {
	if len(sockets) == 0 {
		return "-"
	}
	names := make([]string, len(sockets))
	for i, s := range sockets {
		names[i] = s.Name
	}
	return strings.Join(names, ",")
}

func serveCommand(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	fs := flag.NewFlagSet("nodeflow serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	addr := fs.String("addr", ":8080", "Listen address of the HTTP API.")

	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}
	if err := common.validate(); err != nil {
		return err
	}

	e, err := newEngine(ctx, &common, stderr)
	if err != nil {
		return err
	}
	defer e.close(context.WithoutCancel(ctx))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newServer(e).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(stdout, "nodeflow listening on %s\n", *addr)
	e.logger.Info("http server started", "addr", *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// server exposes the engine over HTTP.
type server struct {
	engine *engine
}

func newServer(e *engine) *server {
	return &server{engine: e}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/run", s.handleRun)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/runs/{id}/live", s.handleLive)
	mux.HandleFunc("GET /api/runs/{id}/events", s.handleEvents)
	mux.HandleFunc("GET /api/nodes", s.handleNodes)
	return mux
}

type runRequest struct {
	FlowID string `json:"flowId"`
	nodeflow.Graph
}

// handleRun executes the posted graph synchronously and answers with the
// run record. A failed run is still a 200; its status says FAILED.
func (s *server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for i := range req.Edges {
		if req.Edges[i].ID == "" {
			req.Edges[i].ID = nodeflow.EdgeLabel(req.Edges[i])
		}
	}

	rec, err := s.engine.execute(r.Context(), req.FlowID, req.Graph)
	if err != nil {
		s.engine.logger.Error("run not recorded", "run_id", rec.RunID, "error", err)
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	ids, err := s.engine.recorder.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": ids})
}

func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.engine.recorder.Load(r.Context(), r.PathValue("id"))
	if errors.Is(err, runlog.ErrRecordNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) handleLive(w http.ResponseWriter, r *http.Request) {
	state, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, state.live.Snapshot())
}

func (s *server) handleNodes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, nodes.Definitions())
}

func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	state, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, state.events.Events())
}

func (s *server) lookupRun(w http.ResponseWriter, r *http.Request) (*runState, bool) {
	id := r.PathValue("id")
	state, ok := s.engine.state(id)
	if !ok {
		http.Error(w, fmt.Sprintf("no live state kept for run %s", id), http.StatusNotFound)
	}
	return state, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
