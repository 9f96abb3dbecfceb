package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Yosef-Ali/erpnext-workflows/engine"
	"github.com/Yosef-Ali/erpnext-workflows/graph"
	"github.com/Yosef-Ali/erpnext-workflows/log"
	"github.com/Yosef-Ali/erpnext-workflows/registry"
	"github.com/Yosef-Ali/erpnext-workflows/stream"
)

// ServiceName identifies the service in the health body.
const ServiceName = "ERPNext Workflow Service"

// Options tunes a Server. The zero value selects the defaults.
type Options struct {
	// Logger receives request diagnostics.
	Logger log.Logger

	// StreamBuffer sizes the per-run event channel behind each SSE
	// response. Defaults to 16.
	StreamBuffer int

	// ResultTimeout bounds how long a non-streaming request waits for its
	// run to pause or finish. The run itself keeps going past the deadline;
	// only the response gives up. Defaults to 30s.
	ResultTimeout time.Duration
}

// Server exposes a registry and an engine over HTTP.
type Server struct {
	registry *registry.Registry
	engine   *engine.Engine
	logger   log.Logger

	streamBuffer  int
	resultTimeout time.Duration
}

// New wires a server over a registry and an engine.
func New(reg *registry.Registry, eng *engine.Engine, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.GetDefaultLogger()
	}
	if opts.StreamBuffer <= 0 {
		opts.StreamBuffer = 16
	}
	if opts.ResultTimeout <= 0 {
		opts.ResultTimeout = 30 * time.Second
	}
	return &Server{
		registry:      reg,
		engine:        eng,
		logger:        opts.Logger,
		streamBuffer:  opts.StreamBuffer,
		resultTimeout: opts.ResultTimeout,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("GET /workflows", s.handleListWorkflows)
	mux.HandleFunc("GET /workflows/{name}", s.handleGetWorkflow)
	mux.HandleFunc("POST /execute", s.handleExecute)
	mux.HandleFunc("POST /resume", s.handleResume)
	mux.HandleFunc("POST /cancel", s.handleCancel)
	mux.HandleFunc("GET /approvals/{thread_id}", s.handleApproval)
	return cors(mux)
}

// cors stamps the permissive origin header on every response and
// short-circuits preflight requests.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":   ServiceName,
		"status":    "healthy",
		"workflows": s.registry.Stats(),
	})
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	industry := r.URL.Query().Get("industry")
	descriptors := s.registry.List(registry.Filter{Industry: industry})

	workflows := make(map[string]registry.Descriptor, len(descriptors))
	for _, d := range descriptors {
		workflows[d.Name] = d
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workflows":   workflows,
		"total":       len(workflows),
		"by_industry": s.registry.Stats().ByIndustry,
	})
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	desc, err := s.registry.Get(r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

type executeRequest struct {
	GraphName    string         `json:"graph_name"`
	InitialState map[string]any `json:"initial_state"`
	ThreadID     string         `json:"thread_id"`
	Stream       *bool          `json:"stream"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeBody(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.GraphName == "" {
		jsonError(w, http.StatusBadRequest, "graph_name is required")
		return
	}
	if req.InitialState == nil {
		jsonError(w, http.StatusBadRequest, "initial_state is required")
		return
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}
	streaming := req.Stream == nil || *req.Stream
	s.logger.Info("execute %s (thread %s, stream=%v)", req.GraphName, threadID, streaming)

	exec := engine.ExecuteRequest{
		GraphName:    req.GraphName,
		InitialState: req.InitialState,
		ThreadID:     threadID,
	}
	run := func(ctx context.Context, sink stream.Sink) (*engine.Result, error) {
		return s.engine.Execute(ctx, exec, sink)
	}
	if streaming {
		s.streamRun(w, r, run)
		return
	}
	s.awaitResult(w, r, threadID, run)
}

type resumeRequest struct {
	ThreadID string `json:"thread_id"`
	Decision any    `json:"decision"`
	Stream   *bool  `json:"stream"`
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	var req resumeRequest
	if err := decodeBody(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ThreadID == "" {
		jsonError(w, http.StatusBadRequest, "thread_id is required")
		return
	}

	// A missing decision passes through as nil; the approval gate treats
	// that as a rejection rather than silently approving.
	streaming := req.Stream != nil && *req.Stream
	s.logger.Info("resume thread %s (decision %v, stream=%v)", req.ThreadID, req.Decision, streaming)

	run := func(ctx context.Context, sink stream.Sink) (*engine.Result, error) {
		return s.engine.Resume(ctx, req.ThreadID, req.Decision, sink)
	}
	if streaming {
		s.streamRun(w, r, run)
		return
	}
	s.awaitResult(w, r, req.ThreadID, run)
}

type cancelRequest struct {
	ThreadID string `json:"thread_id"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeBody(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ThreadID == "" {
		jsonError(w, http.StatusBadRequest, "thread_id is required")
		return
	}

	cancelled := s.engine.Cancel(req.ThreadID)
	s.logger.Info("cancel thread %s (live=%v)", req.ThreadID, cancelled)
	writeJSON(w, http.StatusOK, map[string]any{
		"thread_id": req.ThreadID,
		"cancelled": cancelled,
	})
}

// approvalResponse describes the suspension a paused thread is waiting on.
type approvalResponse struct {
	ThreadID      string            `json:"thread_id"`
	GraphName     string            `json:"graph_name"`
	SuspendedNode string            `json:"suspended_node"`
	Token         *graph.Suspension `json:"token,omitempty"`
	PreviewHTML   string            `json:"preview_html,omitempty"`
	State         json.RawMessage   `json:"state,omitempty"`
}

func (s *Server) handleApproval(w http.ResponseWriter, r *http.Request) {
	pending, err := s.engine.PendingApproval(r.Context(), r.PathValue("thread_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := approvalResponse{
		ThreadID:      pending.ThreadID,
		GraphName:     pending.GraphName,
		SuspendedNode: pending.SuspendedNode,
		Token:         pending.Suspension,
		State:         pending.State,
	}
	if pending.Suspension != nil {
		resp.PreviewHTML = renderPreview(pending.Suspension.Preview)
	}
	writeJSON(w, http.StatusOK, resp)
}

// runFunc abstracts over execute and resume so both share one streaming and
// one await path.
type runFunc func(ctx context.Context, sink stream.Sink) (*engine.Result, error)

type runOutcome struct {
	res *engine.Result
	err error
}

// streamRun drives a run against an SSE response. Headers are held back
// until the first event, so failures before the run starts still answer
// with plain status codes. Once streaming, write failures are discarded and
// the channel drained to the end: a dropped connection never cancels a run.
func (s *Server) streamRun(w http.ResponseWriter, r *http.Request, run runFunc) {
	st := stream.New(s.streamBuffer)
	done := make(chan runOutcome, 1)
	go func() {
		res, err := run(r.Context(), st)
		st.Close()
		done <- runOutcome{res, err}
	}()

	first, ok := <-st.Events()
	if !ok {
		// The run produced no events, so it never started.
		out := <-done
		if out.err != nil {
			s.writeError(w, out.err)
			return
		}
		s.writeResult(w, out.res)
		return
	}

	stream.SetSSEHeaders(w.Header())
	w.WriteHeader(http.StatusOK)

	last := first.Type
	_ = stream.WriteSSE(w, first)
	for ev := range st.Events() {
		last = ev.Type
		_ = stream.WriteSSE(w, ev)
	}

	// A dead run context can swallow the closing frames: infrastructure
	// failures abort the drive mid-loop, and cancellation races against its
	// own workflow_error and workflow_rejected emits. Rebuild the ending
	// from the result so the client always sees how the run stopped.
	out := <-done
	if out.res == nil {
		return
	}
	closing := stream.Event{
		GraphName: first.GraphName,
		ThreadID:  first.ThreadID,
		Timestamp: stream.Now(),
	}
	switch {
	case out.res.Status == graph.StatusError && out.res.Err != nil && last != stream.EventWorkflowError:
		closing.Type = stream.EventWorkflowError
		closing.Error = out.res.Err.Error()
		_ = stream.WriteSSE(w, closing)
	case out.res.Status == graph.StatusRejected && last != stream.EventWorkflowRejected:
		if last != stream.EventWorkflowError {
			errFrame := closing
			errFrame.Type = stream.EventWorkflowError
			errFrame.Error = "cancelled"
			_ = stream.WriteSSE(w, errFrame)
		}
		closing.Type = stream.EventWorkflowRejected
		closing.State = out.res.FinalState
		_ = stream.WriteSSE(w, closing)
	}
}

// awaitResult answers a non-streaming request with the run's first stop, or
// 504 when the run outlives the response deadline. The run continues past
// the deadline; its checkpoints stay reachable under the thread id.
func (s *Server) awaitResult(w http.ResponseWriter, r *http.Request, threadID string, run runFunc) {
	done := make(chan runOutcome, 1)
	go func() {
		res, err := run(r.Context(), stream.Discard())
		done <- runOutcome{res, err}
	}()

	timer := time.NewTimer(s.resultTimeout)
	defer timer.Stop()
	select {
	case out := <-done:
		if out.err != nil {
			s.writeError(w, out.err)
			return
		}
		s.writeResult(w, out.res)
	case <-timer.C:
		s.logger.Warn("thread %s still running after %s, releasing the response", threadID, s.resultTimeout)
		writeJSON(w, http.StatusGatewayTimeout, map[string]any{
			"thread_id": threadID,
			"error":     fmt.Sprintf("workflow did not settle within %s; the run continues under this thread_id", s.resultTimeout),
		})
	}
}

// runResponse is the non-streaming result body.
type runResponse struct {
	ThreadID   string            `json:"thread_id"`
	Status     graph.Status      `json:"status"`
	FinalState json.RawMessage   `json:"final_state,omitempty"`
	Interrupt  *graph.Suspension `json:"interrupt_data,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func (s *Server) writeResult(w http.ResponseWriter, res *engine.Result) {
	resp := runResponse{ThreadID: res.ThreadID, Status: res.Status}
	switch res.Status {
	case graph.StatusPaused:
		resp.Interrupt = res.Interrupt
	case graph.StatusError:
		// Initial states that fail to decode are validation failures that
		// never started the run; report them as such.
		var verr *registry.ValidationError
		if errors.As(res.Err, &verr) {
			s.writeError(w, res.Err)
			return
		}
		if res.Err != nil {
			resp.Error = res.Err.Error()
		}
	default:
		resp.FinalState = res.FinalState
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeError translates registry and engine failures into the documented
// status codes: 400 bad initial state, 404 unknown graph or thread, 409
// busy or not suspended, 500 load and internal failures.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *registry.ValidationError
	switch {
	case errors.As(err, &verr):
		jsonError(w, http.StatusBadRequest, "Invalid initial state: "+verr.Error())
	case errors.Is(err, registry.ErrUnknownGraph), errors.Is(err, engine.ErrUnknownThread):
		jsonError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrThreadBusy), errors.Is(err, engine.ErrNotSuspended):
		jsonError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed: %v", err)
		jsonError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeBody decodes a JSON request body, rejecting unknown fields.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func jsonError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
