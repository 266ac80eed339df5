// Package server exposes the tracer driver's exported operations over
// plain HTTP + JSON. The teacher's equivalent (internal/server/server.go)
// built this surface on ConnectRPC against generated protobuf stubs; those
// stubs do not exist in this repository and cannot be regenerated without
// running the Go/protoc toolchain, so this package preserves the same
// handler-per-operation structure over net/http instead (see DESIGN.md).
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lpaquette/bgptracer/internal/tracer"
	"github.com/lpaquette/bgptracer/internal/tracermetrics"
)

// Server serves the tracer driver's exported operations.
type Server struct {
	driver  *tracer.Driver
	logger  *slog.Logger
	metrics *tracermetrics.Collector

	mux     *http.ServeMux
	handler http.Handler
}

// New builds a Server wrapping driver, logging through logger. metrics may
// be nil, in which case the server's gauge snapshots after each mutating
// call are skipped.
func New(driver *tracer.Driver, logger *slog.Logger, metrics *tracermetrics.Collector) *Server {
	s := &Server{driver: driver, logger: logger, metrics: metrics, mux: http.NewServeMux()}
	s.routes()
	s.handler = RecoveryMiddleware(logger)(LoggingMiddleware(logger)(s.mux))

	return s
}

// observeGraph snapshots the current graph size into the gauges, if a
// metrics collector was configured.
func (s *Server) observeGraph() {
	if s.metrics == nil {
		return
	}

	g := s.driver.Graph()
	s.metrics.ObserveGraph(len(g.States()), len(g.FinalStates()), g.MaxQueueDepth())
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /v1/trace/start", s.handleStart)
	s.mux.HandleFunc("POST /v1/trace/step", s.handleStep)
	s.mux.HandleFunc("POST /v1/trace/whole-graph", s.handleWholeGraph)
	s.mux.HandleFunc("GET /v1/states", s.handleListStates)
	s.mux.HandleFunc("GET /v1/states/{id}", s.handleGetState)
	s.mux.HandleFunc("GET /v1/states/{id}/dump", s.handleStateDump)
	s.mux.HandleFunc("POST /v1/states/{id}/inject", s.handleInjectState)
	s.mux.HandleFunc("POST /v1/mark-can-lead-to-final", s.handleMark)
	s.mux.HandleFunc("GET /v1/cycles/one", s.handleDetectOneCycle)
	s.mux.HandleFunc("GET /v1/cycles/all", s.handleDetectAllCycles)
}

// -------------------------------------------------------------------------
// Request/response DTOs
// -------------------------------------------------------------------------

type stepRequest struct {
	StateID    int `json:"state_id"`
	TransIndex int `json:"trans_index"`
}

type stepResponse struct {
	Kind    string `json:"kind"`
	StateID int    `json:"state_id"`
}

type wholeGraphResponse struct {
	GraphFull   bool     `json:"graph_full"`
	Failures    []string `json:"failures,omitempty"`
	StatesTotal int      `json:"states_total"`
	FinalTotal  int      `json:"final_states_total"`
}

type stateResponse struct {
	ID                int    `json:"id"`
	Depth             int    `json:"depth"`
	Flags             string `json:"flags"`
	AllowedCount      int    `json:"allowed_count"`
	OutgoingCount     int    `json:"outgoing_count"`
	IncomingCount     int    `json:"incoming_count"`
	MaxSessionDepth   uint   `json:"max_session_depth"`
	DefinitelyBlocked bool   `json:"definitely_blocked"`
}

// -------------------------------------------------------------------------
// Handlers
// -------------------------------------------------------------------------

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	root, err := s.driver.Start(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, toStateResponse(root))
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.driver.TraceStep(r.Context(), tracer.StateID(req.StateID), req.TransIndex)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.observeGraph()

	s.writeJSON(w, http.StatusOK, stepResponse{Kind: stepKindString(res.Kind), StateID: int(res.StateID)})
}

func (s *Server) handleWholeGraph(w http.ResponseWriter, r *http.Request) {
	res, err := s.driver.TraceWholeGraph(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.observeGraph()

	resp := wholeGraphResponse{
		GraphFull:   res.GraphFull,
		StatesTotal: len(s.driver.Graph().States()),
		FinalTotal:  len(s.driver.Graph().FinalStates()),
	}

	for _, f := range res.Failures {
		resp.Failures = append(resp.Failures, f.Error())
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListStates(w http.ResponseWriter, _ *http.Request) {
	states := s.driver.Graph().States()
	out := make([]stateResponse, len(states))

	for i, st := range states {
		out[i] = toStateResponse(st)
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	id, err := parseStateID(r.PathValue("id"))
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	st, err := s.driver.Graph().State(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, toStateResponse(st))
}

func (s *Server) handleStateDump(w http.ResponseWriter, r *http.Request) {
	id, err := parseStateID(r.PathValue("id"))
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	st, err := s.driver.Graph().State(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(st.DebugString()))
}

func (s *Server) handleMark(w http.ResponseWriter, _ *http.Request) {
	s.driver.Graph().MarkCanLeadToFinal()
	s.observeGraph()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInjectState(w http.ResponseWriter, r *http.Request) {
	id, err := parseStateID(r.PathValue("id"))
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.driver.InjectState(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDetectOneCycle(w http.ResponseWriter, _ *http.Request) {
	cycle := s.driver.Graph().DetectOneCycle()
	if cycle == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"found": false})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"found":  true,
		"prefix": cycle.Prefix,
		"cycle":  cycle.Cycle,
	})
}

func (s *Server) handleDetectAllCycles(w http.ResponseWriter, _ *http.Request) {
	cycles := s.driver.Graph().DetectAllCycles()
	s.writeJSON(w, http.StatusOK, cycles)
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

func toStateResponse(st *tracer.State) stateResponse {
	return stateResponse{
		ID:                int(st.ID),
		Depth:             st.Depth,
		Flags:             flagsLabel(st),
		AllowedCount:      len(st.Queue.AllowedTransitions()),
		OutgoingCount:     len(st.Outgoing),
		IncomingCount:     len(st.Incoming),
		MaxSessionDepth:   st.Queue.MaxSessionDepth(),
		DefinitelyBlocked: st.DefinitelyBlocked,
	}
}

func flagsLabel(st *tracer.State) string {
	switch {
	case st.Flags.Has(tracer.FlagFinal):
		return "final"
	case st.IsComplete():
		return "complete"
	default:
		return "active"
	}
}

func stepKindString(k tracer.StepKind) string {
	switch k {
	case tracer.StepNewState:
		return "new_state"
	case tracer.StepMergedInto:
		return "merged_into"
	case tracer.StepAlreadyTaken:
		return "already_taken"
	default:
		return "invalid"
	}
}

func parseStateID(raw string) (tracer.StateID, error) {
	var id int
	if _, err := fmt.Sscanf(raw, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid state id %q: %w", raw, err)
	}

	return tracer.StateID(id), nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// mapTracerError maps a tracer sentinel error to an HTTP status code,
// following the same error-to-transport mapping shape as the teacher's
// mapManagerError.
func mapTracerError(err error) int {
	switch {
	case errors.Is(err, tracer.ErrUnknownState), errors.Is(err, tracer.ErrUnknownTransition):
		return http.StatusNotFound
	case errors.Is(err, tracer.ErrGraphFull), errors.Is(err, tracer.ErrFinalListFull):
		return http.StatusInsufficientStorage
	case errors.Is(err, tracer.ErrIncompatibleTopology):
		return http.StatusConflict
	case errors.Is(err, tracer.ErrDriverBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, tracer.ErrSimulatorStepFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSONError(w, mapTracerError(err), err)
}
