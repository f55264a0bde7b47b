// Package server exposes the local agent to remote peers: the agent card,
// the message endpoint in both JSON and SSE streaming form, and a structured
// tool-call path that bypasses the language model.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/convene-dev/convene/pkg/a2a"
	"github.com/convene-dev/convene/pkg/config"
	"github.com/convene-dev/convene/pkg/observability"
	"github.com/convene-dev/convene/pkg/tools"
)

// Dispatcher interprets free-form text. *tools.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, text string) string
}

type Server struct {
	agent      config.AgentConfig
	address    string
	dispatcher Dispatcher
	registry   *tools.Registry
	metrics    *observability.Metrics
	logger     *slog.Logger

	httpServer *http.Server
}

func New(cfg *config.Config, dispatcher Dispatcher, registry *tools.Registry,
	metrics *observability.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = &observability.Metrics{}
	}
	return &Server{
		agent:      cfg.Agent,
		address:    cfg.Server.Address(),
		dispatcher: dispatcher,
		registry:   registry,
		metrics:    metrics,
		logger:     logger,
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogging(s.logger))

	r.Get(a2a.WellKnownCardPath, s.handleAgentCard)
	r.Post("/", s.handleMessage)
	// Pathed aliases for peers that address the message routes directly
	// instead of the card URL.
	r.Post("/message/send", s.handleMessage)
	r.Post("/message/stream", s.handleMessageStream)
	r.Post("/tools/call", s.handleToolCall)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/metrics", s.metrics.Handler().ServeHTTP)

	return r
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("agent server listening", "address", s.address, "agent", s.agent.Name)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("agent server failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	url := s.agent.URL
	if url == "" {
		url = "http://" + s.address
	}
	writeJSON(w, http.StatusOK, a2a.AgentCard{
		Name:         s.agent.Name,
		Description:  s.agent.Description,
		Version:      s.agent.Version,
		URL:          url,
		Capabilities: a2a.AgentCapabilities{Streaming: true},
		Skills: []a2a.AgentSkill{
			{ID: "calendar-booking", Name: "Calendar booking",
				Description: "Negotiates and books meetings on the principal's calendar"},
		},
	})
}

// handleMessage answers a peer's message/send. The reply goes back as a
// single artifact envelope, or as a task/artifact/status frame sequence when
// the caller asks for an event stream.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	s.serveMessage(w, r, wantsStream(r))
}

// handleMessageStream always answers with an event stream regardless of the
// Accept header.
func (s *Server) handleMessageStream(w http.ResponseWriter, r *http.Request) {
	s.serveMessage(w, r, true)
}

func (s *Server) serveMessage(w http.ResponseWriter, r *http.Request, stream bool) {
	var req a2a.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request envelope"})
		return
	}

	text := firstText(req.Params.Message)
	if text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message contains no text part"})
		return
	}

	contextID := req.Params.Message.ContextID
	if contextID == "" {
		contextID = uuid.NewString()
	}

	reply := s.dispatcher.Dispatch(r.Context(), text)

	if stream {
		s.streamReply(w, contextID, reply)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id": req.ID,
		"result": map[string]interface{}{
			"kind":      a2a.FrameKindArtifactUpdate,
			"contextId": contextID,
			"artifact": map[string]interface{}{
				"parts": []map[string]interface{}{{"kind": "text", "text": reply}},
			},
		},
	})
}

func (s *Server) streamReply(w http.ResponseWriter, contextID, reply string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	frames := []map[string]interface{}{
		{"kind": a2a.FrameKindTask, "id": uuid.NewString(), "contextId": contextID},
		{
			"kind":      a2a.FrameKindArtifactUpdate,
			"contextId": contextID,
			"artifact": map[string]interface{}{
				"parts": []map[string]interface{}{{"kind": "text", "text": reply}},
			},
		},
		{"kind": a2a.FrameKindStatusUpdate, "final": true,
			"status": map[string]interface{}{"state": "completed"}},
	}
	for _, frame := range frames {
		payload, err := json.Marshal(map[string]interface{}{"result": frame})
		if err != nil {
			s.logger.Warn("failed to marshal stream frame", "error", err)
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}

// handleToolCall is the structured path: callers that already know the tool
// skip the language model entirely.
func (s *Server) handleToolCall(w http.ResponseWriter, r *http.Request) {
	var call struct {
		Tool      string                 `json:"tool"`
		Arguments map[string]interface{} `json:"arguments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed tool call"})
		return
	}

	tool, ok := s.registry.Get(call.Tool)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("unknown tool %q", call.Tool)})
		return
	}

	start := time.Now()
	result, err := tool.Execute(r.Context(), call.Arguments)
	s.metrics.RecordToolCall(r.Context(), call.Tool, time.Since(start), err == nil && result.Success)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func firstText(msg a2a.Message) string {
	for _, part := range msg.Parts {
		if part.Text != "" {
			return part.Text
		}
	}
	return ""
}

func wantsStream(r *http.Request) bool {
	return r.Header.Get("Accept") == "text/event-stream"
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// requestLogging logs one line per request.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request handled",
				"method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
		})
	}
}
