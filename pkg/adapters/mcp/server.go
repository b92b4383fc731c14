// Package mcp exposes the engine as Model Context Protocol tools, so an AI
// agent drives a session by calling tools and following the returned
// instructions.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/guidance"
	"github.com/aretw0/guidance/internal/logging"
	"github.com/aretw0/guidance/pkg/domain"
	"github.com/aretw0/guidance/pkg/runner"
)

const (
	variantPizza  domain.Variant = "pizza"
	variantTriage domain.Variant = "triage"
)

// Engine defines the interface required by the MCP server.
type Engine interface {
	Start(ctx context.Context, variant domain.Variant) (*domain.Instruction, error)
	Continue(ctx context.Context, sessionID string, in domain.Input) (*domain.Instruction, error)
	Cancel(ctx context.Context, sessionID string) error
	Inspect(ctx context.Context, sessionID string) (*domain.Snapshot, error)
	Variants() []domain.Variant
}

// Server wraps the engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger. Stdio transports must log to stderr.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		logger: logging.NewNop(),
		mcpServer: server.NewMCPServer("guidance-mcp", strings.TrimSpace(guidance.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on the given port until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) hasVariant(v domain.Variant) bool {
	for _, known := range s.engine.Variants() {
		if known == v {
			return true
		}
	}
	return false
}

func (s *Server) registerTools() {
	sessionArg := mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID returned by the start tool"))

	if s.hasVariant(variantPizza) {
		s.mcpServer.AddTool(mcp.NewTool("start_pizza_order",
			mcp.WithDescription("Start a new pizza order. Follow the returned instructions exactly: ask the user the prompt and pass their answer to continue_pizza_order."),
			mcp.WithOutputSchema[domain.Instruction](),
		), mcp.NewStructuredToolHandler(s.startHandler(variantPizza)))

		s.mcpServer.AddTool(mcp.NewTool("continue_pizza_order",
			mcp.WithDescription("Submit the user's answer for the current step of a pizza order."),
			sessionArg,
			mcp.WithString("user_response", mcp.Required(), mcp.Description("The user's answer, verbatim")),
			mcp.WithOutputSchema[domain.Instruction](),
		), mcp.NewStructuredToolHandler(s.handleContinuePizza))

		s.mcpServer.AddTool(mcp.NewTool("get_order_status",
			mcp.WithDescription("Show the current state and collected choices of a pizza order."),
			sessionArg,
			mcp.WithOutputSchema[domain.Snapshot](),
		), mcp.NewStructuredToolHandler(s.handleInspect))

		s.mcpServer.AddTool(mcp.NewTool("cancel_pizza_order",
			mcp.WithDescription("Cancel a pizza order."),
			sessionArg,
			mcp.WithOutputSchema[domain.Instruction](),
		), mcp.NewStructuredToolHandler(s.handleCancel))
	}

	if s.hasVariant(variantTriage) {
		s.mcpServer.AddTool(mcp.NewTool("start_triage",
			mcp.WithDescription("Start a triage protocol. Each step names the data to collect; report it with continue_triage. Steps cannot be skipped."),
			mcp.WithOutputSchema[domain.Instruction](),
		), mcp.NewStructuredToolHandler(s.startHandler(variantTriage)))

		s.mcpServer.AddTool(mcp.NewTool("continue_triage",
			mcp.WithDescription("Report the data collected for the current triage step."),
			sessionArg,
			mcp.WithString("agent_report", mcp.Required(), mcp.Description("JSON object with the fields listed in required_data")),
			mcp.WithOutputSchema[domain.Instruction](),
		), mcp.NewStructuredToolHandler(s.handleContinueTriage))
	}

	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start a session of any registered workflow."),
		mcp.WithString("variant", mcp.Required(), mcp.Description("Workflow name"), mcp.Enum(s.variantNames()...)),
		mcp.WithOutputSchema[domain.Instruction](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("continue_session",
		mcp.WithDescription("Continue a session with free text, a JSON report, or both."),
		sessionArg,
		mcp.WithString("text", mcp.Description("Free-text answer")),
		mcp.WithString("report", mcp.Description("JSON object report")),
		mcp.WithOutputSchema[domain.Instruction](),
	), mcp.NewStructuredToolHandler(s.handleContinue))

	s.mcpServer.AddTool(mcp.NewTool("cancel_session",
		mcp.WithDescription("Cancel a session."),
		sessionArg,
		mcp.WithOutputSchema[domain.Instruction](),
	), mcp.NewStructuredToolHandler(s.handleCancel))

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Read a session without changing it."),
		sessionArg,
		mcp.WithOutputSchema[domain.Snapshot](),
	), mcp.NewStructuredToolHandler(s.handleInspect))
}

func (s *Server) variantNames() []string {
	variants := s.engine.Variants()
	names := make([]string, len(variants))
	for i, v := range variants {
		names[i] = string(v)
	}
	return names
}

// Handler methods for structured tools.
// Session errors become "error" instructions so the agent can read them;
// only unexpected failures are returned as tool errors.

func (s *Server) startHandler(variant domain.Variant) func(context.Context, mcp.CallToolRequest, map[string]any) (domain.Instruction, error) {
	return func(ctx context.Context, _ mcp.CallToolRequest, _ map[string]any) (domain.Instruction, error) {
		return s.start(ctx, variant)
	}
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (domain.Instruction, error) {
	variant, _ := args["variant"].(string)
	return s.start(ctx, domain.Variant(variant))
}

func (s *Server) start(ctx context.Context, variant domain.Variant) (domain.Instruction, error) {
	inst, err := s.engine.Start(ctx, variant)
	if err != nil {
		return s.failure("", err)
	}
	return *inst, nil
}

func (s *Server) handleContinuePizza(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (domain.Instruction, error) {
	id, _ := args["session_id"].(string)
	text, _ := args["user_response"].(string)
	return s.continueSession(ctx, id, text, nil)
}

func (s *Server) handleContinueTriage(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (domain.Instruction, error) {
	id, _ := args["session_id"].(string)
	report, err := decodeReport(args["agent_report"])
	if err != nil {
		return s.failure(id, err)
	}
	if report == nil {
		report = map[string]any{}
	}
	return s.continueSession(ctx, id, "", report)
}

func (s *Server) handleContinue(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (domain.Instruction, error) {
	id, _ := args["session_id"].(string)
	text, _ := args["text"].(string)
	report, err := decodeReport(args["report"])
	if err != nil {
		return s.failure(id, err)
	}
	return s.continueSession(ctx, id, text, report)
}

func (s *Server) continueSession(ctx context.Context, id, text string, report map[string]any) (domain.Instruction, error) {
	clean, err := runner.SanitizeInput(text)
	if err != nil {
		s.logger.Warn("MCP continue: input rejected", "session_id", id, "error", err, "size", len(text))
		return s.failure(id, err)
	}
	report, err = runner.SanitizeReport(report)
	if err != nil {
		s.logger.Warn("MCP continue: report rejected", "session_id", id, "error", err)
		return s.failure(id, err)
	}

	inst, err := s.engine.Continue(ctx, id, domain.Input{Text: clean, Report: report})
	if err != nil {
		return s.failure(id, err)
	}
	return *inst, nil
}

func (s *Server) handleCancel(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (domain.Instruction, error) {
	id, _ := args["session_id"].(string)
	if err := s.engine.Cancel(ctx, id); err != nil {
		return s.failure(id, err)
	}
	return domain.Instruction{
		Status:    domain.StatusCancelled,
		SessionID: id,
		Message:   "Session cancelled.",
	}, nil
}

func (s *Server) handleInspect(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (domain.Snapshot, error) {
	id, _ := args["session_id"].(string)
	snap, err := s.engine.Inspect(ctx, id)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("inspect failed: %w", err)
	}
	return *snap, nil
}

// failure converts expected session errors into an error instruction.
func (s *Server) failure(id string, err error) (domain.Instruction, error) {
	if errors.Is(err, domain.ErrInvariant) {
		s.logger.Error("MCP: engine invariant violated", "session_id", id, "error", err)
		return domain.Instruction{}, err
	}
	return domain.Instruction{
		Status:    domain.StatusError,
		SessionID: id,
		Message:   err.Error(),
	}, nil
}

// decodeReport accepts a JSON object or a string holding one.
func decodeReport(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var report map[string]any
		if err := json.Unmarshal([]byte(v), &report); err != nil {
			return nil, fmt.Errorf("%w: report is not a JSON object: %v", domain.ErrValidationFailed, err)
		}
		return report, nil
	default:
		return nil, fmt.Errorf("%w: unsupported report type %T", domain.ErrValidationFailed, raw)
	}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("guidance://variants", "Registered workflows",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.engine.Variants())
		if err != nil {
			return nil, fmt.Errorf("failed to encode variants: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "guidance://variants",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
