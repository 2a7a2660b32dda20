// Package mcp exposes the engine as Model Context Protocol tools, so an
// assistant can run travel turns and inspect routing.
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

	"github.com/aretw0/wayfarer"
	"github.com/aretw0/wayfarer/internal/logging"
	httpAdapter "github.com/aretw0/wayfarer/pkg/adapters/http"
	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

const capabilitiesURI = "wayfarer://capabilities"

// Engine defines what the MCP server needs from wayfarer.Engine.
type Engine interface {
	RunTurn(ctx context.Context, utterance, sessionKey, profile string) (*domain.TurnResult, error)
	Route(ctx context.Context, utterance, sessionKey, profile string) (domain.RoutingDecision, error)
	Capabilities() []domain.CapabilityDescriptor
}

// TurnResponse is the structured output of run_turn.
type TurnResponse struct {
	TurnID       string   `json:"turn_id" jsonschema_description:"Identifier of the turn"`
	Reply        string   `json:"reply" jsonschema_description:"Merged reply, never empty"`
	Contributors []string `json:"contributors" jsonschema_description:"Responders whose text appears in the reply"`
	LatencyMs    int64    `json:"latency_ms" jsonschema_description:"Wall time of the turn"`
	UsedFallback bool     `json:"used_fallback" jsonschema_description:"Whether any selected responder answered from its fallback table"`
}

// RouteResponse is the structured output of route.
type RouteResponse struct {
	Selected []domain.ScoredResponder `json:"selected" jsonschema_description:"Selected responders in order, with scores"`
	Forced   bool                     `json:"forced" jsonschema_description:"Whether the default responder was forced"`
}

// Server wraps the Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP Server instance. A nil logger discards output.
func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("wayfarer-mcp", strings.TrimSpace(wayfarer.Version)),
		logger:    logger,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) registerTools() {
	turnTool := mcp.NewTool("run_turn",
		mcp.WithDescription("Answer one traveler utterance with the best-matching travel specialists."),
		mcp.WithString("utterance", mcp.Required(), mcp.Description("What the traveler said")),
		mcp.WithString("session_key", mcp.Description("Conversation key; turns with the same key share context")),
		mcp.WithString("profile", mcp.Description("Latency profile: fast, interactive (default) or deep")),
		mcp.WithOutputSchema[TurnResponse](),
	)
	s.mcpServer.AddTool(turnTool, mcp.NewStructuredToolHandler(s.handleRunTurn))

	routeTool := mcp.NewTool("route",
		mcp.WithDescription("Show which specialists would answer an utterance, without running them."),
		mcp.WithString("utterance", mcp.Required(), mcp.Description("What the traveler said")),
		mcp.WithString("session_key", mcp.Description("Conversation key used for continuity")),
		mcp.WithString("profile", mcp.Description("Latency profile: fast, interactive (default) or deep")),
		mcp.WithOutputSchema[RouteResponse](),
	)
	s.mcpServer.AddTool(routeTool, mcp.NewStructuredToolHandler(s.handleRoute))

	s.mcpServer.AddTool(mcp.NewTool("list_capabilities",
		mcp.WithDescription("List the registered travel specialists and their trigger keywords."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := json.Marshal(s.engine.Capabilities())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

func (s *Server) handleRunTurn(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (TurnResponse, error) {
	utterance, sessionKey, profile, err := turnArgs(args)
	if err != nil {
		s.logger.Warn("run_turn: input rejected", "err", err)
		return TurnResponse{}, err
	}

	res, err := s.engine.RunTurn(ctx, utterance, sessionKey, profile)
	if err != nil {
		return TurnResponse{}, fmt.Errorf("run_turn failed: %w", err)
	}
	return TurnResponse{
		TurnID:       res.TurnID,
		Reply:        res.Reply,
		Contributors: res.ContributingResponderIDs,
		LatencyMs:    res.LatencyMs,
		UsedFallback: res.UsedFallback,
	}, nil
}

func (s *Server) handleRoute(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (RouteResponse, error) {
	utterance, sessionKey, profile, err := turnArgs(args)
	if err != nil {
		return RouteResponse{}, err
	}

	d, err := s.engine.Route(ctx, utterance, sessionKey, profile)
	if err != nil {
		return RouteResponse{}, fmt.Errorf("route failed: %w", err)
	}
	return RouteResponse{Selected: d.Entries, Forced: d.Forced}, nil
}

func turnArgs(args map[string]interface{}) (utterance, sessionKey, profile string, err error) {
	raw, _ := args["utterance"].(string)
	sessionKey, _ = args["session_key"].(string)
	profile, _ = args["profile"].(string)

	utterance, err = httpAdapter.SanitizeUtterance(raw)
	if err != nil {
		return "", "", "", fmt.Errorf("input rejected: %w", err)
	}
	return utterance, sessionKey, profile, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(capabilitiesURI, "Registered travel specialists",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.engine.Capabilities())
		if err != nil {
			return nil, fmt.Errorf("failed to encode capabilities: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      capabilitiesURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
