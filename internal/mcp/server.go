// Package mcp exposes the calculator engine to external agents over the
// Model Context Protocol, on stdio or an authenticated HTTP endpoint.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"mdcalc-mcp-server/internal/auth"
	"mdcalc-mcp-server/internal/catalog"
	"mdcalc-mcp-server/internal/config"
	"mdcalc-mcp-server/internal/engine"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Server wires the MCP runtime, the calculator catalog, and the interaction
// engine.
type Server struct {
	cfg       *config.Config
	catalog   *catalog.Catalog
	engine    *engine.Engine
	tools     map[string]Tool
	mcpServer *mcpserver.MCPServer
}

// Tool describes the contract for MCP tool implementations. RequiredScope
// names the OAuth scope a bearer token must carry when the tool is invoked
// over HTTP; on stdio the channel itself is the trust boundary.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	RequiredScope() string
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// NewServer constructs the MCP server and registers all tools.
func NewServer(cfg *config.Config, cat *catalog.Catalog, eng *engine.Engine) (*Server, error) {
	mcpSrv := mcpserver.NewMCPServer(
		cfg.Server.Name,
		cfg.Server.Version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithLogging(),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithRecovery(),
	)

	server := &Server{
		cfg:       cfg,
		catalog:   cat,
		engine:    eng,
		tools:     make(map[string]Tool),
		mcpServer: mcpSrv,
	}

	server.registerAllTools()
	server.registerAllResources()
	return server, nil
}

// Start launches the stdio server.
func (s *Server) Start(ctx context.Context) error {
	stdio := mcpserver.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// StartHTTP hosts the server over HTTP behind bearer-token validation.
// Token signature, expiry, issuer, and audience are checked before any tool
// runs; per-tool scopes are enforced in the tool wrapper.
func (s *Server) StartHTTP(ctx context.Context, port int) error {
	verifier := auth.NewVerifier(
		s.cfg.HTTP.Auth.JWKSURL,
		s.cfg.HTTP.Auth.Issuer,
		s.cfg.HTTP.Auth.Audience,
	)

	base := "http://localhost:" + strconv.Itoa(port)
	sseServer := mcpserver.NewSSEServer(s.mcpServer, mcpserver.WithBaseURL(base))

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Group(func(r chi.Router) {
		r.Use(verifier.Middleware)
		r.Handle("/sse", sseServer.SSEHandler())
		r.Handle("/message", sseServer.MessageHandler())
	})

	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(port),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Printf("HTTP server shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// ExecuteTool executes a tool directly (used by tests and harnesses).
func (s *Server) ExecuteTool(name string, args map[string]interface{}) (interface{}, error) {
	tool, exists := s.tools[name]
	if !exists {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return tool.Execute(context.Background(), args)
}

func (s *Server) registerAllTools() {
	s.registerTool(&ListCalculatorsTool{catalog: s.catalog, cfg: s.cfg})
	s.registerTool(&SearchCalculatorsTool{catalog: s.catalog, engine: s.engine, cfg: s.cfg})
	s.registerTool(&GetCalculatorTool{catalog: s.catalog, engine: s.engine, cfg: s.cfg})
	s.registerTool(&ExecuteCalculatorTool{catalog: s.catalog, engine: s.engine, cfg: s.cfg})
}

func (s *Server) registerTool(tool Tool) {
	s.tools[tool.Name()] = tool

	schema, err := json.Marshal(tool.InputSchema())
	if err != nil {
		schema = json.RawMessage(`{"type":"object"}`)
	}

	mcpTool := mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), schema)
	s.mcpServer.AddTool(mcpTool, s.wrapTool(tool))
}

func (s *Server) wrapTool(tool Tool) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := checkScope(ctx, tool); err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent(err.Error())},
				IsError: true,
			}, nil
		}

		args := request.GetArguments()
		if args == nil {
			args = map[string]interface{}{}
		}

		result, err := tool.Execute(ctx, args)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent(fmt.Sprintf("tool %s failed: %v", tool.Name(), err))},
				IsError: true,
			}, nil
		}

		payload := marshalToolPayload(tool.Name(), result)
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(string(payload))},
			IsError: false,
		}, nil
	}
}

// checkScope enforces the tool's required scope when the request arrived
// through the authenticated HTTP transport. Stdio requests carry no claims
// and pass through.
func checkScope(ctx context.Context, tool Tool) error {
	claims := auth.GetClaims(ctx)
	if claims == nil {
		return nil
	}
	if err := claims.RequireScope(tool.RequiredScope()); err != nil {
		return fmt.Errorf("tool %s: %w", tool.Name(), err)
	}
	return nil
}

func marshalToolPayload(toolName string, result interface{}) []byte {
	payload, marshalErr := json.Marshal(result)
	if marshalErr == nil {
		return payload
	}

	fallback := map[string]interface{}{
		"success": false,
		"error":   fmt.Sprintf("tool %s returned non-serializable payload: %v", toolName, marshalErr),
	}
	payload, fallbackErr := json.Marshal(fallback)
	if fallbackErr == nil {
		return payload
	}

	return []byte(fmt.Sprintf(`{"success":false,"error":"tool %s failed to encode payload"}`, toolName))
}
