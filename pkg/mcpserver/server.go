// Package mcpserver provides a small MCP (Model Context Protocol) server.
//
// It speaks JSON-RPC 2.0 over stdio or HTTP, keeps sessions, runs a
// middleware chain, and dispatches to explicitly registered tools and
// resources. Call metadata (HTTP headers) travels in the request context.
//
// Quick Start:
//
//	server := mcpserver.New("my-server", "1.0.0")
//	server.RegisterTool(&MyTool{})
//	server.RunHTTP(ctx, ":8000") // or server.RunStdio(ctx, os.Stdin, os.Stdout)
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// SupportedProtocolVersions lists the MCP revisions this server accepts,
// newest first.
var SupportedProtocolVersions = []string{"2025-06-18", "2025-03-26", "2024-11-05"}

// Server is the core MCP server that manages tools and handles JSON-RPC requests.
type Server struct {
	name         string
	version      string
	instructions string
	tools        map[string]ToolHandler
	resources    map[string]ResourceHandler
	sessions     map[string]time.Time // id -> last seen
	sessionTTL   time.Duration
	sessionMu    sync.Mutex
	middleware   []Middleware
	logger       *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// DefaultSessionTTL is how long an idle session stays valid.
const DefaultSessionTTL = time.Hour

// WithSessionTTL sets how long an idle session stays valid.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Server) { s.sessionTTL = d }
}

// WithInstructions sets the usage hint returned by initialize.
func WithInstructions(text string) Option {
	return func(s *Server) { s.instructions = text }
}

// New creates a new MCP server with the given name and version.
func New(name, version string, opts ...Option) *Server {
	s := &Server{
		name:       name,
		version:    version,
		tools:      make(map[string]ToolHandler),
		resources:  make(map[string]ResourceHandler),
		sessions:   make(map[string]time.Time),
		sessionTTL: DefaultSessionTTL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterTool adds a tool to the server. Registration happens at startup,
// before any transport is running.
func (s *Server) RegisterTool(tool ToolHandler) {
	name := tool.Definition().Name
	s.tools[name] = tool
	s.logger.Info("registered tool", "name", name)
}

// RegisterTools adds multiple tools to the server.
func (s *Server) RegisterTools(tools ...ToolHandler) {
	for _, tool := range tools {
		s.RegisterTool(tool)
	}
}

// RegisterResource adds a read-only resource to the server.
func (s *Server) RegisterResource(res ResourceHandler) {
	uri := res.Definition().URI
	s.resources[uri] = res
	s.logger.Info("registered resource", "uri", uri)
}

// Use adds middleware to the server's processing chain.
func (s *Server) Use(mw Middleware) {
	s.middleware = append(s.middleware, mw)
}

// RunStdio serves newline-delimited JSON-RPC messages from in, writing
// responses to out, until in is exhausted or ctx is done.
func (s *Server) RunStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("starting MCP server (stdio)", "name", s.name, "version", s.version, "tools", len(s.tools))

	decoder := json.NewDecoder(in)
	encoder := json.NewEncoder(out)

	for ctx.Err() == nil {
		var req JSONRPCRequest
		if err := decoder.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode request: %w", err)
		}

		resp := s.HandleRequest(ctx, &req)
		if resp == nil {
			continue // Notification, no response needed
		}

		if err := encoder.Encode(resp); err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
	}
	return ctx.Err()
}

// HandleRequest processes a single JSON-RPC request and returns a response,
// or nil for notifications.
func (s *Server) HandleRequest(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse {
	handler := s.coreHandler
	for i := len(s.middleware) - 1; i >= 0; i-- {
		handler = s.middleware[i](handler)
	}
	return handler(ctx, req)
}

func (s *Server) coreHandler(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse {
	if strings.HasPrefix(req.Method, "notifications/") {
		if req.Method == "notifications/initialized" {
			s.logger.Info("client initialized")
		}
		return nil
	}

	resp := &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
	}
	if req.JSONRPC != "2.0" {
		resp.Error = &RPCError{Code: CodeInvalidRequest, Message: "Invalid Request: jsonrpc must be \"2.0\""}
		return resp
	}

	switch req.Method {
	case "initialize":
		resp.Result = s.handleInitialize(req.Params)
	case "ping":
		resp.Result = struct{}{}
	case "tools/list":
		resp.Result = s.handleToolsList()
	case "tools/call":
		resp.Result, resp.Error = s.handleToolCall(ctx, req.Params)
	case "resources/list":
		resp.Result = s.handleResourcesList()
	case "resources/read":
		resp.Result, resp.Error = s.handleResourceRead(ctx, req.Params)
	default:
		resp.Error = &RPCError{
			Code:    CodeMethodNotFound,
			Message: fmt.Sprintf("Method not found: %s", req.Method),
		}
	}

	// Keep the result nil-typed when an error is set.
	if resp.Error != nil {
		resp.Result = nil
	}
	return resp
}

func (s *Server) handleInitialize(raw json.RawMessage) *InitializeResult {
	var params initializeParams
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &params)
	}

	version := SupportedProtocolVersions[0]
	if slices.Contains(SupportedProtocolVersions, params.ProtocolVersion) {
		version = params.ProtocolVersion
	}

	caps := ServerCapabilities{Tools: &ListChangedCapability{}}
	if len(s.resources) > 0 {
		caps.Resources = &ResourcesCapability{}
	}

	s.logger.Debug("initialize", "client", params.ClientInfo.Name, "protocol", version)
	return &InitializeResult{
		ProtocolVersion: version,
		Capabilities:    caps,
		ServerInfo: ServerInfo{
			Name:    s.name,
			Version: s.version,
		},
		Instructions: s.instructions,
		SessionID:    s.createSession(),
	}
}

func (s *Server) handleToolsList() *ToolsListResult {
	tools := make([]mcp.Tool, 0, len(s.tools))
	for _, h := range s.tools {
		tools = append(tools, h.Definition())
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return &ToolsListResult{Tools: tools}
}

func (s *Server) handleToolCall(ctx context.Context, raw json.RawMessage) (*mcp.CallToolResult, *RPCError) {
	var params toolCallParams
	if err := json.Unmarshal(raw, &params); err != nil || params.Name == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "Invalid params: tool name required"}
	}

	tool, ok := s.tools[params.Name]
	if !ok {
		return ErrorResult(fmt.Errorf("tool not found: %s", params.Name)), nil
	}

	var call mcp.CallToolRequest
	call.Params.Name = params.Name
	call.Params.Arguments = params.Arguments

	result, err := tool.Handle(ctx, call)
	if err != nil {
		return ErrorResult(err), nil
	}
	return result, nil
}

func (s *Server) handleResourcesList() *ResourcesListResult {
	resources := make([]mcp.Resource, 0, len(s.resources))
	for _, r := range s.resources {
		resources = append(resources, r.Definition())
	}
	sort.Slice(resources, func(i, j int) bool { return resources[i].URI < resources[j].URI })
	return &ResourcesListResult{Resources: resources}
}

func (s *Server) handleResourceRead(ctx context.Context, raw json.RawMessage) (*ReadResourceResult, *RPCError) {
	var params readResourceParams
	if err := json.Unmarshal(raw, &params); err != nil || params.URI == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "Invalid params: uri required"}
	}

	res, ok := s.resources[params.URI]
	if !ok {
		return nil, &RPCError{
			Code:    CodeResourceNotFound,
			Message: "Resource not found",
			Data:    map[string]string{"uri": params.URI},
		}
	}

	contents, err := res.Read(ctx)
	if err != nil {
		s.logger.Warn("resource read failed", "uri", params.URI, "error", err)
		return nil, &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("read %s: %v", params.URI, err)}
	}
	return &ReadResourceResult{Contents: contents}, nil
}

// Session management

// createSession issues a new session id and drops sessions idle longer
// than the TTL.
func (s *Server) createSession() string {
	id := uuid.NewString()
	now := time.Now()
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	for sid, seen := range s.sessions {
		if now.Sub(seen) > s.sessionTTL {
			delete(s.sessions, sid)
		}
	}
	s.sessions[id] = now
	return id
}

// CheckSession verifies if a session ID is valid and marks it as used.
func (s *Server) CheckSession(id string) bool {
	now := time.Now()
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	seen, ok := s.sessions[id]
	if !ok {
		return false
	}
	if now.Sub(seen) > s.sessionTTL {
		delete(s.sessions, id)
		return false
	}
	s.sessions[id] = now
	return true
}

// EndSession forgets a session. It reports whether the session existed.
func (s *Server) EndSession(id string) bool {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// ActiveSessions returns the number of sessions currently held.
func (s *Server) ActiveSessions() int {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	return len(s.sessions)
}
