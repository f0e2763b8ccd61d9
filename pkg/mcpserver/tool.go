package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolHandler is the interface for MCP tools.
type ToolHandler interface {
	// Definition returns the tool name, description and input schema.
	Definition() mcp.Tool

	// Handle runs the tool. Call metadata is available through
	// HeadersFromContext(ctx).
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// ResourceHandler is the interface for read-only MCP resources.
type ResourceHandler interface {
	Definition() mcp.Resource
	Read(ctx context.Context) ([]mcp.ResourceContents, error)
}

// ResourceRegistrar is implemented by hosts that can expose static resources.
type ResourceRegistrar interface {
	RegisterResource(res ResourceHandler)
}

// Middleware is a function that wraps a request handler.
type Middleware func(next HandlerFunc) HandlerFunc

// HandlerFunc is a function that handles a JSON-RPC request.
type HandlerFunc func(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse
