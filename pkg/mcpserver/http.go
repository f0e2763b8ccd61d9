package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SessionHeader carries the MCP session id on the HTTP transport.
const SessionHeader = "Mcp-Session-Id"

// shutdownTimeout bounds graceful shutdown of the HTTP transport.
const shutdownTimeout = 10 * time.Second

// Handler returns the HTTP transport: MCP JSON-RPC on "/" and "/mcp", a
// REST view of the tools under "/api/tools", and "/health".
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	for _, path := range []string{"/", "/mcp"} {
		r.Post(path, s.handleMCPRequest)
		r.Delete(path, s.handleSessionDelete)
	}

	r.Get("/api/tools", s.handleRESTToolsList)
	r.Post("/api/tools/{name}", s.handleRESTToolCall)
	r.Get("/health", s.handleHealth)

	return r
}

// RunHTTP serves the HTTP transport on addr until ctx is done, then shuts
// down gracefully.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr, "tools", len(s.tools), "resources", len(s.resources))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Api-Key, Mcp-Session-Id, Mcp-Protocol-Version")
		w.Header().Set("Access-Control-Expose-Headers", SessionHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleMCPRequest(w http.ResponseWriter, r *http.Request) {
	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, CodeParseError, "Parse error")
		return
	}

	if req.Method != "initialize" {
		sessionID := r.Header.Get(SessionHeader)
		if sessionID == "" {
			http.Error(w, "Missing session id", http.StatusBadRequest)
			return
		}
		if !s.CheckSession(sessionID) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
	}

	ctx := WithHeaders(r.Context(), r.Header)
	resp := s.HandleRequest(ctx, &req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if req.Method == "initialize" && resp.Error == nil {
		if result, ok := resp.Result.(*InitializeResult); ok && result.SessionID != "" {
			w.Header().Set(SessionHeader, result.SessionID)
		}
	}

	// Plain JSON unless the client only accepts an event stream.
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "text/event-stream") && !strings.Contains(accept, "application/json") {
		sendSSE(w, resp)
		return
	}
	sendJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	if !s.EndSession(r.Header.Get(SessionHeader)) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func sendSSE(w http.ResponseWriter, resp *JSONRPCResponse) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		sendJSON(w, http.StatusOK, resp)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	respBytes, _ := json.Marshal(resp)
	fmt.Fprintf(w, "event: message\ndata: %s\n\n", respBytes)
	flusher.Flush()
}

func (s *Server) handleRESTToolsList(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, s.handleToolsList())
}

func (s *Server) handleRESTToolCall(w http.ResponseWriter, r *http.Request) {
	toolName := chi.URLParam(r, "name")

	args := map[string]any{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	params, _ := json.Marshal(toolCallParams{Name: toolName, Arguments: args})
	ctx := WithHeaders(r.Context(), r.Header)
	result, rpcErr := s.handleToolCall(ctx, params)
	if rpcErr != nil {
		sendJSON(w, http.StatusBadRequest, rpcErr)
		return
	}
	sendJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"server":    s.name,
		"version":   s.version,
	})
}

func writeRPCError(w http.ResponseWriter, code int, message string) {
	sendJSON(w, http.StatusBadRequest, JSONRPCResponse{
		JSONRPC: "2.0",
		Error:   &RPCError{Code: code, Message: message},
	})
}
