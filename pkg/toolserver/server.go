// Package toolserver provides a lightweight HTTP server that exposes the
// sandbox toolsets for remote invocation. This is a debugging surface: it
// lets you poke the tools the model sees without a model in the loop.
package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/ffrouin/tux-copilot/pkg/tools"
)

// Server exposes toolsets over HTTP.
type Server struct {
	toolsets []tools.ToolSet
}

// CallToolRequest is the request body for calling a tool.
type CallToolRequest struct {
	Arguments string `json:"arguments"` // JSON-encoded arguments
}

// CallToolResponse is the response from calling a tool.
type CallToolResponse struct {
	Output  string `json:"output"`
	IsError bool   `json:"isError,omitempty"`
}

// ErrorResponse represents an error response from the server.
type ErrorResponse struct {
	Error string `json:"error"`
}

// New creates a tool server over the given toolsets.
func New(toolsets ...tools.ToolSet) *Server {
	return &Server{toolsets: toolsets}
}

// Serve starts the HTTP server on the given listener. The server shuts down
// when ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /tools", s.handleListTools)
	mux.HandleFunc("POST /tools/{tool}", s.handleCallTool)

	server := &http.Server{
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	slog.Info("Tool server listening", "addr", ln.Addr().String())
	return server.Serve(ln)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	toolList, err := s.allTools(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("listing tools: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toolList)
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	toolName := r.PathValue("tool")

	var req CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	toolList, err := s.allTools(ctx)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("listing tools: %v", err))
		return
	}

	tool := findTool(toolList, toolName)
	if tool == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("tool %q not found", toolName))
		return
	}
	if tool.Handler == nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("tool %q has no handler", toolName))
		return
	}

	result, err := tool.Handler(ctx, tools.ToolCall{
		ID:   "toolserver-call",
		Type: "function",
		Function: tools.FunctionCall{
			Name:      toolName,
			Arguments: req.Arguments,
		},
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("tool execution failed: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(CallToolResponse{
		Output:  result.Output,
		IsError: result.IsError,
	})
}

func (s *Server) allTools(ctx context.Context) ([]tools.Tool, error) {
	var all []tools.Tool
	for _, ts := range s.toolsets {
		list, err := ts.Tools(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, list...)
	}
	return all, nil
}

func findTool(toolList []tools.Tool, name string) *tools.Tool {
	for i := range toolList {
		if toolList[i].Name == name {
			return &toolList[i]
		}
	}
	return nil
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}
