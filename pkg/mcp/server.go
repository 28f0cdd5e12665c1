// Package mcp exposes the pipeline's operator dashboard over the Model
// Context Protocol (JSON-RPC 2.0 over stdio): provider health, cache
// statistics, experiment state, and recent audit traces.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/draftsmith/genpipe/pkg/audit"
	"github.com/draftsmith/genpipe/pkg/experiment"
	"github.com/draftsmith/genpipe/pkg/models"
	"github.com/draftsmith/genpipe/pkg/registry"
)

// CacheStatter reports exact cache statistics.
type CacheStatter interface {
	Stats() models.CacheStats
}

// SemanticStatter reports semantic cache statistics.
type SemanticStatter interface {
	Stats() models.SemanticCacheStats
}

// Server is a minimal MCP server that communicates over stdio.
type Server struct {
	registry   *registry.Registry
	exactCache CacheStatter
	semCache   SemanticStatter
	engine     *experiment.Engine
	auditStore *audit.Store
	logger     *zap.Logger
	version    string
}

// New creates an MCP Server. Nil caches or audit store disable the
// corresponding tools.
func New(reg *registry.Registry, exactCache CacheStatter, semCache SemanticStatter, engine *experiment.Engine, auditStore *audit.Store, logger *zap.Logger, version string) *Server {
	return &Server{
		registry:   reg,
		exactCache: exactCache,
		semCache:   semCache,
		engine:     engine,
		auditStore: auditStore,
		logger:     logger,
		version:    version,
	}
}

// Run reads JSON-RPC requests from r line-by-line and writes responses to w.
// It blocks until r is closed or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(w, Response{
				JSONRPC: "2.0",
				Error:   &RPCError{Code: CodeParseError, Message: "parse error"},
			})
			continue
		}

		resp := s.dispatch(ctx, &req)
		if resp == nil {
			// notification, nothing to send back
			continue
		}
		s.writeResponse(w, *resp)
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		return nil // notification, no response
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method: %s", req.Method)},
		}
	}
}

func (s *Server) handleInitialize(req *Request) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: InitializeResult{
			ProtocolVersion: "2024-11-05",
			ServerInfo:      ServerInfo{Name: "genpipe", Version: s.version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		},
	}
}

func (s *Server) handleToolsList(req *Request) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  ToolsListResult{Tools: allTools},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: CodeInvalidParams, Message: "invalid params"},
		}
	}

	handler, ok := toolHandlers[params.Name]
	if !ok {
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: ToolCallResult{
				Content: []ContentBlock{{Type: "text", Text: fmt.Sprintf("unknown tool: %s", params.Name)}},
				IsError: true,
			},
		}
	}

	result := handler(ctx, s, params.Arguments)
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
	}
}

func (s *Server) writeResponse(w io.Writer, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Warn("mcp marshal error", zap.Error(err))
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("mcp write error", zap.Error(err))
	}
}
