package jsonrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/JagjeevanAK/mem-oracle/internal/engine"
	"github.com/JagjeevanAK/mem-oracle/pkg/version"
)

// Server serves the JSON-RPC-over-stdio tool surface: one JSON object per
// line in, one JSON object per line out, matching the teacher's daemon
// protocol framing but carried over stdio instead of a unix socket.
type Server struct {
	engine *engine.Engine
	log    *slog.Logger
}

// New constructs a Server over an already-wired Engine.
func New(e *engine.Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{engine: e, log: log}
}

// Serve reads newline-delimited requests from r and writes newline-delimited
// responses to w until r is exhausted or ctx is cancelled. Each request is
// handled synchronously and in order, matching the teacher's MCP server's
// single-reader stdio loop.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if writeErr := writeResponse(w, errorResponse(nil, ErrCodeInternalError, fmt.Sprintf("invalid request: %v", err))); writeErr != nil {
				return writeErr
			}
			continue
		}

		resp := s.handle(ctx, req)
		if err := writeResponse(w, resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func writeResponse(w io.Writer, resp Response) error {
	enc := json.NewEncoder(w)
	return enc.Encode(resp)
}

func (s *Server) handle(ctx context.Context, req Request) Response {
	switch req.Method {
	case "initialize":
		return successResponse(req.ID, InitializeResult{
			ServerInfo: ServerInfo{Name: "mem-oracle", Version: version.Version},
		})
	case "tools/list":
		return successResponse(req.ID, ListToolsResult{Tools: toolDescriptors()})
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		return errorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method))
	}
}

func (s *Server) handleToolsCall(ctx context.Context, req Request) Response {
	var params CallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		}
	}

	result, err := s.dispatchTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Warn("jsonrpc_tool_call_failed", slog.String("tool", params.Name), slog.Any("error", err))
		return errorResponse(req.ID, ErrCodeInternalError, err.Error())
	}
	return successResponse(req.ID, result)
}
