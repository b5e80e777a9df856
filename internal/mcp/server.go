package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tonehq/tonectl/internal/audit"
	"github.com/tonehq/tonectl/internal/logging"
	"github.com/tonehq/tonectl/internal/signup"
	"github.com/tonehq/tonectl/pkg/types"
)

// JSON-RPC error codes
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
	codeToolFailed     = -32002
	codeRateLimited    = -32029
)

// ProtocolVersion is the MCP revision the server speaks
const ProtocolVersion = "2024-11-05"

// Server implements the MCP protocol server
type Server struct {
	client    ToneClient
	orgs      *signup.OrgChecker
	logger    *audit.Logger
	log       *logging.Logger
	options   *ServerOptions
	mu        sync.RWMutex
	writeMu   sync.Mutex
	clientApp string

	rateLimiter *RateLimiter

	sessionID string
	startTime time.Time
}

// ServerOptions configuration for the server
type ServerOptions struct {
	BatchMode   bool
	AutoApprove bool
	Timeout     time.Duration
	ProfileName string
	RateLimit   int // requests per minute
	Version     string
	Logger      *logging.Logger
}

// NewServer creates a new MCP server over client
func NewServer(client ToneClient, logger *audit.Logger, options *ServerOptions) *Server {
	if options == nil {
		options = &ServerOptions{
			Timeout:   30 * time.Second,
			RateLimit: 60,
		}
	}
	if options.Timeout <= 0 {
		options.Timeout = 30 * time.Second
	}
	if options.Version == "" {
		options.Version = "dev"
	}

	log := logging.Nop()
	if options.Logger != nil {
		log = options.Logger.Sub("mcp")
	}

	return &Server{
		client:      client,
		orgs:        signup.NewOrgChecker(client, signup.WithDebounce(0), signup.WithCheckerLogger(options.Logger)),
		logger:      logger,
		log:         log,
		options:     options,
		rateLimiter: NewRateLimiter(options.RateLimit),
		sessionID:   "mcp-" + uuid.NewString(),
		startTime:   time.Now(),
	}
}

// Start serves stdin and stdout until EOF or ctx ends
func (s *Server) Start(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads newline-delimited JSON-RPC requests from in and writes
// responses to out
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.LogSystem(audit.EventStartup, "MCP server started", map[string]interface{}{
		"session_id": s.sessionID,
		"batch_mode": s.options.BatchMode,
		"profile":    s.options.ProfileName,
	})
	defer func() {
		s.logger.LogSystem(audit.EventShutdown, "MCP server stopped", map[string]interface{}{
			"session_id": s.sessionID,
			"duration":   time.Since(s.startTime).String(),
		})
	}()

	writer := bufio.NewWriter(out)
	lines := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		reader := bufio.NewReader(in)
		for {
			line, err := reader.ReadBytes('\n')
			if len(line) > 0 {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		case line := <-lines:
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			if err := s.processMessage(ctx, line, writer); err != nil {
				s.log.Warn().Err(err).Msg("request failed")
				s.logger.LogError("mcp", err, map[string]interface{}{"session_id": s.sessionID})
			}
		}
	}
}

// Close stops background work. The server cannot be used afterwards.
func (s *Server) Close() {
	s.orgs.Close()
}

// processMessage processes a single MCP message
func (s *Server) processMessage(ctx context.Context, data []byte, writer *bufio.Writer) error {
	var request types.MCPRequest
	if err := json.Unmarshal(data, &request); err != nil {
		_ = s.sendErrorResponse(writer, nil, codeParseError, "Parse error", nil)
		return fmt.Errorf("failed to parse request: %w", err)
	}

	if !s.rateLimiter.Allow(request.Method) {
		_ = s.sendErrorResponse(writer, request.ID, codeRateLimited, "Rate limit exceeded", nil)
		return fmt.Errorf("rate limit exceeded")
	}

	s.log.Debug().Str("method", request.Method).Interface("id", request.ID).Msg("request received")

	switch request.Method {
	case "initialize":
		return s.handleInitialize(request, writer)
	case "initialized", "notifications/initialized":
		return s.handleInitialized(request)
	case "ping":
		return s.sendResponse(writer, request.ID, map[string]interface{}{})
	case "tools/list":
		return s.handleToolsList(request, writer)
	case "tools/call":
		return s.handleToolCall(ctx, request, writer)
	case "prompts/list":
		return s.handlePromptsList(request, writer)
	case "prompts/get":
		return s.handleGetPrompt(request, writer)
	default:
		if request.ID == nil {
			// unknown notifications are ignored
			return nil
		}
		_ = s.sendErrorResponse(writer, request.ID, codeMethodNotFound, "Method not found", nil)
		return fmt.Errorf("unknown method: %s", request.Method)
	}
}

// sendResponse sends a JSON-RPC response
func (s *Server) sendResponse(writer *bufio.Writer, id interface{}, result interface{}) error {
	return s.write(writer, types.MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	})
}

// sendErrorResponse sends a JSON-RPC error response
func (s *Server) sendErrorResponse(writer *bufio.Writer, id interface{}, code int, message string, data interface{}) error {
	return s.write(writer, types.MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &types.MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	})
}

func (s *Server) write(writer *bufio.Writer, response types.MCPResponse) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return writer.Flush()
}
