package mcp

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mike-a-ellis/docchat/internal/conversation"
	"github.com/mike-a-ellis/docchat/internal/session"
)

var ErrMissingSession = errors.New("mcp server requires a session")

// Session is the part of session.Session the tools drive.
type Session interface {
	Ask(ctx context.Context, question string) (*conversation.Turn, error)
	Turns() []conversation.Turn
	Info() session.Info
}

// Server wraps the MCP server with its session.
type Server struct {
	server  *mcp.Server
	session Session
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(sess Session, version string) (*Server, error) {
	if sess == nil {
		return nil, ErrMissingSession
	}
	if version == "" {
		version = "dev"
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "docchat",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Ask a question about the ingested documents. The conversation so far is taken into account. Returns the answer and the passages it was based on.",
	}, makeAskHandler(sess))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_session_status",
		Description: "Get the ingestion status of the session: whether it is ready for questions, how many documents and chunks were indexed, and which files were skipped or failed.",
	}, makeStatusHandler(sess))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_chat_history",
		Description: "List the questions and answers of the conversation so far, oldest first.",
	}, makeHistoryHandler(sess))

	return &Server{
		server:  server,
		session: sess,
	}, nil
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

// HTTPHandlerOptions configures the HTTP transport behavior.
type HTTPHandlerOptions struct {
	// Stateless disables MCP session management. Every client shares the one
	// docchat conversation either way. Default: false (stateful).
	Stateless bool
}

// HTTPHandler serves the tools over Streamable HTTP. Mount it at "/mcp"
// next to NewHealthHandler and NewLandingHandler.
func (s *Server) HTTPHandler(opts *HTTPHandlerOptions) http.Handler {
	if opts == nil {
		opts = &HTTPHandlerOptions{}
	}
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, &mcp.StreamableHTTPOptions{Stateless: opts.Stateless})
}
