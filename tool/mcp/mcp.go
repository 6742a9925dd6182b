// Package mcp exposes the tools of a Model Context Protocol server as
// agentrelay tools. A Server connects over streamable HTTP (Config.URL) or by
// launching a local process speaking stdio (Config.Command).
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/util"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/tool"
)

// ErrNotConnected is returned when tools are listed or called before Connect.
var ErrNotConnected = errors.New("mcp: server not connected")

// Config describes how to reach one MCP server.
type Config struct {
	// Name identifies the server in logs and errors.
	Name string
	// URL of a streamable HTTP endpoint.
	URL string
	// Headers sent with every HTTP request (e.g. authorization).
	Headers map[string]string
	// Command, Args and Env launch a stdio server. Used when URL is empty.
	Command string
	Args    []string
	Env     []string
	// RequireApproval makes every tool of the server require approval.
	RequireApproval bool
	// ApprovalTools lists individual tools requiring approval.
	ApprovalTools []string
	// AllowedTools restricts the exposed tools. Empty exposes all.
	AllowedTools []string
}

// Options tune a Server.
type Options struct {
	Logger logging.Logger
	// CacheToolsList keeps the first tools/list result for the lifetime of
	// the connection.
	CacheToolsList bool
	ClientName     string
	ClientVersion  string
}

// session is the subset of the mcp-go client used by Server.
type session interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Server is a tool.Provider backed by an MCP server.
type Server struct {
	cfg  Config
	opts Options

	dial func(ctx context.Context, cfg Config) (session, error)

	mu     sync.Mutex
	sess   session
	cached []tool.Tool
}

var _ tool.Provider = (*Server)(nil)

// NewServer creates an unconnected Server.
func NewServer(cfg Config, optFns ...func(o *Options)) *Server {
	opts := Options{
		Logger:         logging.NoOpLogger{},
		CacheToolsList: true,
		ClientName:     "agentrelay",
		ClientVersion:  "0.1.0",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if cfg.Name == "" {
		cfg.Name = cfg.URL
		if cfg.Name == "" {
			cfg.Name = cfg.Command
		}
	}

	return &Server{cfg: cfg, opts: opts, dial: dial}
}

// Name implements tool.Provider.
func (s *Server) Name() string { return s.cfg.Name }

func dial(ctx context.Context, cfg Config) (session, error) {
	switch {
	case cfg.URL != "":
		var topts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			topts = append(topts, transport.WithHTTPHeaders(cfg.Headers))
		}
		c, err := client.NewStreamableHttpClient(cfg.URL, topts...)
		if err != nil {
			return nil, err
		}
		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			return nil, err
		}
		return c, nil
	case cfg.Command != "":
		// The stdio client starts the subprocess itself.
		return client.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
	default:
		return nil, fmt.Errorf("mcp server %q: either url or command is required", cfg.Name)
	}
}

// Connect performs the MCP initialize handshake. Calling Connect on a
// connected server is a no-op.
func (s *Server) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess != nil {
		return nil
	}

	sess, err := s.dial(ctx, s.cfg)
	if err != nil {
		return core.Transient(fmt.Errorf("mcp server %q: connect: %w", s.cfg.Name, err))
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: s.opts.ClientName, Version: s.opts.ClientVersion}

	if _, err := sess.Initialize(ctx, req); err != nil {
		_ = sess.Close()
		return fmt.Errorf("mcp server %q: initialize: %w", s.cfg.Name, err)
	}

	s.sess = sess
	s.opts.Logger.Info("mcp.connected", "server", s.cfg.Name)

	return nil
}

// Close terminates the connection. Closing an unconnected server is a no-op.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		return nil
	}

	err := s.sess.Close()
	s.sess = nil
	s.cached = nil
	s.opts.Logger.Info("mcp.closed", "server", s.cfg.Name)

	return err
}

// ListTools implements tool.Provider.
func (s *Server) ListTools(ctx context.Context) ([]tool.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		return nil, fmt.Errorf("mcp server %q: %w", s.cfg.Name, ErrNotConnected)
	}
	if s.opts.CacheToolsList && s.cached != nil {
		return s.cached, nil
	}

	res, err := s.sess.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcp server %q: list tools: %w", s.cfg.Name, err)
	}

	tools := make([]tool.Tool, 0, len(res.Tools))
	for _, t := range res.Tools {
		if len(s.cfg.AllowedTools) > 0 && !slices.Contains(s.cfg.AllowedTools, t.Name) {
			continue
		}
		tools = append(tools, &remoteTool{
			server:      s,
			name:        t.Name,
			description: t.Description,
			parameters:  inputSchema(t.InputSchema),
			approval:    s.cfg.RequireApproval || slices.Contains(s.cfg.ApprovalTools, t.Name),
		})
	}

	if s.opts.CacheToolsList {
		s.cached = tools
	}

	return tools, nil
}

func (s *Server) call(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	sess := s.sess
	s.mu.Unlock()

	if sess == nil {
		return nil, fmt.Errorf("mcp server %q: %w", s.cfg.Name, ErrNotConnected)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	return sess.CallTool(ctx, req)
}

func inputSchema(in mcp.ToolInputSchema) map[string]any {
	raw, err := json.Marshal(in)
	if err != nil {
		return util.EmptyObjectSchema()
	}

	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil || len(schema) == 0 {
		return util.EmptyObjectSchema()
	}
	if _, ok := schema["type"]; !ok {
		schema["type"] = "object"
	}

	return schema
}

// remoteTool is one tool listed by a Server.
type remoteTool struct {
	server      *Server
	name        string
	description string
	parameters  map[string]any
	approval    bool
}

func (t *remoteTool) Name() string               { return t.name }
func (t *remoteTool) Description() string        { return t.description }
func (t *remoteTool) Parameters() map[string]any { return t.parameters }
func (t *remoteTool) RequiresApproval() bool     { return t.approval }

// Call invokes tools/call and returns the concatenated text content.
func (t *remoteTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	res, err := t.server.call(tc.Context(), t.name, args)
	if err != nil {
		return nil, &core.ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    core.ToolErrorExecution,
			Err:     err,
		}
	}

	text := contentText(res.Content)
	if res.IsError {
		return nil, &core.ToolError{Tool: t.name, Message: text, Code: core.ToolErrorExecution}
	}

	return text, nil
}

func contentText(contents []mcp.Content) string {
	parts := make([]string, 0, len(contents))
	for _, c := range contents {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		default:
			if raw, err := json.Marshal(v); err == nil {
				parts = append(parts, string(raw))
			}
		}
	}
	return strings.Join(parts, "\n")
}
