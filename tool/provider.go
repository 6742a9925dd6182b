package tool

import "context"

// Provider is a source of remote tools, such as an MCP server. Tools it lists
// are treated exactly like local tools.
//
// Connect and Close must be idempotent. Who calls them is a deployment
// choice: the caller (process scope) or the runner (run scope).
type Provider interface {
	Name() string
	Connect(ctx context.Context) error
	ListTools(ctx context.Context) ([]Tool, error)
	Close() error
}
