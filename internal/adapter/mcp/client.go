package mcp

import (
	"context"
	"fmt"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	cmotel "github.com/Strob0t/CareMesh/internal/adapter/otel"
	"github.com/Strob0t/CareMesh/internal/port/tools"
)

// Client calls record tools on a remote MCP server over streamable HTTP.
// It implements tools.Caller.
type Client struct {
	mcp mcpclient.MCPClient
}

var _ tools.Caller = (*Client)(nil)

// NewClient connects to the MCP server at serverURL and performs the
// initialize handshake. The caller owns the returned client and must Close it.
func NewClient(ctx context.Context, serverURL, name, version string) (*Client, error) {
	c, err := mcpclient.NewStreamableHttpClient(serverURL)
	if err != nil {
		return nil, fmt.Errorf("create mcp client: %w", err)
	}

	initReq := mcplib.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcplib.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcplib.Implementation{
		Name:    name,
		Version: version,
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("initialize mcp session: %w", err)
	}

	return &Client{mcp: c}, nil
}

// CallTool invokes a named tool and returns its text payload. A tool error
// result comes back as a Go error carrying the tool's message.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	ctx, span := cmotel.StartToolCallSpan(ctx, name)
	defer span.End()

	req := mcplib.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := c.mcp.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("call tool %s: %w", name, err)
	}

	text := textContent(res)
	if res.IsError {
		if text == "" {
			text = "tool failed"
		}
		return "", fmt.Errorf("tool %s: %s", name, text)
	}
	return text, nil
}

// Close closes the MCP session.
func (c *Client) Close() error {
	return c.mcp.Close()
}

// textContent joins the text parts of a tool result.
func textContent(res *mcplib.CallToolResult) string {
	var parts []string
	for _, content := range res.Content {
		if tc, ok := content.(mcplib.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
