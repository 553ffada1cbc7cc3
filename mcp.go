package procbridge

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewMCPTransport returns an MCP transport that exchanges messages over ch.
//
// The bridge does not interpret the bytes; the MCP SDK frames and parses
// them. Closing the session closes ch, which shuts the process down.
//
// Example:
//
//	ch, err := bridge.Activate(ctx, spec)
//	if err != nil {
//	    return err
//	}
//	client := mcp.NewClient(&mcp.Implementation{Name: "host", Version: "v1.0.0"}, nil)
//	session, err := client.Connect(ctx, procbridge.NewMCPTransport(ch), nil)
func NewMCPTransport(ch Channel) mcp.Transport {
	return &mcp.IOTransport{Reader: ch, Writer: ch}
}

// ConnectMCP activates bridge with spec and connects client to the MCP
// server the child runs on its stdio.
//
// If the session cannot be established the process is shut down before the
// error is returned.
func ConnectMCP(
	ctx context.Context,
	client *mcp.Client,
	bridge Bridge,
	spec LaunchSpec,
) (*mcp.ClientSession, error) {
	ch, err := bridge.Activate(ctx, spec)
	if err != nil {
		return nil, err
	}

	session, err := client.Connect(ctx, NewMCPTransport(ch), nil)
	if err != nil {
		_ = bridge.Shutdown(context.WithoutCancel(ctx))

		return nil, fmt.Errorf("connect mcp session: %w", err)
	}

	return session, nil
}
