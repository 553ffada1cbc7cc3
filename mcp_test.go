package procbridge_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/procbridge"
)

func TestConnectMCP_CallTool(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var unexpected atomic.Bool

	bridge := procbridge.New(procbridge.WithExitCallback(func(procbridge.ExitReport) {
		unexpected.Store(true)
	}))

	client := mcp.NewClient(&mcp.Implementation{Name: "procbridge-test", Version: "v1.0.0"}, nil)

	session, err := procbridge.ConnectMCP(ctx, client, bridge, helperSpec(t, "mcp"))
	require.NoError(t, err)

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	require.Len(t, tools.Tools, 1)
	require.Equal(t, "echo", tools.Tools[0].Name)

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"text": "ping"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	require.Equal(t, "ping", text.Text)

	_ = session.Close()

	report, err := bridge.Wait(ctx)
	require.NoError(t, err)
	require.False(t, report.Unexpected, "closing the session is a requested shutdown")
	require.False(t, unexpected.Load())
}

func TestConnectMCP_LaunchFailure(t *testing.T) {
	client := mcp.NewClient(&mcp.Implementation{Name: "procbridge-test", Version: "v1.0.0"}, nil)

	session, err := procbridge.ConnectMCP(context.Background(), client, procbridge.New(),
		procbridge.LaunchSpec{Path: "/nonexistent/binary"})
	require.Nil(t, session)

	_, ok := errors.AsType[*procbridge.LaunchError](err)
	require.True(t, ok, "expected *LaunchError, got %T", err)
}
