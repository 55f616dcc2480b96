// Package mcpserver exposes the workflow tools over the Model Context
// Protocol. Every tool returns the uniform tool result as JSON text content;
// tool failures travel in the result body, never as protocol errors, so
// agent callers always get the structured check and error detail.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/config"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/logging"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/tools"
)

// New builds the MCP server with every workflow tool registered under its
// dotted name.
func New(env *tools.Env, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "devsolo",
		Version: version,
	}, &mcp.ServerOptions{
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{
				ListChanged: false, // static tool set
			},
		},
	})

	for _, tool := range env.Tools() {
		register(server, env, tool)
	}
	return server
}

// Serve runs the server on stdio until the client disconnects or ctx is
// cancelled. Config edits made while the server runs are picked up live.
func Serve(ctx context.Context, env *tools.Env, version string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := config.Watch(ctx, env.ReloadConfig); err != nil {
			logging.Warn(ctx, "config watcher unavailable", "error", err.Error())
		}
	}()

	logging.Info(ctx, "mcp server listening on stdio", "version", version)
	return New(env, version).Run(ctx, &mcp.StdioTransport{})
}

// register adds one workflow tool. Arguments pass through as an open object;
// the tool layer itself drops unknown fields with a debug note, so a typoed
// parameter never fails the call.
func register(server *mcp.Server, env *tools.Env, tool tools.Tool) {
	name := tools.ToolPrefix + tool.Name()

	mcp.AddTool(server, &mcp.Tool{
		Name:        name,
		Description: tool.Description(),
		Annotations: annotationsFor(tool.Name()),
	}, func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, nil, err
		}

		res := env.Dispatch(ctx, name, raw)

		body, err := json.Marshal(res)
		if err != nil {
			return nil, nil, err
		}
		return &mcp.CallToolResult{
			IsError: !res.Success,
			Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
		}, nil, nil
	})
}

// annotationsFor hints each tool's side effects to the client.
func annotationsFor(name string) *mcp.ToolAnnotations {
	switch name {
	case "sessions", "status":
		return &mcp.ToolAnnotations{
			ReadOnlyHint:   true,
			IdempotentHint: true,
			OpenWorldHint:  boolPtr(false),
		}
	case "abort", "cleanup":
		return &mcp.ToolAnnotations{
			DestructiveHint: boolPtr(true),
			OpenWorldHint:   boolPtr(false),
		}
	case "ship":
		// Pushes and merges reach the hosting platform.
		return &mcp.ToolAnnotations{
			DestructiveHint: boolPtr(false),
			OpenWorldHint:   boolPtr(true),
		}
	default:
		return &mcp.ToolAnnotations{
			DestructiveHint: boolPtr(false),
			OpenWorldHint:   boolPtr(false),
		}
	}
}

func boolPtr(b bool) *bool { return &b }
