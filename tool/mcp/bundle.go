// Package mcp bridges out-of-process tool servers into FlowMesh via the
// Model Context Protocol. A Bundle is a composite registry declaration: at
// build time it connects to one MCP server, lists its capabilities and
// expands into one named unit per remote tool. The wire protocol and its
// session/handshake lifecycle are owned entirely by the mcp-go client; the
// core only ever sees the uniform list-capabilities/invoke surface.
package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hupe1980/flowmesh/core"
)

// Options configures a Bundle.
type Options struct {
	// Prefix is prepended (with an underscore) to every remote tool name
	// to keep bundle-local names unique in the registry. Defaults to the
	// bundle name.
	Prefix string

	// Filter limits which remote tools are exposed. Empty means all.
	Filter []string

	// ClientName/ClientVersion identify this client during the MCP
	// handshake.
	ClientName    string
	ClientVersion string
}

// Bundle is a composite unit source backed by one MCP server.
type Bundle struct {
	name   string
	client *client.Client
	opts   Options
}

// NewStdioBundle creates a bundle that spawns an MCP server subprocess and
// talks to it over stdio.
func NewStdioBundle(name, command string, env []string, args []string, optFns ...func(o *Options)) (*Bundle, error) {
	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, fmt.Errorf("mcp: creating stdio client for %q: %w", name, err)
	}
	return newBundle(name, c, optFns...), nil
}

// NewStreamableHTTPBundle creates a bundle that reaches an MCP server over
// streamable HTTP.
func NewStreamableHTTPBundle(name, baseURL string, optFns ...func(o *Options)) (*Bundle, error) {
	c, err := client.NewStreamableHttpClient(baseURL)
	if err != nil {
		return nil, fmt.Errorf("mcp: creating streamable-http client for %q: %w", name, err)
	}
	return newBundle(name, c, optFns...), nil
}

// NewBundleFromClient wraps an existing MCP client. Useful for tests with
// in-process transports.
func NewBundleFromClient(name string, c *client.Client, optFns ...func(o *Options)) *Bundle {
	return newBundle(name, c, optFns...)
}

func newBundle(name string, c *client.Client, optFns ...func(o *Options)) *Bundle {
	opts := Options{
		Prefix:        name,
		ClientName:    "flowmesh",
		ClientVersion: "1.0.0",
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Bundle{name: name, client: c, opts: opts}
}

// Name implements registry.Source.
func (b *Bundle) Name() string { return b.name }

// Units implements registry.Source: it performs the MCP handshake, lists
// the server's capabilities and returns one unit per remote tool, in the
// order the server reported them.
func (b *Bundle) Units(ctx context.Context) ([]core.Unit, error) {
	if err := b.client.Start(ctx); err != nil {
		return nil, fmt.Errorf("mcp: starting client for %q: %w", b.name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: b.opts.ClientName, Version: b.opts.ClientVersion}
	if _, err := b.client.Initialize(ctx, initReq); err != nil {
		return nil, fmt.Errorf("mcp: initializing %q: %w", b.name, err)
	}

	listResp, err := b.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcp: listing capabilities of %q: %w", b.name, err)
	}

	var filter map[string]bool
	if len(b.opts.Filter) > 0 {
		filter = make(map[string]bool, len(b.opts.Filter))
		for _, name := range b.opts.Filter {
			filter[name] = true
		}
	}

	units := make([]core.Unit, 0, len(listResp.Tools))
	for _, remote := range listResp.Tools {
		if filter != nil && !filter[remote.Name] {
			continue
		}
		rt := &remoteTool{
			BaseUnit: core.NewBaseUnit(UnitName(b.opts.Prefix, remote.Name), core.KindTool),
			bundle:   b,
			remote:   remote.Name,
		}
		if remote.Description != "" {
			rt.SetDescription(remote.Description)
		}
		units = append(units, rt)
	}

	return units, nil
}

// Close shuts down the underlying MCP session (and subprocess for stdio
// transports).
func (b *Bundle) Close(_ context.Context) error {
	return b.client.Close()
}

// UnitName composes the registry name for a remote capability.
func UnitName(prefix, remote string) string {
	if prefix == "" {
		return remote
	}
	return prefix + "_" + remote
}

// remoteTool is the per-capability unit a Bundle expands into.
type remoteTool struct {
	core.BaseUnit
	bundle *Bundle
	remote string
}

// Execute implements core.Unit by invoking the remote capability. The
// Extra map is passed through as the structured tool arguments; when it is
// empty the query travels as a single "query" argument.
func (t *remoteTool) Execute(ctx context.Context, req *core.Request) (*core.Response, error) {
	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = t.remote
	callReq.Params.Arguments = invokeArguments(req.Arguments)

	result, err := t.bundle.client.CallTool(ctx, callReq)
	if err != nil {
		return nil, fmt.Errorf("mcp: calling %q: %w", t.remote, err)
	}

	text := collectText(result)
	if result.IsError {
		if text == "" {
			text = "unknown remote tool error"
		}
		return nil, fmt.Errorf("mcp: remote tool %q failed: %s", t.remote, text)
	}

	return core.NewCompleted(text, req.Context), nil
}

// invokeArguments maps FlowMesh arguments onto the remote tool's argument
// object.
func invokeArguments(args core.Arguments) map[string]any {
	if len(args.Extra) > 0 {
		return args.Extra
	}
	out := map[string]any{}
	if args.Query != "" {
		out["query"] = args.Query
	}
	if len(args.Attachments) > 0 {
		out["attachments"] = args.Attachments
	}
	return out
}

// collectText concatenates the text content blocks of a tool result.
func collectText(result *mcp.CallToolResult) string {
	var texts []string
	for _, content := range result.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return strings.Join(texts, "\n")
}
