// Package toolserver exposes the pipeline over the tool-invocation
// protocol in both of spec's required shapes: "flat" (one MCP tool per
// upstream method) and "meta" (two tools, find and call, resolving the
// method dynamically against the static descriptor table). Both stdio
// and streamable-HTTP transports are served as worker.Worker instances so
// the caller can run them side by side through the gateway's existing
// errgroup-based Runner.
package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/eugener/gatekeeper/internal"
	"github.com/eugener/gatekeeper/internal/methods"
	"github.com/eugener/gatekeeper/internal/worker"
)

// Invoker is the subset of the pipeline the tool server drives.
type Invoker interface {
	Invoke(ctx context.Context, inv gateway.Invocation) gateway.Envelope
}

// Mode selects between the flat and meta tool-exposure shapes.
type Mode int

const (
	ModeFlat Mode = iota
	ModeMeta
)

const serverVersion = "1.0.0"

// Build constructs the underlying MCP server for mode, registering either
// one tool per method (flat) or the find/call pair (meta).
func Build(mode Mode, tbl *methods.Table, pipeline Invoker) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("gatekeeper", serverVersion, mcpserver.WithToolCapabilities(false))

	switch mode {
	case ModeMeta:
		registerMeta(s, tbl, pipeline)
	default:
		registerFlat(s, tbl, pipeline)
	}
	return s
}

func registerFlat(s *mcpserver.MCPServer, tbl *methods.Table, pipeline Invoker) {
	for _, d := range tbl.All() {
		desc := d
		opts := append([]mcp.ToolOption{mcp.WithDescription(desc.Description)}, fieldOptions(desc)...)
		tool := mcp.NewTool(desc.Name, opts...)
		s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			params, _ := req.Params.Arguments.(map[string]any)
			env := pipeline.Invoke(ctx, gateway.Invocation{Method: desc.Name, Params: params})
			return envelopeResult(env), nil
		})
	}
}

// fieldOptions builds one ToolOption per required/optional parameter of
// desc, deriving each property's JSON-Schema shape from desc.Schema when a
// fragment is registered and falling back to a plain string property
// otherwise (the upstream surface accepts loosely typed JSON bodies).
func fieldOptions(desc gateway.MethodDescriptor) []mcp.ToolOption {
	var opts []mcp.ToolOption
	required := make(map[string]bool, len(desc.Required))
	for _, name := range desc.Required {
		required[name] = true
	}
	add := func(name string) {
		opts = append(opts, propertyOption(name, desc.Schema[name], required[name]))
	}
	for _, name := range desc.Required {
		add(name)
	}
	for _, name := range desc.Optional {
		add(name)
	}
	return opts
}

func propertyOption(name string, schema gateway.FieldSchema, required bool) mcp.ToolOption {
	propOpts := []mcp.PropertyOption{}
	if required {
		propOpts = append(propOpts, mcp.Required())
	}
	if len(schema.Enum) > 0 {
		propOpts = append(propOpts, mcp.Enum(schema.Enum...))
	}

	switch schema.Type {
	case "integer", "number":
		return mcp.WithNumber(name, propOpts...)
	case "boolean":
		return mcp.WithBoolean(name, propOpts...)
	case "array":
		return mcp.WithArray(name, propOpts...)
	case "object":
		return mcp.WithObject(name, propOpts...)
	default:
		return mcp.WithString(name, propOpts...)
	}
}

func registerMeta(s *mcpserver.MCPServer, tbl *methods.Table, pipeline Invoker) {
	findTool := mcp.NewTool("find",
		mcp.WithDescription("search the method catalogue by name fragment and optional category"),
		mcp.WithString("query", mcp.Description("name fragment to search for")),
		mcp.WithString("category", mcp.Description("optional category filter")),
		mcp.WithNumber("limit", mcp.Description("maximum results, default 20")),
	)
	s.AddTool(findTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)
		return findResult(tbl, args), nil
	})

	callTool := mcp.NewTool("call",
		mcp.WithDescription("invoke a method by name with its parameter object"),
		mcp.WithString("tool", mcp.Required(), mcp.Description("method name")),
		mcp.WithObject("params", mcp.Description("method parameters")),
	)
	s.AddTool(callTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)
		name, _ := args["tool"].(string)
		params, _ := args["params"].(map[string]any)
		env := pipeline.Invoke(ctx, gateway.Invocation{Method: name, Params: params})
		return envelopeResult(env), nil
	})
}

type findEntry struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Required    []string `json:"required"`
	Optional    []string `json:"optional"`
}

func findResult(tbl *methods.Table, args map[string]any) *mcp.CallToolResult {
	query, _ := args["query"].(string)
	category, _ := args["category"].(string)
	limit := 20
	if n, ok := args["limit"].(float64); ok && n > 0 {
		limit = int(n)
	}

	matches := []findEntry{}
	for _, d := range tbl.All() {
		if query != "" && !strings.Contains(strings.ToLower(d.Name), strings.ToLower(query)) {
			continue
		}
		if category != "" && d.Category != category {
			continue
		}
		matches = append(matches, findEntry{
			Name:        d.Name,
			Description: d.Description,
			Category:    d.Category,
			Required:    d.Required,
			Optional:    d.Optional,
		})
	}

	// Name-prefix matches rank ahead of other matches; ties break by name.
	lq := strings.ToLower(query)
	sort.Slice(matches, func(i, j int) bool {
		pi := strings.HasPrefix(strings.ToLower(matches[i].Name), lq)
		pj := strings.HasPrefix(strings.ToLower(matches[j].Name), lq)
		if pi != pj {
			return pi
		}
		return matches[i].Name < matches[j].Name
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	data, err := json.Marshal(matches)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("find: marshal results: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

func envelopeResult(env gateway.Envelope) *mcp.CallToolResult {
	data, err := json.Marshal(env)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal envelope: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// StdioWorker runs the tool-protocol server over stdio. It satisfies
// worker.Worker so it can run alongside the HTTP transport under a single
// worker.Runner.
type StdioWorker struct {
	srv *mcpserver.MCPServer
}

// NewStdioWorker wraps srv for stdio service.
func NewStdioWorker(srv *mcpserver.MCPServer) *StdioWorker {
	return &StdioWorker{srv: srv}
}

func (s *StdioWorker) Name() string { return "toolserver_stdio" }

// Run blocks serving stdio until ctx is cancelled or the transport fails.
// mcp-go's ServeStdio does not itself accept a context: on cancellation Run
// returns nil without stopping the serve goroutine, whose stdin read loop
// keeps running until the process exits. A genuine I/O error from the
// serve loop is returned as-is.
func (s *StdioWorker) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- mcpserver.ServeStdio(s.srv) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// HTTPWorker runs the tool-protocol server over streamable HTTP.
type HTTPWorker struct {
	addr string
	http *mcpserver.StreamableHTTPServer
}

// NewHTTPWorker builds an HTTPWorker bound to addr (e.g. ":8090").
func NewHTTPWorker(addr string, srv *mcpserver.MCPServer) *HTTPWorker {
	return &HTTPWorker{addr: addr, http: mcpserver.NewStreamableHTTPServer(srv)}
}

func (h *HTTPWorker) Name() string { return "toolserver_http" }

// Run serves the streamable-HTTP transport until ctx is cancelled, then
// shuts the listener down gracefully.
func (h *HTTPWorker) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- h.http.Start(h.addr) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := h.http.Shutdown(shutdownCtx); err != nil {
			slog.Error("toolserver http shutdown", "error", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

const shutdownGrace = 5 * time.Second

// Workers builds the stdio and HTTP transport workers for mode, ready to
// hand to worker.NewRunner.
func Workers(mode Mode, addr string, tbl *methods.Table, pipeline Invoker) []worker.Worker {
	srv := Build(mode, tbl, pipeline)
	return []worker.Worker{
		NewStdioWorker(srv),
		NewHTTPWorker(addr, srv),
	}
}
