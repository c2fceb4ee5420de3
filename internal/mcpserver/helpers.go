package mcpserver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/oriys/orkl/internal/logging"
	"github.com/oriys/orkl/internal/metrics"
	"github.com/oriys/orkl/internal/observability"
	"github.com/oriys/orkl/internal/orkl"
)

// textResult wraps raw JSON as tool output.
func textResult(data json.RawMessage) *mcp.CallToolResult {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}
}

// failure is the JSON body of every failed tool call.
type failure struct {
	Error      string         `json:"error"`
	Kind       string         `json:"kind"`
	StatusCode int            `json:"status_code,omitempty"`
	RetryAfter int            `json:"retry_after,omitempty"`
	Body       map[string]any `json:"body,omitempty"`
}

func describe(err error) failure {
	f := failure{Error: err.Error(), Kind: orkl.KindOf(err).String()}

	var rl *orkl.RateLimitError
	var apiErr *orkl.APIError
	switch {
	case errors.As(err, &rl):
		f.RetryAfter = rl.RetryAfter
	case errors.As(err, &apiErr):
		f.StatusCode = apiErr.StatusCode
		f.Body = apiErr.Body
	}
	return f
}

// errResult converts err into a tool error result.
func errResult(err error) *mcp.CallToolResult {
	data, mErr := json.Marshal(describe(err))
	if mErr != nil {
		data = []byte(`{"error":"internal error"}`)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
		IsError: true,
	}
}

// addToolHelper registers a tool whose handler returns raw JSON. Errors
// become tool error results and never cross the protocol as failures.
func addToolHelper[In any](s *mcp.Server, tool *mcp.Tool, client *orkl.Client, handler func(ctx context.Context, args In, client *orkl.Client) (json.RawMessage, error)) {
	name := tool.Name
	mcp.AddTool(s, tool, func(ctx context.Context, req *mcp.CallToolRequest, args In) (*mcp.CallToolResult, any, error) {
		ctx, span := observability.StartSpan(ctx, "tool "+name, observability.AttrTool.String(name))
		defer span.End()

		result, err := handler(ctx, args, client)
		metrics.RecordToolCall(name, err == nil)
		if err != nil {
			observability.SetSpanError(span, err)
			logging.Op().Error("tool call failed", "tool", name, "kind", orkl.KindOf(err).String(), "error", err)
			return errResult(err), nil, nil
		}
		observability.SetSpanOK(span)
		return textResult(result), nil, nil
	})
}

// data unwraps the payload of a successful call.
func data(env orkl.Envelope, err error) (json.RawMessage, error) {
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}
