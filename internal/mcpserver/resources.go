package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/oriys/orkl/internal/logging"
	"github.com/oriys/orkl/internal/observability"
	"github.com/oriys/orkl/internal/orkl"
)

const jsonMIME = "application/json"

// RegisterResources adds the entity resource templates.
func RegisterResources(s *mcp.Server, c *orkl.Client) {
	s.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "threat_report",
		Description: "A threat report from the ORKL library",
		URITemplate: "threat_reports://{report_id}",
		MIMEType:    jsonMIME,
	}, entityHandler("threat_reports://", func(ctx context.Context, id string) (orkl.Envelope, error) {
		return c.LibraryEntry(ctx, id)
	}))

	s.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "threat_actor",
		Description: "A threat actor profile",
		URITemplate: "threat_actors://{actor_id}",
		MIMEType:    jsonMIME,
	}, entityHandler("threat_actors://", func(ctx context.Context, id string) (orkl.Envelope, error) {
		return c.ThreatActorEntry(ctx, id)
	}))

	s.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "source",
		Description: "A threat intelligence source",
		URITemplate: "sources://{source_id}",
		MIMEType:    jsonMIME,
	}, entityHandler("sources://", func(ctx context.Context, id string) (orkl.Envelope, error) {
		return c.SourceEntry(ctx, id, false)
	}))
}

func entityHandler(prefix string, fetch func(ctx context.Context, id string) (orkl.Envelope, error)) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI
		ctx, span := observability.StartSpan(ctx, "resource "+prefix, observability.AttrResource.String(uri))
		defer span.End()

		id, ok := strings.CutPrefix(uri, prefix)
		if !ok || strings.TrimSpace(id) == "" {
			return nil, mcp.ResourceNotFoundError(uri)
		}

		env, err := fetch(ctx, id)
		if err != nil {
			observability.SetSpanError(span, err)
			var apiErr *orkl.APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
				return nil, mcp.ResourceNotFoundError(uri)
			}
			logging.Op().Error("resource read failed", "uri", uri, "error", err)
			return nil, fmt.Errorf("read %s: %w", uri, err)
		}

		text := string(env.Data)
		if text == "" {
			text = "null"
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: uri, MIMEType: jsonMIME, Text: text},
			},
		}, nil
	}
}
