package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/oriys/orkl/internal/orkl"
)

type ActorDetailsArgs struct {
	ActorID string `json:"actor_id" jsonschema:"The ID (UUID) of the threat actor"`
}

type SourceDetailsArgs struct {
	SourceID string `json:"source_id" jsonschema:"The ID (UUID) of the source"`
	Full     bool   `json:"full,omitempty" jsonschema:"Include the reports published by this source"`
}

type ClearCacheArgs struct {
	Category string `json:"category,omitempty" jsonschema:"Category to clear: threat_reports, threat_actors, sources or all (default all)"`
}

func RegisterActorTools(s *mcp.Server, c *orkl.Client) {
	addToolHelper(s, &mcp.Tool{
		Name:        "fetch_threat_actors",
		Description: "Retrieve a list of all threat actors in the ORKL database.",
	}, c, func(ctx context.Context, _ NoArgs, c *orkl.Client) (json.RawMessage, error) {
		return data(c.ThreatActorEntries(ctx))
	})

	addToolHelper(s, &mcp.Tool{
		Name:        "fetch_threat_actor_details",
		Description: "Retrieve detailed information about a specific threat actor.",
	}, c, func(ctx context.Context, args ActorDetailsArgs, c *orkl.Client) (json.RawMessage, error) {
		return data(c.ThreatActorEntry(ctx, args.ActorID))
	})
}

func RegisterSourceTools(s *mcp.Server, c *orkl.Client) {
	addToolHelper(s, &mcp.Tool{
		Name:        "fetch_sources",
		Description: "Retrieve a list of all sources in the ORKL database.",
	}, c, func(ctx context.Context, _ NoArgs, c *orkl.Client) (json.RawMessage, error) {
		return data(c.SourceEntries(ctx))
	})

	addToolHelper(s, &mcp.Tool{
		Name:        "fetch_source_details",
		Description: "Retrieve detailed information about a specific source.",
	}, c, func(ctx context.Context, args SourceDetailsArgs, c *orkl.Client) (json.RawMessage, error) {
		return data(c.SourceEntry(ctx, args.SourceID, args.Full))
	})
}

func RegisterCacheTools(s *mcp.Server, c *orkl.Client) {
	addToolHelper(s, &mcp.Tool{
		Name:        "clear_cache",
		Description: "Clear cached API responses so the next calls fetch fresh data.",
	}, c, func(ctx context.Context, args ClearCacheArgs, c *orkl.Client) (json.RawMessage, error) {
		category := orkl.Category(args.Category)
		if category == "" {
			category = orkl.CategoryAll
		}
		removed, err := c.ClearCache(category)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]any{
			"status":   "success",
			"message":  fmt.Sprintf("Cache cleared for category: %s", category),
			"category": category,
			"removed":  removed,
		})
	})
}
