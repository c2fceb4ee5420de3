package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/oriys/orkl/internal/orkl"
)

const defaultLatestLimit = 10

type LatestReportsArgs struct {
	Limit   int    `json:"limit,omitempty" jsonschema:"Maximum number of reports to fetch (default 10)"`
	OrderBy string `json:"order_by,omitempty" jsonschema:"Date field to order by: created_at, updated_at, file_creation_date or file_modification_date (default created_at)"`
	Order   string `json:"order,omitempty" jsonschema:"Order direction: asc or desc (default desc)"`
}

type ReportDetailsArgs struct {
	ReportID string `json:"report_id" jsonschema:"The ID (UUID) of the threat report"`
}

type ReportByHashArgs struct {
	SHA1Hash string `json:"sha1_hash" jsonschema:"The SHA1 hash of the threat report file"`
}

type SearchReportsArgs struct {
	Query string `json:"query" jsonschema:"Search query (quote terms for exact matches)"`
	Full  bool   `json:"full,omitempty" jsonschema:"Return the full report including plain text"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of reports to return (default 1000)"`
}

type VersionEntriesArgs struct {
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of entries to return"`
	Offset int    `json:"offset,omitempty" jsonschema:"Pagination offset"`
	Order  string `json:"order,omitempty" jsonschema:"Order direction: asc or desc (default desc)"`
}

type WorkEntriesArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of entries to return"`
}

type NoArgs struct{}

func RegisterLibraryTools(s *mcp.Server, c *orkl.Client) {
	addToolHelper(s, &mcp.Tool{
		Name:        "fetch_latest_threat_reports",
		Description: "Retrieve the most recent threat intelligence reports from the ORKL library.",
	}, c, func(ctx context.Context, args LatestReportsArgs, c *orkl.Client) (json.RawMessage, error) {
		if args.Limit == 0 {
			args.Limit = defaultLatestLimit
		}
		return data(c.LibraryEntries(ctx, orkl.LibraryEntriesParams{
			Limit:   args.Limit,
			OrderBy: orkl.OrderBy(args.OrderBy),
			Order:   orkl.Order(args.Order),
		}))
	})

	addToolHelper(s, &mcp.Tool{
		Name:        "fetch_threat_report_details",
		Description: "Retrieve detailed information about a specific threat report by ID.",
	}, c, func(ctx context.Context, args ReportDetailsArgs, c *orkl.Client) (json.RawMessage, error) {
		return data(c.LibraryEntry(ctx, args.ReportID))
	})

	addToolHelper(s, &mcp.Tool{
		Name:        "fetch_threat_report_by_hash",
		Description: "Retrieve a specific threat report using its SHA1 hash.",
	}, c, func(ctx context.Context, args ReportByHashArgs, c *orkl.Client) (json.RawMessage, error) {
		return data(c.LibraryEntryBySHA1(ctx, args.SHA1Hash))
	})

	addToolHelper(s, &mcp.Tool{
		Name:        "search_threat_reports",
		Description: "Search the ORKL library for threat reports matching a query.",
	}, c, func(ctx context.Context, args SearchReportsArgs, c *orkl.Client) (json.RawMessage, error) {
		return data(c.SearchLibrary(ctx, orkl.SearchParams{Query: args.Query, Full: args.Full, Limit: args.Limit}))
	})

	addToolHelper(s, &mcp.Tool{
		Name:        "get_library_info",
		Description: "Retrieve general statistics about the ORKL threat intelligence library.",
	}, c, func(ctx context.Context, _ NoArgs, c *orkl.Client) (json.RawMessage, error) {
		return data(c.LibraryInfo(ctx))
	})

	addToolHelper(s, &mcp.Tool{
		Name:        "get_library_version",
		Description: "Retrieve the latest version information for the ORKL library.",
	}, c, func(ctx context.Context, _ NoArgs, c *orkl.Client) (json.RawMessage, error) {
		return data(c.LibraryVersion(ctx))
	})

	addToolHelper(s, &mcp.Tool{
		Name:        "fetch_library_version_entries",
		Description: "List the reports that make up the current library version.",
	}, c, func(ctx context.Context, args VersionEntriesArgs, c *orkl.Client) (json.RawMessage, error) {
		return data(c.LibraryVersionEntries(ctx, orkl.VersionEntriesParams{
			Limit:  args.Limit,
			Offset: args.Offset,
			Order:  orkl.Order(args.Order),
		}))
	})

	addToolHelper(s, &mcp.Tool{
		Name:        "fetch_library_work_entries",
		Description: "List reports that are still being processed by ORKL.",
	}, c, func(ctx context.Context, args WorkEntriesArgs, c *orkl.Client) (json.RawMessage, error) {
		return data(c.LibraryWorkEntries(ctx, orkl.WorkEntriesParams{Limit: args.Limit}))
	})
}
