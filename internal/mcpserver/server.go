// Package mcpserver exposes the ORKL client as MCP tools and resource
// templates.
package mcpserver

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/oriys/orkl/internal/orkl"
)

const instructions = "ORKL threat intelligence. Use the tools to browse and search the ORKL " +
	"report library, threat actor profiles and sources. Reports, actors and sources " +
	"can also be read directly as resources (threat_reports://{id}, threat_actors://{id}, " +
	"sources://{id}). Responses are cached; call clear_cache for fresher data."

// New builds an MCP server whose tools and resources all use client.
func New(client *orkl.Client, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "orkl",
		Version: version,
	}, &mcp.ServerOptions{
		Instructions: instructions,
	})

	RegisterLibraryTools(server, client)
	RegisterActorTools(server, client)
	RegisterSourceTools(server, client)
	RegisterCacheTools(server, client)
	RegisterResources(server, client)
	return server
}
