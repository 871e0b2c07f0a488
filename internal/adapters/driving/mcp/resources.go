package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// URIScheme is the custom URI scheme for Raindrop resources.
	uriScheme = "raindrop://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing types.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "types",
		Name:        "types",
		Description: "List of all item types",
		MIMEType:    "application/json",
	}, s.handleTypesResource)

	// Static resource for the side bar.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "sidebar",
		Name:        "sidebar",
		Description: "Side bar entries contributed by loaded plugins",
		MIMEType:    "application/json",
	}, s.handleSideBarResource)

	// Template for items.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "items/{itemId}",
		Name:        "item",
		Description: "Latest version of a specific item",
		MIMEType:    "application/json",
	}, s.handleItemResource)
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleTypesResource returns a list of all types.
func (s *Server) handleTypesResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	return jsonResult(req.Params.URI, s.typeOutputs())
}

// handleSideBarResource returns the side bar entries.
func (s *Server) handleSideBarResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Plugins == nil {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     "[]",
			}},
		}, nil
	}
	return jsonResult(req.Params.URI, s.ports.Plugins.SideBarElements())
}

// handleItemResource returns the latest version of an item.
func (s *Server) handleItemResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id, err := uuid.Parse(extractItemID(req.Params.URI))
	if err != nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	item, err := s.ports.Items.Get(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	if item == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	return jsonResult(req.Params.URI, newItemOutput(*item))
}

// extractItemID extracts the item ID from a URI like raindrop://items/{itemId}.
func extractItemID(uri string) string {
	const prefix = uriScheme + "items/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	return strings.TrimPrefix(uri, prefix)
}
