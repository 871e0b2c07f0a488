package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/raindrop/internal/core/domain"
)

// defaultListLimit caps list_items when no limit is given.
const defaultListLimit = 50

// TypeOutput describes one type.
type TypeOutput struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	StorageID   string `json:"storage_id"`
}

// ListTypesInput is the input schema for the list_types tool.
type ListTypesInput struct{}

// ListTypesOutput is the output schema for the list_types tool.
type ListTypesOutput struct {
	Types []TypeOutput `json:"types"`
	Count int          `json:"count"`
}

// ListItemsInput is the input schema for the list_items tool.
type ListItemsInput struct {
	Type  string `json:"type" jsonschema:"type id or display name"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of items to return (default 50)"`
	Since string `json:"since,omitempty" jsonschema:"RFC 3339 time; only items written at or after it"`
}

// ItemOutput is one item version.
type ItemOutput struct {
	ItemID    string          `json:"item_id"`
	VersionID string          `json:"version_id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Deleted   bool            `json:"deleted,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ListItemsOutput is the output schema for the list_items tool.
type ListItemsOutput struct {
	Items []ItemOutput `json:"items"`
	Count int          `json:"count"`
}

// GetItemInput is the input schema for the get_item tool.
type GetItemInput struct {
	ItemID         string `json:"item_id" jsonschema:"the item id"`
	IncludeDeleted bool   `json:"include_deleted,omitempty" jsonschema:"return the tombstone of a deleted item"`
	History        bool   `json:"history,omitempty" jsonschema:"return every version instead of the latest"`
}

// GetItemOutput is the output schema for the get_item tool.
type GetItemOutput struct {
	Item     *ItemOutput  `json:"item,omitempty"`
	Versions []ItemOutput `json:"versions,omitempty"`
}

// ListPluginsInput is the input schema for the list_plugins tool.
type ListPluginsInput struct{}

// PluginOutput describes a loaded plugin instance.
type PluginOutput struct {
	InstanceID string   `json:"instance_id"`
	Name       string   `json:"name"`
	System     bool     `json:"system,omitempty"`
	Types      []string `json:"types,omitempty"`
	Tasks      []string `json:"tasks,omitempty"`
}

// ListPluginsOutput is the output schema for the list_plugins tool.
type ListPluginsOutput struct {
	Loaded    []PluginOutput `json:"loaded"`
	Available []string       `json:"available"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_types",
		Description: "List the item types of the store",
	}, s.handleListTypes)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_items",
		Description: "List the live items of a type in insertion order",
	}, s.handleListItems)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_item",
		Description: "Get the latest version or the full history of an item",
	}, s.handleGetItem)

	if s.ports.Plugins != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "list_plugins",
			Description: "List loaded plugin instances and the plugins that can be added",
		}, s.handleListPlugins)
	}
}

func (s *Server) typeOutputs() []TypeOutput {
	handles := s.ports.Types.ListTypes()
	out := make([]TypeOutput, len(handles))
	for i, h := range handles {
		out[i] = TypeOutput{
			ID:          h.ID().String(),
			DisplayName: h.DisplayName(),
			StorageID:   h.StorageID().String(),
		}
	}
	return out
}

func (s *Server) handleListTypes(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ ListTypesInput,
) (*mcp.CallToolResult, ListTypesOutput, error) {
	types := s.typeOutputs()
	return nil, ListTypesOutput{Types: types, Count: len(types)}, nil
}

// resolveType accepts a type id or a unique display name.
func (s *Server) resolveType(ref string) (*domain.TypeHandle, error) {
	if id, err := uuid.Parse(ref); err == nil {
		if h := s.ports.Types.Resolve(id); h != nil && h.IsValid() {
			return h, nil
		}
		return nil, fmt.Errorf("type %s: %w", ref, domain.ErrUnknownType)
	}
	matches := s.ports.Types.FindByName(ref)
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("type %q: %w", ref, domain.ErrUnknownType)
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, h := range matches {
			ids[i] = h.ID().String()
		}
		return nil, fmt.Errorf("type name %q is ambiguous: %s", ref, strings.Join(ids, ", "))
	}
}

func (s *Server) handleListItems(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListItemsInput,
) (*mcp.CallToolResult, ListItemsOutput, error) {
	h, err := s.resolveType(input.Type)
	if err != nil {
		return nil, ListItemsOutput{}, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	q := domain.ItemQuery{Type: h.ID(), Limit: limit}
	if input.Since != "" {
		q.From, err = time.Parse(time.RFC3339, input.Since)
		if err != nil {
			return nil, ListItemsOutput{}, fmt.Errorf("%w: since: %v", domain.ErrInvalidInput, err)
		}
	}

	items, err := s.ports.Items.List(ctx, q)
	if err != nil {
		return nil, ListItemsOutput{}, err
	}
	output := ListItemsOutput{Items: make([]ItemOutput, len(items)), Count: len(items)}
	for i := range items {
		output.Items[i] = newItemOutput(items[i])
	}
	return nil, output, nil
}

func (s *Server) handleGetItem(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetItemInput,
) (*mcp.CallToolResult, GetItemOutput, error) {
	id, err := uuid.Parse(input.ItemID)
	if err != nil {
		return nil, GetItemOutput{}, fmt.Errorf("%w: item id %q", domain.ErrInvalidInput, input.ItemID)
	}

	if input.History {
		versions, err := s.ports.Items.History(ctx, id)
		if err != nil {
			return nil, GetItemOutput{}, err
		}
		if len(versions) == 0 {
			return nil, GetItemOutput{}, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
		}
		output := GetItemOutput{Versions: make([]ItemOutput, len(versions))}
		for i := range versions {
			output.Versions[i] = newItemOutput(versions[i])
		}
		return nil, output, nil
	}

	item, err := s.ports.Items.Get(ctx, id, input.IncludeDeleted)
	if err != nil {
		return nil, GetItemOutput{}, err
	}
	if item == nil {
		return nil, GetItemOutput{}, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	out := newItemOutput(*item)
	return nil, GetItemOutput{Item: &out}, nil
}

func (s *Server) handleListPlugins(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ ListPluginsInput,
) (*mcp.CallToolResult, ListPluginsOutput, error) {
	loaded := s.ports.Plugins.LoadedPlugins()
	output := ListPluginsOutput{
		Loaded:    make([]PluginOutput, len(loaded)),
		Available: s.ports.Plugins.AvailablePlugins(),
	}
	for i, p := range loaded {
		types := make([]string, len(p.TypeIDs))
		for j, id := range p.TypeIDs {
			types[j] = id.String()
		}
		output.Loaded[i] = PluginOutput{
			InstanceID: p.InstanceID.String(),
			Name:       p.Info.PluginName,
			System:     p.System,
			Types:      types,
			Tasks:      p.Tasks,
		}
	}
	if output.Available == nil {
		output.Available = []string{}
	}
	return nil, output, nil
}

func newItemOutput(item domain.Item) ItemOutput {
	out := ItemOutput{
		ItemID:    item.ItemID.String(),
		VersionID: item.VersionID.String(),
		Type:      item.Type.String(),
		Timestamp: item.Timestamp,
		Deleted:   item.IsTombstone(),
	}
	switch {
	case item.IsTombstone():
	case json.Valid(item.Payload):
		out.Payload = item.Payload
	default:
		quoted, _ := json.Marshal(string(item.Payload)) //nolint:errcheck // strings always marshal
		out.Payload = quoted
	}
	return out
}
