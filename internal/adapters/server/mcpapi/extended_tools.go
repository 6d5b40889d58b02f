package mcpapi

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/evanschultz/reeldesk/internal/adapters/server/common"
	"github.com/evanschultz/reeldesk/internal/domain"
)

// detailsSchema documents the optional per-collection detail fields.
var detailsSchema = map[string]any{
	"storage_path": map[string]any{"type": "string"},
	"studio":       map[string]any{"type": "string"},
	"director":     map[string]any{"type": "string"},
	"role":         map[string]any{"type": "string"},
	"year":         map[string]any{"type": "string"},
	"company":      map[string]any{"type": "string"},
	"position":     map[string]any{"type": "string"},
	"email":        map[string]any{"type": "string"},
	"phone":        map[string]any{"type": "string"},
	"rating":       map[string]any{"type": "integer", "minimum": 0, "maximum": 5},
	"website":      map[string]any{"type": "string"},
	"facebook":     map[string]any{"type": "string"},
	"location":     map[string]any{"type": "string"},
	"notes":        map[string]any{"type": "string"},
}

// registerItemTools registers item CRUD and single-field write tools.
func registerItemTools(srv *mcpserver.MCPServer, service common.CollectionService) {
	allCollections := collectionIDs("")

	srv.AddTool(
		mcp.NewTool(
			"reeldesk.get_item",
			mcp.WithDescription("Return one item by collection and id."),
			mcp.WithString("collection", mcp.Required(), mcp.Description("Collection id"), mcp.Enum(allCollections...)),
			mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			ref, errResult := itemRefFromRequest(req)
			if errResult != nil {
				return errResult, nil
			}
			item, err := service.GetItem(ctx, ref)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(item)
			if err != nil {
				return nil, fmt.Errorf("encode get_item result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"reeldesk.create_item",
			mcp.WithDescription("Create one item. New items land at display order 0; board items default to the first category."),
			mcp.WithString("collection", mcp.Required(), mcp.Description("Collection id"), mcp.Enum(allCollections...)),
			mcp.WithString("title", mcp.Required(), mcp.Description("Item title or name")),
			mcp.WithString("kind", mcp.Description("Kind within the collection (media and experience only)")),
			mcp.WithString("status", mcp.Description("Initial category for board collections")),
			mcp.WithBoolean("visible", mcp.Description("Whether the item appears in public feeds")),
			mcp.WithObject("details", mcp.Description("Optional collection-specific fields"), mcp.Properties(detailsSchema)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				Collection string         `json:"collection"`
				Title      string         `json:"title"`
				Kind       string         `json:"kind"`
				Status     string         `json:"status"`
				Visible    bool           `json:"visible"`
				Details    domain.Details `json:"details"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if strings.TrimSpace(args.Title) == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "title" not found`), nil
			}
			item, err := service.CreateItem(ctx, common.CreateItemRequest{
				Collection: args.Collection,
				Kind:       args.Kind,
				Title:      args.Title,
				Status:     args.Status,
				Visible:    args.Visible,
				Details:    args.Details,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(item)
			if err != nil {
				return nil, fmt.Errorf("encode create_item result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"reeldesk.update_item",
			mcp.WithDescription("Edit one item. Omitted fields are left unchanged; display order and status have their own tools."),
			mcp.WithString("collection", mcp.Required(), mcp.Description("Collection id"), mcp.Enum(allCollections...)),
			mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("kind", mcp.Description("New kind")),
			mcp.WithBoolean("visible", mcp.Description("New visibility")),
			mcp.WithObject("details", mcp.Description("Replacement detail fields"), mcp.Properties(detailsSchema)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				Collection string          `json:"collection"`
				ID         string          `json:"id"`
				Title      *string         `json:"title"`
				Kind       *string         `json:"kind"`
				Visible    *bool           `json:"visible"`
				Details    *domain.Details `json:"details"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if strings.TrimSpace(args.ID) == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "id" not found`), nil
			}
			item, err := service.UpdateItem(ctx, common.UpdateItemRequest{
				Collection: args.Collection,
				ID:         args.ID,
				Title:      args.Title,
				Kind:       args.Kind,
				Visible:    args.Visible,
				Details:    args.Details,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(item)
			if err != nil {
				return nil, fmt.Errorf("encode update_item result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"reeldesk.delete_item",
			mcp.WithDescription("Delete one item."),
			mcp.WithString("collection", mcp.Required(), mcp.Description("Collection id"), mcp.Enum(allCollections...)),
			mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			ref, errResult := itemRefFromRequest(req)
			if errResult != nil {
				return errResult, nil
			}
			if err := service.DeleteItem(ctx, ref); err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"collection": ref.Collection,
				"id":         ref.ID,
				"deleted":    true,
			})
			if err != nil {
				return nil, fmt.Errorf("encode delete_item result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"reeldesk.set_order",
			mcp.WithDescription("Write one display order without resequencing the rest of the scope."),
			mcp.WithString("collection", mcp.Required(), mcp.Description("Collection id"), mcp.Enum(allCollections...)),
			mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
			mcp.WithNumber("display_order", mcp.Required(), mcp.Description("Non-negative display order"), mcp.Min(0)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			ref, errResult := itemRefFromRequest(req)
			if errResult != nil {
				return errResult, nil
			}
			order, err := req.RequireInt("display_order")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			if err := service.UpdateOrder(ctx, common.UpdateOrderRequest{
				Collection:   ref.Collection,
				ID:           ref.ID,
				DisplayOrder: order,
			}); err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"collection":    ref.Collection,
				"id":            ref.ID,
				"display_order": order,
			})
			if err != nil {
				return nil, fmt.Errorf("encode set_order result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"reeldesk.invalidate",
			mcp.WithDescription("Drop cached listings for one collection and notify subscribers to refetch."),
			mcp.WithString("collection", mcp.Required(), mcp.Description("Collection id"), mcp.Enum(allCollections...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			collection, err := req.RequireString("collection")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			if err := service.Invalidate(ctx, collection); err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"collection": collection})
			if err != nil {
				return nil, fmt.Errorf("encode invalidate result: %w", err)
			}
			return result, nil
		},
	)
}

// itemRefFromRequest extracts the required collection and id arguments.
func itemRefFromRequest(req mcp.CallToolRequest) (common.ItemRef, *mcp.CallToolResult) {
	collection, err := req.RequireString("collection")
	if err != nil {
		return common.ItemRef{}, invalidRequestToolResult(err)
	}
	id, err := req.RequireString("id")
	if err != nil {
		return common.ItemRef{}, invalidRequestToolResult(err)
	}
	return common.ItemRef{Collection: collection, ID: id}, nil
}
