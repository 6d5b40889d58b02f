// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/evanschultz/reeldesk/internal/adapters/server/common"
	"github.com/evanschultz/reeldesk/internal/domain"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter over the collection service.
func NewHandler(cfg Config, service common.CollectionService) (*Handler, error) {
	if service == nil {
		return nil, fmt.Errorf("collection service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerReadTools(mcpSrv, service)
	registerEngineTools(mcpSrv, service)
	registerItemTools(mcpSrv, service)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "reeldesk"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// collectionIDs lists every collection id for tool enums.
func collectionIDs(mode domain.CollectionMode) []string {
	out := []string{}
	for _, spec := range domain.Collections() {
		if mode == "" || spec.Mode == mode {
			out = append(out, string(spec.ID))
		}
	}
	return out
}

// registerReadTools registers collection and board read tools.
func registerReadTools(srv *mcpserver.MCPServer, service common.CollectionService) {
	srv.AddTool(
		mcp.NewTool(
			"reeldesk.list_collections",
			mcp.WithDescription("List collections, their ordering mode and the status pipeline."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			view, err := service.ListCollections(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(view)
			if err != nil {
				return nil, fmt.Errorf("encode list_collections result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"reeldesk.list_items",
			mcp.WithDescription("List items of one collection in display order."),
			mcp.WithString("collection", mcp.Required(), mcp.Description("Collection id"), mcp.Enum(collectionIDs("")...)),
			mcp.WithString("kind", mcp.Description("Optional kind filter (video, photo, experience, training, skills)")),
			mcp.WithString("visibility", mcp.Description("any, visible or hidden"), mcp.Enum("any", "visible", "hidden")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			collection, err := req.RequireString("collection")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			items, err := service.ListItems(ctx, common.ListItemsRequest{
				Collection: collection,
				Kind:       req.GetString("kind", ""),
				Visibility: req.GetString("visibility", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"collection": collection,
				"items":      items,
			})
			if err != nil {
				return nil, fmt.Errorf("encode list_items result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"reeldesk.board",
			mcp.WithDescription("Return one board collection partitioned by status category."),
			mcp.WithString("collection", mcp.Required(), mcp.Description("Board collection id"), mcp.Enum(collectionIDs(domain.ModeBoard)...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			collection, err := req.RequireString("collection")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			board, err := service.Board(ctx, collection)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(board)
			if err != nil {
				return nil, fmt.Errorf("encode board result: %w", err)
			}
			return result, nil
		},
	)
}

// registerEngineTools registers the status-move and reorder tools.
func registerEngineTools(srv *mcpserver.MCPServer, service common.CollectionService) {
	srv.AddTool(
		mcp.NewTool(
			"reeldesk.move_status",
			mcp.WithDescription("Move one board item to another status category. Drops on the current or an unknown category are reported as no-ops."),
			mcp.WithString("collection", mcp.Required(), mcp.Description("Board collection id"), mcp.Enum(collectionIDs(domain.ModeBoard)...)),
			mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
			mcp.WithString("status", mcp.Required(), mcp.Description("Target category id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				Collection string `json:"collection"`
				ID         string `json:"id"`
				Status     string `json:"status"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if strings.TrimSpace(args.ID) == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "id" not found`), nil
			}
			moved, err := service.MoveStatus(ctx, common.MoveStatusRequest{
				Collection: args.Collection,
				ID:         args.ID,
				Status:     args.Status,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(moved)
			if err != nil {
				return nil, fmt.Errorf("encode move_status result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"reeldesk.reorder",
			mcp.WithDescription("Resequence one ordering scope. ids must list every item of the scope in the new order; positions are rewritten as 0..N-1."),
			mcp.WithString("collection", mcp.Required(), mcp.Description("Reorder collection id"), mcp.Enum(collectionIDs(domain.ModeReorder)...)),
			mcp.WithString("kind", mcp.Description("Required for experience (experience, training, skills)")),
			mcp.WithArray("ids", mcp.Required(), mcp.Description("Item ids in the desired order"), mcp.WithStringItems()),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			collection, err := req.RequireString("collection")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			ids, err := req.RequireStringSlice("ids")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			reordered, err := service.Reorder(ctx, common.ReorderRequest{
				Collection: collection,
				Kind:       req.GetString("kind", ""),
				IDs:        ids,
			})
			if err != nil {
				if errors.Is(err, common.ErrPartialBatch) {
					return partialBatchToolResult(err, reordered), nil
				}
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(reordered)
			if err != nil {
				return nil, fmt.Errorf("encode reorder result: %w", err)
			}
			return result, nil
		},
	)
}

// partialBatchToolResult reports a partial commit with its applied and failed positions.
func partialBatchToolResult(err error, report common.ReorderResult) *mcp.CallToolResult {
	var b strings.Builder
	b.WriteString("partial_batch_failure: ")
	b.WriteString(err.Error())
	for _, applied := range report.Updates {
		fmt.Fprintf(&b, "\napplied %s -> %d", applied.ItemID, applied.DisplayOrder)
	}
	for _, failed := range report.Failed {
		fmt.Fprintf(&b, "\nfailed %s -> %d", failed.ItemID, failed.DisplayOrder)
	}
	return mcp.NewToolResultError(b.String())
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrPartialBatch):
		return mcp.NewToolResultError("partial_batch_failure: " + err.Error())
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	case errors.Is(err, common.ErrPersistence):
		return mcp.NewToolResultError("persistence_failed: " + err.Error())
	case errors.Is(err, common.ErrUnavailable):
		return mcp.NewToolResultError("not_implemented: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}

// invalidRequestToolResult wraps argument-binding failures as deterministic tool errors.
func invalidRequestToolResult(err error) *mcp.CallToolResult {
	if err == nil {
		return mcp.NewToolResultError("invalid_request: malformed arguments")
	}
	return mcp.NewToolResultError("invalid_request: " + err.Error())
}
