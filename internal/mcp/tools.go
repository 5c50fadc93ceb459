package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tmcfarland/pagesearch/internal/indexer"
	"github.com/tmcfarland/pagesearch/internal/storage"
	"github.com/tmcfarland/pagesearch/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeDocumentNotFound   = -32003 // Requested document or page is not indexed
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// handleSearchDocuments handles the search_documents tool invocation
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	mode, err := types.ParseMode(getStringDefault(args, "mode", s.cfg.DefaultMode))
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid mode", map[string]interface{}{
			"param":   "mode",
			"allowed": []string{"hybrid", "semantic", "lexical"},
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > s.cfg.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams,
			fmt.Sprintf("limit must be between 1 and %d", s.cfg.MaxLimit), map[string]interface{}{
				"param": "limit",
				"value": limit,
			})
	}

	sq := types.SearchQuery{
		Text:           query,
		Mode:           mode,
		Limit:          limit,
		Offset:         getIntDefault(args, "offset", 0),
		Advanced:       getBoolDefault(args, "advanced", false),
		LexicalWeight:  getFloatDefault(args, "lexical_weight", 0),
		SemanticWeight: getFloatDefault(args, "semantic_weight", 0),
	}

	results, stats, err := s.engine.Search(ctx, sq)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(searchResponse(results, stats))), nil
}

// searchResponse shapes results and stats for the wire.
func searchResponse(results []types.FusedResult, stats *types.SearchStats) map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		item := map[string]interface{}{
			"filepath":   r.Filepath,
			"filename":   r.Filename,
			"page":       r.PageNum,
			"snippet":    r.Snippet,
			"score":      r.Score,
			"provenance": string(r.Provenance),
		}
		if r.RelativePath != "" {
			item["relative_path"] = r.RelativePath
		}
		if r.LexicalRank > 0 {
			item["lexical_rank"] = r.LexicalRank
		}
		if r.SemanticRank > 0 {
			item["semantic_rank"] = r.SemanticRank
			item["similarity"] = r.Similarity
		}
		items = append(items, item)
	}

	response := map[string]interface{}{
		"results": items,
		"stats": map[string]interface{}{
			"query":             stats.Query,
			"mode":              string(stats.Mode),
			"total_results":     stats.TotalResults,
			"lexical_results":   stats.LexicalResults,
			"semantic_results":  stats.SemanticResults,
			"overlap_count":     stats.OverlapCount,
			"execution_time_ms": stats.ExecutionTime.Milliseconds(),
		},
	}
	if stats.TotalPages > 0 {
		response["stats"].(map[string]interface{})["page"] = stats.Page
		response["stats"].(map[string]interface{})["total_pages"] = stats.TotalPages
	}
	if len(stats.Errors) > 0 {
		response["stats"].(map[string]interface{})["errors"] = stats.Errors
	}
	return response
}

// handleIndexDocument handles the index_document tool invocation
func (s *Server) handleIndexDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if !filepath.IsAbs(path) {
		return nil, newMCPError(ErrorCodeInvalidParams, "path must be absolute", map[string]interface{}{
			"param": "path",
			"value": path,
		})
	}

	var stats *indexer.Statistics
	var err error
	if text := getStringDefault(args, "text", ""); text != "" {
		stats, err = s.indexer.IndexFile(ctx, path, indexer.SplitPages(text))
	} else {
		stats, err = s.indexer.IndexPath(ctx, indexer.TextFileSource{}, path)
	}
	if errors.Is(err, indexer.ErrIndexingInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "another indexing operation is running", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Cached results may now be stale.
	s.engine.ClearCache()

	response := map[string]interface{}{
		"indexed":        true,
		"path":           path,
		"pages_indexed":  stats.PagesIndexed,
		"pages_skipped":  stats.PagesSkipped,
		"chunks_created": stats.ChunksCreated,
		"duration_ms":    stats.Duration.Milliseconds(),
	}
	if len(stats.ErrorMessages) > 0 {
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRemoveDocument handles the remove_document tool invocation
func (s *Server) handleRemoveDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	removed, err := s.indexer.RemoveFile(ctx, path)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "removal failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.engine.ClearCache()

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"removed":       removed > 0,
		"path":          path,
		"pages_removed": removed,
	})), nil
}

// handleGetDocument handles the get_document tool invocation
func (s *Server) handleGetDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	page := getIntDefault(args, "page", 1)
	if page < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "page must be >= 1", map[string]interface{}{
			"param": "page",
			"value": page,
		})
	}

	doc, err := s.storage.GetDocument(ctx, path, page)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeDocumentNotFound, "page not indexed", map[string]interface{}{
			"path": path,
			"page": page,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "lookup failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"filepath": doc.Filepath,
		"filename": doc.Filename,
		"page":     doc.PageNum,
		"content":  doc.Content,
	})), nil
}

// handleIndexStatus handles the index_status tool invocation
func (s *Server) handleIndexStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.storage.GetIndexStats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to gather statistics", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"statistics": map[string]interface{}{
			"files":         stats.Files,
			"pages":         stats.Documents,
			"chunks":        stats.Chunks,
			"embeddings":    stats.Embeddings,
			"index_size_mb": fmt.Sprintf("%.2f", stats.DBSizeMB),
		},
		"capabilities": map[string]interface{}{
			"lexical_search":  true,
			"semantic_search": s.storage.VectorSearchAvailable(),
			"build_mode":      storage.BuildMode,
		},
		"embedding": map[string]interface{}{
			"model":      s.cfg.EmbeddingModel,
			"dimensions": s.cfg.EmbeddingDimensions,
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleClearCache handles the clear_cache tool invocation
func (s *Server) handleClearCache(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.engine.ClearCache()
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"cleared": true,
	})), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a float parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
