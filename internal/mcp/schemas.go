package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchDocumentsTool returns the tool definition for search_documents
func searchDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_documents",
		Description: "Search indexed documents with keyword, semantic, or hybrid retrieval",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Search strategy: hybrid (fused), semantic (vector only), or lexical (BM25 only)",
					"enum":        []string{"hybrid", "semantic", "lexical"},
					"default":     "hybrid",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-200)",
					"default":     10,
					"minimum":     1,
					"maximum":     200,
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Result offset for pagination (lexical mode only)",
					"default":     0,
					"minimum":     0,
				},
				"advanced": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, honor quoted phrases, AND/OR/NOT operators, and trailing wildcards in the query",
					"default":     false,
				},
				"lexical_weight": map[string]interface{}{
					"type":        "number",
					"description": "Fusion weight of the keyword side (hybrid mode)",
					"default":     1.0,
					"minimum":     0.0,
				},
				"semantic_weight": map[string]interface{}{
					"type":        "number",
					"description": "Fusion weight of the semantic side (hybrid mode)",
					"default":     1.0,
					"minimum":     0.0,
				},
			},
			Required: []string{"query"},
		},
	}
}

// indexDocumentTool returns the tool definition for index_document
func indexDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_document",
		Description: "Index a document's pages so they become searchable; re-indexing replaces earlier content",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path identifying the document",
				},
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Document text with form-feed (\\f) page breaks. If omitted, the file at path is read from disk",
				},
			},
			Required: []string{"path"},
		},
	}
}

// removeDocumentTool returns the tool definition for remove_document
func removeDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "remove_document",
		Description: "Remove a document and all of its pages, chunks, and vectors from the index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path of the indexed document",
				},
			},
			Required: []string{"path"},
		},
	}
}

// getDocumentTool returns the tool definition for get_document
func getDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_document",
		Description: "Fetch the full text of one indexed page",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path of the indexed document",
				},
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "1-based page number",
					"default":     1,
					"minimum":     1,
				},
			},
			Required: []string{"path"},
		},
	}
}

// indexStatusTool returns the tool definition for index_status
func indexStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_status",
		Description: "Report index statistics and search capability status",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// clearCacheTool returns the tool definition for clear_cache
func clearCacheTool() mcp.Tool {
	return mcp.Tool{
		Name:        "clear_cache",
		Description: "Drop cached query results and document metadata",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
