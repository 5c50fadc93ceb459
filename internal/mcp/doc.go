// Package mcp exposes the search engine over the Model Context Protocol
// on stdio: search_documents, index_document, remove_document,
// get_document, index_status, and clear_cache. Responses are indented
// JSON; failures map to JSON-RPC error codes in the -32xxx range.
package mcp
