package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/tmcfarland/pagesearch/internal/config"
	"github.com/tmcfarland/pagesearch/internal/embedder"
	"github.com/tmcfarland/pagesearch/internal/indexer"
	"github.com/tmcfarland/pagesearch/internal/searcher"
	"github.com/tmcfarland/pagesearch/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "pagesearch"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	storage storage.Storage
	indexer *indexer.Indexer
	engine  *searcher.Engine
	cfg     config.Config
}

// NewServer wires storage, embedder, indexer, and the search engines from
// configuration and registers the tool surface.
func NewServer(cfg config.Config) (*Server, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".pagesearch", "pagesearch.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(dbPath,
		storage.WithBM25Weights(cfg.FilenameWeight, cfg.ContentWeight),
		storage.WithSnippetLength(cfg.SnippetLength),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := embedder.NewFromConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	idx := indexer.New(store, emb)

	lexical := searcher.NewLexicalEngine(store, cfg.DefaultLimit, cfg.MaxLimit)
	semantic := searcher.NewSemanticEngine(store, emb, cfg.DefaultLimit, cfg.MaxLimit,
		searcher.WithSemanticSnippetLength(cfg.SnippetLength))
	engine := searcher.NewEngine(lexical, semantic, searcher.Config{
		RRFK:           cfg.RRFK,
		FetchFactor:    cfg.HybridFetchFactor,
		DefaultLimit:   cfg.DefaultLimit,
		MaxLimit:       cfg.MaxLimit,
		LexicalWeight:  cfg.LexicalWeight,
		SemanticWeight: cfg.SemanticWeight,
	}, searcher.WithQueryCache(searcher.NewQueryCache(searcher.DefaultQueryCacheSize, 5*time.Minute)))

	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion),
		storage: store,
		indexer: idx,
		engine:  engine,
		cfg:     cfg,
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchDocumentsTool(), s.handleSearchDocuments)
	s.mcp.AddTool(indexDocumentTool(), s.handleIndexDocument)
	s.mcp.AddTool(removeDocumentTool(), s.handleRemoveDocument)
	s.mcp.AddTool(getDocumentTool(), s.handleGetDocument)
	s.mcp.AddTool(indexStatusTool(), s.handleIndexStatus)
	s.mcp.AddTool(clearCacheTool(), s.handleClearCache)
}
