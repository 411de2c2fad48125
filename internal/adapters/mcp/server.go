package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/partwise/parts-assistant/internal/core/domain"
	"github.com/partwise/parts-assistant/internal/core/ports"
	"github.com/partwise/parts-assistant/internal/core/usecase"
)

// Server exposes the two retrieval paths as MCP tools over stdio. Tool input
// is never interpolated into SQL; search_parts goes through the same
// allow-listed query builder as the chat path.
type Server struct {
	classifier *usecase.Classifier
	builder    *usecase.QueryBuilder
	store      ports.StructuredStore
	retriever  *usecase.SemanticRetriever
	logger     *slog.Logger
}

func NewServer(
	classifier *usecase.Classifier,
	builder *usecase.QueryBuilder,
	store ports.StructuredStore,
	retriever *usecase.SemanticRetriever,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		classifier: classifier,
		builder:    builder,
		store:      store,
		retriever:  retriever,
		logger:     logger,
	}
}

// ServeStdio blocks until stdin closes or the process is signalled.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer())
}

func (s *Server) mcpServer() *server.MCPServer {
	srv := server.NewMCPServer("partwise-retrieval", "1.0.0",
		server.WithToolCapabilities(false),
	)

	srv.AddTool(mcp.NewTool("search_parts",
		mcp.WithDescription("Search the appliance parts database by part number, brand, or description. Returns matching rows with price, stock, and compatibility fields."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural-language part question, e.g. 'price of WP8544771' or 'Whirlpool door shelf bin'."),
		),
	), s.handleSearchParts)

	srv.AddTool(mcp.NewTool("search_guides",
		mcp.WithDescription("Semantic search over repair guides and blog posts. Returns the most similar text chunks with document metadata."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Symptom or how-to question, e.g. 'ice maker not working'."),
		),
		mcp.WithString("category",
			mcp.Description("Optional corpus filter: repair-guide or blog."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of chunks to return."),
		),
	), s.handleSearchGuides)

	return srv
}

func (s *Server) handleSearchParts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	intent, err := s.classifier.Classify(query, nil)
	if err != nil && !domain.IsKind(err, domain.ErrClassificationAmbiguous) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(intent.Filters) == 0 {
		return mcp.NewToolResultError("no searchable part identifier, brand, or description recognized in the query"), nil
	}

	queries, err := s.builder.Build(intent)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var records []domain.StructuredRecord
	for _, q := range queries {
		rows, err := s.store.Search(ctx, q)
		if err != nil {
			s.logger.Warn("structured tool search failed",
				slog.String("table", q.Table),
				slog.String("error", err.Error()))
			continue
		}
		records = append(records, rows...)
	}

	return jsonToolResult(struct {
		Query   string                    `json:"query"`
		Records []domain.StructuredRecord `json:"records"`
	}{Query: intent.ResolvedText, Records: records})
}

func (s *Server) handleSearchGuides(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	category := request.GetString("category", "")
	limit := request.GetInt("limit", 0)

	chunks, err := s.retriever.Retrieve(ctx, domain.QueryIntent{
		RawText:      query,
		ResolvedText: query,
		CategoryHint: category,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if limit > 0 && len(chunks) > limit {
		chunks = chunks[:limit]
	}

	return jsonToolResult(struct {
		Query  string                 `json:"query"`
		Chunks []domain.DocumentChunk `json:"chunks"`
	}{Query: query, Chunks: chunks})
}

func jsonToolResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
