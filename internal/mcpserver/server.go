// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes questcard tools for LLM integration via stdio transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/questcard/internal/apperr"
	"github.com/starford/questcard/internal/docservice"
	"github.com/starford/questcard/internal/node"
	"github.com/starford/questcard/internal/quest"
)

const contractURI = "questcard://embed-contract"

// Server wraps the MCP server with questcard tools.
type Server struct {
	mcp      *server.MCPServer
	svc      *docservice.Service
	resolver *quest.Resolver
}

// New creates a new MCP server with all tools registered.
func New(svc *docservice.Service, resolver *quest.Resolver) *Server {
	s := &Server{svc: svc, resolver: resolver}

	s.mcp = server.NewMCPServer(
		"questcard",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Full-text search through document text and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List stored documents, optionally only those embedding a quest."),
		mcp.WithString("quest_id", mcp.Description("Only list documents embedding this quest")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the editor-state JSON of a document."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("import_html",
		mcp.WithDescription("Create a document from HTML. Quest embeds are recognized from "+
			"<div data-lexical-vantient-quest-id=\"...\"> elements; paragraphs, headings and "+
			"list items become paragraphs. Read the embed contract first via get_embed_contract or the "+
			contractURI+" resource."),
		mcp.WithString("html", mcp.Required(), mcp.Description("HTML markup to import")),
		mcp.WithString("id", mcp.Description("Optional document id; a UUID is generated when empty")),
	), s.importHTML)

	s.mcp.AddTool(mcp.NewTool("export_html",
		mcp.WithDescription("Render a stored document as interchange HTML."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
	), s.exportHTML)

	s.mcp.AddTool(mcp.NewTool("find_quest_embeds",
		mcp.WithDescription("Find all documents that embed the specified quest."),
		mcp.WithString("quest_id", mcp.Required(), mcp.Description("Quest identifier")),
	), s.findQuestEmbeds)

	s.mcp.AddTool(mcp.NewTool("resolve_quest",
		mcp.WithDescription("Fetch a quest through the proxy and return its display fields and card HTML."),
		mcp.WithString("quest_id", mcp.Required(), mcp.Description("Quest identifier")),
		mcp.WithString("format", mcp.Description("Alignment: left, start, center, right, end or justify")),
	), s.resolveQuest)

	s.mcp.AddTool(mcp.NewTool("get_embed_contract",
		mcp.WithDescription("Returns the stored document and quest embed contract. "+
			"Call this before importing or writing documents."),
	), s.getEmbedContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Embed Contract",
			mcp.WithResourceDescription("Stored document format and quest embed node."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func optString(req mcp.CallToolRequest, key string) string {
	v, err := req.RequireString(key)
	if err != nil {
		return ""
	}
	return v
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func errorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found")
	case errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError("document already exists")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(hits), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, _, err := s.svc.List(ctx, 500, 0, optString(req, "quest_id"), "title")
	if err != nil {
		return errorResult(err), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no documents found"), nil
	}
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = it.ID + "\t" + it.Title
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.Get(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(string(d.Content)), nil
}

func (s *Server) importHTML(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	markup, err := req.RequireString("html")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.ImportHTML(ctx, optString(req, "id"), strings.NewReader(markup))
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%d quest embeds)", d.ID, len(d.QuestIDs))), nil
}

func (s *Server) exportHTML(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.svc.ExportHTML(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) findQuestEmbeds(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	questID, err := req.RequireString("quest_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ids, err := s.svc.Embedders(ctx, questID)
	if err != nil {
		return errorResult(err), nil
	}
	if len(ids) == 0 {
		return mcp.NewToolResultText("no embedding documents found"), nil
	}
	return mcp.NewToolResultText(strings.Join(ids, "\n")), nil
}

type resolvedQuest struct {
	QuestID string       `json:"quest_id"`
	State   string       `json:"state"`
	Detail  quest.Detail `json:"detail"`
	Card    string       `json:"card"`
}

func (s *Server) resolveQuest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	questID, err := req.RequireString("quest_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.resolver.Resolve(ctx, questID, node.ParseFormat(optString(req, "format")))
	if err != nil && snap.Props.QuestID == "" {
		return errorResult(err), nil
	}
	var card bytes.Buffer
	if rerr := quest.RenderSnapshot(&card, snap); rerr != nil {
		return errorResult(rerr), nil
	}
	return jsonResult(resolvedQuest{
		QuestID: questID,
		State:   snap.State.String(),
		Detail:  snap.Detail,
		Card:    card.String(),
	}), nil
}

func (s *Server) getEmbedContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(EmbedContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     EmbedContract,
		},
	}, nil
}
