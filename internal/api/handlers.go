package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/questcard/internal/checksum"
	"github.com/starford/questcard/internal/docservice"
	"github.com/starford/questcard/internal/node"
	"github.com/starford/questcard/internal/quest"
)

// Handler holds API route handlers.
type Handler struct {
	svc      *docservice.Service
	resolver *quest.Resolver
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service, resolver *quest.Resolver) *Handler {
	return &Handler{svc: svc, resolver: resolver}
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List documents with optional pagination and quest filter
//	@Tags			documents
//	@Produce		json
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Param			quest_id	query		string	false	"Only documents embedding this quest"
//	@Param			sort		query		string	false	"Sort field"	Enums(updated, title)
//	@Success		200			{object}	DocumentListResponse
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.List(r.Context(), limit, offset, q.Get("quest_id"), q.Get("sort"))
	if err != nil {
		writeServiceError(w, "list documents", "", err)
		return
	}
	if items == nil {
		items = []DocumentListItem{}
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: items, Total: total})
}

// GetDocument handles GET /api/documents/{id}.
//
//	@Summary		Get a single document by id
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Document id"
//	@Success		200	{object}	DocumentDetail
//	@Failure		404	{object}	errResponse
//	@Router			/documents/{id} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get document", id, err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(doc.Checksum))
	writeJSON(w, http.StatusOK, doc)
}

// CreateDocument handles POST /api/documents.
//
//	@Summary		Create a new document
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateDocumentRequest	true	"Document to create"
//	@Success		201		{object}	DocumentDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/documents [post]
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyError(w, err, "invalid JSON body")
		return
	}
	if len(req.Content) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}
	doc, err := h.svc.Create(r.Context(), req.ID, req.Content)
	if err != nil {
		writeServiceError(w, "create document", req.ID, err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(doc.Checksum))
	writeJSON(w, http.StatusCreated, doc)
}

// UpdateDocument handles PUT /api/documents/{id}.
//
//	@Summary		Update a document with optimistic concurrency
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string					true	"Document id"
//	@Param			If-Match	header		string					false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		UpdateDocumentRequest	true	"Updated content"
//	@Success		200			{object}	DocumentDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Router			/documents/{id} [put]
func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyError(w, err, "invalid JSON body")
		return
	}
	if len(req.Content) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	ifMatch := checksum.FromIfMatch(r.Header.Get("If-Match"))
	doc, err := h.svc.Update(r.Context(), id, req.Content, ifMatch)
	if err != nil {
		writeServiceError(w, "update document", id, err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(doc.Checksum))
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/documents/{id}.
//
//	@Summary		Delete a document
//	@Tags			documents
//	@Param			id	path	string	true	"Document id"
//	@Success		204	"Document deleted"
//	@Failure		404	{object}	errResponse
//	@Router			/documents/{id} [delete]
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, "delete document", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportHTML handles GET /api/documents/{id}/html.
//
//	@Summary		Render a document as interchange HTML
//	@Tags			documents
//	@Produce		html
//	@Param			id	path		string	true	"Document id"
//	@Success		200	{string}	string
//	@Failure		404	{object}	errResponse
//	@Router			/documents/{id}/html [get]
func (h *Handler) ExportHTML(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	out, err := h.svc.ExportHTML(r.Context(), id)
	if err != nil {
		writeServiceError(w, "export html", id, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out)
}

// ImportHTML handles POST /api/documents/import.
//
//	@Summary		Create a document from HTML markup
//	@Tags			documents
//	@Accept			html
//	@Produce		json
//	@Param			id	query		string	false	"Document id; generated when empty"
//	@Success		201	{object}	DocumentDetail
//	@Failure		400	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Router			/documents/import [post]
func (h *Handler) ImportHTML(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBodyError(w, err, "failed to read body")
		return
	}
	id := r.URL.Query().Get("id")
	doc, err := h.svc.ImportHTML(r.Context(), id, bytes.NewReader(body))
	if err != nil {
		writeServiceError(w, "import html", id, err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(doc.Checksum))
	writeJSON(w, http.StatusCreated, doc)
}

// ListQuests handles GET /api/quests.
//
//	@Summary		List embedded quests with their document counts
//	@Tags			quests
//	@Produce		json
//	@Success		200	{object}	QuestListResponse
//	@Router			/quests [get]
func (h *Handler) ListQuests(w http.ResponseWriter, r *http.Request) {
	quests, err := h.svc.Quests(r.Context())
	if err != nil {
		writeServiceError(w, "list quests", "", err)
		return
	}
	writeJSON(w, http.StatusOK, QuestListResponse{Quests: quests})
}

// QuestDocuments handles GET /api/quests/{id}/documents.
//
//	@Summary		List documents embedding a quest
//	@Tags			quests
//	@Produce		json
//	@Param			id	path		string	true	"Quest id"
//	@Success		200	{object}	QuestDocumentsResponse
//	@Router			/quests/{id}/documents [get]
func (h *Handler) QuestDocuments(w http.ResponseWriter, r *http.Request) {
	questID := chi.URLParam(r, "id")
	ids, err := h.svc.Embedders(r.Context(), questID)
	if err != nil {
		writeServiceError(w, "quest documents", questID, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, QuestDocumentsResponse{QuestID: questID, Documents: ids})
}

// resolve runs the one-shot view for the quest in the URL. A timeout is not
// an error: the snapshot then shows the loading state.
func (h *Handler) resolve(r *http.Request) (quest.Snapshot, error) {
	questID := chi.URLParam(r, "id")
	format := node.ParseFormat(r.URL.Query().Get("format"))
	snap, err := h.resolver.Resolve(r.Context(), questID, format)
	if err != nil && snap.Props.QuestID != "" {
		slog.Debug("quest resolve did not settle",
			slog.String("quest_id", questID),
			slog.String("error", err.Error()))
		err = nil
	}
	return snap, err
}

// QuestCard handles GET /api/quests/{id}/card.
//
//	@Summary		Render the quest card for one quest
//	@Tags			quests
//	@Produce		html
//	@Param			id		path		string	true	"Quest id"
//	@Param			format	query		string	false	"Alignment"	Enums(left, start, center, right, end, justify)
//	@Success		200		{string}	string
//	@Router			/quests/{id}/card [get]
func (h *Handler) QuestCard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.resolve(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	var buf bytes.Buffer
	if err := quest.RenderSnapshot(&buf, snap); err != nil {
		slog.Error("render card failed", slog.String("quest_id", snap.Props.QuestID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Quest-State", snap.State.String())
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// QuestDetail handles GET /api/quests/{id}.
//
//	@Summary		Resolve the display fields of a quest
//	@Tags			quests
//	@Produce		json
//	@Param			id	path		string	true	"Quest id"
//	@Success		200	{object}	QuestDetailResponse
//	@Router			/quests/{id} [get]
func (h *Handler) QuestDetail(w http.ResponseWriter, r *http.Request) {
	snap, err := h.resolve(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, QuestDetailResponse{
		QuestID: snap.Props.QuestID,
		State:   snap.State.String(),
		Detail:  snap.Detail,
	})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across documents
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeServiceError(w, "search", q, err)
		return
	}
	if hits == nil {
		hits = []docservice.SearchHit{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: hits})
}

// writeBodyError answers 413 when err came from a LimitBody cap, 400 otherwise.
func writeBodyError(w http.ResponseWriter, err error, msg string) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("request body too large"))
		return
	}
	writeJSON(w, http.StatusBadRequest, errorBody(msg))
}
