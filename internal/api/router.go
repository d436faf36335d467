package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/questcard/internal/docservice"
	"github.com/starford/questcard/internal/quest"
)

const maxBodyBytes = 10 << 20

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(svc *docservice.Service, resolver *quest.Resolver, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, resolver)

	r := chi.NewRouter()
	r.Use(LimitBody(maxBodyBytes))

	// Documents.
	r.Get("/documents", h.ListDocuments)
	r.Post("/documents", h.CreateDocument)
	r.Post("/documents/import", h.ImportHTML)
	r.Get("/documents/{id}", h.GetDocument)
	r.Put("/documents/{id}", h.UpdateDocument)
	r.Delete("/documents/{id}", h.DeleteDocument)
	r.Get("/documents/{id}/html", h.ExportHTML)

	// Quests.
	r.Get("/quests", h.ListQuests)
	r.Get("/quests/{id}", h.QuestDetail)
	r.Get("/quests/{id}/card", h.QuestCard)
	r.Get("/quests/{id}/documents", h.QuestDocuments)

	// Search.
	r.Get("/search", h.Search)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
