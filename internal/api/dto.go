package api

import (
	"encoding/json"

	"github.com/starford/questcard/internal/docservice"
	"github.com/starford/questcard/internal/quest"
)

// CreateDocumentRequest is the request body for creating a document.
type CreateDocumentRequest struct {
	ID      string          `json:"id,omitempty" example:"weekly-picks"`
	Content json.RawMessage `json:"content" validate:"required"`
}

// UpdateDocumentRequest is the request body for updating a document.
type UpdateDocumentRequest struct {
	Content json.RawMessage `json:"content" validate:"required"`
}

// DocumentDetail is the full document response type (aliased from the domain layer).
type DocumentDetail = docservice.DocumentDetail

// DocumentListItem is a lightweight item in a list response (aliased from the domain layer).
type DocumentListItem = docservice.DocumentListItem

// DocumentListResponse wraps paginated document listings.
type DocumentListResponse struct {
	Documents []DocumentListItem `json:"documents" validate:"required"`
	Total     int                `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []docservice.SearchHit `json:"results" validate:"required"`
}

// QuestDocumentsResponse lists the documents embedding one quest.
type QuestDocumentsResponse struct {
	QuestID   string   `json:"quest_id" example:"q-42" validate:"required"`
	Documents []string `json:"documents" validate:"required"`
}

// QuestListResponse lists the embedded quests.
type QuestListResponse struct {
	Quests []docservice.QuestUsage `json:"quests" validate:"required"`
}

// QuestDetailResponse is the JSON form of a resolved card.
type QuestDetailResponse struct {
	QuestID string       `json:"quest_id" example:"q-42" validate:"required"`
	State   string       `json:"state" example:"loaded" validate:"required"`
	Detail  quest.Detail `json:"detail"`
}
