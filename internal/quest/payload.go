// Package quest resolves quest references into rendered cards. A View fetches
// the quest through the proxy once per identifier change, derives the card
// fields, and renders placeholders until the fetch settles.
package quest

// Envelope is the proxy response body.
type Envelope struct {
	Data *Data `json:"data"`
}

// Data is the payload wrapped by the envelope.
type Data struct {
	Quest *Quest `json:"quest"`
}

// Quest holds the upstream fields the card uses.
type Quest struct {
	Title         string       `json:"title"`
	Description   *Description `json:"description,omitempty"`
	CoverImageURL string       `json:"coverImageUrl,omitempty"`
	// StartsAt is decoded but not displayed; the card only shows when a quest ends.
	StartsAt string `json:"startsAt,omitempty"`
	EndsAt   string `json:"endsAt,omitempty"`
}

// Description is the rich description block; only its text is used.
type Description struct {
	Text string `json:"text"`
}
