package quest

import (
	"fmt"
	"strconv"
	"time"
)

// Detail is the display projection of a fetched quest. Empty fields are absent.
type Detail struct {
	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`
	CoverImageURL string `json:"cover_image_url,omitempty"`
	Period        string `json:"period,omitempty"`
}

// en-GB abbreviated month names.
var shortMonths = [...]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sept", "Oct", "Nov", "Dec",
}

// Derive projects data into a Detail. A period is produced only when an end
// timestamp is present; an unparsable one leaves the period empty and is
// reported as an error alongside the other fields. loc selects the calendar
// day; nil means UTC.
func Derive(data *Data, loc *time.Location) (Detail, error) {
	var d Detail
	if data == nil || data.Quest == nil {
		return d, nil
	}
	q := data.Quest
	d.Title = q.Title
	d.CoverImageURL = q.CoverImageURL
	if q.Description != nil {
		d.Description = q.Description.Text
	}
	if q.EndsAt == "" {
		return d, nil
	}
	end, err := parseTimestamp(q.EndsAt)
	if err != nil {
		return d, fmt.Errorf("quest: parse endsAt %q: %w", q.EndsAt, err)
	}
	d.Period = "Ends " + formatDayMonth(end, loc)
	return d, nil
}

// parseTimestamp accepts RFC 3339 timestamps and bare dates, which are
// taken as UTC midnight.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t, nil
	}
	if d, dateErr := time.Parse(time.DateOnly, s); dateErr == nil {
		return d, nil
	}
	return time.Time{}, err
}

func formatDayMonth(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return strconv.Itoa(t.Day()) + " " + shortMonths[t.Month()-1]
}

// Memo caches the Detail derived from the last payload. Callers decide when
// to recompute by passing the current payload; the projection is recomputed
// only when the pointer differs from the previous call.
type Memo struct {
	loc    *time.Location
	last   *Data
	detail Detail
	err    error
	primed bool
}

// NewMemo returns a Memo deriving periods in loc.
func NewMemo(loc *time.Location) *Memo {
	return &Memo{loc: loc}
}

// Detail returns the projection of data, recomputing only on a new payload.
func (m *Memo) Detail(data *Data) (Detail, error) {
	if m.primed && data == m.last {
		return m.detail, m.err
	}
	m.last = data
	m.detail, m.err = Derive(data, m.loc)
	m.primed = true
	return m.detail, m.err
}
